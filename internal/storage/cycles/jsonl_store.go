package cycles

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// JSONLStore appends one JSON line per cycle to a daily file.
type JSONLStore struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func NewJSONLStore(dir string) (*JSONLStore, error) {
	if dir == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create cycle log dir")
	}
	return &JSONLStore{dir: dir, now: time.Now}, nil
}

// Path returns the file records of the given day go to.
func (s *JSONLStore) Path(t time.Time) string {
	return filepath.Join(s.dir, "cycles-"+t.UTC().Format("2006-01-02")+".jsonl")
}

func (s *JSONLStore) Append(rec domain.CycleRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal cycle record")
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotate(); err != nil {
		return err
	}
	if _, err := s.file.Write(line); err != nil {
		return errors.Wrap(err, "write cycle record")
	}
	return errors.Wrap(s.file.Sync(), "sync cycle log")
}

func (s *JSONLStore) rotate() error {
	now := s.now()
	day := now.UTC().Format("2006-01-02")
	if s.file != nil && s.day == day {
		return nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return errors.Wrap(err, "close cycle log")
		}
		s.file = nil
	}

	f, err := os.OpenFile(s.Path(now), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "open cycle log")
	}
	s.file, s.day = f, day
	return nil
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// ReadJSONL decodes every record of a cycle log file.
func ReadJSONL(path string) ([]domain.CycleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []domain.CycleRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec domain.CycleRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, errors.Wrapf(err, "decode line %d", len(records)+1)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
