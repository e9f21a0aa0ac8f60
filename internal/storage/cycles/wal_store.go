package cycles

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// The WAL keeps at most cycleSegmentLimit*cycleMaxSegments records, the
// oldest segment is dropped past that. One million cycles is about 114 years
// at the default 60 minute interval and 1.9 years at one minute.
const (
	cycleSegmentLimit = 100
	cycleMaxSegments  = 10000
	cycleKeyPrefix    = "cycle_"
)

// Entry is a record read back together with its WAL index.
type Entry struct {
	Index  uint64
	Record domain.CycleRecord
}

// WALStore keeps cycle records in a segmented write-ahead log synced on every write.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens or creates the WAL under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "cycles_",
		SegmentThreshold: cycleSegmentLimit,
		MaxSegments:      cycleMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init cycle WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes rec at the next WAL index.
func (s *WALStore) Append(rec domain.CycleRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("cycle store is not initialized")
	}
	if rec.ID == "" {
		return errors.New("cycle record id is required")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal cycle record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.wal.CurrentIndex() + 1
	return s.wal.Write(idx, cycleKey(idx, rec.ID), payload)
}

// cycleKey carries the WAL index so records read back from older segments
// keep their position.
func cycleKey(idx uint64, id string) string {
	return fmt.Sprintf("%s%d_%s", cycleKeyPrefix, idx, id)
}

func parseCycleKey(key string) (uint64, bool) {
	rest, ok := strings.CutPrefix(key, cycleKeyPrefix)
	if !ok {
		return 0, false
	}
	num, _, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, false
	}
	idx, err := strconv.ParseUint(num, 10, 64)
	return idx, err == nil
}

// RecordsAfter returns the records written after the given index.
func (s *WALStore) RecordsAfter(index uint64) ([]Entry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("cycle store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	entries := make([]Entry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, ok := s.wal.Get(idx)
		if !ok {
			// only the latest segments are indexed in memory
			return s.scanAfter(index)
		}
		if !strings.HasPrefix(key, cycleKeyPrefix) {
			continue
		}
		rec, err := decodeCycle(idx, payload)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Index: idx, Record: rec})
	}

	return entries, nil
}

// scanAfter reads every segment on disk.
func (s *WALStore) scanAfter(index uint64) ([]Entry, error) {
	var entries []Entry
	for msg := range s.wal.Iterator() {
		idx, ok := parseCycleKey(msg.Key)
		if !ok || idx <= index {
			continue
		}
		rec, err := decodeCycle(idx, msg.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Index: idx, Record: rec})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries, nil
}

func decodeCycle(idx uint64, payload []byte) (domain.CycleRecord, error) {
	var rec domain.CycleRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, errors.Wrapf(err, "decode cycle record %d", idx)
	}
	return rec, nil
}

// CurrentIndex returns the index of the last record.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("cycle store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
