package simstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Store persists the paper wallet so simulated runs survive restarts.
type Store struct {
	path string
}

// NewStore creates a store for the paper wallet valued in quote under dir.
func NewStore(dir, quote string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("simulate state dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create simulate state dir")
	}

	name := "paper-wallet-" + strings.ToLower(quote) + ".json"
	return &Store{path: filepath.Join(dir, name)}, nil
}

// State is the persisted paper wallet.
type State struct {
	Wallet    map[string]string `json:"wallet"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Path of the state file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the wallet, returning nil when nothing was saved yet.
func (s *Store) Load() (map[string]decimal.Decimal, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read simulate state")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode simulate state")
	}

	wallet := make(map[string]decimal.Decimal, len(state.Wallet))
	for asset, raw := range state.Wallet {
		qty, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s balance", asset)
		}
		wallet[strings.ToUpper(asset)] = qty
	}
	return wallet, nil
}

// Save writes the wallet atomically via a temp file.
func (s *Store) Save(wallet map[string]decimal.Decimal) error {
	state := State{
		Wallet:    make(map[string]string, len(wallet)),
		UpdatedAt: time.Now().UTC(),
	}
	for asset, qty := range wallet {
		state.Wallet[asset] = qty.String()
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode simulate state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write simulate state temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist simulate state")
	}
	return nil
}
