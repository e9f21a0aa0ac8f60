// Package cycles persists one record per trading cycle. Records are only ever
// appended.
package cycles

import (
	"github.com/pkg/errors"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// Formats of the cycle log.
const (
	FormatWAL   = "wal"
	FormatJSONL = "jsonl"
)

const defaultDir = "./cyclelog"

// Store is the append-only cycle log.
type Store interface {
	Append(rec domain.CycleRecord) error
	Close() error
}

// Open creates the store for the given format under dir.
func Open(format, dir string) (Store, error) {
	switch format {
	case "", FormatWAL:
		return NewWALStore(dir)
	case FormatJSONL:
		return NewJSONLStore(dir)
	default:
		return nil, errors.Wrapf(domain.ErrConfiguration, "unknown cycle log format %q", format)
	}
}
