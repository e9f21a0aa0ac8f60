package cycles

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

func record(id string, seq uint64, status domain.Status, reason string) domain.CycleRecord {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.CycleRecord{
		ID:         id,
		Seq:        seq,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Balances:   []domain.Balance{{Asset: "BTC", Free: decimal.RequireFromString("0.5")}},
		Result:     domain.CycleResult{Status: status, Reason: reason},
	}
}

func TestWALStore_AppendAndReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(record("a", 1, domain.StatusSuccess, domain.ReasonHold)))
	require.NoError(t, store.Append(record("b", 2, domain.StatusSkipped, domain.ReasonParseError)))
	assert.Equal(t, uint64(2), store.CurrentIndex())
	require.NoError(t, store.Close())

	store, err = NewWALStore(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(record("c", 3, domain.StatusFailed, domain.ReasonNetworkExhausted)))

	entries, err := store.RecordsAfter(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Record.ID)
	assert.Equal(t, domain.ReasonParseError, entries[1].Record.Result.Reason)
	assert.Equal(t, uint64(3), entries[2].Index)
	assert.True(t, entries[0].Record.Balances[0].Free.Equal(decimal.RequireFromString("0.5")))

	tail, err := store.RecordsAfter(2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "c", tail[0].Record.ID)
}

func TestWALStore_KeepsRecordsAcrossSegments(t *testing.T) {
	dir := t.TempDir()
	total := 3*cycleSegmentLimit + 7

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	for i := 1; i <= total; i++ {
		require.NoError(t, store.Append(record(fmt.Sprintf("c%d", i), uint64(i), domain.StatusSuccess, domain.ReasonHold)))
	}
	require.NoError(t, store.Close())

	store, err = NewWALStore(dir)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.RecordsAfter(0)
	require.NoError(t, err)
	require.Len(t, entries, total)
	assert.Equal(t, "c1", entries[0].Record.ID)
	assert.Equal(t, fmt.Sprintf("c%d", total), entries[total-1].Record.ID)
}

func TestWALStore_RequiresID(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.Append(domain.CycleRecord{}))
}

func TestJSONLStore_RotatesDaily(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONLStore(dir)
	require.NoError(t, err)

	day1 := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)

	store.now = func() time.Time { return day1 }
	require.NoError(t, store.Append(record("a", 1, domain.StatusSuccess, domain.ReasonHold)))
	require.NoError(t, store.Append(record("b", 2, domain.StatusSuccess, domain.ReasonSimulated)))
	store.now = func() time.Time { return day2 }
	require.NoError(t, store.Append(record("c", 3, domain.StatusFailed, domain.ReasonAuth)))
	require.NoError(t, store.Close())

	first, err := ReadJSONL(store.Path(day1))
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "b", first[1].ID)

	second, err := ReadJSONL(store.Path(day2))
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, domain.StatusFailed, second[0].Result.Status)
}

func TestJSONLStore_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b"} {
		store, err := NewJSONLStore(dir)
		require.NoError(t, err)
		store.now = func() time.Time { return now }
		require.NoError(t, store.Append(record(id, uint64(i+1), domain.StatusSuccess, domain.ReasonHold)))
		require.NoError(t, store.Close())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	store, _ := NewJSONLStore(dir)
	records, err := ReadJSONL(store.Path(now))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestOpen(t *testing.T) {
	s, err := Open(FormatJSONL, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &JSONLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("csv", t.TempDir())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
