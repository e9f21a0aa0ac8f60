package simstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "paper")
	s, err := NewStore(dir, "usdt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "paper-wallet-usdt.json"), s.Path())

	wallet, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, wallet)

	require.NoError(t, s.Save(map[string]decimal.Decimal{
		"USDT": decimal.NewFromInt(9750),
		"NEAR": decimal.RequireFromString("100.5"),
	}))

	wallet, err = s.Load()
	require.NoError(t, err)
	require.Len(t, wallet, 2)
	assert.True(t, wallet["USDT"].Equal(decimal.NewFromInt(9750)))
	assert.True(t, wallet["NEAR"].Equal(decimal.RequireFromString("100.5")))

	_, err = os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_CorruptFile(t *testing.T) {
	s, err := NewStore(t.TempDir(), "USDT")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"wallet":{"BTC":"abc"}}`), 0o644))

	_, err = s.Load()
	assert.Error(t, err)
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore("", "USDT")
	assert.Error(t, err)
}
