package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/domain"
	"github.com/vadiminshakov/autotrader/internal/storage/cycles"
)

type stubCycles []cycles.Entry

func (s stubCycles) RecordsAfter(index uint64) ([]cycles.Entry, error) {
	var out []cycles.Entry
	for _, e := range s {
		if e.Index > index {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestServer_Status(t *testing.T) {
	srv := NewServer(":0", func() Status {
		return Status{State: "SLEEPING", Cycles: 3, Succeeded: 2, Failed: 1, PortfolioValue: "84,717.00 USDT"}
	}, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "SLEEPING", got.State)
	assert.Equal(t, 3, got.Cycles)
	assert.Equal(t, "84,717.00 USDT", got.PortfolioValue)
}

func TestServer_Unavailable(t *testing.T) {
	srv := NewServer(":0", nil, nil, nil, zap.NewNop())

	for _, path := range []string{"/metrics", "/cycles/stream"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestServer_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("autotrader_cycles_total 1\n"))
	})
	srv := NewServer(":0", nil, nil, metrics, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autotrader_cycles_total")
}

func TestServer_CycleStream(t *testing.T) {
	store := stubCycles{
		{Index: 1, Record: domain.CycleRecord{ID: "c1", Seq: 1, Result: domain.CycleResult{Status: domain.StatusSuccess}}},
		{Index: 2, Record: domain.CycleRecord{ID: "c2", Seq: 2, Result: domain.CycleResult{Status: domain.StatusSkipped, Reason: "parse_error"}}},
	}
	ts := httptest.NewServer(NewServer(":0", nil, store, nil, zap.NewNop()).Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/cycles/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var ids []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && len(ids) < 2 {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var rec domain.CycleRecord
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &rec))
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"c1", "c2"}, ids)
}
