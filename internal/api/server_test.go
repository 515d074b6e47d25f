// internal/api/server_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clubforge/fantrack/internal/cache"
	"github.com/clubforge/fantrack/internal/config"
	"github.com/clubforge/fantrack/internal/failover"
	"github.com/clubforge/fantrack/internal/orchestrator"
	"github.com/clubforge/fantrack/internal/stats"
)

type stubRouter struct {
	err error
}

func (r *stubRouter) Fetch(ctx context.Context, club, dataset string) ([]stats.RawObservation, failover.Source, error) {
	if r.err != nil {
		return nil, failover.SourcePrimary, r.err
	}
	fans := int64(25_000)
	return []stats.RawObservation{
		{Member: "kita", Day: 1, Fans: &fans},
	}, failover.SourcePrimary, nil
}

func newTestServer(t *testing.T, router orchestrator.Router) *Server {
	t.Helper()

	c, err := cache.NewTieredCache(cache.Config{TTL: time.Hour, Dir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)

	orch := orchestrator.New(router, c, stats.NewDeriver(10_000, nil), zap.NewNop())
	return NewServer(config.Default(), zap.NewNop(), orch)
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &stubRouter{})

	rec := do(t, s, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetDataset(t *testing.T) {
	t.Run("returns derived rows", func(t *testing.T) {
		s := newTestServer(t, &stubRouter{})

		rec := do(t, s, http.MethodGet, "/v1/clubs/akukin/datasets/data")

		require.Equal(t, http.StatusOK, rec.Code)
		var res orchestrator.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "primary", res.Source)
		assert.Empty(t, res.Warning)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, "kita", res.Rows[0].Member)
		require.NotNil(t, res.Rows[0].Fans)
		assert.Equal(t, int64(25_000), *res.Rows[0].Fans)
	})

	t.Run("unavailable datasets return 503", func(t *testing.T) {
		s := newTestServer(t, &stubRouter{err: errors.New("all backends failed: primary: x, secondary: y")})

		rec := do(t, s, http.MethodGet, "/v1/clubs/akukin/datasets/data")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "no data available")
	})
}

func TestCacheAdmin(t *testing.T) {
	t.Run("stats reflect cached datasets", func(t *testing.T) {
		s := newTestServer(t, &stubRouter{})

		// Populate the cache through a normal read first.
		rec := do(t, s, http.MethodGet, "/v1/clubs/akukin/datasets/data")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(t, s, http.MethodGet, "/v1/cache/stats")
		require.Equal(t, http.StatusOK, rec.Code)

		var st cache.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
		assert.Equal(t, 1, st.EntryCount)
	})

	t.Run("invalidate needs both names or neither", func(t *testing.T) {
		s := newTestServer(t, &stubRouter{})

		rec := do(t, s, http.MethodPost, "/v1/cache/invalidate?club=akukin")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, s, http.MethodPost, "/v1/cache/invalidate?club=akukin&dataset=data")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = do(t, s, http.MethodPost, "/v1/cache/invalidate")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalidate all empties the cache", func(t *testing.T) {
		s := newTestServer(t, &stubRouter{})

		rec := do(t, s, http.MethodGet, "/v1/clubs/akukin/datasets/data")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(t, s, http.MethodPost, "/v1/cache/invalidate")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(t, s, http.MethodGet, "/v1/cache/stats")
		var st cache.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
		assert.Zero(t, st.EntryCount)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &stubRouter{})

	rec := do(t, s, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}
