package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/print24/pricing/internal/health"
)

type stubChecker struct {
	dbErr    error
	redisErr error
}

func (s stubChecker) PingDB(context.Context, time.Duration) error    { return s.dbErr }
func (s stubChecker) PingRedis(context.Context, time.Duration) error { return s.redisErr }

func probeReady(t *testing.T, h health.Handler) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	return rr
}

func TestLiveIgnoresDependencies(t *testing.T) {
	// Live has no Checker on purpose: dependency failures must not make
	// the orchestrator restart the process.
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyReportsPerProbe(t *testing.T) {
	cases := []struct {
		name      string
		checker   stubChecker
		wantCode  int
		wantDB    string
		wantRedis string
	}{
		{"all healthy", stubChecker{}, http.StatusOK, "ok", "ok"},
		{"db down", stubChecker{dbErr: errors.New("db down")}, http.StatusServiceUnavailable, "db down", "ok"},
		{"redis down", stubChecker{redisErr: errors.New("redis down")}, http.StatusServiceUnavailable, "ok", "redis down"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := health.Handler{Checker: tc.checker, DBTimeout: 20 * time.Millisecond, RedisTimeout: 20 * time.Millisecond}
			rr := probeReady(t, h)

			require.Equal(t, tc.wantCode, rr.Code)
			var status map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
			require.Equal(t, tc.wantDB, status["db"])
			require.Equal(t, tc.wantRedis, status["redis"])
		})
	}
}

func TestReadyWithoutChecker(t *testing.T) {
	rr := probeReady(t, health.Handler{})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
