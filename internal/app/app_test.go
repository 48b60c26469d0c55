package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/almoxarifado/almoxarifado/internal/locations"
	"github.com/almoxarifado/almoxarifado/internal/observability"
	"github.com/almoxarifado/almoxarifado/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, LockBackendLocal, cfg.LockBackend)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Greater(t, cfg.LockTTL, cfg.LockTimeout)
}

func TestLoadConfigRejectsUnknownLockBackend(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "etcd")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestRequireActor(t *testing.T) {
	var seen string
	h := RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set(ActorHeader, " ana ")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "ana", seen)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRouterWiring(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:           &Config{},
		Metrics:          observability.NewMetrics(),
		LocationsHandler: locations.NewHandler(nil, nil),
		Ready: map[string]Pinger{
			"postgres": pingFunc(func(context.Context) error { return nil }),
			"redis":    pingFunc(func(context.Context) error { return errors.New("down") }),
		},
	})

	cases := []struct {
		path   string
		header bool
		code   int
	}{
		{"/healthz", false, http.StatusOK},
		{"/readyz", false, http.StatusServiceUnavailable},
		{"/metrics", false, http.StatusOK},
		{"/api/locations", false, http.StatusUnauthorized},
		{"/api/unknown", true, http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header {
			req.Header.Set(ActorHeader, "ana")
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, tc.code, rec.Code, tc.path)
		require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"), tc.path)
	}
}
