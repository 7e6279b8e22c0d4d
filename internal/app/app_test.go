package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.JWTSecret = "test-secret"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	require.Equal(t, EventBrokerNone, cfg.EventBroker)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, ":50051", cfg.GRPCAddr)
	require.Equal(t, ":9090", cfg.MetricsAddr)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Positive(t, cfg.ShutdownTimeout)
}

func TestNewApplication_Memory(t *testing.T) {
	a, err := newApplication(context.Background(), testConfig(), log.WithField("test", "app"))
	require.NoError(t, err)
	defer a.close()

	require.False(t, a.broker.enabled())
	// без брокера работает только очистка ключей идемпотентности
	require.Len(t, a.workers, 1)

	resp, err := a.http.App().Test(httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNewApplication_RequiresJWTSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""

	_, err := newApplication(context.Background(), cfg, log.WithField("test", "app"))
	require.Error(t, err)
}

func TestNewApplication_MissingBusinessConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BusinessConfigPath = "/nonexistent/vadodara.yaml"

	_, err := newApplication(context.Background(), cfg, log.WithField("test", "app"))
	require.Error(t, err)
}

func TestOpsMux(t *testing.T) {
	a, err := newApplication(context.Background(), testConfig(), log.WithField("test", "ops"))
	require.NoError(t, err)
	defer a.close()

	mux := newOpsMux(a.health)

	for _, path := range []string{"/livez", "/readyz", "/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body struct {
		Status string                     `json:"status"`
		Checks map[string]json.RawMessage `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body.Status)
	require.Contains(t, body.Checks, "storage")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.True(t, strings.Contains(rec.Body.String(), "foodtrack_"), "metrics must expose foodtrack collectors")
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, testConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := testConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}
