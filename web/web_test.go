package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mhsanaei/3x-ui-usage/config"
	"github.com/mhsanaei/3x-ui-usage/database"
	"github.com/mhsanaei/3x-ui-usage/web/entity"
	"github.com/mhsanaei/3x-ui-usage/web/service"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type failingRunner struct{}

func (failingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, errors.New("executable file not found in $PATH")
}

func newTestServer(t *testing.T, rateLimit string, opts ...func(*config.Config)) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "x-ui.db")
	require.NoError(t, database.CreateMockDB(dbPath, database.MockOptions{Now: refTime}))
	db, err := database.Open(dbPath, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	frontend := filepath.Join(dir, "frontend")
	require.NoError(t, os.MkdirAll(frontend, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(frontend, "index.html"), []byte("<html>dashboard</html>"), 0o644))

	cfg := config.Default()
	cfg.DBPath = dbPath
	cfg.RateLimit = rateLimit
	cfg.FrontendDir = frontend
	cfg.TelegramAdminURL = "https://t.me/admin"
	for _, opt := range opts {
		opt(cfg)
	}

	s := NewServer(cfg, db)
	s.trafficService.Now = func() time.Time { return refTime }
	s.speedTestService = service.NewSpeedTestService(failingRunner{}, time.Second, true)

	engine, err := s.initRouter()
	require.NoError(t, err)
	return s, engine
}

func get(engine *gin.Engine, target string) *httptest.ResponseRecorder {
	return getFrom(engine, target, "")
}

func getFrom(engine *gin.Engine, target, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.10:51000"
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestUsageEndToEnd(t *testing.T) {
	_, engine := newTestServer(t, "100/minute")

	w := get(engine, "/api/usage?uuid=00000000-0000-0000-0000-000000000001")
	require.Equal(t, http.StatusOK, w.Code)

	var traffic entity.UserTraffic
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &traffic))
	assert.Equal(t, "user1@example.com", traffic.Username)
	assert.Equal(t, int64(5_000_000_000), traffic.Upload)
	assert.Equal(t, int64(10_000_000_000), traffic.Download)
	assert.Equal(t, int64(15_000_000_000), traffic.Total)
	assert.Equal(t, 4.66, traffic.UploadGB)
	assert.Equal(t, 9.31, traffic.DownloadGB)
	assert.Equal(t, 13.97, traffic.TotalGB)
	assert.Equal(t, "VLESS TCP", traffic.Inbound)
	assert.Equal(t, entity.StatusActive, traffic.Status)

	w = get(engine, "/api/usage?username=user3@example.com")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &traffic))
	assert.Equal(t, entity.StatusExpired, traffic.Status)

	w = get(engine, "/api/usage?uuid=ffffffff-0000-0000-0000-000000000000")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found","detail":"No user found with the provided identifier"}`, w.Body.String())

	w = get(engine, "/api/usage")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetadataEndToEnd(t *testing.T) {
	_, engine := newTestServer(t, "100/minute")

	w := get(engine, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	w = get(engine, "/api/admin-contact")
	assert.JSONEq(t, `{"telegram_url":"https://t.me/admin"}`, w.Body.String())

	w = get(engine, "/api/speed-test")
	require.Equal(t, http.StatusOK, w.Code)
	var result entity.SpeedTestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Contains(t, result.Note, "Mock data")

	w = get(engine, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Not found"`)
}

func TestFrontendFallbackEndToEnd(t *testing.T) {
	_, engine := newTestServer(t, "100/minute")

	w := get(engine, "/dashboard/some/client/route")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dashboard")
}

func TestRateLimitEndToEnd(t *testing.T) {
	_, engine := newTestServer(t, "3/minute")

	for i := 0; i < 3; i++ {
		w := get(engine, "/api/health")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}
	w := get(engine, "/api/health")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")

	// The frontend is not rate limited.
	w = get(engine, "/")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	_, engine := newTestServer(t, "3/minute")

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		w := getFrom(engine, "/api/health", fmt.Sprintf("10.9.9.%d", i))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 200, 429, 429}, codes)
}

func TestRateLimitHonoursTrustedProxy(t *testing.T) {
	_, engine := newTestServer(t, "1/minute", func(c *config.Config) {
		c.TrustedProxies = []string{"192.0.2.10"}
	})

	for i := 0; i < 3; i++ {
		w := getFrom(engine, "/api/health", fmt.Sprintf("10.9.9.%d", i))
		assert.Equal(t, http.StatusOK, w.Code, "client 10.9.9.%d", i)
	}
	w := getFrom(engine, "/api/health", "10.9.9.0")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestInvalidTrustedProxy(t *testing.T) {
	s := NewServer(config.Default(), nil)
	s.cfg.TrustedProxies = []string{"not-an-address"}
	_, err := s.initRouter()
	assert.Error(t, err)
}

func TestDebugHealthDiagnostics(t *testing.T) {
	_, engine := newTestServer(t, "100/minute", func(c *config.Config) {
		c.Debug = true
	})

	w := get(engine, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
	assert.Contains(t, w.Body.String(), `"logs":`)

	_, engine = newTestServer(t, "100/minute")
	w = get(engine, "/api/health")
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	_, engine := newTestServer(t, "100/minute")

	req := httptest.NewRequest(http.MethodOptions, "/api/usage", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestInvalidRateLimit(t *testing.T) {
	s := NewServer(config.Default(), nil)
	s.cfg.RateLimit = "often"
	_, err := s.initRouter()
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s, _ := newTestServer(t, "100/minute")
	s.cfg.Host = "127.0.0.1"
	s.cfg.Port = 0
	s.cfg.DBCheckCron = "@every 1h"

	require.NoError(t, s.Start())
	require.NotNil(t, s.Addr())
	assert.Len(t, s.cron.Entries(), 1)

	resp, err := http.Get("http://" + s.Addr().String() + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
	assert.Error(t, s.ctx.Err())
}

type blockingRunner struct {
	once    sync.Once
	started chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.once.Do(func() { close(r.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStopCancelsRunningSpeedTest(t *testing.T) {
	s, _ := newTestServer(t, "100/minute")
	s.cfg.Host = "127.0.0.1"
	s.cfg.Port = 0
	s.cfg.DBCheckCron = ""
	runner := &blockingRunner{started: make(chan struct{})}
	s.speedTestService = service.NewSpeedTestService(runner, time.Minute, true)

	require.NoError(t, s.Start())

	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + s.Addr().String() + "/api/speed-test")
		if err != nil {
			done <- result{err: err}
			return
		}
		_ = resp.Body.Close()
		done <- result{code: resp.StatusCode}
	}()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("speed test never started")
	}
	require.NoError(t, s.Stop())

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, http.StatusInternalServerError, r.code)
	case <-time.After(5 * time.Second):
		t.Fatal("speed test kept running after Stop")
	}
}
