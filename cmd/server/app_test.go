package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/scry-queue/internal/config"
	"github.com/phrazzld/scry-queue/internal/retry"
	"github.com/phrazzld/scry-queue/internal/task"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "debug",
			ShutdownTimeout: 2 * time.Second,
		},
		Queue: config.QueueConfig{
			Concurrency: 2,
		},
		Throttle: config.ThrottleConfig{
			Concurrency:   1,
			KeyTTL:        time.Minute,
			SweepInterval: time.Minute,
		},
		Retry: config.RetryConfig{
			InitialDelay: time.Millisecond,
			MaxDelay:     10 * time.Millisecond,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(t *testing.T, cfg *config.Config) *application {
	t.Helper()
	app, err := newApplication(cfg, testLogger())
	require.NoError(t, err)
	return app
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestNewApplication(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := newApplication(nil, testLogger())
		assert.Error(t, err)
	})

	t.Run("wires queue and handlers", func(t *testing.T) {
		app := newTestApp(t, testConfig())
		assert.Equal(t, 2, app.queue.Concurrency())
		assert.False(t, app.queue.Paused())
		assert.Equal(t, 1, app.eventEmitter.HandlerCount())
		assert.Same(t, app.operations, app.builder)
	})

	t.Run("start paused", func(t *testing.T) {
		cfg := testConfig()
		cfg.Queue.StartPaused = true
		app := newTestApp(t, cfg)
		assert.True(t, app.queue.Paused())
	})

	t.Run("retries wrap the builder", func(t *testing.T) {
		cfg := testConfig()
		cfg.Retry.MaxRetries = 2
		app := newTestApp(t, cfg)
		_, ok := app.builder.(*retry.Builder)
		assert.True(t, ok)
	})
}

func TestRouter_Health(t *testing.T) {
	app := newTestApp(t, testConfig())
	router := app.setupRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestRouter_Auth(t *testing.T) {
	t.Run("open without secret", func(t *testing.T) {
		app := newTestApp(t, testConfig())
		w := httptest.NewRecorder()
		app.setupRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/queue", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("secret requires token", func(t *testing.T) {
		cfg := testConfig()
		cfg.Auth.JWTSecret = testSecret
		router := newTestApp(t, cfg).setupRouter()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/queue", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		r := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
		r.Header.Set("Authorization", bearer(t))
		w = httptest.NewRecorder()
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)

		// health stays public
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestServe_EndToEnd(t *testing.T) {
	app := newTestApp(t, testConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := fmt.Sprintf("http://%s", ln.Addr().String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, ln) }()

	resp, err := http.Post(base+"/api/tasks", "application/json",
		strings.NewReader(`{"type":"delay","payload":{"duration_ms":5,"message":"hi"}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Get(base + "/api/queue/idle?timeout=2s")
	require.NoError(t, err)
	var idle struct {
		Idle  bool       `json:"idle"`
		Stats task.Stats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&idle))
	resp.Body.Close()
	assert.True(t, idle.Idle)
	assert.Equal(t, uint64(1), idle.Stats.Succeeded)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestDrain(t *testing.T) {
	app := newTestApp(t, testConfig())

	release := make(chan struct{})
	running := app.queue.Submit(context.Background(), func(ctx context.Context, args ...any) (any, error) {
		<-release
		return "finished", nil
	})
	running2 := app.queue.Submit(context.Background(), func(ctx context.Context, args ...any) (any, error) {
		<-release
		return "finished", nil
	})
	pending := app.queue.Submit(context.Background(), func(ctx context.Context, args ...any) (any, error) {
		return "never", nil
	})
	keyed := app.throttle.Submit(context.Background(), "tenant", func(ctx context.Context, args ...any) (any, error) {
		<-release
		return nil, nil
	})
	keyedPending := app.throttle.Submit(context.Background(), "tenant", func(ctx context.Context, args ...any) (any, error) {
		return nil, nil
	})

	time.AfterFunc(20*time.Millisecond, func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.drain(ctx))

	assert.True(t, app.queue.Paused())
	assert.True(t, app.queue.IsIdle())

	v, err := running.Result()
	require.NoError(t, err)
	assert.Equal(t, "finished", v)
	_, err = running2.Result()
	assert.NoError(t, err)
	_, err = pending.Result()
	assert.ErrorIs(t, err, task.ErrQueueCleared)
	_, err = keyed.Result()
	assert.NoError(t, err)
	_, err = keyedPending.Result()
	assert.ErrorIs(t, err, task.ErrQueueCleared)
}

func TestDrain_TimesOut(t *testing.T) {
	app := newTestApp(t, testConfig())

	release := make(chan struct{})
	defer close(release)
	app.queue.Submit(context.Background(), func(ctx context.Context, args ...any) (any, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := app.drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
}

func TestRunServer_BadConfig(t *testing.T) {
	err := runServer(context.Background(), "/nonexistent/config.yaml")
	assert.ErrorContains(t, err, "failed to load configuration")
}
