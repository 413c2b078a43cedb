package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/timebank/internal/account"
	"github.com/dukerupert/timebank/internal/config"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/recurrence"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	var cfg config.Config
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.Auth.JWTSecret = "app-test-secret-app-test-secret-32"
	cfg.Auth.JWTIssuer = "timebank-test"
	cfg.Auth.AccessTokenTTL = time.Hour
	cfg.Ledger.TimeZone = "Asia/Seoul"
	cfg.Ledger.BackdateDays = 1
	cfg.Ledger.RetryAttempts = 3
	cfg.Ledger.RetryBase = time.Millisecond
	cfg.Ledger.ReconcileConcurrency = 2
	cfg.RateLimit.AuthAttempts = 20
	cfg.RateLimit.Window = time.Minute
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) (*App, *httptest.Server) {
	t.Helper()
	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	srv := httptest.NewServer(a.Server().Router())
	t.Cleanup(srv.Close)
	return a, srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func register(t *testing.T, srv *httptest.Server, email, role string) account.Result {
	t.Helper()
	resp, data := call(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "secret1", "name": email, "role": role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var res account.Result
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}

func TestEndToEndFamilyFlow(t *testing.T) {
	a, srv := newTestApp(t, testConfig(t))
	today := a.Engine.Today().Format(recurrence.DateLayout)

	kid := register(t, srv, "kid@example.com", model.RoleStudent)
	mom := register(t, srv, "mom@example.com", model.RoleParent)

	resp, _ := call(t, srv, http.MethodGet, "/api/approvals", mom.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "unlinked parent has no family")

	resp, data := call(t, srv, http.MethodPost, "/api/auth/link", mom.Token, map[string]string{"family_code": kid.User.FamilyCode})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = call(t, srv, http.MethodPost, "/api/activities", kid.Token, map[string]any{
		"date": today, "category": "good_deed", "duration_minutes": 40,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var act model.Activity
	require.NoError(t, json.Unmarshal(data, &act))
	assert.Equal(t, model.StatusPending, act.Status)

	resp, _ = call(t, srv, http.MethodPost, "/api/activities/"+act.ID+"/approve", kid.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "route is parents only")

	resp, data = call(t, srv, http.MethodPost, "/api/activities/"+act.ID+"/approve", mom.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = call(t, srv, http.MethodGet, "/api/balance", mom.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var bal model.Balance
	require.NoError(t, json.Unmarshal(data, &bal))
	assert.Equal(t, 60, bal.CurrentBalance)
	assert.Equal(t, kid.User.ID, bal.UserID)
}

func TestAuthRequired(t *testing.T) {
	_, srv := newTestApp(t, testConfig(t))

	resp, _ := call(t, srv, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/api/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/api/categories", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "catalog is public")
}

func TestDeletedUserTokenRejected(t *testing.T) {
	_, srv := newTestApp(t, testConfig(t))
	kid := register(t, srv, "kid@example.com", model.RoleStudent)

	resp, _ := call(t, srv, http.MethodDelete, "/api/me", kid.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/api/me", kid.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.AuthAttempts = 2
	_, srv := newTestApp(t, cfg)

	body := map[string]string{"email": "who@example.com", "password": "secret1"}
	for i := 0; i < 2; i++ {
		resp, _ := call(t, srv, http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := call(t, srv, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv := newTestApp(t, testConfig(t))

	resp, data := call(t, srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	call(t, srv, http.MethodGet, "/api/categories", "", nil)
	resp, data = call(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "timebank_http_requests_total")
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
