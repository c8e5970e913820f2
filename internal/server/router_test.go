package server_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-systems/secmon/internal/cache"
	"github.com/sentinel-systems/secmon/internal/config"
	"github.com/sentinel-systems/secmon/internal/handlers"
	"github.com/sentinel-systems/secmon/internal/logstore"
	secmw "github.com/sentinel-systems/secmon/internal/middleware"
	"github.com/sentinel-systems/secmon/internal/query"
	"github.com/sentinel-systems/secmon/internal/ratelimit"
	"github.com/sentinel-systems/secmon/internal/recorder"
	"github.com/sentinel-systems/secmon/internal/server"
)

const (
	testAPIKey = "router-test-key"
	testSecret = "router-test-secret"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := logstore.New(logstore.Options{Dir: t.TempDir(), Logger: logger})
	require.NoError(t, err)

	c := cache.New(100)
	rec := recorder.New(store, c, logger)

	sec, err := secmw.NewSecurity(config.SecurityConfig{
		AuditLogs:            true,
		SensitiveURLPatterns: []string{`^/graphql/.*$`},
		PermissionRules:      config.DefaultPermissionRules(),
	}, ratelimit.NoOpLimiter{}, ratelimit.NoOpLimiter{}, rec, logger)
	require.NoError(t, err)

	auth := secmw.NewAuthenticator(testSecret)
	h := handlers.New(rec, query.New(store), c, testAPIKey, logger)
	return server.NewRouter(h, auth, sec)
}

func staffToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, secmw.Claims{
		UserID: "1",
		Staff:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestRouter_HealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, "GET %s", path)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	}
}

func TestRouter_IngestThenQuery(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/security/events",
		strings.NewReader(`{"event_type": "login_failed", "user_id": "42"}`))
	req.Header.Set("X-API-Key", testAPIKey)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/security/events", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t))
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"login_failed"`)
}

func TestRouter_QueryEndpointsRequireStaff(t *testing.T) {
	srv := newTestServer(t)

	paths := []string{
		"/api/security/events",
		"/api/security/events/export",
		"/api/security/recent",
		"/api/security/dashboard",
		"/api/security/event-types",
	}
	for _, path := range paths {
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "GET %s without token", path)
	}

	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+staffToken(t))
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "GET %s with staff token", path)
	}
}

func TestRouter_IngestRejectsMissingAPIKey(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/security/events",
		strings.NewReader(`{"event_type": "login_failed"}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_MetricsExposed(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
