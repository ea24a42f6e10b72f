package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/senyabanana/hospital-service/internal/metrics"
	"github.com/senyabanana/hospital-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret"

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	vendor := models.User{ID: "vendor-1", Name: "Acme", Role: models.VendorRole}

	valid, err := auth.IssueToken(vendor, time.Hour)
	require.NoError(t, err)
	expired, err := auth.IssueToken(vendor, -time.Hour)
	require.NoError(t, err)
	foreign, err := NewAuthenticator("other-secret").IssueToken(vendor, time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             models.VendorRole,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "vendor-1"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	var seen models.User
	handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{name: "valid", header: "Bearer " + valid, code: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + valid, code: http.StatusNoContent},
		{name: "missing", code: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", code: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, code: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, code: http.StatusUnauthorized},
		{name: "no expiry", header: "Bearer " + noExpiry, code: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not.a.token", code: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/bids/my", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
	assert.Equal(t, vendor, seen)
}

func TestRequireRoles(t *testing.T) {
	handler := RequireRoles(models.DispatcherRole)(okHandler)

	tests := []struct {
		name string
		user *models.User
		code int
	}{
		{name: "anonymous", code: http.StatusUnauthorized},
		{name: "dispatcher", user: &models.User{ID: "d", Role: models.DispatcherRole}, code: http.StatusNoContent},
		{name: "admin bypass", user: &models.User{ID: "a", Role: models.AdminRole}, code: http.StatusNoContent},
		{name: "vendor", user: &models.User{ID: "v", Role: models.VendorRole}, code: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), *tt.user))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	limiter, err := NewRateLimiter(0.001, 2, nil, m)
	require.NoError(t, err)
	handler := limiter.Middleware(okHandler)

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))
}

func TestRateLimiterIgnoresForwardedHeadersFromUntrustedPeer(t *testing.T) {
	limiter, err := NewRateLimiter(0.001, 1, nil, nil)
	require.NoError(t, err)
	handler := limiter.Middleware(okHandler)

	limited := 0
	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.1.0.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 99, limited)
}

func TestRateLimiterTrustedProxy(t *testing.T) {
	limiter, err := NewRateLimiter(0.001, 1, []string{"10.0.0.0/8"}, nil)
	require.NoError(t, err)
	handler := limiter.Middleware(okHandler)

	call := func(xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.RemoteAddr = "10.0.0.5:40000"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("198.51.100.1"))
	assert.Equal(t, http.StatusNoContent, call("198.51.100.2"))
	// Значение, подставленное самим клиентом левее реального адреса, не создаёт новый лимитер.
	assert.Equal(t, http.StatusTooManyRequests, call("1.2.3.4, 198.51.100.2"))
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	limiter, err := NewRateLimiter(0.001, 1, nil, nil)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter.Now = func() time.Time { return now }

	assert.True(t, limiter.Allow("198.51.100.1"))
	assert.False(t, limiter.Allow("198.51.100.1"))

	for i := 0; i < maxLimiters; i++ {
		limiter.Allow(fmt.Sprintf("key-%d", i))
	}
	assert.LessOrEqual(t, len(limiter.limiters), maxLimiters)

	now = now.Add(limiterIdle + time.Second)
	assert.True(t, limiter.Allow("198.51.100.9"))
	assert.Len(t, limiter.limiters, 1)
}

func TestRateLimiterFullTableKeepsActiveClients(t *testing.T) {
	limiter, err := NewRateLimiter(0.001, 1, nil, nil)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter.Now = func() time.Time { return now }

	assert.True(t, limiter.Allow("198.51.100.1"))
	for i := 0; i < maxLimiters+10; i++ {
		now = now.Add(time.Millisecond)
		limiter.Allow(fmt.Sprintf("key-%d", i))
		if i%1000 == 0 {
			assert.False(t, limiter.Allow("198.51.100.1"))
		}
	}
	assert.Len(t, limiter.limiters, maxLimiters)
	assert.False(t, limiter.Allow("198.51.100.1"))
}

func TestNewRateLimiterRejectsBadProxy(t *testing.T) {
	_, err := NewRateLimiter(1, 1, []string{"not-an-ip"}, nil)
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"192.168.1.5", "10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		trusted    []netip.Prefix
		want       string
	}{
		{name: "no headers", remoteAddr: "192.168.1.5:1234", want: "192.168.1.5"},
		{name: "untrusted peer ignores headers", remoteAddr: "203.0.113.7:1234", xff: "10.9.9.9", realIP: "10.1.1.1", trusted: trusted, want: "203.0.113.7"},
		{name: "no trusted proxies configured", remoteAddr: "192.168.1.5:1234", xff: "198.51.100.1", want: "192.168.1.5"},
		{name: "trusted peer real ip", remoteAddr: "192.168.1.5:1234", realIP: "198.51.100.1", trusted: trusted, want: "198.51.100.1"},
		{name: "trusted peer xff", remoteAddr: "192.168.1.5:1234", xff: "198.51.100.1", trusted: trusted, want: "198.51.100.1"},
		{name: "chain skips trusted hops", remoteAddr: "192.168.1.5:1234", xff: "1.2.3.4, 198.51.100.1, 10.0.0.3", trusted: trusted, want: "198.51.100.1"},
		{name: "garbage xff falls back to peer", remoteAddr: "192.168.1.5:1234", xff: "unknown", trusted: trusted, want: "192.168.1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, clientIP(req, tt.trusted))
		})
	}
}

func TestRequestLoggerAndRecover(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Chain(panicking, RequestLogger(logger), Recover(logger))

	req := httptest.NewRequest(http.MethodGet, "/api/tenders", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusInternalServerError), fields["status"])
	assert.Equal(t, "req-42", fields["request_id"])
}

func TestInstrument(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	mux := http.NewServeMux()
	mux.Handle("GET /api/tenders/{tenderId}", okHandler)
	handler := Instrument(m)(mux)

	for _, path := range []string{"/api/tenders/1", "/api/tenders/2", "/nowhere"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "GET /api/tenders/{tenderId}", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
}
