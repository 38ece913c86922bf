package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.7:5555", "", "", "203.0.113.7"},
		{"untrusted proxy headers ignored", "203.0.113.7:5555", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy forwards", "10.0.0.2:80", "198.51.100.1, 10.0.0.9", "", "198.51.100.1"},
		{"real ip fallback", "127.0.0.1:80", "not-an-ip", "198.51.100.2", "198.51.100.2"},
		{"no port", "198.51.100.3", "", "", "198.51.100.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/board", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, d.ExtractClientIP(r))
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"board read", http.MethodGet, "/api/board", "Mozilla/5.0", false},
		{"curl is a normal client", http.MethodPost, "/api/archive", "curl/8.5.0", false},
		{"path traversal", http.MethodGet, "/api/../.env", "", true},
		{"query injection", http.MethodGet, "/api/board?q=<script>alert(1)</script>", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
		{"long url", http.MethodGet, "/api/board?x=" + strings.Repeat("a", 2100), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "http://example.com/", nil)
			r.URL.Path, r.URL.RawQuery, _ = strings.Cut(tt.target, "?")
			r.Header.Set("User-Agent", tt.agent)
			assert.Equal(t, tt.want, d.DetectSuspiciousRequest(r))
		})
	}
	assert.Equal(t, int64(5), d.GetMetrics().SuspiciousRequests)
}

func TestDetectorMiddlewarePassesThrough(t *testing.T) {
	d := NewDetector(nil)
	called := false
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	assert.True(t, called)
	assert.Equal(t, int64(1), d.GetMetrics().SuspiciousRequests)
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector(nil)
	require.NoError(t, d.AddTrustedProxy("100.64.0.0/10"))
	assert.Error(t, d.AddTrustedProxy("nope"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "100.64.1.1:443"
	r.Header.Set("X-Forwarded-For", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", d.ExtractClientIP(r))
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/board", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"), "no HSTS over plain HTTP")

	rr = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/board", nil)
	r.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, r)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
}
