package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"spendwise/internal/log"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector(log.Discard())
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		xff    string
		want   bool
	}{
		{"plain api call", http.MethodGet, "/api/summary?year=2025&month=3", "spendwise-app/1.0", "", false},
		{"path traversal", http.MethodGet, "/api/../../etc/passwd", "", "", true},
		{"dotenv probe", http.MethodGet, "/.env", "", "", true},
		{"sql injection in query", http.MethodGet, "/api/transactions?q=1%20union%20select", "", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", "", true},
		{"trace method", "TRACE", "/", "", "", true},
		{"long url", http.MethodGet, "/" + strings.Repeat("a", 2100), "", "", true},
		{"proxy chain", http.MethodGet, "/", "", "1.1.1.1,2.2.2.2,3.3.3.3,4.4.4.4,5.5.5.5,6.6.6.6,7.7.7.7", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.agent != "" {
				r.Header.Set("User-Agent", tt.agent)
			}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := d.DetectSuspiciousRequest(r); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMiddlewareCountsButServes(t *testing.T) {
	d := NewDetector(log.Discard())
	r := gin.New()
	r.Use(d.Middleware())
	r.GET("/*any", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("suspicious requests are only flagged, got %d", w.Code)
	}
	if d.Suspicious() != 1 {
		t.Fatalf("expected 1 flagged request, got %d", d.Suspicious())
	}
}

func TestTrustedProxies(t *testing.T) {
	d := NewDetector(nil)
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Fatal("expected invalid CIDR error")
	}
	if err := d.AddTrustedProxy("100.64.0.0/10"); err != nil {
		t.Fatal(err)
	}
	got := d.TrustedProxies()
	if len(got) != len(DefaultTrustedProxies)+1 || got[len(got)-1] != "100.64.0.0/10" {
		t.Fatalf("unexpected proxies %v", got)
	}
}

func TestHeaders(t *testing.T) {
	r := gin.New()
	r.Use(Headers(DefaultHeadersConfig()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Content-Type-Options") != "nosniff" || w.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing hardening headers: %v", w.Header())
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if !strings.HasPrefix(w.Header().Get("Strict-Transport-Security"), "max-age=31536000") {
		t.Fatalf("expected HSTS over TLS, got %q", w.Header().Get("Strict-Transport-Security"))
	}
}
