package security

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()

	cases := []struct {
		name       string
		target     string
		userAgent  string
		method     string
		suspicious bool
	}{
		{"plain api call", "/transactions?type=deposit", "Go-http-client/2.0", "GET", false},
		{"curl is fine", "/balance", "curl/8.0", "GET", false},
		{"path traversal", "/transactions/../../etc/passwd", "", "GET", true},
		{"env probe", "/.env", "", "GET", true},
		{"sqli in query", "/transactions?search=union%20select", "", "GET", true},
		{"scanner agent", "/transactions", "sqlmap/1.7", "GET", true},
		{"trace method", "/transactions", "", "TRACE", true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.userAgent != "" {
				req.Header.Set("User-Agent", tt.userAgent)
			}
			if got := d.DetectSuspiciousRequest(req); got != tt.suspicious {
				t.Errorf("DetectSuspiciousRequest = %v, want %v", got, tt.suspicious)
			}
		})
	}
}

func TestDetectLongForwardChain(t *testing.T) {
	d := NewDetector()
	req := httptest.NewRequest("GET", "/transactions", nil)
	req.Header.Set("X-Forwarded-For", strings.Repeat("1.2.3.4, ", 7)+"1.2.3.4")
	if !d.DetectSuspiciousRequest(req) {
		t.Error("long forward chain not flagged")
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.9:1234", "", "", "203.0.113.9"},
		{"trusted proxy honors xff", "10.0.0.5:1234", "198.51.100.7", "", "198.51.100.7"},
		{"trusted proxy honors xri", "127.0.0.1:1234", "", "198.51.100.8", "198.51.100.8"},
		{"untrusted peer ignores xff", "203.0.113.9:1234", "198.51.100.7", "", "203.0.113.9"},
		{"garbage xff falls through", "10.0.0.5:1234", "not-an-ip", "", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(req); got != tt.want {
				t.Errorf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()
	if err := d.AddTrustedProxy("100.64.0.0/10"); err != nil {
		t.Fatalf("AddTrustedProxy: %v", err)
	}
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Fatal("expected error for invalid CIDR")
	}
}
