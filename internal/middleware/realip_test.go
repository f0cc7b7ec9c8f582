package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func mustTrustedProxies(t *testing.T, values ...string) TrustedProxies {
	t.Helper()
	trusted, err := ParseTrustedProxies(values)
	if err != nil {
		t.Fatalf("ParseTrustedProxies() error = %v", err)
	}
	return trusted
}

func resolvedClientIP(trusted TrustedProxies, remoteAddr string, xff ...string) string {
	var got string
	h := NewRealIPMiddleware(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for _, v := range xff {
		req.Header.Add("X-Forwarded-For", v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestParseTrustedProxies(t *testing.T) {
	trusted := mustTrustedProxies(t, "10.0.0.0/8", " 192.168.1.10 ", "", "::1")
	if len(trusted) != 3 {
		t.Fatalf("len = %d, want 3", len(trusted))
	}

	if _, err := ParseTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Error("expected error for invalid address")
	}
	if _, err := ParseTrustedProxies([]string{"10.0.0.0/40"}); err == nil {
		t.Error("expected error for invalid prefix")
	}
}

func TestRealIP_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	tests := []struct {
		name    string
		trusted TrustedProxies
	}{
		{"no trusted proxies", nil},
		{"peer outside trusted range", mustTrustedProxies(t, "10.0.0.0/8")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolvedClientIP(tt.trusted, "203.0.113.7:5000", "198.51.100.1")
			if got != "203.0.113.7" {
				t.Errorf("client IP = %q, want the peer address", got)
			}
		})
	}
}

func TestRealIP_TrustedPeer_UsesRightmostUntrustedHop(t *testing.T) {
	trusted := mustTrustedProxies(t, "10.0.0.0/8")

	tests := []struct {
		name string
		xff  []string
		want string
	}{
		{"single hop", []string{"198.51.100.1"}, "198.51.100.1"},
		{"spoofed leftmost entry", []string{"1.2.3.4, 198.51.100.1"}, "198.51.100.1"},
		{"trusted hops skipped", []string{"198.51.100.1, 10.0.0.3", "10.0.0.2"}, "198.51.100.1"},
		{"all hops trusted", []string{"10.0.0.9, 10.0.0.3"}, "10.0.0.9"},
		{"garbage stops the walk", []string{"198.51.100.1, garbage"}, "10.0.0.2"},
		{"no header", nil, "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolvedClientIP(trusted, "10.0.0.2:5000", tt.xff...); got != tt.want {
				t.Errorf("client IP = %q, want %q", got, tt.want)
			}
		})
	}
}
