package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestForwardedKeyFunc_Precedence(t *testing.T) {
	fn := ForwardedKeyFunc("")

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"xff first hop", map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8", "X-Real-IP": "9.9.9.9"}, "1.2.3.4"},
		{"real ip when no xff", map[string]string{"X-Real-IP": " 9.9.9.9 "}, "9.9.9.9"},
		{"empty xff falls through", map[string]string{"X-Forwarded-For": " , 5.6.7.8", "X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
		{"unknown sentinel", nil, "unknown"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
			// RemoteAddr nunca é usado aqui
			r.RemoteAddr = "10.0.0.1:1234"
			for k, v := range c.headers {
				r.Header.Set(k, v)
			}
			if got := fn(r); got != c.want {
				t.Fatalf("expected %q, got %q", c.want, got)
			}
		})
	}
}

func TestForwardedKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := ForwardedKeyFunc("X-Api-Key")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Api-Key", " client-123 ")
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc("X-Client", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultKeyFunc("", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultKeyFunc_IgnoresXFFWhenUntrusted(t *testing.T) {
	fn := DefaultKeyFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestDefaultKeyFunc_UnknownWithoutRemoteAddr(t *testing.T) {
	fn := DefaultKeyFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = ""

	if got := fn(r); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestForwardedKeyFunc_RejectsValuesThatAreNotAddresses(t *testing.T) {
	fn := ForwardedKeyFunc("")

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"huge xff", map[string]string{"X-Forwarded-For": strings.Repeat("a", 64*1024)}, "unknown"},
		{"garbage xff falls to real ip", map[string]string{"X-Forwarded-For": "not-an-ip", "X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
		{"garbage real ip", map[string]string{"X-Real-IP": "<script>"}, "unknown"},
		{"ip with port", map[string]string{"X-Forwarded-For": "1.2.3.4:5678"}, "1.2.3.4"},
		{"ipv6 canonical", map[string]string{"X-Forwarded-For": "2001:DB8:0:0::1"}, "2001:db8::1"},
		{"ipv4-mapped ipv6", map[string]string{"X-Forwarded-For": "::ffff:1.2.3.4"}, "1.2.3.4"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
			for k, v := range c.headers {
				r.Header.Set(k, v)
			}
			if got := fn(r); got != c.want {
				t.Fatalf("expected %q, got %q", c.want, got)
			}
		})
	}
}

func TestHeaderKey_IsTruncated(t *testing.T) {
	fn := ForwardedKeyFunc("X-Api-Key")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Api-Key", strings.Repeat("k", 10_000))

	if got := fn(r); len(got) != maxHeaderKeyLen {
		t.Fatalf("expected key truncated to %d bytes, got %d", maxHeaderKeyLen, len(got))
	}
}
