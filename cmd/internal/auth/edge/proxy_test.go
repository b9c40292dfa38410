package edge

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func backend(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Backend", name)
		w.Header().Set("Seen-User-Id", r.Header.Get(HeaderUserID))
		w.Header().Set("Seen-XFF", r.Header.Get("X-Forwarded-For"))
		_, _ = io.WriteString(w, r.URL.Path)
	}))
}

func TestProxy_RoutesByPrefix(t *testing.T) {
	t.Parallel()

	authority := backend("authority")
	defer authority.Close()
	upstream := backend("upstream")
	defer upstream.Close()

	p, err := NewProxy(ProxyConfig{AuthorityURL: authority.URL, UpstreamURL: upstream.URL}, nil)
	if err != nil {
		t.Fatalf("NewProxy: %v", err)
	}
	front := httptest.NewServer(p)
	defer front.Close()

	cases := []struct {
		path string
		want string
	}{
		{path: "/auth/login", want: "authority"},
		{path: "/auth/admin/users", want: "authority"},
		{path: "/ws", want: "authority"},
		{path: "/diary/entries", want: "upstream"},
		{path: "/", want: "upstream"},
	}
	for _, tc := range cases {
		resp, err := http.Get(front.URL + tc.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if got := resp.Header.Get("Backend"); got != tc.want {
			t.Fatalf("%s routed to %q want %q", tc.path, got, tc.want)
		}
		if string(body) != tc.path {
			t.Fatalf("%s: backend saw path %q", tc.path, body)
		}
		if resp.Header.Get("Seen-XFF") == "" {
			t.Fatalf("%s: X-Forwarded-For not set", tc.path)
		}
	}
}

func TestProxy_ForwardsIdentityHeaders(t *testing.T) {
	t.Parallel()

	upstream := backend("upstream")
	defer upstream.Close()

	p, err := NewProxy(ProxyConfig{AuthorityURL: upstream.URL, UpstreamURL: upstream.URL}, nil)
	if err != nil {
		t.Fatalf("NewProxy: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/diary", nil)
	req.Header.Set(HeaderUserID, "42")
	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, req)

	if rr.Header().Get("Seen-User-Id") != "42" {
		t.Fatalf("identity header not forwarded: %q", rr.Header().Get("Seen-User-Id"))
	}
}

func TestNewProxy_Validation(t *testing.T) {
	t.Parallel()

	cases := []ProxyConfig{
		{AuthorityURL: "", UpstreamURL: "http://a"},
		{AuthorityURL: "http://a", UpstreamURL: "not a url"},
		{AuthorityURL: "ftp://a", UpstreamURL: "http://b"},
	}
	for _, cfg := range cases {
		if _, err := NewProxy(cfg, nil); !errors.Is(err, ErrConfig) {
			t.Fatalf("%+v: expected ErrConfig, got %v", cfg, err)
		}
	}
}
