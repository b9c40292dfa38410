package edge

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
)

// ProxyConfig names the two backends behind the edge.
type ProxyConfig struct {
	// AuthorityURL receives AuthorityPrefixes (login, refresh, admin, realtime).
	AuthorityURL string

	// UpstreamURL receives everything else.
	UpstreamURL string

	AuthorityPrefixes []string
}

// DefaultAuthorityPrefixes are routed to the authority.
var DefaultAuthorityPrefixes = []string{"/auth/", "/ws"}

type route struct {
	prefix string
	proxy  *httputil.ReverseProxy
}

// Proxy routes by longest path prefix. WebSocket upgrades pass through.
type Proxy struct {
	routes   []route
	fallback *httputil.ReverseProxy
}

// NewProxy validates cfg and builds the reverse proxies.
func NewProxy(cfg ProxyConfig, log *slog.Logger) (*Proxy, error) {
	if log == nil {
		log = slog.Default()
	}
	authority, err := parseBackend("authority", cfg.AuthorityURL)
	if err != nil {
		return nil, err
	}
	upstream, err := parseBackend("upstream", cfg.UpstreamURL)
	if err != nil {
		return nil, err
	}

	prefixes := cfg.AuthorityPrefixes
	if len(prefixes) == 0 {
		prefixes = DefaultAuthorityPrefixes
	}

	toAuthority := newReverseProxy(authority, "authority", log)
	p := &Proxy{fallback: newReverseProxy(upstream, "upstream", log)}
	for _, pre := range prefixes {
		pre = strings.TrimSpace(pre)
		if pre == "" {
			continue
		}
		p.routes = append(p.routes, route{prefix: pre, proxy: toAuthority})
	}
	sort.SliceStable(p.routes, func(i, j int) bool { return len(p.routes[i].prefix) > len(p.routes[j].prefix) })
	return p, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, rt := range p.routes {
		if strings.HasPrefix(r.URL.Path, rt.prefix) {
			rt.proxy.ServeHTTP(w, r)
			return
		}
	}
	p.fallback.ServeHTTP(w, r)
}

func parseBackend(name, raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %s url %q", ErrConfig, name, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s url scheme %q", ErrConfig, name, u.Scheme)
	}
	return u, nil
}

func newReverseProxy(target *url.URL, name string, log *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.Header["X-Forwarded-For"] = pr.In.Header["X-Forwarded-For"]
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error("edge.proxy.fail", "backend", name, "path", r.URL.Path, "err", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}
