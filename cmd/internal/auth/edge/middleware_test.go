package edge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"warden/cmd/internal/auth/codec"
)

type stubAuth struct {
	tokens map[string]Identity
	got    []string
}

func (s *stubAuth) Verify(_ context.Context, token string) (Identity, error) {
	s.got = append(s.got, token)
	if id, ok := s.tokens[token]; ok {
		return id, nil
	}
	return Identity{}, reject(ReasonBlacklisted, nil)
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Got-User-Id", r.Header.Get(HeaderUserID))
		w.Header().Set("Got-User-Email", r.Header.Get(HeaderUserEmail))
		w.Header().Set("Got-User-Role", r.Header.Get(HeaderUserRole))
		if _, ok := IdentityFrom(r.Context()); ok {
			w.Header().Set("Got-Identity", "yes")
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	auth := &stubAuth{tokens: map[string]Identity{
		"good": {UserID: 42, Email: "u@example.com", Role: codec.RoleAdmin},
	}}
	h := Middleware(auth, DefaultMiddlewareConfig(), nil)(echoIdentity())

	cases := []struct {
		name       string
		path       string
		headers    map[string]string
		wantStatus int
		wantUserID string
	}{
		{name: "valid bearer", path: "/diary", headers: map[string]string{"Authorization": "Bearer good"}, wantStatus: 204, wantUserID: "42"},
		{name: "lowercase scheme", path: "/diary", headers: map[string]string{"Authorization": "bearer good"}, wantStatus: 204, wantUserID: "42"},
		{name: "missing", path: "/diary", wantStatus: 401},
		{name: "basic scheme", path: "/diary", headers: map[string]string{"Authorization": "Basic good"}, wantStatus: 401},
		{name: "revoked", path: "/diary", headers: map[string]string{"Authorization": "Bearer bad"}, wantStatus: 401},
		{name: "refresh skipped", path: "/auth/refresh", wantStatus: 204},
		{name: "login public", path: "/auth/login", wantStatus: 204},
		{name: "spoofed identity stripped", path: "/auth/login", headers: map[string]string{HeaderUserID: "1"}, wantStatus: 204, wantUserID: ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		for k, v := range tc.headers {
			req.Header.Set(k, v)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != tc.wantStatus {
			t.Fatalf("%s: status=%d want=%d", tc.name, rr.Code, tc.wantStatus)
		}
		if rr.Code == 204 && rr.Header().Get("Got-User-Id") != tc.wantUserID {
			t.Fatalf("%s: forwarded user id=%q want=%q", tc.name, rr.Header().Get("Got-User-Id"), tc.wantUserID)
		}
	}
}

func TestMiddleware_UniformRejectionBody(t *testing.T) {
	t.Parallel()

	h := Middleware(&stubAuth{}, DefaultMiddlewareConfig(), nil)(echoIdentity())

	var bodies []string
	for _, authz := range []string{"", "Bearer malformed", "Bearer blacklisted"} {
		req := httptest.NewRequest(http.MethodGet, "/diary", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status=%d", rr.Code)
		}
		bodies = append(bodies, rr.Body.String())
	}
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Fatalf("rejection bodies differ: %q vs %q", bodies[0], b)
		}
	}

	var resp errorResponse
	if err := json.Unmarshal([]byte(bodies[0]), &resp); err != nil || resp.Error.Code != "unauthorized" {
		t.Fatalf("body=%s err=%v", bodies[0], err)
	}
}

func TestMiddleware_WebSocketQueryToken(t *testing.T) {
	t.Parallel()

	auth := &stubAuth{tokens: map[string]Identity{"wstoken": {UserID: 9, Email: "ws@example.com", Role: codec.RoleSuperAdmin}}}
	h := Middleware(auth, DefaultMiddlewareConfig(), nil)(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/ws?token=wstoken", nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent || rr.Header().Get("Got-User-Email") != "ws@example.com" {
		t.Fatalf("status=%d email=%q", rr.Code, rr.Header().Get("Got-User-Email"))
	}

	// Without the upgrade header the query parameter is ignored.
	req = httptest.NewRequest(http.MethodGet, "/diary?token=wstoken", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("query token outside upgrade: status=%d", rr.Code)
	}
}
