// Package main provides a CI-friendly smoke test for the warden admin channel.
//
// It validates:
//   - login and access token issuance
//   - handshake + subprotocol selection
//   - CONNECTION_SUCCESS greeting
//   - MESSAGE_RECEIVED echo
//   - with -takeover: FORCED_LOGOUT_NOTICE on a second login, and the old
//     token rejected afterwards
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "warden/shared/contracts/notify/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

func main() {
	var (
		baseURL  = flag.String("base", "http://127.0.0.1:8080", "Edge or authority base URL")
		origin   = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		email    = flag.String("email", "admin@example.com", "Administrator email")
		pass     = flag.String("password", "", "Administrator password")
		takeover = flag.Bool("takeover", false, "Log in a second time and expect a takeover notice")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -base: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	if *pass == "" {
		fatalf("-password is required")
	}

	root := context.Background()
	base := strings.TrimRight(*baseURL, "/")

	token := mustLogin(root, base, *email, *pass, "ws-smoke/first", *timeout)
	conn := mustConnect(root, base, token, *origin, *timeout)
	defer closeWS(conn)

	greeting := mustRead(root, conn, v1.TypeConnectionSuccess, *timeout)
	if *verbose {
		fmt.Printf("connected: %s\n", greeting)
	}

	mustWrite(root, conn, []byte(`{"ping":"ws-smoke"}`), *timeout)
	echo := mustRead(root, conn, v1.TypeMessageReceived, *timeout)
	var got v1.MessageReceived
	if err := json.Unmarshal(echo, &got); err != nil {
		fatalf("unmarshal echo: %v", err)
	}
	if !bytes.Contains(got.Payload, []byte("ws-smoke")) {
		fatalf("echo payload mismatch: %s", got.Payload)
	}

	if *takeover {
		mustLogin(root, base, *email, *pass, "ws-smoke/second", *timeout)

		raw := mustRead(root, conn, v1.TypeForcedLogoutNotice, *timeout)
		var notice v1.ForcedLogoutNotice
		if err := json.Unmarshal(raw, &notice); err != nil {
			fatalf("unmarshal notice: %v", err)
		}
		if notice.NewLoginDetails.UserAgent != "ws-smoke/second" {
			fatalf("notice user agent mismatch: %q", notice.NewLoginDetails.UserAgent)
		}
		if *verbose {
			fmt.Printf("takeover: %s\n", raw)
		}

		if status := verifyStatus(root, base, token, *timeout); status != http.StatusUnauthorized {
			fatalf("previous token still accepted after takeover: status=%d", status)
		}
	}

	fmt.Println("OK")
}

func mustLogin(parent context.Context, base, email, password, userAgent string, stepTimeout time.Duration) string {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/auth/login", bytes.NewReader(body))
	if err != nil {
		fatalf("login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("login: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != http.StatusOK {
		fatalf("login: status=%d body=%s", resp.StatusCode, raw)
	}
	var out struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Data.AccessToken == "" {
		fatalf("login: no access token in %s", raw)
	}
	return out.Data.AccessToken
}

func verifyStatus(parent context.Context, base, token string, stepTimeout time.Duration) int {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/auth/verify", nil)
	if err != nil {
		fatalf("verify request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("verify: %v", err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func mustConnect(parent context.Context, base, token, origin string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	u, _ := url.Parse(base)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	h := http.Header{}
	if origin != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		fatalf("connect: status=%d: %v", status, err)
	}
	conn.SetReadLimit(maxReadBytes)

	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, v1.Subprotocol)
	}
	return conn
}

func mustWrite(parent context.Context, conn *websocket.Conn, payload []byte, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		fatalf("write: %v", err)
	}
}

// mustRead skips frames until one of type want arrives.
func mustRead(parent context.Context, conn *websocket.Conn, want string, stepTimeout time.Duration) []byte {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			fatalf("waiting for %s: %v", want, err)
		}
		typ, err := v1.PeekType(raw)
		if err != nil {
			fatalf("bad frame %q: %v", raw, err)
		}
		if typ == want {
			return raw
		}
		if typ == v1.TypeError {
			fatalf("server error frame while waiting for %s: %s", want, raw)
		}
	}
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
