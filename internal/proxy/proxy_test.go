package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestProxy(t *testing.T, backend string, cfg Config) *Proxy {
	t.Helper()
	u, err := url.Parse(backend)
	if err != nil {
		t.Fatal(err)
	}
	cfg.ProxyToURL = u
	return New(cfg)
}

func TestForwardPreservesRequestAndResponse(t *testing.T) {
	const rpcRequest = `{"jsonrpc":"2.0","method":"chain_getBlock","id":1}`
	const rpcResponse = `{"jsonrpc":"2.0","result":"0xdeadbeef","id":1}`

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/" {
			t.Errorf("path = %s, want /", r.URL.Path)
		}
		if got := r.Header.Get("X-Custom"); got != "keep-me" {
			t.Errorf("X-Custom = %q, want keep-me", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != rpcRequest {
			t.Errorf("body = %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, rpcResponse)
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL, Config{})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(rpcRequest))
	req.Header.Set("X-Custom", "keep-me")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	p.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != rpcResponse {
		t.Errorf("body = %s, want %s", got, rpcResponse)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestForwardJoinsPathAndQuery(t *testing.T) {
	var seen string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.RequestURI()
	}))
	defer backend.Close()

	// Trailing slash on the backend URL must not produce a double slash.
	p := newTestProxy(t, backend.URL+"/", Config{})

	req := httptest.NewRequest(http.MethodGet, "/sub/path?a=1&b=2", nil)
	p.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "/sub/path?a=1&b=2" {
		t.Errorf("upstream saw %q, want /sub/path?a=1&b=2", seen)
	}
}

func TestForwardStripsHostHeader(t *testing.T) {
	var seenHost string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHost = r.Host
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL, Config{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "client-facing.example"
	p.ServeHTTP(httptest.NewRecorder(), req)

	if seenHost == "client-facing.example" {
		t.Error("client Host header leaked to upstream")
	}
	if !strings.Contains(backend.URL, seenHost) {
		t.Errorf("upstream Host = %q, want backend's own", seenHost)
	}
}

func TestForwardKeepsOtherHeadersVerbatim(t *testing.T) {
	var seen http.Header
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL, Config{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("X-Request-Source", "dapp")
	req.Header.Add("Accept", "application/json")
	p.ServeHTTP(httptest.NewRecorder(), req)

	for header, want := range map[string]string{
		"Authorization":    "Bearer token",
		"X-Request-Source": "dapp",
		"Accept":           "application/json",
	} {
		if got := seen.Get(header); got != want {
			t.Errorf("upstream %s = %q, want %q", header, got, want)
		}
	}
}

func TestBodyTooLarge(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL, Config{MaxBodyBytes: 16})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestUpstreamTimeout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL, Config{Timeout: 50 * time.Millisecond})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

func TestUpstreamUnreachable(t *testing.T) {
	// A backend that is down: reserve a port, then close it.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	p := newTestProxy(t, deadURL, Config{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if body := w.Body.String(); strings.Contains(body, "connection refused") {
		t.Errorf("internal error detail leaked: %s", body)
	}
}

func TestBackendStatusPassesThrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such method", http.StatusNotFound)
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL, Config{})

	w := httptest.NewRecorder()
	p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want backend's 404", w.Code)
	}
}

func TestWsSchemeMapsToHTTP(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	wsURL := "ws" + strings.TrimPrefix(backend.URL, "http")
	p := newTestProxy(t, wsURL, Config{})

	w := httptest.NewRecorder()
	p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 via http-mapped scheme", w.Code)
	}
}
