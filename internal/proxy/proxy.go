// Package proxy forwards admitted HTTP requests to the backend RPC node and
// streams the response back unchanged.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	gwerrors "github.com/tangle-network/blockchain-rpc-blueprint/internal/errors"
)

// Proxy forwards requests to a single upstream. The firewall gate and the
// WebSocket diversion happen before a request reaches ServeHTTP.
type Proxy struct {
	transport http.RoundTripper
	base      string // proxy_to_url with any trailing "/" stripped
	timeout   time.Duration
	maxBody   int64
	logger    *zap.Logger
}

// Config holds proxy configuration.
type Config struct {
	// ProxyToURL is the backend base URL. The ws/wss schemes are mapped to
	// http/https for request forwarding.
	ProxyToURL *url.URL
	// Transport is the shared upstream transport; nil uses the default pool.
	Transport http.RoundTripper
	// Timeout bounds the whole request-to-response cycle.
	Timeout time.Duration
	// MaxBodyBytes caps the inbound request body.
	MaxBodyBytes int64
	// Logger receives forwarding diagnostics; nil disables logging.
	Logger *zap.Logger
}

// New creates a proxy for the configured backend.
func New(cfg Config) *Proxy {
	transport := cfg.Transport
	if transport == nil {
		transport = NewTransport(DefaultTransportConfig)
	}

	base := *cfg.ProxyToURL
	switch base.Scheme {
	case "ws":
		base.Scheme = "http"
	case "wss":
		base.Scheme = "https"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Proxy{
		transport: transport,
		base:      strings.TrimRight(base.String(), "/"),
		timeout:   timeout,
		maxBody:   cfg.MaxBodyBytes,
		logger:    logger,
	}
}

// ServeHTTP forwards the request and streams the upstream response.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	if p.maxBody > 0 {
		if r.ContentLength > p.maxBody {
			gwerrors.ErrBodyTooLarge.WithRequestID(requestID).WriteJSON(w)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, p.maxBody)
	}

	target, gwErr := p.upstreamURL(r)
	if gwErr != nil {
		gwErr.WithRequestID(requestID).WriteJSON(w)
		return
	}

	resp, err := p.transport.RoundTrip(p.upstreamRequest(ctx, r, target))
	if err != nil {
		p.writeError(w, r, err, requestID)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	streamBody(w, resp.Body)
}

// upstreamURL joins the backend base with the request's path and query.
func (p *Proxy) upstreamURL(r *http.Request) (*url.URL, *gwerrors.GatewayError) {
	pathAndQuery := r.URL.RequestURI()
	if pathAndQuery == "" {
		pathAndQuery = "/"
	}

	target, err := url.Parse(p.base + pathAndQuery)
	if err != nil {
		p.logger.Error("failed to parse target URI",
			zap.String("base", p.base),
			zap.String("path", pathAndQuery),
			zap.Error(err))
		return nil, gwerrors.ErrBadRequest.WithDetails("Invalid target URI")
	}
	return target, nil
}

// upstreamRequest builds the forwarded request: same method and body, every
// header forwarded verbatim except Host, which is dropped so the upstream
// determines its own.
func (p *Proxy) upstreamRequest(ctx context.Context, r *http.Request, target *url.URL) *http.Request {
	out := (&http.Request{
		Method:        r.Method,
		URL:           target,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          r.Body,
		ContentLength: r.ContentLength,
		Host:          target.Host,
	}).WithContext(ctx)

	out.Header = make(http.Header, len(r.Header))
	for k, vv := range r.Header {
		out.Header[k] = vv
	}

	return out
}

// writeError maps a forwarding failure to the client-facing status.
func (p *Proxy) writeError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		gwerrors.ErrBodyTooLarge.WithRequestID(requestID).WriteJSON(w)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		p.logger.Warn("upstream request timed out",
			zap.String("request_id", requestID),
			zap.String("method", r.Method))
		gwerrors.ErrGatewayTimeout.WithRequestID(requestID).WriteJSON(w)
		return
	}

	p.logger.Error("failed to proxy request",
		zap.String("request_id", requestID),
		zap.Error(err))
	gwerrors.ErrServiceUnavailable.
		WithDetails("Proxy error: upstream request failed").
		WithRequestID(requestID).
		WriteJSON(w)
}

// copyHeaders copies upstream response headers verbatim.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append(dst[k][:0:0], vv...)
	}
}

// streamBody streams the upstream body, flushing as chunks arrive so
// long-polling responses are not buffered.
func streamBody(w http.ResponseWriter, body io.Reader) {
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		io.Copy(w, body)
		return
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			return
		}
	}
}

type requestIDKey struct{}

// WithRequestID stores the request ID on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
