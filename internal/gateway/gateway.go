// Package gateway assembles the RPC endpoint: firewall gate, CORS layer,
// WebSocket diversion, HTTP forwarding, the cleanup task, and the optional
// admin listener.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	gwerrors "github.com/tangle-network/blockchain-rpc-blueprint/internal/errors"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/metrics"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/middleware/cors"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/proxy"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/websocket"
)

// cleanupInterval is how often expired temporary grants are swept.
const cleanupInterval = 60 * time.Second

// Server is the running gateway: one public listener handling every path
// and method, plus an optional admin listener.
type Server struct {
	ctx    *Context
	logger *zap.Logger
	proxy  *proxy.Proxy
	bridge *websocket.Bridge
	cors   *cors.Handler

	httpServer  *http.Server
	adminServer *http.Server
}

// NewServer wires the gateway from the shared context.
func NewServer(ctx *Context) *Server {
	cfg := ctx.Config

	s := &Server{
		ctx:    ctx,
		logger: ctx.Log(),
		proxy: proxy.New(proxy.Config{
			ProxyToURL:   cfg.ProxyURL(),
			Timeout:      cfg.RequestTimeout(),
			MaxBodyBytes: cfg.RPC.MaxBodySizeBytes,
			Logger:       ctx.Log(),
		}),
		bridge: websocket.New(cfg.ProxyURL(), ctx.Log()),
		cors:   cors.New(),
	}

	s.httpServer = &http.Server{
		Addr:    cfg.RPC.ListenAddr,
		Handler: http.HandlerFunc(s.handle),
		// WebSocket sessions are long-lived; only header reads are bounded
		// here. The per-request timeout is applied inside the HTTP proxy.
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.RPC.AdminAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "ok")
		})
		s.adminServer = &http.Server{
			Addr:         cfg.RPC.AdminAddr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s
}

// handle is the single endpoint: every path, every method.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	start := time.Now()

	ip := peerIP(r)
	if ip == nil {
		s.logger.Warn("cannot determine peer address", zap.String("remote_addr", r.RemoteAddr))
		gwerrors.ErrAccessDenied.WriteText(w)
		return
	}

	s.logger.Debug("received request",
		zap.String("request_id", requestID),
		zap.Stringer("client_ip", ip),
		zap.String("method", r.Method),
		zap.String("uri", r.RequestURI))

	if !s.ctx.Firewall.IsIPAllowed(ip) {
		s.logger.Warn("blocked request",
			zap.String("request_id", requestID),
			zap.Stringer("client_ip", ip))
		metrics.RequestsTotal.WithLabelValues(r.Method, "403").Inc()
		gwerrors.ErrAccessDenied.WriteText(w)
		return
	}
	// Future hook: map an Authorization header to an account id and also
	// consult Firewall.IsAccountAllowed here.

	if s.cors.IsPreflight(r) {
		s.cors.HandlePreflight(w, r)
		return
	}
	s.cors.ApplyHeaders(w, r)

	if websocket.IsUpgradeRequest(r) {
		// The bridge takes over the connection; body and URI handling do
		// not apply to WebSocket sessions.
		s.bridge.ServeHTTP(w, r)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.proxy.ServeHTTP(recorder, r.WithContext(proxy.WithRequestID(r.Context(), requestID)))

	metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(recorder.status)).Inc()
	metrics.RequestDuration.Observe(time.Since(start).Seconds())
}

// Run starts the listeners and the cleanup task, then blocks until a
// shutdown signal arrives.
func (s *Server) Run() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.httpServer.Addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.runCleanup(ctx)

	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("rpc gateway listening",
			zap.String("addr", s.httpServer.Addr),
			zap.Stringer("proxy_to", s.ctx.Config.ProxyURL()))
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.adminServer != nil {
		go func() {
			s.logger.Info("admin listener started", zap.String("addr", s.adminServer.Addr))
			if err := s.adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		s.logger.Info("shutting down", zap.Stringer("signal", sig))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if s.adminServer != nil {
		s.adminServer.Shutdown(shutdownCtx)
	}
	return s.httpServer.Shutdown(shutdownCtx)
}

// runCleanup sweeps expired temporary grants every minute. A panicking
// sweep is contained and the task restarts; it dies only with the process.
func (s *Server) runCleanup(ctx context.Context) {
	for ctx.Err() == nil {
		s.cleanupLoop(ctx)
	}
}

func (s *Server) cleanupLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cleanup task panicked, restarting", zap.Any("panic", r))
		}
	}()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.ctx.Firewall.SweepExpired(time.Now().UTC()); removed > 0 {
				s.logger.Debug("swept expired temporary grants", zap.Int("removed", removed))
			}
		}
	}
}

// peerIP extracts the connection peer address. Forwarding headers are not
// trusted; the firewall keys on the TCP peer.
func peerIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

// statusRecorder captures the status code written by the proxy for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
