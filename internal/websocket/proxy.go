// Package websocket bridges an upgraded client connection to the backend
// node, shuttling frames in both directions without touching payloads.
package websocket

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/metrics"
)

const controlWriteTimeout = 10 * time.Second

// Bridge proxies WebSocket sessions to a fixed backend URL.
type Bridge struct {
	upgrader   websocket.Upgrader
	dialer     *websocket.Dialer
	backendURL string
	logger     *zap.Logger
}

// New creates a bridge for the configured backend. Cross-origin upgrades
// are accepted; origin policy is the CORS layer's concern, not the
// bridge's. A nil logger disables logging.
func New(proxyTo *url.URL, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		backendURL: BackendURL(proxyTo),
		logger:     logger,
	}
}

// IsUpgradeRequest checks if the request is a WebSocket upgrade request.
func IsUpgradeRequest(r *http.Request) bool {
	connection := strings.ToLower(r.Header.Get("Connection"))
	upgrade := strings.ToLower(r.Header.Get("Upgrade"))

	return strings.Contains(connection, "upgrade") && upgrade == "websocket"
}

// BackendURL derives the backend WebSocket URL from the proxy target:
// wss when the target is https/wss, ws otherwise; host and port from the
// target; the target's own path. The client's query string is not
// forwarded.
func BackendURL(proxyTo *url.URL) string {
	scheme := "ws"
	if proxyTo.Scheme == "https" || proxyTo.Scheme == "wss" {
		scheme = "wss"
	}
	return scheme + "://" + proxyTo.Host + proxyTo.Path
}

// ServeHTTP upgrades the client connection, opens the backend connection,
// and runs both forwarding loops until either side finishes.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientConn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		b.logger.Warn("websocket upgrade failed",
			zap.String("client", r.RemoteAddr),
			zap.Error(err))
		return
	}
	defer clientConn.Close()

	backendConn, resp, err := b.dialer.Dial(b.backendURL, nil)
	if err != nil {
		reason := "Backend connection failed"
		if errors.Is(err, websocket.ErrBadHandshake) {
			reason = "Backend handshake failed"
		}
		b.logger.Error("backend websocket connection failed",
			zap.String("client", r.RemoteAddr),
			zap.String("backend", b.backendURL),
			zap.Error(err))
		closeMsg := websocket.FormatCloseMessage(websocket.CloseProtocolError, reason)
		clientConn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(controlWriteTimeout))
		return
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer backendConn.Close()

	b.logger.Debug("backend websocket connection established",
		zap.String("client", r.RemoteAddr),
		zap.String("backend", b.backendURL))

	metrics.WSSessionsActive.Inc()
	defer metrics.WSSessionsActive.Dec()

	forwardControlFrames(clientConn, backendConn)
	forwardControlFrames(backendConn, clientConn)

	errCh := make(chan error, 2)
	go func() { errCh <- forwardClientFrames(clientConn, backendConn) }()
	go func() { errCh <- forwardBackendFrames(backendConn, clientConn) }()

	// First loop to finish ends the session; closing both connections
	// unblocks the other loop within one frame read.
	<-errCh
	clientConn.Close()
	backendConn.Close()

	b.logger.Debug("websocket session finished", zap.String("client", r.RemoteAddr))
}

// forwardControlFrames relays Ping and Pong from src to dst verbatim.
func forwardControlFrames(src, dst *websocket.Conn) {
	src.SetPingHandler(func(appData string) error {
		return dst.WriteControl(websocket.PingMessage, []byte(appData), time.Now().Add(controlWriteTimeout))
	})
	src.SetPongHandler(func(appData string) error {
		return dst.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteTimeout))
	})
}

// forwardClientFrames copies client data frames to the backend. A
// client-originated Close, or any client receive error, forwards a bare
// Close to the backend and ends the loop.
func forwardClientFrames(client, backend *websocket.Conn) error {
	for {
		msgType, payload, err := client.ReadMessage()
		if err != nil {
			deadline := time.Now().Add(controlWriteTimeout)
			backend.WriteControl(websocket.CloseMessage, nil, deadline)
			return err
		}
		if err := backend.WriteMessage(msgType, payload); err != nil {
			return err
		}
	}
}

// forwardBackendFrames copies backend data frames to the client. A
// backend-originated Close is forwarded with its code and reason intact;
// other receive errors close the client with a protocol-error frame.
func forwardBackendFrames(backend, client *websocket.Conn) error {
	for {
		msgType, payload, err := backend.ReadMessage()
		if err != nil {
			deadline := time.Now().Add(controlWriteTimeout)

			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
				msg := websocket.FormatCloseMessage(closeErr.Code, closeErr.Text)
				client.WriteControl(websocket.CloseMessage, msg, deadline)
			} else {
				msg := websocket.FormatCloseMessage(websocket.CloseProtocolError, "Backend error")
				client.WriteControl(websocket.CloseMessage, msg, deadline)
			}
			return err
		}
		if err := client.WriteMessage(msgType, payload); err != nil {
			return err
		}
	}
}
