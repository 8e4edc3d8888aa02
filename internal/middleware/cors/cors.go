// Package cors implements the gateway's CORS policy: any origin, any
// headers, methods GET, POST and OPTIONS.
package cors

import (
	"net/http"
)

const (
	allowMethods = "GET, POST, OPTIONS"
	maxAge       = "86400"
)

// Handler applies the fixed CORS policy of the RPC endpoint.
type Handler struct{}

// New creates a CORS handler.
func New() *Handler {
	return &Handler{}
}

// IsPreflight returns true if the request is a CORS preflight.
func (h *Handler) IsPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}

// HandlePreflight writes a 204 response with CORS headers.
func (h *Handler) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", allowMethods)

	if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
		w.Header().Set("Access-Control-Allow-Headers", requested)
	} else {
		w.Header().Set("Access-Control-Allow-Headers", "*")
	}

	w.Header().Set("Access-Control-Max-Age", maxAge)
	w.Header().Set("Vary", "Origin, Access-Control-Request-Method, Access-Control-Request-Headers")
	w.WriteHeader(http.StatusNoContent)
}

// ApplyHeaders adds CORS headers to a normal (non-preflight) response.
func (h *Handler) ApplyHeaders(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Origin") == "" {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Add("Vary", "Origin")
}
