package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsPreflight(t *testing.T) {
	tests := []struct {
		name   string
		method string
		origin string
		acrm   string
		want   bool
	}{
		{"preflight", http.MethodOptions, "https://app.example", "POST", true},
		{"options without origin", http.MethodOptions, "", "POST", false},
		{"options without method", http.MethodOptions, "https://app.example", "", false},
		{"plain post", http.MethodPost, "https://app.example", "", false},
	}

	h := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if tt.acrm != "" {
				r.Header.Set("Access-Control-Request-Method", tt.acrm)
			}
			if got := h.IsPreflight(r); got != tt.want {
				t.Errorf("IsPreflight() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandlePreflight(t *testing.T) {
	h := New()

	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "https://app.example")
	r.Header.Set("Access-Control-Request-Method", "POST")
	r.Header.Set("Access-Control-Request-Headers", "content-type, x-custom")
	w := httptest.NewRecorder()

	h.HandlePreflight(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "content-type, x-custom" {
		t.Errorf("Allow-Headers = %q", got)
	}
}

func TestApplyHeaders(t *testing.T) {
	h := New()

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	h.ApplyHeaders(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}

	// No Origin, no CORS headers.
	w = httptest.NewRecorder()
	h.ApplyHeaders(w, httptest.NewRequest(http.MethodPost, "/", nil))
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin set without Origin header: %q", got)
	}
}
