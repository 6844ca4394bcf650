package handlers

import (
	"net/http"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	// Check probes a dependency such as the database. Nil means always healthy.
	Check func(r *http.Request) error
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	if h.Check != nil {
		if err := h.Check(r); err != nil {
			respond(r.Context(), w, http.StatusServiceUnavailable, "unavailable", map[string]string{"status": "degraded"})
			return
		}
	}

	respond(r.Context(), w, http.StatusOK, "ok", map[string]string{"status": "ok"})
}
