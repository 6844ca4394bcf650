package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/clipshare/backend/internal/apperr"
	"github.com/clipshare/backend/internal/logging"
)

// envelope is the uniform body of every response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	Success    bool   `json:"success"`
}

func respond(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := envelope{StatusCode: status, Message: message, Data: data, Success: status < http.StatusBadRequest}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "message", message)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "message", message)
	}
}

// respondError maps err onto the envelope. Messages of internal failures are
// replaced so causes never reach the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	kind := apperr.KindOf(err)

	message := "internal server error"
	if appErr, ok := apperr.As(err); ok && kind != apperr.KindInternal {
		message = appErr.Message
	}
	if kind == apperr.KindInternal {
		logging.FromContext(ctx).Error("internal error", "error", err)
	}

	respond(ctx, w, apperr.Status(kind), message, nil)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}
