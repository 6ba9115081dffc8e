package web

// errors.go renders every failure the same way: the technical error is
// logged with the request ID, and the client receives the coded
// core.UserMessage as JSON.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/regionmap/internal/core"
	"github.com/JonMunkholm/regionmap/internal/logging"
	"github.com/go-chi/render"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Status  int    `json:"-"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// Render implements render.Renderer.
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

func newErrorResponse(err error, status int) *ErrorResponse {
	msg := core.MapError(err)
	return &ErrorResponse{
		Status:  status,
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// respondError logs err and writes its user-facing form.
// A zero status is derived from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	resp := newErrorResponse(err, status)

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", resp.Code,
		"error", err.Error(),
	}
	// Coded failures such as a missing snapshot are expected states, not faults.
	if status >= http.StatusInternalServerError && !core.IsUserFacing(err) {
		log.Error("request error", args...)
	} else {
		log.Warn("request rejected", args...)
	}

	if rerr := render.Render(w, r, resp); rerr != nil {
		log.Error("render error response", "error", rerr)
	}
}

// statusFor maps sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNoSnapshot):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrReloadBusy):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnknownRegion):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
