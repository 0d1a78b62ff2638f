package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hupe1980/agencyhub/core"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every API response.
type envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: true, Data: data})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Status: true, Message: msg})
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var gce *core.GraphConstructionError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrConfigurationNotFound), errors.Is(err, core.ErrAgencyNotLoaded),
		errors.Is(err, core.ErrTurnNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPermissionDenied), errors.Is(err, core.ErrNotApproved):
		return http.StatusForbidden
	case errors.Is(err, core.ErrInactiveUser):
		return http.StatusBadRequest
	case errors.As(err, &gce), errors.Is(err, core.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTurnInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "Something went wrong"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "Request timed out"
		}
		s.logger.Error("api.request.failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	} else {
		s.logger.Debug("api.request.rejected", "method", r.Method, "path", r.URL.Path, "status", code, "error", msg)
	}
	writeJSON(w, code, envelope{Status: false, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %v: %w", err, core.ErrInvalidInput)
	}
	return nil
}

func requireQuery(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", fmt.Errorf("query parameter %s is required: %w", name, core.ErrInvalidInput)
	}
	return v, nil
}
