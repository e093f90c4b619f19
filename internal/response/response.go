// Package response writes the JSON envelope shared by every endpoint:
// {success, statusCode, timestamp, ...} with an error object on failure.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"bff-service/internal/auth"
	"bff-service/internal/logger"
)

type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Stack   string `json:"stack,omitempty"`
}

type errorEnvelope struct {
	Success       bool      `json:"success"`
	StatusCode    int       `json:"statusCode"`
	Timestamp     string    `json:"timestamp"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Error         ErrorBody `json:"error"`
}

// JSON writes data merged into the envelope. Status below 400 sets success.
func JSON(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	body := make(map[string]any, len(data)+3)
	for k, v := range data {
		body[k] = v
	}
	body["success"] = status < http.StatusBadRequest
	body["statusCode"] = status
	body["timestamp"] = timestamp()

	write(w, r, status, body)
}

// OK is JSON with status 200.
func OK(w http.ResponseWriter, r *http.Request, data map[string]any) {
	JSON(w, r, http.StatusOK, data)
}

// Error renders err as an error envelope. Only the safe message and code
// reach the client; the cause is logged.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ae := auth.AsError(err)
	status := ae.Status()

	ev := logger.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.Ctx(r.Context()).Error()
	}
	ev.Str("code", ae.Code).
		Int("status", status).
		AnErr("cause", ae.Err).
		Msg("request failed")

	write(w, r, status, errorEnvelope{
		StatusCode:    status,
		Timestamp:     timestamp(),
		CorrelationID: logger.CorrelationID(r.Context()),
		Error:         ErrorBody{Message: ae.Message, Code: ae.Code},
	})
}

// Panic renders an internal error. stack is included only when non-empty.
func Panic(w http.ResponseWriter, r *http.Request, stack string) {
	write(w, r, http.StatusInternalServerError, errorEnvelope{
		StatusCode:    http.StatusInternalServerError,
		Timestamp:     timestamp(),
		CorrelationID: logger.CorrelationID(r.Context()),
		Error: ErrorBody{
			Message: "Internal server error",
			Code:    auth.CodeInternal,
			Stack:   stack,
		},
	})
}

func write(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
