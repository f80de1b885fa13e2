package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/and161185/authentic-caller/internal/errs"
)

// envelope is the body of every JSON response.
type envelope struct {
	Status  bool   `json:"status"`
	Data    any    `json:"data,omitempty"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, body envelope) {
	body.Status = true
	writeJSON(w, http.StatusOK, body)
}

func writeFail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, envelope{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthenticated), errors.Is(err, errs.ErrOTPMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrSamePassword):
		return http.StatusConflict
	case errors.Is(err, errs.ErrOTPRequired):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err with its mapped status; internal failures are not echoed.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", zapRequest(r, err)...)
		writeFail(w, code, "internal error")
		return
	}
	writeFail(w, code, err.Error())
}
