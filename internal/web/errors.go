package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.respondError(w, r, err)
//  3. The status comes from the sentinel the error wraps
//  4. Technical error + context is logged with request ID for correlation
//  5. core.MapError supplies the user message, sent as text or JSON

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/logging"
	"github.com/JonMunkholm/lending/internal/pipeline"
	"github.com/JonMunkholm/lending/internal/report"
	"github.com/JonMunkholm/lending/internal/sheet"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON body of an error for clients asking for JSON.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), strings.Contains(err.Error(), "request body too large"):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyJobs):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrUnknownSegment):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNoFiles),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrNoColumns),
		errors.Is(err, core.ErrEmptyColumnName),
		errors.Is(err, core.ErrDuplicateColumn),
		errors.Is(err, sheet.ErrInvalidWorkbook),
		errors.Is(err, pipeline.ErrInvalidDate),
		errors.Is(err, report.ErrQueryNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err with the request id and sends the mapped user
// message with the status statusFor chooses.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondErrorStatus(w, r, err, statusFor(err))
}

func (s *Server) respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	s.logError(r, err, status)

	if wantsJSON(r) {
		respondErrorJSON(w, core.MapError(err), status)
		return
	}
	respondText(w, status, core.FormatUserError(err))
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondText writes a plain-text body.
func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// logError records a failure whose response body is written by the caller.
func (s *Server) logError(r *http.Request, err error, status int) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", core.MapError(err).Code,
		"job_id", core.JobIDFromContext(r.Context()),
	)
}

func (s *Server) logInfo(r *http.Request, msg string, args ...any) {
	logging.FromContext(r.Context()).Info(msg, append([]any{"path", r.URL.Path}, args...)...)
}
