package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/attendance"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

type Handler struct {
	service *app.Service
}

func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Routes registers every endpoint on mux. Wrap the mux with Middleware for
// request ids, logging and metrics.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/login", h.HandleLogin)
	mux.HandleFunc("POST /api/v1/substitute/login", h.HandleSubstituteLogin)
	mux.HandleFunc("POST /api/v1/logout", h.HandleLogout)
	mux.HandleFunc("GET /api/v1/me", h.authenticated(h.HandleMe))

	mux.HandleFunc("GET /api/v1/attendance/today", h.authenticated(h.HandleToday))
	mux.HandleFunc("POST /api/v1/attendance", h.authenticated(h.HandleSubmit))

	mux.HandleFunc("GET /api/v1/students", h.staffOnly(h.HandleListStudents))
	mux.HandleFunc("POST /api/v1/students/actions", h.staffOnly(h.HandleStudentAction))

	mux.HandleFunc("GET /api/v1/stats", h.deputyOnly(h.HandleStats))
	mux.HandleFunc("GET /api/v1/export/daily", h.deputyOnly(h.HandleExportDaily))

	mux.HandleFunc("GET /api/v1/tokens", h.deputyOnly(h.HandleListTokens))
	mux.HandleFunc("POST /api/v1/tokens", h.deputyOnly(h.HandleCreateToken))
	mux.HandleFunc("POST /api/v1/tokens/{id}/revoke", h.deputyOnly(h.HandleRevokeToken))
	mux.HandleFunc("POST /api/v1/tokens/{id}/rotate", h.deputyOnly(h.HandleRotateToken))
	mux.HandleFunc("DELETE /api/v1/tokens/{id}", h.deputyOnly(h.HandleDeleteToken))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Class string `json:"class,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error.Printf("Failed to encode response: %v", err)
	}
}

// errorStatus maps domain errors to a status, a machine readable code and
// the message shown to the user.
func errorStatus(err error) (int, errorResponse) {
	var (
		validation *attendance.ValidationError
		state      *attendance.StateError
		notFound   *attendance.NotFoundError
		ttl        *app.TTLError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, errorResponse{Error: validation.Message, Code: validation.Rule, Class: validation.Class}
	case errors.As(err, &state):
		return http.StatusConflict, errorResponse{Error: state.Error(), Code: string(state.Kind), Class: state.Class}
	case errors.As(err, &notFound):
		return http.StatusNotFound, errorResponse{Error: notFound.Error(), Code: "not_found"}
	case errors.Is(err, attendance.ErrClassNotPermitted):
		return http.StatusForbidden, errorResponse{Error: err.Error(), Code: "class_not_permitted"}
	case errors.As(err, &ttl):
		return http.StatusUnprocessableEntity, errorResponse{Error: ttl.Error(), Code: "invalid_ttl"}
	case errors.Is(err, app.ErrNoTeacher):
		return http.StatusUnprocessableEntity, errorResponse{Error: app.ErrNoTeacher.Error(), Code: "no_teacher"}
	case errors.Is(err, app.ErrAlreadyRevoked):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_revoked"}
	case errors.Is(err, app.ErrTokenNotFound), errors.Is(err, app.ErrClassNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not found", Code: "not_found"}
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, errorResponse{Error: "record already exists", Code: "duplicate"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error.Printf("[%s] %s %s failed: %v", requestID(r.Context()), r.Method, r.URL.Path, err)
	} else {
		logger.Debug.Printf("[%s] %s %s rejected: %v", requestID(r.Context()), r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, resp)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// decodeJSON reads a JSON body into v and runs its validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "bad_request"})
		return false
	}
	return true
}
