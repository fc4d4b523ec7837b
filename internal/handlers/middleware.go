package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/metrics"
)

type ctxKey int

const requestIDKey ctxKey = iota

const requestIDHeader = "X-Request-ID"

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware tags every request with an id, logs it and records its duration.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		req := r.WithContext(context.WithValue(r.Context(), requestIDKey, id))
		next.ServeHTTP(rec, req)

		// the mux fills in the matched pattern, which keeps ids out of labels
		path := r.URL.Path
		if req.Pattern != "" {
			_, path, _ = strings.Cut(req.Pattern, " ")
		}
		duration := time.Since(start)
		metrics.APIRequestDuration.WithLabelValues(path, r.Method, strconv.Itoa(rec.status)).Observe(duration.Seconds())
		logger.Info.Printf("[%s] %s %s %d %s", id, r.Method, r.URL.Path, rec.status, duration)
	})
}

type accessHandler func(w http.ResponseWriter, r *http.Request, access *app.Access)

func (h *Handler) sessionID(r *http.Request) string {
	if cookie, err := r.Cookie(h.service.Config.Auth.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (h *Handler) clearSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Sessions.Delete(r.Context(), id); err != nil {
		logger.Error.Printf("[%s] failed to drop session: %v", requestID(r.Context()), err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.service.Config.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// authenticated loads the session and the caller's access. Delegated
// sessions are checked against their token on every request.
func (h *Handler) authenticated(next accessHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := h.sessionID(r)
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "login required", Code: "unauthorized"})
			return
		}
		session, err := h.service.Sessions.Get(ctx, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if session == nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "session expired, log in again", Code: "unauthorized"})
			return
		}

		if session.IsSubstitute() {
			_, err := h.service.Tokens.CheckActive(ctx, session.SubstituteTokenID)
			switch {
			case errors.Is(err, app.ErrTokenNotFound), errors.Is(err, app.ErrTokenInactive), errors.Is(err, app.ErrNoTeacher):
				logger.Info.Printf("[%s] Dropping substitute session for token %d: %v", requestID(ctx), session.SubstituteTokenID, err)
				h.clearSession(w, r, id)
				writeJSON(w, http.StatusUnauthorized, errorResponse{
					Error: "substitute token expired or was revoked, log in with a new token",
					Code:  "reauth_required",
				})
				return
			case err != nil:
				writeError(w, r, err)
				return
			}
		}

		access, err := h.service.Users.Resolve(ctx, session)
		if errors.Is(err, app.ErrSessionInvalid) {
			h.clearSession(w, r, id)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: "unauthorized"})
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		next(w, r, access)
	}
}

// staffOnly rejects delegated sessions.
func (h *Handler) staffOnly(next accessHandler) http.HandlerFunc {
	return h.authenticated(func(w http.ResponseWriter, r *http.Request, access *app.Access) {
		if access.Session.IsSubstitute() {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "not available in substitute mode", Code: "forbidden"})
			return
		}
		next(w, r, access)
	})
}

func (h *Handler) deputyOnly(next accessHandler) http.HandlerFunc {
	return h.staffOnly(func(w http.ResponseWriter, r *http.Request, access *app.Access) {
		if !access.IsDeputy() {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "deputy access required", Code: "forbidden"})
			return
		}
		next(w, r, access)
	})
}
