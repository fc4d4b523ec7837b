package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/metrics"
	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

type sessionResponse struct {
	SessionID string       `json:"session_id"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
	ClassID   int64        `json:"substitute_class_id,omitempty"`
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request, session *app.Session, ttl time.Duration) (*sessionResponse, bool) {
	// a new login replaces whatever session the client had, delegated or not
	if old := h.sessionID(r); old != "" {
		if err := h.service.Sessions.Delete(r.Context(), old); err != nil {
			logger.Error.Printf("[%s] failed to drop previous session: %v", requestID(r.Context()), err)
		}
	}

	if ttl < time.Second {
		ttl = time.Second
	}
	if err := h.service.Sessions.Create(r.Context(), session, ttl); err != nil {
		writeError(w, r, err)
		return nil, false
	}

	expires := time.Now().Add(ttl)
	http.SetCookie(w, &http.Cookie{
		Name:     h.service.Config.Auth.CookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return &sessionResponse{SessionID: session.ID, ExpiresAt: expires.UTC()}, true
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Users.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, app.ErrBadCredentials) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: "bad_credentials"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, ok := h.openSession(w, r, &app.Session{UserID: user.ID}, h.service.Config.SessionTTL())
	if !ok {
		return
	}
	resp.User = user
	logger.Info.Printf("[%s] User %s logged in", requestID(r.Context()), user.Username)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleSubstituteLogin(w http.ResponseWriter, r *http.Request) {
	var req models.SubstituteLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, teacher, err := h.service.Tokens.Authenticate(r.Context(), req.Token)
	switch {
	case errors.Is(err, app.ErrTokenNotFound), errors.Is(err, app.ErrTokenInactive):
		metrics.TokenActionsTotal.WithLabelValues("authenticate", "rejected").Inc()
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "token not found, expired or revoked", Code: "invalid_token"})
		return
	case errors.Is(err, app.ErrNoTeacher):
		metrics.TokenActionsTotal.WithLabelValues("authenticate", "rejected").Inc()
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: app.ErrNoTeacher.Error(), Code: "no_teacher"})
		return
	case err != nil:
		writeError(w, r, err)
		return
	}

	session := &app.Session{
		UserID:            teacher.ID,
		SubstituteTokenID: token.ID,
		SubstituteClassID: token.ClassRoomID,
	}
	resp, ok := h.openSession(w, r, session, h.service.Tokens.SessionTTL(token))
	if !ok {
		return
	}
	resp.User = teacher
	resp.ClassID = token.ClassRoomID

	metrics.TokenActionsTotal.WithLabelValues("authenticate", "ok").Inc()
	logger.Info.Printf("[%s] Substitute login into class %s with token %d", requestID(r.Context()), token.ClassName, token.ID)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if id := h.sessionID(r); id != "" {
		h.clearSession(w, r, id)
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type meResponse struct {
	User       *models.User       `json:"user"`
	Role       models.Role        `json:"role"`
	Substitute bool               `json:"substitute"`
	Classes    []models.ClassRoom `json:"classes"`
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request, access *app.Access) {
	writeJSON(w, http.StatusOK, meResponse{
		User:       access.User,
		Role:       access.Role,
		Substitute: access.Session.IsSubstitute(),
		Classes:    access.Classes,
	})
}
