package handlers

import (
	"net/http"
	"strconv"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/metrics"
	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

type tokenResponse struct {
	Token *models.SubstituteToken `json:"token"`
	// Raw is only present right after create and rotate.
	Raw string `json:"raw_token,omitempty"`
}

func tokenResult(action string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	metrics.TokenActionsTotal.WithLabelValues(action, result).Inc()
}

func (h *Handler) HandleListTokens(w http.ResponseWriter, r *http.Request, access *app.Access) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	tokens, err := h.service.Tokens.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tokens == nil {
		tokens = []models.SubstituteToken{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": tokens})
}

func (h *Handler) HandleCreateToken(w http.ResponseWriter, r *http.Request, access *app.Access) {
	var req models.TokenIssueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ttl := app.TTLFromParts(req.Seconds, req.Minutes, req.Hours, req.Days, req.Weeks)
	issuer := access.User.ID
	raw, token, err := h.service.Tokens.Issue(r.Context(), req.ClassID, &issuer, ttl)
	tokenResult("issue", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, Raw: raw})
}

func (h *Handler) HandleRevokeToken(w http.ResponseWriter, r *http.Request, access *app.Access) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid token id", http.StatusBadRequest)
		return
	}
	err := h.service.Tokens.Revoke(r.Context(), id)
	tokenResult("revoke", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "revoked": true})
}

func (h *Handler) HandleRotateToken(w http.ResponseWriter, r *http.Request, access *app.Access) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid token id", http.StatusBadRequest)
		return
	}
	issuer := access.User.ID
	raw, token, err := h.service.Tokens.Rotate(r.Context(), id, &issuer)
	tokenResult("rotate", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Raw: raw})
}

func (h *Handler) HandleDeleteToken(w http.ResponseWriter, r *http.Request, access *app.Access) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid token id", http.StatusBadRequest)
		return
	}
	err := h.service.Tokens.Delete(r.Context(), id)
	tokenResult("delete", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
