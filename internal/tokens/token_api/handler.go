package token_api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"relief-tokens/internal/auth"
	"relief-tokens/internal/logger"
	"relief-tokens/internal/tokens/db"
	tokens "relief-tokens/internal/tokens/service"
	"relief-tokens/internal/utils"
)

type Handler struct {
	TokenService *tokens.TokenService
	Logger       *logger.Logger
}

func NewHandler(service *tokens.TokenService, log *logger.Logger) *Handler {
	return &Handler{TokenService: service, Logger: log}
}

type checkInRequest struct {
	UserID string `json:"user_id"`
}

// GetToken returns a token with its event and household context.
// GET /tokens/{code}
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	token, err := h.TokenService.GetToken(code)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// ListTokens is the admin token listing, optionally filtered by event.
// GET /admin/tokens?event_id=&limit=&offset=
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	var eventID *int64
	if raw := r.URL.Query().Get("event_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_event_id")
			return
		}
		eventID = &id
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	rows, err := h.TokenService.ListTokens(eventID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// CheckIn is the public scanner redemption path. The caller identity is
// optional; failures are reported with the conflated scanner error.
// POST /tokens/{code}/checkin
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req checkInRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	var actorID *string
	if req.UserID != "" {
		actorID = &req.UserID
	}
	details := auditDetails(map[string]string{"ip": r.RemoteAddr})

	token, err := h.TokenService.CheckIn(code, actorID, details)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found")
		case errors.Is(err, tokens.ErrEventClosed):
			writeError(w, http.StatusBadRequest, "event_closed")
		case errors.Is(err, db.ErrAlreadyUsed), errors.Is(err, db.ErrNotActive), errors.Is(err, db.ErrExpired):
			writeError(w, http.StatusBadRequest, "invalid_or_used_or_inactive")
		default:
			h.Logger.Error("API", "checkin failed: "+err.Error())
			writeError(w, http.StatusInternalServerError, "checkin_failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("token checked in", token))
}

// ManualCheckIn is the admin redemption path with distinct failure reasons.
// POST /admin/tokens/{code}/manual-checkin
func (h *Handler) ManualCheckIn(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	caller := auth.AdminID(r.Context())
	details := auditDetails(map[string]string{"by": "admin-ui", "ip": r.RemoteAddr})

	token, err := h.TokenService.ManualCheckIn(code, caller, details)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found")
		case errors.Is(err, tokens.ErrEventClosed):
			writeError(w, http.StatusBadRequest, "event_closed")
		case errors.Is(err, db.ErrNotActive):
			writeError(w, http.StatusBadRequest, "not_active")
		case errors.Is(err, db.ErrAlreadyUsed):
			writeError(w, http.StatusBadRequest, "already_used")
		case errors.Is(err, db.ErrExpired):
			writeError(w, http.StatusBadRequest, "expired")
		default:
			h.Logger.Error("API", "manual checkin failed: "+err.Error())
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("token checked in", token))
}

// UndoCheckIn reverses a redemption, re-admitting the token into the active
// pool.
// POST /admin/tokens/{code}/undo-checkin
func (h *Handler) UndoCheckIn(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	caller := auth.AdminID(r.Context())
	details := auditDetails(map[string]string{"by": "admin-ui"})

	token, err := h.TokenService.UndoCheckIn(code, caller, details)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found")
		case errors.Is(err, db.ErrNotUsed):
			writeError(w, http.StatusBadRequest, "not_used")
		default:
			h.Logger.Error("API", "undo checkin failed: "+err.Error())
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("check-in undone", token))
}

// Reissue replaces a household's token, revoking superseded siblings.
// POST /admin/tokens/{code}/reissue
func (h *Handler) Reissue(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	caller := auth.AdminID(r.Context())
	details := auditDetails(map[string]string{"by": "admin-ui", "old_code": code})

	result, err := h.TokenService.Reissue(code, caller, details)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found")
		case errors.Is(err, db.ErrCodeAllocation):
			writeError(w, http.StatusInternalServerError, "could_not_create_token")
		default:
			h.Logger.Error("API", "reissue failed: "+err.Error())
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("token reissued", result))
}

// AuditTrail returns the append-only history for a token.
// GET /admin/tokens/{code}/audit
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	entries, err := h.TokenService.AuditTrail(code)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func auditDetails(fields map[string]string) string {
	b, _ := json.Marshal(fields)
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
