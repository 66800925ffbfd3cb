package event_api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"relief-tokens/internal/events/db"
	events "relief-tokens/internal/events/service"
	"relief-tokens/internal/logger"
	"relief-tokens/internal/utils"
)

type Handler struct {
	EventService *events.EventService
	Logger       *logger.Logger
}

func NewHandler(service *events.EventService, log *logger.Logger) *Handler {
	return &Handler{EventService: service, Logger: log}
}

type createEventRequest struct {
	Name string `json:"name"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// ListEvents returns all events with token aggregates.
// GET /admin/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	stats, err := h.EventService.ListEvents()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CreateEvent creates an event and issues one token per household.
// POST /admin/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	event, summary, err := h.EventService.CreateEvent(req.Name)
	if err != nil {
		h.Logger.Error("API", "create event failed: "+err.Error())
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("event created", map[string]interface{}{
		"event":            event,
		"tokens_generated": summary.Issued,
		"houses_skipped":   summary.Skipped,
	}))
}

// SetStatus closes or reopens an event.
// POST /admin/events/{id}/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event_id")
		return
	}
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	event, err := h.EventService.SetStatus(id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, events.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "invalid_status")
		case errors.Is(err, db.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found")
		default:
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// IssueTokens re-runs issuance for an event; households already holding a
// non-revoked token are skipped.
// POST /admin/events/{id}/issue
func (h *Handler) IssueTokens(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event_id")
		return
	}

	summary, err := h.EventService.IssueTokensForEvent(id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		h.Logger.Error("API", "issue tokens failed: "+err.Error())
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("tokens issued", summary))
}

// Reports returns the per-event aggregate summary.
// GET /admin/reports
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	stats, err := h.EventService.ListEvents()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ReportCSV streams the per-token rows for an event as CSV.
// GET /admin/reports/{eventID}/csv
func (h *Handler) ReportCSV(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event_id")
		return
	}

	rows, err := h.EventService.ExportRows(id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "csv_failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=event_%d_report.csv", id))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"token_code", "house_id", "used", "status", "used_at"})
	for _, t := range rows {
		usedAt := ""
		if t.UsedAt != nil {
			usedAt = t.UsedAt.Format("2006-01-02 15:04:05")
		}
		_ = cw.Write([]string{
			t.TokenCode,
			strconv.FormatInt(t.HouseID, 10),
			strconv.FormatBool(t.Used),
			t.Status,
			usedAt,
		})
	}
	cw.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
