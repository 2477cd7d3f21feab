// Package handler exposes the journal core over HTTP for the UI
// collaborator, plus a Lambda adapter for the API Gateway deployment.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"journal-service/internal/domain"
	"journal-service/internal/usecase"
)

type Handler struct {
	journal *usecase.Journal
	log     *slog.Logger
}

func New(journal *usecase.Journal, log *slog.Logger) (*Handler, error) {
	if journal == nil {
		return nil, errors.New("handler: journal must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{journal: journal, log: log.With("component", "handler")}, nil
}

// Routes builds the journal API mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /journal/write", h.handleWrite)
	mux.HandleFunc("GET /journal/read", h.handleRead)
	mux.HandleFunc("GET /journal/conversation/{id}", h.handleConversation)
	mux.HandleFunc("GET /journal/list", h.handleList)
	mux.HandleFunc("POST /journal/delete", h.handleDelete)
	mux.HandleFunc("POST /journal/restore", h.handleRestore)
	mux.HandleFunc("GET /journal/deleted", h.handleDeleted)
	mux.HandleFunc("GET /journal/manifest", h.handleManifest)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// WriteResponse is the body of POST /journal/write.
type WriteResponse struct {
	Success    bool   `json:"success"`
	EntryID    string `json:"entryId"`
	Timestamp  int64  `json:"timestamp"`
	StorageKey string `json:"storageKey"`
	Error      string `json:"error,omitempty"`
}

func (h *Handler) handleWrite(w http.ResponseWriter, r *http.Request) {
	var entry domain.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, WriteResponse{Success: false, Error: "invalid journal entry"})
		return
	}

	key, err := h.journal.WriteSync(r.Context(), entry)
	if err != nil {
		h.log.Error("write failed", "entryId", entry.ID, "err", err)
		writeJSON(w, usecase.HTTPStatus(err), WriteResponse{
			Success: false,
			EntryID: entry.ID,
			Error:   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, WriteResponse{
		Success:    true,
		EntryID:    entry.ID,
		Timestamp:  entry.Timestamp,
		StorageKey: key,
	})
}

func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), 100)
	offset := intParam(q.Get("offset"), 0)
	sessionID := q.Get("sessionId")

	var (
		page usecase.Page
		err  error
	)
	startTime, hasStart := int64Param(q.Get("startTime"))
	endTime, hasEnd := int64Param(q.Get("endTime"))
	if hasStart && hasEnd {
		page, err = h.journal.Reader().ReadRange(r.Context(), startTime, endTime, limit, offset)
	} else {
		page, err = h.journal.Reader().ReadRecent(r.Context(), limit, offset)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sessionID != "" {
		page.Entries = usecase.FilterSession(page.Entries, sessionID)
		page.Total = len(page.Entries)
	}
	if page.Entries == nil {
		page.Entries = []domain.Entry{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	view, err := h.journal.Reader().ReadConversation(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	view, err := h.journal.Reader().ListConversations(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type deleteRequest struct {
	TurnID string `json:"turnId"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	TurnID  string `json:"turnId"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	h.handleTombstone(w, r, h.journal.Tombstones().MarkDeleted)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	h.handleTombstone(w, r, h.journal.Tombstones().Restore)
}

func (h *Handler) handleTombstone(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TurnID == "" {
		writeJSON(w, http.StatusBadRequest, deleteResponse{Success: false, Error: "missing turnId"})
		return
	}
	if err := op(r.Context(), req.TurnID); err != nil {
		h.log.Error("tombstone operation failed", "turnId", req.TurnID, "err", err)
		writeJSON(w, usecase.HTTPStatus(err), deleteResponse{Success: false, TurnID: req.TurnID, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, TurnID: req.TurnID})
}

func (h *Handler) handleDeleted(w http.ResponseWriter, r *http.Request) {
	entries, ids, err := h.journal.DeletedEntries(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"deletedIds": ids,
	})
}

func (h *Handler) handleManifest(w http.ResponseWriter, r *http.Request) {
	tier := domain.TierFull
	if r.URL.Query().Get("tier") == "trim" {
		tier = domain.TierTrim
	}
	manifest, err := h.journal.Reader().Global(r.Context(), tier)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stats": h.journal.Stats()})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := usecase.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func int64Param(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
