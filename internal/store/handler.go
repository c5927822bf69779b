package store

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"
)

// HistoryHandler serves the stored detection history over HTTP.
// GET /events?since=RFC3339&limit=N
type HistoryHandler struct {
	store  *Store
	logger *log.Logger
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(store *Store, logger *log.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

// ServeHTTP lists stored events, newest first.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		since = &t
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := h.store.ListEvents(since, limit)
	if err != nil {
		h.logger.Printf("[History] Error listing events: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*DetectionEventRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(events); err != nil {
		h.logger.Printf("[History] Error writing response: %v", err)
	}
}
