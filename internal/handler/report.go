package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/famsched/internal/report"
	"github.com/dukerupert/famsched/internal/store"
)

type ReportHandler struct {
	members *store.MemberStore
	events  *store.EventStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewReportHandler(ms *store.MemberStore, es *store.EventStore, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{members: ms, events: es, logger: logger, now: time.Now}
}

// Get handles GET /api/reports.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List()
	if err != nil {
		h.logger.Error("report members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	events, err := h.events.List()
	if err != nil {
		h.logger.Error("report events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(members, events, h.now()))
}
