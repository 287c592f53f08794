package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famsched/internal/backup"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

type backupListResponse struct {
	Status  backup.Status  `json:"status"`
	Backups []backup.Entry `json:"backups"`
}

// List handles GET /api/backups.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}
	entries, err := h.manager.List(r.Context())
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if entries == nil {
		entries = []backup.Entry{}
	}
	writeJSON(w, http.StatusOK, backupListResponse{Status: h.manager.Status(), Backups: entries})
}

// Run handles POST /api/backups.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	key, err := h.manager.Run(r.Context())
	if err != nil {
		if errors.Is(err, backup.ErrDisabled) {
			writeError(w, http.StatusServiceUnavailable, "backups are not configured")
			return
		}
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// Restore handles POST /api/backups/restore.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := h.manager.Restore(r.Context(), req.Key); err != nil {
		switch {
		case errors.Is(err, backup.ErrDisabled):
			writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		case errors.Is(err, backup.ErrNotFound):
			writeError(w, http.StatusNotFound, "backup not found")
		default:
			h.logger.Error("restore backup", "error", err)
			writeError(w, http.StatusInternalServerError, "restore failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}
