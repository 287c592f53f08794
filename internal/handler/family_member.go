package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famsched/internal/auth"
	"github.com/dukerupert/famsched/internal/model"
	"github.com/dukerupert/famsched/internal/store"
)

type MemberHandler struct {
	members *store.MemberStore
	logger  *slog.Logger
}

func NewMemberHandler(ms *store.MemberStore, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{members: ms, logger: logger}
}

// List handles GET /api/members. It is public so the login screen can list
// who to log in as.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List()
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list family members")
		return
	}
	writeJSON(w, http.StatusOK, publicMembers(members))
}

type memberRequest struct {
	Name        string      `json:"name"`
	Age         int         `json:"age"`
	AvatarColor string      `json:"avatar_color"`
	Password    *string     `json:"password"`
	Role        *model.Role `json:"role"`
}

// Create handles POST /api/members.
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := auth.CanAddMember(actor(r)); err != nil {
		writeForbidden(w, err)
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Age < 0 {
		writeError(w, http.StatusBadRequest, "age must not be negative")
		return
	}

	role := model.RoleChild
	if req.Role != nil {
		role = *req.Role
	}
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "role must be PARENT or CHILD")
		return
	}
	if req.AvatarColor == "" {
		req.AvatarColor = defaultAvatarColor
	}
	var password string
	if req.Password != nil {
		password = *req.Password
	}

	if ok := h.nameAvailable(w, req.Name, ""); !ok {
		return
	}

	member, err := h.members.Add(model.Member{
		Name:        req.Name,
		Age:         req.Age,
		AvatarColor: req.AvatarColor,
		Password:    password,
		Role:        role,
	})
	if err != nil {
		h.logger.Error("add member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create family member")
		return
	}

	writeJSON(w, http.StatusCreated, publicMember(*member))
}

// Update handles PUT /api/members/{id}. Omitted password and role keep their
// current values.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ac := actor(r)
	if err := auth.CanEditMember(ac, id); err != nil {
		writeForbidden(w, err)
		return
	}

	existing, err := h.members.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get family member")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "family member not found")
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Age < 0 {
		writeError(w, http.StatusBadRequest, "age must not be negative")
		return
	}

	updated := *existing
	updated.Name = req.Name
	updated.Age = req.Age
	if req.AvatarColor != "" {
		updated.AvatarColor = req.AvatarColor
	}
	if req.Password != nil {
		updated.Password = *req.Password
	}
	if req.Role != nil && *req.Role != existing.Role {
		if ac.Role != model.RoleParent {
			writeForbidden(w, auth.ErrForbidden)
			return
		}
		if !req.Role.Valid() {
			writeError(w, http.StatusBadRequest, "role must be PARENT or CHILD")
			return
		}
		updated.Role = *req.Role
	}

	if ok := h.nameAvailable(w, updated.Name, id); !ok {
		return
	}

	if err := h.members.Update(updated); err != nil {
		h.logger.Error("update member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update family member")
		return
	}

	writeJSON(w, http.StatusOK, publicMember(updated))
}

func (h *MemberHandler) nameAvailable(w http.ResponseWriter, name, selfID string) bool {
	other, err := h.members.FindByName(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return false
	}
	if other != nil && other.ID != selfID {
		writeError(w, http.StatusConflict, "a family member with that name already exists")
		return false
	}
	return true
}
