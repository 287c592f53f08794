package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famsched/internal/auth"
	"github.com/dukerupert/famsched/internal/middleware"
	"github.com/dukerupert/famsched/internal/model"
	"github.com/dukerupert/famsched/internal/store"
)

const defaultAvatarColor = "bg-indigo-500"

type AuthHandler struct {
	members      *store.MemberStore
	tokens       *auth.Tokens
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(ms *store.MemberStore, tokens *auth.Tokens, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{members: ms, tokens: tokens, secureCookie: secureCookie, logger: logger}
}

type sessionResponse struct {
	Member model.Member `json:"member"`
	Token  string       `json:"token"`
}

// Login handles POST /login. The member is picked by id, as on the login
// screen, or by name.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.MemberID != "" {
		m, err := h.members.GetByID(req.MemberID)
		if err != nil {
			h.logger.Error("login lookup", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to look up member")
			return
		}
		if m == nil {
			writeError(w, http.StatusUnauthorized, "please choose a family member")
			return
		}
		req.Name = m.Name
	}

	members, err := h.members.List()
	if err != nil {
		h.logger.Error("login list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up member")
		return
	}

	member, err := auth.Authenticate(members, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "incorrect password")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	h.startSession(w, http.StatusOK, *member)
}

// Register handles POST /register: a new member joins the family and is
// logged in straight away.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string     `json:"name"`
		Age         int        `json:"age"`
		Password    string     `json:"password"`
		Role        model.Role `json:"role"`
		AvatarColor string     `json:"avatar_color"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}
	if req.Age <= 0 {
		writeError(w, http.StatusBadRequest, "age is required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleParent
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "role must be PARENT or CHILD")
		return
	}
	if req.AvatarColor == "" {
		req.AvatarColor = defaultAvatarColor
	}

	existing, err := h.members.FindByName(req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "a family member with that name already exists")
		return
	}

	member, err := h.members.Add(model.Member{
		Name:        req.Name,
		Age:         req.Age,
		Password:    req.Password,
		Role:        req.Role,
		AvatarColor: req.AvatarColor,
	})
	if err != nil {
		h.logger.Error("register member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	h.startSession(w, http.StatusCreated, *member)
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	member, err := h.members.GetByID(actor(r).MemberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "family member not found")
		return
	}
	writeJSON(w, http.StatusOK, publicMember(*member))
}

func (h *AuthHandler) startSession(w http.ResponseWriter, status int, member model.Member) {
	token, err := h.tokens.Issue(member)
	if err != nil {
		h.logger.Error("issue session token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, sessionResponse{Member: publicMember(member), Token: token})
}
