package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/famsched/internal/auth"
	"github.com/dukerupert/famsched/internal/backup"
	"github.com/dukerupert/famsched/internal/handler"
	"github.com/dukerupert/famsched/internal/middleware"
	"github.com/dukerupert/famsched/internal/schedule"
	"github.com/dukerupert/famsched/internal/store"
	ws "github.com/dukerupert/famsched/internal/websocket"
)

const (
	loginLimit  = 10
	loginWindow = time.Minute
)

// Deps are the collaborators the HTTP surface is built on.
type Deps struct {
	Members       *store.MemberStore
	Events        *store.EventStore
	Notifications *store.NotificationStore
	Push          *store.PushStore
	PushService   handler.PushSender
	Generator     *schedule.Generator
	Backup        *backup.Manager
	Tokens        *auth.Tokens
	Hub           *ws.Hub
	RateLimiter   *middleware.RateLimiter
	SecureCookie  bool
}

type Server struct {
	deps          Deps
	authH         *handler.AuthHandler
	memberH       *handler.MemberHandler
	eventH        *handler.EventHandler
	notificationH *handler.NotificationHandler
	reportH       *handler.ReportHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	logger        *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Server {
	if deps.RateLimiter == nil {
		deps.RateLimiter = middleware.NewRateLimiter()
	}
	s := &Server{
		deps:          deps,
		authH:         handler.NewAuthHandler(deps.Members, deps.Tokens, deps.SecureCookie, logger.With("component", "auth")),
		memberH:       handler.NewMemberHandler(deps.Members, logger.With("component", "family_member")),
		eventH:        handler.NewEventHandler(deps.Events, deps.Members, deps.Generator, logger.With("component", "calendar")),
		notificationH: handler.NewNotificationHandler(deps.Notifications, logger.With("component", "notification")),
		reportH:       handler.NewReportHandler(deps.Members, deps.Events, logger.With("component", "report")),
		logger:        logger,
	}
	if deps.Push != nil && deps.PushService != nil && deps.PushService.Configured() {
		s.pushH = handler.NewPushHandler(deps.Push, deps.PushService, logger.With("component", "push_handler"))
	}
	if deps.Backup != nil {
		s.backupH = handler.NewBackupHandler(deps.Backup, logger.With("component", "backup_handler"))
	}
	return s
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.deps.RateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("POST /login", s.rateLimited("login", s.authH.Login))
	outerMux.Handle("POST /register", s.rateLimited("register", s.authH.Register))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.HandleFunc("GET /api/members", s.memberH.List)

	// Protected routes, wrapped with RequireMember
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireMember(s.deps.Tokens, s.deps.Members)
	outerMux.Handle("/api/", authMiddleware(protectedMux))
	if s.deps.Hub != nil {
		outerMux.Handle("GET /ws", authMiddleware(ws.HandleWebSocket(s.deps.Hub, s.logger.With("component", "websocket"))))
	}

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// onlineHandler lists the members with an open tab.
func (s *Server) onlineHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"member_ids": s.deps.Hub.Online()})
}

func (s *Server) rateLimited(scope string, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.deps.RateLimiter, scope, loginLimit, loginWindow)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Family members
	mux.HandleFunc("POST /api/members", s.memberH.Create)
	mux.HandleFunc("PUT /api/members/{id}", s.memberH.Update)

	// Calendar events
	mux.HandleFunc("GET /api/events", s.eventH.List)
	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("POST /api/events/batch", s.eventH.Batch)
	mux.HandleFunc("POST /api/events/import", s.eventH.Import)
	mux.HandleFunc("POST /api/events/generate", s.eventH.Generate)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("POST /api/events/{id}/toggle", s.eventH.Toggle)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("POST /api/notifications/read-all", s.notificationH.ReadAll)

	// Reports
	mux.HandleFunc("GET /api/reports", s.reportH.Get)

	if s.deps.Hub != nil {
		mux.HandleFunc("GET /api/online", s.onlineHandler)
	}

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("POST /api/push/test", s.pushH.Test)
	}

	// Backups (parents only)
	if s.backupH != nil {
		mux.Handle("GET /api/backups", middleware.RequireParent(http.HandlerFunc(s.backupH.List)))
		mux.Handle("POST /api/backups", middleware.RequireParent(http.HandlerFunc(s.backupH.Run)))
		mux.Handle("POST /api/backups/restore", middleware.RequireParent(http.HandlerFunc(s.backupH.Restore)))
	}
}
