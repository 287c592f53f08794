package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/famsched/internal/auth"
	"github.com/dukerupert/famsched/internal/backup"
	"github.com/dukerupert/famsched/internal/broadcast"
	"github.com/dukerupert/famsched/internal/config"
	"github.com/dukerupert/famsched/internal/database"
	"github.com/dukerupert/famsched/internal/logging"
	"github.com/dukerupert/famsched/internal/model"
	"github.com/dukerupert/famsched/internal/push"
	"github.com/dukerupert/famsched/internal/reminder"
	"github.com/dukerupert/famsched/internal/schedule"
	"github.com/dukerupert/famsched/internal/server"
	"github.com/dukerupert/famsched/internal/store"
	ws "github.com/dukerupert/famsched/internal/websocket"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid-keys" {
		printVAPIDKeys()
		return
	}

	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	channel, err := openChannel(cfg, logger)
	if err != nil {
		logger.Error("failed to open broadcast channel", "error", err)
		os.Exit(1)
	}

	st := store.New(store.NewSQLiteMedium(db), channel, logging.Component(logger, "store"))
	defer st.Close()

	members, err := seedMembers(cfg.SeedFile)
	if err != nil {
		logger.Error("failed to read seed file", "path", cfg.SeedFile, "error", err)
		os.Exit(1)
	}
	if seeded, err := st.Seed(members); err != nil {
		logger.Error("failed to seed members", "error", err)
		os.Exit(1)
	} else if seeded {
		logger.Info("seeded family members", "count", len(members))
	}

	notifications := store.NewNotificationStore(st)
	memberStore := store.NewMemberStore(st, notifications)
	eventStore := store.NewEventStore(st, notifications)
	pushStore := store.NewPushStore(db)

	hub := ws.NewHub(logging.Component(logger, "websocket"))
	unsubscribe := st.Subscribe(hub.Broadcast)
	defer unsubscribe()

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	var alerter reminder.Alerter = reminder.LogAlerter{Logger: logging.Component(logger, "reminder")}
	if pushSvc.Configured() {
		alerter = push.NewAlerter(pushSvc, pushStore, logging.Component(logger, "push"))
		logger.Info("web push enabled")
	} else {
		logger.Info("web push disabled, completion alerts go to the log")
	}

	scanner := reminder.NewScanner(eventStore, alerter, logging.Component(logger, "reminder"))
	scanner.SetInterval(cfg.ReminderInterval)
	scanner.SetWindow(cfg.ReminderWindow)

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		LocalDir:   cfg.Backup.LocalDir,
		Prefix:     cfg.Backup.Prefix,
		Passphrase: cfg.Backup.Passphrase,
		Interval:   cfg.Backup.Interval,
		Retention:  cfg.Backup.Retention,
	}, st, logging.Component(logger, "backup"), func(s backup.Status) {
		if s.State == backup.StateError {
			logger.Warn("backup failed", "error", s.Error)
		}
	})

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("FAMSCHED_SESSION_SECRET not set, sessions will not survive a restart")
	}

	deps := server.Deps{
		Members:       memberStore,
		Events:        eventStore,
		Notifications: notifications,
		Push:          pushStore,
		PushService:   pushSvc,
		Generator: schedule.NewGenerator(schedule.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}),
		Tokens: auth.NewTokens(secret, cfg.SessionTTL),
		Hub:    hub,
	}
	if backupMgr.Enabled() {
		deps.Backup = backupMgr
	}
	srv := server.New(deps, logger)

	// WriteTimeout stays unset so websocket connections are not cut off.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner.Start(ctx)
	backupMgr.Start(ctx)
	go srv.RateLimiter().RunCleanup(ctx, 10*time.Minute)
	go cleanupDelivered(ctx, pushStore, logger)

	go func() {
		logger.Info("famsched starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	scanner.Stop()
	backupMgr.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// openChannel joins the AMQP exchange when one is configured so several
// instances stay in sync, and falls back to an in-process bus otherwise.
func openChannel(cfg config.Config, logger *slog.Logger) (broadcast.Channel, error) {
	if cfg.AMQPConfigured() {
		ch, err := broadcast.DialAMQP(broadcast.AMQPConfig{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
		}, logging.Component(logger, "amqp"))
		if err != nil {
			return nil, err
		}
		logger.Info("broadcasting updates over AMQP", "exchange", cfg.AMQPExchange)
		return ch, nil
	}
	return broadcast.NewBus(logging.Component(logger, "broadcast")).Open(cfg.ChannelName), nil
}

func seedMembers(path string) ([]model.Member, error) {
	if path == "" {
		return model.DefaultFamily(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var members []model.Member
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return members, nil
}

func cleanupDelivered(ctx context.Context, ps *store.PushStore, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n, err := ps.CleanupDelivered(time.Now().Add(-48 * time.Hour)); err != nil {
				logger.Error("cleanup delivered alerts", "error", err)
			} else if n > 0 {
				logger.Info("cleaned up delivered alerts", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// printVAPIDKeys writes a fresh key pair in .env form.
func printVAPIDKeys() {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate VAPID keys:", err)
		os.Exit(1)
	}
	fmt.Printf("%s_VAPID_PUBLIC_KEY=%s\n%s_VAPID_PRIVATE_KEY=%s\n", config.Prefix, pub, config.Prefix, priv)
}
