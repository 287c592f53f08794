// Package reminder scans for pending events that ended recently and sends a
// one-time completion reminder for each.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/famsched/internal/model"
	"github.com/dukerupert/famsched/internal/store"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultWindow   = 30 * time.Minute

	alertTitle = "Completion reminder"
)

// Alerter shows one-shot alerts. Deliver is only called when Granted
// returns true.
type Alerter interface {
	Granted() bool
	Deliver(ctx context.Context, alert model.Alert) error
}

// Scanner periodically marks recently ended pending events as notified,
// alerting for each one.
type Scanner struct {
	mu       sync.RWMutex
	events   *store.EventStore
	alerter  Alerter
	interval time.Duration
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScanner(events *store.EventStore, alerter Alerter, logger *slog.Logger) *Scanner {
	return &Scanner{
		events:   events,
		alerter:  alerter,
		interval: DefaultInterval,
		window:   DefaultWindow,
		logger:   logger,
		now:      time.Now,
	}
}

// SetInterval changes the scan cadence. It must be called before Start.
func (s *Scanner) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// SetWindow changes how long after an event ends it is still eligible.
func (s *Scanner) SetWindow(d time.Duration) {
	if d > 0 {
		s.window = d
	}
}

// Start begins the scan loop.
func (s *Scanner) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Scan(ctx, s.now()); err != nil {
					s.logger.Error("reminder scan", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the scan loop and waits for it to exit.
func (s *Scanner) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Scan runs one cycle at now and returns the events it marked as notified.
// An event qualifies when it is PENDING, not yet notified, and ended strictly
// between zero and window ago. Qualifying events are marked even when alerts
// are not granted, so a later grant does not replay old reminders.
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]model.FamilyEvent, error) {
	events, err := s.events.List()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var due []model.FamilyEvent
	for _, ev := range events {
		if s.eligible(ev, now) {
			due = append(due, ev)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}

	granted := s.alerter.Granted()
	marked := make([]model.FamilyEvent, 0, len(due))
	for _, ev := range due {
		if granted {
			if err := s.alerter.Deliver(ctx, completionAlert(ev)); err != nil {
				s.logger.Error("deliver reminder", "event_id", ev.ID, "error", err)
			}
		}

		// Only the flag is written; the rest of the record is whatever is
		// stored now, so edits made while alerting survive.
		stored, err := s.events.Mutate(ev.ID, func(cur *model.FamilyEvent) bool {
			if cur.NotifiedCompletion {
				return false
			}
			cur.NotifiedCompletion = true
			return true
		})
		if err != nil {
			return marked, fmt.Errorf("mark notified %s: %w", ev.ID, err)
		}
		if stored != nil {
			marked = append(marked, *stored)
		}
	}

	s.logger.Info("reminder scan", "notified", len(marked), "alerted", granted)
	return marked, nil
}

func (s *Scanner) eligible(ev model.FamilyEvent, now time.Time) bool {
	if ev.Status != model.StatusPending || ev.NotifiedCompletion {
		return false
	}
	elapsed := now.Sub(ev.EndTime)
	return elapsed > 0 && elapsed < s.window
}

func completionAlert(ev model.FamilyEvent) model.Alert {
	return model.Alert{
		Title: alertTitle,
		Body:  fmt.Sprintf("%q has ended. Don't forget to mark it complete!", ev.Title),
		Tag:   ev.ID,
	}
}

// LogAlerter writes alerts to the log. It is used when no push delivery is
// configured.
type LogAlerter struct {
	Logger *slog.Logger
}

func (a LogAlerter) Granted() bool { return true }

func (a LogAlerter) Deliver(_ context.Context, alert model.Alert) error {
	a.Logger.Info("reminder", "title", alert.Title, "body", alert.Body, "tag", alert.Tag)
	return nil
}
