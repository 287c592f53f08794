package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/famsched/internal/model"
	"github.com/dukerupert/famsched/internal/store"
)

// Sender is the part of Service the Alerter needs.
type Sender interface {
	Configured() bool
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Alerter delivers one-shot alerts to every subscribed device. Alerts are
// deduplicated by tag through the delivered ledger in PushStore.
type Alerter struct {
	sender Sender
	subs   *store.PushStore
	logger *slog.Logger
}

func NewAlerter(sender Sender, subs *store.PushStore, logger *slog.Logger) *Alerter {
	return &Alerter{sender: sender, subs: subs, logger: logger}
}

// Granted reports whether alerts can be shown: VAPID keys are configured and
// at least one device has subscribed.
func (a *Alerter) Granted() bool {
	if !a.sender.Configured() {
		return false
	}
	n, err := a.subs.Count()
	if err != nil {
		a.logger.Error("count push subscriptions", "error", err)
		return false
	}
	return n > 0
}

// Deliver sends alert to every subscription unless its tag was delivered
// before. Expired subscriptions are removed.
func (a *Alerter) Deliver(ctx context.Context, alert model.Alert) error {
	if alert.Tag != "" {
		sent, err := a.subs.WasDelivered(alert.Tag)
		if err != nil {
			return fmt.Errorf("check delivered: %w", err)
		}
		if sent {
			a.logger.Debug("alert already delivered", "tag", alert.Tag)
			return nil
		}
	}

	subs, err := a.subs.List()
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	payload := Payload{
		Title: alert.Title,
		Body:  alert.Body,
		URL:   "/",
		Tag:   alert.Tag,
	}

	for i := range subs {
		sub := &subs[i]
		if err := a.sender.Send(ctx, sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				a.logger.Info("removing expired subscription", "id", sub.ID, "member_id", sub.MemberID)
				if err := a.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
					a.logger.Error("delete expired subscription", "error", err)
				}
				continue
			}
			a.logger.Error("send alert", "tag", alert.Tag, "subscription", sub.ID, "error", err)
		}
	}

	if alert.Tag != "" {
		if err := a.subs.RecordDelivered(alert.Tag); err != nil {
			return fmt.Errorf("record delivered: %w", err)
		}
	}
	return nil
}
