// Package broadcast runs the daily auto-message job: each user with an
// active operator dialog gets the operator's last message re-sent, and
// every fifth message carries an unsubscribe prompt.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/remontlab/leadbot/internal/messaging"
	"github.com/remontlab/leadbot/internal/models"
	"github.com/remontlab/leadbot/internal/store"
)

// UnsubscribeCallback is the callback payload of the unsubscribe button.
const UnsubscribeCallback = "unsubscribe_automessage"

// Stats summarizes one broadcast run.
type Stats struct {
	Sent             int `json:"sent"`
	Failed           int `json:"failed"`
	UnsubscribeShown int `json:"unsubscribeShown"`
}

// Broadcaster owns the auto-message cron job.
type Broadcaster struct {
	store store.Store
	msg   messaging.Service
	loc   *time.Location

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewBroadcaster creates a broadcaster scheduling in Europe/Moscow.
func NewBroadcaster(st store.Store, msg messaging.Service) *Broadcaster {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		slog.Warn("failed to load Moscow timezone, using UTC", "error", err)
		loc = time.UTC
	}
	return &Broadcaster{store: st, msg: msg, loc: loc}
}

// Start schedules the job from the stored config. Without a config the
// job stays unscheduled until the config is saved.
func (b *Broadcaster) Start(ctx context.Context) error {
	cfg, err := b.store.GetAutoMessageConfig()
	if err != nil {
		return fmt.Errorf("failed to load auto-message config: %w", err)
	}
	if cfg == nil {
		slog.Warn("no auto-message config found, broadcast not scheduled")
		return nil
	}
	return b.Reschedule(ctx, cfg.ScheduleHour, cfg.ScheduleMinute)
}

// Reschedule replaces the cron job with a daily run at the given time.
func (b *Broadcaster) Reschedule(ctx context.Context, hour, minute int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cron != nil {
		b.cron.Stop()
	}
	b.cron = cron.New(cron.WithLocation(b.loc))
	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	// The caller's context may be a single HTTP request; scheduled runs
	// must keep working after it is cancelled.
	runCtx := context.WithoutCancel(ctx)
	id, err := b.cron.AddFunc(spec, func() {
		if _, err := b.Send(runCtx); err != nil {
			slog.Error("auto-message broadcast failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule auto-message job: %w", err)
	}
	b.entryID = id
	b.cron.Start()
	slog.Info("auto-message job scheduled", "hour", hour, "minute", minute, "spec", spec)
	return nil
}

// Stop halts the cron job.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cron != nil {
		b.cron.Stop()
	}
}

// Send runs one broadcast: the last operator message goes to every
// subscribed user behind an active dialog; every fifth message per user
// adds the unsubscribe prompt. Per-user failures are counted, not fatal.
func (b *Broadcaster) Send(ctx context.Context) (Stats, error) {
	var stats Stats

	cfg, err := b.store.GetAutoMessageConfig()
	if err != nil {
		return stats, fmt.Errorf("failed to load auto-message config: %w", err)
	}
	if cfg == nil {
		slog.Warn("no auto-message config found")
		return stats, nil
	}

	conns, err := b.store.ListBroadcastConnections()
	if err != nil {
		return stats, fmt.Errorf("failed to list broadcast connections: %w", err)
	}
	if len(conns) == 0 {
		slog.Info("no active dialogs with saved messages, nothing to broadcast")
		return stats, nil
	}

	for _, conn := range conns {
		user, err := b.store.GetUserByChatID(conn.UserChatID)
		if err != nil {
			return stats, fmt.Errorf("failed to look up user: %w", err)
		}
		if user == nil || !user.IsSubscribed {
			continue
		}

		if err := b.msg.SendMessage(ctx, conn.UserChatID, conn.LastAdminMessageText); err != nil {
			stats.Failed++
			slog.Error("failed to send auto message", "chat_id", conn.UserChatID, "error", err)
			continue
		}
		stats.Sent++

		count, err := b.store.IncrementAutoMessageCount(user.ID)
		if err != nil {
			slog.Warn("failed to bump auto-message count", "user_id", user.ID, "error", err)
			continue
		}
		if count > 0 && count%5 == 0 {
			rows := [][]messaging.Button{{{
				Text:         cfg.UnsubscribeButtonText,
				CallbackData: UnsubscribeCallback,
			}}}
			if err := b.msg.SendWithButtons(ctx, conn.UserChatID, cfg.NotificationText, rows); err != nil {
				slog.Error("failed to send unsubscribe prompt", "chat_id", conn.UserChatID, "error", err)
				continue
			}
			stats.UnsubscribeShown++
		}
	}

	now := time.Now()
	cfg.LastSentAt = &now
	if _, err := b.store.UpsertAutoMessageConfig(*cfg); err != nil {
		slog.Warn("failed to record broadcast time", "error", err)
	}

	slog.Info("auto-message broadcast completed",
		"sent", stats.Sent, "failed", stats.Failed, "unsubscribe_shown", stats.UnsubscribeShown)
	return stats, nil
}

// Unsubscribe handles the unsubscribe button: the user stops receiving
// auto messages and gets the configured confirmation.
func (b *Broadcaster) Unsubscribe(ctx context.Context, chatID int64) error {
	if err := b.store.SetUserSubscription(chatID, false); err != nil {
		if err == models.ErrUserNotFound {
			slog.Warn("unsubscribe from unknown chat", "chat_id", chatID)
			return nil
		}
		return fmt.Errorf("failed to unsubscribe user: %w", err)
	}
	cfg, err := b.store.GetAutoMessageConfig()
	if err != nil {
		return fmt.Errorf("failed to load auto-message config: %w", err)
	}
	success := models.DefaultUnsubscribeSuccessText
	if cfg != nil && cfg.UnsubscribeSuccess != "" {
		success = cfg.UnsubscribeSuccess
	}
	if err := b.msg.SendMessage(ctx, chatID, success); err != nil {
		slog.Warn("failed to confirm unsubscribe", "chat_id", chatID, "error", err)
	}
	slog.Info("user unsubscribed from auto messages", "chat_id", chatID)
	return nil
}
