package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/remontlab/leadbot/internal/models"
	"github.com/remontlab/leadbot/internal/store"
)

// Notifier is told about persisted submissions. The operator relay
// implements it.
type Notifier interface {
	NotifySubmission(ctx context.Context, user models.TelegramUser, sub models.Submission) error
}

// Sink persists finished submissions and notifies the operator relay.
// Persistence comes first: a notification failure never loses a lead.
type Sink struct {
	store    store.Store
	notifier Notifier
}

// NewSink creates a submission sink. notifier may be nil.
func NewSink(st store.Store, notifier Notifier) *Sink {
	return &Sink{store: st, notifier: notifier}
}

// Submit records a finished form. Submissions from chats without a known
// user and submissions without any answers are dropped.
func (s *Sink) Submit(ctx context.Context, chatID int64, commandName string, data map[string]string) error {
	user, err := s.store.GetUserByChatID(chatID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		slog.Warn("dropping submission from unknown chat", "chat_id", chatID, "command", commandName)
		return nil
	}
	if len(data) == 0 {
		slog.Debug("dropping empty submission", "chat_id", chatID, "command", commandName)
		return nil
	}

	sub, err := s.store.AddSubmission(models.Submission{
		CommandName:    commandName,
		Data:           data,
		TelegramUserID: user.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to persist submission: %w", err)
	}
	slog.Info("submission saved", "id", sub.ID, "command", commandName, "user_id", user.ID)

	if s.notifier != nil {
		if err := s.notifier.NotifySubmission(ctx, *user, *sub); err != nil {
			slog.Warn("failed to notify operators about submission", "id", sub.ID, "error", err)
		}
	}
	return nil
}
