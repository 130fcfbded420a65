// Package relay connects user chats with operators through forum topics
// in the operators' group. Each user gets a topic; while a dialog is
// active, messages are copied both ways. At most one connection per user
// is active at a time.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/remontlab/leadbot/internal/flow"
	"github.com/remontlab/leadbot/internal/messaging"
	"github.com/remontlab/leadbot/internal/models"
	"github.com/remontlab/leadbot/internal/store"
)

// activeTopicPrefix marks topics with a running operator dialog.
const activeTopicPrefix = "🟢 "

// Callback payload prefixes for the operator buttons inside topics.
const (
	StartDialogPrefix = "start_dialog:"
	StopDialogPrefix  = "stop_dialog:"
)

// Relay manages user-to-operator dialogs over forum topics.
type Relay struct {
	store       store.Store
	msg         messaging.Service
	groupChatID int64
	loc         *time.Location
}

// NewRelay creates a relay posting into the operators' group. Topic names
// carry a Moscow-time creation stamp.
func NewRelay(st store.Store, msg messaging.Service, groupChatID int64) *Relay {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		slog.Warn("failed to load Moscow timezone, using UTC", "error", err)
		loc = time.UTC
	}
	return &Relay{store: st, msg: msg, groupChatID: groupChatID, loc: loc}
}

// Enabled reports whether an operators' group is configured.
func (r *Relay) Enabled() bool {
	return r.groupChatID != 0
}

func (r *Relay) topicName(user models.TelegramUser) string {
	return fmt.Sprintf("%s | %s", user.DisplayName(), time.Now().In(r.loc).Format("02.01 15:04"))
}

// ensureTopic returns the user's topic connection, creating the forum
// topic when the user has none yet.
func (r *Relay) ensureTopic(ctx context.Context, user models.TelegramUser) (*models.TopicConnection, error) {
	conn, err := r.store.FindConnectionByUser(user.ChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up topic connection: %w", err)
	}
	if conn != nil {
		return conn, nil
	}
	name := r.topicName(user)
	topicID, err := r.msg.CreateForumTopic(ctx, r.groupChatID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create forum topic: %w", err)
	}
	conn, err = r.store.AddTopicConnection(models.TopicConnection{
		UserChatID: user.ChatID,
		TopicID:    topicID,
		TopicName:  name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save topic connection: %w", err)
	}
	slog.Info("forum topic created", "topic_id", topicID, "user_chat_id", user.ChatID, "name", name)
	return conn, nil
}

// NotifySubmission posts a finished form into the user's topic with a
// connect button. It implements flow.Notifier.
func (r *Relay) NotifySubmission(ctx context.Context, user models.TelegramUser, sub models.Submission) error {
	if !r.Enabled() {
		return nil
	}
	conn, err := r.ensureTopic(ctx, user)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("📨 Новая заявка: %s\n👤 %s", sub.CommandName, user.DisplayName())
	if user.Username != "" {
		text += " (@" + user.Username + ")"
	}
	text += "\n\n" + flow.FormatSubmission(sub.Data)
	rows := [][]messaging.Button{{{
		Text:         "Подключиться к диалогу",
		CallbackData: fmt.Sprintf("%s%d", StartDialogPrefix, conn.TopicID),
	}}}
	if err := r.msg.SendToTopicWithButtons(ctx, r.groupChatID, conn.TopicID, text, rows); err != nil {
		return fmt.Errorf("failed to post submission to topic: %w", err)
	}
	return nil
}

// StartDialog activates the dialog behind a topic. Any other active
// connection of the same user is deactivated first, so at most one dialog
// per user runs at a time.
func (r *Relay) StartDialog(ctx context.Context, topicID int) error {
	conn, err := r.store.GetTopicConnection(topicID)
	if err != nil {
		return fmt.Errorf("failed to load topic connection: %w", err)
	}
	if conn == nil {
		slog.Warn("start dialog for unknown topic", "topic_id", topicID)
		return nil
	}

	others, err := r.store.ListActiveConnections(conn.UserChatID)
	if err != nil {
		return fmt.Errorf("failed to list active connections: %w", err)
	}
	for _, other := range others {
		if other.TopicID == topicID {
			continue
		}
		if err := r.store.SetConnectionActive(other.TopicID, false); err != nil {
			return fmt.Errorf("failed to deactivate connection: %w", err)
		}
		if err := r.msg.EditForumTopic(ctx, r.groupChatID, other.TopicID, other.TopicName); err != nil {
			slog.Warn("failed to rename deactivated topic", "topic_id", other.TopicID, "error", err)
		}
	}

	if err := r.store.SetConnectionActive(topicID, true); err != nil {
		return fmt.Errorf("failed to activate connection: %w", err)
	}
	if err := r.msg.EditForumTopic(ctx, r.groupChatID, topicID, activeTopicPrefix+conn.TopicName); err != nil {
		slog.Warn("failed to rename activated topic", "topic_id", topicID, "error", err)
	}

	content, err := r.store.GetTopicContent()
	if err != nil {
		return fmt.Errorf("failed to load topic content: %w", err)
	}
	if err := r.msg.SendMessage(ctx, conn.UserChatID, content.OperatorConnectedMessage); err != nil {
		slog.Warn("failed to notify user about operator", "chat_id", conn.UserChatID, "error", err)
	}
	rows := [][]messaging.Button{{{
		Text:         "Завершить диалог",
		CallbackData: fmt.Sprintf("%s%d", StopDialogPrefix, topicID),
	}}}
	if err := r.msg.SendToTopicWithButtons(ctx, r.groupChatID, topicID, "Диалог с клиентом начат", rows); err != nil {
		slog.Warn("failed to confirm dialog start in topic", "topic_id", topicID, "error", err)
	}
	slog.Info("dialog started", "topic_id", topicID, "user_chat_id", conn.UserChatID)
	return nil
}

// StopDialog deactivates the dialog behind a topic.
func (r *Relay) StopDialog(ctx context.Context, topicID int) error {
	conn, err := r.store.GetTopicConnection(topicID)
	if err != nil {
		return fmt.Errorf("failed to load topic connection: %w", err)
	}
	if conn == nil {
		slog.Warn("stop dialog for unknown topic", "topic_id", topicID)
		return nil
	}
	if err := r.store.SetConnectionActive(topicID, false); err != nil {
		return fmt.Errorf("failed to deactivate connection: %w", err)
	}
	if err := r.msg.EditForumTopic(ctx, r.groupChatID, topicID, conn.TopicName); err != nil {
		slog.Warn("failed to rename deactivated topic", "topic_id", topicID, "error", err)
	}
	content, err := r.store.GetTopicContent()
	if err != nil {
		return fmt.Errorf("failed to load topic content: %w", err)
	}
	if err := r.msg.SendMessage(ctx, conn.UserChatID, content.OperatorDisconnectedMessage); err != nil {
		slog.Warn("failed to notify user about disconnect", "chat_id", conn.UserChatID, "error", err)
	}
	if err := r.msg.SendToTopic(ctx, r.groupChatID, topicID, "Диалог с клиентом завершён"); err != nil {
		slog.Warn("failed to confirm dialog stop in topic", "topic_id", topicID, "error", err)
	}
	slog.Info("dialog stopped", "topic_id", topicID, "user_chat_id", conn.UserChatID)
	return nil
}

// ForwardUserMessage copies a user's message into their active topic. It
// reports whether the message was mirrored.
func (r *Relay) ForwardUserMessage(ctx context.Context, userChatID int64, messageID int) (bool, error) {
	if !r.Enabled() {
		return false, nil
	}
	conn, err := r.store.FindActiveConnection(userChatID)
	if err != nil {
		return false, fmt.Errorf("failed to look up active connection: %w", err)
	}
	if conn == nil {
		return false, nil
	}
	if err := r.msg.CopyMessage(ctx, r.groupChatID, conn.TopicID, userChatID, messageID); err != nil {
		return false, fmt.Errorf("failed to copy user message to topic: %w", err)
	}
	return true, nil
}

// ForwardTopicMessage copies an operator's topic message to the user when
// that topic's dialog is active. Non-empty text is remembered as the last
// admin message for the auto-message broadcast.
func (r *Relay) ForwardTopicMessage(ctx context.Context, topicID int, messageID int, text string) error {
	conn, err := r.store.GetTopicConnection(topicID)
	if err != nil {
		return fmt.Errorf("failed to load topic connection: %w", err)
	}
	if conn == nil || !conn.IsActive {
		return nil
	}
	if err := r.msg.CopyMessage(ctx, conn.UserChatID, 0, r.groupChatID, messageID); err != nil {
		return fmt.Errorf("failed to copy topic message to user: %w", err)
	}
	if text != "" {
		if err := r.store.SetConnectionLastAdminMessage(topicID, text); err != nil {
			slog.Warn("failed to save last admin message", "topic_id", topicID, "error", err)
		}
	}
	return nil
}
