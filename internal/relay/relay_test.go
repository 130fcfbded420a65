package relay

import (
	"context"
	"strings"
	"testing"

	"github.com/remontlab/leadbot/internal/messaging"
	"github.com/remontlab/leadbot/internal/models"
	"github.com/remontlab/leadbot/internal/store"
)

const groupChatID = int64(-100999)

func newTestRelay(t *testing.T) (*Relay, *store.InMemoryStore, *messaging.MockService) {
	t.Helper()
	st := store.NewInMemoryStore()
	msg := messaging.NewMockService()
	return NewRelay(st, msg, groupChatID), st, msg
}

func testUser(t *testing.T, st store.Store) models.TelegramUser {
	t.Helper()
	u, err := st.UpsertUser(models.TelegramUser{ChatID: 42, Username: "anna", FirstName: "Анна"})
	if err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	return *u
}

func TestNotifySubmissionCreatesTopicOnce(t *testing.T) {
	r, st, msg := newTestRelay(t)
	user := testUser(t, st)
	ctx := context.Background()
	sub := models.Submission{CommandName: "calculate", Data: map[string]string{"1": "Капитальный", "phone": "+7900"}}

	if err := r.NotifySubmission(ctx, user, sub); err != nil {
		t.Fatalf("NotifySubmission failed: %v", err)
	}
	if len(msg.Topics) != 1 {
		t.Fatalf("expected one topic created, got %d", len(msg.Topics))
	}
	if !strings.HasPrefix(msg.Topics[0], "Анна | ") {
		t.Errorf("unexpected topic name %q", msg.Topics[0])
	}
	posted := msg.LastSent()
	if posted.Kind != "topic_buttons" || posted.ChatID != groupChatID {
		t.Fatalf("expected topic post, got %+v", posted)
	}
	if !strings.Contains(posted.Text, "calculate") || !strings.Contains(posted.Text, "📞 +7900") {
		t.Errorf("unexpected notification text %q", posted.Text)
	}
	if got := posted.Rows[0][0].CallbackData; got != "start_dialog:100" {
		t.Errorf("unexpected connect callback %q", got)
	}

	// A second submission reuses the existing topic.
	if err := r.NotifySubmission(ctx, user, sub); err != nil {
		t.Fatalf("NotifySubmission failed: %v", err)
	}
	if len(msg.Topics) != 1 {
		t.Errorf("expected topic reuse, got %d topics", len(msg.Topics))
	}
}

func TestStartDialogActivatesAndRenames(t *testing.T) {
	r, st, msg := newTestRelay(t)
	user := testUser(t, st)
	ctx := context.Background()

	conn, _ := st.AddTopicConnection(models.TopicConnection{UserChatID: user.ChatID, TopicID: 100, TopicName: "Анна | 01.09 12:00"})
	if err := r.StartDialog(ctx, conn.TopicID); err != nil {
		t.Fatalf("StartDialog failed: %v", err)
	}

	active, _ := st.FindActiveConnection(user.ChatID)
	if active == nil || active.TopicID != 100 {
		t.Fatalf("expected active connection, got %+v", active)
	}
	if got := msg.Renames[100]; got != "🟢 Анна | 01.09 12:00" {
		t.Errorf("expected active prefix on topic name, got %q", got)
	}

	var userNotified bool
	for _, m := range msg.Sent {
		if m.Kind == "text" && m.ChatID == user.ChatID && m.Text == models.DefaultOperatorConnectedMessage {
			userNotified = true
		}
	}
	if !userNotified {
		t.Error("expected operator-connected message sent to user")
	}
}

func TestAtMostOneActiveDialogPerUser(t *testing.T) {
	r, st, msg := newTestRelay(t)
	user := testUser(t, st)
	ctx := context.Background()

	st.AddTopicConnection(models.TopicConnection{UserChatID: user.ChatID, TopicID: 100, TopicName: "Анна | 01.09 12:00"})
	st.AddTopicConnection(models.TopicConnection{UserChatID: user.ChatID, TopicID: 200, TopicName: "Анна | 01.09 14:00"})

	if err := r.StartDialog(ctx, 100); err != nil {
		t.Fatalf("StartDialog failed: %v", err)
	}
	if err := r.StartDialog(ctx, 200); err != nil {
		t.Fatalf("StartDialog failed: %v", err)
	}

	active, _ := st.ListActiveConnections(user.ChatID)
	if len(active) != 1 || active[0].TopicID != 200 {
		t.Fatalf("expected only topic 200 active, got %+v", active)
	}
	// The displaced topic loses its active prefix.
	if got := msg.Renames[100]; got != "Анна | 01.09 12:00" {
		t.Errorf("expected topic 100 renamed back, got %q", got)
	}
}

func TestStopDialogDeactivates(t *testing.T) {
	r, st, msg := newTestRelay(t)
	user := testUser(t, st)
	ctx := context.Background()

	st.AddTopicConnection(models.TopicConnection{UserChatID: user.ChatID, TopicID: 100, TopicName: "Анна | 01.09 12:00", IsActive: true})
	if err := r.StopDialog(ctx, 100); err != nil {
		t.Fatalf("StopDialog failed: %v", err)
	}
	active, _ := st.FindActiveConnection(user.ChatID)
	if active != nil {
		t.Errorf("expected no active connection, got %+v", active)
	}
	var userNotified bool
	for _, m := range msg.Sent {
		if m.Kind == "text" && m.ChatID == user.ChatID && m.Text == models.DefaultOperatorDisconnectedMessage {
			userNotified = true
		}
	}
	if !userNotified {
		t.Error("expected operator-disconnected message sent to user")
	}
}

func TestForwardUserMessage(t *testing.T) {
	r, st, msg := newTestRelay(t)
	user := testUser(t, st)
	ctx := context.Background()

	// No active dialog: nothing mirrored.
	mirrored, err := r.ForwardUserMessage(ctx, user.ChatID, 5)
	if err != nil {
		t.Fatalf("ForwardUserMessage failed: %v", err)
	}
	if mirrored {
		t.Error("expected no mirroring without an active dialog")
	}

	st.AddTopicConnection(models.TopicConnection{UserChatID: user.ChatID, TopicID: 100, TopicName: "Анна", IsActive: true})
	mirrored, err = r.ForwardUserMessage(ctx, user.ChatID, 6)
	if err != nil {
		t.Fatalf("ForwardUserMessage failed: %v", err)
	}
	if !mirrored {
		t.Fatal("expected message mirrored")
	}
	if len(msg.Copies) != 1 {
		t.Fatalf("expected one copy, got %d", len(msg.Copies))
	}
	copy := msg.Copies[0]
	if copy.ToChatID != groupChatID || copy.ThreadID != 100 || copy.FromChatID != user.ChatID || copy.MessageID != 6 {
		t.Errorf("unexpected copy %+v", copy)
	}
}

func TestForwardTopicMessageSavesLastAdminText(t *testing.T) {
	r, st, msg := newTestRelay(t)
	user := testUser(t, st)
	ctx := context.Background()

	st.AddTopicConnection(models.TopicConnection{UserChatID: user.ChatID, TopicID: 100, TopicName: "Анна", IsActive: true})
	if err := r.ForwardTopicMessage(ctx, 100, 7, "Здравствуйте, чем помочь?"); err != nil {
		t.Fatalf("ForwardTopicMessage failed: %v", err)
	}
	if len(msg.Copies) != 1 || msg.Copies[0].ToChatID != user.ChatID {
		t.Fatalf("expected copy to user, got %+v", msg.Copies)
	}
	conn, _ := st.GetTopicConnection(100)
	if conn.LastAdminMessageText != "Здравствуйте, чем помочь?" {
		t.Errorf("expected last admin message saved, got %q", conn.LastAdminMessageText)
	}

	// Inactive topics do not forward.
	st.SetConnectionActive(100, false)
	if err := r.ForwardTopicMessage(ctx, 100, 8, "ещё"); err != nil {
		t.Fatalf("ForwardTopicMessage failed: %v", err)
	}
	if len(msg.Copies) != 1 {
		t.Errorf("inactive topic forwarded a message: %+v", msg.Copies)
	}
}
