package broadcast

import (
	"context"
	"testing"

	"github.com/remontlab/leadbot/internal/messaging"
	"github.com/remontlab/leadbot/internal/models"
	"github.com/remontlab/leadbot/internal/store"
)

func seedBroadcast(t *testing.T) (*Broadcaster, *store.InMemoryStore, *messaging.MockService) {
	t.Helper()
	st := store.NewInMemoryStore()
	msg := messaging.NewMockService()
	if _, err := st.UpsertAutoMessageConfig(models.AutoMessageConfig{ScheduleHour: 12}); err != nil {
		t.Fatalf("UpsertAutoMessageConfig failed: %v", err)
	}
	return NewBroadcaster(st, msg), st, msg
}

func TestSendDeliversLastAdminMessage(t *testing.T) {
	b, st, msg := seedBroadcast(t)
	st.UpsertUser(models.TelegramUser{ChatID: 42, Username: "anna"})
	st.AddTopicConnection(models.TopicConnection{UserChatID: 42, TopicID: 100, IsActive: true, LastAdminMessageText: "Добрый день!"})

	stats, err := b.Send(context.Background())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if stats.Sent != 1 || stats.Failed != 0 || stats.UnsubscribeShown != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	sent := msg.LastSent()
	if sent.ChatID != 42 || sent.Text != "Добрый день!" {
		t.Errorf("unexpected message %+v", sent)
	}

	cfg, _ := st.GetAutoMessageConfig()
	if cfg.LastSentAt == nil {
		t.Error("expected lastSentAt recorded")
	}
}

func TestSendSkipsUnsubscribedAndInactive(t *testing.T) {
	b, st, msg := seedBroadcast(t)
	st.UpsertUser(models.TelegramUser{ChatID: 1, Username: "sub"})
	st.UpsertUser(models.TelegramUser{ChatID: 2, Username: "unsub"})
	st.SetUserSubscription(2, false)
	st.AddTopicConnection(models.TopicConnection{UserChatID: 1, TopicID: 100, IsActive: true, LastAdminMessageText: "a"})
	st.AddTopicConnection(models.TopicConnection{UserChatID: 2, TopicID: 200, IsActive: true, LastAdminMessageText: "b"})
	// Active dialog without a saved message is not broadcast.
	st.AddTopicConnection(models.TopicConnection{UserChatID: 1, TopicID: 300, IsActive: false, LastAdminMessageText: "c"})

	stats, err := b.Send(context.Background())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if stats.Sent != 1 {
		t.Errorf("expected one message sent, got %+v", stats)
	}
	for _, m := range msg.Sent {
		if m.ChatID == 2 {
			t.Errorf("unsubscribed user received %+v", m)
		}
	}
}

func TestEveryFifthMessageShowsUnsubscribePrompt(t *testing.T) {
	b, st, msg := seedBroadcast(t)
	u, _ := st.UpsertUser(models.TelegramUser{ChatID: 42, Username: "anna"})
	st.AddTopicConnection(models.TopicConnection{UserChatID: 42, TopicID: 100, IsActive: true, LastAdminMessageText: "напоминание"})

	// Four prior broadcasts already counted.
	for i := 0; i < 4; i++ {
		st.IncrementAutoMessageCount(u.ID)
	}

	stats, err := b.Send(context.Background())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if stats.UnsubscribeShown != 1 {
		t.Fatalf("expected unsubscribe prompt, got %+v", stats)
	}
	prompt := msg.LastSent()
	if prompt.Kind != "buttons" || prompt.Text != models.DefaultNotificationText {
		t.Fatalf("unexpected prompt %+v", prompt)
	}
	if got := prompt.Rows[0][0].CallbackData; got != UnsubscribeCallback {
		t.Errorf("unexpected callback %q", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b, st, msg := seedBroadcast(t)
	st.UpsertUser(models.TelegramUser{ChatID: 42, Username: "anna"})

	if err := b.Unsubscribe(context.Background(), 42); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	u, _ := st.GetUserByChatID(42)
	if u.IsSubscribed {
		t.Error("expected user unsubscribed")
	}
	if got := msg.LastSent(); got.Text != models.DefaultUnsubscribeSuccessText {
		t.Errorf("unexpected confirmation %+v", got)
	}

	// Unknown chats are ignored.
	if err := b.Unsubscribe(context.Background(), 999); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
}

// ctxSensitiveService fails sends once the given context is done, the
// way the real transport does.
type ctxSensitiveService struct {
	*messaging.MockService
}

func (s *ctxSensitiveService) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MockService.SendMessage(ctx, chatID, text)
}

func TestScheduledSendSurvivesCallerCancel(t *testing.T) {
	st := store.NewInMemoryStore()
	msg := &ctxSensitiveService{MockService: messaging.NewMockService()}
	if _, err := st.UpsertAutoMessageConfig(models.AutoMessageConfig{ScheduleHour: 12, ScheduleMinute: 30}); err != nil {
		t.Fatalf("UpsertAutoMessageConfig failed: %v", err)
	}
	st.UpsertUser(models.TelegramUser{ChatID: 42, Username: "anna"})
	st.AddTopicConnection(models.TopicConnection{UserChatID: 42, TopicID: 100, IsActive: true, LastAdminMessageText: "Добрый день!"})

	b := NewBroadcaster(st, msg)
	ctx, cancel := context.WithCancel(context.Background())
	if err := b.Reschedule(ctx, 12, 30); err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}
	defer b.Stop()

	// The rescheduling request is long gone when the job fires.
	cancel()
	b.cron.Entry(b.entryID).Job.Run()

	sent := msg.LastSent()
	if sent == nil || sent.ChatID != 42 || sent.Text != "Добрый день!" {
		t.Fatalf("expected broadcast despite cancelled scheduling context, got %+v", sent)
	}
}

func TestSendWithoutConfigIsNoop(t *testing.T) {
	st := store.NewInMemoryStore()
	msg := messaging.NewMockService()
	b := NewBroadcaster(st, msg)
	stats, err := b.Send(context.Background())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if stats.Sent != 0 || len(msg.Sent) != 0 {
		t.Errorf("expected noop, got %+v", stats)
	}
}
