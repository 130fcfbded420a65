package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/remontlab/leadbot/internal/broadcast"
	"github.com/remontlab/leadbot/internal/flow"
	"github.com/remontlab/leadbot/internal/messaging"
	"github.com/remontlab/leadbot/internal/models"
	"github.com/remontlab/leadbot/internal/relay"
	"github.com/remontlab/leadbot/internal/store"
)

const (
	userChatID  = int64(42)
	groupChatID = int64(-100999)
)

func newTestBot(t *testing.T) (*Bot, *store.InMemoryStore, *messaging.MockService) {
	t.Helper()
	st := store.NewInMemoryStore()
	msg := messaging.NewMockService()
	r := relay.NewRelay(st, msg, groupChatID)
	sink := flow.NewSink(st, r)
	driver := flow.NewDriver(st, msg, sink)
	b := New(Config{
		Store:       st,
		Messaging:   msg,
		Driver:      driver,
		Sink:        sink,
		Relay:       r,
		Broadcaster: broadcast.NewBroadcaster(st, msg),
		GroupChatID: groupChatID,
	})
	return b, st, msg
}

func userMessage(text string) messaging.Update {
	return messaging.Update{ChatID: userChatID, UserID: userChatID, Username: "anna", FirstName: "Анна", MessageID: 1, Text: text}
}

func seedSelectQuestion(t *testing.T, st store.Store, form models.FormKind) models.Question {
	t.Helper()
	q, err := st.CreateQuestion(models.Question{
		FormKind: form,
		Text:     "Какой ремонт?",
		Kind:     models.QuestionSelect,
		Variants: []models.Variant{{Text: "Косметический"}, {Text: "Капитальный"}},
	})
	if err != nil {
		t.Fatalf("CreateQuestion failed: %v", err)
	}
	return *q
}

func TestCommandStartsForm(t *testing.T) {
	b, st, msg := newTestBot(t)
	seedSelectQuestion(t, st, models.FormCalculate)
	b.HandleUpdate(context.Background(), userMessage("/calculate"))

	sent := msg.LastSent()
	if sent == nil || sent.Kind != "buttons" || sent.Text != "Какой ремонт?" {
		t.Fatalf("expected first question, got %+v", sent)
	}
	// The message also registered the user.
	u, _ := st.GetUserByChatID(userChatID)
	if u == nil || u.Username != "anna" {
		t.Errorf("expected user upserted, got %+v", u)
	}
}

func TestCommandResetsFormInProgress(t *testing.T) {
	b, st, _ := newTestBot(t)
	seedSelectQuestion(t, st, models.FormCalculate)
	seedSelectQuestion(t, st, models.FormZamer)
	ctx := context.Background()

	b.HandleUpdate(ctx, userMessage("/calculate"))
	b.HandleUpdate(ctx, userMessage("/zamer"))

	sess, _ := st.GetSession(userChatID)
	if sess == nil || sess.ActiveForm != models.FormZamer {
		t.Fatalf("expected zamer session, got %+v", sess)
	}
	if len(sess.Answers) != 0 {
		t.Errorf("expected fresh answers, got %+v", sess.Answers)
	}

	// A non-form command also clears the session.
	b.HandleUpdate(ctx, userMessage("/ping"))
	if sess, _ := st.GetSession(userChatID); sess != nil {
		t.Errorf("expected session cleared by command, got %+v", sess)
	}
}

func TestAnswerCallbackRouting(t *testing.T) {
	b, st, _ := newTestBot(t)
	q := seedSelectQuestion(t, st, models.FormCalculate)
	ctx := context.Background()

	b.HandleUpdate(ctx, userMessage("/calculate"))
	b.HandleUpdate(ctx, messaging.Update{
		ChatID:       userChatID,
		CallbackID:   "cb1",
		CallbackData: fmt.Sprintf("calculate_answer:1:%d", q.Variants[1].ID),
	})

	// One question only: the form completed with the chosen variant.
	subs, _ := st.ListSubmissions()
	if len(subs) != 1 || subs[0].Data["1"] != "Капитальный" {
		t.Fatalf("expected completed submission, got %+v", subs)
	}
}

func TestParseAnswerCallback(t *testing.T) {
	form, order, variantID, ok := parseAnswerCallback("zamer_answer:3:17")
	if !ok || form != models.FormZamer || order != 3 || variantID != 17 {
		t.Errorf("got form=%v order=%d variant=%d ok=%v", form, order, variantID, ok)
	}
	for _, bad := range []string{"unknown_answer:1:2", "zamer_answer:1", "zamer_answer:x:2", "zamer_answer:1:y", "plain"} {
		if _, _, _, ok := parseAnswerCallback(bad); ok {
			t.Errorf("parseAnswerCallback(%q) should fail", bad)
		}
	}
}

func TestGreetingMenu(t *testing.T) {
	b, st, msg := newTestBot(t)
	st.UpsertStartContent("<strong>Добрый день!</strong>")
	st.UpsertCommand(models.Command{Command: "zamer", Title: "📏 Записаться на замер", Enabled: true, Index: 0, ShowInGreeting: true})
	st.UpsertCommand(models.Command{Command: "start", Title: "🏠 Главное меню", Enabled: true, Index: -1, ShowInGreeting: false})
	st.UpsertCommand(models.Command{Command: "portfolio", Title: "📸 Портфолио", Enabled: false, Index: 1, ShowInGreeting: true})

	b.HandleUpdate(context.Background(), userMessage("/start"))
	sent := msg.LastSent()
	if sent.Kind != "html_buttons" || sent.Text != "<strong>Добрый день!</strong>" {
		t.Fatalf("expected greeting, got %+v", sent)
	}
	if len(sent.Rows) != 1 || sent.Rows[0][0].CallbackData != "zamer" {
		t.Errorf("expected only enabled greeting commands, got %+v", sent.Rows)
	}
}

func TestGreetingMenuButtonActsLikeCommand(t *testing.T) {
	b, st, msg := newTestBot(t)
	seedSelectQuestion(t, st, models.FormZamer)
	b.HandleUpdate(context.Background(), messaging.Update{
		ChatID:       userChatID,
		CallbackID:   "cb1",
		CallbackData: "zamer",
	})
	sent := msg.LastSent()
	if sent == nil || sent.Kind != "buttons" || sent.Text != "Какой ремонт?" {
		t.Fatalf("expected form start from menu button, got %+v", sent)
	}
}

func TestDialogToggleCallbacks(t *testing.T) {
	b, st, msg := newTestBot(t)
	st.UpsertUser(models.TelegramUser{ChatID: userChatID, Username: "anna"})
	st.AddTopicConnection(models.TopicConnection{UserChatID: userChatID, TopicID: 100, TopicName: "Анна"})
	ctx := context.Background()

	b.HandleUpdate(ctx, messaging.Update{
		ChatID:       groupChatID,
		MessageID:    9,
		IsGroup:      true,
		CallbackID:   "cb1",
		CallbackData: "start_dialog:100",
	})
	if conn, _ := st.GetTopicConnection(100); !conn.IsActive {
		t.Fatal("expected dialog started")
	}
	swap := msg.LastSent()
	if swap.Kind != "edit_buttons" || swap.Rows[0][0].CallbackData != "stop_dialog:100" {
		t.Errorf("expected stop button swap, got %+v", swap)
	}

	b.HandleUpdate(ctx, messaging.Update{
		ChatID:       groupChatID,
		MessageID:    9,
		IsGroup:      true,
		CallbackID:   "cb2",
		CallbackData: "stop_dialog:100",
	})
	if conn, _ := st.GetTopicConnection(100); conn.IsActive {
		t.Fatal("expected dialog stopped")
	}
	swap = msg.LastSent()
	if swap.Kind != "edit_buttons" || swap.Rows[0][0].CallbackData != "start_dialog:100" {
		t.Errorf("expected start button swap, got %+v", swap)
	}
}

func TestUserMessageMirroredToActiveTopic(t *testing.T) {
	b, st, msg := newTestBot(t)
	st.UpsertUser(models.TelegramUser{ChatID: userChatID, Username: "anna"})
	st.AddTopicConnection(models.TopicConnection{UserChatID: userChatID, TopicID: 100, TopicName: "Анна", IsActive: true})

	b.HandleUpdate(context.Background(), userMessage("когда приедет замерщик?"))
	if len(msg.Copies) != 1 || msg.Copies[0].ThreadID != 100 {
		t.Errorf("expected message copied into topic, got %+v", msg.Copies)
	}
}

func TestTopicMessageForwardedToUser(t *testing.T) {
	b, st, msg := newTestBot(t)
	st.AddTopicConnection(models.TopicConnection{UserChatID: userChatID, TopicID: 100, TopicName: "Анна", IsActive: true})

	b.HandleUpdate(context.Background(), messaging.Update{
		ChatID:    groupChatID,
		ThreadID:  100,
		MessageID: 5,
		IsGroup:   true,
		Text:      "Завтра в 10:00",
	})
	if len(msg.Copies) != 1 || msg.Copies[0].ToChatID != userChatID {
		t.Fatalf("expected copy to user, got %+v", msg.Copies)
	}
	conn, _ := st.GetTopicConnection(100)
	if conn.LastAdminMessageText != "Завтра в 10:00" {
		t.Errorf("expected admin text saved, got %q", conn.LastAdminMessageText)
	}
}

func TestPortfolioNavigation(t *testing.T) {
	b, st, msg := newTestBot(t)
	st.CreatePortfolioItem(models.PortfolioItem{Title: "Квартира на Арбате", ImgSrc: []string{"https://example.com/1.jpg"}})
	st.CreatePortfolioItem(models.PortfolioItem{Title: "Дом в Подмосковье"})
	ctx := context.Background()

	b.HandleUpdate(ctx, userMessage("/portfolio"))
	var photos, nav *messaging.SentMessage
	for i := range msg.Sent {
		switch msg.Sent[i].Kind {
		case "photos":
			photos = &msg.Sent[i]
		case "buttons":
			nav = &msg.Sent[i]
		}
	}
	if photos == nil || !strings.Contains(photos.Text, "Квартира на Арбате") {
		t.Fatalf("expected photo item, got %+v", msg.Sent)
	}
	if nav == nil || nav.Rows[0][1].CallbackData != "portfolio_nav:1" {
		t.Fatalf("expected cyclic nav, got %+v", nav)
	}

	// Navigate to the second, text-only item.
	b.HandleUpdate(ctx, messaging.Update{ChatID: userChatID, CallbackID: "cb", CallbackData: "portfolio_nav:1"})
	sent := msg.LastSent()
	if sent.Kind != "buttons" || !strings.Contains(sent.Text, "Дом в Подмосковье") {
		t.Fatalf("expected second item, got %+v", sent)
	}
	// Wrap-around: next from the last item points at the first.
	if got := sent.Rows[0][1].CallbackData; got != "portfolio_nav:0" {
		t.Errorf("expected wrap-around nav, got %q", got)
	}
}

func TestPortfolioEmpty(t *testing.T) {
	b, _, msg := newTestBot(t)
	b.HandleUpdate(context.Background(), userMessage("/portfolio"))
	if got := msg.LastSent(); got.Text != "Портфолио пусто" {
		t.Errorf("expected empty notice, got %+v", got)
	}
}

func TestDizaynCard(t *testing.T) {
	b, st, msg := newTestBot(t)
	st.UpsertDizaynContent(models.DizaynContent{
		Title:       "Дизайн-проект",
		Description: "Сделаем проект за неделю",
		TelegramURL: "https://t.me/rekvart",
		WhatsappURL: "https://wa.me/79000000000",
		Email:       "hello@rekvart.ru",
	})
	ctx := context.Background()

	b.HandleUpdate(ctx, userMessage("/dizayn"))
	card := msg.LastSent()
	if card.Kind != "html_buttons" || !strings.Contains(card.Text, "Дизайн-проект") {
		t.Fatalf("expected dizayn card, got %+v", card)
	}
	if card.Rows[0][0].URL != "https://t.me/rekvart" || card.Rows[1][0].CallbackData != "dizayn_email" {
		t.Errorf("unexpected card buttons %+v", card.Rows)
	}

	b.HandleUpdate(ctx, messaging.Update{ChatID: userChatID, CallbackID: "cb", CallbackData: "dizayn_email"})
	if got := msg.LastSent(); got.Text != "📧 Наш email: hello@rekvart.ru" {
		t.Errorf("unexpected email reply %+v", got)
	}
}

func TestProektPriceRecordsNoEmptySubmission(t *testing.T) {
	b, st, msg := newTestBot(t)
	st.UpsertProektPriceContent("<b>Проект от 1000 ₽/м²</b>")

	b.HandleUpdate(context.Background(), userMessage("/proekt_price"))
	if got := msg.LastSent(); got.Kind != "html" || got.Text != "<b>Проект от 1000 ₽/м²</b>" {
		t.Fatalf("expected price message, got %+v", got)
	}
	// The empty interaction payload is dropped by the sink.
	subs, _ := st.ListSubmissions()
	if len(subs) != 0 {
		t.Errorf("expected no submissions, got %+v", subs)
	}
}

func TestUnsubscribeCallback(t *testing.T) {
	b, st, _ := newTestBot(t)
	st.UpsertUser(models.TelegramUser{ChatID: userChatID, Username: "anna"})

	b.HandleUpdate(context.Background(), messaging.Update{
		ChatID:       userChatID,
		CallbackID:   "cb",
		CallbackData: "unsubscribe_automessage",
	})
	u, _ := st.GetUserByChatID(userChatID)
	if u.IsSubscribed {
		t.Error("expected user unsubscribed")
	}
}

func TestSetupCommandsFiltersEmptyDescriptions(t *testing.T) {
	b, st, msg := newTestBot(t)
	st.UpsertCommand(models.Command{Command: "zamer", Title: "Замер", Description: "Записаться на замер", Enabled: true})
	st.UpsertCommand(models.Command{Command: "hidden", Title: "Скрытая", Description: "  ", Enabled: true})
	st.UpsertCommand(models.Command{Command: "off", Title: "Выключена", Description: "Выключена", Enabled: false})

	if err := b.SetupCommands(context.Background()); err != nil {
		t.Fatalf("SetupCommands failed: %v", err)
	}
	if len(msg.Commands) != 1 || msg.Commands[0].Command != "zamer" {
		t.Errorf("unexpected menu %+v", msg.Commands)
	}
}

func TestCommandNameParsing(t *testing.T) {
	cases := map[string]string{
		"/start":            "start",
		"/zamer@rekvartbot": "zamer",
		"/ping extra":       "ping",
	}
	for input, want := range cases {
		if got := commandName(input); got != want {
			t.Errorf("commandName(%q) = %q, want %q", input, got, want)
		}
	}
}
