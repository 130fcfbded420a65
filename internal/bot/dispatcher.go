// Package bot routes inbound updates: commands, inline button presses,
// form replies, and the operator group's topic messages.
package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/remontlab/leadbot/internal/broadcast"
	"github.com/remontlab/leadbot/internal/flow"
	"github.com/remontlab/leadbot/internal/messaging"
	"github.com/remontlab/leadbot/internal/models"
	"github.com/remontlab/leadbot/internal/relay"
	"github.com/remontlab/leadbot/internal/store"
)

// Config wires the dispatcher's collaborators.
type Config struct {
	Store       store.Store
	Messaging   messaging.Service
	Driver      *flow.Driver
	Sink        *flow.Sink
	Relay       *relay.Relay
	Broadcaster *broadcast.Broadcaster
	// GroupChatID is the operators' forum group; zero disables the relay
	// surfaces.
	GroupChatID int64
}

// Bot is the update dispatcher.
type Bot struct {
	store       store.Store
	msg         messaging.Service
	driver      *flow.Driver
	sink        *flow.Sink
	relay       *relay.Relay
	broadcaster *broadcast.Broadcaster
	groupChatID int64
}

// New creates the dispatcher.
func New(cfg Config) *Bot {
	return &Bot{
		store:       cfg.Store,
		msg:         cfg.Messaging,
		driver:      cfg.Driver,
		sink:        cfg.Sink,
		relay:       cfg.Relay,
		broadcaster: cfg.Broadcaster,
		groupChatID: cfg.GroupChatID,
	}
}

// SetupCommands publishes the enabled commands that carry a description
// as the bot's command menu.
func (b *Bot) SetupCommands(ctx context.Context) error {
	commands, err := b.store.ListEnabledCommands()
	if err != nil {
		return err
	}
	var menu []messaging.BotCommand
	for _, cmd := range commands {
		if strings.TrimSpace(cmd.Description) == "" {
			continue
		}
		menu = append(menu, messaging.BotCommand{Command: cmd.Command, Description: cmd.Description})
	}
	return b.msg.SetCommands(ctx, menu)
}

// HandleUpdate routes one inbound update. Errors are logged, not
// propagated: one bad update must not stop the poll loop.
func (b *Bot) HandleUpdate(ctx context.Context, upd messaging.Update) {
	var err error
	if upd.IsCallback() {
		err = b.handleCallback(ctx, upd)
	} else {
		err = b.handleMessage(ctx, upd)
	}
	if err != nil {
		slog.Error("failed to handle update", "chat_id", upd.ChatID, "error", err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, upd messaging.Update) error {
	if upd.IsGroup {
		// Operator messages inside a topic of the operators' group go to
		// the connected user.
		if b.relay != nil && upd.ChatID == b.groupChatID && upd.ThreadID != 0 {
			return b.relay.ForwardTopicMessage(ctx, upd.ThreadID, upd.MessageID, upd.Text)
		}
		return nil
	}

	if _, err := b.store.UpsertUser(models.TelegramUser{
		ChatID:    upd.ChatID,
		Username:  upd.Username,
		FirstName: upd.FirstName,
		LastName:  upd.LastName,
	}); err != nil {
		slog.Warn("failed to upsert user", "chat_id", upd.ChatID, "error", err)
	}

	if strings.HasPrefix(upd.Text, "/") {
		return b.handleCommand(ctx, upd.ChatID, commandName(upd.Text))
	}

	// A user with an active operator dialog gets their message mirrored
	// into the topic; the form still sees it afterwards.
	if b.relay != nil {
		if _, err := b.relay.ForwardUserMessage(ctx, upd.ChatID, upd.MessageID); err != nil {
			slog.Warn("failed to mirror user message", "chat_id", upd.ChatID, "error", err)
		}
	}

	if upd.ContactPhone != "" {
		_, err := b.driver.HandleContact(ctx, upd.ChatID, upd.ContactPhone)
		return err
	}
	if upd.Text != "" {
		_, err := b.driver.HandleText(ctx, upd.ChatID, upd.Text)
		return err
	}
	return nil
}

// commandName extracts the bare command from "/name@botname args".
func commandName(text string) string {
	name := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	return name
}

// handleCommand runs a command. Any form in progress is discarded first.
func (b *Bot) handleCommand(ctx context.Context, chatID int64, name string) error {
	if err := b.driver.Reset(ctx, chatID); err != nil {
		return err
	}
	if models.IsValidFormKind(models.FormKind(name)) {
		return b.driver.Start(ctx, chatID, models.FormKind(name))
	}
	switch name {
	case "start":
		return b.sendGreeting(ctx, chatID)
	case "ping":
		return b.sendPing(ctx, chatID)
	case "portfolio":
		return b.sendPortfolioItem(ctx, chatID, 0)
	case "dizayn":
		return b.sendDizayn(ctx, chatID)
	case "proekt_price":
		return b.sendProektPrice(ctx, chatID)
	default:
		slog.Debug("unknown command ignored", "chat_id", chatID, "command", name)
		return nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, upd messaging.Update) error {
	if err := b.msg.AnswerCallback(ctx, upd.CallbackID); err != nil {
		slog.Warn("failed to answer callback", "error", err)
	}
	data := upd.CallbackData
	switch {
	case strings.HasPrefix(data, relay.StartDialogPrefix):
		return b.handleDialogToggle(ctx, upd, strings.TrimPrefix(data, relay.StartDialogPrefix), true)
	case strings.HasPrefix(data, relay.StopDialogPrefix):
		return b.handleDialogToggle(ctx, upd, strings.TrimPrefix(data, relay.StopDialogPrefix), false)
	case strings.HasPrefix(data, "portfolio_nav:"):
		index, err := strconv.Atoi(strings.TrimPrefix(data, "portfolio_nav:"))
		if err != nil {
			slog.Debug("bad portfolio index dropped", "data", data)
			return nil
		}
		return b.sendPortfolioItem(ctx, upd.ChatID, index)
	case data == "dizayn_email":
		return b.sendDizaynEmail(ctx, upd.ChatID)
	case data == broadcast.UnsubscribeCallback:
		return b.broadcaster.Unsubscribe(ctx, upd.ChatID)
	}

	if form, order, variantID, ok := parseAnswerCallback(data); ok {
		return b.driver.HandleSelectAnswer(ctx, upd.ChatID, form, order, variantID)
	}

	// Greeting menu buttons carry the command name as payload.
	return b.handleCommand(ctx, upd.ChatID, data)
}

// handleDialogToggle starts or stops the dialog behind a topic and swaps
// the pressed button for its counterpart.
func (b *Bot) handleDialogToggle(ctx context.Context, upd messaging.Update, rawTopic string, start bool) error {
	if b.relay == nil {
		return nil
	}
	topicID, err := strconv.Atoi(rawTopic)
	if err != nil {
		slog.Debug("bad topic id dropped", "data", rawTopic)
		return nil
	}
	if start {
		if err := b.relay.StartDialog(ctx, topicID); err != nil {
			return err
		}
		rows := [][]messaging.Button{{{
			Text:         "❌ Прервать диалог",
			CallbackData: relay.StopDialogPrefix + rawTopic,
		}}}
		return b.msg.EditMessageButtons(ctx, upd.ChatID, upd.MessageID, rows)
	}
	if err := b.relay.StopDialog(ctx, topicID); err != nil {
		return err
	}
	rows := [][]messaging.Button{{{
		Text:         "✅ Начать диалог",
		CallbackData: relay.StartDialogPrefix + rawTopic,
	}}}
	return b.msg.EditMessageButtons(ctx, upd.ChatID, upd.MessageID, rows)
}

// parseAnswerCallback decodes "<form>_answer:<order>:<variantID>".
func parseAnswerCallback(data string) (models.FormKind, int, int64, bool) {
	idx := strings.Index(data, "_answer:")
	if idx < 0 {
		return "", 0, 0, false
	}
	form := models.FormKind(data[:idx])
	if !models.IsValidFormKind(form) {
		return "", 0, 0, false
	}
	parts := strings.Split(data[idx+len("_answer:"):], ":")
	if len(parts) != 2 {
		return "", 0, 0, false
	}
	order, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", 0, 0, false
	}
	variantID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	return form, order, variantID, true
}
