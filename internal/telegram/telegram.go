// Package telegram implements messaging.Service on top of the Telegram
// Bot API using github.com/go-telegram/bot, and converts inbound Bot API
// updates into transport-neutral messaging.Update values.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/remontlab/leadbot/internal/messaging"
)

// UpdateHandler receives every inbound update.
type UpdateHandler func(ctx context.Context, upd messaging.Update)

// Opts holds configuration for the Telegram client.
type Opts struct {
	// Token is the bot token from @BotFather.
	Token string
	// Debug enables Bot API request logging.
	Debug bool
}

// Option configures Opts.
type Option func(*Opts)

// WithToken sets the bot token.
func WithToken(token string) Option {
	return func(o *Opts) {
		o.Token = token
	}
}

// WithDebug enables Bot API debug logging.
func WithDebug() Option {
	return func(o *Opts) {
		o.Debug = true
	}
}

// Client is the Telegram messaging client. It long-polls for updates and
// hands them to the registered UpdateHandler.
type Client struct {
	bot     *bot.Bot
	handler UpdateHandler
}

// NewClient creates a Telegram client. The bot token is required.
func NewClient(opts ...Option) (*Client, error) {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	c := &Client{}
	botOpts := []bot.Option{
		bot.WithDefaultHandler(c.dispatch),
		bot.WithAllowedUpdates(bot.AllowedUpdates{"message", "callback_query"}),
		bot.WithSkipGetMe(),
	}
	if o.Debug {
		botOpts = append(botOpts, bot.WithDebug())
	}
	b, err := bot.New(o.Token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	c.bot = b
	return c, nil
}

// SetUpdateHandler registers the inbound update handler. Must be called
// before Start.
func (c *Client) SetUpdateHandler(h UpdateHandler) {
	c.handler = h
}

// Start long-polls for updates until the context is cancelled.
func (c *Client) Start(ctx context.Context) {
	slog.Info("Telegram client starting long polling")
	c.bot.Start(ctx)
}

func (c *Client) dispatch(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	if c.handler == nil {
		return
	}
	upd, ok := convertUpdate(update)
	if !ok {
		return
	}
	c.handler(ctx, upd)
}

// convertUpdate maps a Bot API update onto messaging.Update. Updates
// without a message or callback payload are dropped.
func convertUpdate(update *tgmodels.Update) (messaging.Update, bool) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		upd := messaging.Update{
			UserID:       cb.From.ID,
			Username:     cb.From.Username,
			FirstName:    cb.From.FirstName,
			LastName:     cb.From.LastName,
			CallbackID:   cb.ID,
			CallbackData: cb.Data,
		}
		if msg := cb.Message.Message; msg != nil {
			upd.ChatID = msg.Chat.ID
			upd.MessageID = msg.ID
			upd.ThreadID = msg.MessageThreadID
			upd.IsGroup = isGroupChat(msg.Chat.Type)
		}
		return upd, true
	case update.Message != nil:
		msg := update.Message
		upd := messaging.Update{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
			ThreadID:  msg.MessageThreadID,
			IsGroup:   isGroupChat(msg.Chat.Type),
			Text:      msg.Text,
		}
		if msg.From != nil {
			upd.UserID = msg.From.ID
			upd.Username = msg.From.Username
			upd.FirstName = msg.From.FirstName
			upd.LastName = msg.From.LastName
		}
		if msg.Contact != nil {
			upd.ContactPhone = msg.Contact.PhoneNumber
		}
		return upd, true
	default:
		return messaging.Update{}, false
	}
}

func isGroupChat(t tgmodels.ChatType) bool {
	return t == tgmodels.ChatTypeGroup || t == tgmodels.ChatTypeSupergroup
}

// SendMessage sends plain text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendHTML sends HTML-formatted text to a chat.
func (c *Client) SendHTML(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send HTML message: %w", err)
	}
	return nil
}

func inlineKeyboard(rows [][]messaging.Button) *tgmodels.InlineKeyboardMarkup {
	kb := make([][]tgmodels.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tgmodels.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			line = append(line, tgmodels.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.CallbackData,
				URL:          b.URL,
			})
		}
		kb = append(kb, line)
	}
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: kb}
}

// SendWithButtons sends text with an inline keyboard.
func (c *Client) SendWithButtons(ctx context.Context, chatID int64, text string, rows [][]messaging.Button) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: inlineKeyboard(rows),
	})
	if err != nil {
		return fmt.Errorf("failed to send message with buttons: %w", err)
	}
	return nil
}

// SendHTMLWithButtons sends HTML-formatted text with an inline keyboard.
func (c *Client) SendHTMLWithButtons(ctx context.Context, chatID int64, text string, rows [][]messaging.Button) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   tgmodels.ParseModeHTML,
		ReplyMarkup: inlineKeyboard(rows),
	})
	if err != nil {
		return fmt.Errorf("failed to send message with buttons: %w", err)
	}
	return nil
}

// SendContactRequest sends text with a reply keyboard button that asks the
// user to share their phone contact.
func (c *Client) SendContactRequest(ctx context.Context, chatID int64, text, buttonLabel string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
		ReplyMarkup: &tgmodels.ReplyKeyboardMarkup{
			Keyboard: [][]tgmodels.KeyboardButton{
				{{Text: buttonLabel, RequestContact: true}},
			},
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send contact request: %w", err)
	}
	return nil
}

// SendMessageRemoveKeyboard sends text and removes any reply keyboard.
func (c *Client) SendMessageRemoveKeyboard(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: &tgmodels.ReplyKeyboardRemove{RemoveKeyboard: true},
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendPhotos sends one photo or a media-group album with the caption on
// the first photo.
func (c *Client) SendPhotos(ctx context.Context, chatID int64, urls []string, caption string) error {
	if len(urls) == 0 {
		return c.SendMessage(ctx, chatID, caption)
	}
	if len(urls) == 1 {
		_, err := c.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  chatID,
			Photo:   &tgmodels.InputFileString{Data: urls[0]},
			Caption: caption,
		})
		if err != nil {
			return fmt.Errorf("failed to send photo: %w", err)
		}
		return nil
	}
	media := make([]tgmodels.InputMedia, 0, len(urls))
	for i, url := range urls {
		photo := &tgmodels.InputMediaPhoto{Media: url}
		if i == 0 {
			photo.Caption = caption
		}
		media = append(media, photo)
	}
	_, err := c.bot.SendMediaGroup(ctx, &bot.SendMediaGroupParams{ChatID: chatID, Media: media})
	if err != nil {
		return fmt.Errorf("failed to send media group: %w", err)
	}
	return nil
}

// CopyMessage copies a message between chats without a forward header.
func (c *Client) CopyMessage(ctx context.Context, toChatID int64, threadID int, fromChatID int64, messageID int) error {
	_, err := c.bot.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:          toChatID,
		MessageThreadID: threadID,
		FromChatID:      fromChatID,
		MessageID:       messageID,
	})
	if err != nil {
		return fmt.Errorf("failed to copy message: %w", err)
	}
	return nil
}

// CreateForumTopic opens a new forum topic and returns its thread id.
func (c *Client) CreateForumTopic(ctx context.Context, chatID int64, name string) (int, error) {
	topic, err := c.bot.CreateForumTopic(ctx, &bot.CreateForumTopicParams{ChatID: chatID, Name: name})
	if err != nil {
		return 0, fmt.Errorf("failed to create forum topic: %w", err)
	}
	return topic.MessageThreadID, nil
}

// EditForumTopic renames an existing forum topic.
func (c *Client) EditForumTopic(ctx context.Context, chatID int64, threadID int, name string) error {
	_, err := c.bot.EditForumTopic(ctx, &bot.EditForumTopicParams{
		ChatID:          chatID,
		MessageThreadID: threadID,
		Name:            name,
	})
	if err != nil {
		return fmt.Errorf("failed to edit forum topic: %w", err)
	}
	return nil
}

// SendToTopic sends plain text into a forum topic.
func (c *Client) SendToTopic(ctx context.Context, chatID int64, threadID int, text string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          chatID,
		MessageThreadID: threadID,
		Text:            text,
	})
	if err != nil {
		return fmt.Errorf("failed to send topic message: %w", err)
	}
	return nil
}

// SendToTopicWithButtons sends text with an inline keyboard into a forum
// topic.
func (c *Client) SendToTopicWithButtons(ctx context.Context, chatID int64, threadID int, text string, rows [][]messaging.Button) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          chatID,
		MessageThreadID: threadID,
		Text:            text,
		ReplyMarkup:     inlineKeyboard(rows),
	})
	if err != nil {
		return fmt.Errorf("failed to send topic message: %w", err)
	}
	return nil
}

// EditMessageButtons replaces the inline keyboard of a sent message.
func (c *Client) EditMessageButtons(ctx context.Context, chatID int64, messageID int, rows [][]messaging.Button) error {
	_, err := c.bot.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   messageID,
		ReplyMarkup: inlineKeyboard(rows),
	})
	if err != nil {
		return fmt.Errorf("failed to edit message buttons: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := c.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID})
	if err != nil {
		return fmt.Errorf("failed to answer callback query: %w", err)
	}
	return nil
}

// SetCommands publishes the bot command menu.
func (c *Client) SetCommands(ctx context.Context, commands []messaging.BotCommand) error {
	list := make([]tgmodels.BotCommand, 0, len(commands))
	for _, cmd := range commands {
		list = append(list, tgmodels.BotCommand{Command: cmd.Command, Description: cmd.Description})
	}
	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: list})
	if err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	return nil
}
