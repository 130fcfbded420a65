package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/remontlab/leadbot/internal/messaging"
)

const contentUnavailable = "Информация временно недоступна"

const defaultGreeting = "Добрый день! 👋 Выберите пункт меню ниже"

// sendGreeting sends the /start content with a menu of the enabled
// commands marked for the greeting.
func (b *Bot) sendGreeting(ctx context.Context, chatID int64) error {
	text := defaultGreeting
	content, err := b.store.GetStartContent()
	if err != nil {
		return fmt.Errorf("failed to load start content: %w", err)
	}
	if content != nil && content.Content != "" {
		text = content.Content
	}

	commands, err := b.store.ListEnabledCommands()
	if err != nil {
		return fmt.Errorf("failed to load commands: %w", err)
	}
	var rows [][]messaging.Button
	for _, cmd := range commands {
		if !cmd.ShowInGreeting {
			continue
		}
		rows = append(rows, []messaging.Button{{Text: cmd.Title, CallbackData: cmd.Command}})
	}
	return b.msg.SendHTMLWithButtons(ctx, chatID, text, rows)
}

// sendPing reports the bot's own health the same way the admin health
// endpoint does.
func (b *Bot) sendPing(ctx context.Context, chatID int64) error {
	dbEmoji, dbStatus := "✅", "ОК"
	if _, err := b.store.ListCommands(); err != nil {
		dbEmoji, dbStatus = "❌", "ОШИБКА"
	}
	text := fmt.Sprintf("%s <b>База данных:</b> %s\n\n✅ <b>Telegram бот:</b> ОК", dbEmoji, dbStatus)
	return b.msg.SendHTML(ctx, chatID, text)
}

// sendPortfolioItem shows one portfolio item with cyclic prev/next
// navigation.
func (b *Bot) sendPortfolioItem(ctx context.Context, chatID int64, index int) error {
	items, err := b.store.ListPortfolioItems()
	if err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}
	if len(items) == 0 {
		return b.msg.SendMessage(ctx, chatID, "Портфолио пусто")
	}
	if index < 0 || index >= len(items) {
		return nil
	}
	item := items[index]

	caption := item.Title
	if item.Description != "" {
		caption += "\n\n" + item.Description
	}

	prev := index - 1
	if prev < 0 {
		prev = len(items) - 1
	}
	next := index + 1
	if next >= len(items) {
		next = 0
	}
	nav := [][]messaging.Button{{
		{Text: "⬅️ Назад", CallbackData: fmt.Sprintf("portfolio_nav:%d", prev)},
		{Text: "Вперёд ➡️", CallbackData: fmt.Sprintf("portfolio_nav:%d", next)},
	}}

	if len(item.ImgSrc) == 0 {
		return b.msg.SendWithButtons(ctx, chatID, caption, nav)
	}
	urls := item.ImgSrc
	if len(urls) > 10 {
		urls = urls[:10]
	}
	if err := b.msg.SendPhotos(ctx, chatID, urls, caption); err != nil {
		return fmt.Errorf("failed to send portfolio photos: %w", err)
	}
	return b.msg.SendWithButtons(ctx, chatID, "Навигация:", nav)
}

// sendDizayn sends the design-offer card with contact buttons.
func (b *Bot) sendDizayn(ctx context.Context, chatID int64) error {
	content, err := b.store.GetDizaynContent()
	if err != nil {
		return fmt.Errorf("failed to load dizayn content: %w", err)
	}
	if content == nil {
		return b.msg.SendMessage(ctx, chatID, contentUnavailable)
	}
	text := content.Title
	if content.Description != "" {
		text += "\n\n" + content.Description
	}
	rows := [][]messaging.Button{
		{
			{Text: "📱 Telegram", URL: content.TelegramURL},
			{Text: "💬 WhatsApp", URL: content.WhatsappURL},
		},
		{
			{Text: "📧 Email", CallbackData: "dizayn_email"},
		},
	}
	return b.msg.SendHTMLWithButtons(ctx, chatID, text, rows)
}

// sendDizaynEmail answers the email button on the design-offer card.
func (b *Bot) sendDizaynEmail(ctx context.Context, chatID int64) error {
	content, err := b.store.GetDizaynContent()
	if err != nil {
		return fmt.Errorf("failed to load dizayn content: %w", err)
	}
	email := "design@recvart.com"
	if content != nil && strings.TrimSpace(content.Email) != "" {
		email = content.Email
	}
	return b.msg.SendMessage(ctx, chatID, "📧 Наш email: "+email)
}

// sendProektPrice sends the project-price message and records the
// interaction as an empty submission.
func (b *Bot) sendProektPrice(ctx context.Context, chatID int64) error {
	content, err := b.store.GetProektPriceContent()
	if err != nil {
		return fmt.Errorf("failed to load proekt-price content: %w", err)
	}
	if content == "" {
		return b.msg.SendMessage(ctx, chatID, contentUnavailable)
	}
	if err := b.msg.SendHTML(ctx, chatID, content); err != nil {
		return err
	}
	return b.sink.Submit(ctx, chatID, "proekt_price", map[string]string{})
}
