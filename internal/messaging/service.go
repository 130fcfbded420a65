// Package messaging defines the transport abstraction used by the bot,
// relay, and broadcast modules. The concrete Telegram client lives in
// internal/telegram; tests use the MockService.
package messaging

import "context"

// Button is a single inline keyboard button. Exactly one of CallbackData
// and URL should be set.
type Button struct {
	Text         string
	CallbackData string
	URL          string
}

// BotCommand is a command entry shown in the client's command menu.
type BotCommand struct {
	Command     string
	Description string
}

// Update is a transport-neutral inbound event. Exactly one of the message
// fields (Text, ContactPhone) or the callback fields is meaningful.
type Update struct {
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	MessageID int
	// ThreadID is the forum topic id for group messages, zero otherwise.
	ThreadID  int
	IsGroup   bool
	Text      string
	// ContactPhone is set when the user shared a contact.
	ContactPhone string
	// Callback fields, set for button presses.
	CallbackID   string
	CallbackData string
}

// IsCallback reports whether the update is an inline button press.
func (u Update) IsCallback() bool {
	return u.CallbackID != ""
}

// Service sends messages through the chat transport. Implementations must
// be safe for concurrent use.
type Service interface {
	// SendMessage sends plain text to a chat.
	SendMessage(ctx context.Context, chatID int64, text string) error
	// SendHTML sends HTML-formatted text to a chat.
	SendHTML(ctx context.Context, chatID int64, text string) error
	// SendWithButtons sends text with an inline keyboard; each inner slice
	// is one keyboard row.
	SendWithButtons(ctx context.Context, chatID int64, text string, rows [][]Button) error
	// SendHTMLWithButtons sends HTML-formatted text with an inline
	// keyboard.
	SendHTMLWithButtons(ctx context.Context, chatID int64, text string, rows [][]Button) error
	// SendContactRequest sends text with a reply keyboard button asking
	// the user to share their phone contact.
	SendContactRequest(ctx context.Context, chatID int64, text, buttonLabel string) error
	// SendMessageRemoveKeyboard sends text and removes any reply keyboard.
	SendMessageRemoveKeyboard(ctx context.Context, chatID int64, text string) error
	// SendPhotos sends an album of photos by URL or file id with a caption
	// on the first photo.
	SendPhotos(ctx context.Context, chatID int64, urls []string, caption string) error
	// CopyMessage copies a message between chats without a forward header.
	// threadID routes the copy into a forum topic; zero targets the main
	// chat.
	CopyMessage(ctx context.Context, toChatID int64, threadID int, fromChatID int64, messageID int) error
	// CreateForumTopic opens a new forum topic in a group and returns its
	// thread id.
	CreateForumTopic(ctx context.Context, chatID int64, name string) (int, error)
	// EditForumTopic renames an existing forum topic.
	EditForumTopic(ctx context.Context, chatID int64, threadID int, name string) error
	// SendToTopic sends plain text into a forum topic.
	SendToTopic(ctx context.Context, chatID int64, threadID int, text string) error
	// SendToTopicWithButtons sends text with an inline keyboard into a
	// forum topic.
	SendToTopicWithButtons(ctx context.Context, chatID int64, threadID int, text string, rows [][]Button) error
	// EditMessageButtons replaces the inline keyboard of a sent message.
	EditMessageButtons(ctx context.Context, chatID int64, messageID int, rows [][]Button) error
	// AnswerCallback acknowledges a button press.
	AnswerCallback(ctx context.Context, callbackID string) error
	// SetCommands publishes the bot command menu.
	SetCommands(ctx context.Context, commands []BotCommand) error
}
