package messaging

import (
	"context"
	"sync"
)

// SentMessage records one outbound call on the MockService.
type SentMessage struct {
	Kind     string // "text", "html", "buttons", "contact", "remove_keyboard", "photos", "topic"
	ChatID   int64
	ThreadID int
	Text     string
	Rows     [][]Button
	URLs     []string
}

// CopiedMessage records one CopyMessage call.
type CopiedMessage struct {
	ToChatID   int64
	ThreadID   int
	FromChatID int64
	MessageID  int
}

// MockService is a recording Service implementation for tests.
type MockService struct {
	mu sync.Mutex

	Sent     []SentMessage
	Copies   []CopiedMessage
	Topics   []string
	Renames  map[int]string
	Answered []string
	Commands []BotCommand

	// NextTopicID seeds ids returned by CreateForumTopic; each call
	// increments it.
	NextTopicID int

	// Err, when set, is returned by every method.
	Err error
}

// NewMockService creates a MockService with topic ids starting at 100.
func NewMockService() *MockService {
	return &MockService{Renames: make(map[int]string), NextTopicID: 100}
}

func (m *MockService) record(msg SentMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

func (m *MockService) SendMessage(_ context.Context, chatID int64, text string) error {
	return m.record(SentMessage{Kind: "text", ChatID: chatID, Text: text})
}

func (m *MockService) SendHTML(_ context.Context, chatID int64, text string) error {
	return m.record(SentMessage{Kind: "html", ChatID: chatID, Text: text})
}

func (m *MockService) SendWithButtons(_ context.Context, chatID int64, text string, rows [][]Button) error {
	return m.record(SentMessage{Kind: "buttons", ChatID: chatID, Text: text, Rows: rows})
}

func (m *MockService) SendHTMLWithButtons(_ context.Context, chatID int64, text string, rows [][]Button) error {
	return m.record(SentMessage{Kind: "html_buttons", ChatID: chatID, Text: text, Rows: rows})
}

func (m *MockService) SendContactRequest(_ context.Context, chatID int64, text, buttonLabel string) error {
	return m.record(SentMessage{Kind: "contact", ChatID: chatID, Text: text, Rows: [][]Button{{{Text: buttonLabel}}}})
}

func (m *MockService) SendMessageRemoveKeyboard(_ context.Context, chatID int64, text string) error {
	return m.record(SentMessage{Kind: "remove_keyboard", ChatID: chatID, Text: text})
}

func (m *MockService) SendPhotos(_ context.Context, chatID int64, urls []string, caption string) error {
	return m.record(SentMessage{Kind: "photos", ChatID: chatID, Text: caption, URLs: urls})
}

func (m *MockService) CopyMessage(_ context.Context, toChatID int64, threadID int, fromChatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Copies = append(m.Copies, CopiedMessage{ToChatID: toChatID, ThreadID: threadID, FromChatID: fromChatID, MessageID: messageID})
	return nil
}

func (m *MockService) CreateForumTopic(_ context.Context, _ int64, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.Topics = append(m.Topics, name)
	id := m.NextTopicID
	m.NextTopicID++
	return id, nil
}

func (m *MockService) EditForumTopic(_ context.Context, _ int64, threadID int, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Renames[threadID] = name
	return nil
}

func (m *MockService) SendToTopic(_ context.Context, chatID int64, threadID int, text string) error {
	return m.record(SentMessage{Kind: "topic", ChatID: chatID, ThreadID: threadID, Text: text})
}

func (m *MockService) SendToTopicWithButtons(_ context.Context, chatID int64, threadID int, text string, rows [][]Button) error {
	return m.record(SentMessage{Kind: "topic_buttons", ChatID: chatID, ThreadID: threadID, Text: text, Rows: rows})
}

func (m *MockService) EditMessageButtons(_ context.Context, chatID int64, messageID int, rows [][]Button) error {
	return m.record(SentMessage{Kind: "edit_buttons", ChatID: chatID, Rows: rows})
}

func (m *MockService) AnswerCallback(_ context.Context, callbackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Answered = append(m.Answered, callbackID)
	return nil
}

func (m *MockService) SetCommands(_ context.Context, commands []BotCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Commands = append([]BotCommand(nil), commands...)
	return nil
}

// LastSent returns the most recent recorded message, or nil.
func (m *MockService) LastSent() *SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return &m.Sent[len(m.Sent)-1]
}
