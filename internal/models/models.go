// Package models defines the core data structures for LeadBot.
//
// It includes the question/variant catalog, per-conversation form sessions,
// form submissions, operator topic connections, and the types shared by the
// store, bot, and admin API modules.
package models

import (
	"errors"
	"time"
)

// FormKind identifies one of the configured multi-step lead forms.
type FormKind string

const (
	// FormCalculate is the remodeling cost calculator form.
	FormCalculate FormKind = "calculate"
	// FormZamer is the measurement booking form.
	FormZamer FormKind = "zamer"
	// FormConsultacya is the design-project consultation form.
	FormConsultacya FormKind = "consultacya"
)

// IsValidFormKind checks if the given form kind is supported.
func IsValidFormKind(fk FormKind) bool {
	switch fk {
	case FormCalculate, FormZamer, FormConsultacya:
		return true
	default:
		return false
	}
}

// QuestionKind defines how a question is presented and answered.
type QuestionKind string

const (
	// QuestionSelect presents tappable variants as inline buttons.
	QuestionSelect QuestionKind = "select"
	// QuestionText expects a free-text reply.
	QuestionText QuestionKind = "text"
	// QuestionPhone expects a typed phone number or a shared contact.
	QuestionPhone QuestionKind = "phone"
)

// IsValidQuestionKind checks if the given question kind is supported.
func IsValidQuestionKind(qk QuestionKind) bool {
	switch qk {
	case QuestionSelect, QuestionText, QuestionPhone:
		return true
	default:
		return false
	}
}

// Error variables for validation and lookup failures shared across modules.
var (
	ErrInvalidFormKind     = errors.New("invalid form kind")
	ErrInvalidQuestionKind = errors.New("invalid question kind")
	ErrEmptyQuestionText   = errors.New("question text cannot be empty")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrCommandNotFound     = errors.New("command not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrConnectionNotFound  = errors.New("topic connection not found")
)

// Variant is one selectable option of a select-kind question.
// Order is unique within the parent question and doubles as the stable
// choice identifier carried in callback payloads.
type Variant struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	Order      int    `json:"order"`
	NeedsPhone bool   `json:"needs_phone"`
}

// Question is one step of a form. Order values are contiguous starting at 1
// within a form kind; the store keeps them that way on every mutation.
type Question struct {
	ID        int64        `json:"id"`
	FormKind  FormKind     `json:"form_kind"`
	Order     int          `json:"order"`
	Text      string       `json:"text"`
	Kind      QuestionKind `json:"kind"`
	FieldName string       `json:"field_name,omitempty"`
	Variants  []Variant    `json:"variants,omitempty"`
}

// Validate performs basic validation on a Question before it is stored.
func (q *Question) Validate() error {
	if !IsValidFormKind(q.FormKind) {
		return ErrInvalidFormKind
	}
	if !IsValidQuestionKind(q.Kind) {
		return ErrInvalidQuestionKind
	}
	if q.Text == "" {
		return ErrEmptyQuestionText
	}
	return nil
}

// QuestionUpdate carries a partial question update. Nil fields are left
// unchanged; a non-nil Variants slice fully replaces the variant set.
type QuestionUpdate struct {
	Text      *string      `json:"text,omitempty"`
	Kind      *QuestionKind `json:"kind,omitempty"`
	FieldName *string      `json:"field_name,omitempty"`
	Order     *int         `json:"order,omitempty"`
	Variants  []Variant    `json:"variants,omitempty"`
}

// PhoneAnswerKey is the reserved answers key for a phone number captured by a
// needs-phone branch outside the ordered question sequence.
const PhoneAnswerKey = -1

// Session is the ephemeral per-conversation form state. It is owned by
// exactly one chat and mutated only by the form driver for that chat.
type Session struct {
	ChatID       int64          `json:"chat_id"`
	ActiveForm   FormKind       `json:"active_form,omitempty"`
	CurrentOrder int            `json:"current_order,omitempty"`
	Step         string         `json:"step,omitempty"`
	Answers      map[int]string `json:"answers,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Submission is the durable record of a completed form. Data maps normalized
// field names to answers. Immutable once created.
type Submission struct {
	ID             int64             `json:"id"`
	CommandName    string            `json:"command_name"`
	Data           map[string]string `json:"data"`
	TelegramUserID int64             `json:"telegram_user_id"`
	CreatedAt      time.Time         `json:"created_at"`
}

// TelegramUser is a known end user of the bot.
type TelegramUser struct {
	ID               int64     `json:"id"`
	ChatID           int64     `json:"chat_id"`
	Username         string    `json:"username,omitempty"`
	FirstName        string    `json:"first_name,omitempty"`
	LastName         string    `json:"last_name,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	IsSubscribed     bool      `json:"is_subscribed"`
	AutoMessageCount int       `json:"auto_message_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DisplayName returns the best human-readable name for the user.
func (u *TelegramUser) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "Без имени"
	}
}

// UserFilter selects users for the admin listing.
type UserFilter struct {
	Page           int
	Limit          int
	Search         string
	HasPhone       *bool
	HasSubmissions *bool
}

// TopicConnection links one end-user chat to one staff forum topic.
// At most one connection per user chat is active at any time; the relay
// enforces that procedurally, not the store.
type TopicConnection struct {
	ID                   int64     `json:"id"`
	UserChatID           int64     `json:"user_chat_id"`
	TopicID              int       `json:"topic_id"`
	TopicName            string    `json:"topic_name"`
	IsActive             bool      `json:"is_active"`
	LastAdminMessageText string    `json:"last_admin_message_text,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Command is a bot command editable from the admin dashboard. Index orders
// the greeting keyboard; ShowInGreeting hides service commands from it.
type Command struct {
	ID             int64  `json:"id"`
	Command        string `json:"command"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Enabled        bool   `json:"enabled"`
	Index          int    `json:"index"`
	ShowInGreeting bool   `json:"show_in_greeting"`
}

// PortfolioItem is one entry of the portfolio browser.
type PortfolioItem struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	ImgSrc      []string `json:"img_src,omitempty"`
	Order       int      `json:"order"`
}

// StartContent is the HTML greeting shown on /start.
type StartContent struct {
	Content string `json:"content"`
}

// TopicContent holds the operator connect/disconnect messages sent to users.
type TopicContent struct {
	OperatorConnectedMessage    string `json:"operator_connected_message"`
	OperatorDisconnectedMessage string `json:"operator_disconnected_message"`
}

// DizaynContent is the static free-design-offer card.
type DizaynContent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TelegramURL string `json:"telegram_url"`
	WhatsappURL string `json:"whatsapp_url"`
	Email       string `json:"email"`
}

// AutoMessageConfig controls the daily re-engagement broadcast.
type AutoMessageConfig struct {
	ScheduleHour          int        `json:"schedule_hour"`
	ScheduleMinute        int        `json:"schedule_minute"`
	NotificationText      string     `json:"notification_text"`
	UnsubscribeButtonText string     `json:"unsubscribe_button_text"`
	UnsubscribeSuccess    string     `json:"unsubscribe_success_text"`
	LastSentAt            *time.Time `json:"last_sent_at,omitempty"`
}

// Default user-facing texts, overridable through the admin API.
const (
	DefaultSummaryMessage              = "✅ Спасибо! Мы свяжемся с вами в ближайшее время"
	DefaultOperatorConnectedMessage    = "👋 Здравствуйте! К вам подключился оператор. Сейчас я отвечу на все ваши вопросы."
	DefaultOperatorDisconnectedMessage = "👋 Оператор отключился от диалога."
	DefaultUnsubscribeButtonText       = "🔕 Отписаться от рассылки"
	DefaultUnsubscribeSuccessText      = "Вы отписались от рассылки."
	DefaultNotificationText            = "Вы получаете нашу рассылку. Хотите отписаться?"
)
