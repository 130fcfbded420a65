package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/remontlab/leadbot/internal/messaging"
	"github.com/remontlab/leadbot/internal/models"
	"github.com/remontlab/leadbot/internal/store"
)

// ContactButtonLabel is the reply keyboard button asking for the user's
// phone contact.
const ContactButtonLabel = "📱 Поделиться номером телефона"

const (
	phoneQuestionHint = "\n\nВы можете ввести номер текстом или поделиться контактом"
	phoneFollowupText = "Отправьте свой номер телефона или поделитесь контактом, и мы свяжемся с вами в ближайшее время"
)

// Driver walks a chat through a form's questions. One session per chat;
// starting a form replaces any session in progress.
type Driver struct {
	store store.Store
	msg   messaging.Service
	sink  *Sink
}

// NewDriver creates a form driver.
func NewDriver(st store.Store, msg messaging.Service, sink *Sink) *Driver {
	return &Driver{store: st, msg: msg, sink: sink}
}

// Start begins a form for a chat, discarding any session in progress. A
// form without questions completes immediately.
func (d *Driver) Start(ctx context.Context, chatID int64, form models.FormKind) error {
	if err := d.store.DeleteSession(chatID); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	q, err := d.store.GetQuestion(form, 1)
	if err != nil {
		return fmt.Errorf("failed to load first question: %w", err)
	}
	sess := models.Session{ChatID: chatID, ActiveForm: form, Answers: map[int]string{}}
	if q == nil {
		slog.Warn("form has no questions", "form", form, "chat_id", chatID)
		return d.finish(ctx, &sess)
	}
	slog.Info("form started", "form", form, "chat_id", chatID)
	return d.askQuestion(ctx, &sess, q)
}

// Reset discards the chat's session, if any.
func (d *Driver) Reset(ctx context.Context, chatID int64) error {
	return d.store.DeleteSession(chatID)
}

// HandleSelectAnswer processes an inline answer button press. Presses that
// do not match the session's current waiting step are stale and dropped
// without a reply.
func (d *Driver) HandleSelectAnswer(ctx context.Context, chatID int64, form models.FormKind, order int, variantID int64) error {
	sess, err := d.store.GetSession(chatID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil || sess.ActiveForm != form {
		slog.Debug("dropping stale answer press", "chat_id", chatID, "form", form, "order", order)
		return nil
	}
	step, err := ParseStep(sess.Step)
	if err != nil || step.Kind != StepSelect || step.Order != order {
		slog.Debug("dropping answer press for wrong step", "chat_id", chatID, "step", sess.Step, "order", order)
		return nil
	}
	q, err := d.store.GetQuestion(form, order)
	if err != nil {
		return fmt.Errorf("failed to load question: %w", err)
	}
	if q == nil {
		slog.Debug("dropping answer press for missing question", "chat_id", chatID, "form", form, "order", order)
		return nil
	}
	var variant *models.Variant
	for i := range q.Variants {
		if q.Variants[i].ID == variantID {
			variant = &q.Variants[i]
			break
		}
	}
	if variant == nil {
		slog.Debug("dropping answer press for unknown variant", "chat_id", chatID, "variant_id", variantID)
		return nil
	}

	if sess.Answers == nil {
		sess.Answers = map[int]string{}
	}
	sess.Answers[order] = variant.Text

	if variant.NeedsPhone {
		sess.Step = Step{Kind: StepPhoneFollowup, Order: order}.Encode()
		if err := d.store.SaveSession(*sess); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		if err := d.msg.SendContactRequest(ctx, chatID, phoneFollowupText, ContactButtonLabel); err != nil {
			return fmt.Errorf("failed to request phone: %w", err)
		}
		return nil
	}
	return d.advance(ctx, sess, order+1)
}

// HandleText processes a free-text message against the session. It reports
// whether the message was consumed by the form.
func (d *Driver) HandleText(ctx context.Context, chatID int64, text string) (bool, error) {
	sess, err := d.store.GetSession(chatID)
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return false, nil
	}
	step, err := ParseStep(sess.Step)
	if err != nil {
		return false, nil
	}
	if sess.Answers == nil {
		sess.Answers = map[int]string{}
	}
	switch step.Kind {
	case StepText:
		sess.Answers[step.Order] = text
		return true, d.advance(ctx, sess, step.Order+1)
	case StepPhone:
		sess.Answers[step.Order] = text
		d.savePhone(chatID, text)
		return true, d.advance(ctx, sess, step.Order+1)
	case StepPhoneFollowup:
		sess.Answers[models.PhoneAnswerKey] = text
		d.savePhone(chatID, text)
		return true, d.finish(ctx, sess)
	default:
		// Waiting for a button press; text is ignored.
		return true, nil
	}
}

// savePhone copies a collected phone onto the user record so the admin
// directory can filter by it.
func (d *Driver) savePhone(chatID int64, phone string) {
	if err := d.store.SetUserPhone(chatID, phone); err != nil {
		slog.Debug("failed to save phone to user", "chat_id", chatID, "error", err)
	}
}

// HandleContact processes a shared phone contact against the session. It
// reports whether the contact was consumed by the form.
func (d *Driver) HandleContact(ctx context.Context, chatID int64, phone string) (bool, error) {
	sess, err := d.store.GetSession(chatID)
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return false, nil
	}
	step, err := ParseStep(sess.Step)
	if err != nil {
		return false, nil
	}
	if sess.Answers == nil {
		sess.Answers = map[int]string{}
	}
	switch step.Kind {
	case StepPhone:
		sess.Answers[step.Order] = phone
		d.savePhone(chatID, phone)
		return true, d.advance(ctx, sess, step.Order+1)
	case StepPhoneFollowup:
		sess.Answers[models.PhoneAnswerKey] = phone
		d.savePhone(chatID, phone)
		return true, d.finish(ctx, sess)
	default:
		return false, nil
	}
}

func (d *Driver) askQuestion(ctx context.Context, sess *models.Session, q *models.Question) error {
	sess.CurrentOrder = q.Order
	var kind StepKind
	switch q.Kind {
	case models.QuestionSelect:
		kind = StepSelect
	case models.QuestionText:
		kind = StepText
	case models.QuestionPhone:
		kind = StepPhone
	default:
		return fmt.Errorf("question %d: %w", q.ID, models.ErrInvalidQuestionKind)
	}
	sess.Step = Step{Kind: kind, Order: q.Order}.Encode()
	if err := d.store.SaveSession(*sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	switch q.Kind {
	case models.QuestionSelect:
		if len(q.Variants) == 0 {
			// Content defect: nothing to offer, so no prompt goes out and
			// the form stalls until an admin fixes the catalog.
			slog.Warn("select question has no variants", "question_id", q.ID, "form", q.FormKind)
			return nil
		}
		rows := make([][]messaging.Button, 0, len(q.Variants))
		for _, v := range q.Variants {
			rows = append(rows, []messaging.Button{{
				Text:         v.Text,
				CallbackData: fmt.Sprintf("%s_answer:%d:%d", sess.ActiveForm, q.Order, v.ID),
			}})
		}
		return d.msg.SendWithButtons(ctx, sess.ChatID, q.Text, rows)
	case models.QuestionPhone:
		return d.msg.SendContactRequest(ctx, sess.ChatID, q.Text+phoneQuestionHint, ContactButtonLabel)
	default:
		return d.msg.SendMessage(ctx, sess.ChatID, q.Text)
	}
}

func (d *Driver) advance(ctx context.Context, sess *models.Session, nextOrder int) error {
	q, err := d.store.GetQuestion(sess.ActiveForm, nextOrder)
	if err != nil {
		return fmt.Errorf("failed to load question: %w", err)
	}
	if q == nil {
		return d.finish(ctx, sess)
	}
	return d.askQuestion(ctx, sess, q)
}

// finish completes the form: the submission goes to the sink, the user
// gets the form's summary message, and the session is discarded.
func (d *Driver) finish(ctx context.Context, sess *models.Session) error {
	questions, err := d.store.ListQuestions(sess.ActiveForm)
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}
	data := NormalizeAnswers(sess.Answers, questions)

	if err := d.sink.Submit(ctx, sess.ChatID, string(sess.ActiveForm), data); err != nil {
		return fmt.Errorf("failed to submit form: %w", err)
	}

	summary, err := d.store.GetFormSummary(sess.ActiveForm)
	if err != nil {
		return fmt.Errorf("failed to load summary message: %w", err)
	}
	if err := d.msg.SendMessageRemoveKeyboard(ctx, sess.ChatID, summary); err != nil {
		slog.Warn("failed to send summary message", "chat_id", sess.ChatID, "error", err)
	}

	if err := d.store.DeleteSession(sess.ChatID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	slog.Info("form completed", "form", sess.ActiveForm, "chat_id", sess.ChatID, "answers", len(sess.Answers))
	return nil
}
