package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/remontlab/leadbot/internal/models"
)

// Content singleton keys in the contents table.
const (
	contentKeyStart       = "start"
	contentKeyTopic       = "topic"
	contentKeyDizayn      = "dizayn"
	contentKeyProektPrice = "proekt_price"
	contentKeyAutoMessage = "auto_message"
)

// sqlStore implements Store on top of database/sql. Queries are written
// with ? placeholders and rebound for PostgreSQL.
type sqlStore struct {
	db     *sql.DB
	driver string
}

// rebind converts ? placeholders to $n for the postgres driver.
func (s *sqlStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) exec(query string, args ...any) (sql.Result, error) {
	return s.db.Exec(s.rebind(query), args...)
}

func (s *sqlStore) query(query string, args ...any) (*sql.Rows, error) {
	return s.db.Query(s.rebind(query), args...)
}

func (s *sqlStore) queryRow(query string, args ...any) *sql.Row {
	return s.db.QueryRow(s.rebind(query), args...)
}

func (s *sqlStore) loadVariants(questionID int64) ([]models.Variant, error) {
	rows, err := s.query(`SELECT id, question_id, text, ord, needs_phone FROM question_variants WHERE question_id = ? ORDER BY ord, id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()
	var out []models.Variant
	for rows.Next() {
		var v models.Variant
		if err := rows.Scan(&v.ID, &v.QuestionID, &v.Text, &v.Order, &v.NeedsPhone); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListQuestions returns the questions of a form ordered by position.
func (s *sqlStore) ListQuestions(form models.FormKind) ([]models.Question, error) {
	rows, err := s.query(`SELECT id, form_kind, ord, text, kind, field_name FROM questions WHERE form_kind = ? ORDER BY ord`, string(form))
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()
	var out []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.FormKind, &q.Order, &q.Text, &q.Kind, &q.FieldName); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		variants, err := s.loadVariants(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Variants = variants
	}
	return out, nil
}

func (s *sqlStore) scanQuestion(row *sql.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.FormKind, &q.Order, &q.Text, &q.Kind, &q.FieldName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan question: %w", err)
	}
	variants, err := s.loadVariants(q.ID)
	if err != nil {
		return nil, err
	}
	q.Variants = variants
	return &q, nil
}

// GetQuestion returns the question at the given position, or nil.
func (s *sqlStore) GetQuestion(form models.FormKind, order int) (*models.Question, error) {
	row := s.queryRow(`SELECT id, form_kind, ord, text, kind, field_name FROM questions WHERE form_kind = ? AND ord = ?`, string(form), order)
	return s.scanQuestion(row)
}

// GetQuestionByID returns the question with the given id, or nil.
func (s *sqlStore) GetQuestionByID(id int64) (*models.Question, error) {
	row := s.queryRow(`SELECT id, form_kind, ord, text, kind, field_name FROM questions WHERE id = ?`, id)
	return s.scanQuestion(row)
}

// CreateQuestion inserts a question inside a transaction, shifting later
// questions up when inserting into the middle of a form.
func (s *sqlStore) CreateQuestion(q models.Question) (*models.Question, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(s.rebind(`SELECT COUNT(*) FROM questions WHERE form_kind = ?`), string(q.FormKind)).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	if q.Order <= 0 || q.Order > count {
		q.Order = count + 1
	} else {
		if _, err := tx.Exec(s.rebind(`UPDATE questions SET ord = ord + 1 WHERE form_kind = ? AND ord >= ?`), string(q.FormKind), q.Order); err != nil {
			return nil, fmt.Errorf("failed to shift questions: %w", err)
		}
	}

	if err := tx.QueryRow(
		s.rebind(`INSERT INTO questions (form_kind, ord, text, kind, field_name) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		string(q.FormKind), q.Order, q.Text, string(q.Kind), q.FieldName,
	).Scan(&q.ID); err != nil {
		return nil, fmt.Errorf("failed to insert question: %w", err)
	}
	for i := range q.Variants {
		v := &q.Variants[i]
		v.QuestionID = q.ID
		if err := tx.QueryRow(
			s.rebind(`INSERT INTO question_variants (question_id, text, ord, needs_phone) VALUES (?, ?, ?, ?) RETURNING id`),
			v.QuestionID, v.Text, v.Order, v.NeedsPhone,
		).Scan(&v.ID); err != nil {
			return nil, fmt.Errorf("failed to insert variant: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit question insert: %w", err)
	}
	slog.Debug("store: question created", "id", q.ID, "form", q.FormKind, "order", q.Order)
	return &q, nil
}

// UpdateQuestion applies a partial update inside a transaction, shifting
// the questions between the old and new positions when the order changes.
func (s *sqlStore) UpdateQuestion(id int64, upd models.QuestionUpdate) (*models.Question, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var q models.Question
	err = tx.QueryRow(s.rebind(`SELECT id, form_kind, ord, text, kind, field_name FROM questions WHERE id = ?`), id).
		Scan(&q.ID, &q.FormKind, &q.Order, &q.Text, &q.Kind, &q.FieldName)
	if err == sql.ErrNoRows {
		return nil, models.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load question: %w", err)
	}

	if upd.Order != nil && *upd.Order != q.Order {
		var count int
		if err := tx.QueryRow(s.rebind(`SELECT COUNT(*) FROM questions WHERE form_kind = ?`), string(q.FormKind)).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count questions: %w", err)
		}
		newOrder := *upd.Order
		if newOrder < 1 {
			newOrder = 1
		} else if newOrder > count {
			newOrder = count
		}
		if newOrder < q.Order {
			_, err = tx.Exec(s.rebind(`UPDATE questions SET ord = ord + 1 WHERE form_kind = ? AND ord >= ? AND ord < ? AND id != ?`),
				string(q.FormKind), newOrder, q.Order, q.ID)
		} else {
			_, err = tx.Exec(s.rebind(`UPDATE questions SET ord = ord - 1 WHERE form_kind = ? AND ord > ? AND ord <= ? AND id != ?`),
				string(q.FormKind), q.Order, newOrder, q.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to shift questions: %w", err)
		}
		q.Order = newOrder
	}
	if upd.Text != nil {
		q.Text = *upd.Text
	}
	if upd.Kind != nil {
		q.Kind = *upd.Kind
	}
	if upd.FieldName != nil {
		q.FieldName = *upd.FieldName
	}

	if _, err := tx.Exec(s.rebind(`UPDATE questions SET ord = ?, text = ?, kind = ?, field_name = ? WHERE id = ?`),
		q.Order, q.Text, string(q.Kind), q.FieldName, q.ID); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	if upd.Variants != nil {
		if _, err := tx.Exec(s.rebind(`DELETE FROM question_variants WHERE question_id = ?`), q.ID); err != nil {
			return nil, fmt.Errorf("failed to delete variants: %w", err)
		}
		for _, v := range upd.Variants {
			if _, err := tx.Exec(s.rebind(`INSERT INTO question_variants (question_id, text, ord, needs_phone) VALUES (?, ?, ?, ?)`),
				q.ID, v.Text, v.Order, v.NeedsPhone); err != nil {
				return nil, fmt.Errorf("failed to insert variant: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit question update: %w", err)
	}
	return s.GetQuestionByID(id)
}

// DeleteQuestion removes a question inside a transaction and closes the
// order gap it leaves behind.
func (s *sqlStore) DeleteQuestion(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var form string
	var order int
	err = tx.QueryRow(s.rebind(`SELECT form_kind, ord FROM questions WHERE id = ?`), id).Scan(&form, &order)
	if err == sql.ErrNoRows {
		return models.ErrQuestionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load question: %w", err)
	}
	if _, err := tx.Exec(s.rebind(`DELETE FROM question_variants WHERE question_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete variants: %w", err)
	}
	if _, err := tx.Exec(s.rebind(`DELETE FROM questions WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	if _, err := tx.Exec(s.rebind(`UPDATE questions SET ord = ord - 1 WHERE form_kind = ? AND ord > ?`), form, order); err != nil {
		return fmt.Errorf("failed to reindex questions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit question delete: %w", err)
	}
	slog.Debug("store: question deleted", "id", id, "form", form, "order", order)
	return nil
}

// GetSession returns the session for a chat, or nil when none exists.
func (s *sqlStore) GetSession(chatID int64) (*models.Session, error) {
	var sess models.Session
	var answersJSON string
	err := s.queryRow(`SELECT chat_id, active_form, current_order, step, answers, updated_at FROM sessions WHERE chat_id = ?`, chatID).
		Scan(&sess.ChatID, &sess.ActiveForm, &sess.CurrentOrder, &sess.Step, &answersJSON, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	sess.Answers = make(map[int]string)
	if answersJSON != "" {
		if err := json.Unmarshal([]byte(answersJSON), &sess.Answers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session answers: %w", err)
		}
	}
	return &sess, nil
}

// SaveSession stores or replaces the session for a chat.
func (s *sqlStore) SaveSession(sess models.Session) error {
	answers := sess.Answers
	if answers == nil {
		answers = map[int]string{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to marshal session answers: %w", err)
	}
	_, err = s.exec(`INSERT INTO sessions (chat_id, active_form, current_order, step, answers, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET active_form = EXCLUDED.active_form,
			current_order = EXCLUDED.current_order, step = EXCLUDED.step,
			answers = EXCLUDED.answers, updated_at = EXCLUDED.updated_at`,
		sess.ChatID, string(sess.ActiveForm), sess.CurrentOrder, sess.Step, string(answersJSON), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// DeleteSession removes the session for a chat.
func (s *sqlStore) DeleteSession(chatID int64) error {
	if _, err := s.exec(`DELETE FROM sessions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// UpsertUser creates or updates a user keyed by chat id. An empty phone in
// the update keeps the stored phone.
func (s *sqlStore) UpsertUser(u models.TelegramUser) (*models.TelegramUser, error) {
	now := time.Now()
	_, err := s.exec(`INSERT INTO telegram_users (chat_id, username, first_name, last_name, phone, is_subscribed, auto_message_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET username = EXCLUDED.username,
			first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			phone = CASE WHEN EXCLUDED.phone = '' THEN telegram_users.phone ELSE EXCLUDED.phone END,
			updated_at = EXCLUDED.updated_at`,
		u.ChatID, u.Username, u.FirstName, u.LastName, u.Phone, true, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return s.GetUserByChatID(u.ChatID)
}

func scanUser(scan func(dest ...any) error) (*models.TelegramUser, error) {
	var u models.TelegramUser
	err := scan(&u.ID, &u.ChatID, &u.Username, &u.FirstName, &u.LastName, &u.Phone,
		&u.IsSubscribed, &u.AutoMessageCount, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userColumns = `id, chat_id, username, first_name, last_name, phone, is_subscribed, auto_message_count, created_at, updated_at`

// GetUserByChatID returns the user with the given chat id, or nil.
func (s *sqlStore) GetUserByChatID(chatID int64) (*models.TelegramUser, error) {
	row := s.queryRow(`SELECT `+userColumns+` FROM telegram_users WHERE chat_id = ?`, chatID)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

// ListUsers returns a page of users matching the filter plus the total count.
func (s *sqlStore) ListUsers(f models.UserFilter) ([]models.TelegramUser, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}
	where := []string{"1=1"}
	var args []any
	if f.Search != "" {
		where = append(where, "(LOWER(username) LIKE ? OR LOWER(first_name) LIKE ?)")
		needle := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, needle, needle)
	}
	if f.HasPhone != nil {
		if *f.HasPhone {
			where = append(where, "phone != ''")
		} else {
			where = append(where, "phone = ''")
		}
	}
	if f.HasSubmissions != nil {
		sub := "EXISTS (SELECT 1 FROM form_submissions WHERE form_submissions.telegram_user_id = telegram_users.id)"
		if !*f.HasSubmissions {
			sub = "NOT " + sub
		}
		where = append(where, sub)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.queryRow(`SELECT COUNT(*) FROM telegram_users WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := s.query(`SELECT `+userColumns+` FROM telegram_users WHERE `+cond+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()
	var out []models.TelegramUser
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

// SetUserSubscription toggles the auto-message subscription flag.
func (s *sqlStore) SetUserSubscription(chatID int64, subscribed bool) error {
	res, err := s.exec(`UPDATE telegram_users SET is_subscribed = ?, updated_at = ? WHERE chat_id = ?`, subscribed, time.Now(), chatID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// SetUserPhone stores a phone captured during a form.
func (s *sqlStore) SetUserPhone(chatID int64, phone string) error {
	res, err := s.exec(`UPDATE telegram_users SET phone = ?, updated_at = ? WHERE chat_id = ?`, phone, time.Now(), chatID)
	if err != nil {
		return fmt.Errorf("failed to update phone: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// IncrementAutoMessageCount bumps and returns the user's auto-message count.
func (s *sqlStore) IncrementAutoMessageCount(userID int64) (int, error) {
	var count int
	err := s.queryRow(`UPDATE telegram_users SET auto_message_count = auto_message_count + 1 WHERE id = ? RETURNING auto_message_count`, userID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, models.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment auto-message count: %w", err)
	}
	return count, nil
}

// AddSubmission stores a completed form submission.
func (s *sqlStore) AddSubmission(sub models.Submission) (*models.Submission, error) {
	data := sub.Data
	if data == nil {
		data = map[string]string{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission data: %w", err)
	}
	sub.CreatedAt = time.Now()
	if err := s.queryRow(`INSERT INTO form_submissions (command_name, data, telegram_user_id, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		sub.CommandName, string(dataJSON), sub.TelegramUserID, sub.CreatedAt).Scan(&sub.ID); err != nil {
		return nil, fmt.Errorf("failed to insert submission: %w", err)
	}
	return &sub, nil
}

func (s *sqlStore) listSubmissions(cond string, args ...any) ([]models.Submission, error) {
	rows, err := s.query(`SELECT id, command_name, data, telegram_user_id, created_at FROM form_submissions `+cond+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()
	var out []models.Submission
	for rows.Next() {
		var sub models.Submission
		var dataJSON string
		if err := rows.Scan(&sub.ID, &sub.CommandName, &dataJSON, &sub.TelegramUserID, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		sub.Data = make(map[string]string)
		if dataJSON != "" {
			if err := json.Unmarshal([]byte(dataJSON), &sub.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal submission data: %w", err)
			}
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ListSubmissions returns all submissions, newest first.
func (s *sqlStore) ListSubmissions() ([]models.Submission, error) {
	return s.listSubmissions("")
}

// ListSubmissionsByUser returns one user's submissions, newest first.
func (s *sqlStore) ListSubmissionsByUser(userID int64) ([]models.Submission, error) {
	return s.listSubmissions(`WHERE telegram_user_id = ?`, userID)
}

const connectionColumns = `id, user_chat_id, topic_id, topic_name, is_active, last_admin_message_text, created_at, updated_at`

func scanConnection(scan func(dest ...any) error) (*models.TopicConnection, error) {
	var c models.TopicConnection
	err := scan(&c.ID, &c.UserChatID, &c.TopicID, &c.TopicName, &c.IsActive,
		&c.LastAdminMessageText, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AddTopicConnection records a new user-to-topic link.
func (s *sqlStore) AddTopicConnection(c models.TopicConnection) (*models.TopicConnection, error) {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.queryRow(`INSERT INTO topic_connections (user_chat_id, topic_id, topic_name, is_active, last_admin_message_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		c.UserChatID, c.TopicID, c.TopicName, c.IsActive, c.LastAdminMessageText, c.CreatedAt, c.UpdatedAt).Scan(&c.ID); err != nil {
		return nil, fmt.Errorf("failed to insert topic connection: %w", err)
	}
	return &c, nil
}

// GetTopicConnection returns the connection for a topic id, or nil.
func (s *sqlStore) GetTopicConnection(topicID int) (*models.TopicConnection, error) {
	row := s.queryRow(`SELECT `+connectionColumns+` FROM topic_connections WHERE topic_id = ?`, topicID)
	c, err := scanConnection(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan topic connection: %w", err)
	}
	return c, nil
}

// FindActiveConnection returns the most recently updated active connection
// for a user chat, or nil.
func (s *sqlStore) FindActiveConnection(userChatID int64) (*models.TopicConnection, error) {
	row := s.queryRow(`SELECT `+connectionColumns+` FROM topic_connections
		WHERE user_chat_id = ? AND is_active = ? ORDER BY updated_at DESC LIMIT 1`, userChatID, true)
	c, err := scanConnection(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan topic connection: %w", err)
	}
	return c, nil
}

// FindConnectionByUser returns the most recently updated connection of a
// user chat regardless of its active flag, or nil.
func (s *sqlStore) FindConnectionByUser(userChatID int64) (*models.TopicConnection, error) {
	row := s.queryRow(`SELECT `+connectionColumns+` FROM topic_connections
		WHERE user_chat_id = ? ORDER BY updated_at DESC LIMIT 1`, userChatID)
	c, err := scanConnection(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan topic connection: %w", err)
	}
	return c, nil
}

func (s *sqlStore) listConnections(cond string, args ...any) ([]models.TopicConnection, error) {
	rows, err := s.query(`SELECT `+connectionColumns+` FROM topic_connections `+cond, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query topic connections: %w", err)
	}
	defer rows.Close()
	var out []models.TopicConnection
	for rows.Next() {
		c, err := scanConnection(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic connection: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListActiveConnections returns every active connection of a user chat.
func (s *sqlStore) ListActiveConnections(userChatID int64) ([]models.TopicConnection, error) {
	return s.listConnections(`WHERE user_chat_id = ? AND is_active = ?`, userChatID, true)
}

// ListBroadcastConnections returns active connections carrying a saved
// admin message.
func (s *sqlStore) ListBroadcastConnections() ([]models.TopicConnection, error) {
	return s.listConnections(`WHERE is_active = ? AND last_admin_message_text != ''`, true)
}

// SetConnectionActive flips the active flag of a connection.
func (s *sqlStore) SetConnectionActive(topicID int, active bool) error {
	res, err := s.exec(`UPDATE topic_connections SET is_active = ?, updated_at = ? WHERE topic_id = ?`, active, time.Now(), topicID)
	if err != nil {
		return fmt.Errorf("failed to update topic connection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrConnectionNotFound
	}
	return nil
}

// SetConnectionLastAdminMessage saves the last operator message text.
func (s *sqlStore) SetConnectionLastAdminMessage(topicID int, text string) error {
	res, err := s.exec(`UPDATE topic_connections SET last_admin_message_text = ?, updated_at = ? WHERE topic_id = ?`, text, time.Now(), topicID)
	if err != nil {
		return fmt.Errorf("failed to update topic connection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrConnectionNotFound
	}
	return nil
}

const commandColumns = `id, command, title, description, enabled, idx, show_in_greeting`

func (s *sqlStore) listCommands(cond string, args ...any) ([]models.Command, error) {
	rows, err := s.query(`SELECT `+commandColumns+` FROM commands `+cond+` ORDER BY idx`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()
	var out []models.Command
	for rows.Next() {
		var c models.Command
		if err := rows.Scan(&c.ID, &c.Command, &c.Title, &c.Description, &c.Enabled, &c.Index, &c.ShowInGreeting); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListCommands returns all commands sorted by index.
func (s *sqlStore) ListCommands() ([]models.Command, error) {
	return s.listCommands("")
}

// ListEnabledCommands returns enabled commands sorted by index.
func (s *sqlStore) ListEnabledCommands() ([]models.Command, error) {
	return s.listCommands(`WHERE enabled = ?`, true)
}

// GetCommandByName returns the command with the given name, or nil.
func (s *sqlStore) GetCommandByName(name string) (*models.Command, error) {
	var c models.Command
	err := s.queryRow(`SELECT `+commandColumns+` FROM commands WHERE command = ?`, name).
		Scan(&c.ID, &c.Command, &c.Title, &c.Description, &c.Enabled, &c.Index, &c.ShowInGreeting)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan command: %w", err)
	}
	return &c, nil
}

// UpsertCommand creates or replaces a command keyed by its name.
func (s *sqlStore) UpsertCommand(c models.Command) (*models.Command, error) {
	if err := s.queryRow(`INSERT INTO commands (command, title, description, enabled, idx, show_in_greeting)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (command) DO UPDATE SET title = EXCLUDED.title,
			description = EXCLUDED.description, enabled = EXCLUDED.enabled,
			idx = EXCLUDED.idx, show_in_greeting = EXCLUDED.show_in_greeting
		RETURNING id`,
		c.Command, c.Title, c.Description, c.Enabled, c.Index, c.ShowInGreeting).Scan(&c.ID); err != nil {
		return nil, fmt.Errorf("failed to upsert command: %w", err)
	}
	return &c, nil
}

// DeleteCommand removes the command with the given id.
func (s *sqlStore) DeleteCommand(id int64) error {
	res, err := s.exec(`DELETE FROM commands WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete command: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrCommandNotFound
	}
	return nil
}

// ListPortfolioItems returns portfolio items sorted by position.
func (s *sqlStore) ListPortfolioItems() ([]models.PortfolioItem, error) {
	rows, err := s.query(`SELECT id, title, description, img_src, ord FROM portfolio_items ORDER BY ord, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio items: %w", err)
	}
	defer rows.Close()
	var out []models.PortfolioItem
	for rows.Next() {
		var item models.PortfolioItem
		var imgJSON string
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &imgJSON, &item.Order); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio item: %w", err)
		}
		if imgJSON != "" {
			if err := json.Unmarshal([]byte(imgJSON), &item.ImgSrc); err != nil {
				return nil, fmt.Errorf("failed to unmarshal portfolio images: %w", err)
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// CreatePortfolioItem appends a portfolio item.
func (s *sqlStore) CreatePortfolioItem(item models.PortfolioItem) (*models.PortfolioItem, error) {
	imgs := item.ImgSrc
	if imgs == nil {
		imgs = []string{}
	}
	imgJSON, err := json.Marshal(imgs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal portfolio images: %w", err)
	}
	if item.Order == 0 {
		var count int
		if err := s.queryRow(`SELECT COUNT(*) FROM portfolio_items`).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count portfolio items: %w", err)
		}
		item.Order = count + 1
	}
	if err := s.queryRow(`INSERT INTO portfolio_items (title, description, img_src, ord) VALUES (?, ?, ?, ?) RETURNING id`,
		item.Title, item.Description, string(imgJSON), item.Order).Scan(&item.ID); err != nil {
		return nil, fmt.Errorf("failed to insert portfolio item: %w", err)
	}
	return &item, nil
}

// DeletePortfolioItem removes a portfolio item by id.
func (s *sqlStore) DeletePortfolioItem(id int64) error {
	if _, err := s.exec(`DELETE FROM portfolio_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete portfolio item: %w", err)
	}
	return nil
}

// getContent loads a JSON singleton into dst, reporting whether it exists.
func (s *sqlStore) getContent(key string, dst any) (bool, error) {
	var value string
	err := s.queryRow(`SELECT value FROM contents WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load content %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal content %q: %w", key, err)
	}
	return true, nil
}

func (s *sqlStore) setContent(key string, src any) error {
	value, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to marshal content %q: %w", key, err)
	}
	_, err = s.exec(`INSERT INTO contents (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, string(value))
	if err != nil {
		return fmt.Errorf("failed to save content %q: %w", key, err)
	}
	return nil
}

// GetStartContent returns the /start greeting, or nil when unset.
func (s *sqlStore) GetStartContent() (*models.StartContent, error) {
	var c models.StartContent
	ok, err := s.getContent(contentKeyStart, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// UpsertStartContent replaces the /start greeting.
func (s *sqlStore) UpsertStartContent(content string) error {
	return s.setContent(contentKeyStart, models.StartContent{Content: content})
}

// GetTopicContent returns operator messages, falling back to defaults.
func (s *sqlStore) GetTopicContent() (models.TopicContent, error) {
	var c models.TopicContent
	ok, err := s.getContent(contentKeyTopic, &c)
	if err != nil {
		return models.TopicContent{}, err
	}
	if !ok {
		return topicContentOrDefault(nil), nil
	}
	return topicContentOrDefault(&c), nil
}

// UpsertTopicContent replaces the operator messages.
func (s *sqlStore) UpsertTopicContent(c models.TopicContent) error {
	return s.setContent(contentKeyTopic, c)
}

// GetFormSummary returns the summary message of a form, falling back to the
// default thank-you text.
func (s *sqlStore) GetFormSummary(form models.FormKind) (string, error) {
	var msg string
	ok, err := s.getContent("summary_"+string(form), &msg)
	if err != nil {
		return "", err
	}
	if !ok || msg == "" {
		return models.DefaultSummaryMessage, nil
	}
	return msg, nil
}

// UpsertFormSummary replaces the summary message of a form.
func (s *sqlStore) UpsertFormSummary(form models.FormKind, message string) error {
	return s.setContent("summary_"+string(form), message)
}

// GetDizaynContent returns the design-offer card, or nil when unset.
func (s *sqlStore) GetDizaynContent() (*models.DizaynContent, error) {
	var c models.DizaynContent
	ok, err := s.getContent(contentKeyDizayn, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// UpsertDizaynContent replaces the design-offer card.
func (s *sqlStore) UpsertDizaynContent(c models.DizaynContent) error {
	return s.setContent(contentKeyDizayn, c)
}

// GetProektPriceContent returns the project-price message, empty when unset.
func (s *sqlStore) GetProektPriceContent() (string, error) {
	var msg string
	if _, err := s.getContent(contentKeyProektPrice, &msg); err != nil {
		return "", err
	}
	return msg, nil
}

// UpsertProektPriceContent replaces the project-price message.
func (s *sqlStore) UpsertProektPriceContent(message string) error {
	return s.setContent(contentKeyProektPrice, message)
}

// GetAutoMessageConfig returns the broadcast config, or nil when unset.
func (s *sqlStore) GetAutoMessageConfig() (*models.AutoMessageConfig, error) {
	var c models.AutoMessageConfig
	ok, err := s.getContent(contentKeyAutoMessage, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// UpsertAutoMessageConfig creates or replaces the broadcast config.
func (s *sqlStore) UpsertAutoMessageConfig(c models.AutoMessageConfig) (*models.AutoMessageConfig, error) {
	applyAutoMessageDefaults(&c)
	if err := s.setContent(contentKeyAutoMessage, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Close closes the underlying database.
func (s *sqlStore) Close() error {
	return s.db.Close()
}
