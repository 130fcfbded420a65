// Package store provides storage backends for LeadBot.
//
// It includes an in-memory store used in tests and as a fallback, plus
// SQLite- and PostgreSQL-backed stores for production deployments.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/remontlab/leadbot/internal/models"
)

// Store is the persistence contract shared by the bot, relay, broadcast,
// and admin API modules. Lookup methods return (nil, nil) when the record
// does not exist.
type Store interface {
	// Question catalog. Mutations keep order values contiguous from 1
	// within each form kind.
	ListQuestions(form models.FormKind) ([]models.Question, error)
	GetQuestion(form models.FormKind, order int) (*models.Question, error)
	GetQuestionByID(id int64) (*models.Question, error)
	CreateQuestion(q models.Question) (*models.Question, error)
	UpdateQuestion(id int64, upd models.QuestionUpdate) (*models.Question, error)
	DeleteQuestion(id int64) error

	// Per-conversation form sessions.
	GetSession(chatID int64) (*models.Session, error)
	SaveSession(s models.Session) error
	DeleteSession(chatID int64) error

	// User directory.
	UpsertUser(u models.TelegramUser) (*models.TelegramUser, error)
	GetUserByChatID(chatID int64) (*models.TelegramUser, error)
	ListUsers(f models.UserFilter) ([]models.TelegramUser, int, error)
	SetUserSubscription(chatID int64, subscribed bool) error
	SetUserPhone(chatID int64, phone string) error
	IncrementAutoMessageCount(userID int64) (int, error)

	// Form submissions.
	AddSubmission(s models.Submission) (*models.Submission, error)
	ListSubmissions() ([]models.Submission, error)
	ListSubmissionsByUser(userID int64) ([]models.Submission, error)

	// Operator topic connections.
	AddTopicConnection(c models.TopicConnection) (*models.TopicConnection, error)
	GetTopicConnection(topicID int) (*models.TopicConnection, error)
	FindActiveConnection(userChatID int64) (*models.TopicConnection, error)
	FindConnectionByUser(userChatID int64) (*models.TopicConnection, error)
	ListActiveConnections(userChatID int64) ([]models.TopicConnection, error)
	ListBroadcastConnections() ([]models.TopicConnection, error)
	SetConnectionActive(topicID int, active bool) error
	SetConnectionLastAdminMessage(topicID int, text string) error

	// Bot command registry.
	ListCommands() ([]models.Command, error)
	ListEnabledCommands() ([]models.Command, error)
	GetCommandByName(name string) (*models.Command, error)
	UpsertCommand(c models.Command) (*models.Command, error)
	DeleteCommand(id int64) error

	// Portfolio browser.
	ListPortfolioItems() ([]models.PortfolioItem, error)
	CreatePortfolioItem(item models.PortfolioItem) (*models.PortfolioItem, error)
	DeletePortfolioItem(id int64) error

	// Content singletons. Getters fall back to defaults where one exists.
	GetStartContent() (*models.StartContent, error)
	UpsertStartContent(content string) error
	GetTopicContent() (models.TopicContent, error)
	UpsertTopicContent(c models.TopicContent) error
	GetFormSummary(form models.FormKind) (string, error)
	UpsertFormSummary(form models.FormKind, message string) error
	GetDizaynContent() (*models.DizaynContent, error)
	UpsertDizaynContent(c models.DizaynContent) error
	GetProektPriceContent() (string, error)
	UpsertProektPriceContent(message string) error
	GetAutoMessageConfig() (*models.AutoMessageConfig, error)
	UpsertAutoMessageConfig(c models.AutoMessageConfig) (*models.AutoMessageConfig, error)

	Close() error
}

// InMemoryStore is a mutex-guarded in-memory Store used in tests and when
// no database DSN is configured.
type InMemoryStore struct {
	mu sync.Mutex

	questions   []models.Question
	sessions    map[int64]models.Session
	users       []models.TelegramUser
	submissions []models.Submission
	connections []models.TopicConnection
	commands    []models.Command
	portfolio   []models.PortfolioItem

	startContent      *models.StartContent
	topicContent      *models.TopicContent
	formSummaries     map[models.FormKind]string
	dizaynContent     *models.DizaynContent
	proektPrice       string
	autoMessageConfig *models.AutoMessageConfig

	nextID int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:      make(map[int64]models.Session),
		formSummaries: make(map[models.FormKind]string),
		nextID:        1,
	}
}

func (s *InMemoryStore) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func cloneQuestion(q models.Question) models.Question {
	out := q
	out.Variants = append([]models.Variant(nil), q.Variants...)
	return out
}

// ListQuestions returns the questions of a form ordered by position.
func (s *InMemoryStore) ListQuestions(form models.FormKind) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Question
	for _, q := range s.questions {
		if q.FormKind == form {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// GetQuestion returns the question at the given position, or nil.
func (s *InMemoryStore) GetQuestion(form models.FormKind, order int) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.questions {
		if q.FormKind == form && q.Order == order {
			out := cloneQuestion(q)
			return &out, nil
		}
	}
	return nil, nil
}

// GetQuestionByID returns the question with the given id, or nil.
func (s *InMemoryStore) GetQuestionByID(id int64) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.questions {
		if q.ID == id {
			out := cloneQuestion(q)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) countQuestions(form models.FormKind) int {
	n := 0
	for _, q := range s.questions {
		if q.FormKind == form {
			n++
		}
	}
	return n
}

// CreateQuestion inserts a question. An order of zero or past the end
// appends; otherwise existing questions at or after the position shift up.
func (s *InMemoryStore) CreateQuestion(q models.Question) (*models.Question, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.countQuestions(q.FormKind)
	if q.Order <= 0 || q.Order > n {
		q.Order = n + 1
	} else {
		for i := range s.questions {
			if s.questions[i].FormKind == q.FormKind && s.questions[i].Order >= q.Order {
				s.questions[i].Order++
			}
		}
	}

	q.ID = s.id()
	for i := range q.Variants {
		q.Variants[i].ID = s.id()
		q.Variants[i].QuestionID = q.ID
	}
	s.questions = append(s.questions, cloneQuestion(q))
	out := cloneQuestion(q)
	return &out, nil
}

// UpdateQuestion applies a partial update. Moving a question shifts every
// question between the old and new position by one; a non-nil variant set
// replaces all existing variants.
func (s *InMemoryStore) UpdateQuestion(id int64, upd models.QuestionUpdate) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, q := range s.questions {
		if q.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, models.ErrQuestionNotFound
	}
	q := &s.questions[idx]

	if upd.Order != nil && *upd.Order != q.Order {
		oldOrder := q.Order
		newOrder := *upd.Order
		if n := s.countQuestions(q.FormKind); newOrder < 1 {
			newOrder = 1
		} else if newOrder > n {
			newOrder = n
		}
		for i := range s.questions {
			other := &s.questions[i]
			if other.FormKind != q.FormKind || other.ID == q.ID {
				continue
			}
			if newOrder < oldOrder && other.Order >= newOrder && other.Order < oldOrder {
				other.Order++
			} else if newOrder > oldOrder && other.Order > oldOrder && other.Order <= newOrder {
				other.Order--
			}
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
	if upd.Variants != nil {
		q.Variants = nil
		for _, v := range upd.Variants {
			v.ID = s.id()
			v.QuestionID = q.ID
			q.Variants = append(q.Variants, v)
		}
	}

	out := cloneQuestion(*q)
	return &out, nil
}

// DeleteQuestion removes a question and closes the resulting order gap.
func (s *InMemoryStore) DeleteQuestion(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, q := range s.questions {
		if q.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.ErrQuestionNotFound
	}
	form := s.questions[idx].FormKind
	order := s.questions[idx].Order
	s.questions = append(s.questions[:idx], s.questions[idx+1:]...)
	for i := range s.questions {
		if s.questions[i].FormKind == form && s.questions[i].Order > order {
			s.questions[i].Order--
		}
	}
	return nil
}

// GetSession returns the session for a chat, or nil when none exists.
func (s *InMemoryStore) GetSession(chatID int64) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return nil, nil
	}
	out := sess
	out.Answers = make(map[int]string, len(sess.Answers))
	for k, v := range sess.Answers {
		out.Answers[k] = v
	}
	return &out, nil
}

// SaveSession stores or replaces the session for a chat.
func (s *InMemoryStore) SaveSession(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.UpdatedAt = time.Now()
	copied := sess
	copied.Answers = make(map[int]string, len(sess.Answers))
	for k, v := range sess.Answers {
		copied.Answers[k] = v
	}
	s.sessions[sess.ChatID] = copied
	return nil
}

// DeleteSession removes the session for a chat.
func (s *InMemoryStore) DeleteSession(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
	return nil
}

// UpsertUser creates or updates a user keyed by chat id. An empty phone in
// the update leaves a previously captured phone in place.
func (s *InMemoryStore) UpsertUser(u models.TelegramUser) (*models.TelegramUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for i := range s.users {
		if s.users[i].ChatID == u.ChatID {
			s.users[i].Username = u.Username
			s.users[i].FirstName = u.FirstName
			s.users[i].LastName = u.LastName
			if u.Phone != "" {
				s.users[i].Phone = u.Phone
			}
			s.users[i].UpdatedAt = now
			out := s.users[i]
			return &out, nil
		}
	}
	u.ID = s.id()
	u.IsSubscribed = true
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users = append(s.users, u)
	out := u
	return &out, nil
}

// GetUserByChatID returns the user with the given chat id, or nil.
func (s *InMemoryStore) GetUserByChatID(chatID int64) (*models.TelegramUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ChatID == chatID {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

// ListUsers returns a page of users matching the filter plus the total count.
func (s *InMemoryStore) ListUsers(f models.UserFilter) ([]models.TelegramUser, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}

	var matched []models.TelegramUser
	for _, u := range s.users {
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(u.Username), needle) &&
				!strings.Contains(strings.ToLower(u.FirstName), needle) {
				continue
			}
		}
		if f.HasPhone != nil && (u.Phone != "") != *f.HasPhone {
			continue
		}
		if f.HasSubmissions != nil {
			has := false
			for _, sub := range s.submissions {
				if sub.TelegramUserID == u.ID {
					has = true
					break
				}
			}
			if has != *f.HasSubmissions {
				continue
			}
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// SetUserSubscription toggles the auto-message subscription flag.
func (s *InMemoryStore) SetUserSubscription(chatID int64, subscribed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ChatID == chatID {
			s.users[i].IsSubscribed = subscribed
			s.users[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return models.ErrUserNotFound
}

// SetUserPhone stores a phone captured during a form.
func (s *InMemoryStore) SetUserPhone(chatID int64, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ChatID == chatID {
			s.users[i].Phone = phone
			s.users[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return models.ErrUserNotFound
}

// IncrementAutoMessageCount bumps and returns the user's auto-message count.
func (s *InMemoryStore) IncrementAutoMessageCount(userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].AutoMessageCount++
			return s.users[i].AutoMessageCount, nil
		}
	}
	return 0, models.ErrUserNotFound
}

// AddSubmission stores a completed form submission.
func (s *InMemoryStore) AddSubmission(sub models.Submission) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.id()
	sub.CreatedAt = time.Now()
	s.submissions = append(s.submissions, sub)
	out := sub
	return &out, nil
}

// ListSubmissions returns all submissions, newest first.
func (s *InMemoryStore) ListSubmissions() ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Submission(nil), s.submissions...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListSubmissionsByUser returns one user's submissions, newest first.
func (s *InMemoryStore) ListSubmissionsByUser(userID int64) ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Submission
	for _, sub := range s.submissions {
		if sub.TelegramUserID == userID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// AddTopicConnection records a new user-to-topic link.
func (s *InMemoryStore) AddTopicConnection(c models.TopicConnection) (*models.TopicConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c.ID = s.id()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.connections = append(s.connections, c)
	out := c
	return &out, nil
}

// GetTopicConnection returns the connection for a topic id, or nil.
func (s *InMemoryStore) GetTopicConnection(topicID int) (*models.TopicConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.connections {
		if c.TopicID == topicID {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

// FindActiveConnection returns the most recently updated active connection
// for a user chat, or nil.
func (s *InMemoryStore) FindActiveConnection(userChatID int64) (*models.TopicConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.TopicConnection
	for i := range s.connections {
		c := &s.connections[i]
		if c.UserChatID != userChatID || !c.IsActive {
			continue
		}
		if best == nil || c.UpdatedAt.After(best.UpdatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

// FindConnectionByUser returns the most recently updated connection of a
// user chat regardless of its active flag, or nil.
func (s *InMemoryStore) FindConnectionByUser(userChatID int64) (*models.TopicConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.TopicConnection
	for i := range s.connections {
		c := &s.connections[i]
		if c.UserChatID != userChatID {
			continue
		}
		if best == nil || c.UpdatedAt.After(best.UpdatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

// ListActiveConnections returns every active connection of a user chat.
func (s *InMemoryStore) ListActiveConnections(userChatID int64) ([]models.TopicConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TopicConnection
	for _, c := range s.connections {
		if c.UserChatID == userChatID && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListBroadcastConnections returns active connections carrying a saved
// admin message, the input set of the auto-message broadcast.
func (s *InMemoryStore) ListBroadcastConnections() ([]models.TopicConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TopicConnection
	for _, c := range s.connections {
		if c.IsActive && c.LastAdminMessageText != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// SetConnectionActive flips the active flag of a connection.
func (s *InMemoryStore) SetConnectionActive(topicID int, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.connections {
		if s.connections[i].TopicID == topicID {
			s.connections[i].IsActive = active
			s.connections[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return models.ErrConnectionNotFound
}

// SetConnectionLastAdminMessage saves the last operator message text for
// the auto-message broadcast.
func (s *InMemoryStore) SetConnectionLastAdminMessage(topicID int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.connections {
		if s.connections[i].TopicID == topicID {
			s.connections[i].LastAdminMessageText = text
			s.connections[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return models.ErrConnectionNotFound
}

// ListCommands returns all commands sorted by index.
func (s *InMemoryStore) ListCommands() ([]models.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Command(nil), s.commands...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// ListEnabledCommands returns enabled commands sorted by index.
func (s *InMemoryStore) ListEnabledCommands() ([]models.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Command
	for _, c := range s.commands {
		if c.Enabled {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// GetCommandByName returns the command with the given name, or nil.
func (s *InMemoryStore) GetCommandByName(name string) (*models.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.commands {
		if c.Command == name {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

// UpsertCommand creates or replaces a command keyed by its name.
func (s *InMemoryStore) UpsertCommand(c models.Command) (*models.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.commands {
		if s.commands[i].Command == c.Command {
			c.ID = s.commands[i].ID
			s.commands[i] = c
			out := c
			return &out, nil
		}
	}
	c.ID = s.id()
	s.commands = append(s.commands, c)
	out := c
	return &out, nil
}

// DeleteCommand removes the command with the given id.
func (s *InMemoryStore) DeleteCommand(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.commands {
		if s.commands[i].ID == id {
			s.commands = append(s.commands[:i], s.commands[i+1:]...)
			return nil
		}
	}
	return models.ErrCommandNotFound
}

// ListPortfolioItems returns portfolio items sorted by position.
func (s *InMemoryStore) ListPortfolioItems() ([]models.PortfolioItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.PortfolioItem(nil), s.portfolio...)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// CreatePortfolioItem appends a portfolio item.
func (s *InMemoryStore) CreatePortfolioItem(item models.PortfolioItem) (*models.PortfolioItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	if item.Order == 0 {
		item.Order = len(s.portfolio) + 1
	}
	s.portfolio = append(s.portfolio, item)
	out := item
	return &out, nil
}

// DeletePortfolioItem removes a portfolio item by id.
func (s *InMemoryStore) DeletePortfolioItem(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.portfolio {
		if s.portfolio[i].ID == id {
			s.portfolio = append(s.portfolio[:i], s.portfolio[i+1:]...)
			return nil
		}
	}
	return nil
}

// GetStartContent returns the /start greeting, or nil when unset.
func (s *InMemoryStore) GetStartContent() (*models.StartContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startContent == nil {
		return nil, nil
	}
	out := *s.startContent
	return &out, nil
}

// UpsertStartContent replaces the /start greeting.
func (s *InMemoryStore) UpsertStartContent(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startContent = &models.StartContent{Content: content}
	return nil
}

// GetTopicContent returns operator messages, falling back to defaults.
func (s *InMemoryStore) GetTopicContent() (models.TopicContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return topicContentOrDefault(s.topicContent), nil
}

// UpsertTopicContent replaces the operator messages.
func (s *InMemoryStore) UpsertTopicContent(c models.TopicContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topicContent = &c
	return nil
}

// GetFormSummary returns the summary message of a form, falling back to the
// default thank-you text.
func (s *InMemoryStore) GetFormSummary(form models.FormKind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.formSummaries[form]; ok && msg != "" {
		return msg, nil
	}
	return models.DefaultSummaryMessage, nil
}

// UpsertFormSummary replaces the summary message of a form.
func (s *InMemoryStore) UpsertFormSummary(form models.FormKind, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formSummaries[form] = message
	return nil
}

// GetDizaynContent returns the design-offer card, or nil when unset.
func (s *InMemoryStore) GetDizaynContent() (*models.DizaynContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dizaynContent == nil {
		return nil, nil
	}
	out := *s.dizaynContent
	return &out, nil
}

// UpsertDizaynContent replaces the design-offer card.
func (s *InMemoryStore) UpsertDizaynContent(c models.DizaynContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dizaynContent = &c
	return nil
}

// GetProektPriceContent returns the project-price message, empty when unset.
func (s *InMemoryStore) GetProektPriceContent() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proektPrice, nil
}

// UpsertProektPriceContent replaces the project-price message.
func (s *InMemoryStore) UpsertProektPriceContent(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proektPrice = message
	return nil
}

// GetAutoMessageConfig returns the broadcast config, or nil when unset.
func (s *InMemoryStore) GetAutoMessageConfig() (*models.AutoMessageConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoMessageConfig == nil {
		return nil, nil
	}
	out := *s.autoMessageConfig
	return &out, nil
}

// UpsertAutoMessageConfig creates or replaces the broadcast config.
func (s *InMemoryStore) UpsertAutoMessageConfig(c models.AutoMessageConfig) (*models.AutoMessageConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	applyAutoMessageDefaults(&c)
	s.autoMessageConfig = &c
	out := c
	return &out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

func topicContentOrDefault(c *models.TopicContent) models.TopicContent {
	out := models.TopicContent{
		OperatorConnectedMessage:    models.DefaultOperatorConnectedMessage,
		OperatorDisconnectedMessage: models.DefaultOperatorDisconnectedMessage,
	}
	if c == nil {
		return out
	}
	if c.OperatorConnectedMessage != "" {
		out.OperatorConnectedMessage = c.OperatorConnectedMessage
	}
	if c.OperatorDisconnectedMessage != "" {
		out.OperatorDisconnectedMessage = c.OperatorDisconnectedMessage
	}
	return out
}

func applyAutoMessageDefaults(c *models.AutoMessageConfig) {
	if c.NotificationText == "" {
		c.NotificationText = models.DefaultNotificationText
	}
	if c.UnsubscribeButtonText == "" {
		c.UnsubscribeButtonText = models.DefaultUnsubscribeButtonText
	}
	if c.UnsubscribeSuccess == "" {
		c.UnsubscribeSuccess = models.DefaultUnsubscribeSuccessText
	}
}
