package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/remontlab/leadbot/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListCommands(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable: "+err.Error())
		return
	}
	writeSuccess(w, map[string]string{"database": "ok"})
}

func formFromPath(w http.ResponseWriter, r *http.Request) (models.FormKind, bool) {
	form := models.FormKind(r.PathValue("form"))
	if !models.IsValidFormKind(form) {
		writeError(w, http.StatusBadRequest, "unknown form kind: "+string(form))
		return "", false
	}
	return form, true
}

func idFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	form, ok := formFromPath(w, r)
	if !ok {
		return
	}
	questions, err := s.store.ListQuestions(form)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, questions)
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	form, ok := formFromPath(w, r)
	if !ok {
		return
	}
	var q models.Question
	if !decodeJSONBody(w, r, &q) {
		return
	}
	q.FormKind = form
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.store.CreateQuestion(q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeCreated(w, created)
}

func (s *Server) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	var upd models.QuestionUpdate
	if !decodeJSONBody(w, r, &upd) {
		return
	}
	if upd.Kind != nil && !models.IsValidQuestionKind(*upd.Kind) {
		writeError(w, http.StatusBadRequest, models.ErrInvalidQuestionKind.Error())
		return
	}
	updated, err := s.store.UpdateQuestion(id, upd)
	if err != nil {
		if errors.Is(err, models.ErrQuestionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, updated)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteQuestion(id); err != nil {
		if errors.Is(err, models.ErrQuestionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	form, ok := formFromPath(w, r)
	if !ok {
		return
	}
	message, err := s.store.GetFormSummary(form)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, map[string]string{"message": message})
}

func (s *Server) handlePutSummary(w http.ResponseWriter, r *http.Request) {
	form, ok := formFromPath(w, r)
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if !decodeJSONBody(w, r, &body) {
		return
	}
	if err := s.store.UpsertFormSummary(form, body.Message); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, nil)
}

// republishCommands refreshes the bot command menu after registry changes.
// Failures are logged, not surfaced; the store mutation already succeeded.
func (s *Server) republishCommands(r *http.Request) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.SetupCommands(r.Context()); err != nil {
		slog.Warn("failed to republish bot commands", "error", err)
	}
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	commands, err := s.store.ListCommands()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, commands)
}

func (s *Server) handleUpsertCommand(w http.ResponseWriter, r *http.Request) {
	var c models.Command
	if !decodeJSONBody(w, r, &c) {
		return
	}
	if c.Command == "" {
		writeError(w, http.StatusBadRequest, "command name is required")
		return
	}
	saved, err := s.store.UpsertCommand(c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.republishCommands(r)
	writeCreated(w, saved)
}

func (s *Server) handleDeleteCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteCommand(id); err != nil {
		if errors.Is(err, models.ErrCommandNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.republishCommands(r)
	writeSuccess(w, nil)
}

func (s *Server) handleGetStartContent(w http.ResponseWriter, r *http.Request) {
	content, err := s.store.GetStartContent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, content)
}

func (s *Server) handlePutStartContent(w http.ResponseWriter, r *http.Request) {
	var body models.StartContent
	if !decodeJSONBody(w, r, &body) {
		return
	}
	if err := s.store.UpsertStartContent(body.Content); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleGetTopicContent(w http.ResponseWriter, r *http.Request) {
	content, err := s.store.GetTopicContent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, content)
}

func (s *Server) handlePutTopicContent(w http.ResponseWriter, r *http.Request) {
	var body models.TopicContent
	if !decodeJSONBody(w, r, &body) {
		return
	}
	if err := s.store.UpsertTopicContent(body); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleGetDizaynContent(w http.ResponseWriter, r *http.Request) {
	content, err := s.store.GetDizaynContent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, content)
}

func (s *Server) handlePutDizaynContent(w http.ResponseWriter, r *http.Request) {
	var body models.DizaynContent
	if !decodeJSONBody(w, r, &body) {
		return
	}
	if err := s.store.UpsertDizaynContent(body); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleGetProektPrice(w http.ResponseWriter, r *http.Request) {
	message, err := s.store.GetProektPriceContent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, map[string]string{"message": message})
}

func (s *Server) handlePutProektPrice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if !decodeJSONBody(w, r, &body) {
		return
	}
	if err := s.store.UpsertProektPriceContent(body.Message); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	filter, ok := userFilterFromQuery(w, r)
	if !ok {
		return
	}
	users, total, err := s.store.ListUsers(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, map[string]any{
		"users": users,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func userFilterFromQuery(w http.ResponseWriter, r *http.Request) (models.UserFilter, bool) {
	filter := models.UserFilter{Page: 1, Limit: 20, Search: r.URL.Query().Get("search")}
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return filter, false
		}
		filter.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return filter, false
		}
		filter.Limit = limit
	}
	if v := q.Get("hasPhone"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hasPhone")
			return filter, false
		}
		filter.HasPhone = &b
	}
	if v := q.Get("hasSubmissions"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hasSubmissions")
			return filter, false
		}
		filter.HasSubmissions = &b
	}
	return filter, true
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("userId"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid userId")
			return
		}
		subs, err := s.store.ListSubmissionsByUser(userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeSuccess(w, subs)
		return
	}
	subs, err := s.store.ListSubmissions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, subs)
}

func (s *Server) handleListPortfolio(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListPortfolioItems()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, items)
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var item models.PortfolioItem
	if !decodeJSONBody(w, r, &item) {
		return
	}
	if item.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	created, err := s.store.CreatePortfolioItem(item)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeCreated(w, created)
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	if err := s.store.DeletePortfolioItem(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleGetAutoMessageConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetAutoMessageConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, cfg)
}

func (s *Server) handlePutAutoMessageConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.AutoMessageConfig
	if !decodeJSONBody(w, r, &cfg) {
		return
	}
	if cfg.ScheduleHour < 0 || cfg.ScheduleHour > 23 || cfg.ScheduleMinute < 0 || cfg.ScheduleMinute > 59 {
		writeError(w, http.StatusBadRequest, "schedule must be a valid hour and minute")
		return
	}
	saved, err := s.store.UpsertAutoMessageConfig(cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.Reschedule(r.Context(), saved.ScheduleHour, saved.ScheduleMinute); err != nil {
			writeError(w, http.StatusInternalServerError, "config saved but reschedule failed: "+err.Error())
			return
		}
	}
	writeSuccess(w, saved)
}

func (s *Server) handleSendAutoMessages(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil {
		writeError(w, http.StatusServiceUnavailable, "broadcast is not configured")
		return
	}
	stats, err := s.broadcaster.Send(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, stats)
}
