package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/remontlab/leadbot/internal/broadcast"
	"github.com/remontlab/leadbot/internal/messaging"
	"github.com/remontlab/leadbot/internal/models"
	"github.com/remontlab/leadbot/internal/store"
)

type mockPublisher struct {
	calls int
	err   error
}

func (p *mockPublisher) SetupCommands(ctx context.Context) error {
	p.calls++
	return p.err
}

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore, *mockPublisher) {
	t.Helper()
	st := store.NewInMemoryStore()
	pub := &mockPublisher{}
	b := broadcast.NewBroadcaster(st, messaging.NewMockService())
	srv, err := NewServer(WithStore(st), WithBroadcaster(b), WithPublisher(pub))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, st, pub
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s %s response: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec, resp := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Status != string(models.APIStatusOK) {
		t.Fatalf("expected ok status, got %q", resp.Status)
	}
}

func TestQuestionLifecycle(t *testing.T) {
	srv, st, _ := newTestServer(t)
	h := srv.Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/questions/calculate", models.Question{
		Text: "Какой ремонт?",
		Kind: models.QuestionSelect,
		Variants: []models.Variant{
			{Text: "Капитальный"},
			{Text: "Косметический"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/questions/calculate", models.Question{
		Text: "Площадь?",
		Kind: models.QuestionText,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create second: expected 201, got %d", rec.Code)
	}

	questions, err := st.ListQuestions(models.FormCalculate)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(questions) != 2 || questions[0].Order != 1 || questions[1].Order != 2 {
		t.Fatalf("unexpected questions after create: %+v", questions)
	}

	// Move the second question to the front.
	one := 1
	rec, _ = doJSON(t, h, http.MethodPatch, "/questions/"+itoa(questions[1].ID), models.QuestionUpdate{Order: &one})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	questions, _ = st.ListQuestions(models.FormCalculate)
	if questions[0].Text != "Площадь?" || questions[1].Text != "Какой ремонт?" {
		t.Fatalf("unexpected order after move: %+v", questions)
	}

	rec, _ = doJSON(t, h, http.MethodDelete, "/questions/"+itoa(questions[0].ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	questions, _ = st.ListQuestions(models.FormCalculate)
	if len(questions) != 1 || questions[0].Order != 1 {
		t.Fatalf("expected single reindexed question, got %+v", questions)
	}
}

func TestQuestionValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/questions/nosuchform", models.Question{Text: "x", Kind: models.QuestionText})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown form: expected 400, got %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/questions/zamer", models.Question{Kind: models.QuestionText})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty text: expected 400, got %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodPatch, "/questions/999", models.QuestionUpdate{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing question: expected 404, got %d", rec.Code)
	}
}

func TestSummaryDefaultsAndUpdate(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	_, resp := doJSON(t, h, http.MethodGet, "/summary/zamer", nil)
	result := resp.Result.(map[string]any)
	if result["message"] != models.DefaultSummaryMessage {
		t.Fatalf("expected default summary, got %v", result["message"])
	}

	rec, _ := doJSON(t, h, http.MethodPut, "/summary/zamer", map[string]string{"message": "Принято!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put summary: expected 200, got %d", rec.Code)
	}
	_, resp = doJSON(t, h, http.MethodGet, "/summary/zamer", nil)
	result = resp.Result.(map[string]any)
	if result["message"] != "Принято!" {
		t.Fatalf("expected updated summary, got %v", result["message"])
	}
}

func TestCommandMutationsRepublishMenu(t *testing.T) {
	srv, st, pub := newTestServer(t)
	h := srv.Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/commands", models.Command{
		Command:     "zamer",
		Title:       "Вызвать замерщика",
		Description: "Записаться на замер",
		Enabled:     true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upsert command: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if pub.calls != 1 {
		t.Fatalf("expected 1 republish after upsert, got %d", pub.calls)
	}

	cmd, err := st.GetCommandByName("zamer")
	if err != nil || cmd == nil {
		t.Fatalf("command not stored: %v", err)
	}
	rec, _ = doJSON(t, h, http.MethodDelete, "/commands/"+itoa(cmd.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete command: expected 200, got %d", rec.Code)
	}
	if pub.calls != 2 {
		t.Fatalf("expected 2 republishes after delete, got %d", pub.calls)
	}

	rec, _ = doJSON(t, h, http.MethodDelete, "/commands/12345", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing command: expected 404, got %d", rec.Code)
	}
}

func TestUserListingFilters(t *testing.T) {
	srv, st, _ := newTestServer(t)
	h := srv.Handler()

	for _, u := range []models.TelegramUser{
		{ChatID: 1, FirstName: "Анна", Phone: "+79001112233"},
		{ChatID: 2, FirstName: "Борис"},
		{ChatID: 3, FirstName: "Вера", Phone: "+79003334455"},
	} {
		if _, err := st.UpsertUser(u); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
	}

	_, resp := doJSON(t, h, http.MethodGet, "/users?hasPhone=true", nil)
	result := resp.Result.(map[string]any)
	if int(result["total"].(float64)) != 2 {
		t.Fatalf("expected 2 users with phone, got %v", result["total"])
	}

	_, resp = doJSON(t, h, http.MethodGet, "/users?search=бор", nil)
	result = resp.Result.(map[string]any)
	if int(result["total"].(float64)) != 1 {
		t.Fatalf("expected 1 user matching search, got %v", result["total"])
	}

	rec, _ := doJSON(t, h, http.MethodGet, "/users?page=0", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid page: expected 400, got %d", rec.Code)
	}
}

func TestSubmissionsByUser(t *testing.T) {
	srv, st, _ := newTestServer(t)
	h := srv.Handler()

	user, err := st.UpsertUser(models.TelegramUser{ChatID: 10, FirstName: "Анна"})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if _, err := st.AddSubmission(models.Submission{
		CommandName:    "zamer",
		Data:           map[string]string{"phone": "+79001112233"},
		TelegramUserID: user.ID,
	}); err != nil {
		t.Fatalf("AddSubmission: %v", err)
	}

	_, resp := doJSON(t, h, http.MethodGet, "/submissions?userId="+itoa(user.ID), nil)
	subs := resp.Result.([]any)
	if len(subs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(subs))
	}

	_, resp = doJSON(t, h, http.MethodGet, "/submissions?userId=999", nil)
	if resp.Result != nil {
		if subs, ok := resp.Result.([]any); ok && len(subs) != 0 {
			t.Fatalf("expected no submissions for unknown user, got %d", len(subs))
		}
	}
}

func TestAutoMessageConfigUpdateReschedules(t *testing.T) {
	srv, st, _ := newTestServer(t)
	defer srv.broadcaster.Stop()
	h := srv.Handler()

	rec, _ := doJSON(t, h, http.MethodPut, "/auto-message/config", models.AutoMessageConfig{
		ScheduleHour:   12,
		ScheduleMinute: 30,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put config: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cfg, err := st.GetAutoMessageConfig()
	if err != nil || cfg == nil {
		t.Fatalf("config not stored: %v", err)
	}
	if cfg.ScheduleHour != 12 || cfg.ScheduleMinute != 30 {
		t.Fatalf("unexpected stored schedule: %+v", cfg)
	}

	rec, _ = doJSON(t, h, http.MethodPut, "/auto-message/config", models.AutoMessageConfig{ScheduleHour: 25})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid schedule: expected 400, got %d", rec.Code)
	}
}

func TestManualSendWithoutConfig(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rec, resp := doJSON(t, h, http.MethodPost, "/auto-message/send", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("send: expected 200, got %d", rec.Code)
	}
	stats := resp.Result.(map[string]any)
	if stats["sent"].(float64) != 0 {
		t.Fatalf("expected no sends without config, got %v", stats["sent"])
	}
}

func TestPortfolioValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/portfolio", models.PortfolioItem{Description: "без названия"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/portfolio", models.PortfolioItem{
		Title:  "Квартира на Ленина",
		ImgSrc: []string{"https://example.com/1.jpg"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
