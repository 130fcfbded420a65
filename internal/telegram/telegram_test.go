package telegram

import (
	"testing"

	tgmodels "github.com/go-telegram/bot/models"
)

func TestConvertUpdateMessage(t *testing.T) {
	upd, ok := convertUpdate(&tgmodels.Update{
		Message: &tgmodels.Message{
			ID:   10,
			Chat: tgmodels.Chat{ID: 42, Type: tgmodels.ChatTypePrivate},
			From: &tgmodels.User{ID: 7, Username: "anna", FirstName: "Анна"},
			Text: "/start",
		},
	})
	if !ok {
		t.Fatal("expected update to convert")
	}
	if upd.ChatID != 42 || upd.UserID != 7 || upd.Text != "/start" || upd.IsGroup {
		t.Errorf("unexpected update: %+v", upd)
	}
	if upd.IsCallback() {
		t.Error("message update should not be a callback")
	}
}

func TestConvertUpdateContact(t *testing.T) {
	upd, ok := convertUpdate(&tgmodels.Update{
		Message: &tgmodels.Message{
			Chat:    tgmodels.Chat{ID: 42, Type: tgmodels.ChatTypePrivate},
			Contact: &tgmodels.Contact{PhoneNumber: "+79001234567"},
		},
	})
	if !ok {
		t.Fatal("expected update to convert")
	}
	if upd.ContactPhone != "+79001234567" {
		t.Errorf("expected contact phone, got %q", upd.ContactPhone)
	}
}

func TestConvertUpdateCallback(t *testing.T) {
	upd, ok := convertUpdate(&tgmodels.Update{
		CallbackQuery: &tgmodels.CallbackQuery{
			ID:   "cb1",
			Data: "calculate_answer:1:5",
			From: tgmodels.User{ID: 7, Username: "anna"},
			Message: tgmodels.MaybeInaccessibleMessage{
				Message: &tgmodels.Message{
					ID:              20,
					Chat:            tgmodels.Chat{ID: 42, Type: tgmodels.ChatTypePrivate},
					MessageThreadID: 0,
				},
			},
		},
	})
	if !ok {
		t.Fatal("expected update to convert")
	}
	if !upd.IsCallback() || upd.CallbackData != "calculate_answer:1:5" || upd.ChatID != 42 || upd.MessageID != 20 {
		t.Errorf("unexpected update: %+v", upd)
	}
}

func TestConvertUpdateGroupThread(t *testing.T) {
	upd, ok := convertUpdate(&tgmodels.Update{
		Message: &tgmodels.Message{
			ID:              30,
			Chat:            tgmodels.Chat{ID: -100500, Type: tgmodels.ChatTypeSupergroup},
			MessageThreadID: 77,
			Text:            "привет",
		},
	})
	if !ok {
		t.Fatal("expected update to convert")
	}
	if !upd.IsGroup || upd.ThreadID != 77 {
		t.Errorf("unexpected update: %+v", upd)
	}
}

func TestConvertUpdateIgnoresOther(t *testing.T) {
	if _, ok := convertUpdate(&tgmodels.Update{}); ok {
		t.Error("expected empty update to be dropped")
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error without token")
	}
}
