package flow

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/remontlab/leadbot/internal/models"
)

// phoneDataKey is the submission key for the branch phone collected by a
// phone follow-up.
const phoneDataKey = "phone"

// NormalizeAnswers converts a session's order-keyed answers into the named
// submission map. The reserved phone key maps to "phone"; questions with a
// field name use it; everything else keeps its stringified order.
func NormalizeAnswers(answers map[int]string, questions []models.Question) map[string]string {
	fieldNames := make(map[int]string, len(questions))
	for _, q := range questions {
		if q.FieldName != "" {
			fieldNames[q.Order] = q.FieldName
		}
	}
	out := make(map[string]string, len(answers))
	for order, value := range answers {
		switch {
		case order == models.PhoneAnswerKey:
			out[phoneDataKey] = value
		case fieldNames[order] != "":
			out[fieldNames[order]] = value
		default:
			out[strconv.Itoa(order)] = value
		}
	}
	return out
}

// FormatSubmission renders a submission's data for the operator topic:
// numeric keys become "❓ Вопрос N", the phone key gets a 📞 marker, and
// named fields show with a capitalized label. Numeric keys come first in
// question order, then named fields, then the phone.
func FormatSubmission(data map[string]string) string {
	var numeric []int
	var named []string
	phone := ""
	for key := range data {
		if key == phoneDataKey {
			phone = data[key]
			continue
		}
		if n, err := strconv.Atoi(key); err == nil {
			numeric = append(numeric, n)
			continue
		}
		named = append(named, key)
	}
	sort.Ints(numeric)
	sort.Strings(named)

	var lines []string
	for _, n := range numeric {
		lines = append(lines, "❓ Вопрос "+strconv.Itoa(n)+": "+data[strconv.Itoa(n)])
	}
	for _, key := range named {
		lines = append(lines, capitalize(key)+": "+data[key])
	}
	if phone != "" {
		lines = append(lines, "📞 "+phone)
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
