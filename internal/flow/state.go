// Package flow implements the form engine: a per-chat state machine that
// walks users through a form's questions, collects answers, and hands the
// finished submission to the Sink.
package flow

import (
	"fmt"
	"strconv"
	"strings"
)

// StepKind identifies what kind of reply the form is waiting for.
type StepKind int

const (
	// StepSelect waits for an inline button press on the current question.
	StepSelect StepKind = iota
	// StepText waits for a free-text message.
	StepText
	// StepPhone waits for a shared contact or typed phone on a phone
	// question.
	StepPhone
	// StepPhoneFollowup waits for the extra phone requested by an answer
	// variant; completing it ends the form.
	StepPhoneFollowup
)

// Step is the decoded waiting state of a session. Order is the position of
// the question the step refers to.
type Step struct {
	Kind  StepKind
	Order int
}

// Encode renders the step into its stored string form.
func (s Step) Encode() string {
	switch s.Kind {
	case StepSelect:
		return fmt.Sprintf("waiting_select_%d", s.Order)
	case StepText:
		return fmt.Sprintf("waiting_text_%d", s.Order)
	case StepPhone:
		return fmt.Sprintf("waiting_phone_%d", s.Order)
	case StepPhoneFollowup:
		return fmt.Sprintf("waiting_for_phone_%d", s.Order)
	default:
		return ""
	}
}

// ParseStep decodes a stored step string.
func ParseStep(raw string) (Step, error) {
	prefixes := []struct {
		prefix string
		kind   StepKind
	}{
		{"waiting_for_phone_", StepPhoneFollowup},
		{"waiting_select_", StepSelect},
		{"waiting_text_", StepText},
		{"waiting_phone_", StepPhone},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(raw, p.prefix) {
			order, err := strconv.Atoi(strings.TrimPrefix(raw, p.prefix))
			if err != nil {
				return Step{}, fmt.Errorf("invalid step %q: %w", raw, err)
			}
			return Step{Kind: p.kind, Order: order}, nil
		}
	}
	return Step{}, fmt.Errorf("unknown step %q", raw)
}
