package checkin

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var maxThreshold = decimal.NewFromInt(100)

// =============================================================================
// ANSWER VALIDATION
// =============================================================================

// ValidateAnswers checks answers against the questionnaire before scoring:
// required presence, answer shape per question type, option existence and
// numeric bounds. Answers for unknown question ids are ignored.
func ValidateAnswers(questions []QuestionDefinition, answers Answers) error {
	ve := &ValidationError{}
	for _, q := range questions {
		a, ok := answers[q.ID]
		if !ok || a.IsEmpty() {
			if q.Required {
				ve.add(q.ID, "answer is required")
			}
			continue
		}

		switch q.Type {
		case SingleChoice:
			if a.Kind != AnswerString {
				ve.add(q.ID, "expected a single option id")
				continue
			}
			if _, ok := q.option(a.String); !ok {
				ve.add(q.ID, "unknown option %q", a.String)
			}
		case MultipleChoice:
			if a.Kind != AnswerList {
				ve.add(q.ID, "expected a list of option ids")
				continue
			}
			for _, id := range dedupe(a.List) {
				if _, ok := q.option(id); !ok {
					ve.add(q.ID, "unknown option %q", id)
				}
			}
		case FreeText:
			if a.Kind != AnswerString {
				ve.add(q.ID, "expected text")
			}
		case NumericScore:
			if a.Kind != AnswerNumber {
				ve.add(q.ID, "expected a number")
				continue
			}
			if a.Number.IsNegative() {
				ve.add(q.ID, "must not be negative")
			}
			if q.MaxScore != nil && a.Number.GreaterThan(*q.MaxScore) {
				ve.add(q.ID, "exceeds maximum score %s", q.MaxScore.String())
			}
		default:
			ve.add(q.ID, "unsupported question type %q", q.Type)
		}
	}
	return ve.orNil()
}

// =============================================================================
// DEFINITION VALIDATION
// =============================================================================

// ValidateQuestions checks a questionnaire definition before it is stored.
func ValidateQuestions(questions []QuestionDefinition) error {
	ve := &ValidationError{}
	if len(questions) == 0 {
		ve.add("questions", "at least one question is required")
	}

	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		field := q.ID
		if field == "" {
			field = "questions[" + strconv.Itoa(i) + "]"
			ve.add(field, "question id is required")
		} else if seen[q.ID] {
			ve.add(field, "duplicate question id")
		}
		seen[q.ID] = true

		if q.Title == "" {
			ve.add(field, "title is required")
		}

		switch q.Type {
		case SingleChoice, MultipleChoice:
			if len(q.Options) == 0 {
				ve.add(field, "choice questions need at least one option")
			}
			optionIDs := make(map[string]bool, len(q.Options))
			for _, o := range q.Options {
				if o.ID == "" {
					ve.add(field, "option id is required")
				} else if optionIDs[o.ID] {
					ve.add(field, "duplicate option id %q", o.ID)
				}
				optionIDs[o.ID] = true
			}
			if q.MaxScore != nil {
				ve.add(field, "max_score is only allowed on numeric questions")
			}
		case FreeText, NumericScore:
			if len(q.Options) > 0 {
				ve.add(field, "options are only allowed on choice questions")
			}
			if q.Type == FreeText && q.MaxScore != nil {
				ve.add(field, "max_score is only allowed on numeric questions")
			}
			if q.MaxScore != nil && q.MaxScore.IsNegative() {
				ve.add(field, "max_score must not be negative")
			}
		default:
			ve.add(field, "unsupported question type %q", q.Type)
		}
	}
	return ve.orNil()
}

// ValidateRewardRules checks thresholds are in [0,100] and amounts >= 0.
// Duplicate thresholds are allowed.
func ValidateRewardRules(rules []RewardRule) error {
	ve := &ValidationError{}
	for i, r := range rules {
		field := "reward_rules[" + strconv.Itoa(i) + "]"
		if r.Threshold.IsNegative() || r.Threshold.GreaterThan(maxThreshold) {
			ve.add(field, "threshold must be between 0 and 100")
		}
		if r.Amount.IsNegative() {
			ve.add(field, "amount must not be negative")
		}
	}
	return ve.orNil()
}

// Validate checks the rule type and weekday range.
func (r RecurrenceRule) Validate() error {
	ve := &ValidationError{}
	switch r.Type {
	case RecurDaily, RecurCustom:
	case RecurWeekly:
		for _, d := range r.WeeklyDays {
			if d < 0 || d > 6 {
				ve.add("recurrence.weekly_days", "weekday %d out of range 0..6", d)
			}
		}
	default:
		ve.add("recurrence.type", "unsupported recurrence type %q", r.Type)
	}
	return ve.orNil()
}

// ValidateReminderTime accepts "" or a 24-hour clock time.
func ValidateReminderTime(s string) error {
	_, err := NormalizeReminderTime(s)
	return err
}

// NormalizeReminderTime parses a reminder time and returns it zero-padded
// ("9:30" becomes "09:30"). The empty string means no reminder.
func NormalizeReminderTime(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		ve := &ValidationError{}
		ve.add("reminder_time", "must be HH:MM")
		return "", ve
	}
	return t.Format("15:04"), nil
}

// reminderMinutes returns the reminder time as minutes after midnight.
func reminderMinutes(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
