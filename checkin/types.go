/*
Package checkin implements periodic check-in questionnaires: scoring
submitted answers, resolving the reward they earn, and deciding which
calendar days require (or still accept) a check-in.

PURPOSE:
  A user configures a check-in profile: a questionnaire, a recurrence rule
  (daily, specific weekdays, or explicit dates), and reward rules mapping a
  score threshold to a reward amount. Each designated day the user submits
  answers; the answers are scored, the best qualifying reward is credited to
  the user's vault, and a check-in record is stored for that day. Missed
  days from the last three days can be made up at half reward.

KEY CONCEPTS IN THIS FILE (types.go):
  - QuestionDefinition / Option: The questionnaire schema
  - AnswerValue: A submitted answer (string, list of strings, or number)
  - RewardRule: (threshold, amount) pair
  - RecurrenceRule: Which calendar days are check-in days
  - Profile: The user-configured recurring task
  - Record: One submission for one (profile, date)

PURE CORE:
  scoring.go, reward.go, recurrence.go and validate.go are pure functions
  over these types. service.go sequences them against the stores.

SEE ALSO:
  - service.go: Submission orchestration
  - store.go: Persistence interfaces
  - vault/: Reward ledger
*/
package checkin

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/habit-vault/calendar"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProfileID string
type QuestionnaireID string
type RecordID string

// =============================================================================
// QUESTIONNAIRE
// =============================================================================

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	FreeText       QuestionType = "free_text"
	NumericScore   QuestionType = "numeric_score"
)

func (t QuestionType) IsChoice() bool { return t == SingleChoice || t == MultipleChoice }

type Option struct {
	ID    string
	Text  string
	Score decimal.Decimal
}

type QuestionDefinition struct {
	ID       string
	Type     QuestionType
	Title    string
	Required bool
	Options  []Option         // single/multiple choice only
	MaxScore *decimal.Decimal // numeric score only
}

func (q QuestionDefinition) option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Questionnaire is immutable once a record references it: edits replace
// the question list but never rescore stored records.
type Questionnaire struct {
	ID        QuestionnaireID
	UserID    string
	Title     string
	Questions []QuestionDefinition
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// REWARD RULES
// =============================================================================

type RewardRule struct {
	Threshold decimal.Decimal // 0..100
	Amount    decimal.Decimal // >= 0
}

// =============================================================================
// RECURRENCE
// =============================================================================

type RecurrenceType string

const (
	RecurDaily  RecurrenceType = "daily"
	RecurWeekly RecurrenceType = "weekly"
	RecurCustom RecurrenceType = "custom"
)

// RecurrenceRule is a tagged union. WeeklyDays (0=Sunday..6=Saturday) is
// read only for weekly rules, CustomDates only for custom rules. Either may
// be empty, in which case the profile never triggers.
type RecurrenceRule struct {
	Type        RecurrenceType
	WeeklyDays  []int
	CustomDates []calendar.LocalDate
}

func Daily() RecurrenceRule { return RecurrenceRule{Type: RecurDaily} }

func Weekly(days ...time.Weekday) RecurrenceRule {
	r := RecurrenceRule{Type: RecurWeekly, WeeklyDays: make([]int, 0, len(days))}
	for _, d := range days {
		r.WeeklyDays = append(r.WeeklyDays, int(d))
	}
	return r
}

func Custom(dates ...calendar.LocalDate) RecurrenceRule {
	return RecurrenceRule{Type: RecurCustom, CustomDates: dates}
}

// =============================================================================
// PROFILE
// =============================================================================

type Profile struct {
	ID              ProfileID
	UserID          string
	Title           string
	Description     string
	QuestionnaireID QuestionnaireID
	Recurrence      RecurrenceRule
	RewardRules     []RewardRule
	ReminderTime    string // "HH:MM" in the check-in timezone, empty = no reminder
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// =============================================================================
// RECORD
// =============================================================================

// Record is created exactly once per (profile, date) and never mutated.
type Record struct {
	ID           RecordID
	UserID       string
	ProfileID    ProfileID
	Date         calendar.LocalDate
	Answers      Answers
	Score        decimal.Decimal
	RewardAmount decimal.Decimal
	IsRemedial   bool
	CreatedAt    time.Time
}
