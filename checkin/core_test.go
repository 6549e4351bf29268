package checkin_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/habit-vault/calendar"
	"github.com/warp/habit-vault/checkin"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func dp(v int64) *decimal.Decimal {
	x := decimal.NewFromInt(v)
	return &x
}

func singleChoice(id string, required bool, scores ...int64) checkin.QuestionDefinition {
	q := checkin.QuestionDefinition{ID: id, Type: checkin.SingleChoice, Title: id, Required: required}
	for i, s := range scores {
		q.Options = append(q.Options, checkin.Option{ID: "o" + string(rune('1'+i)), Text: "option", Score: d(s)})
	}
	return q
}

func moodQuestionnaire() []checkin.QuestionDefinition {
	return []checkin.QuestionDefinition{
		singleChoice("q1", true, 10, 0),
	}
}

func mixedQuestionnaire() []checkin.QuestionDefinition {
	return []checkin.QuestionDefinition{
		singleChoice("mood", true, 5, 2, 0),
		{ID: "habits", Type: checkin.MultipleChoice, Title: "Habits", Options: []checkin.Option{
			{ID: "run", Score: d(3)}, {ID: "read", Score: d(2)}, {ID: "meditate", Score: d(4)},
		}},
		{ID: "notes", Type: checkin.FreeText, Title: "Notes"},
		{ID: "energy", Type: checkin.NumericScore, Title: "Energy", MaxScore: dp(10)},
	}
}

func rules(pairs ...int64) []checkin.RewardRule {
	var rs []checkin.RewardRule
	for i := 0; i+1 < len(pairs); i += 2 {
		rs = append(rs, checkin.RewardRule{Threshold: d(pairs[i]), Amount: d(pairs[i+1])})
	}
	return rs
}

var (
	monday    = calendar.MustParse("2025-03-10")
	tuesday   = calendar.MustParse("2025-03-11")
	wednesday = calendar.MustParse("2025-03-12")
)

// =============================================================================
// SCORING
// =============================================================================

func TestScore_SingleChoiceScenario(t *testing.T) {
	// GIVEN: One single-choice question {o1:10, o2:0}
	// WHEN: Answering o1, then o2
	// THEN: Scores are 10 and 0; rewards 8 and 0

	questions := moodQuestionnaire()
	rs := rules(5, 3, 10, 8)

	score := checkin.Score(questions, checkin.Answers{"q1": checkin.StringAnswer("o1")})
	assert.True(t, score.Equal(d(10)), "got %s", score)
	assert.True(t, checkin.ResolveReward(score, rs).Equal(d(8)))

	score = checkin.Score(questions, checkin.Answers{"q1": checkin.StringAnswer("o2")})
	assert.True(t, score.IsZero())
	assert.True(t, checkin.ResolveReward(score, rs).IsZero())
}

func TestScore_MixedQuestionTypes(t *testing.T) {
	answers := checkin.Answers{
		"mood":   checkin.StringAnswer("o2"),
		"habits": checkin.ListAnswer("run", "meditate", "run"),
		"notes":  checkin.StringAnswer("felt good"),
		"energy": checkin.NumberAnswer(decimal.RequireFromString("6.5")),
	}

	score := checkin.Score(mixedQuestionnaire(), answers)

	// 2 + (3 + 4) + 0 + 6.5; duplicate "run" counted once
	assert.Equal(t, "15.5", score.String())
}

func TestScore_MissingAndUnknownContributeZero(t *testing.T) {
	answers := checkin.Answers{
		"mood":    checkin.StringAnswer("nope"),
		"habits":  checkin.ListAnswer("fly"),
		"ghost":   checkin.NumberAnswer(d(100)),
		"energy":  checkin.StringAnswer("high"),
		"unknown": checkin.StringAnswer("x"),
	}

	assert.True(t, checkin.Score(mixedQuestionnaire(), answers).IsZero())
	assert.True(t, checkin.Score(mixedQuestionnaire(), nil).IsZero())
	assert.True(t, checkin.Score(nil, answers).IsZero())
}

func TestMaxScore(t *testing.T) {
	// single: max(5,2,0)=5, multiple: 3+2+4=9, free text: 0, numeric: 10
	assert.Equal(t, "24", checkin.MaxScore(mixedQuestionnaire()).String())

	noMax := []checkin.QuestionDefinition{{ID: "n", Type: checkin.NumericScore}}
	assert.True(t, checkin.MaxScore(noMax).IsZero())
	assert.True(t, checkin.MaxScore(nil).IsZero())
}

// =============================================================================
// REWARDS
// =============================================================================

func TestResolveReward_BestAmountNotHighestThreshold(t *testing.T) {
	// GIVEN: A low threshold paying more than a high one
	rs := rules(80, 5, 20, 12, 50, 7)

	// THEN: The best amount among qualifying rules wins
	assert.True(t, checkin.ResolveReward(d(90), rs).Equal(d(12)))
	assert.True(t, checkin.ResolveReward(d(20), rs).Equal(d(12)))
	assert.True(t, checkin.ResolveReward(d(19), rs).IsZero())
}

func TestResolveReward_EdgeCases(t *testing.T) {
	assert.True(t, checkin.ResolveReward(d(100), nil).IsZero(), "no rules")
	assert.True(t, checkin.ResolveReward(d(0), rules(0, 4)).Equal(d(4)), "threshold 0 is met by score 0")
	assert.True(t, checkin.ResolveReward(d(10), rules(10, 3, 10, 9, 10, 1)).Equal(d(9)), "duplicate thresholds")
	assert.True(t, checkin.ResolveReward(d(10), rules(5, -3)).IsZero(), "never negative")
}

func TestRemedialReward_IsExactlyHalf(t *testing.T) {
	rs := rules(5, 5, 10, 8)

	assert.Equal(t, "2.5", checkin.RemedialReward(d(6), rs).String())
	assert.Equal(t, "4", checkin.RemedialReward(d(10), rs).String())
	assert.True(t, checkin.RemedialReward(d(1), rs).IsZero())
}

// =============================================================================
// RECURRENCE
// =============================================================================

func TestIsCheckinDay_WeeklyScenario(t *testing.T) {
	// GIVEN: Mon/Wed/Fri
	rule := checkin.RecurrenceRule{Type: checkin.RecurWeekly, WeeklyDays: []int{1, 3, 5}}

	assert.False(t, rule.IsCheckinDay(tuesday))
	assert.True(t, rule.IsCheckinDay(wednesday))
	assert.True(t, rule.IsCheckinDay(monday))
}

func TestIsCheckinDay_Variants(t *testing.T) {
	assert.True(t, checkin.Daily().IsCheckinDay(tuesday))
	assert.True(t, checkin.Weekly(time.Tuesday).IsCheckinDay(tuesday))
	assert.False(t, checkin.Weekly().IsCheckinDay(tuesday), "empty weekday set never triggers")

	custom := checkin.Custom(monday, wednesday)
	assert.True(t, custom.IsCheckinDay(wednesday))
	assert.False(t, custom.IsCheckinDay(tuesday))
	assert.False(t, checkin.Custom().IsCheckinDay(monday))

	assert.False(t, checkin.RecurrenceRule{Type: "monthly"}.IsCheckinDay(monday), "unknown type")
}

func TestMissingDates_WindowAndOrder(t *testing.T) {
	// GIVEN: Daily rule, today is Friday 2025-03-14, Wednesday recorded
	today := calendar.MustParse("2025-03-14")
	existing := calendar.NewSet(wednesday)

	// WHEN: Asking for a 10 day window
	missing := checkin.MissingDates(checkin.Daily(), existing, 10, today)

	// THEN: Window is clamped to 3 days, ascending, recorded day excluded
	assert.Equal(t, []calendar.LocalDate{tuesday, calendar.MustParse("2025-03-13")}, missing)
}

func TestMissingDates_RespectsRecurrence(t *testing.T) {
	today := calendar.MustParse("2025-03-13") // Thursday
	rule := checkin.Weekly(time.Monday, time.Wednesday)

	missing := checkin.MissingDates(rule, calendar.NewSet(), 3, today)
	assert.Equal(t, []calendar.LocalDate{monday, wednesday}, missing, "Tuesday is off")

	missing = checkin.MissingDates(rule, calendar.NewSet(), 2, today)
	assert.Equal(t, []calendar.LocalDate{wednesday}, missing, "Monday is outside a 2 day window")

	assert.Empty(t, checkin.MissingDates(rule, calendar.NewSet(), 0, today))
}

func TestIsRemedialEligible(t *testing.T) {
	today := calendar.MustParse("2025-03-14")

	assert.False(t, checkin.IsRemedialEligible(checkin.Daily(), today, today), "today is not remedial")
	assert.True(t, checkin.IsRemedialEligible(checkin.Daily(), today.AddDays(-1), today))
	assert.True(t, checkin.IsRemedialEligible(checkin.Daily(), today.AddDays(-3), today))
	assert.False(t, checkin.IsRemedialEligible(checkin.Daily(), today.AddDays(-4), today), "4 days back")
	assert.False(t, checkin.IsRemedialEligible(checkin.Daily(), today.AddDays(1), today), "future")
	assert.False(t, checkin.IsRemedialEligible(checkin.Weekly(time.Monday), tuesday, today), "not a check-in day")
}

func TestStreak_WalksBackAndSkipsOffDays(t *testing.T) {
	// GIVEN: Mon/Wed/Fri rule, today is Friday 2025-03-14
	today := calendar.MustParse("2025-03-14")
	rule := checkin.Weekly(time.Monday, time.Wednesday, time.Friday)
	existing := calendar.NewSet(today, wednesday, monday)

	// THEN: Friday, Wednesday, Monday count; the Friday before breaks it
	assert.Equal(t, 3, checkin.Streak(rule, existing, today, checkin.DefaultStreakOptions))
}

func TestStreak_TodayPolicy(t *testing.T) {
	// GIVEN: Daily rule, yesterday and the day before recorded, today not yet
	today := calendar.MustParse("2025-03-14")
	existing := calendar.NewSet(today.AddDays(-1), today.AddDays(-2))

	// THEN: Grace (default) ignores the open day, strict breaks at 0
	assert.Equal(t, 2, checkin.Streak(checkin.Daily(), existing, today, checkin.DefaultStreakOptions))
	assert.Equal(t, 0, checkin.Streak(checkin.Daily(), existing, today, checkin.StreakOptions{TodayPolicy: checkin.TodayStrict}))

	// AND: A recorded today counts under both policies
	existing.Add(today)
	assert.Equal(t, 3, checkin.Streak(checkin.Daily(), existing, today, checkin.DefaultStreakOptions))
	assert.Equal(t, 3, checkin.Streak(checkin.Daily(), existing, today, checkin.StreakOptions{TodayPolicy: checkin.TodayStrict}))
}

func TestStreak_CappedAtLookback(t *testing.T) {
	today := calendar.MustParse("2025-03-14")
	existing := calendar.NewSet()
	for i := 0; i < 60; i++ {
		existing.Add(today.AddDays(-i))
	}
	assert.Equal(t, checkin.StreakLookbackDays, checkin.Streak(checkin.Daily(), existing, today, checkin.DefaultStreakOptions))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateAnswers_ReportsEveryProblem(t *testing.T) {
	answers := checkin.Answers{
		"habits": checkin.StringAnswer("run"),
		"energy": checkin.NumberAnswer(d(11)),
		"notes":  checkin.ListAnswer("a"),
	}

	err := checkin.ValidateAnswers(mixedQuestionnaire(), answers)
	require.Error(t, err)
	assert.ErrorIs(t, err, checkin.ErrValidation)
	assert.Equal(t, checkin.KindValidation, checkin.KindOf(err))

	fields := map[string]bool{}
	for _, p := range checkin.ProblemsOf(err) {
		fields[p.Field] = true
	}
	assert.Equal(t, map[string]bool{"mood": true, "habits": true, "energy": true, "notes": true}, fields)
}

func TestValidateAnswers_Accepts(t *testing.T) {
	answers := checkin.Answers{
		"mood":   checkin.StringAnswer("o1"),
		"energy": checkin.NumberAnswer(d(10)),
	}
	assert.NoError(t, checkin.ValidateAnswers(mixedQuestionnaire(), answers))
}

func TestValidateAnswers_NegativeAndUnknownOption(t *testing.T) {
	err := checkin.ValidateAnswers(mixedQuestionnaire(), checkin.Answers{
		"mood":   checkin.StringAnswer("o9"),
		"habits": checkin.ListAnswer("run", "fly"),
		"energy": checkin.NumberAnswer(d(-1)),
	})
	require.Error(t, err)
	assert.Len(t, checkin.ProblemsOf(err), 3)
}

func TestAnswerJSON_Shapes(t *testing.T) {
	var answers checkin.Answers
	raw := `{"mood":"o1","habits":["run","read"],"energy":7.5,"notes":null,"flag":true}`
	require.NoError(t, json.Unmarshal([]byte(raw), &answers))

	assert.Equal(t, checkin.StringAnswer("o1"), answers["mood"])
	assert.Equal(t, checkin.ListAnswer("run", "read"), answers["habits"])
	assert.Equal(t, "7.5", answers["energy"].Number.String())
	assert.True(t, answers["notes"].IsEmpty())
	assert.Equal(t, checkin.AnswerUnsupported, answers["flag"].Kind)

	out, err := json.Marshal(checkin.Answers{"energy": checkin.NumberAnswer(decimal.RequireFromString("7.5"))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"energy":7.5}`, string(out))
}

func TestValidateQuestionsAndRules(t *testing.T) {
	assert.NoError(t, checkin.ValidateQuestions(mixedQuestionnaire()))
	assert.Error(t, checkin.ValidateQuestions(nil))

	dup := []checkin.QuestionDefinition{singleChoice("a", false, 1), singleChoice("a", false, 1)}
	assert.Error(t, checkin.ValidateQuestions(dup))

	assert.NoError(t, checkin.ValidateRewardRules(rules(0, 0, 100, 50)))
	err := checkin.ValidateRewardRules(rules(101, 1, 10, -1))
	assert.Len(t, checkin.ProblemsOf(err), 2)

	assert.Error(t, checkin.RecurrenceRule{Type: checkin.RecurWeekly, WeeklyDays: []int{7}}.Validate())
	assert.Error(t, checkin.RecurrenceRule{Type: "hourly"}.Validate())
	assert.NoError(t, checkin.ValidateReminderTime("08:30"))
	assert.Error(t, checkin.ValidateReminderTime("8.30pm"))
}
