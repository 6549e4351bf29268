package checkin_test

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/warp/habit-vault/calendar"
	"github.com/warp/habit-vault/checkin"
)

func newProperties(minSuccessful int) *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = minSuccessful
	return gopter.NewProperties(parameters)
}

// rulesFrom pairs up raw values as (threshold, amount).
func rulesFrom(raw []int64) []checkin.RewardRule {
	return rules(raw...)
}

// TestResolveRewardProperties verifies reward resolution bounds.
// Property: resolve(score, rules) >= 0, and == 0 when no threshold is met
func TestResolveRewardProperties(t *testing.T) {
	properties := newProperties(200)

	properties.Property("reward is never negative", prop.ForAll(
		func(score int64, raw []int64) bool {
			return !checkin.ResolveReward(d(score), rulesFrom(raw)).IsNegative()
		},
		gen.Int64Range(0, 100),
		gen.SliceOf(gen.Int64Range(-20, 120)),
	))

	properties.Property("no qualifying rule yields zero", prop.ForAll(
		func(score int64, raw []int64) bool {
			var rs []checkin.RewardRule
			for _, r := range rulesFrom(raw) {
				if r.Threshold.GreaterThan(d(score)) {
					rs = append(rs, r)
				}
			}
			return checkin.ResolveReward(d(score), rs).IsZero()
		},
		gen.Int64Range(0, 100),
		gen.SliceOf(gen.Int64Range(0, 120)),
	))

	properties.Property("rule order does not matter", prop.ForAll(
		func(score int64, raw []int64) bool {
			rs := rulesFrom(raw)
			reversed := make([]checkin.RewardRule, len(rs))
			for i, r := range rs {
				reversed[len(rs)-1-i] = r
			}
			return checkin.ResolveReward(d(score), rs).Equal(checkin.ResolveReward(d(score), reversed))
		},
		gen.Int64Range(0, 100),
		gen.SliceOf(gen.Int64Range(0, 120)),
	))

	properties.Property("remedial reward is exactly half", prop.ForAll(
		func(score int64, raw []int64) bool {
			rs := rulesFrom(raw)
			full := checkin.ResolveReward(d(score), rs)
			return checkin.RemedialReward(d(score), rs).Mul(decimal.NewFromInt(2)).Equal(full)
		},
		gen.Int64Range(0, 100),
		gen.SliceOf(gen.Int64Range(0, 121)),
	))

	properties.TestingRun(t)
}

// TestWeeklyMembership verifies weekly rules match the weekday set exactly.
// Property: isCheckinDay(weekly(days), date) == days.contains(date.weekday)
func TestWeeklyMembership(t *testing.T) {
	properties := newProperties(300)
	epoch := calendar.MustParse("2020-01-01")

	properties.Property("weekly membership equals weekday set membership", prop.ForAll(
		func(days []int, offset int) bool {
			date := epoch.AddDays(offset)
			rule := checkin.RecurrenceRule{Type: checkin.RecurWeekly, WeeklyDays: days}

			want := false
			for _, wd := range days {
				if wd == int(date.Weekday()) {
					want = true
				}
			}
			return rule.IsCheckinDay(date) == want
		},
		gen.SliceOf(gen.IntRange(0, 6)),
		gen.IntRange(0, 3650),
	))

	properties.TestingRun(t)
}

// TestScoreProperties verifies scoring ignores ordering and stray keys.
func TestScoreProperties(t *testing.T) {
	properties := newProperties(200)

	// One numeric question per generated value, answered with that value.
	build := func(values []int64) ([]checkin.QuestionDefinition, checkin.Answers) {
		questions := make([]checkin.QuestionDefinition, 0, len(values))
		answers := make(checkin.Answers, len(values))
		for i, v := range values {
			id := fmt.Sprintf("q%d", i)
			questions = append(questions, checkin.QuestionDefinition{ID: id, Type: checkin.NumericScore, Title: id})
			answers[id] = checkin.NumberAnswer(d(v))
		}
		return questions, answers
	}

	properties.Property("question order does not change the score", prop.ForAll(
		func(values []int64) bool {
			questions, answers := build(values)
			reversed := make([]checkin.QuestionDefinition, len(questions))
			for i, q := range questions {
				reversed[len(questions)-1-i] = q
			}
			return checkin.Score(questions, answers).Equal(checkin.Score(reversed, answers))
		},
		gen.SliceOf(gen.Int64Range(0, 50)),
	))

	properties.Property("answers without a question are ignored", prop.ForAll(
		func(values []int64, extra []string) bool {
			questions, answers := build(values)
			before := checkin.Score(questions, answers)
			for _, k := range extra {
				if _, taken := answers[k]; !taken {
					answers[k] = checkin.NumberAnswer(d(1000))
				}
			}
			return checkin.Score(questions, answers).Equal(before)
		},
		gen.SliceOf(gen.Int64Range(0, 50)),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("max score is stable across calls", prop.ForAll(
		func(values []int64) bool {
			questions := make([]checkin.QuestionDefinition, 0, len(values))
			for i, v := range values {
				q := checkin.QuestionDefinition{ID: fmt.Sprintf("q%d", i), Type: checkin.MultipleChoice}
				q.Options = []checkin.Option{{ID: "a", Score: d(v)}, {ID: "b", Score: d(v / 2)}}
				questions = append(questions, q)
			}
			return checkin.MaxScore(questions).Equal(checkin.MaxScore(questions))
		},
		gen.SliceOf(gen.Int64Range(0, 100)),
	))

	properties.TestingRun(t)
}
