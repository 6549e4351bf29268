package checkin

import "github.com/shopspring/decimal"

// =============================================================================
// ANSWER SCORER
// =============================================================================

// Score totals the answers against the questionnaire.
//
// It walks the questions, not the answers: unanswered questions add 0 and
// answers keyed by unknown question ids are ignored. Unknown option ids add
// 0, numeric answers are added as submitted (bounds are checked by
// ValidateAnswers beforehand), and free text never scores. A shape that does
// not match the question type also adds 0. Score never fails.
func Score(questions []QuestionDefinition, answers Answers) decimal.Decimal {
	total := decimal.Zero
	for _, q := range questions {
		a, ok := answers[q.ID]
		if !ok || a.IsEmpty() {
			continue
		}

		switch q.Type {
		case SingleChoice:
			if a.Kind != AnswerString {
				continue
			}
			if o, ok := q.option(a.String); ok {
				total = total.Add(o.Score)
			}
		case MultipleChoice:
			if a.Kind != AnswerList {
				continue
			}
			for _, id := range dedupe(a.List) {
				if o, ok := q.option(id); ok {
					total = total.Add(o.Score)
				}
			}
		case NumericScore:
			if a.Kind == AnswerNumber {
				total = total.Add(a.Number)
			}
		}
	}
	return total
}

// MaxScore is the best total a questionnaire can yield. Used for progress
// display only.
func MaxScore(questions []QuestionDefinition) decimal.Decimal {
	total := decimal.Zero
	for _, q := range questions {
		switch q.Type {
		case SingleChoice:
			if len(q.Options) == 0 {
				continue
			}
			best := q.Options[0].Score
			for _, o := range q.Options[1:] {
				best = decimal.Max(best, o.Score)
			}
			total = total.Add(best)
		case MultipleChoice:
			for _, o := range q.Options {
				total = total.Add(o.Score)
			}
		case NumericScore:
			if q.MaxScore != nil {
				total = total.Add(*q.MaxScore)
			}
		}
	}
	return total
}

// dedupe keeps first occurrences; a multiple-choice answer is a set.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
