/*
recurrence.go - Which calendar days are check-in days

CONTRACTS:
  IsCheckinDay: membership of one date in a recurrence rule
  MissingDates: recent check-in days without a record, still remedial-eligible
  Streak:       consecutive recorded check-in days walking back from today

DATES:
  Every argument is a calendar.LocalDate already resolved in the check-in
  timezone. Nothing here looks at time.Now() or converts through UTC.

REMEDIAL WINDOW:
  A missed day may be made up 1..RemedialWindowDays days later. Requests for
  a wider missing-dates window are clamped to it.

STREAK AND TODAY:
  Whether an unrecorded but due "today" breaks the streak is a policy
  (StreakOptions.TodayPolicy). TodayGrace, the default, skips an unrecorded
  today because the day is not over. TodayStrict treats today like any
  other day.
*/
package checkin

import (
	"sort"

	"github.com/warp/habit-vault/calendar"
)

const (
	// RemedialWindowDays caps how far back a missed day can be made up.
	RemedialWindowDays = 3

	// StreakLookbackDays bounds the streak walk, today included.
	StreakLookbackDays = 30
)

// =============================================================================
// MEMBERSHIP
// =============================================================================

// IsCheckinDay reports whether date requires a check-in under r.
// Unknown rule types never trigger.
func (r RecurrenceRule) IsCheckinDay(date calendar.LocalDate) bool {
	switch r.Type {
	case RecurDaily:
		return true
	case RecurWeekly:
		wd := int(date.Weekday())
		for _, d := range r.WeeklyDays {
			if d == wd {
				return true
			}
		}
		return false
	case RecurCustom:
		for _, d := range r.CustomDates {
			if d == date {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// =============================================================================
// MISSING DATES
// =============================================================================

// MissingDates returns the check-in days in [today-window, today-1] that
// have no record, oldest first. window is clamped to RemedialWindowDays.
func MissingDates(rule RecurrenceRule, existing calendar.Set, windowDays int, today calendar.LocalDate) []calendar.LocalDate {
	if windowDays > RemedialWindowDays {
		windowDays = RemedialWindowDays
	}

	var missing []calendar.LocalDate
	for i := 1; i <= windowDays; i++ {
		d := today.AddDays(-i)
		if rule.IsCheckinDay(d) && !existing.Contains(d) {
			missing = append(missing, d)
		}
	}

	sort.Slice(missing, func(i, j int) bool { return missing[i].Before(missing[j]) })
	return missing
}

// IsRemedialEligible reports whether date lies 1..RemedialWindowDays days
// before today and is a check-in day under rule.
func IsRemedialEligible(rule RecurrenceRule, date, today calendar.LocalDate) bool {
	age := calendar.DaysBetween(date, today)
	if age < 1 || age > RemedialWindowDays {
		return false
	}
	return rule.IsCheckinDay(date)
}

// =============================================================================
// STREAK
// =============================================================================

type TodayPolicy string

const (
	// TodayGrace skips an unrecorded today; a recorded today still counts.
	TodayGrace TodayPolicy = "grace"

	// TodayStrict evaluates today like any other day.
	TodayStrict TodayPolicy = "strict"
)

type StreakOptions struct {
	TodayPolicy TodayPolicy
}

// DefaultStreakOptions is used when a Service is built without overrides.
var DefaultStreakOptions = StreakOptions{TodayPolicy: TodayGrace}

// Streak walks back from today over at most StreakLookbackDays days.
// Non-check-in days are skipped. A recorded check-in day extends the
// streak; the first unrecorded one ends it.
func Streak(rule RecurrenceRule, existing calendar.Set, today calendar.LocalDate, opts StreakOptions) int {
	streak := 0
	for i := 0; i < StreakLookbackDays; i++ {
		d := today.AddDays(-i)
		if !rule.IsCheckinDay(d) {
			continue
		}
		if existing.Contains(d) {
			streak++
			continue
		}
		if i == 0 && opts.TodayPolicy != TodayStrict {
			continue
		}
		break
	}
	return streak
}
