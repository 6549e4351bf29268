/*
Package calendar provides the local calendar date used for every check-in
eligibility, streak, and missing-date computation.

PURPOSE:
  A check-in belongs to a calendar day, not to an instant. Mixing UTC
  timestamps and local dates produces off-by-one-day errors near midnight,
  so the engine never compares time.Time values directly. Instead, "today"
  is resolved once against a configured location and everything downstream
  works on LocalDate.

POLICY:
  LocalDate carries no location. Callers convert an instant with
  FromTime(t, loc) or Today(loc). The same loc must be used everywhere
  within a request (the checkin.Service owns it).

FORMAT:
  String() and Parse() use ISO "YYYY-MM-DD". JSON encodes the same way.

SEE ALSO:
  - checkin/recurrence.go: membership, missing dates, streaks
*/
package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layout is the ISO calendar date layout.
const Layout = "2006-01-02"

// =============================================================================
// LOCAL DATE - Day-granularity date without a location
// =============================================================================

type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

// New normalizes out-of-range components (e.g. Feb 30 -> Mar 2).
func New(year int, month time.Month, day int) LocalDate {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), time.UTC)
}

// FromTime returns the calendar date of t as observed in loc.
func FromTime(t time.Time, loc *time.Location) LocalDate {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return LocalDate{Year: y, Month: m, Day: d}
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) LocalDate {
	return FromTime(time.Now(), loc)
}

// Parse reads a "YYYY-MM-DD" string.
func Parse(s string) (LocalDate, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return LocalDate{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return FromTime(t, time.UTC), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) LocalDate {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d LocalDate) Before(o LocalDate) bool { return d.compare(o) < 0 }
func (d LocalDate) After(o LocalDate) bool  { return d.compare(o) > 0 }
func (d LocalDate) Equal(o LocalDate) bool  { return d == o }
func (d LocalDate) IsZero() bool            { return d == LocalDate{} }

func (d LocalDate) compare(o LocalDate) int {
	switch {
	case d.Year != o.Year:
		return d.Year - o.Year
	case d.Month != o.Month:
		return int(d.Month) - int(o.Month)
	default:
		return d.Day - o.Day
	}
}

// Arithmetic
func (d LocalDate) AddDays(n int) LocalDate { return New(d.Year, d.Month, d.Day+n) }

// Properties

// Weekday returns 0=Sunday..6=Saturday.
func (d LocalDate) Weekday() time.Weekday { return d.midnightUTC().Weekday() }

func (d LocalDate) String() string { return d.midnightUTC().Format(Layout) }

// In returns midnight of d in loc.
func (d LocalDate) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d LocalDate) midnightUTC() time.Time { return d.In(time.UTC) }

// DaysBetween returns to - from in whole days.
func DaysBetween(from, to LocalDate) int {
	return int(to.midnightUTC().Sub(from.midnightUTC()).Hours() / 24)
}

// =============================================================================
// ENCODING
// =============================================================================

func (d LocalDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *LocalDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Set is an unordered collection of dates.
type Set map[LocalDate]struct{}

func NewSet(dates ...LocalDate) Set {
	s := make(Set, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

func (s Set) Contains(d LocalDate) bool {
	_, ok := s[d]
	return ok
}

func (s Set) Add(d LocalDate) { s[d] = struct{}{} }
