package calendar_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/habit-vault/calendar"
)

func TestFromTime_NearLocalMidnight(t *testing.T) {
	// GIVEN: 23:30 on March 9 in New York, which is already March 10 in UTC
	// WHEN: Converting to a calendar date in each location
	// THEN: Each location sees its own calendar day
	ny := time.FixedZone("EST", -5*60*60)

	instant := time.Date(2025, time.March, 9, 23, 30, 0, 0, ny)

	assert.Equal(t, calendar.New(2025, time.March, 9), calendar.FromTime(instant, ny))
	assert.Equal(t, calendar.New(2025, time.March, 10), calendar.FromTime(instant, time.UTC))
}

func TestFromTime_NearUTCMidnight(t *testing.T) {
	// GIVEN: 00:15 UTC on March 10, which is still March 9 in Los Angeles
	la := time.FixedZone("PST", -8*60*60)

	instant := time.Date(2025, time.March, 10, 0, 15, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-09", calendar.FromTime(instant, la).String())
	assert.Equal(t, "2025-03-10", calendar.FromTime(instant, time.UTC).String())
}

func TestAddDays_CrossesMonthAndYear(t *testing.T) {
	d := calendar.MustParse("2024-12-30")
	assert.Equal(t, "2025-01-02", d.AddDays(3).String())
	assert.Equal(t, "2024-02-29", calendar.MustParse("2024-03-01").AddDays(-1).String())
}

func TestWeekday(t *testing.T) {
	assert.Equal(t, time.Wednesday, calendar.MustParse("2025-03-12").Weekday())
	assert.Equal(t, time.Sunday, calendar.MustParse("2025-03-09").Weekday())
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 4, calendar.DaysBetween(calendar.MustParse("2025-03-06"), calendar.MustParse("2025-03-10")))
	assert.Equal(t, -1, calendar.DaysBetween(calendar.MustParse("2025-03-10"), calendar.MustParse("2025-03-09")))
}

func TestParse_Invalid(t *testing.T) {
	_, err := calendar.Parse("2025-13-01")
	assert.Error(t, err)
	_, err = calendar.Parse("10/03/2025")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	var got struct {
		Date calendar.LocalDate `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-03-10"}`), &got))
	assert.Equal(t, calendar.New(2025, time.March, 10), got.Date)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-03-10"}`, string(out))
}

func TestComparison(t *testing.T) {
	a := calendar.MustParse("2025-03-09")
	b := calendar.MustParse("2025-03-10")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.After(a))
	assert.True(t, calendar.LocalDate{}.IsZero())
}
