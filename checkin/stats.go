/*
stats.go - Read-side views over a profile's check-in history

CONTRACTS:
  MissingDates: remedial-eligible days without a record, oldest first
  Streak:       current streak under the service's StreakOptions
  Stats:        streak, counts, rewards earned and missing dates together
  TodayStatus:  the user's active profiles due today, recorded or not
  PendingReminders: due and unrecorded profiles whose reminder time passed

All of them resolve "today" through Service.Today, so they agree with the
submission path about which day it is.
*/
package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/habit-vault/calendar"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MissingDates returns the check-in days in the last windowDays days that
// have no record. windowDays <= 0 means the full remedial window; larger
// windows are clamped to it.
func (s *Service) MissingDates(ctx context.Context, userID string, profileID ProfileID, windowDays int) ([]calendar.LocalDate, error) {
	ctx, span := tracer.Start(ctx, "checkin.missing_dates", trace.WithAttributes(
		attribute.String("checkin.profile_id", string(profileID)),
	))
	defer span.End()

	profile, err := s.GetProfile(ctx, userID, profileID)
	if err != nil {
		return nil, err
	}
	return s.missingDates(ctx, profile, windowDays, s.Today())
}

func (s *Service) missingDates(ctx context.Context, p *Profile, windowDays int, today calendar.LocalDate) ([]calendar.LocalDate, error) {
	if windowDays <= 0 || windowDays > RemedialWindowDays {
		windowDays = RemedialWindowDays
	}
	existing, err := s.recordSet(ctx, p, today.AddDays(-windowDays), today.AddDays(-1))
	if err != nil {
		return nil, err
	}
	return MissingDates(p.Recurrence, existing, windowDays, today), nil
}

func (s *Service) Streak(ctx context.Context, userID string, profileID ProfileID) (int, error) {
	profile, err := s.GetProfile(ctx, userID, profileID)
	if err != nil {
		return 0, err
	}
	return s.streak(ctx, profile, s.Today())
}

func (s *Service) streak(ctx context.Context, p *Profile, today calendar.LocalDate) (int, error) {
	existing, err := s.recordSet(ctx, p, today.AddDays(-(StreakLookbackDays - 1)), today)
	if err != nil {
		return 0, err
	}
	return Streak(p.Recurrence, existing, today, s.StreakOptions), nil
}

func (s *Service) recordSet(ctx context.Context, p *Profile, from, to calendar.LocalDate) (calendar.Set, error) {
	dates, err := s.Store.RecordDates(ctx, p.UserID, p.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load check-in dates: %w", err)
	}
	return calendar.NewSet(dates...), nil
}

// =============================================================================
// STATS
// =============================================================================

type ProfileStats struct {
	ProfileID       ProfileID
	CurrentStreak   int
	TotalRecords    int
	RemedialRecords int
	TotalRewards    decimal.Decimal
	LastCheckin     *calendar.LocalDate
	MissingDates    []calendar.LocalDate
}

func (s *Service) Stats(ctx context.Context, userID string, profileID ProfileID) (*ProfileStats, error) {
	profile, err := s.GetProfile(ctx, userID, profileID)
	if err != nil {
		return nil, err
	}

	records, total, err := s.Store.ListRecords(ctx, userID, RecordFilter{ProfileID: profileID})
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}

	today := s.Today()
	streak, err := s.streak(ctx, profile, today)
	if err != nil {
		return nil, err
	}
	missing, err := s.missingDates(ctx, profile, RemedialWindowDays, today)
	if err != nil {
		return nil, err
	}

	stats := &ProfileStats{
		ProfileID:     profileID,
		CurrentStreak: streak,
		TotalRecords:  total,
		TotalRewards:  totalRewards(records),
		MissingDates:  missing,
	}
	for _, r := range records {
		if r.IsRemedial {
			stats.RemedialRecords++
		}
	}
	if len(records) > 0 {
		last := records[0].Date
		stats.LastCheckin = &last
	}
	return stats, nil
}

// =============================================================================
// TODAY
// =============================================================================

type TodayItem struct {
	Profile   Profile
	Completed bool
	Record    *Record
}

// TodayStatus lists the user's active profiles that are due today.
func (s *Service) TodayStatus(ctx context.Context, userID string) (calendar.LocalDate, []TodayItem, error) {
	today := s.Today()
	profiles, err := s.ListProfiles(ctx, userID)
	if err != nil {
		return today, nil, err
	}

	items := make([]TodayItem, 0, len(profiles))
	for _, p := range profiles {
		if !p.IsActive || !p.Recurrence.IsCheckinDay(today) {
			continue
		}
		rec, err := s.Store.FindRecord(ctx, userID, p.ID, today)
		if err != nil {
			return today, nil, fmt.Errorf("failed to look up today's check-in: %w", err)
		}
		items = append(items, TodayItem{Profile: p, Completed: rec != nil, Record: rec})
	}
	return today, items, nil
}

// =============================================================================
// REMINDERS
// =============================================================================

type Reminder struct {
	Profile Profile
	Date    calendar.LocalDate
}

// PendingReminders returns active profiles across all users that are due
// today, not yet recorded, and whose reminder time has passed.
func (s *Service) PendingReminders(ctx context.Context) ([]Reminder, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	local := now().In(loc)
	today := calendar.FromTime(local, loc)
	clock := local.Hour()*60 + local.Minute()

	profiles, err := s.Store.ListActiveProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active profiles: %w", err)
	}

	var due []Reminder
	for _, p := range profiles {
		at, ok := reminderMinutes(p.ReminderTime)
		if !ok || at > clock || !p.Recurrence.IsCheckinDay(today) {
			continue
		}
		rec, err := s.Store.FindRecord(ctx, p.UserID, p.ID, today)
		if err != nil {
			return nil, fmt.Errorf("failed to look up today's check-in: %w", err)
		}
		if rec == nil {
			due = append(due, Reminder{Profile: p, Date: today})
		}
	}
	return due, nil
}
