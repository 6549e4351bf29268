/*
service.go - Check-in submission orchestration

PURPOSE:
  Sequences the pure scoring, reward and recurrence functions against the
  stores. This is the only place that decides what "today" is.

SUBMISSION SEQUENCE (each failure short-circuits):
  1. Load profile (scoped to the user)              -> ErrProfileNotFound
  2. Load its questionnaire                         -> ErrQuestionnaireNotFound
  3. Date check
       normal:   today must be a check-in day       -> *InvalidDateError
       remedial: 1..3 days ago and a check-in day   -> *InvalidDateError
  4. No record for (profile, date) yet              -> *DuplicateCheckinError
  5. Validate answers                               -> *ValidationError
  6. Score
  7. Resolve reward (halved when remedial)
  8-9. Store record + vault credit atomically (SaveCheckin)
  10. Return the stored record

  Steps 1-7 have no side effects. Step 4 is advisory: the store's unique
  (profile, date) constraint is what actually prevents a double payout
  under concurrent submissions.

TIMEZONE:
  Today is computed from Now() in Location. The same date drives
  eligibility, streaks and missing-date windows.

SEE ALSO:
  - profiles.go: Profile and questionnaire management
  - stats.go: Streaks, missing dates, today status
*/
package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/habit-vault/calendar"
	"github.com/warp/habit-vault/vault"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/warp/habit-vault/checkin")

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store         Store
	Location      *time.Location
	StreakOptions StreakOptions
	Now           func() time.Time
	Logger        *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:         store,
		Location:      time.Local,
		StreakOptions: DefaultStreakOptions,
		Now:           time.Now,
		Logger:        logger,
	}
}

// Today is the current calendar date in the service's location.
func (s *Service) Today() calendar.LocalDate {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return calendar.FromTime(now(), s.Location)
}

// =============================================================================
// SUBMISSIONS
// =============================================================================

// SubmitCheckin records today's check-in for a profile.
func (s *Service) SubmitCheckin(ctx context.Context, userID string, profileID ProfileID, answers Answers) (*Record, error) {
	return s.submit(ctx, userID, profileID, s.Today(), answers, false)
}

// SubmitRemedialCheckin records a missed check-in for a date 1..3 days ago
// at half reward.
func (s *Service) SubmitRemedialCheckin(ctx context.Context, userID string, profileID ProfileID, date calendar.LocalDate, answers Answers) (*Record, error) {
	return s.submit(ctx, userID, profileID, date, answers, true)
}

func (s *Service) submit(ctx context.Context, userID string, profileID ProfileID, date calendar.LocalDate, answers Answers, remedial bool) (_ *Record, err error) {
	ctx, span := tracer.Start(ctx, "checkin.submit", trace.WithAttributes(
		attribute.String("checkin.profile_id", string(profileID)),
		attribute.String("checkin.date", date.String()),
		attribute.Bool("checkin.remedial", remedial),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
		span.End()
	}()

	// 1-2. Profile and questionnaire
	profile, questionnaire, err := s.loadProfile(ctx, userID, profileID)
	if err != nil {
		return nil, err
	}

	// 3. Date eligibility
	if !profile.IsActive {
		return nil, &InvalidDateError{Date: date, Reason: "profile is paused"}
	}
	today := s.Today()
	if remedial {
		if !IsRemedialEligible(profile.Recurrence, date, today) {
			return nil, &InvalidDateError{Date: date, Reason: fmt.Sprintf(
				"remedial check-ins must target a scheduled day 1 to %d days before %s", RemedialWindowDays, today)}
		}
	} else if !profile.Recurrence.IsCheckinDay(date) {
		return nil, &InvalidDateError{Date: date, Reason: "not a scheduled check-in day"}
	}

	// 4. Advisory duplicate check
	existing, err := s.Store.FindRecord(ctx, userID, profileID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing check-in: %w", err)
	}
	if existing != nil {
		return nil, &DuplicateCheckinError{ProfileID: profileID, Date: date}
	}

	// 5-7. Validate, score, reward
	if err := ValidateAnswers(questionnaire.Questions, answers); err != nil {
		return nil, err
	}
	score := Score(questionnaire.Questions, answers)
	reward := ResolveReward(score, profile.RewardRules)
	if remedial {
		reward = RemedialReward(score, profile.RewardRules)
	}

	record := Record{
		ID:           RecordID(uuid.NewString()),
		UserID:       userID,
		ProfileID:    profileID,
		Date:         date,
		Answers:      answers,
		Score:        score,
		RewardAmount: reward,
		IsRemedial:   remedial,
		CreatedAt:    time.Now().UTC(),
	}

	// 8-9. Record and credit in one write
	var credit *vault.Transaction
	if reward.IsPositive() {
		tx := vault.NewCredit(userID, reward, creditDescription(profile, date, remedial), string(record.ID))
		credit = &tx
	}
	if err := s.Store.SaveCheckin(ctx, record, credit); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("checkin.score", score.String()),
		attribute.String("checkin.reward", reward.String()),
	)
	s.log().Info("check-in recorded",
		zap.String("user_id", userID),
		zap.String("profile_id", string(profileID)),
		zap.String("date", date.String()),
		zap.Bool("remedial", remedial),
		zap.String("score", score.String()),
		zap.String("reward", reward.String()),
	)
	return &record, nil
}

func (s *Service) loadProfile(ctx context.Context, userID string, profileID ProfileID) (*Profile, *Questionnaire, error) {
	profile, err := s.Store.GetProfile(ctx, userID, profileID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return nil, nil, ErrProfileNotFound
	}

	q, err := s.Store.GetQuestionnaire(ctx, userID, profile.QuestionnaireID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load questionnaire: %w", err)
	}
	if q == nil {
		return nil, nil, ErrQuestionnaireNotFound
	}
	return profile, q, nil
}

func creditDescription(p *Profile, date calendar.LocalDate, remedial bool) string {
	if remedial {
		return fmt.Sprintf("Remedial check-in reward: %s (%s)", p.Title, date)
	}
	return fmt.Sprintf("Check-in reward: %s (%s)", p.Title, date)
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// =============================================================================
// HISTORY
// =============================================================================

// RecordPage is one page of check-in history.
type RecordPage struct {
	Records []Record
	Total   int
}

// ListRecords returns the user's check-ins, newest first.
func (s *Service) ListRecords(ctx context.Context, userID string, filter RecordFilter) (*RecordPage, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		ve := &ValidationError{}
		ve.add("pagination", "limit and offset must not be negative")
		return nil, ve
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		ve := &ValidationError{}
		ve.add("date_range", "end date is before start date")
		return nil, ve
	}

	records, total, err := s.Store.ListRecords(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	return &RecordPage{Records: records, Total: total}, nil
}

// totalRewards sums reward amounts.
func totalRewards(records []Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.RewardAmount)
	}
	return total
}
