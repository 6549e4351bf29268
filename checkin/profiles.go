package checkin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// PROFILE MANAGEMENT
// =============================================================================

// ProfileInput creates a profile together with its questionnaire.
type ProfileInput struct {
	Title        string
	Description  string
	Questions    []QuestionDefinition
	Recurrence   RecurrenceRule
	RewardRules  []RewardRule
	ReminderTime string
}

// ProfileUpdate changes selected fields. Nil fields are left unchanged;
// a non-nil empty RewardRules clears the rules.
type ProfileUpdate struct {
	Title        *string
	Description  *string
	Recurrence   *RecurrenceRule
	RewardRules  []RewardRule
	ReminderTime *string
	IsActive     *bool
}

func (s *Service) CreateProfile(ctx context.Context, userID string, in ProfileInput) (*Profile, *Questionnaire, error) {
	ve := &ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		ve.add("title", "title is required")
	}
	collect(ve, ValidateQuestions(in.Questions))
	collect(ve, in.Recurrence.Validate())
	collect(ve, ValidateRewardRules(in.RewardRules))
	reminder, err := NormalizeReminderTime(in.ReminderTime)
	collect(ve, err)
	if err := ve.orNil(); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	q := Questionnaire{
		ID:        QuestionnaireID(uuid.NewString()),
		UserID:    userID,
		Title:     in.Title,
		Questions: in.Questions,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p := Profile{
		ID:              ProfileID(uuid.NewString()),
		UserID:          userID,
		Title:           in.Title,
		Description:     in.Description,
		QuestionnaireID: q.ID,
		Recurrence:      in.Recurrence,
		RewardRules:     in.RewardRules,
		ReminderTime:    reminder,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Store.CreateProfile(ctx, p, q); err != nil {
		return nil, nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.log().Info("profile created",
		zap.String("user_id", userID),
		zap.String("profile_id", string(p.ID)),
		zap.String("recurrence", string(p.Recurrence.Type)),
	)
	return &p, &q, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string, id ProfileID) (*Profile, error) {
	p, err := s.Store.GetProfile(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

func (s *Service) ListProfiles(ctx context.Context, userID string) ([]Profile, error) {
	profiles, err := s.Store.ListProfiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, id ProfileID, upd ProfileUpdate) (*Profile, error) {
	p, err := s.GetProfile(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	ve := &ValidationError{}
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			ve.add("title", "title is required")
		}
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Recurrence != nil {
		collect(ve, upd.Recurrence.Validate())
		p.Recurrence = *upd.Recurrence
	}
	if upd.RewardRules != nil {
		collect(ve, ValidateRewardRules(upd.RewardRules))
		p.RewardRules = upd.RewardRules
	}
	if upd.ReminderTime != nil {
		reminder, err := NormalizeReminderTime(*upd.ReminderTime)
		collect(ve, err)
		p.ReminderTime = reminder
	}
	if upd.IsActive != nil {
		p.IsActive = *upd.IsActive
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	p.UpdatedAt = time.Now().UTC()
	if err := s.Store.UpdateProfile(ctx, *p); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

// DeleteProfile removes the profile, its questionnaire and its records.
// Vault transactions already credited stay in the ledger.
func (s *Service) DeleteProfile(ctx context.Context, userID string, id ProfileID) error {
	if _, err := s.GetProfile(ctx, userID, id); err != nil {
		return err
	}
	if err := s.Store.DeleteProfile(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	s.log().Info("profile deleted", zap.String("user_id", userID), zap.String("profile_id", string(id)))
	return nil
}

// =============================================================================
// QUESTIONNAIRE
// =============================================================================

func (s *Service) GetQuestionnaire(ctx context.Context, userID string, profileID ProfileID) (*Questionnaire, error) {
	_, q, err := s.loadProfile(ctx, userID, profileID)
	return q, err
}

// UpdateQuestionnaire replaces the question list. Stored records keep the
// score they were given.
func (s *Service) UpdateQuestionnaire(ctx context.Context, userID string, profileID ProfileID, title string, questions []QuestionDefinition) (*Questionnaire, error) {
	_, q, err := s.loadProfile(ctx, userID, profileID)
	if err != nil {
		return nil, err
	}
	if err := ValidateQuestions(questions); err != nil {
		return nil, err
	}

	if title != "" {
		q.Title = title
	}
	q.Questions = questions
	q.UpdatedAt = time.Now().UTC()
	if err := s.Store.UpdateQuestionnaire(ctx, *q); err != nil {
		return nil, fmt.Errorf("failed to update questionnaire: %w", err)
	}
	return q, nil
}

// collect merges the problems of a validation error into ve.
func collect(ve *ValidationError, err error) {
	if err == nil {
		return
	}
	if problems := ProblemsOf(err); problems != nil {
		ve.Problems = append(ve.Problems, problems...)
		return
	}
	ve.add("input", "%v", err)
}
