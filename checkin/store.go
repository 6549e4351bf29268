/*
store.go - Persistence interfaces for profiles, questionnaires and records

CONVENTIONS:
  - Every read is scoped by user id; another user's profile is "absent".
  - Get* methods return (nil, nil) when the row does not exist.
  - DeleteProfile cascades to the profile's records and questionnaire.

ATOMIC CHECK-IN WRITE:
  SaveCheckin writes the record and, when non-nil, its vault credit in one
  transaction. A uniqueness violation on (profile, date) must surface as
  *DuplicateCheckinError with nothing written, so two racing submissions
  for the same day can never both be paid.

IMPLEMENTATIONS:
  - store/sqlite: database/sql + go-sqlite3
  - store/memory: in-memory, for tests and development
*/
package checkin

import (
	"context"

	"github.com/warp/habit-vault/calendar"
	"github.com/warp/habit-vault/vault"
)

type ProfileStore interface {
	// CreateProfile stores a profile and its questionnaire atomically.
	CreateProfile(ctx context.Context, p Profile, q Questionnaire) error
	GetProfile(ctx context.Context, userID string, id ProfileID) (*Profile, error)
	ListProfiles(ctx context.Context, userID string) ([]Profile, error)
	// ListActiveProfiles spans all users. Used by the reminder scheduler.
	ListActiveProfiles(ctx context.Context) ([]Profile, error)
	UpdateProfile(ctx context.Context, p Profile) error
	DeleteProfile(ctx context.Context, userID string, id ProfileID) error
}

type QuestionnaireStore interface {
	GetQuestionnaire(ctx context.Context, userID string, id QuestionnaireID) (*Questionnaire, error)
	UpdateQuestionnaire(ctx context.Context, q Questionnaire) error
}

// RecordFilter narrows ListRecords. Zero values mean "no filter";
// Limit 0 returns every match.
type RecordFilter struct {
	ProfileID ProfileID
	From      calendar.LocalDate
	To        calendar.LocalDate
	Limit     int
	Offset    int
}

type RecordStore interface {
	FindRecord(ctx context.Context, userID string, profileID ProfileID, date calendar.LocalDate) (*Record, error)
	// RecordDates returns the dates recorded for a profile in [from, to].
	RecordDates(ctx context.Context, userID string, profileID ProfileID, from, to calendar.LocalDate) ([]calendar.LocalDate, error)
	// ListRecords returns a page (newest date first) and the total match count.
	ListRecords(ctx context.Context, userID string, filter RecordFilter) ([]Record, int, error)
	SaveCheckin(ctx context.Context, record Record, credit *vault.Transaction) error
}

// Store is everything the Service needs.
type Store interface {
	ProfileStore
	QuestionnaireStore
	RecordStore
}
