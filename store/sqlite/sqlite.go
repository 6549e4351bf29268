/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements checkin.Store and vault.TxStore using SQLite. The same schema
  ports to PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  checkin.ProfileStore:       Profiles (created together with their questionnaire)
  checkin.QuestionnaireStore: Question lists
  checkin.RecordStore:        Check-in records + atomic record/credit write
  vault.TxStore:              Append-only vault ledger

KEY TABLES:
  questionnaires:     Question definitions as JSON
  checkin_profiles:   Recurrence and reward rules as JSON
  checkin_records:    One row per (profile, date)
  vault_transactions: Immutable ledger of every balance change

INDEXES:
  - idx_unique_profile_day: Enforces one check-in per profile per day.
    This, not the service's pre-check, is what stops two concurrent
    submissions for the same day from both being paid.
  - idx_records_user_date: History listing (newest first)
  - idx_vault_user: Balance replay

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements touch vault_transactions. Deleting a
  profile removes its records but leaves credited rewards in the vault.

ATOMIC CHECK-IN WRITE:
  SaveCheckin inserts the record and its credit in one database
  transaction. A day-uniqueness violation rolls back both.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single open connection, which
  also keeps ":memory:" databases shared across calls.

USAGE:
  store, err := sqlite.New("./data/habit-vault.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - checkin/store.go, vault/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/habit-vault/calendar"
	"github.com/warp/habit-vault/checkin"
	"github.com/warp/habit-vault/vault"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ checkin.Store = (*Store)(nil)
	_ vault.TxStore = (*Store)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store, err := NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an already opened database and migrates it.
func NewWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questionnaires (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		questions_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS checkin_profiles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		questionnaire_id TEXT NOT NULL REFERENCES questionnaires(id),
		recurrence_json TEXT NOT NULL,
		reward_rules_json TEXT NOT NULL,
		reminder_time TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_user
		ON checkin_profiles(user_id);
	CREATE INDEX IF NOT EXISTS idx_profiles_active
		ON checkin_profiles(is_active) WHERE is_active;

	CREATE TABLE IF NOT EXISTS checkin_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		profile_id TEXT NOT NULL REFERENCES checkin_profiles(id) ON DELETE CASCADE,
		checkin_date TEXT NOT NULL,
		answers_json TEXT NOT NULL,
		score TEXT NOT NULL,
		reward_amount TEXT NOT NULL,
		is_remedial BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one check-in per profile per calendar day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_profile_day
		ON checkin_records(profile_id, checkin_date);

	CREATE INDEX IF NOT EXISTS idx_records_user_date
		ON checkin_records(user_id, checkin_date DESC);

	-- Vault ledger (append-only)
	CREATE TABLE IF NOT EXISTS vault_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		delta TEXT NOT NULL,
		description TEXT,
		reference_id TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vault_user
		ON vault_transactions(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_vault_reference
		ON vault_transactions(reference_id) WHERE reference_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROFILE STORE (checkin.ProfileStore interface)
// =============================================================================

const profileColumns = `id, user_id, title, description, questionnaire_id, recurrence_json,
	reward_rules_json, reminder_time, is_active, created_at, updated_at`

// CreateProfile inserts the questionnaire and the profile in one transaction.
func (s *Store) CreateProfile(ctx context.Context, p checkin.Profile, q checkin.Questionnaire) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	questionsJSON, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}
	recurrenceJSON, rulesJSON, err := encodeProfile(p)
	if err != nil {
		return err
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO questionnaires (id, user_id, title, questions_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.UserID, q.Title, string(questionsJSON), formatTime(q.CreatedAt), formatTime(q.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert questionnaire: %w", err)
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO checkin_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Title, p.Description, p.QuestionnaireID, recurrenceJSON, rulesJSON,
		p.ReminderTime, p.IsActive, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	return sqlTx.Commit()
}

// GetProfile retrieves a profile owned by userID, or nil.
func (s *Store) GetProfile(ctx context.Context, userID string, id checkin.ProfileID) (*checkin.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM checkin_profiles WHERE id = ? AND user_id = ?",
		id, userID,
	)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context, userID string) ([]checkin.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryProfiles(ctx,
		"SELECT "+profileColumns+" FROM checkin_profiles WHERE user_id = ? ORDER BY created_at, id",
		userID,
	)
}

// ListActiveProfiles spans every user.
func (s *Store) ListActiveProfiles(ctx context.Context) ([]checkin.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryProfiles(ctx,
		"SELECT "+profileColumns+" FROM checkin_profiles WHERE is_active ORDER BY created_at, id",
	)
}

func (s *Store) queryProfiles(ctx context.Context, query string, args ...any) ([]checkin.Profile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []checkin.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *Store) UpdateProfile(ctx context.Context, p checkin.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recurrenceJSON, rulesJSON, err := encodeProfile(p)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE checkin_profiles SET
			title = ?, description = ?, recurrence_json = ?, reward_rules_json = ?,
			reminder_time = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		p.Title, p.Description, recurrenceJSON, rulesJSON,
		p.ReminderTime, p.IsActive, formatTime(p.UpdatedAt),
		p.ID, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return requireRow(res, checkin.ErrProfileNotFound)
}

// DeleteProfile removes the profile, its records and its questionnaire.
func (s *Store) DeleteProfile(ctx context.Context, userID string, id checkin.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var questionnaireID string
	err = sqlTx.QueryRowContext(ctx,
		"SELECT questionnaire_id FROM checkin_profiles WHERE id = ? AND user_id = ?",
		id, userID,
	).Scan(&questionnaireID)
	if errors.Is(err, sql.ErrNoRows) {
		return checkin.ErrProfileNotFound
	}
	if err != nil {
		return err
	}

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM checkin_records WHERE profile_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM checkin_profiles WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM questionnaires WHERE id = ?", questionnaireID); err != nil {
		return fmt.Errorf("failed to delete questionnaire: %w", err)
	}

	return sqlTx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (checkin.Profile, error) {
	var (
		p                         checkin.Profile
		recurrenceJSON, rulesJSON string
		createdAt, updatedAt      string
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Description, &p.QuestionnaireID,
		&recurrenceJSON, &rulesJSON, &p.ReminderTime, &p.IsActive, &createdAt, &updatedAt,
	)
	if err != nil {
		return p, err
	}

	if err := json.Unmarshal([]byte(recurrenceJSON), &p.Recurrence); err != nil {
		return p, fmt.Errorf("failed to decode recurrence of profile %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(rulesJSON), &p.RewardRules); err != nil {
		return p, fmt.Errorf("failed to decode reward rules of profile %s: %w", p.ID, err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func encodeProfile(p checkin.Profile) (string, string, error) {
	recurrenceJSON, err := json.Marshal(p.Recurrence)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode recurrence: %w", err)
	}
	rules := p.RewardRules
	if rules == nil {
		rules = []checkin.RewardRule{}
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode reward rules: %w", err)
	}
	return string(recurrenceJSON), string(rulesJSON), nil
}

// =============================================================================
// QUESTIONNAIRE STORE (checkin.QuestionnaireStore interface)
// =============================================================================

func (s *Store) GetQuestionnaire(ctx context.Context, userID string, id checkin.QuestionnaireID) (*checkin.Questionnaire, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		q                    checkin.Questionnaire
		questionsJSON        string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, questions_json, created_at, updated_at FROM questionnaires WHERE id = ? AND user_id = ?",
		id, userID,
	).Scan(&q.ID, &q.UserID, &q.Title, &questionsJSON, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(questionsJSON), &q.Questions); err != nil {
		return nil, fmt.Errorf("failed to decode questionnaire %s: %w", q.ID, err)
	}
	q.CreatedAt = parseTime(createdAt)
	q.UpdatedAt = parseTime(updatedAt)
	return &q, nil
}

func (s *Store) UpdateQuestionnaire(ctx context.Context, q checkin.Questionnaire) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	questionsJSON, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE questionnaires SET title = ?, questions_json = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		q.Title, string(questionsJSON), formatTime(q.UpdatedAt), q.ID, q.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update questionnaire: %w", err)
	}
	return requireRow(res, checkin.ErrQuestionnaireNotFound)
}

// =============================================================================
// RECORD STORE (checkin.RecordStore interface)
// =============================================================================

const recordColumns = `id, user_id, profile_id, checkin_date, answers_json, score,
	reward_amount, is_remedial, created_at`

func (s *Store) FindRecord(ctx context.Context, userID string, profileID checkin.ProfileID, date calendar.LocalDate) (*checkin.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM checkin_records WHERE user_id = ? AND profile_id = ? AND checkin_date = ?",
		userID, profileID, date.String(),
	)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecordDates returns recorded dates in [from, to], oldest first.
func (s *Store) RecordDates(ctx context.Context, userID string, profileID checkin.ProfileID, from, to calendar.LocalDate) ([]calendar.LocalDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT checkin_date FROM checkin_records
		WHERE user_id = ? AND profile_id = ? AND checkin_date >= ? AND checkin_date <= ?
		ORDER BY checkin_date`,
		userID, profileID, from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query check-in dates: %w", err)
	}
	defer rows.Close()

	var dates []calendar.LocalDate
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := calendar.Parse(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ListRecords returns a page of records, newest date first, and the total.
func (s *Store) ListRecords(ctx context.Context, userID string, f checkin.RecordFilter) ([]checkin.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"user_id = ?"}
	args := []any{userID}
	if f.ProfileID != "" {
		where = append(where, "profile_id = ?")
		args = append(args, f.ProfileID)
	}
	if !f.From.IsZero() {
		where = append(where, "checkin_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "checkin_date <= ?")
		args = append(args, f.To.String())
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM checkin_records WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count check-ins: %w", err)
	}

	query := "SELECT " + recordColumns + " FROM checkin_records WHERE " + cond +
		" ORDER BY checkin_date DESC, created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	} else if f.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query check-ins: %w", err)
	}
	defer rows.Close()

	var records []checkin.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, r)
	}
	return records, total, rows.Err()
}

// SaveCheckin inserts the record and, when non-nil, its vault credit in
// one transaction.
func (s *Store) SaveCheckin(ctx context.Context, r checkin.Record, credit *vault.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	answersJSON, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO checkin_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.ProfileID, r.Date.String(), string(answersJSON),
		r.Score.String(), r.RewardAmount.String(), r.IsRemedial, formatTime(r.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &checkin.DuplicateCheckinError{ProfileID: r.ProfileID, Date: r.Date}
		}
		return fmt.Errorf("failed to insert check-in: %w", err)
	}

	if credit != nil {
		if err := appendVault(ctx, sqlTx, *credit); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func scanRecord(row scanner) (checkin.Record, error) {
	var (
		r                   checkin.Record
		date, answersJSON   string
		score, rewardAmount string
		createdAt           string
	)
	err := row.Scan(
		&r.ID, &r.UserID, &r.ProfileID, &date, &answersJSON,
		&score, &rewardAmount, &r.IsRemedial, &createdAt,
	)
	if err != nil {
		return r, err
	}

	if r.Date, err = calendar.Parse(date); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(answersJSON), &r.Answers); err != nil {
		return r, fmt.Errorf("failed to decode answers of record %s: %w", r.ID, err)
	}
	r.Score = parseDecimal(score)
	r.RewardAmount = parseDecimal(rewardAmount)
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

// =============================================================================
// VAULT STORE (vault.Store interface)
// =============================================================================

const vaultColumns = `id, user_id, tx_type, delta, description, reference_id, idempotency_key, created_at`

func (s *Store) AppendVault(ctx context.Context, tx vault.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendVault(ctx, s.db, tx)
}

func appendVault(ctx context.Context, db querier, tx vault.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO vault_transactions (`+vaultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Type, tx.Delta.String(), tx.Description,
		nullString(tx.ReferenceID), nullString(tx.IdempotencyKey), formatTime(tx.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return vault.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append vault transaction: %w", err)
	}
	return nil
}

func (s *Store) LoadVault(ctx context.Context, userID string) ([]vault.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadVault(ctx, s.db, userID)
}

func loadVault(ctx context.Context, db querier, userID string) ([]vault.Transaction, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+vaultColumns+" FROM vault_transactions WHERE user_id = ? ORDER BY created_at, rowid",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault transactions: %w", err)
	}
	defer rows.Close()

	var txs []vault.Transaction
	for rows.Next() {
		tx, err := scanVaultTx(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *Store) GetVaultTransaction(ctx context.Context, userID string, id vault.TransactionID) (*vault.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getVaultTx(ctx, s.db, userID, id)
}

func getVaultTx(ctx context.Context, db querier, userID string, id vault.TransactionID) (*vault.Transaction, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+vaultColumns+" FROM vault_transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	tx, err := scanVaultTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) VaultKeyExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vaultKeyExists(ctx, s.db, idempotencyKey)
}

func vaultKeyExists(ctx context.Context, db querier, idempotencyKey string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vault_transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func scanVaultTx(row scanner) (vault.Transaction, error) {
	var (
		tx                       vault.Transaction
		delta, createdAt         string
		description, referenceID sql.NullString
		idempotencyKey           sql.NullString
	)
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Type, &delta,
		&description, &referenceID, &idempotencyKey, &createdAt,
	)
	if err != nil {
		return tx, err
	}
	tx.Delta = parseDecimal(delta)
	tx.Description = description.String
	tx.ReferenceID = referenceID.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedAt = parseTime(createdAt)
	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (vault.TxStore interface)
// =============================================================================

// WithVaultTx executes fn within a database transaction.
func (s *Store) WithVaultTx(ctx context.Context, fn func(vault.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore reads and writes through the open transaction. The parent lock
// is already held.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) AppendVault(ctx context.Context, tx vault.Transaction) error {
	return appendVault(ctx, ts.tx, tx)
}

func (ts *txStore) LoadVault(ctx context.Context, userID string) ([]vault.Transaction, error) {
	return loadVault(ctx, ts.tx, userID)
}

func (ts *txStore) GetVaultTransaction(ctx context.Context, userID string, id vault.TransactionID) (*vault.Transaction, error) {
	return getVaultTx(ctx, ts.tx, userID, id)
}

func (ts *txStore) VaultKeyExists(ctx context.Context, idempotencyKey string) (bool, error) {
	return vaultKeyExists(ctx, ts.tx, idempotencyKey)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
