// Package memory provides an in-memory implementation of the check-in and
// vault stores (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/habit-vault/calendar"
	"github.com/warp/habit-vault/checkin"
	"github.com/warp/habit-vault/vault"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu             sync.RWMutex
	profiles       map[checkin.ProfileID]checkin.Profile
	questionnaires map[checkin.QuestionnaireID]checkin.Questionnaire
	records        map[checkin.RecordID]checkin.Record
	days           map[dayKey]checkin.RecordID
	vault          map[string][]vault.Transaction
	idempotency    map[string]bool
}

// dayKey enforces one record per (profile, date).
type dayKey struct {
	ProfileID checkin.ProfileID
	Date      calendar.LocalDate
}

func New() *Memory {
	return &Memory{
		profiles:       make(map[checkin.ProfileID]checkin.Profile),
		questionnaires: make(map[checkin.QuestionnaireID]checkin.Questionnaire),
		records:        make(map[checkin.RecordID]checkin.Record),
		days:           make(map[dayKey]checkin.RecordID),
		vault:          make(map[string][]vault.Transaction),
		idempotency:    make(map[string]bool),
	}
}

var (
	_ checkin.Store = (*Memory)(nil)
	_ vault.TxStore = (*Memory)(nil)
)

// =============================================================================
// PROFILES
// =============================================================================

func (m *Memory) CreateProfile(_ context.Context, p checkin.Profile, q checkin.Questionnaire) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questionnaires[q.ID] = q
	m.profiles[p.ID] = p
	return nil
}

func (m *Memory) GetProfile(_ context.Context, userID string, id checkin.ProfileID) (*checkin.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListProfiles(_ context.Context, userID string) ([]checkin.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []checkin.Profile
	for _, p := range m.profiles {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	sortProfiles(result)
	return result, nil
}

func (m *Memory) ListActiveProfiles(_ context.Context) ([]checkin.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []checkin.Profile
	for _, p := range m.profiles {
		if p.IsActive {
			result = append(result, p)
		}
	}
	sortProfiles(result)
	return result, nil
}

func sortProfiles(ps []checkin.Profile) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}

func (m *Memory) UpdateProfile(_ context.Context, p checkin.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.profiles[p.ID]
	if !ok || existing.UserID != p.UserID {
		return checkin.ErrProfileNotFound
	}
	m.profiles[p.ID] = p
	return nil
}

// DeleteProfile cascades to records and the questionnaire.
func (m *Memory) DeleteProfile(_ context.Context, userID string, id checkin.ProfileID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok || p.UserID != userID {
		return checkin.ErrProfileNotFound
	}
	for rid, r := range m.records {
		if r.ProfileID == id {
			delete(m.records, rid)
			delete(m.days, dayKey{ProfileID: id, Date: r.Date})
		}
	}
	delete(m.questionnaires, p.QuestionnaireID)
	delete(m.profiles, id)
	return nil
}

// =============================================================================
// QUESTIONNAIRES
// =============================================================================

func (m *Memory) GetQuestionnaire(_ context.Context, userID string, id checkin.QuestionnaireID) (*checkin.Questionnaire, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questionnaires[id]
	if !ok || q.UserID != userID {
		return nil, nil
	}
	return &q, nil
}

func (m *Memory) UpdateQuestionnaire(_ context.Context, q checkin.Questionnaire) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.questionnaires[q.ID]
	if !ok || existing.UserID != q.UserID {
		return checkin.ErrQuestionnaireNotFound
	}
	m.questionnaires[q.ID] = q
	return nil
}

// =============================================================================
// RECORDS
// =============================================================================

func (m *Memory) FindRecord(_ context.Context, userID string, profileID checkin.ProfileID, date calendar.LocalDate) (*checkin.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.days[dayKey{ProfileID: profileID, Date: date}]
	if !ok {
		return nil, nil
	}
	r := m.records[id]
	if r.UserID != userID {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) RecordDates(_ context.Context, userID string, profileID checkin.ProfileID, from, to calendar.LocalDate) ([]calendar.LocalDate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var dates []calendar.LocalDate
	for _, r := range m.records {
		if r.UserID != userID || r.ProfileID != profileID {
			continue
		}
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		dates = append(dates, r.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (m *Memory) ListRecords(_ context.Context, userID string, f checkin.RecordFilter) ([]checkin.Record, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []checkin.Record
	for _, r := range m.records {
		if r.UserID != userID {
			continue
		}
		if f.ProfileID != "" && r.ProfileID != f.ProfileID {
			continue
		}
		if !f.From.IsZero() && r.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && r.Date.After(f.To) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Date == matched[j].Date {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Date.After(matched[j].Date)
	})

	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

// SaveCheckin writes the record and its credit under one lock. Nothing is
// written when the day is taken or the credit's key was already used.
func (m *Memory) SaveCheckin(_ context.Context, r checkin.Record, credit *vault.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := dayKey{ProfileID: r.ProfileID, Date: r.Date}
	if _, taken := m.days[k]; taken {
		return &checkin.DuplicateCheckinError{ProfileID: r.ProfileID, Date: r.Date}
	}
	if credit != nil && credit.IdempotencyKey != "" && m.idempotency[credit.IdempotencyKey] {
		return vault.ErrDuplicateIdempotencyKey
	}

	m.records[r.ID] = r
	m.days[k] = r.ID
	if credit != nil {
		m.appendLocked(*credit)
	}
	return nil
}

// =============================================================================
// VAULT
// =============================================================================

func (m *Memory) AppendVault(_ context.Context, tx vault.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return vault.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(tx)
	return nil
}

func (m *Memory) appendLocked(tx vault.Transaction) {
	m.vault[tx.UserID] = append(m.vault[tx.UserID], tx)
	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
}

func (m *Memory) LoadVault(_ context.Context, userID string) ([]vault.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]vault.Transaction, len(m.vault[userID]))
	copy(result, m.vault[userID])
	return result, nil
}

func (m *Memory) GetVaultTransaction(_ context.Context, userID string, id vault.TransactionID) (*vault.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findTx(m.vault[userID], id), nil
}

func findTx(txs []vault.Transaction, id vault.TransactionID) *vault.Transaction {
	for _, tx := range txs {
		if tx.ID == id {
			return &tx
		}
	}
	return nil
}

func (m *Memory) VaultKeyExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithVaultTx executes fn within a transaction, simulated with a snapshot
// and a rollback on error.
func (m *Memory) WithVaultTx(_ context.Context, fn func(vault.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type vaultSnapshot struct {
	vault       map[string][]vault.Transaction
	idempotency map[string]bool
}

func (m *Memory) snapshot() vaultSnapshot {
	txs := make(map[string][]vault.Transaction, len(m.vault))
	for k, v := range m.vault {
		txs[k] = append([]vault.Transaction{}, v...)
	}
	keys := make(map[string]bool, len(m.idempotency))
	for k, v := range m.idempotency {
		keys[k] = v
	}
	return vaultSnapshot{vault: txs, idempotency: keys}
}

func (m *Memory) restore(s vaultSnapshot) {
	m.vault = s.vault
	m.idempotency = s.idempotency
}

// txView is the Store handed to WithVaultTx callbacks. The parent lock is
// already held.
type txView struct {
	parent *Memory
}

func (tv *txView) AppendVault(_ context.Context, tx vault.Transaction) error {
	if tx.IdempotencyKey != "" && tv.parent.idempotency[tx.IdempotencyKey] {
		return vault.ErrDuplicateIdempotencyKey
	}
	tv.parent.appendLocked(tx)
	return nil
}

func (tv *txView) LoadVault(_ context.Context, userID string) ([]vault.Transaction, error) {
	return append([]vault.Transaction{}, tv.parent.vault[userID]...), nil
}

func (tv *txView) GetVaultTransaction(_ context.Context, userID string, id vault.TransactionID) (*vault.Transaction, error) {
	return findTx(tv.parent.vault[userID], id), nil
}

func (tv *txView) VaultKeyExists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}
