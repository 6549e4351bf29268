/*
handlers_test.go - HTTP tests for the check-in API

Tests for:
- Authentication (missing, forged, valid tokens)
- Profile creation and request validation
- Check-in submission status codes (201/409/422/404/400)
- Remedial check-ins and missing dates
- Record history paging
- Vault balance and withdrawals
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/habit-vault/checkin"
	"github.com/warp/habit-vault/store/memory"
	"github.com/warp/habit-vault/vault"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testSecret = "test-secret"

// Friday 2025-03-14, 10:00 UTC.
var fridayMorning = time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	router  http.Handler
	auth    *Authenticator
	service *checkin.Service
	store   *memory.Memory
}

func newTestServer(t *testing.T) *testServer {
	logger := zaptest.NewLogger(t)
	store := memory.New()

	svc := checkin.NewService(store, logger)
	svc.Location = time.UTC
	svc.Now = func() time.Time { return fridayMorning }

	auth := NewAuthenticator(testSecret, "habit-vault")
	h := NewHandler(svc, vault.NewLedger(store), nil, logger)

	return &testServer{
		t:       t,
		router:  NewRouter(h, RouterOptions{Auth: auth}),
		auth:    auth,
		service: svc,
		store:   store,
	}
}

func (ts *testServer) token(userID string) string {
	tok, err := ts.auth.Issue(userID, time.Hour)
	require.NoError(ts.t, err)
	return tok
}

// do sends body as JSON with userID's token. An empty userID sends no
// Authorization header.
func (ts *testServer) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token(userID))
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func moodProfileRequest(recurrence RecurrenceDTO) map[string]any {
	return map[string]any{
		"title": "Mood",
		"questions": []map[string]any{{
			"id":       "q1",
			"type":     "single_choice",
			"title":    "How do you feel?",
			"required": true,
			"options": []map[string]any{
				{"id": "o1", "text": "Great", "score": 10},
				{"id": "o2", "text": "Bad", "score": 0},
			},
		}},
		"recurrence": recurrence,
		"reward_rules": []map[string]any{
			{"threshold": 5, "amount": 3},
			{"threshold": 10, "amount": 8},
		},
	}
}

func (ts *testServer) createProfile(userID string, recurrence RecurrenceDTO) ProfileDetailResponse {
	rec := ts.do(http.MethodPost, "/api/profiles", userID, moodProfileRequest(recurrence))
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[ProfileDetailResponse](ts.t, rec)
}

var great = map[string]any{"answers": map[string]any{"q1": "o1"}}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth_MissingToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/profiles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ForgedToken(t *testing.T) {
	ts := newTestServer(t)
	forged, err := NewAuthenticator("other-secret", "habit-vault").Issue("user-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ExpiredToken(t *testing.T) {
	ts := newTestServer(t)
	expired, err := ts.auth.Issue("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = ts.auth.Verify(expired)
	assert.Error(t, err)
}

func TestHealthz_IsPublic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// PROFILES
// =============================================================================

func TestCreateProfile_ReturnsQuestionnaireWithMaxScore(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})

	assert.NotEmpty(t, created.Profile.ID)
	assert.True(t, created.Profile.IsActive)
	assert.Equal(t, "10", created.Questionnaire.MaxScore)
	require.Len(t, created.Profile.RewardRules, 2)

	rec := ts.do(http.MethodGet, "/api/profiles", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ProfileDTO](t, rec), 1)

	rec = ts.do(http.MethodGet, "/api/profiles", "user-2", nil)
	assert.Empty(t, decodeBody[[]ProfileDTO](t, rec))
}

func TestCreateProfile_TagValidation(t *testing.T) {
	// GIVEN: A body without questions and with an unknown recurrence type
	ts := newTestServer(t)
	body := map[string]any{
		"title":      "Mood",
		"recurrence": map[string]any{"type": "hourly"},
	}

	rec := ts.do(http.MethodPost, "/api/profiles", "user-1", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	fields := map[string]bool{}
	for _, p := range resp.Problems {
		fields[p.Field] = true
	}
	assert.True(t, fields["questions"])
	assert.True(t, fields["recurrence.type"])
}

func TestCreateProfile_DomainValidation(t *testing.T) {
	// GIVEN: A reward threshold above 100
	ts := newTestServer(t)
	body := moodProfileRequest(RecurrenceDTO{Type: "daily"})
	body["reward_rules"] = []map[string]any{{"threshold": 120, "amount": 1}}

	rec := ts.do(http.MethodPost, "/api/profiles", "user-1", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	require.NotEmpty(t, resp.Problems)
	assert.Equal(t, "reward_rules[0]", resp.Problems[0].Field)
}

func TestUpdateProfile_Deactivate(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})

	rec := ts.do(http.MethodPut, "/api/profiles/"+created.Profile.ID, "user-1", map[string]any{"is_active": false})

	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[ProfileDTO](t, rec)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Mood", updated.Title)
}

func TestDeleteProfile_OtherUserGets404(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})

	rec := ts.do(http.MethodDelete, "/api/profiles/"+created.Profile.ID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/profiles/"+created.Profile.ID, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, "/api/profiles/"+created.Profile.ID, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CHECK-INS
// =============================================================================

func TestSubmitCheckin_CreditsVault(t *testing.T) {
	// GIVEN: A daily profile
	// WHEN: Submitting the top answer
	// THEN: 201 with score 10 and reward 8, vault balance 8

	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})

	rec := ts.do(http.MethodPost, "/api/profiles/"+created.Profile.ID+"/checkins", "user-1", great)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	record := decodeBody[RecordDTO](t, rec)
	assert.Equal(t, "2025-03-14", record.Date.String())
	assert.Equal(t, "10", record.Score)
	assert.Equal(t, "8", record.RewardAmount)

	rec = ts.do(http.MethodGet, "/api/vault", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "8", decodeBody[VaultSummaryDTO](t, rec).Balance)
}

func TestSubmitCheckin_DuplicateIsConflict(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})
	path := "/api/profiles/" + created.Profile.ID + "/checkins"

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, path, "user-1", great).Code)

	rec := ts.do(http.MethodPost, path, "user-1", great)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_CHECKED_IN", decodeBody[ErrorResponse](t, rec).Code)
}

func TestSubmitCheckin_NotDueToday(t *testing.T) {
	// GIVEN: A Monday-only profile on a Friday
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "weekly", WeeklyDays: []int{1}})

	rec := ts.do(http.MethodPost, "/api/profiles/"+created.Profile.ID+"/checkins", "user-1", great)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_CHECKIN_DATE", decodeBody[ErrorResponse](t, rec).Code)
}

func TestSubmitCheckin_UnknownOption(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})
	body := map[string]any{"answers": map[string]any{"q1": "o9"}}

	rec := ts.do(http.MethodPost, "/api/profiles/"+created.Profile.ID+"/checkins", "user-1", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	require.Len(t, resp.Problems, 1)
	assert.Equal(t, "q1", resp.Problems[0].Field)
}

func TestSubmitCheckin_MalformedBody(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})

	req := httptest.NewRequest(http.MethodPost, "/api/profiles/"+created.Profile.ID+"/checkins", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+ts.token("user-1"))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRemedialCheckin_HalfRewardAndMissingDates(t *testing.T) {
	// GIVEN: A daily profile with nothing recorded
	// WHEN: Listing missing dates, then making up Wednesday
	// THEN: Wed/Thu are missing, then only Thu; the make-up pays 4

	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})
	base := "/api/profiles/" + created.Profile.ID

	rec := ts.do(http.MethodGet, base+"/missing?window=2", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	missing := decodeBody[MissingDatesResponse](t, rec)
	require.Len(t, missing.Dates, 2)
	assert.Equal(t, "2025-03-12", missing.Dates[0].String())
	assert.Equal(t, "2025-03-13", missing.Dates[1].String())

	body := map[string]any{"date": "2025-03-12", "answers": map[string]any{"q1": "o1"}}
	rec = ts.do(http.MethodPost, base+"/checkins/remedial", "user-1", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	record := decodeBody[RecordDTO](t, rec)
	assert.True(t, record.IsRemedial)
	assert.Equal(t, "4", record.RewardAmount)

	rec = ts.do(http.MethodGet, base+"/missing?window=2", "user-1", nil)
	missing = decodeBody[MissingDatesResponse](t, rec)
	require.Len(t, missing.Dates, 1)
	assert.Equal(t, "2025-03-13", missing.Dates[0].String())
}

func TestSubmitRemedialCheckin_OutsideWindow(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})
	body := map[string]any{"date": "2025-03-10", "answers": map[string]any{"q1": "o1"}}

	rec := ts.do(http.MethodPost, "/api/profiles/"+created.Profile.ID+"/checkins/remedial", "user-1", body)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitRemedialCheckin_BadDateFormat(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})
	body := map[string]any{"date": "12/03/2025", "answers": map[string]any{"q1": "o1"}}

	rec := ts.do(http.MethodPost, "/api/profiles/"+created.Profile.ID+"/checkins/remedial", "user-1", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	require.Len(t, resp.Problems, 1)
	assert.Equal(t, "date", resp.Problems[0].Field)
}

func TestGetMissingDates_WindowOutOfRange(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})

	rec := ts.do(http.MethodGet, "/api/profiles/"+created.Profile.ID+"/missing?window=7", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreakStatsAndToday(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})
	base := "/api/profiles/" + created.Profile.ID

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, base+"/checkins", "user-1", great).Code)
	remedial := map[string]any{"date": "2025-03-13", "answers": map[string]any{"q1": "o1"}}
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, base+"/checkins/remedial", "user-1", remedial).Code)

	rec := ts.do(http.MethodGet, base+"/streak", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[StreakResponse](t, rec).Streak)

	rec = ts.do(http.MethodGet, base+"/stats", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[StatsDTO](t, rec)
	assert.Equal(t, 2, stats.TotalRecords)
	assert.Equal(t, 1, stats.RemedialRecords)
	assert.Equal(t, "12", stats.TotalRewards)
	require.NotNil(t, stats.LastCheckin)
	assert.Equal(t, "2025-03-14", stats.LastCheckin.String())

	rec = ts.do(http.MethodGet, "/api/today", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	today := decodeBody[TodayResponse](t, rec)
	require.Len(t, today.Items, 1)
	assert.True(t, today.Items[0].Completed)
	require.NotNil(t, today.Items[0].Record)
}

func TestListRecords_Paging(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})
	base := "/api/profiles/" + created.Profile.ID

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, base+"/checkins", "user-1", great).Code)
	for _, day := range []string{"2025-03-12", "2025-03-13"} {
		body := map[string]any{"date": day, "answers": map[string]any{"q1": "o2"}}
		require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, base+"/checkins/remedial", "user-1", body).Code)
	}

	rec := ts.do(http.MethodGet, "/api/checkins?limit=2&offset=1", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[RecordPageResponse](t, rec)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "2025-03-13", page.Records[0].Date.String())
	assert.Equal(t, "2025-03-12", page.Records[1].Date.String())

	rec = ts.do(http.MethodGet, "/api/checkins?from=2025-03-14&to=2025-03-12", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/checkins?from=yesterday", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// VAULT
// =============================================================================

func TestWithdraw(t *testing.T) {
	// GIVEN: A vault holding 8
	ts := newTestServer(t)
	created := ts.createProfile("user-1", RecurrenceDTO{Type: "daily"})
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/profiles/"+created.Profile.ID+"/checkins", "user-1", great).Code)

	// WHEN: Withdrawing more than the balance
	rec := ts.do(http.MethodPost, "/api/vault/withdrawals", "user-1", map[string]any{"amount": "10", "description": "Cinema"})

	// THEN: 422 with the shortfall
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "INSUFFICIENT_BALANCE", resp.Code)
	assert.Contains(t, resp.Details, "2")

	rec = ts.do(http.MethodPost, "/api/vault/withdrawals", "user-1", map[string]any{"amount": "5.5", "description": "Coffee"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "-5.5", decodeBody[TransactionDTO](t, rec).Delta)

	rec = ts.do(http.MethodGet, "/api/vault/transactions", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]TransactionDTO](t, rec), 2)

	rec = ts.do(http.MethodGet, "/api/vault", "user-1", nil)
	assert.Equal(t, "2.5", decodeBody[VaultSummaryDTO](t, rec).Balance)
}

func TestWithdraw_InvalidAmount(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/vault/withdrawals", "user-1", map[string]any{"amount": "0", "description": "Nothing"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "amount", decodeBody[ErrorResponse](t, rec).Problems[0].Field)
}
