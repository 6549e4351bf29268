package api

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/habit-vault/checkin"
	"go.uber.org/zap/zaptest"
)

type recordingNotifier struct {
	mu   sync.Mutex
	got  []checkin.Reminder
	fail bool
}

func (n *recordingNotifier) Notify(_ context.Context, rem checkin.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("push gateway down")
	}
	n.got = append(n.got, rem)
	return nil
}

func reminderProfile(t *testing.T, ts *testServer, userID, at string) checkin.ProfileID {
	body := moodProfileRequest(RecurrenceDTO{Type: "daily"})
	body["reminder_time"] = at
	rec := ts.do("POST", "/api/profiles", userID, body)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	return checkin.ProfileID(decodeBody[ProfileDetailResponse](t, rec).Profile.ID)
}

func TestReminderScheduler_SendsOncePerDay(t *testing.T) {
	// GIVEN: A profile reminding at 09:00, now 10:00, not checked in
	ts := newTestServer(t)
	id := reminderProfile(t, ts, "user-1", "09:00")
	reminderProfile(t, ts, "user-1", "18:00")

	notifier := &recordingNotifier{}
	rs := NewReminderScheduler(ts.service, notifier, zaptest.NewLogger(t))

	// WHEN: Two passes run
	first := rs.CheckOnce(context.Background())
	second := rs.CheckOnce(context.Background())

	// THEN: Only the 09:00 profile is reminded, and only once
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	require.Len(t, notifier.got, 1)
	assert.Equal(t, id, notifier.got[0].Profile.ID)
	assert.Equal(t, "2025-03-14", notifier.got[0].Date.String())
}

func TestReminderScheduler_SkipsCompletedProfiles(t *testing.T) {
	ts := newTestServer(t)
	id := reminderProfile(t, ts, "user-1", "09:00")
	require.Equal(t, 201, ts.do("POST", "/api/profiles/"+string(id)+"/checkins", "user-1", great).Code)

	notifier := &recordingNotifier{}
	rs := NewReminderScheduler(ts.service, notifier, zaptest.NewLogger(t))

	assert.Equal(t, 0, rs.CheckOnce(context.Background()))
	assert.Empty(t, notifier.got)
}

func TestReminderScheduler_RetriesFailedDelivery(t *testing.T) {
	ts := newTestServer(t)
	reminderProfile(t, ts, "user-1", "09:00")

	notifier := &recordingNotifier{fail: true}
	rs := NewReminderScheduler(ts.service, notifier, zaptest.NewLogger(t))
	assert.Equal(t, 0, rs.CheckOnce(context.Background()))

	notifier.fail = false
	assert.Equal(t, 1, rs.CheckOnce(context.Background()))
}

func TestReminderScheduler_StartStop(t *testing.T) {
	ts := newTestServer(t)
	rs := NewReminderScheduler(ts.service, &recordingNotifier{}, zaptest.NewLogger(t))

	rs.Start()
	rs.Stop()
	rs.Stop()

	rs.Enabled = false
	rs.Start()
	rs.Stop()
}
