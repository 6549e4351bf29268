/*
scheduler.go - Check-in reminder scheduler

PURPOSE:
  Periodically looks for active profiles that are due today, not yet
  checked in, and whose reminder time has passed, and hands each one to a
  Notifier.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Asks checkin.Service.PendingReminders for due profiles
  - Remembers (profile, date) pairs already sent so each reminder fires
    once per day per process
  - Forgets pairs from previous days on each pass

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReminderScheduler(svc, LogNotifier{Logger: logger}, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - checkin/stats.go: PendingReminders
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/habit-vault/calendar"
	"github.com/warp/habit-vault/checkin"
	"go.uber.org/zap"
)

// Notifier delivers a reminder. Implementations must be safe to call from
// the scheduler goroutine.
type Notifier interface {
	Notify(ctx context.Context, reminder checkin.Reminder) error
}

// LogNotifier writes reminders to the log. It is the default delivery
// channel until a push integration exists.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, rem checkin.Reminder) error {
	n.Logger.Info("check-in reminder",
		zap.String("user_id", rem.Profile.UserID),
		zap.String("profile_id", string(rem.Profile.ID)),
		zap.String("title", rem.Profile.Title),
		zap.Stringer("date", rem.Date),
	)
	return nil
}

type reminderKey struct {
	profileID checkin.ProfileID
	date      calendar.LocalDate
}

// ReminderScheduler sends check-in reminders.
type ReminderScheduler struct {
	Service       *checkin.Service
	Notifier      Notifier
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	sentMu sync.Mutex
	sent   map[reminderKey]struct{}

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReminderScheduler creates a new scheduler.
func NewReminderScheduler(svc *checkin.Service, notifier Notifier, logger *zap.Logger) *ReminderScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderScheduler{
		Service:       svc,
		Notifier:      notifier,
		Logger:        logger.Named("scheduler"),
		CheckInterval: time.Minute,
		Enabled:       true,
		sent:          make(map[reminderKey]struct{}),
	}
}

// Start begins the scheduler.
func (rs *ReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.stop = make(chan bool)
	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	rs.Logger.Info("started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight pass to finish.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("stopped")
	}
}

func (rs *ReminderScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.CheckOnce(context.Background())

	for {
		select {
		case <-rs.ticker.C:
			rs.CheckOnce(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// CheckOnce runs a single reminder pass and returns how many reminders
// were delivered.
func (rs *ReminderScheduler) CheckOnce(ctx context.Context) int {
	reminders, err := rs.Service.PendingReminders(ctx)
	if err != nil {
		rs.Logger.Error("failed to load pending reminders", zap.Error(err))
		return 0
	}

	rs.sentMu.Lock()
	defer rs.sentMu.Unlock()

	today := rs.Service.Today()
	for k := range rs.sent {
		if k.date.Before(today) {
			delete(rs.sent, k)
		}
	}

	delivered := 0
	for _, rem := range reminders {
		key := reminderKey{profileID: rem.Profile.ID, date: rem.Date}
		if _, done := rs.sent[key]; done {
			continue
		}
		if err := rs.Notifier.Notify(ctx, rem); err != nil {
			rs.Logger.Warn("failed to deliver reminder",
				zap.String("profile_id", string(rem.Profile.ID)),
				zap.Error(err),
			)
			continue
		}
		rs.sent[key] = struct{}{}
		delivered++
	}

	if delivered > 0 {
		rs.Logger.Info("reminders delivered", zap.Int("count", delivered))
	}
	return delivered
}
