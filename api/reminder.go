/*
reminder.go - Scheduled overdue-dues reminders

PURPOSE:
  Runs a daily cron job that notifies approved members whose current
  month is unpaid once the grace window has elapsed. One reminder per
  (member, period): the notification message embeds the period string
  and the store is checked for it before sending.

DESIGN:
  - cron (robfig/cron) with a configurable schedule, default 09:00 daily
  - Sweep logic lives in Sweep() with an injectable "today" so tests can
    pin the grace boundary without a scheduler
  - Failures are logged and never abort the sweep; a broken member row
    must not starve the rest of the list

SEE ALSO:
  - dues/status.go: Grace window definition
  - store/sqlite: HasNotification idempotency check
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/rangdhanu/fundkeeper/dues"
	"github.com/rangdhanu/fundkeeper/store/sqlite"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reminder sends overdue-dues notifications on a schedule.
type Reminder struct {
	Store *sqlite.Store
	Log   *logrus.Logger

	// Now is injectable for grace-boundary tests.
	Now func() time.Time

	cron *cron.Cron
}

// NewReminder creates a reminder job bound to the store.
func NewReminder(store *sqlite.Store, log *logrus.Logger) *Reminder {
	return &Reminder{
		Store: store,
		Log:   log,
		Now:   time.Now,
	}
}

// Start schedules the daily sweep. The schedule is standard cron syntax.
func (rm *Reminder) Start(schedule string) error {
	rm.cron = cron.New()
	_, err := rm.cron.AddFunc(schedule, func() {
		if err := rm.Sweep(context.Background()); err != nil {
			rm.Log.WithError(err).Error("reminder sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	rm.cron.Start()
	rm.Log.WithField("schedule", schedule).Info("reminder scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (rm *Reminder) Stop() {
	if rm.cron != nil {
		<-rm.cron.Stop().Done()
	}
}

// Sweep notifies every approved member whose current month is unpaid,
// once per (member, period). Runs are idempotent; re-running the same
// day sends nothing new.
func (rm *Reminder) Sweep(ctx context.Context) error {
	today := rm.Now()
	if today.Day() <= dues.GraceDays {
		return nil // still inside the grace window
	}
	period := dues.PeriodOf(today)

	cfg, err := rm.Store.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.IsActive(period) {
		return nil // current month is not being collected
	}

	members, err := rm.Store.ListMembers(ctx, sqlite.MemberApproved)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	sent := 0
	for _, m := range members {
		memberID := dues.MemberID(m.ID)

		existing, err := rm.Store.FindMonthlyPayment(ctx, memberID, period)
		if err != nil {
			rm.Log.WithError(err).WithField("member_id", m.ID).Warn("reminder payment lookup failed")
			continue
		}
		if existing != nil {
			continue
		}

		already, err := rm.Store.HasNotification(ctx, m.ID, dues.NotifyDuesOverdue, period.String())
		if err != nil {
			rm.Log.WithError(err).WithField("member_id", m.ID).Warn("reminder dedup check failed")
			continue
		}
		if already {
			continue
		}

		message := fmt.Sprintf("Your dues for %s (%s) are overdue.", period.Label(), period)
		if err := rm.Store.Notify(ctx, memberID, dues.NotifyDuesOverdue, message); err != nil {
			rm.Log.WithError(err).WithField("member_id", m.ID).Warn("reminder delivery failed")
			continue
		}
		sent++
	}

	if sent > 0 {
		rm.Log.WithFields(logrus.Fields{"period": period.String(), "sent": sent}).
			Info("overdue reminders sent")
	}
	return nil
}
