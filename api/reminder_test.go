/*
reminder_test.go - Overdue reminder sweep

Covers the grace window, per-period idempotency, and the paid-member
and inactive-period skips.
*/
package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rangdhanu/fundkeeper/dues"
	"github.com/rangdhanu/fundkeeper/store/sqlite"
)

func newTestReminder(t *testing.T, today time.Time) (*Reminder, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	if _, err := store.SaveConfig(context.Background(), dues.DefaultConfig(today.Year()), "test"); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	rm := NewReminder(store, log)
	rm.Now = func() time.Time { return today }
	return rm, store
}

func seedApproved(t *testing.T, store *sqlite.Store, id, name string) {
	t.Helper()
	if err := store.SaveMember(context.Background(), sqlite.Member{
		ID: id, Name: name, Role: "member", Status: sqlite.MemberApproved,
	}); err != nil {
		t.Fatalf("Failed to seed member: %v", err)
	}
}

func unreadCount(t *testing.T, store *sqlite.Store, memberID string) int {
	t.Helper()
	notifications, err := store.ListNotifications(context.Background(), memberID, true)
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	return len(notifications)
}

func TestSweep_InsideGraceWindowSendsNothing(t *testing.T) {
	// GIVEN: An unpaid member on the last day of the grace window
	rm, store := newTestReminder(t, time.Date(2024, time.March, dues.GraceDays, 9, 0, 0, 0, time.UTC))
	seedApproved(t, store, "m1", "Asha")

	// WHEN: Sweeping
	if err := rm.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	// THEN: No reminders yet
	if got := unreadCount(t, store, "m1"); got != 0 {
		t.Errorf("expected 0 notifications inside grace, got %d", got)
	}
}

func TestSweep_AfterGraceNotifiesUnpaidOnce(t *testing.T) {
	// GIVEN: Day 11, one unpaid and one paid member
	rm, store := newTestReminder(t, time.Date(2024, time.March, dues.GraceDays+1, 9, 0, 0, 0, time.UTC))
	seedApproved(t, store, "m1", "Asha")
	seedApproved(t, store, "m2", "Bilal")

	ctx := context.Background()
	err := store.CreatePayment(ctx, dues.Payment{
		ID:       "p1",
		MemberID: "m2",
		Kind:     dues.KindMonthly,
		Amount:   decimal.RequireFromString("100"),
		Period:   dues.NewPeriod(2024, time.March),
		PaidAt:   rm.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to create payment: %v", err)
	}

	// WHEN: Sweeping twice on the same day
	if err := rm.Sweep(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if err := rm.Sweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	// THEN: The unpaid member got exactly one reminder, the paid one none
	if got := unreadCount(t, store, "m1"); got != 1 {
		t.Errorf("m1: expected 1 notification, got %d", got)
	}
	if got := unreadCount(t, store, "m2"); got != 0 {
		t.Errorf("m2: expected 0 notifications, got %d", got)
	}
}

func TestSweep_InactivePeriodSendsNothing(t *testing.T) {
	// GIVEN: The current month is outside the collection configuration
	today := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	rm, store := newTestReminder(t, today)
	seedApproved(t, store, "m1", "Asha")

	cfg := dues.CollectionConfig{
		ActiveYears:        []int{2024},
		ActiveMonthsByYear: map[int][]time.Month{2024: {time.June, time.July}},
	}
	if _, err := store.SaveConfig(context.Background(), cfg, "test"); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	// WHEN: Sweeping
	if err := rm.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	// THEN: Nothing is sent for an inactive period
	if got := unreadCount(t, store, "m1"); got != 0 {
		t.Errorf("expected 0 notifications for inactive period, got %d", got)
	}
}
