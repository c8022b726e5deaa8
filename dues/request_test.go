/*
request_test.go - Donation request approval and rejection

Covers the pending-only guard, monthly approval through the allocation
engine, one-time approval, and the fire-and-forget notification policy.
*/
package dues_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangdhanu/fundkeeper/dues"
	"github.com/rangdhanu/fundkeeper/dues/store"
)

func newApprovalService(mem *store.Memory) *dues.ApprovalService {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &dues.ApprovalService{Payments: mem, Notifier: mem, Log: log}
}

func TestApprove_MonthlyRequest(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newApprovalService(mem)

	req := dues.NewDonationRequest("m1", dues.KindMonthly, dec("600"), 2024,
		[]time.Month{time.January, time.February}, nil, "bank transfer ref 123")

	result, err := svc.Approve(ctx, allYearConfig(2024), req, "admin", day2024(time.March, 5))
	require.NoError(t, err)
	require.Len(t, result.Applied, 2)

	// Payments landed through the allocation engine.
	jan, _ := mem.FindMonthlyPayment(ctx, "m1", dues.NewPeriod(2024, time.January))
	require.NotNil(t, jan)
	assert.True(t, jan.Amount.Equal(dec("300")))

	// Request mutated to approved; persisting is the caller's job.
	assert.Equal(t, dues.RequestApproved, req.Status)
	assert.Equal(t, "admin", req.DecidedBy)
	require.NotNil(t, req.DecidedAt)

	// Member was notified.
	require.Len(t, mem.Notifications, 1)
	assert.Equal(t, dues.NotifyRequestApproved, mem.Notifications[0].Kind)
}

func TestApprove_OneTimeRequest(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newApprovalService(mem)

	req := dues.NewDonationRequest("m1", dues.KindOneTime, dec("5000"), 0, nil, nil, "zakat")

	result, err := svc.Approve(ctx, allYearConfig(2024), req, "admin", day2024(time.March, 5))
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	assert.True(t, result.Applied[0].Created)

	payments, _ := mem.ListPayments(ctx, dues.PaymentFilter{})
	require.Len(t, payments, 1)
	assert.Equal(t, dues.KindOneTime, payments[0].Kind)
	assert.True(t, payments[0].Amount.Equal(dec("5000")))
	assert.False(t, payments[0].Period.Valid(), "one-time payments carry no period")
}

func TestApprove_OnlyPendingRequests(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newApprovalService(mem)

	req := dues.NewDonationRequest("m1", dues.KindOneTime, dec("100"), 0, nil, nil, "")
	req.Status = dues.RequestRejected

	_, err := svc.Approve(ctx, allYearConfig(2024), req, "admin", day2024(time.March, 5))
	assert.ErrorIs(t, err, dues.ErrRequestNotPending)

	payments, _ := mem.ListPayments(ctx, dues.PaymentFilter{})
	assert.Empty(t, payments, "decided requests never write payments")
}

func TestApprove_InvalidAllocationLeavesRequestPending(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newApprovalService(mem)

	// Manual amounts exceed the declared total: the validation gate fires
	// before any write and the request stays pending for correction.
	req := dues.NewDonationRequest("m1", dues.KindMonthly, dec("100"), 2024,
		[]time.Month{time.January, time.February},
		map[time.Month]decimal.Decimal{
			time.January:  dec("80"),
			time.February: dec("80"),
		}, "")

	_, err := svc.Approve(ctx, allYearConfig(2024), req, "admin", day2024(time.March, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, dues.ErrAllocationExceedsTotal)
	assert.Equal(t, dues.RequestPending, req.Status)

	payments, _ := mem.ListPayments(ctx, dues.PaymentFilter{})
	assert.Empty(t, payments)
	assert.Empty(t, mem.Notifications)
}

func TestApprove_UnknownKindIsRejected(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newApprovalService(mem)

	// A corrupt stored kind must not be converted into a donation.
	req := dues.NewDonationRequest("m1", dues.PaymentKind("weekly"), dec("100"), 0, nil, nil, "")

	_, err := svc.Approve(ctx, allYearConfig(2024), req, "admin", day2024(time.March, 5))
	require.Error(t, err)
	assert.Equal(t, dues.RequestPending, req.Status)

	payments, _ := mem.ListPayments(ctx, dues.PaymentFilter{})
	assert.Empty(t, payments)
	assert.Empty(t, mem.Notifications)
}

func TestReject_RecordsReasonAndNotifies(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newApprovalService(mem)

	req := dues.NewDonationRequest("m1", dues.KindOneTime, dec("100"), 0, nil, nil, "")

	require.NoError(t, svc.Reject(ctx, req, "admin", "no matching bank record"))
	assert.Equal(t, dues.RequestRejected, req.Status)
	assert.Equal(t, "no matching bank record", req.RejectReason)

	payments, _ := mem.ListPayments(ctx, dues.PaymentFilter{})
	assert.Empty(t, payments, "rejection touches no payments")

	require.Len(t, mem.Notifications, 1)
	assert.Equal(t, dues.NotifyRequestRejected, mem.Notifications[0].Kind)
}

func TestApprove_NotificationFailureDoesNotFailApproval(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	svc := &dues.ApprovalService{
		Payments: mem,
		Notifier: failingNotifier{},
		Log:      log,
	}

	req := dues.NewDonationRequest("m1", dues.KindOneTime, dec("100"), 0, nil, nil, "")

	_, err := svc.Approve(ctx, allYearConfig(2024), req, "admin", day2024(time.March, 5))
	require.NoError(t, err, "notification failures are logged, never propagated")
	assert.Equal(t, dues.RequestApproved, req.Status)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, dues.MemberID, string, string) error {
	return errors.New("smtp down")
}

func day2024(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 12, 0, 0, 0, time.UTC)
}
