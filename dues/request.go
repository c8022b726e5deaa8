/*
request.go - Donation request lifecycle

PURPOSE:
  A donation request is a member-submitted claim of payment awaiting admin
  verification. On approval it is converted into payment records through
  the allocation engine; the per-period amounts must match the declared
  total within the 0.1 tolerance (the plan's validation gate enforces the
  over-allocation side; under-allocation is surfaced as a warning).

FLOW:
  member submits -> pending -> admin approves -> allocation commit
                            -> admin rejects  -> reason recorded

  Either decision notifies the member. Notification failures are logged
  and swallowed; they never fail the decision.
*/
package dues

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// DONATION REQUEST
// =============================================================================

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// DonationRequest stages a member-claimed payment until an admin decides.
type DonationRequest struct {
	ID       RequestID
	MemberID MemberID
	Kind     PaymentKind
	Total    decimal.Decimal

	// Monthly kind only: target year, selected months, and the member's
	// optional per-month allocation.
	Year   int
	Months []time.Month
	Manual map[time.Month]decimal.Decimal

	Status       RequestStatus
	Note         string
	DecidedBy    string
	DecidedAt    *time.Time
	RejectReason string
	CreatedAt    time.Time
}

// NewDonationRequest builds a pending request with a fresh ID.
func NewDonationRequest(memberID MemberID, kind PaymentKind, total decimal.Decimal, year int, months []time.Month, manual map[time.Month]decimal.Decimal, note string) *DonationRequest {
	return &DonationRequest{
		ID:        RequestID(uuid.NewString()),
		MemberID:  memberID,
		Kind:      kind,
		Total:     total,
		Year:      year,
		Months:    months,
		Manual:    manual,
		Status:    RequestPending,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
}

// =============================================================================
// APPROVAL SERVICE
// =============================================================================

// ApprovalService converts decided requests into payments and notifies
// the requesting member.
type ApprovalService struct {
	Payments PaymentStore
	Notifier Notifier
	Log      *logrus.Logger
}

// Approve validates and commits a pending request. For monthly requests
// the allocation engine does the splitting; one-time requests become a
// single unperiodized payment. The request struct is mutated to approved;
// persisting that mutation is the caller's job.
func (s *ApprovalService) Approve(ctx context.Context, cfg CollectionConfig, req *DonationRequest, approvedBy string, today time.Time) (*CommitResult, error) {
	if req.Status != RequestPending {
		return nil, fmt.Errorf("approve %s: %w", req.ID, ErrRequestNotPending)
	}

	var result *CommitResult

	switch req.Kind {
	case KindMonthly:
		memberID := req.MemberID
		existing, err := s.Payments.ListPayments(ctx, PaymentFilter{MemberID: &memberID, Year: &req.Year})
		if err != nil {
			return nil, fmt.Errorf("approve %s: list payments: %w", req.ID, err)
		}
		plan, err := PlanAllocation(cfg, AllocationInput{
			MemberID: req.MemberID,
			Year:     req.Year,
			Total:    req.Total,
			Months:   req.Months,
			Manual:   req.Manual,
		}, existing)
		if err != nil {
			return nil, err
		}
		allocator := &Allocator{Payments: s.Payments}
		result = allocator.Commit(ctx, plan, today, approvedBy)
		if result.AllFailed() {
			return result, fmt.Errorf("approve %s: all period writes failed", req.ID)
		}

	case KindOneTime:
		payment := Payment{
			ID:         PaymentID(uuid.NewString()),
			MemberID:   req.MemberID,
			Kind:       KindOneTime,
			Amount:     req.Total,
			PaidAt:     today,
			Note:       req.Note,
			RecordedBy: approvedBy,
		}
		if err := s.Payments.CreatePayment(ctx, payment); err != nil {
			return nil, fmt.Errorf("approve %s: create payment: %w", req.ID, err)
		}
		result = &CommitResult{Applied: []PeriodWrite{{Amount: req.Total, PaymentID: payment.ID, Created: true}}}

	default:
		// A corrupt stored kind must not silently turn into a donation.
		return nil, fmt.Errorf("approve %s: unknown payment kind %q", req.ID, req.Kind)
	}

	now := time.Now().UTC()
	req.Status = RequestApproved
	req.DecidedBy = approvedBy
	req.DecidedAt = &now

	s.notify(ctx, req.MemberID, NotifyRequestApproved,
		fmt.Sprintf("Your donation of %s was verified and recorded.", req.Total.StringFixed(2)))

	return result, nil
}

// Reject marks a pending request rejected with a reason and notifies the
// member. No payments are touched.
func (s *ApprovalService) Reject(ctx context.Context, req *DonationRequest, rejectedBy, reason string) error {
	if req.Status != RequestPending {
		return fmt.Errorf("reject %s: %w", req.ID, ErrRequestNotPending)
	}

	now := time.Now().UTC()
	req.Status = RequestRejected
	req.DecidedBy = rejectedBy
	req.DecidedAt = &now
	req.RejectReason = reason

	s.notify(ctx, req.MemberID, NotifyRequestRejected,
		fmt.Sprintf("Your donation request was rejected: %s", reason))
	return nil
}

// notify is fire-and-forget: failures are logged, never propagated.
func (s *ApprovalService) notify(ctx context.Context, memberID MemberID, kind, message string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, memberID, kind, message); err != nil && s.Log != nil {
		s.Log.WithError(err).WithFields(logrus.Fields{
			"member_id": memberID,
			"kind":      kind,
		}).Warn("notification delivery failed")
	}
}
