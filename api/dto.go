/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Money travels as strings on the wire and is parsed exactly once at the
  boundary (dues.ParseAmount). Float JSON numbers never touch amounts.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Router setup and middleware
*/
package api

import (
	"time"

	"github.com/rangdhanu/fundkeeper/dues"
	"github.com/rangdhanu/fundkeeper/store/sqlite"
)

// =============================================================================
// MEMBERS
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	JoinedAt  string `json:"joined_at,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// RegisterMemberRequest is the request to register a member. The member
// enters the approval queue as pending.
type RegisterMemberRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

func toMemberDTO(m sqlite.Member) MemberDTO {
	dto := MemberDTO{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Role:      m.Role,
		Status:    m.Status,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
	if !m.JoinedAt.IsZero() {
		dto.JoinedAt = m.JoinedAt.Format("2006-01-02")
	}
	return dto
}

// =============================================================================
// COLLECTION MATRIX
// =============================================================================

// CellDTO is one member/period cell of the collection matrix.
type CellDTO struct {
	Period   string `json:"period"`
	Status   string `json:"status"`
	Paid     string `json:"paid"`
	Payments int    `json:"payments"`
}

// MatrixRowDTO is one member's row across the year's active periods.
type MatrixRowDTO struct {
	MemberID   string    `json:"member_id"`
	MemberName string    `json:"member_name"`
	Cells      []CellDTO `json:"cells"`
	RowTotal   string    `json:"row_total"`
}

// MatrixDTO is the full collection view for one year.
type MatrixDTO struct {
	Year         int            `json:"year"`
	Periods      []string       `json:"periods"`
	Rows         []MatrixRowDTO `json:"rows"`
	PeriodTotals []string       `json:"period_totals"`
	GrandTotal   string         `json:"grand_total"`
}

// ConfigUpdateRequest carries a new collection configuration. Saving it
// cascades: payments for removed periods go to the recycle bin.
type ConfigUpdateRequest struct {
	Config    dues.CollectionConfig `json:"config"`
	UpdatedBy string                `json:"updated_by,omitempty"`
}

// ConfigUpdateResponse reports the cascade outcome.
type ConfigUpdateResponse struct {
	Config          dues.CollectionConfig `json:"config"`
	RemovedPayments int                   `json:"removed_payments"`
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// AllocationRequest is a declared total split across selected months of
// one year. Manual is keyed by month number (1-12); a month absent from
// the map is a blank field, distinct from an explicit zero.
type AllocationRequest struct {
	MemberID   string         `json:"member_id"`
	Year       int            `json:"year"`
	Total      string         `json:"total"`
	Months     []int          `json:"months"`
	Manual     map[int]string `json:"manual,omitempty"`
	RecordedBy string         `json:"recorded_by,omitempty"`
}

// AllocationLineDTO is the resolved amount for one period.
type AllocationLineDTO struct {
	Period      string `json:"period"`
	Amount      string `json:"amount"`
	AlreadyPaid bool   `json:"already_paid"`
}

// AllocationPlanDTO is the preview of an allocation before commit.
type AllocationPlanDTO struct {
	MemberID    string              `json:"member_id"`
	Year        int                 `json:"year"`
	Total       string              `json:"total"`
	Lines       []AllocationLineDTO `json:"lines"`
	AlreadyPaid []string            `json:"already_paid,omitempty"`
	Unallocated string              `json:"unallocated"`
}

// PeriodWriteDTO records one successful per-period write.
type PeriodWriteDTO struct {
	Period    string `json:"period"`
	Amount    string `json:"amount"`
	PaymentID string `json:"payment_id"`
	Created   bool   `json:"created"`
}

// PeriodFailureDTO records one failed per-period write.
type PeriodFailureDTO struct {
	Period string `json:"period"`
	Error  string `json:"error"`
}

// CommitResponseDTO reports the outcome of an allocation commit. Failed
// is non-empty on partial failure; the client retries only those periods.
type CommitResponseDTO struct {
	Plan    AllocationPlanDTO  `json:"plan"`
	Applied []PeriodWriteDTO   `json:"applied"`
	Failed  []PeriodFailureDTO `json:"failed,omitempty"`
}

// FillLastBlankRequest asks for the auto-fill remainder: exactly one
// blank month and the filled sum strictly below the total.
type FillLastBlankRequest struct {
	Total  string         `json:"total"`
	Months []int          `json:"months"`
	Manual map[int]string `json:"manual,omitempty"`
}

// FillLastBlankResponse carries the suggested fill, or ok=false when the
// precondition doesn't hold.
type FillLastBlankResponse struct {
	OK     bool   `json:"ok"`
	Month  int    `json:"month,omitempty"`
	Amount string `json:"amount,omitempty"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentDTO represents a recorded contribution.
type PaymentDTO struct {
	ID         string `json:"id"`
	MemberID   string `json:"member_id"`
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
	Period     string `json:"period,omitempty"`
	PaidAt     string `json:"paid_at"`
	Note       string `json:"note,omitempty"`
	RecordedBy string `json:"recorded_by,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreatePaymentRequest records a payment directly (admin flow). Monthly
// payments route through the allocation engine so a second payment for a
// covered period increments the existing record.
type CreatePaymentRequest struct {
	MemberID   string `json:"member_id"`
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
	Year       int    `json:"year,omitempty"`
	Month      int    `json:"month,omitempty"`
	Note       string `json:"note,omitempty"`
	RecordedBy string `json:"recorded_by,omitempty"`
}

// CorrectAmountRequest sets a payment's amount absolutely (admin edit).
type CorrectAmountRequest struct {
	Amount string `json:"amount"`
}

func toPaymentDTO(p dues.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:         string(p.ID),
		MemberID:   string(p.MemberID),
		Kind:       string(p.Kind),
		Amount:     p.Amount.String(),
		PaidAt:     p.PaidAt.Format(time.RFC3339),
		Note:       p.Note,
		RecordedBy: p.RecordedBy,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
	if p.Kind == dues.KindMonthly && p.Period.Valid() {
		dto.Period = p.Period.String()
	}
	return dto
}

// =============================================================================
// DONATION REQUESTS
// =============================================================================

// SubmitDonationRequest is a member-submitted claim of payment awaiting
// admin verification.
type SubmitDonationRequest struct {
	MemberID string         `json:"member_id"`
	Kind     string         `json:"kind"`
	Total    string         `json:"total"`
	Year     int            `json:"year,omitempty"`
	Months   []int          `json:"months,omitempty"`
	Manual   map[int]string `json:"manual,omitempty"`
	Note     string         `json:"note,omitempty"`
}

// DonationRequestDTO represents a donation request in API responses.
type DonationRequestDTO struct {
	ID           string         `json:"id"`
	MemberID     string         `json:"member_id"`
	Kind         string         `json:"kind"`
	Total        string         `json:"total"`
	Year         int            `json:"year,omitempty"`
	Months       []int          `json:"months,omitempty"`
	Manual       map[int]string `json:"manual,omitempty"`
	Status       string         `json:"status"`
	Note         string         `json:"note,omitempty"`
	DecidedBy    string         `json:"decided_by,omitempty"`
	DecidedAt    string         `json:"decided_at,omitempty"`
	RejectReason string         `json:"reject_reason,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
}

// DecisionRequest identifies the deciding admin, plus a reason on reject.
type DecisionRequest struct {
	DecidedBy string `json:"decided_by"`
	Reason    string `json:"reason,omitempty"`
}

func toDonationRequestDTO(r dues.DonationRequest) DonationRequestDTO {
	dto := DonationRequestDTO{
		ID:           string(r.ID),
		MemberID:     string(r.MemberID),
		Kind:         string(r.Kind),
		Total:        r.Total.String(),
		Year:         r.Year,
		Status:       string(r.Status),
		Note:         r.Note,
		DecidedBy:    r.DecidedBy,
		RejectReason: r.RejectReason,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
	for _, m := range r.Months {
		dto.Months = append(dto.Months, int(m))
	}
	if len(r.Manual) > 0 {
		dto.Manual = make(map[int]string, len(r.Manual))
		for m, v := range r.Manual {
			dto.Manual[int(m)] = v.String()
		}
	}
	if r.DecidedAt != nil {
		dto.DecidedAt = r.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// EXPENSES / DASHBOARD
// =============================================================================

// ExpenseDTO represents a fund expense.
type ExpenseDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Amount     string `json:"amount"`
	Category   string `json:"category,omitempty"`
	SpentAt    string `json:"spent_at"`
	Note       string `json:"note,omitempty"`
	RecordedBy string `json:"recorded_by,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateExpenseRequest records a fund expense.
type CreateExpenseRequest struct {
	Title      string `json:"title"`
	Amount     string `json:"amount"`
	Category   string `json:"category,omitempty"`
	SpentAt    string `json:"spent_at,omitempty"` // YYYY-MM-DD, defaults to today
	Note       string `json:"note,omitempty"`
	RecordedBy string `json:"recorded_by,omitempty"`
}

// MonthTotalDTO is one month's collected sum in the dashboard breakdown.
type MonthTotalDTO struct {
	Period    string `json:"period"`
	Collected string `json:"collected"`
}

// DashboardDTO is the finance summary for one year.
type DashboardDTO struct {
	Year             int             `json:"year"`
	MonthlyCollected string          `json:"monthly_collected"`
	OneTimeDonations string          `json:"one_time_donations"`
	TotalExpenses    string          `json:"total_expenses"`
	Balance          string          `json:"balance"`
	MonthlyBreakdown []MonthTotalDTO `json:"monthly_breakdown,omitempty"`
	ApprovedMembers  int             `json:"approved_members"`
	PendingMembers   int             `json:"pending_members"`
	PendingRequests  int             `json:"pending_requests"`
}

// =============================================================================
// ANNOUNCEMENTS / NOTIFICATIONS
// =============================================================================

// AnnouncementDTO represents a posted announcement.
type AnnouncementDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	AuthorID  string `json:"author_id,omitempty"`
	Pinned    bool   `json:"pinned"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateAnnouncementRequest posts an announcement.
type CreateAnnouncementRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	AuthorID string `json:"author_id,omitempty"`
	Pinned   bool   `json:"pinned,omitempty"`
}

// NotificationDTO represents one member notification.
type NotificationDTO struct {
	ID        string `json:"id"`
	MemberID  string `json:"member_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at,omitempty"`
}

// =============================================================================
// RECYCLE BIN / ADMIN
// =============================================================================

// RecycleEntryDTO represents one soft-deleted record.
type RecycleEntryDTO struct {
	ID          string `json:"id"`
	SourceTable string `json:"source_table"`
	RecordID    string `json:"record_id"`
	Payload     any    `json:"payload"`
	DeletedBy   string `json:"deleted_by,omitempty"`
	DeletedAt   string `json:"deleted_at"`
}

// ActivityDTO represents one audit log entry.
type ActivityDTO struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id,omitempty"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// RestoreRequest points the restore at a backup file.
type RestoreRequest struct {
	Path string `json:"path"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
