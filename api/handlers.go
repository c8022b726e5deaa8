/*
handlers.go - HTTP API handlers for the community fund

PURPOSE:
  Exposes the dues engine and the application store via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Members:
    GET    /api/members                    List members (?status=)
    POST   /api/members                    Register (enters pending queue)
    GET    /api/members/{id}               Get member
    POST   /api/members/{id}/approve       Approve registration
    POST   /api/members/{id}/reject        Reject registration
    DELETE /api/members/{id}               Soft delete into recycle bin

  Collections:
    GET    /api/collections/matrix         Year matrix (?year=)
    GET    /api/collections/matrix/export  Matrix as CSV
    GET    /api/collections/config         Active years/months
    PUT    /api/collections/config         Update config (cascades)

  Allocations:
    POST   /api/allocations/preview        Validate, no writes
    POST   /api/allocations/commit         Per-period writes
    POST   /api/allocations/fill-last-blank  Remainder suggestion

  Payments, donation requests, expenses, announcements, notifications,
  recycle bin and admin tooling follow the same pattern; see server.go
  for the full route table.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (already decided, duplicate)
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. Deployments front this with a reverse
  proxy that handles auth.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - reminder.go: Scheduled overdue reminders
*/
package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rangdhanu/fundkeeper/dues"
	"github.com/rangdhanu/fundkeeper/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Log       *logrus.Logger
	Approval  *dues.ApprovalService
	BackupDir string

	// Now is injectable for status-computation tests.
	Now func() time.Time
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log *logrus.Logger, backupDir string) *Handler {
	return &Handler{
		Store: store,
		Log:   log,
		Approval: &dues.ApprovalService{
			Payments: store,
			Notifier: store,
			Log:      log,
		},
		BackupDir: backupDir,
		Now:       time.Now,
	}
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns members, optionally filtered by status.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMember returns a single member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Store.GetMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Member not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*m))
}

// RegisterMember creates a pending member. An admin decides later.
func (h *Handler) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var req RegisterMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	role := req.Role
	if role == "" {
		role = "member"
	}

	m := sqlite.Member{
		ID:     req.ID,
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Role:   role,
		Status: sqlite.MemberPending,
	}
	if err := h.Store.SaveMember(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register member", err)
		return
	}

	h.logActivity(r, "", "member.register", m.ID)
	writeJSON(w, http.StatusCreated, toMemberDTO(m))
}

// ApproveMember approves a pending registration and stamps joined_at.
func (h *Handler) ApproveMember(w http.ResponseWriter, r *http.Request) {
	h.decideMember(w, r, sqlite.MemberApproved)
}

// RejectMember rejects a pending registration.
func (h *Handler) RejectMember(w http.ResponseWriter, r *http.Request) {
	h.decideMember(w, r, sqlite.MemberRejected)
}

func (h *Handler) decideMember(w http.ResponseWriter, r *http.Request, status string) {
	id := chi.URLParam(r, "id")

	var req DecisionRequest
	json.NewDecoder(r.Body).Decode(&req)
	if req.DecidedBy == "" {
		req.DecidedBy = "admin"
	}

	if err := h.Store.SetMemberStatus(r.Context(), id, status); err != nil {
		h.writeDomainError(w, "Failed to update member status", err)
		return
	}

	message := "Your registration was approved. Welcome to the fund."
	if status == sqlite.MemberRejected {
		message = "Your registration was rejected."
		if req.Reason != "" {
			message = fmt.Sprintf("Your registration was rejected: %s", req.Reason)
		}
	}
	h.notify(r, dues.MemberID(id), "member_"+status, message)

	h.logActivity(r, req.DecidedBy, "member."+status, id)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"decided_by": req.DecidedBy,
	})
}

// DeleteMember soft-deletes a member into the recycle bin.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deletedBy := r.URL.Query().Get("deleted_by")

	if err := h.Store.SoftDeleteMember(r.Context(), id, deletedBy); err != nil {
		h.writeDomainError(w, "Failed to delete member", err)
		return
	}
	h.logActivity(r, deletedBy, "member.delete", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// COLLECTION MATRIX HANDLERS
// =============================================================================

// GetMatrix returns the collection matrix for one year: every approved
// member crossed with the year's active periods.
func (h *Handler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	matrix, names, err := h.buildMatrix(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build matrix", err)
		return
	}

	dto := MatrixDTO{
		Year:       matrix.Year,
		GrandTotal: matrix.GrandTotal.String(),
	}
	for _, p := range matrix.Periods {
		dto.Periods = append(dto.Periods, p.String())
	}
	for _, t := range matrix.PeriodTotals {
		dto.PeriodTotals = append(dto.PeriodTotals, t.String())
	}
	for _, row := range matrix.Rows {
		rowDTO := MatrixRowDTO{
			MemberID:   string(row.MemberID),
			MemberName: names[string(row.MemberID)],
			RowTotal:   row.RowTotal.String(),
		}
		for _, cell := range row.Cells {
			rowDTO.Cells = append(rowDTO.Cells, CellDTO{
				Period:   cell.Period.String(),
				Status:   string(cell.Status),
				Paid:     cell.Paid.String(),
				Payments: cell.Payments,
			})
		}
		dto.Rows = append(dto.Rows, rowDTO)
	}
	writeJSON(w, http.StatusOK, dto)
}

// ExportMatrix streams the year matrix as CSV for spreadsheet users.
func (h *Handler) ExportMatrix(w http.ResponseWriter, r *http.Request) {
	matrix, names, err := h.buildMatrix(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build matrix", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="collections-%d.csv"`, matrix.Year))

	cw := csv.NewWriter(w)
	header := []string{"Member"}
	for _, p := range matrix.Periods {
		header = append(header, p.Label())
	}
	header = append(header, "Total")
	cw.Write(header)

	for _, row := range matrix.Rows {
		record := []string{names[string(row.MemberID)]}
		for _, cell := range row.Cells {
			if cell.Status == dues.StatusPaid {
				record = append(record, cell.Paid.String())
			} else {
				record = append(record, string(cell.Status))
			}
		}
		record = append(record, row.RowTotal.String())
		cw.Write(record)
	}

	footer := []string{"Total"}
	for _, t := range matrix.PeriodTotals {
		footer = append(footer, t.String())
	}
	footer = append(footer, matrix.GrandTotal.String())
	cw.Write(footer)
	cw.Flush()
}

func (h *Handler) buildMatrix(r *http.Request) (dues.Matrix, map[string]string, error) {
	ctx := r.Context()
	year := h.Now().Year()
	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil {
		year = y
	}

	cfg, err := h.Store.LoadConfig(ctx)
	if err != nil {
		return dues.Matrix{}, nil, err
	}
	members, err := h.Store.ListMembers(ctx, sqlite.MemberApproved)
	if err != nil {
		return dues.Matrix{}, nil, err
	}
	kind := dues.KindMonthly
	payments, err := h.Store.ListPayments(ctx, dues.PaymentFilter{Kind: &kind, Year: &year})
	if err != nil {
		return dues.Matrix{}, nil, err
	}

	names := make(map[string]string, len(members))
	memberIDs := make([]dues.MemberID, 0, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
		memberIDs = append(memberIDs, dues.MemberID(m.ID))
	}
	return dues.BuildMatrix(cfg, year, memberIDs, payments, h.Now()), names, nil
}

// GetConfig returns the active collection configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Store.LoadConfig(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfig saves a new configuration. Payments for periods no longer
// active are soft-deleted; the response reports how many.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	removed, err := h.Store.SaveConfig(r.Context(), req.Config, req.UpdatedBy)
	if err != nil {
		h.writeDomainError(w, "Failed to save configuration", err)
		return
	}

	h.logActivity(r, req.UpdatedBy, "config.update",
		fmt.Sprintf("removed %d orphaned payments", removed))
	writeJSON(w, http.StatusOK, ConfigUpdateResponse{
		Config:          req.Config,
		RemovedPayments: removed,
	})
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// PreviewAllocation runs the pure planning phase: validation and the
// per-period split, with zero writes.
func (h *Handler) PreviewAllocation(w http.ResponseWriter, r *http.Request) {
	plan, _, ok := h.planFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// CommitAllocation plans and commits in one call. Partial failures are
// reported per period with status 200; the client retries only those.
func (h *Handler) CommitAllocation(w http.ResponseWriter, r *http.Request) {
	plan, req, ok := h.planFromRequest(w, r)
	if !ok {
		return
	}

	allocator := &dues.Allocator{Payments: h.Store}
	result := allocator.Commit(r.Context(), plan, h.Now(), req.RecordedBy)
	if result.AllFailed() {
		writeError(w, http.StatusInternalServerError, "All period writes failed",
			result.Failed[0].Err)
		return
	}

	h.notify(r, plan.MemberID, dues.NotifyPaymentRecorded,
		fmt.Sprintf("Payment of %s recorded across %d month(s).",
			plan.Total.StringFixed(2), len(result.Applied)))
	h.logActivity(r, req.RecordedBy, "allocation.commit",
		fmt.Sprintf("member %s, %d applied, %d failed",
			plan.MemberID, len(result.Applied), len(result.Failed)))

	writeJSON(w, http.StatusOK, toCommitDTO(plan, result))
}

// FillLastBlank suggests the remainder for the one blank month.
func (h *Handler) FillLastBlank(w http.ResponseWriter, r *http.Request) {
	var req FillLastBlankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	total, err := dues.ParseAmount(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return
	}
	manual, err := parseManual(req.Manual)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid manual amount", err)
		return
	}

	month, amount, ok := dues.FillLastBlank(total, toMonths(req.Months), manual)
	if !ok {
		writeJSON(w, http.StatusOK, FillLastBlankResponse{OK: false})
		return
	}
	writeJSON(w, http.StatusOK, FillLastBlankResponse{
		OK:     true,
		Month:  int(month),
		Amount: amount.String(),
	})
}

// planFromRequest parses, loads context, and plans. Writes the error
// response itself and returns ok=false on failure.
func (h *Handler) planFromRequest(w http.ResponseWriter, r *http.Request) (*dues.AllocationPlan, *AllocationRequest, bool) {
	var req AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, nil, false
	}

	total, err := dues.ParseAmount(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return nil, nil, false
	}
	manual, err := parseManual(req.Manual)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid manual amount", err)
		return nil, nil, false
	}

	ctx := r.Context()
	cfg, err := h.Store.LoadConfig(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return nil, nil, false
	}
	memberID := dues.MemberID(req.MemberID)
	existing, err := h.Store.ListPayments(ctx, dues.PaymentFilter{MemberID: &memberID, Year: &req.Year})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return nil, nil, false
	}

	plan, err := dues.PlanAllocation(cfg, dues.AllocationInput{
		MemberID: memberID,
		Year:     req.Year,
		Total:    total,
		Months:   toMonths(req.Months),
		Manual:   manual,
	}, existing)
	if err != nil {
		h.writeDomainError(w, "Allocation rejected", err)
		return nil, nil, false
	}
	return plan, &req, true
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns payments matching the query filters.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	var filter dues.PaymentFilter
	q := r.URL.Query()
	if v := q.Get("member_id"); v != "" {
		id := dues.MemberID(v)
		filter.MemberID = &id
	}
	if v := q.Get("kind"); v != "" {
		kind := dues.PaymentKind(v)
		filter.Kind = &kind
	}
	if v, err := strconv.Atoi(q.Get("year")); err == nil {
		filter.Year = &v
	}
	if v, err := strconv.Atoi(q.Get("month")); err == nil {
		month := time.Month(v)
		filter.Month = &month
	}

	payments, err := h.Store.ListPayments(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePayment records a payment directly (admin flow). Monthly payments
// route through the allocation engine as a single-month plan so a second
// payment for a covered period increments the existing record.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := dues.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	ctx := r.Context()
	memberID := dues.MemberID(req.MemberID)

	if dues.PaymentKind(req.Kind) == dues.KindMonthly {
		cfg, err := h.Store.LoadConfig(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load configuration", err)
			return
		}
		existing, err := h.Store.ListPayments(ctx, dues.PaymentFilter{MemberID: &memberID, Year: &req.Year})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
			return
		}
		plan, err := dues.PlanAllocation(cfg, dues.AllocationInput{
			MemberID: memberID,
			Year:     req.Year,
			Total:    amount,
			Months:   []time.Month{time.Month(req.Month)},
		}, existing)
		if err != nil {
			h.writeDomainError(w, "Payment rejected", err)
			return
		}
		allocator := &dues.Allocator{Payments: h.Store}
		result := allocator.Commit(ctx, plan, h.Now(), req.RecordedBy)
		if result.AllFailed() {
			writeError(w, http.StatusInternalServerError, "Failed to record payment",
				result.Failed[0].Err)
			return
		}

		h.notify(r, memberID, dues.NotifyPaymentRecorded,
			fmt.Sprintf("Payment of %s recorded for %s.",
				amount.StringFixed(2), plan.Lines[0].Period.Label()))
		h.logActivity(r, req.RecordedBy, "payment.create", string(result.Applied[0].PaymentID))
		writeJSON(w, http.StatusCreated, toCommitDTO(plan, result))
		return
	}

	payment := dues.Payment{
		ID:         dues.PaymentID(uuid.NewString()),
		MemberID:   memberID,
		Kind:       dues.KindOneTime,
		Amount:     amount,
		PaidAt:     h.Now(),
		Note:       req.Note,
		RecordedBy: req.RecordedBy,
	}
	if err := h.Store.CreatePayment(ctx, payment); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record payment", err)
		return
	}

	h.notify(r, memberID, dues.NotifyPaymentRecorded,
		fmt.Sprintf("Donation of %s recorded. Thank you.", amount.StringFixed(2)))
	h.logActivity(r, req.RecordedBy, "payment.create", string(payment.ID))
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// CorrectPaymentAmount sets a payment's amount absolutely (admin edit).
// Last-write-wins under concurrent edits.
func (h *Handler) CorrectPaymentAmount(w http.ResponseWriter, r *http.Request) {
	id := dues.PaymentID(chi.URLParam(r, "id"))

	var req CorrectAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := dues.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	if err := h.Store.SetPaymentAmount(r.Context(), id, amount); err != nil {
		h.writeDomainError(w, "Failed to correct payment", err)
		return
	}
	h.logActivity(r, "", "payment.correct", string(id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "corrected", "amount": amount.String()})
}

// DeletePayment soft-deletes a payment into the recycle bin.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := dues.PaymentID(chi.URLParam(r, "id"))
	deletedBy := r.URL.Query().Get("deleted_by")

	if err := h.Store.SoftDeletePayment(r.Context(), id, deletedBy); err != nil {
		h.writeDomainError(w, "Failed to delete payment", err)
		return
	}
	h.logActivity(r, deletedBy, "payment.delete", string(id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// DONATION REQUEST HANDLERS
// =============================================================================

// SubmitDonation stages a member-claimed payment for admin verification.
func (h *Handler) SubmitDonation(w http.ResponseWriter, r *http.Request) {
	var req SubmitDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	total, err := dues.ParseAmount(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return
	}
	manual, err := parseManual(req.Manual)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid manual amount", err)
		return
	}

	kind := dues.PaymentKind(req.Kind)
	if kind != dues.KindMonthly && kind != dues.KindOneTime {
		writeError(w, http.StatusBadRequest, "Kind must be monthly or one-time", nil)
		return
	}

	request := dues.NewDonationRequest(dues.MemberID(req.MemberID), kind, total,
		req.Year, toMonths(req.Months), manual, req.Note)
	if err := h.Store.SaveDonationRequest(r.Context(), request); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save request", err)
		return
	}

	h.logActivity(r, req.MemberID, "request.submit", string(request.ID))
	writeJSON(w, http.StatusCreated, toDonationRequestDTO(*request))
}

// ListDonationRequests returns requests, optionally filtered by status.
func (h *Handler) ListDonationRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Store.ListDonationRequests(r.Context(),
		dues.RequestStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}

	dtos := make([]DonationRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toDonationRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveDonation verifies a pending request: monthly requests run
// through the allocation engine, one-time requests become a single
// payment. Partial period failures are reported, not rolled back.
func (h *Handler) ApproveDonation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	request, decision, ok := h.loadDecision(w, r)
	if !ok {
		return
	}

	cfg, err := h.Store.LoadConfig(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}

	result, err := h.Approval.Approve(ctx, cfg, request, decision.DecidedBy, h.Now())
	if err != nil {
		h.writeDomainError(w, "Approval failed", err)
		return
	}
	if err := h.Store.SaveDonationRequest(ctx, request); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist decision", err)
		return
	}

	h.logActivity(r, decision.DecidedBy, "request.approve", string(request.ID))

	resp := map[string]any{
		"request": toDonationRequestDTO(*request),
		"applied": toWriteDTOs(result.Applied),
	}
	if len(result.Failed) > 0 {
		resp["failed"] = toFailureDTOs(result.Failed)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RejectDonation rejects a pending request with a reason.
func (h *Handler) RejectDonation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	request, decision, ok := h.loadDecision(w, r)
	if !ok {
		return
	}

	if err := h.Approval.Reject(ctx, request, decision.DecidedBy, decision.Reason); err != nil {
		h.writeDomainError(w, "Rejection failed", err)
		return
	}
	if err := h.Store.SaveDonationRequest(ctx, request); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist decision", err)
		return
	}

	h.logActivity(r, decision.DecidedBy, "request.reject", string(request.ID))
	writeJSON(w, http.StatusOK, toDonationRequestDTO(*request))
}

func (h *Handler) loadDecision(w http.ResponseWriter, r *http.Request) (*dues.DonationRequest, *DecisionRequest, bool) {
	id := dues.RequestID(chi.URLParam(r, "id"))

	var decision DecisionRequest
	json.NewDecoder(r.Body).Decode(&decision)
	if decision.DecidedBy == "" {
		decision.DecidedBy = "admin"
	}

	request, err := h.Store.GetDonationRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get request", err)
		return nil, nil, false
	}
	if request == nil {
		writeError(w, http.StatusNotFound, "Request not found", nil)
		return nil, nil, false
	}
	if request.Status != dues.RequestPending {
		writeError(w, http.StatusConflict, "Request is not pending", nil)
		return nil, nil, false
	}
	return request, &decision, true
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// CreateExpense records a fund expense.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required", nil)
		return
	}
	amount, err := dues.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	spentAt := h.Now()
	if req.SpentAt != "" {
		spentAt, err = time.Parse("2006-01-02", req.SpentAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid spent_at format (use YYYY-MM-DD)", err)
			return
		}
	}

	expense := sqlite.Expense{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Amount:     amount,
		Category:   req.Category,
		SpentAt:    spentAt,
		Note:       req.Note,
		RecordedBy: req.RecordedBy,
	}
	if err := h.Store.SaveExpense(r.Context(), expense); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record expense", err)
		return
	}

	h.logActivity(r, req.RecordedBy, "expense.create", expense.ID)
	writeJSON(w, http.StatusCreated, toExpenseDTO(expense))
}

// ListExpenses returns expenses, optionally limited to one year.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	expenses, err := h.Store.ListExpenses(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}

	dtos := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = toExpenseDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteExpense soft-deletes an expense into the recycle bin.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deletedBy := r.URL.Query().Get("deleted_by")

	if err := h.Store.SoftDeleteExpense(r.Context(), id, deletedBy); err != nil {
		h.writeDomainError(w, "Failed to delete expense", err)
		return
	}
	h.logActivity(r, deletedBy, "expense.delete", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func toExpenseDTO(e sqlite.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:         e.ID,
		Title:      e.Title,
		Amount:     e.Amount.String(),
		Category:   e.Category,
		SpentAt:    e.SpentAt.Format("2006-01-02"),
		Note:       e.Note,
		RecordedBy: e.RecordedBy,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// DASHBOARD HANDLER
// =============================================================================

// GetDashboard returns the finance summary for one year: monthly
// collections, one-time donations, expenses, and the running balance.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year := h.Now().Year()
	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil {
		year = y
	}

	monthlyKind := dues.KindMonthly
	monthly, err := h.Store.ListPayments(ctx, dues.PaymentFilter{Kind: &monthlyKind, Year: &year})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	oneTimeKind := dues.KindOneTime
	oneTime, err := h.Store.ListPayments(ctx, dues.PaymentFilter{Kind: &oneTimeKind})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	expenses, err := h.Store.ListExpenses(ctx, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}

	cfg, err := h.Store.LoadConfig(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}
	var breakdown []MonthTotalDTO
	for _, period := range cfg.ActivePeriods(year) {
		breakdown = append(breakdown, MonthTotalDTO{
			Period:    period.String(),
			Collected: dues.PeriodTotal(monthly, period).String(),
		})
	}

	collected := dues.KindTotal(monthly, dues.KindMonthly)
	donated := decimal.Zero
	for _, p := range oneTime {
		if p.PaidAt.Year() == year {
			donated = donated.Add(p.Amount)
		}
	}
	spent := decimal.Zero
	for _, e := range expenses {
		spent = spent.Add(e.Amount)
	}

	approved, err := h.Store.ListMembers(ctx, sqlite.MemberApproved)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}
	pending, err := h.Store.ListMembers(ctx, sqlite.MemberPending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}
	pendingRequests, err := h.Store.ListDonationRequests(ctx, dues.RequestPending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}

	writeJSON(w, http.StatusOK, DashboardDTO{
		Year:             year,
		MonthlyCollected: collected.String(),
		OneTimeDonations: donated.String(),
		TotalExpenses:    spent.String(),
		Balance:          collected.Add(donated).Sub(spent).String(),
		MonthlyBreakdown: breakdown,
		ApprovedMembers:  len(approved),
		PendingMembers:   len(pending),
		PendingRequests:  len(pendingRequests),
	})
}

// =============================================================================
// ANNOUNCEMENT HANDLERS
// =============================================================================

// ListAnnouncements returns announcements, pinned first.
func (h *Handler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := h.Store.ListAnnouncements(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list announcements", err)
		return
	}

	dtos := make([]AnnouncementDTO, len(announcements))
	for i, a := range announcements {
		dtos[i] = AnnouncementDTO{
			ID:        a.ID,
			Title:     a.Title,
			Body:      a.Body,
			AuthorID:  a.AuthorID,
			Pinned:    a.Pinned,
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAnnouncement posts an announcement.
func (h *Handler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req CreateAnnouncementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "Title and body are required", nil)
		return
	}

	a := sqlite.Announcement{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Body:     req.Body,
		AuthorID: req.AuthorID,
		Pinned:   req.Pinned,
	}
	if err := h.Store.SaveAnnouncement(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save announcement", err)
		return
	}

	h.logActivity(r, req.AuthorID, "announcement.create", a.ID)
	writeJSON(w, http.StatusCreated, AnnouncementDTO{
		ID:       a.ID,
		Title:    a.Title,
		Body:     a.Body,
		AuthorID: a.AuthorID,
		Pinned:   a.Pinned,
	})
}

// DeleteAnnouncement removes an announcement.
func (h *Handler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteAnnouncement(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete announcement", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications returns a member's notifications (?unread=true).
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "id")
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.Store.ListNotifications(r.Context(), memberID, unreadOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, len(notifications))
	for i, n := range notifications {
		dtos[i] = NotificationDTO{
			ID:        n.ID,
			MemberID:  n.MemberID,
			Kind:      n.Kind,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkNotificationRead marks one notification read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.MarkNotificationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark notification", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// =============================================================================
// RECYCLE BIN HANDLERS
// =============================================================================

// ListRecycleBin returns all soft-deleted records.
func (h *Handler) ListRecycleBin(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListRecycleBin(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list recycle bin", err)
		return
	}

	dtos := make([]RecycleEntryDTO, len(entries))
	for i, e := range entries {
		var payload any
		json.Unmarshal(e.Payload, &payload)
		dtos[i] = RecycleEntryDTO{
			ID:          e.ID,
			SourceTable: e.SourceTable,
			RecordID:    e.RecordID,
			Payload:     payload,
			DeletedBy:   e.DeletedBy,
			DeletedAt:   e.DeletedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RestoreRecycleEntry reinserts the original record.
func (h *Handler) RestoreRecycleEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.RestoreFromRecycleBin(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to restore record", err)
		return
	}
	h.logActivity(r, "", "recycle.restore", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

// PurgeRecycleEntry hard-deletes a bin entry. Irreversible.
func (h *Handler) PurgeRecycleEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.PurgeRecycleEntry(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to purge record", err)
		return
	}
	h.logActivity(r, "", "recycle.purge", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Backup writes a consistent copy of the database to the backup dir.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	dest := filepath.Join(h.BackupDir,
		fmt.Sprintf("fundkeeper-%s.db", h.Now().UTC().Format("20060102-150405")))
	if err := h.Store.Backup(r.Context(), dest); err != nil {
		writeError(w, http.StatusInternalServerError, "Backup failed", err)
		return
	}
	h.logActivity(r, "", "admin.backup", dest)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "path": dest})
}

// Restore replaces the live database with a backup file.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "Path is required", nil)
		return
	}

	if err := h.Store.Restore(r.Context(), req.Path); err != nil {
		writeError(w, http.StatusInternalServerError, "Restore failed", err)
		return
	}
	h.logActivity(r, "", "admin.restore", req.Path)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResetDatabase clears all data and reinstates a default configuration.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListActivity returns recent audit log entries (?limit=).
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Store.ListActivity(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activity", err)
		return
	}

	dtos := make([]ActivityDTO, len(entries))
	for i, e := range entries {
		dtos[i] = ActivityDTO{
			ID:        e.ID,
			ActorID:   e.ActorID,
			Action:    e.Action,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case dues.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case dues.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// notify is fire-and-forget: delivery failures are logged, never
// surfaced to the client.
func (h *Handler) notify(r *http.Request, memberID dues.MemberID, kind, message string) {
	if err := h.Store.Notify(r.Context(), memberID, kind, message); err != nil {
		h.Log.WithError(err).WithField("member_id", memberID).Warn("notification delivery failed")
	}
}

// logActivity is best-effort audit logging.
func (h *Handler) logActivity(r *http.Request, actorID, action, detail string) {
	if err := h.Store.LogActivity(r.Context(), actorID, action, detail); err != nil {
		h.Log.WithError(err).WithField("action", action).Warn("activity log write failed")
	}
}

func toMonths(months []int) []time.Month {
	out := make([]time.Month, 0, len(months))
	for _, m := range months {
		out = append(out, time.Month(m))
	}
	return out
}

// parseManual converts the wire mapping into decimals. Blank entries are
// untouched form fields, not zeros: they are dropped so the allocation
// engine sees them as "not entered".
func parseManual(manual map[int]string) (map[time.Month]decimal.Decimal, error) {
	out := make(map[time.Month]decimal.Decimal, len(manual))
	for m, v := range manual {
		amount, err := dues.ParseAmount(v)
		if err == dues.ErrBlankAmount {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("month %d: %w", m, err)
		}
		out[time.Month(m)] = amount
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func toPlanDTO(plan *dues.AllocationPlan) AllocationPlanDTO {
	dto := AllocationPlanDTO{
		MemberID:    string(plan.MemberID),
		Year:        plan.Year,
		Total:       plan.Total.String(),
		Unallocated: plan.Unallocated.String(),
	}
	for _, line := range plan.Lines {
		dto.Lines = append(dto.Lines, AllocationLineDTO{
			Period:      line.Period.String(),
			Amount:      line.Amount.String(),
			AlreadyPaid: line.AlreadyPaid,
		})
	}
	for _, p := range plan.AlreadyPaid {
		dto.AlreadyPaid = append(dto.AlreadyPaid, p.String())
	}
	return dto
}

func toCommitDTO(plan *dues.AllocationPlan, result *dues.CommitResult) CommitResponseDTO {
	return CommitResponseDTO{
		Plan:    toPlanDTO(plan),
		Applied: toWriteDTOs(result.Applied),
		Failed:  toFailureDTOs(result.Failed),
	}
}

func toWriteDTOs(writes []dues.PeriodWrite) []PeriodWriteDTO {
	dtos := make([]PeriodWriteDTO, len(writes))
	for i, wr := range writes {
		dtos[i] = PeriodWriteDTO{
			Period:    wr.Period.String(),
			Amount:    wr.Amount.String(),
			PaymentID: string(wr.PaymentID),
			Created:   wr.Created,
		}
	}
	return dtos
}

func toFailureDTOs(failures []dues.PeriodFailure) []PeriodFailureDTO {
	if len(failures) == 0 {
		return nil
	}
	dtos := make([]PeriodFailureDTO, len(failures))
	for i, f := range failures {
		dtos[i] = PeriodFailureDTO{Period: f.Period.String(), Error: f.Err.Error()}
	}
	return dtos
}
