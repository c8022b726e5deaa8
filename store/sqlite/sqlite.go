/*
Package sqlite provides the SQLite-backed application store.

PURPOSE:
  Implements every persistence concern of the fund: members, payments,
  donation requests, expenses, announcements, notifications, the recycle
  bin, the activity log, and the collection-configuration settings row.
  The dues engine only sees the narrow dues.PaymentStore / dues.Notifier
  interfaces; everything else is consumed by the API layer directly.

SOFT DELETE:
  Normal-flow deletes move the record into recycle_bin as a JSON payload
  inside one SQL transaction, so a delete is always restorable. Purge is
  the only hard delete.

CASCADE ON CONFIGURATION CHANGE:
  Saving a collection configuration that drops a year or disables a month
  also soft-deletes the payments recorded for the removed periods. This is
  a deliberate admin-facing behavior, not an accident.

ADMIN TOOLING:
  Backup uses VACUUM INTO (consistent copy without locking writers out),
  Restore swaps the database file back in, Reset empties every table and
  reinstates a default configuration.

CONCURRENCY:
  WAL mode + a sync.RWMutex. Readers snapshot the database handle through
  conn() under the read lock; Restore swaps the handle under the write
  lock, so an admin restore never races in-flight requests on the handle.
  Payment increments are read-modify-write under the same write lock, so
  concurrent increments in one process both land; absolute corrections
  are last-write-wins (accepted behavior).

SEE ALSO:
  - dues/store.go: Interface definitions
  - dues/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rangdhanu/fundkeeper/dues"
	"github.com/shopspring/decimal"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Compile-time checks against the engine interfaces.
var (
	_ dues.PaymentStore = (*Store)(nil)
	_ dues.Notifier     = (*Store)(nil)
)

// New opens (and migrates) a store. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.conn().Close()
}

// conn snapshots the database handle under the read lock. Restore swaps
// the handle under the write lock, so every query path must go through
// here; lock-holding methods (IncrementPaymentAmount, Restore, migrate)
// use s.db directly to avoid re-entering the mutex.
func (s *Store) conn() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

func (s *Store) migrate() error {
	schema := `
	-- Members
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'member',
		status TEXT NOT NULL DEFAULT 'pending',
		joined_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_members_status ON members(status);

	-- Payments (monthly dues and one-time donations)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		year INTEGER,
		month INTEGER,
		paid_at TEXT NOT NULL,
		note TEXT,
		recorded_by TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payments_member ON payments(member_id);
	CREATE INDEX IF NOT EXISTS idx_payments_member_period
		ON payments(member_id, year, month) WHERE kind = 'monthly';
	CREATE INDEX IF NOT EXISTS idx_payments_period
		ON payments(year, month) WHERE kind = 'monthly';

	-- Donation requests (staging until an admin decides)
	CREATE TABLE IF NOT EXISTS donation_requests (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		year INTEGER,
		months_json TEXT,
		manual_json TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		note TEXT,
		decided_by TEXT,
		decided_at TEXT,
		reject_reason TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON donation_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_member ON donation_requests(member_id);

	-- Expenses
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT,
		spent_at TEXT NOT NULL,
		note TEXT,
		recorded_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Announcements
	CREATE TABLE IF NOT EXISTS announcements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		author_id TEXT,
		pinned INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Notifications (fire-and-forget member messages)
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_member ON notifications(member_id, read);

	-- Recycle bin (soft-deleted records, restorable)
	CREATE TABLE IF NOT EXISTS recycle_bin (
		id TEXT PRIMARY KEY,
		source_table TEXT NOT NULL,
		record_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		deleted_by TEXT,
		deleted_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recycle_source ON recycle_bin(source_table);

	-- Activity log (append-only admin audit)
	CREATE TABLE IF NOT EXISTS activity_logs (
		id TEXT PRIMARY KEY,
		actor_id TEXT,
		action TEXT NOT NULL,
		detail TEXT,
		created_at TEXT NOT NULL
	);

	-- Settings (collection configuration lives under key 'collection_config')
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const timeFormat = time.RFC3339

// =============================================================================
// MEMBERS
// =============================================================================

type Member struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Role      string // "admin" | "member"
	Status    string // "pending" | "approved" | "rejected"
	JoinedAt  time.Time
	CreatedAt time.Time
}

const (
	MemberPending  = "pending"
	MemberApproved = "approved"
	MemberRejected = "rejected"
)

func (s *Store) SaveMember(ctx context.Context, m Member) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn().ExecContext(ctx, `
		INSERT INTO members (id, name, email, phone, role, status, joined_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email, phone = excluded.phone,
			role = excluded.role, status = excluded.status, joined_at = excluded.joined_at`,
		m.ID, m.Name, m.Email, m.Phone, m.Role, m.Status,
		m.JoinedAt.UTC().Format(timeFormat), m.CreatedAt.UTC().Format(timeFormat))
	return err
}

func (s *Store) GetMember(ctx context.Context, id string) (*Member, error) {
	row := s.conn().QueryRowContext(ctx, `
		SELECT id, name, email, phone, role, status, joined_at, created_at
		FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMembers returns members, optionally filtered by status ("" = all),
// ordered by name.
func (s *Store) ListMembers(ctx context.Context, status string) ([]Member, error) {
	query := `SELECT id, name, email, phone, role, status, joined_at, created_at FROM members`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY name`

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// SetMemberStatus transitions a member's registration status. Approval
// stamps joined_at.
func (s *Store) SetMemberStatus(ctx context.Context, id, status string) error {
	var res sql.Result
	var err error
	if status == MemberApproved {
		res, err = s.conn().ExecContext(ctx,
			`UPDATE members SET status = ?, joined_at = ? WHERE id = ?`,
			status, time.Now().UTC().Format(timeFormat), id)
	} else {
		res, err = s.conn().ExecContext(ctx, `UPDATE members SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dues.ErrMemberNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMember(row scannable) (*Member, error) {
	var m Member
	var email, phone, joined sql.NullString
	var created string
	if err := row.Scan(&m.ID, &m.Name, &email, &phone, &m.Role, &m.Status, &joined, &created); err != nil {
		return nil, err
	}
	m.Email = email.String
	m.Phone = phone.String
	if joined.Valid {
		m.JoinedAt, _ = time.Parse(timeFormat, joined.String)
	}
	m.CreatedAt, _ = time.Parse(timeFormat, created)
	return &m, nil
}

// =============================================================================
// PAYMENTS - dues.PaymentStore implementation
// =============================================================================

func (s *Store) CreatePayment(ctx context.Context, p dues.Payment) error {
	if p.ID == "" {
		p.ID = dues.PaymentID(uuid.NewString())
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	var year, month any
	if p.Kind == dues.KindMonthly {
		year, month = p.Period.Year, int(p.Period.Month)
	}
	_, err := s.conn().ExecContext(ctx, `
		INSERT INTO payments (id, member_id, kind, amount, year, month, paid_at, note, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.MemberID), string(p.Kind), p.Amount.String(),
		year, month, p.PaidAt.UTC().Format(timeFormat), p.Note, p.RecordedBy,
		p.CreatedAt.UTC().Format(timeFormat))
	return err
}

// IncrementPaymentAmount applies a relative update under the store lock so
// concurrent increments both land.
func (s *Store) IncrementPaymentAmount(ctx context.Context, id dues.PaymentID, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current string
	err := s.db.QueryRowContext(ctx, `SELECT amount FROM payments WHERE id = ?`, string(id)).Scan(&current)
	if err == sql.ErrNoRows {
		return dues.ErrPaymentNotFound
	}
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(current)
	if err != nil {
		amount = decimal.Zero // malformed stored amount: treat as zero, don't fail the write
	}
	_, err = s.db.ExecContext(ctx, `UPDATE payments SET amount = ? WHERE id = ?`,
		amount.Add(delta).String(), string(id))
	return err
}

// SetPaymentAmount is the absolute amount correction (admin edit).
// Last-write-wins under concurrent edits.
func (s *Store) SetPaymentAmount(ctx context.Context, id dues.PaymentID, amount decimal.Decimal) error {
	res, err := s.conn().ExecContext(ctx, `UPDATE payments SET amount = ? WHERE id = ?`,
		amount.String(), string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dues.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id dues.PaymentID) (*dues.Payment, error) {
	row := s.conn().QueryRowContext(ctx, `
		SELECT id, member_id, kind, amount, year, month, paid_at, note, recorded_by, created_at
		FROM payments WHERE id = ?`, string(id))
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, f dues.PaymentFilter) ([]dues.Payment, error) {
	query := `SELECT id, member_id, kind, amount, year, month, paid_at, note, recorded_by, created_at
		FROM payments WHERE 1=1`
	args := []any{}
	if f.MemberID != nil {
		query += ` AND member_id = ?`
		args = append(args, string(*f.MemberID))
	}
	if f.Kind != nil {
		query += ` AND kind = ?`
		args = append(args, string(*f.Kind))
	}
	if f.Year != nil {
		query += ` AND year = ?`
		args = append(args, *f.Year)
	}
	if f.Month != nil {
		query += ` AND month = ?`
		args = append(args, int(*f.Month))
	}
	query += ` ORDER BY created_at`

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []dues.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (s *Store) FindMonthlyPayment(ctx context.Context, memberID dues.MemberID, period dues.Period) (*dues.Payment, error) {
	row := s.conn().QueryRowContext(ctx, `
		SELECT id, member_id, kind, amount, year, month, paid_at, note, recorded_by, created_at
		FROM payments
		WHERE member_id = ? AND kind = ? AND year = ? AND month = ?
		ORDER BY created_at LIMIT 1`,
		string(memberID), string(dues.KindMonthly), period.Year, int(period.Month))
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanPayment(row scannable) (*dues.Payment, error) {
	var p dues.Payment
	var id, memberID, kind, amount, paidAt, created string
	var note, recordedBy sql.NullString
	var year, month sql.NullInt64
	if err := row.Scan(&id, &memberID, &kind, &amount, &year, &month, &paidAt, &note, &recordedBy, &created); err != nil {
		return nil, err
	}
	p.ID = dues.PaymentID(id)
	p.MemberID = dues.MemberID(memberID)
	p.Kind = dues.PaymentKind(kind)
	d, err := decimal.NewFromString(amount)
	if err != nil {
		d = decimal.Zero // malformed amounts read as zero rather than failing the matrix
	}
	p.Amount = d
	if year.Valid && month.Valid {
		p.Period = dues.NewPeriod(int(year.Int64), time.Month(month.Int64))
	}
	p.PaidAt, _ = time.Parse(timeFormat, paidAt)
	p.Note = note.String
	p.RecordedBy = recordedBy.String
	p.CreatedAt, _ = time.Parse(timeFormat, created)
	return &p, nil
}

// =============================================================================
// DONATION REQUESTS
// =============================================================================

func (s *Store) SaveDonationRequest(ctx context.Context, r *dues.DonationRequest) error {
	monthsJSON, err := json.Marshal(r.Months)
	if err != nil {
		return err
	}
	manual := map[int]string{}
	for m, v := range r.Manual {
		manual[int(m)] = v.String()
	}
	manualJSON, err := json.Marshal(manual)
	if err != nil {
		return err
	}
	var decidedAt any
	if r.DecidedAt != nil {
		decidedAt = r.DecidedAt.UTC().Format(timeFormat)
	}
	_, err = s.conn().ExecContext(ctx, `
		INSERT INTO donation_requests
			(id, member_id, kind, total_amount, year, months_json, manual_json,
			 status, note, decided_by, decided_at, reject_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status, decided_by = excluded.decided_by,
			decided_at = excluded.decided_at, reject_reason = excluded.reject_reason`,
		string(r.ID), string(r.MemberID), string(r.Kind), r.Total.String(), r.Year,
		string(monthsJSON), string(manualJSON), string(r.Status), r.Note,
		r.DecidedBy, decidedAt, r.RejectReason, r.CreatedAt.UTC().Format(timeFormat))
	return err
}

func (s *Store) GetDonationRequest(ctx context.Context, id dues.RequestID) (*dues.DonationRequest, error) {
	row := s.conn().QueryRowContext(ctx, `
		SELECT id, member_id, kind, total_amount, year, months_json, manual_json,
		       status, note, decided_by, decided_at, reject_reason, created_at
		FROM donation_requests WHERE id = ?`, string(id))
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListDonationRequests(ctx context.Context, status dues.RequestStatus) ([]dues.DonationRequest, error) {
	query := `SELECT id, member_id, kind, total_amount, year, months_json, manual_json,
		status, note, decided_by, decided_at, reject_reason, created_at FROM donation_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []dues.DonationRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func scanRequest(row scannable) (*dues.DonationRequest, error) {
	var r dues.DonationRequest
	var id, memberID, kind, total, status, created string
	var monthsJSON, manualJSON, note, decidedBy, decidedAt, rejectReason sql.NullString
	var year sql.NullInt64
	if err := row.Scan(&id, &memberID, &kind, &total, &year, &monthsJSON, &manualJSON,
		&status, &note, &decidedBy, &decidedAt, &rejectReason, &created); err != nil {
		return nil, err
	}
	r.ID = dues.RequestID(id)
	r.MemberID = dues.MemberID(memberID)
	r.Kind = dues.PaymentKind(kind)
	d, err := decimal.NewFromString(total)
	if err != nil {
		d = decimal.Zero
	}
	r.Total = d
	r.Year = int(year.Int64)
	if monthsJSON.Valid {
		_ = json.Unmarshal([]byte(monthsJSON.String), &r.Months)
	}
	if manualJSON.Valid {
		raw := map[int]string{}
		_ = json.Unmarshal([]byte(manualJSON.String), &raw)
		if len(raw) > 0 {
			r.Manual = make(map[time.Month]decimal.Decimal, len(raw))
			for m, v := range raw {
				if amt, err := decimal.NewFromString(v); err == nil {
					r.Manual[time.Month(m)] = amt
				}
			}
		}
	}
	r.Status = dues.RequestStatus(status)
	r.Note = note.String
	r.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		if t, err := time.Parse(timeFormat, decidedAt.String); err == nil {
			r.DecidedAt = &t
		}
	}
	r.RejectReason = rejectReason.String
	r.CreatedAt, _ = time.Parse(timeFormat, created)
	return &r, nil
}

// =============================================================================
// EXPENSES
// =============================================================================

type Expense struct {
	ID         string
	Title      string
	Amount     decimal.Decimal
	Category   string
	SpentAt    time.Time
	Note       string
	RecordedBy string
	CreatedAt  time.Time
}

func (s *Store) SaveExpense(ctx context.Context, e Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn().ExecContext(ctx, `
		INSERT INTO expenses (id, title, amount, category, spent_at, note, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, amount = excluded.amount, category = excluded.category,
			spent_at = excluded.spent_at, note = excluded.note`,
		e.ID, e.Title, e.Amount.String(), e.Category,
		e.SpentAt.UTC().Format(timeFormat), e.Note, e.RecordedBy,
		e.CreatedAt.UTC().Format(timeFormat))
	return err
}

func (s *Store) GetExpense(ctx context.Context, id string) (*Expense, error) {
	row := s.conn().QueryRowContext(ctx, `
		SELECT id, title, amount, category, spent_at, note, recorded_by, created_at
		FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) ListExpenses(ctx context.Context, year int) ([]Expense, error) {
	query := `SELECT id, title, amount, category, spent_at, note, recorded_by, created_at FROM expenses`
	args := []any{}
	if year > 0 {
		query += ` WHERE spent_at >= ? AND spent_at < ?`
		args = append(args,
			time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format(timeFormat),
			time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC).Format(timeFormat))
	}
	query += ` ORDER BY spent_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func scanExpense(row scannable) (*Expense, error) {
	var e Expense
	var amount, spentAt, created string
	var category, note, recordedBy sql.NullString
	if err := row.Scan(&e.ID, &e.Title, &amount, &category, &spentAt, &note, &recordedBy, &created); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		d = decimal.Zero
	}
	e.Amount = d
	e.Category = category.String
	e.Note = note.String
	e.RecordedBy = recordedBy.String
	e.SpentAt, _ = time.Parse(timeFormat, spentAt)
	e.CreatedAt, _ = time.Parse(timeFormat, created)
	return &e, nil
}

// =============================================================================
// ANNOUNCEMENTS
// =============================================================================

type Announcement struct {
	ID        string
	Title     string
	Body      string
	AuthorID  string
	Pinned    bool
	CreatedAt time.Time
}

func (s *Store) SaveAnnouncement(ctx context.Context, a Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn().ExecContext(ctx, `
		INSERT INTO announcements (id, title, body, author_id, pinned, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, body = excluded.body, pinned = excluded.pinned`,
		a.ID, a.Title, a.Body, a.AuthorID, boolToInt(a.Pinned),
		a.CreatedAt.UTC().Format(timeFormat))
	return err
}

func (s *Store) ListAnnouncements(ctx context.Context) ([]Announcement, error) {
	rows, err := s.conn().QueryContext(ctx, `
		SELECT id, title, body, author_id, pinned, created_at
		FROM announcements ORDER BY pinned DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Announcement
	for rows.Next() {
		var a Announcement
		var authorID sql.NullString
		var pinned int
		var created string
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &authorID, &pinned, &created); err != nil {
			return nil, err
		}
		a.AuthorID = authorID.String
		a.Pinned = pinned != 0
		a.CreatedAt, _ = time.Parse(timeFormat, created)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAnnouncement(ctx context.Context, id string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM announcements WHERE id = ?`, id)
	return err
}

// =============================================================================
// NOTIFICATIONS - dues.Notifier implementation
// =============================================================================

type Notification struct {
	ID        string
	MemberID  string
	Kind      string
	Message   string
	Read      bool
	CreatedAt time.Time
}

func (s *Store) Notify(ctx context.Context, memberID dues.MemberID, kind, message string) error {
	_, err := s.conn().ExecContext(ctx, `
		INSERT INTO notifications (id, member_id, kind, message, read, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		uuid.NewString(), string(memberID), kind, message,
		time.Now().UTC().Format(timeFormat))
	return err
}

func (s *Store) ListNotifications(ctx context.Context, memberID string, unreadOnly bool) ([]Notification, error) {
	query := `SELECT id, member_id, kind, message, read, created_at
		FROM notifications WHERE member_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var read int
		var created string
		if err := rows.Scan(&n.ID, &n.MemberID, &n.Kind, &n.Message, &read, &created); err != nil {
			return nil, err
		}
		n.Read = read != 0
		n.CreatedAt, _ = time.Parse(timeFormat, created)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.conn().ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	return err
}

// HasNotification reports whether a notification of the given kind with the
// given marker substring already exists for a member. The reminder job uses
// this for idempotency per (member, period).
func (s *Store) HasNotification(ctx context.Context, memberID, kind, marker string) (bool, error) {
	var n int
	err := s.conn().QueryRowContext(ctx, `
		SELECT COUNT(1) FROM notifications
		WHERE member_id = ? AND kind = ? AND message LIKE ?`,
		memberID, kind, "%"+marker+"%").Scan(&n)
	return n > 0, err
}

// =============================================================================
// RECYCLE BIN - Soft delete / restore / purge
// =============================================================================

type RecycleEntry struct {
	ID          string
	SourceTable string
	RecordID    string
	Payload     json.RawMessage
	DeletedBy   string
	DeletedAt   time.Time
}

// SoftDeletePayment moves a payment row into the recycle bin in one
// transaction. The original record is always restorable.
func (s *Store) SoftDeletePayment(ctx context.Context, id dues.PaymentID, deletedBy string) error {
	p, err := s.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return dues.ErrPaymentNotFound
	}
	payload, err := json.Marshal(paymentRecord(p))
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertRecycle(ctx, tx, "payments", string(id), payload, deletedBy); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, string(id))
		return err
	})
}

// SoftDeleteExpense moves an expense into the recycle bin.
func (s *Store) SoftDeleteExpense(ctx context.Context, id, deletedBy string) error {
	e, err := s.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("expense %s not found", id)
	}
	payload, err := json.Marshal(map[string]string{
		"id": e.ID, "title": e.Title, "amount": e.Amount.String(), "category": e.Category,
		"spent_at":   e.SpentAt.UTC().Format(timeFormat),
		"note":       e.Note,
		"recorded_by": e.RecordedBy,
		"created_at": e.CreatedAt.UTC().Format(timeFormat),
	})
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertRecycle(ctx, tx, "expenses", id, payload, deletedBy); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
		return err
	})
}

// SoftDeleteMember moves a member into the recycle bin. Their payments
// stay on the books until the member is purged or restored.
func (s *Store) SoftDeleteMember(ctx context.Context, id, deletedBy string) error {
	m, err := s.GetMember(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return dues.ErrMemberNotFound
	}
	payload, err := json.Marshal(map[string]string{
		"id": m.ID, "name": m.Name, "email": m.Email, "phone": m.Phone,
		"role": m.Role, "status": m.Status,
		"joined_at":  m.JoinedAt.UTC().Format(timeFormat),
		"created_at": m.CreatedAt.UTC().Format(timeFormat),
	})
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertRecycle(ctx, tx, "members", id, payload, deletedBy); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
		return err
	})
}

func insertRecycle(ctx context.Context, tx *sql.Tx, table, recordID string, payload []byte, deletedBy string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO recycle_bin (id, source_table, record_id, payload_json, deleted_by, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), table, recordID, string(payload), deletedBy,
		time.Now().UTC().Format(timeFormat))
	return err
}

func (s *Store) ListRecycleBin(ctx context.Context) ([]RecycleEntry, error) {
	rows, err := s.conn().QueryContext(ctx, `
		SELECT id, source_table, record_id, payload_json, deleted_by, deleted_at
		FROM recycle_bin ORDER BY deleted_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecycleEntry
	for rows.Next() {
		var e RecycleEntry
		var payload, deletedAt string
		var deletedBy sql.NullString
		if err := rows.Scan(&e.ID, &e.SourceTable, &e.RecordID, &payload, &deletedBy, &deletedAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		e.DeletedBy = deletedBy.String
		e.DeletedAt, _ = time.Parse(timeFormat, deletedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RestoreFromRecycleBin reinserts the original row and removes the bin
// entry, in one transaction.
func (s *Store) RestoreFromRecycleBin(ctx context.Context, entryID string) error {
	var table, payload string
	err := s.conn().QueryRowContext(ctx,
		`SELECT source_table, payload_json FROM recycle_bin WHERE id = ?`, entryID).
		Scan(&table, &payload)
	if err == sql.ErrNoRows {
		return fmt.Errorf("recycle entry %s not found", entryID)
	}
	if err != nil {
		return err
	}

	fields := map[string]string{}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return fmt.Errorf("corrupt recycle payload: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		switch table {
		case "payments":
			_, err = tx.ExecContext(ctx, `
				INSERT INTO payments (id, member_id, kind, amount, year, month, paid_at, note, recorded_by, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				fields["id"], fields["member_id"], fields["kind"], fields["amount"],
				nullIfEmpty(fields["year"]), nullIfEmpty(fields["month"]),
				fields["paid_at"], fields["note"], fields["recorded_by"], fields["created_at"])
		case "expenses":
			_, err = tx.ExecContext(ctx, `
				INSERT INTO expenses (id, title, amount, category, spent_at, note, recorded_by, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				fields["id"], fields["title"], fields["amount"], fields["category"],
				fields["spent_at"], fields["note"], fields["recorded_by"], fields["created_at"])
		case "members":
			_, err = tx.ExecContext(ctx, `
				INSERT INTO members (id, name, email, phone, role, status, joined_at, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				fields["id"], fields["name"], fields["email"], fields["phone"],
				fields["role"], fields["status"], fields["joined_at"], fields["created_at"])
		default:
			return fmt.Errorf("unknown recycle source table %q", table)
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM recycle_bin WHERE id = ?`, entryID)
		return err
	})
}

// PurgeRecycleEntry hard-deletes a bin entry. The only irreversible delete.
func (s *Store) PurgeRecycleEntry(ctx context.Context, entryID string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM recycle_bin WHERE id = ?`, entryID)
	return err
}

// =============================================================================
// ACTIVITY LOG
// =============================================================================

type ActivityEntry struct {
	ID        string
	ActorID   string
	Action    string
	Detail    string
	CreatedAt time.Time
}

func (s *Store) LogActivity(ctx context.Context, actorID, action, detail string) error {
	_, err := s.conn().ExecContext(ctx, `
		INSERT INTO activity_logs (id, actor_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), actorID, action, detail,
		time.Now().UTC().Format(timeFormat))
	return err
}

func (s *Store) ListActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn().QueryContext(ctx, `
		SELECT id, actor_id, action, detail, created_at
		FROM activity_logs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var actorID, detail sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &actorID, &e.Action, &detail, &created); err != nil {
			return nil, err
		}
		e.ActorID = actorID.String
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(timeFormat, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// COLLECTION CONFIGURATION (settings table)
// =============================================================================

const configKey = "collection_config"

// LoadConfig returns the stored collection configuration, defaulting to
// the current year with all months when none has been saved yet.
func (s *Store) LoadConfig(ctx context.Context) (dues.CollectionConfig, error) {
	var value string
	err := s.conn().QueryRowContext(ctx,
		`SELECT value_json FROM settings WHERE key = ?`, configKey).Scan(&value)
	if err == sql.ErrNoRows {
		return dues.DefaultConfig(time.Now().UTC().Year()), nil
	}
	if err != nil {
		return dues.CollectionConfig{}, err
	}
	var cfg dues.CollectionConfig
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return dues.CollectionConfig{}, fmt.Errorf("corrupt collection config: %w", err)
	}
	return cfg, nil
}

// SaveConfig persists the configuration and cascades: payments recorded
// for periods no longer active are soft-deleted into the recycle bin.
// Returns how many payments the cascade removed.
func (s *Store) SaveConfig(ctx context.Context, cfg dues.CollectionConfig, updatedBy string) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	kind := dues.KindMonthly
	payments, err := s.ListPayments(ctx, dues.PaymentFilter{Kind: &kind})
	if err != nil {
		return 0, err
	}
	var orphaned []dues.PaymentID
	for _, p := range payments {
		if !cfg.IsActive(p.Period) {
			orphaned = append(orphaned, p.ID)
		}
	}

	value, err := json.Marshal(cfg)
	if err != nil {
		return 0, err
	}
	_, err = s.conn().ExecContext(ctx, `
		INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`,
		configKey, string(value), time.Now().UTC().Format(timeFormat))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range orphaned {
		if err := s.SoftDeletePayment(ctx, id, updatedBy); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// =============================================================================
// ADMIN TOOLING - Backup / Restore / Reset
// =============================================================================

// Backup writes a consistent copy of the database to destPath via
// VACUUM INTO. The destination must not already exist.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("backup destination %s already exists", destPath)
	}
	_, err := s.conn().ExecContext(ctx, `VACUUM INTO ?`, destPath)
	return err
}

// Restore replaces the live database with a backup file and reopens the
// connection. Not available for :memory: stores.
func (s *Store) Restore(ctx context.Context, backupPath string) error {
	if s.path == ":memory:" {
		return fmt.Errorf("restore is not supported for in-memory databases")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close before restore: %w", err)
	}
	if err := copyFile(backupPath, s.path); err != nil {
		return fmt.Errorf("copy backup: %w", err)
	}
	// WAL sidecars from the old database would shadow the restored file.
	os.Remove(s.path + "-wal")
	os.Remove(s.path + "-shm")

	db, err := sql.Open("sqlite3", s.path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("reopen after restore: %w", err)
	}
	s.db = db
	return s.migrate()
}

// Reset empties every table and reinstates a default configuration.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"payments", "members", "donation_requests", "expenses",
		"announcements", "notifications", "recycle_bin", "activity_logs", "settings",
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
				return err
			}
		}
		value, err := json.Marshal(dues.DefaultConfig(time.Now().UTC().Year()))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)`,
			configKey, string(value), time.Now().UTC().Format(timeFormat))
		return err
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func paymentRecord(p *dues.Payment) map[string]string {
	rec := map[string]string{
		"id":          string(p.ID),
		"member_id":   string(p.MemberID),
		"kind":        string(p.Kind),
		"amount":      p.Amount.String(),
		"paid_at":     p.PaidAt.UTC().Format(timeFormat),
		"note":        p.Note,
		"recorded_by": p.RecordedBy,
		"created_at":  p.CreatedAt.UTC().Format(timeFormat),
	}
	if p.Kind == dues.KindMonthly && p.Period.Valid() {
		rec["year"] = fmt.Sprintf("%d", p.Period.Year)
		rec["month"] = fmt.Sprintf("%d", int(p.Period.Month))
	}
	return rec
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
