// Package store provides an in-memory PaymentStore for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rangdhanu/fundkeeper/dues"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	payments map[dues.PaymentID]dues.Payment
	order    []dues.PaymentID

	// Notifications captured for assertions.
	Notifications []CapturedNotification

	// FailCreateFor simulates a store failure for specific periods,
	// exercising the partial-failure commit path.
	FailCreateFor map[dues.Period]error
}

type CapturedNotification struct {
	MemberID dues.MemberID
	Kind     string
	Message  string
}

func NewMemory() *Memory {
	return &Memory{
		payments: make(map[dues.PaymentID]dues.Payment),
	}
}

func (m *Memory) CreatePayment(_ context.Context, p dues.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.Kind == dues.KindMonthly {
		if err, ok := m.FailCreateFor[p.Period]; ok {
			return err
		}
	}
	m.payments[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *Memory) IncrementPaymentAmount(_ context.Context, id dues.PaymentID, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return dues.ErrPaymentNotFound
	}
	p.Amount = p.Amount.Add(delta)
	m.payments[id] = p
	return nil
}

func (m *Memory) ListPayments(_ context.Context, f dues.PaymentFilter) ([]dues.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []dues.Payment
	for _, id := range m.order {
		p := m.payments[id]
		if matches(p, f) {
			result = append(result, p)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) FindMonthlyPayment(_ context.Context, memberID dues.MemberID, period dues.Period) (*dues.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.order {
		p := m.payments[id]
		if p.IsMonthlyFor(memberID, period) {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) Notify(_ context.Context, memberID dues.MemberID, kind, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, CapturedNotification{MemberID: memberID, Kind: kind, Message: message})
	return nil
}

func matches(p dues.Payment, f dues.PaymentFilter) bool {
	if f.MemberID != nil && p.MemberID != *f.MemberID {
		return false
	}
	if f.Kind != nil && p.Kind != *f.Kind {
		return false
	}
	if f.Year != nil && (p.Kind != dues.KindMonthly || p.Period.Year != *f.Year) {
		return false
	}
	if f.Month != nil && (p.Kind != dues.KindMonthly || p.Period.Month != *f.Month) {
		return false
	}
	return true
}
