//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/adapter"
	"oproz-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so logs do not clutter test
// output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---------------- in-memory payment record repo ----------------

type memPaymentRepo struct {
	mu        sync.Mutex
	byID      map[string]*model.PaymentRecord
	insertErr error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{byID: make(map[string]*model.PaymentRecord)}
}

func (m *memPaymentRepo) Insert(ctx context.Context, qx repository.Tx, p *model.PaymentRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if e.TransactionID == p.TransactionID {
			return domain.ErrAlreadyExists
		}
		if p.GatewayPaymentID != nil && e.GatewayPaymentID != nil && *e.GatewayPaymentID == *p.GatewayPaymentID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByGatewayOrderID(ctx context.Context, qx repository.Tx, orderID string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.GatewayOrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindByGatewayPaymentID(ctx context.Context, qx repository.Tx, paymentID string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.GatewayPaymentID != nil && *p.GatewayPaymentID == paymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) ActivateIfPending(ctx context.Context, qx repository.Tx, id string, gatewayPaymentID, method string, paidAt, subStart, subEnd time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	for _, e := range m.byID {
		if e.ID != id && e.GatewayPaymentID != nil && *e.GatewayPaymentID == gatewayPaymentID {
			return false, domain.ErrAlreadyExists
		}
	}
	p.Status = model.PaymentStatusSuccess
	p.GatewayPaymentID = &gatewayPaymentID
	if method != "" {
		pm := model.PaymentMethod(method)
		p.Method = &pm
	}
	p.PaymentDate = paidAt
	p.SubscriptionStart = &subStart
	p.SubscriptionEnd = &subEnd
	p.UpdatedAt = paidAt
	return true, nil
}

func (m *memPaymentRepo) UpdateStatusIfPending(ctx context.Context, qx repository.Tx, id string, status model.PaymentStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	p.UpdatedAt = at
	return true, nil
}

func (m *memPaymentRepo) MarkRefunded(ctx context.Context, qx repository.Tx, id string, note string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status != model.PaymentStatusSuccess {
		return false, nil
	}
	p.Status = model.PaymentStatusRefunded
	p.Notes = note
	p.UpdatedAt = at
	return true, nil
}

func (m *memPaymentRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string) ([]*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range m.byID {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) FindActiveByUser(ctx context.Context, qx repository.Tx, userID string, now time.Time) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.PaymentRecord
	for _, p := range m.byID {
		if p.UserID != userID || !p.CoversInstant(now) {
			continue
		}
		if best == nil || p.SubscriptionEnd.After(*best.SubscriptionEnd) {
			best = p
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, qx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range m.byID {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) SumByPeriod(ctx context.Context, qx repository.Tx, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, p := range m.byID {
		if p.Status == model.PaymentStatusSuccess {
			sum += p.FinalAmount
		}
	}
	return sum, nil
}

// ---------------- in-memory plan repo ----------------

type memPlanRepo struct {
	mu   sync.Mutex
	byID map[string]*model.SubscriptionPlan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{byID: make(map[string]*model.SubscriptionPlan)}
}

func (m *memPlanRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) ListActive(ctx context.Context, qx repository.Tx) ([]*model.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SubscriptionPlan
	for _, p := range m.byID {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPlanRepo) Save(ctx context.Context, qx repository.Tx, plan *model.SubscriptionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *plan
	m.byID[plan.ID] = &cp
	return nil
}

func (m *memPlanRepo) Delete(ctx context.Context, qx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = false
	return nil
}

// ---------------- in-memory offer repo ----------------

type memOfferRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Offer
}

func newMemOfferRepo() *memOfferRepo {
	return &memOfferRepo{byID: make(map[string]*model.Offer)}
}

func (m *memOfferRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOfferRepo) FindByCode(ctx context.Context, qx repository.Tx, code string) (*model.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.Code == code {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memOfferRepo) Save(ctx context.Context, qx repository.Tx, offer *model.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *offer
	cp.Code = model.NormalizeOfferCode(cp.Code)
	m.byID[offer.ID] = &cp
	return nil
}

func (m *memOfferRepo) ConsumeUsage(ctx context.Context, qx repository.Tx, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	if o.MaxUsageCount != nil && o.UsedCount >= *o.MaxUsageCount {
		return false, nil
	}
	o.UsedCount++
	return true, nil
}

// ---------------- in-memory webhook event repo ----------------

type memEventRepo struct {
	mu   sync.Mutex
	byID map[string]*model.WebhookEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{byID: make(map[string]*model.WebhookEvent)}
}

func (m *memEventRepo) Insert(ctx context.Context, qx repository.Tx, ev *model.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ev
	m.byID[ev.ID] = &cp
	return nil
}

func (m *memEventRepo) ListPending(ctx context.Context, qx repository.Tx, limit int) ([]*model.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WebhookEvent
	for _, ev := range m.byID {
		if ev.Status == model.WebhookEventStatusPending {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memEventRepo) SetStatus(ctx context.Context, qx repository.Tx, id string, status model.WebhookEventStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	ev.Status = status
	ev.ProcessedAt = &at
	return nil
}

func (m *memEventRepo) BumpAttempts(ctx context.Context, qx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.byID[id]; ok {
		ev.Attempts++
	}
	return nil
}

func (m *memEventRepo) ExpireOlderThan(ctx context.Context, qx repository.Tx, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, ev := range m.byID {
		if ev.Status == model.WebhookEventStatusPending && ev.ReceivedAt.Before(cutoff) {
			ev.Status = model.WebhookEventStatusExpired
			n++
		}
	}
	return n, nil
}

// ---------------- gateway / notifier / tx manager mocks ----------------

type mockGateway struct {
	CreateOrderFunc         func(ctx context.Context, amount int64, currency, receipt string) (string, error)
	VerifySignatureFunc     func(orderID, paymentID, signature string) (bool, error)
	FetchPaymentFunc        func(ctx context.Context, paymentID string) (adapter.PaymentDetails, error)
	ListPaymentsByOrderFunc func(ctx context.Context, orderID string) ([]adapter.PaymentDetails, error)
	RefundFunc              func(ctx context.Context, paymentID string, amount int64, reason string) (adapter.RefundResult, error)

	createdOrders int
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	g.createdOrders++
	if g.CreateOrderFunc != nil {
		return g.CreateOrderFunc(ctx, amount, currency, receipt)
	}
	return "order_mock_1", nil
}

func (g *mockGateway) VerifySignature(orderID, paymentID, signature string) (bool, error) {
	if g.VerifySignatureFunc != nil {
		return g.VerifySignatureFunc(orderID, paymentID, signature)
	}
	return signature == "valid", nil
}

func (g *mockGateway) FetchPayment(ctx context.Context, paymentID string) (adapter.PaymentDetails, error) {
	if g.FetchPaymentFunc != nil {
		return g.FetchPaymentFunc(ctx, paymentID)
	}
	return adapter.PaymentDetails{PaymentID: paymentID, Status: "captured"}, nil
}

func (g *mockGateway) ListPaymentsByOrder(ctx context.Context, orderID string) ([]adapter.PaymentDetails, error) {
	if g.ListPaymentsByOrderFunc != nil {
		return g.ListPaymentsByOrderFunc(ctx, orderID)
	}
	return nil, nil
}

func (g *mockGateway) Refund(ctx context.Context, paymentID string, amount int64, reason string) (adapter.RefundResult, error) {
	if g.RefundFunc != nil {
		return g.RefundFunc(ctx, paymentID, amount, reason)
	}
	return adapter.RefundResult{RefundID: "rfnd_mock_1", Status: "processed", Amount: amount}, nil
}

type mockNotifier struct {
	mu        sync.Mutex
	succeeded []*model.PaymentRecord
	failed    []*model.PaymentRecord
}

func (n *mockNotifier) PaymentSucceeded(ctx context.Context, rec *model.PaymentRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.succeeded = append(n.succeeded, rec)
}

func (n *mockNotifier) PaymentFailed(ctx context.Context, rec *model.PaymentRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, rec)
}

// mockTxManager runs the callback without a real transaction; the in-memory
// repos are already atomic per call.
type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, qx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}
