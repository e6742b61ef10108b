package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-checkout-orders/internal/orders"
	"github.com/shopspring/decimal"
)

// --- in-memory collaborators ---

type fakeCatalog map[string]orders.Product

func (c fakeCatalog) GetProduct(_ context.Context, id string) (orders.Product, error) {
	p, ok := c[id]
	if !ok {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, nil
}

func seededCatalog() fakeCatalog {
	return fakeCatalog{
		"kit-essencial": {
			ID:          "kit-essencial",
			Title:       "Kit Essencial AquiComigo",
			Description: "1 Tag AquiComigo + Cabo Magnético + App Grátis",
			Price:       decimal.RequireFromString("197.90"),
			Currency:    "BRL",
		},
	}
}

type memStore struct {
	mu        sync.Mutex
	orders    map[string]orders.Order
	createErr error
	updateErr error
	creates   int
}

func newMemStore() *memStore { return &memStore{orders: map[string]orders.Order{}} }

func (m *memStore) CreateOrder(_ context.Context, o orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.orders[o.ID]; ok {
		return fmt.Errorf("%w: %s", orders.ErrAlreadyExists, o.ID)
	}
	m.orders[o.ID] = o
	return nil
}

func (m *memStore) GetOrderByID(_ context.Context, id string) (orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, id string, status orders.Status, observedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return false, m.updateErr
	}
	o, ok := m.orders[id]
	if !ok {
		return false, orders.ErrOrderNotFound
	}
	if o.StatusObservedAt != nil && o.StatusObservedAt.After(observedAt) {
		return false, nil
	}
	o.Status = status
	o.StatusObservedAt = &observedAt
	o.UpdatedAt = observedAt
	m.orders[id] = o
	return true, nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type fakeGateway struct {
	mu        sync.Mutex
	intent    Intent
	createErr error
	payments  map[string]PaymentDetail
	fetchErr  error

	requests []IntentRequest
	fetches  int
}

func (g *fakeGateway) CreateIntent(_ context.Context, req IntentRequest) (Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return Intent{}, g.createErr
	}
	return g.intent, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, id string) (PaymentDetail, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.fetchErr != nil {
		return PaymentDetail{}, g.fetchErr
	}
	p, ok := g.payments[id]
	if !ok {
		return PaymentDetail{}, fmt.Errorf("%w: payment %s not found", ErrGateway, id)
	}
	return p, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type recordedEvent struct {
	kind    string
	orderID string
	status  orders.Status
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *fakeEvents) OrderCreated(_ context.Context, o orders.Order, _ orders.Product) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{kind: orders.EventOrderCreated, orderID: o.ID, status: o.Status})
}

func (e *fakeEvents) OrderStatusChanged(_ context.Context, orderID, _ string, status orders.Status, _ time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{kind: orders.EventOrderStatusChanged, orderID: orderID, status: status})
}

type fakeRecorder struct {
	mu            sync.Mutex
	checkouts     map[string]int
	notifications map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{checkouts: map[string]int{}, notifications: map[string]int{}}
}

func (r *fakeRecorder) ObserveCheckout(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkouts[result]++
}

func (r *fakeRecorder) ObserveNotification(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[outcome]++
}
