package service

import (
	"context"
	"sync"
	"time"

	"meatline/internal/checkout/repository"
	"meatline/internal/domain"
	"meatline/internal/orderapi"
)

// mockRepo implements repository.RepoInterface in memory.
type mockRepo struct {
	m        sync.Mutex
	sessions map[string]*domain.CheckoutSession // by idempotency key
	events   [][]byte

	createErr       error
	completeErr     error
	missFirstLookup bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{sessions: make(map[string]*domain.CheckoutSession)}
}

func (r *mockRepo) GetSessionByIdempotencyKey(_ context.Context, key string) (*domain.CheckoutSession, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if r.missFirstLookup {
		r.missFirstLookup = false
		return nil, repository.ErrIdempotencyKeyNotFound
	}
	s, ok := r.sessions[key]
	if !ok {
		return nil, repository.ErrIdempotencyKeyNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *mockRepo) CreateSession(_ context.Context, session *domain.CheckoutSession) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.sessions[session.IdempotencyKey]; ok {
		return repository.ErrDuplicateIdempotencyKey
	}
	copied := *session
	r.sessions[session.IdempotencyKey] = &copied
	return nil
}

func (r *mockRepo) SetOrderCreated(_ context.Context, sessionID string, orderID int64, orderNumber string, orderDate time.Time) error {
	r.m.Lock()
	defer r.m.Unlock()
	s := r.byID(sessionID)
	if s == nil {
		return repository.ErrSessionNotFound
	}
	s.Status = domain.CheckoutStatusOrderCreated
	s.OrderID = orderID
	s.OrderNumber = orderNumber
	s.OrderDate = orderDate
	return nil
}

func (r *mockRepo) CompleteSession(_ context.Context, sessionID string, eventPayload []byte) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.completeErr != nil {
		return r.completeErr
	}
	s := r.byID(sessionID)
	if s == nil {
		return repository.ErrSessionNotFound
	}
	s.Status = domain.CheckoutStatusCompleted
	r.events = append(r.events, eventPayload)
	return nil
}

func (r *mockRepo) MarkPartiallyFailed(_ context.Context, sessionID string, failedItems []int64, reason string) error {
	r.m.Lock()
	defer r.m.Unlock()
	s := r.byID(sessionID)
	if s == nil {
		return repository.ErrSessionNotFound
	}
	s.Status = domain.CheckoutStatusPartiallyFailed
	s.FailedItems = failedItems
	s.FailureReason = reason
	return nil
}

func (r *mockRepo) MarkFailed(_ context.Context, sessionID string, reason string) error {
	r.m.Lock()
	defer r.m.Unlock()
	s := r.byID(sessionID)
	if s == nil {
		return repository.ErrSessionNotFound
	}
	s.Status = domain.CheckoutStatusFailed
	s.FailureReason = reason
	return nil
}

func (r *mockRepo) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	return nil, nil
}

func (r *mockRepo) MarkEventAsProcessed(context.Context, int64) error {
	return nil
}

func (r *mockRepo) GetStuckSessions(context.Context) ([]*domain.CheckoutSession, error) {
	return nil, nil
}

func (r *mockRepo) byID(sessionID string) *domain.CheckoutSession {
	for _, s := range r.sessions {
		if s.ID == sessionID {
			return s
		}
	}
	return nil
}

// mockCarts implements CartReader.
type mockCarts struct {
	m       sync.Mutex
	cart    *domain.Cart
	getErr  error
	cleared bool
	removed []int64
}

func (c *mockCarts) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	if c.cart == nil {
		return &domain.Cart{UserID: userID}, nil
	}
	return c.cart, nil
}

func (c *mockCarts) Clear(context.Context, string) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.cleared = true
	return nil
}

func (c *mockCarts) RemoveMany(_ context.Context, _ string, productIDs []int64) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.removed = append(c.removed, productIDs...)
	return nil
}

// mockOrderAPI records the call sequence and can fail chosen items.
type mockOrderAPI struct {
	m            sync.Mutex
	order        *orderapi.CreatedOrder
	orderErr     error
	failItems    map[int64]error
	orderCalls   int
	itemCalls    []int64
	headerBefore bool // true when every item call came after the header call
}

func (o *mockOrderAPI) CreateOrder(context.Context, orderapi.CreateOrderRequest) (*orderapi.CreatedOrder, error) {
	o.m.Lock()
	defer o.m.Unlock()
	o.orderCalls++
	if o.orderErr != nil {
		return nil, o.orderErr
	}
	o.headerBefore = true
	return o.order, nil
}

func (o *mockOrderAPI) CreateOrderItem(_ context.Context, req orderapi.CreateOrderItemRequest) error {
	o.m.Lock()
	defer o.m.Unlock()
	if o.orderCalls == 0 {
		o.headerBefore = false
	}
	o.itemCalls = append(o.itemCalls, req.ItemID)
	if err, ok := o.failItems[req.ItemID]; ok {
		return err
	}
	return nil
}
