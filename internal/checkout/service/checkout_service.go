// Package service drives order submission: one header write against the
// Order API, then one item write per cart line, then the cart cleanup that
// matches what actually landed upstream.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"meatline/internal/checkout/repository"
	"meatline/internal/domain"
	"meatline/internal/orderapi"
	"meatline/internal/pricing"
)

type CheckoutRequest struct {
	UserID         string
	OrderType      domain.Fulfillment
	IdempotencyKey string
	AgreedTerms    bool
	AgreedRefund   bool
	AgreedPrivacy  bool
}

type CheckoutResponse struct {
	CheckoutID  string
	Status      domain.CheckoutStatus
	OrderID     int64
	OrderNumber string
	OrderDate   time.Time
	Snapshot    *domain.CartSnapshot
	FailedItems []int64
}

// CartReader is the slice of the cart service the sequencer needs.
type CartReader interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	Clear(ctx context.Context, userID string) error
	RemoveMany(ctx context.Context, userID string, productIDs []int64) error
}

// OrderAPI is the upstream order writer.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req orderapi.CreateOrderRequest) (*orderapi.CreatedOrder, error)
	CreateOrderItem(ctx context.Context, req orderapi.CreateOrderItemRequest) error
}

type CheckoutService interface {
	InitiateCheckout(ctx context.Context, request *CheckoutRequest) (*CheckoutResponse, error)
}

type CheckoutServiceImpl struct {
	repo   repository.RepoInterface
	carts  CartReader
	orders OrderAPI
}

func NewCheckoutService(repo repository.RepoInterface, carts CartReader, orders OrderAPI) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		repo:   repo,
		carts:  carts,
		orders: orders,
	}
}

func (s *CheckoutServiceImpl) InitiateCheckout(ctx context.Context, request *CheckoutRequest) (*CheckoutResponse, error) {
	if err := validate(request); err != nil {
		return nil, err
	}

	// Replays of the same idempotency key return the recorded outcome
	// without touching the Order API again.
	existing, err := s.repo.GetSessionByIdempotencyKey(ctx, request.IdempotencyKey)
	if err != nil && !errors.Is(err, repository.ErrIdempotencyKeyNotFound) {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		log.Printf("duplicate checkout request idempotency_key = %v checkout_id = %v status = %v",
			request.IdempotencyKey, existing.ID, existing.Status)
		return replayOutcome(existing)
	}

	cart, err := s.carts.GetCart(ctx, request.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	quote := pricing.Compute(cart.Items, request.OrderType)
	snapshot := pricing.Snapshot(cart.Items, quote, time.Now())
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}

	session := &domain.CheckoutSession{
		ID:             uuid.NewString(),
		IdempotencyKey: request.IdempotencyKey,
		UserID:         request.UserID,
		OrderType:      request.OrderType,
		Status:         domain.CheckoutStatusInitiated,
		CartSnapshot:   snapshotJSON,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			// Lost the race against a concurrent identical request.
			raced, err2 := s.repo.GetSessionByIdempotencyKey(ctx, request.IdempotencyKey)
			if err2 != nil {
				return nil, fmt.Errorf("failed to load racing session: %w", err2)
			}
			return replayOutcome(raced)
		}
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	order, err := s.createOrder(ctx, session, &snapshot, request)
	if err != nil {
		return nil, err
	}

	return s.createItems(ctx, session, &snapshot, order)
}

// createOrder posts the order header. Nothing item-related may run until
// this returns the server-assigned order id.
func (s *CheckoutServiceImpl) createOrder(
	ctx context.Context,
	session *domain.CheckoutSession,
	snapshot *domain.CartSnapshot,
	request *CheckoutRequest) (*orderapi.CreatedOrder, error) {

	if !domain.CanTransitionTo(session.Status, domain.CheckoutStatusOrderCreated) {
		return nil, ErrIllegalTransition
	}

	order, err := s.orders.CreateOrder(ctx, orderapi.CreateOrderRequest{
		UserID:           request.UserID,
		TotalAmount:      snapshot.TotalAmount,
		OrderType:        request.OrderType.String(),
		DeliveryFee:      snapshot.DeliveryFee,
		ExpressPickupFee: snapshot.ExpressPickupFee,
		CartItems:        snapshot.Items,
	})
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, session.ID, err.Error()); markErr != nil {
			log.Printf("failed to mark session %v failed: %v", session.ID, markErr)
		}
		return nil, fmt.Errorf("order creation failed: %w", err)
	}

	session.Status = domain.CheckoutStatusOrderCreated
	session.OrderID = order.ID
	session.OrderNumber = order.OrderNumber
	session.OrderDate = order.OrderDate
	if err := s.repo.SetOrderCreated(ctx, session.ID, order.ID, order.OrderNumber, order.OrderDate); err != nil {
		return nil, fmt.Errorf("failed to record created order: %w", err)
	}
	return order, nil
}

// createItems fans out one write per snapshot item. All writes are fired
// together and awaited together; their relative completion order does not
// matter, each lands an independent row.
func (s *CheckoutServiceImpl) createItems(
	ctx context.Context,
	session *domain.CheckoutSession,
	snapshot *domain.CartSnapshot,
	order *orderapi.CreatedOrder) (*CheckoutResponse, error) {

	itemErrs := make([]error, len(snapshot.Items))
	var g errgroup.Group
	for i, item := range snapshot.Items {
		g.Go(func() error {
			itemErrs[i] = s.orders.CreateOrderItem(ctx, orderapi.CreateOrderItemRequest{
				OrderID:   order.ID,
				ItemID:    item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
			return itemErrs[i]
		})
	}
	firstErr := g.Wait()

	if firstErr == nil {
		return s.complete(ctx, session, snapshot, order)
	}
	return s.partiallyFail(ctx, session, snapshot, order, itemErrs)
}

func (s *CheckoutServiceImpl) complete(
	ctx context.Context,
	session *domain.CheckoutSession,
	snapshot *domain.CartSnapshot,
	order *orderapi.CreatedOrder) (*CheckoutResponse, error) {

	if !domain.CanTransitionTo(session.Status, domain.CheckoutStatusCompleted) {
		return nil, ErrIllegalTransition
	}

	payload, err := completedEventPayload(session, snapshot, order, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CompleteSession(ctx, session.ID, payload); err != nil {
		return nil, fmt.Errorf("failed to complete checkout session: %w", err)
	}
	session.Status = domain.CheckoutStatusCompleted

	if err := s.carts.Clear(ctx, session.UserID); err != nil {
		// The order is placed; a stale cart is an inconvenience, not a
		// checkout failure.
		log.Printf("failed to clear cart for user %v after checkout %v: %v", session.UserID, session.ID, err)
	}

	return &CheckoutResponse{
		CheckoutID:  session.ID,
		Status:      session.Status,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OrderDate:   order.OrderDate,
		Snapshot:    snapshot,
	}, nil
}

// partiallyFail records which items the upstream rejected, drops only the
// accepted lines from the cart and hands the failed ids back for a retry.
func (s *CheckoutServiceImpl) partiallyFail(
	ctx context.Context,
	session *domain.CheckoutSession,
	snapshot *domain.CartSnapshot,
	order *orderapi.CreatedOrder,
	itemErrs []error) (*CheckoutResponse, error) {

	if !domain.CanTransitionTo(session.Status, domain.CheckoutStatusPartiallyFailed) {
		return nil, ErrIllegalTransition
	}

	var accepted, failed []int64
	for i, item := range snapshot.Items {
		if itemErrs[i] != nil {
			log.Printf("order item failed order_id = %v item_id = %v: %v", order.ID, item.ProductID, itemErrs[i])
			failed = append(failed, item.ProductID)
			continue
		}
		accepted = append(accepted, item.ProductID)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })

	if err := s.repo.MarkPartiallyFailed(ctx, session.ID, failed, "one or more order items were rejected"); err != nil {
		return nil, fmt.Errorf("failed to mark session partially failed: %w", err)
	}
	session.Status = domain.CheckoutStatusPartiallyFailed
	session.FailedItems = failed

	if err := s.carts.RemoveMany(ctx, session.UserID, accepted); err != nil {
		log.Printf("failed to trim cart for user %v after partial checkout %v: %v", session.UserID, session.ID, err)
	}

	return &CheckoutResponse{
		CheckoutID:  session.ID,
		Status:      session.Status,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OrderDate:   order.OrderDate,
		Snapshot:    snapshot,
		FailedItems: failed,
	}, &PartialFailureError{OrderID: order.ID, OrderNumber: order.OrderNumber, FailedItems: failed}
}

func validate(request *CheckoutRequest) error {
	if request.UserID == "" {
		return ErrNotAuthenticated
	}
	if !request.OrderType.Valid() {
		return ErrInvalidFulfillment
	}
	if !request.AgreedTerms || !request.AgreedRefund || !request.AgreedPrivacy {
		return ErrAgreementsNotChecked
	}
	return nil
}

// replayOutcome re-issues a recorded session as the same outcome the
// original attempt produced, so a replayed idempotency key surfaces the
// same way as the first submission did.
func replayOutcome(session *domain.CheckoutSession) (*CheckoutResponse, error) {
	switch session.Status {
	case domain.CheckoutStatusPartiallyFailed:
		return responseFromSession(session), &PartialFailureError{
			OrderID:     session.OrderID,
			OrderNumber: session.OrderNumber,
			FailedItems: session.FailedItems,
		}
	case domain.CheckoutStatusFailed:
		return nil, fmt.Errorf("order creation failed: %s", session.FailureReason)
	}
	return responseFromSession(session), nil
}

func responseFromSession(session *domain.CheckoutSession) *CheckoutResponse {
	resp := &CheckoutResponse{
		CheckoutID:  session.ID,
		Status:      session.Status,
		OrderID:     session.OrderID,
		OrderNumber: session.OrderNumber,
		OrderDate:   session.OrderDate,
		FailedItems: session.FailedItems,
	}
	if len(session.CartSnapshot) > 0 {
		var snapshot domain.CartSnapshot
		if err := json.Unmarshal(session.CartSnapshot, &snapshot); err == nil {
			resp.Snapshot = &snapshot
		}
	}
	return resp
}

func completedEventPayload(
	session *domain.CheckoutSession,
	snapshot *domain.CartSnapshot,
	order *orderapi.CreatedOrder,
	completedAt time.Time) ([]byte, error) {

	payload := map[string]interface{}{
		"checkout_id":  session.ID,
		"user_id":      session.UserID,
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"order_date":   order.OrderDate,
		"order_type":   session.OrderType.String(),
		"items":        snapshot.Items,
		"total_amount": snapshot.TotalAmount,
		"currency":     snapshot.Currency,
		"completed_at": completedAt,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout payload: %w", err)
	}
	return payloadJSON, nil
}
