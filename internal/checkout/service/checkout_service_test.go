package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meatline/internal/domain"
	"meatline/internal/orderapi"
)

func cartWith(userID string, ids ...int64) *domain.Cart {
	cart := &domain.Cart{UserID: userID}
	for _, id := range ids {
		cart.Items = append(cart.Items, domain.CartLine{
			ProductID: id,
			Name:      "test cut",
			Price:     decimal.NewFromInt(50),
			Spec:      "5 lb pack",
			Quantity:  2,
		})
	}
	return cart
}

func validRequest(key string) *CheckoutRequest {
	return &CheckoutRequest{
		UserID:         "user-1",
		OrderType:      domain.FulfillmentPickup,
		IdempotencyKey: key,
		AgreedTerms:    true,
		AgreedRefund:   true,
		AgreedPrivacy:  true,
	}
}

func createdOrder() *orderapi.CreatedOrder {
	return &orderapi.CreatedOrder{
		ID:          42,
		OrderNumber: "ORD-2025-0042",
		OrderDate:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestInitiateCheckout_HappyPath(t *testing.T) {
	repo := newMockRepo()
	carts := &mockCarts{cart: cartWith("user-1", 1, 2)}
	orders := &mockOrderAPI{order: createdOrder()}
	svc := NewCheckoutService(repo, carts, orders)

	resp, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))

	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, resp.Status)
	assert.Equal(t, int64(42), resp.OrderID)
	assert.Equal(t, "ORD-2025-0042", resp.OrderNumber)
	assert.True(t, carts.cleared)
	assert.Len(t, repo.events, 1)
}

func TestInitiateCheckout_HeaderBeforeItems(t *testing.T) {
	repo := newMockRepo()
	carts := &mockCarts{cart: cartWith("user-1", 1, 2, 3)}
	orders := &mockOrderAPI{order: createdOrder()}
	svc := NewCheckoutService(repo, carts, orders)

	_, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))

	require.NoError(t, err)
	assert.Equal(t, 1, orders.orderCalls)
	assert.Len(t, orders.itemCalls, 3)
	assert.True(t, orders.headerBefore)
}

func TestInitiateCheckout_EmptyCart(t *testing.T) {
	svc := NewCheckoutService(newMockRepo(), &mockCarts{}, &mockOrderAPI{order: createdOrder()})

	resp, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, resp)
}

func TestInitiateCheckout_AgreementsRequired(t *testing.T) {
	orders := &mockOrderAPI{order: createdOrder()}
	svc := NewCheckoutService(newMockRepo(), &mockCarts{cart: cartWith("user-1", 1)}, orders)

	req := validRequest("key-1")
	req.AgreedRefund = false

	_, err := svc.InitiateCheckout(context.Background(), req)

	assert.ErrorIs(t, err, ErrAgreementsNotChecked)
	assert.Zero(t, orders.orderCalls)
}

func TestInitiateCheckout_InvalidFulfillment(t *testing.T) {
	svc := NewCheckoutService(newMockRepo(), &mockCarts{cart: cartWith("user-1", 1)}, &mockOrderAPI{})

	req := validRequest("key-1")
	req.OrderType = "drone_drop"

	_, err := svc.InitiateCheckout(context.Background(), req)

	assert.ErrorIs(t, err, ErrInvalidFulfillment)
}

func TestInitiateCheckout_MissingUser(t *testing.T) {
	svc := NewCheckoutService(newMockRepo(), &mockCarts{cart: cartWith("user-1", 1)}, &mockOrderAPI{})

	req := validRequest("key-1")
	req.UserID = ""

	_, err := svc.InitiateCheckout(context.Background(), req)

	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestInitiateCheckout_DuplicateKeyReplaysRecordedOutcome(t *testing.T) {
	repo := newMockRepo()
	carts := &mockCarts{cart: cartWith("user-1", 1)}
	orders := &mockOrderAPI{order: createdOrder()}
	svc := NewCheckoutService(repo, carts, orders)

	first, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))
	require.NoError(t, err)

	second, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))
	require.NoError(t, err)

	assert.Equal(t, first.CheckoutID, second.CheckoutID)
	assert.Equal(t, domain.CheckoutStatusCompleted, second.Status)
	assert.Equal(t, 1, orders.orderCalls)
}

func TestInitiateCheckout_ReplayOfPartialFailureEchoesPartialFailure(t *testing.T) {
	repo := newMockRepo()
	carts := &mockCarts{cart: cartWith("user-1", 1, 2)}
	orders := &mockOrderAPI{order: createdOrder(), failItems: map[int64]error{2: orderapi.ErrItemRejected}}
	svc := NewCheckoutService(repo, carts, orders)

	_, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))
	var partial *PartialFailureError
	require.ErrorAs(t, err, &partial)

	resp, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))

	partial = nil
	require.ErrorAs(t, err, &partial)
	require.NotNil(t, resp)
	assert.Equal(t, domain.CheckoutStatusPartiallyFailed, resp.Status)
	assert.Equal(t, []int64{2}, partial.FailedItems)
	assert.Equal(t, 1, orders.orderCalls)
}

func TestInitiateCheckout_ReplayOfFailureStaysFailed(t *testing.T) {
	repo := newMockRepo()
	carts := &mockCarts{cart: cartWith("user-1", 1)}
	orders := &mockOrderAPI{orderErr: orderapi.ErrOrderRejected}
	svc := NewCheckoutService(repo, carts, orders)

	_, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))
	require.Error(t, err)

	resp, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 1, orders.orderCalls)
}

func TestInitiateCheckout_OrderHeaderRejected(t *testing.T) {
	repo := newMockRepo()
	carts := &mockCarts{cart: cartWith("user-1", 1)}
	orders := &mockOrderAPI{orderErr: orderapi.ErrOrderRejected}
	svc := NewCheckoutService(repo, carts, orders)

	resp, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Empty(t, orders.itemCalls)
	assert.False(t, carts.cleared)

	stored, err := repo.GetSessionByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusFailed, stored.Status)
}

func TestInitiateCheckout_PartialFailureKeepsFailedItemsInCart(t *testing.T) {
	repo := newMockRepo()
	carts := &mockCarts{cart: cartWith("user-1", 1, 2, 3)}
	orders := &mockOrderAPI{
		order:     createdOrder(),
		failItems: map[int64]error{2: errors.New("item out of stock")},
	}
	svc := NewCheckoutService(repo, carts, orders)

	resp, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))

	var partial *PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []int64{2}, partial.FailedItems)
	assert.Equal(t, int64(42), partial.OrderID)

	require.NotNil(t, resp)
	assert.Equal(t, domain.CheckoutStatusPartiallyFailed, resp.Status)
	assert.Equal(t, []int64{2}, resp.FailedItems)

	// Only the accepted lines leave the cart
	assert.False(t, carts.cleared)
	assert.ElementsMatch(t, []int64{1, 3}, carts.removed)

	stored, errGet := repo.GetSessionByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, errGet)
	assert.Equal(t, domain.CheckoutStatusPartiallyFailed, stored.Status)
	assert.Equal(t, []int64{2}, stored.FailedItems)
}

func TestInitiateCheckout_PartialFailureEmitsNoCompletedEvent(t *testing.T) {
	repo := newMockRepo()
	carts := &mockCarts{cart: cartWith("user-1", 1, 2)}
	orders := &mockOrderAPI{
		order:     createdOrder(),
		failItems: map[int64]error{1: errors.New("rejected")},
	}
	svc := NewCheckoutService(repo, carts, orders)

	_, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))

	var partial *PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Empty(t, repo.events)
}

func TestInitiateCheckout_RaceOnIdempotencyKeyReloadsWinner(t *testing.T) {
	repo := newMockRepo()
	winner := &domain.CheckoutSession{
		ID:             "winner-session",
		IdempotencyKey: "key-1",
		UserID:         "user-1",
		OrderType:      domain.FulfillmentPickup,
		Status:         domain.CheckoutStatusCompleted,
		OrderID:        42,
	}
	require.NoError(t, repo.CreateSession(context.Background(), winner))
	// Losing the insert race: the key lookup misses first, then the
	// insert collides and the winner is reloaded.
	repo.missFirstLookup = true

	carts := &mockCarts{cart: cartWith("user-1", 1)}
	orders := &mockOrderAPI{order: createdOrder()}
	svc := NewCheckoutService(repo, carts, orders)

	resp, err := svc.InitiateCheckout(context.Background(), validRequest("key-1"))

	require.NoError(t, err)
	assert.Equal(t, "winner-session", resp.CheckoutID)
	assert.Zero(t, orders.orderCalls)
}
