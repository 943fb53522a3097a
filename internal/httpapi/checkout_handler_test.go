package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meatline/internal/checkout/service"
	"meatline/internal/domain"
)

type checkoutMock struct {
	resp *service.CheckoutResponse
	err  error
	got  *service.CheckoutRequest
}

func (m *checkoutMock) InitiateCheckout(_ context.Context, req *service.CheckoutRequest) (*service.CheckoutResponse, error) {
	m.got = req
	return m.resp, m.err
}

func checkoutBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(InitiateCheckoutRequestDTO{
		OrderType:      "pickup",
		IdempotencyKey: "key-1",
		AgreedTerms:    true,
		AgreedRefund:   true,
		AgreedPrivacy:  true,
	})
	require.NoError(t, err)
	return body
}

func TestInitiateCheckout_Success(t *testing.T) {
	mock := &checkoutMock{resp: &service.CheckoutResponse{
		CheckoutID:  "chk-1",
		Status:      domain.CheckoutStatusCompleted,
		OrderID:     42,
		OrderNumber: "ORD-2025-0042",
		OrderDate:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}}
	handler := NewCheckoutHandler(mock, 5*time.Second)

	rec := httptest.NewRecorder()
	handler.InitiateCheckout(rec, authedRequest(http.MethodPost, "/api/checkout", checkoutBody(t)))

	require.Equal(t, http.StatusCreated, rec.Code)

	var got CheckoutResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "chk-1", got.CheckoutID)
	assert.Equal(t, "COMPLETED", got.Status)
	assert.Equal(t, int64(42), got.OrderID)
	assert.Equal(t, "2025-03-10T09:00:00Z", got.OrderDate)

	require.NotNil(t, mock.got)
	assert.Equal(t, "user-1", mock.got.UserID)
	assert.Equal(t, domain.FulfillmentPickup, mock.got.OrderType)
}

func TestInitiateCheckout_MissingIdempotencyKey(t *testing.T) {
	handler := NewCheckoutHandler(&checkoutMock{}, 5*time.Second)

	body, _ := json.Marshal(InitiateCheckoutRequestDTO{OrderType: "pickup"})
	rec := httptest.NewRecorder()
	handler.InitiateCheckout(rec, authedRequest(http.MethodPost, "/api/checkout", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitiateCheckout_EmptyCart(t *testing.T) {
	handler := NewCheckoutHandler(&checkoutMock{err: service.ErrEmptyCart}, 5*time.Second)

	rec := httptest.NewRecorder()
	handler.InitiateCheckout(rec, authedRequest(http.MethodPost, "/api/checkout", checkoutBody(t)))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInitiateCheckout_PartialFailure(t *testing.T) {
	mock := &checkoutMock{
		resp: &service.CheckoutResponse{
			CheckoutID:  "chk-1",
			Status:      domain.CheckoutStatusPartiallyFailed,
			OrderID:     42,
			OrderNumber: "ORD-2025-0042",
			FailedItems: []int64{2},
		},
		err: &service.PartialFailureError{OrderID: 42, OrderNumber: "ORD-2025-0042", FailedItems: []int64{2}},
	}
	handler := NewCheckoutHandler(mock, 5*time.Second)

	rec := httptest.NewRecorder()
	handler.InitiateCheckout(rec, authedRequest(http.MethodPost, "/api/checkout", checkoutBody(t)))

	require.Equal(t, http.StatusMultiStatus, rec.Code)

	var got CheckoutResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "PARTIALLY_FAILED", got.Status)
	assert.Equal(t, []int64{2}, got.FailedItems)
}

func TestInitiateCheckout_UpstreamDown(t *testing.T) {
	handler := NewCheckoutHandler(&checkoutMock{err: assert.AnError}, 5*time.Second)

	rec := httptest.NewRecorder()
	handler.InitiateCheckout(rec, authedRequest(http.MethodPost, "/api/checkout", checkoutBody(t)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestInitiateCheckout_Unauthenticated(t *testing.T) {
	handler := NewCheckoutHandler(&checkoutMock{}, 5*time.Second)

	rec := httptest.NewRecorder()
	handler.InitiateCheckout(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
