package orderapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder_Success(t *testing.T) {
	var got CreateOrderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"id":           42,
				"order_number": "ORD-2025-0042",
				"order_date":   "2025-03-10T09:00:00Z",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:      "user-1",
		TotalAmount: decimal.RequireFromString("129.99"),
		OrderType:   "delivery",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, "ORD-2025-0042", order.OrderNumber)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "delivery", got.OrderType)
}

func TestCreateOrder_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "user not allowed to order",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{UserID: "user-1"})

	assert.ErrorIs(t, err, ErrOrderRejected)
	assert.Contains(t, err.Error(), "user not allowed to order")
	assert.Nil(t, order)
}

func TestCreateOrder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{UserID: "user-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "order api returned 500")
}

func TestCreateOrderItem_Success(t *testing.T) {
	var got CreateOrderItemRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/order-items", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	err := client.CreateOrderItem(context.Background(), CreateOrderItemRequest{
		OrderID:   42,
		ItemID:    7,
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("79.99"),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), got.OrderID)
	assert.Equal(t, int64(7), got.ItemID)
	assert.Equal(t, 2, got.Quantity)
}

func TestCreateOrderItem_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "item discontinued",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	err := client.CreateOrderItem(context.Background(), CreateOrderItemRequest{OrderID: 42, ItemID: 7})

	assert.ErrorIs(t, err, ErrItemRejected)
}

func TestCreateOrder_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	for i := 0; i < 5; i++ {
		_, err := client.CreateOrder(context.Background(), CreateOrderRequest{UserID: "user-1"})
		require.Error(t, err)
	}

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{UserID: "user-1"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
