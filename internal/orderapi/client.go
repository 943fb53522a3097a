// Package orderapi is the HTTP client for the upstream Order API, the
// system that owns order records. Both endpoints sit behind circuit
// breakers so a struggling upstream fails fast instead of tying up
// checkout requests.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"meatline/internal/domain"
)

var (
	ErrOrderRejected = errors.New("order api rejected the order")
	ErrItemRejected  = errors.New("order api rejected the order item")
)

type CreateOrderRequest struct {
	UserID           string                    `json:"user_id"`
	TotalAmount      decimal.Decimal           `json:"total_amount"`
	OrderType        string                    `json:"order_type"`
	DeliveryFee      decimal.Decimal           `json:"delivery_fee"`
	ExpressPickupFee decimal.Decimal           `json:"express_pickup_fee"`
	CartItems        []domain.CartSnapshotItem `json:"cart_items"`
}

type CreatedOrder struct {
	ID          int64     `json:"id"`
	OrderNumber string    `json:"order_number"`
	OrderDate   time.Time `json:"order_date"`
}

type CreateOrderItemRequest struct {
	OrderID   int64           `json:"order_id"`
	ItemID    int64           `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderEnvelope struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    *CreatedOrder `json:"data"`
}

type itemEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	orderBreaker *gobreaker.CircuitBreaker[*CreatedOrder]
	itemBreaker  *gobreaker.CircuitBreaker[struct{}]
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		orderBreaker: gobreaker.NewCircuitBreaker[*CreatedOrder](settings("order-api-orders")),
		itemBreaker:  gobreaker.NewCircuitBreaker[struct{}](settings("order-api-order-items")),
	}
}

// CreateOrder posts the order header. The returned id is required before any
// item can be posted, which is what forces the header call ahead of the item
// fan-out.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreatedOrder, error) {
	return c.orderBreaker.Execute(func() (*CreatedOrder, error) {
		var envelope orderEnvelope
		if err := c.post(ctx, "/orders", req, &envelope); err != nil {
			return nil, err
		}
		if !envelope.Success || envelope.Data == nil {
			return nil, fmt.Errorf("%w: %s", ErrOrderRejected, envelope.Message)
		}
		return envelope.Data, nil
	})
}

// CreateOrderItem posts a single line of an already created order.
func (c *Client) CreateOrderItem(ctx context.Context, req CreateOrderItemRequest) error {
	_, err := c.itemBreaker.Execute(func() (struct{}, error) {
		var envelope itemEnvelope
		if err := c.post(ctx, "/order-items", req, &envelope); err != nil {
			return struct{}{}, err
		}
		if !envelope.Success {
			return struct{}{}, fmt.Errorf("%w: %s", ErrItemRejected, envelope.Message)
		}
		return struct{}{}, nil
	})
	return err
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("order api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("order api returned %d: %s", resp.StatusCode, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode order api response: %w", err)
	}
	return nil
}
