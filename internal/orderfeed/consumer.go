package orderfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"meatline/internal/domain"
)

// eventItem mirrors the Kafka payload item shape from the checkout outbox.
type eventItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"product_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CheckoutCompletedEvent struct {
	CheckoutID  string          `json:"checkout_id"`
	UserID      string          `json:"user_id"`
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	OrderDate   time.Time       `json:"order_date"`
	OrderType   string          `json:"order_type"`
	Items       []eventItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
}

type Consumer struct {
	repo   OrderRepository
	reader *kafka.Reader
}

func NewConsumer(repo OrderRepository, topic string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "order-feed",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{repo: repo, reader: reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consumeOne(ctx)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) consumeOne(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("error reading message: %v", err)
		}
		return
	}

	if err := c.handle(ctx, m.Value); err != nil {
		log.Printf("error handling checkout event: %v", err)
	}
}

func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	var event CheckoutCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal checkout event: %w", err)
	}
	if event.OrderID == 0 || event.UserID == "" {
		return fmt.Errorf("checkout event missing order_id or user_id")
	}

	order := &domain.Order{
		OrderID:     event.OrderID,
		OrderNumber: event.OrderNumber,
		OrderDate:   event.OrderDate,
		UserID:      event.UserID,
		OrderType:   domain.Fulfillment(event.OrderType),
		TotalAmount: event.TotalAmount,
		Items:       make([]domain.OrderItem, 0, len(event.Items)),
	}
	for _, item := range event.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	err := c.repo.RecordOrder(ctx, order)
	if errors.Is(err, ErrDuplicateOrder) {
		// Redelivery after a crash between insert and offset commit.
		return nil
	}
	return err
}
