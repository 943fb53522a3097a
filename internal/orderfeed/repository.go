// Package orderfeed keeps a local mirror of orders the upstream Order API
// accepted, fed from the checkout-completed topic. Order history and the
// admin dashboard read from this mirror instead of the upstream service.
package orderfeed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"meatline/internal/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order already recorded")
)

type OrderRepository interface {
	RecordOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RecordOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO order_feed (order_id, order_number, order_date, user_id, order_type, total_amount, items, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.OrderID,
		order.OrderNumber,
		order.OrderDate,
		order.UserID,
		order.OrderType.String(),
		order.TotalAmount,
		itemsJSON)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

const orderColumns = `order_id, order_number, order_date, user_id, order_type, total_amount, items, created_at`

func (r *Repository) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM order_feed WHERE order_id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM order_feed WHERE user_id = $1 ORDER BY order_date DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order     domain.Order
		orderType string
		itemsJSON []byte
	)
	err := row.Scan(
		&order.OrderID,
		&order.OrderNumber,
		&order.OrderDate,
		&order.UserID,
		&orderType,
		&order.TotalAmount,
		&itemsJSON,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.OrderType = domain.Fulfillment(orderType)
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}
