package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"meatline/internal/domain"
)

// RepoInterface is what the checkout sequencer needs from storage.
type RepoInterface interface {
	GetSessionByIdempotencyKey(ctx context.Context, key string) (*domain.CheckoutSession, error)
	CreateSession(ctx context.Context, session *domain.CheckoutSession) error
	SetOrderCreated(ctx context.Context, sessionID string, orderID int64, orderNumber string, orderDate time.Time) error
	CompleteSession(ctx context.Context, sessionID string, eventPayload []byte) error
	MarkPartiallyFailed(ctx context.Context, sessionID string, failedItems []int64, reason string) error
	MarkFailed(ctx context.Context, sessionID string, reason string) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, eventID int64) error
	GetStuckSessions(ctx context.Context) ([]*domain.CheckoutSession, error)
}

const sessionColumns = `id, idempotency_key, user_id, order_type, status, cart_snapshot,
	COALESCE(order_id, 0), COALESCE(order_number, ''), COALESCE(order_date, 'epoch'::timestamptz),
	COALESCE(failed_items, '[]'::jsonb), COALESCE(failure_reason, ''), created_at, updated_at`

func (r *Repository) GetSessionByIdempotencyKey(ctx context.Context, key string) (*domain.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE idempotency_key = $1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session by idempotency key: %w", err)
	}
	return session, nil
}

func (r *Repository) CreateSession(ctx context.Context, session *domain.CheckoutSession) error {
	query := `INSERT INTO checkout_sessions (id, idempotency_key, user_id, order_type, status, cart_snapshot, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.IdempotencyKey,
		session.UserID,
		session.OrderType.String(),
		session.Status.String(),
		[]byte(session.CartSnapshot),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

func (r *Repository) SetOrderCreated(ctx context.Context, sessionID string, orderID int64, orderNumber string, orderDate time.Time) error {
	query := `UPDATE checkout_sessions
	          SET status = $2, order_id = $3, order_number = $4, order_date = $5, updated_at = NOW()
	          WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		sessionID, domain.CheckoutStatusOrderCreated.String(), orderID, orderNumber, orderDate)
	if err != nil {
		return fmt.Errorf("set order created: %w", err)
	}
	return requireRow(result)
}

// CompleteSession flips the session to COMPLETED and writes the outbox event
// in one transaction, so a published completion always has a matching
// session state.
func (r *Repository) CompleteSession(ctx context.Context, sessionID string, eventPayload []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete session tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE checkout_sessions SET status = $2, updated_at = NOW() WHERE id = $1`,
		sessionID, domain.CheckoutStatusCompleted.String())
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkout_outbox (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		sessionID, "checkout.completed", eventPayload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return tx.Commit()
}

func (r *Repository) MarkPartiallyFailed(ctx context.Context, sessionID string, failedItems []int64, reason string) error {
	itemsJSON, err := json.Marshal(failedItems)
	if err != nil {
		return fmt.Errorf("marshal failed items: %w", err)
	}

	query := `UPDATE checkout_sessions
	          SET status = $2, failed_items = $3, failure_reason = $4, updated_at = NOW()
	          WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		sessionID, domain.CheckoutStatusPartiallyFailed.String(), itemsJSON, reason)
	if err != nil {
		return fmt.Errorf("mark session partially failed: %w", err)
	}
	return requireRow(result)
}

func (r *Repository) MarkFailed(ctx context.Context, sessionID string, reason string) error {
	query := `UPDATE checkout_sessions
	          SET status = $2, failure_reason = $3, updated_at = NOW()
	          WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		sessionID, domain.CheckoutStatusFailed.String(), reason)
	if err != nil {
		return fmt.Errorf("mark session failed: %w", err)
	}
	return requireRow(result)
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM checkout_outbox
	          WHERE processed_at IS NULL
	          ORDER BY id
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		event := &OutboxEvent{}
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.EventType, &event.Payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, eventID int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkout_outbox SET processed_at = NOW() WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return requireRow(result)
}

// GetStuckSessions finds completed sessions that never got their outbox row.
// That cannot happen through CompleteSession, but a recovered backup or a
// manual status fix can leave one behind.
func (r *Repository) GetStuckSessions(ctx context.Context) ([]*domain.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + `
	          FROM checkout_sessions s
	          WHERE s.status = $1
	            AND s.updated_at < NOW() - INTERVAL '1 minute'
	            AND NOT EXISTS (SELECT 1 FROM checkout_outbox o WHERE o.aggregate_id = s.id)`

	rows, err := r.db.QueryContext(ctx, query, domain.CheckoutStatusCompleted.String())
	if err != nil {
		return nil, fmt.Errorf("query stuck sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.CheckoutSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stuck session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

// InsertOutboxEvent writes an event row outside CompleteSession, used by the
// recovery tick.
func (r *Repository) InsertOutboxEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO checkout_outbox (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		aggregateID, eventType, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.CheckoutSession, error) {
	var (
		session     domain.CheckoutSession
		orderType   string
		status      string
		snapshot    []byte
		failedItems []byte
	)
	err := row.Scan(
		&session.ID,
		&session.IdempotencyKey,
		&session.UserID,
		&orderType,
		&status,
		&snapshot,
		&session.OrderID,
		&session.OrderNumber,
		&session.OrderDate,
		&failedItems,
		&session.FailureReason,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.OrderType = domain.Fulfillment(orderType)
	session.Status = domain.CheckoutStatus(status)
	session.CartSnapshot = snapshot
	if err := json.Unmarshal(failedItems, &session.FailedItems); err != nil {
		return nil, fmt.Errorf("unmarshal failed items: %w", err)
	}
	return &session, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
