package publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"meatline/internal/checkout/repository"
	"meatline/internal/domain"
)

// Topic carries completed-checkout events to downstream consumers (order
// read model, reporting).
const Topic = "checkout-completed"

type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	repo         *repository.Repository
	writer       *kafka.Writer
}

func NewOutboxPoller(repo *repository.Repository, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		eventTick:    time.Second,
		recoveryTick: 5 * time.Second,
		repo:         repo,
		writer:       w,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverStuckSessions(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, 100)
	if err != nil {
		log.Printf("failed to fetch outbox events: %v", err)
		return
	}

	for _, event := range events {
		errPublish := p.publish(ctx, event)
		if errPublish != nil {
			log.Printf("failed to publish event id = %v: %v", event.ID, errPublish)
			continue
		}

		errMark := p.repo.MarkEventAsProcessed(ctx, event.ID)
		if errMark != nil {
			log.Printf("failed to mark event as processed id = %v: %v", event.ID, errMark)
			continue
		}
	}
}

// recoverStuckSessions re-creates the outbox row for completed sessions that
// are missing one, so no completed checkout silently drops off the feed.
func (p *OutboxPoller) recoverStuckSessions(ctx context.Context) {
	sessions, err := p.repo.GetStuckSessions(ctx)
	if err != nil {
		log.Printf("failed to get stuck sessions: %v", err)
		return
	}
	for _, session := range sessions {
		log.Printf("recovering stuck session: %v", session.ID)

		var snapshot domain.CartSnapshot
		if err := json.Unmarshal(session.CartSnapshot, &snapshot); err != nil {
			log.Printf("failed to unmarshal cart snapshot for session %v: %v", session.ID, err)
			continue
		}

		payload := map[string]interface{}{
			"checkout_id":  session.ID,
			"user_id":      session.UserID,
			"order_id":     session.OrderID,
			"order_number": session.OrderNumber,
			"order_date":   session.OrderDate,
			"order_type":   session.OrderType.String(),
			"items":        snapshot.Items,
			"total_amount": snapshot.TotalAmount,
			"currency":     snapshot.Currency,
			"completed_at": session.UpdatedAt,
		}

		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			log.Printf("failed to marshal checkout payload in poller: %v", err)
			continue
		}

		if err := p.repo.InsertOutboxEvent(ctx, session.ID, "checkout.completed", payloadJSON); err != nil {
			log.Printf("failed to recover session %v: %v", session.ID, err)
			continue
		}

		log.Printf("session recovered: %v", session.ID)
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // checkout_id for ordering
		Value: event.Payload,             // Already JSON from database
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}
