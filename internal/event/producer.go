package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	pkgkafka "github.com/wbuist/mgu-api-integration/pkg/kafka"
)

// Kafka topic constants for policy workflow events.
const (
	TopicBasketConfirmed  = "policy.basket.confirmed"
	TopicPaymentCompleted = "policy.payment.completed"
	TopicPaymentFailed    = "policy.payment.failed"
)

// Aggregate type constant.
const AggregateTypeBasket = "basket"

// Source identifier for events originating from the quote flow service.
const SourceQuoteFlow = "quoteflow"

// BasketConfirmedData is the payload for a basket.confirmed event.
type BasketConfirmedData struct {
	BasketID   int    `json:"basket_id"`
	CustomerID int    `json:"customer_id"`
	Outcome    string `json:"outcome"`
}

// PaymentCompletedData is the payload for a payment.completed event.
type PaymentCompletedData struct {
	BasketID   int    `json:"basket_id"`
	CustomerID int    `json:"customer_id"`
	Outcome    string `json:"outcome"`
}

// PaymentFailedData is the payload for a payment.failed event. These mark
// confirmed baskets whose payment is still outstanding.
type PaymentFailedData struct {
	BasketID      int    `json:"basket_id"`
	CustomerID    int    `json:"customer_id"`
	FailureReason string `json:"failure_reason"`
}

// Publisher is what the orchestrator publishes through; the kafka-backed
// Producer satisfies it, and tests substitute a recorder.
type Publisher interface {
	PublishBasketConfirmed(ctx context.Context, basketID, customerID int, outcome string) error
	PublishPaymentCompleted(ctx context.Context, basketID, customerID int, outcome string) error
	PublishPaymentFailed(ctx context.Context, basketID, customerID int, reason string) error
}

// Producer publishes policy workflow events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the quote flow service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishBasketConfirmed publishes a basket.confirmed event.
func (p *Producer) PublishBasketConfirmed(ctx context.Context, basketID, customerID int, outcome string) error {
	data := BasketConfirmedData{BasketID: basketID, CustomerID: customerID, Outcome: outcome}

	event, err := pkgkafka.NewEvent(TopicBasketConfirmed, strconv.Itoa(basketID), AggregateTypeBasket, SourceQuoteFlow, data)
	if err != nil {
		return fmt.Errorf("create basket.confirmed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicBasketConfirmed, event); err != nil {
		return fmt.Errorf("publish basket.confirmed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published basket.confirmed event",
		slog.Int("basket_id", basketID),
		slog.Int("customer_id", customerID),
	)

	return nil
}

// PublishPaymentCompleted publishes a payment.completed event.
func (p *Producer) PublishPaymentCompleted(ctx context.Context, basketID, customerID int, outcome string) error {
	data := PaymentCompletedData{BasketID: basketID, CustomerID: customerID, Outcome: outcome}

	event, err := pkgkafka.NewEvent(TopicPaymentCompleted, strconv.Itoa(basketID), AggregateTypeBasket, SourceQuoteFlow, data)
	if err != nil {
		return fmt.Errorf("create payment.completed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPaymentCompleted, event); err != nil {
		return fmt.Errorf("publish payment.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published payment.completed event",
		slog.Int("basket_id", basketID),
		slog.Int("customer_id", customerID),
	)

	return nil
}

// PublishPaymentFailed publishes a payment.failed event.
func (p *Producer) PublishPaymentFailed(ctx context.Context, basketID, customerID int, reason string) error {
	data := PaymentFailedData{BasketID: basketID, CustomerID: customerID, FailureReason: reason}

	event, err := pkgkafka.NewEvent(TopicPaymentFailed, strconv.Itoa(basketID), AggregateTypeBasket, SourceQuoteFlow, data)
	if err != nil {
		return fmt.Errorf("create payment.failed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPaymentFailed, event); err != nil {
		return fmt.Errorf("publish payment.failed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published payment.failed event",
		slog.Int("basket_id", basketID),
		slog.String("failure_reason", reason),
	)

	return nil
}
