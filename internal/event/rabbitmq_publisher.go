package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"loan-engine/internal/infrastructure/monitoring"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publisherAppID = "loan-engine"

type EventPublisher interface {
	PublishLoanProcessed(ctx context.Context, event LoanProcessedEvent) error
	PublishLoanExtended(ctx context.Context, event LoanExtendedEvent) error
	PublishLoanFiguresCorrected(ctx context.Context, event LoanFiguresCorrectedEvent) error
}

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitMQEventPublisher struct {
	openChannel  func() (amqpChannel, error)
	exchangeName string
	logger       *slog.Logger
}

func NewRabbitMQEventPublisher(conn *amqp.Connection, exchangeName string, logger *slog.Logger) (EventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection cannot be nil")
	}
	return newRabbitMQEventPublisher(func() (amqpChannel, error) { return conn.Channel() }, exchangeName, logger)
}

func newRabbitMQEventPublisher(openChannel func() (amqpChannel, error), exchangeName string, logger *slog.Logger) (*RabbitMQEventPublisher, error) {
	if exchangeName == "" {
		return nil, fmt.Errorf("RabbitMQ exchange name cannot be empty")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	tempCh, err := openChannel()
	if err != nil {
		return nil, fmt.Errorf("failed to open temporary channel for exchange declaration: %w", err)
	}
	defer tempCh.Close()

	err = tempCh.ExchangeDeclare(
		exchangeName,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}
	logger.Info("Ensured RabbitMQ exchange exists", "exchange", exchangeName, "type", amqp.ExchangeTopic)

	return &RabbitMQEventPublisher{
		openChannel:  openChannel,
		exchangeName: exchangeName,
		logger:       logger.With("component", "RabbitMQEventPublisher", "exchange", exchangeName),
	}, nil
}

func (p *RabbitMQEventPublisher) PublishLoanProcessed(ctx context.Context, event LoanProcessedEvent) error {
	return p.publish(ctx, RoutingKeyLoanProcessed, event.EventID, event)
}

func (p *RabbitMQEventPublisher) PublishLoanExtended(ctx context.Context, event LoanExtendedEvent) error {
	return p.publish(ctx, RoutingKeyLoanExtended, event.EventID, event)
}

func (p *RabbitMQEventPublisher) PublishLoanFiguresCorrected(ctx context.Context, event LoanFiguresCorrectedEvent) error {
	return p.publish(ctx, RoutingKeyLoanFiguresCorrected, event.EventID, event)
}

func (p *RabbitMQEventPublisher) publish(ctx context.Context, routingKey, messageID string, payload interface{}) (err error) {
	logCtx := p.logger.With(slog.String("routingKey", routingKey), slog.String("messageId", messageID))
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		monitoring.RecordEventPublished(routingKey, status)
	}()

	channel, err := p.openChannel()
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to open RabbitMQ channel", slog.Any("error", err))
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	body, err := json.Marshal(payload)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to marshal event payload to JSON", slog.Any("error", err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	logCtx.DebugContext(ctx, "Publishing message", "bodySize", len(body))

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    messageID,
			Body:         body,
			AppId:        publisherAppID,
		},
	)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to publish message to RabbitMQ", slog.Any("error", err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logCtx.InfoContext(ctx, "Successfully published message")
	return nil
}

// NoopEventPublisher logs events instead of sending them. It is used when RabbitMQ
// is disabled.
type NoopEventPublisher struct {
	logger *slog.Logger
}

func NewNoopEventPublisher(logger *slog.Logger) *NoopEventPublisher {
	return &NoopEventPublisher{logger: logger.With("component", "NoopEventPublisher")}
}

func (p *NoopEventPublisher) PublishLoanProcessed(ctx context.Context, event LoanProcessedEvent) error {
	p.logger.DebugContext(ctx, "Event publishing disabled, dropping event", "routingKey", RoutingKeyLoanProcessed, "loanID", event.LoanID)
	return nil
}

func (p *NoopEventPublisher) PublishLoanExtended(ctx context.Context, event LoanExtendedEvent) error {
	p.logger.DebugContext(ctx, "Event publishing disabled, dropping event", "routingKey", RoutingKeyLoanExtended, "loanID", event.LoanID)
	return nil
}

func (p *NoopEventPublisher) PublishLoanFiguresCorrected(ctx context.Context, event LoanFiguresCorrectedEvent) error {
	p.logger.DebugContext(ctx, "Event publishing disabled, dropping event", "routingKey", RoutingKeyLoanFiguresCorrected, "loanID", event.LoanID)
	return nil
}
