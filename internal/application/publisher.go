package application

import (
	"context"

	"github.com/Kilat-Marketplace/service-booking/internal/contract"
	"github.com/Kilat-Marketplace/service-booking/pkg/cloudevent"
	"go.uber.org/zap"
)

// EventPublisher delivers CloudEvents to a topic. Both the Kafka producer
// and the RabbitMQ publisher satisfy it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event cloudevent.Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishEvent does nothing.
func (NopPublisher) PublishEvent(context.Context, string, cloudevent.Event) error { return nil }

// eventEmitter wraps a publisher so failures are logged and never reach the caller.
type eventEmitter struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func (e eventEmitter) emit(ctx context.Context, eventType, subject string, data interface{}) {
	ce, err := cloudevent.New(contract.Source, eventType, data)
	if err != nil {
		e.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := e.publisher.PublishEvent(ctx, contract.TopicBookingEvents, ce.WithSubject(subject)); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("topic", contract.TopicBookingEvents),
			zap.String("event_type", eventType),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
