package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Kilat-Marketplace/service-booking/pkg/cloudevent"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends CloudEvents to a RabbitMQ topic exchange. The Kafka topic
// name passed to PublishEvent is combined with the event type into the
// routing key, e.g. "marketplace.booking.events.booking.completed".
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewPublisher dials RabbitMQ and declares a durable topic exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// RoutingKey returns the key an event is published under.
func RoutingKey(topic, eventType string) string {
	return topic + "." + eventType
}

// PublishEvent publishes the envelope as a persistent JSON message.
func (p *Publisher) PublishEvent(ctx context.Context, topic string, event cloudevent.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(topic, event.Type), false, false, amqp.Publishing{
		ContentType:  "application/cloudevents+json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.Time,
		Body:         body,
	})
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
