package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMax     = 30 * time.Second
)

// MessageHandler processes one message. A returned error makes the consumer
// retry the same message with backoff; later messages wait behind it.
type MessageHandler func(ctx context.Context, msg kafkago.Message) error

// Consumer reads a single topic as part of a consumer group.
type Consumer struct {
	reader       *kafkago.Reader
	topic        string
	logger       *zap.Logger
	retryInitial time.Duration
	retryMax     time.Duration
}

// NewConsumer creates a group consumer for topic.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		topic:        topic,
		logger:       logger,
		retryInitial: defaultRetryInitial,
		retryMax:     defaultRetryMax,
	}
}

// WithRetryInterval sets the first and the largest delay between attempts
// at a failing message.
func (c *Consumer) WithRetryInterval(initial, maxInterval time.Duration) *Consumer {
	c.retryInitial = initial
	c.retryMax = maxInterval
	return c
}

// Consume fetches and handles messages until ctx is cancelled. A message's
// offset is committed only after its handler succeeds.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return context.Canceled
			}
			return fmt.Errorf("failed to fetch message from %s: %w", c.topic, err)
		}

		if err := c.Process(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit offset",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

// Process runs handler on msg until it succeeds or ctx is done. It returns
// nil on success and the context's error otherwise.
func (c *Consumer) Process(ctx context.Context, msg kafkago.Message, handler MessageHandler) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryMax
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			return handler(ctx, msg)
		},
		backoff.WithContext(b, ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn("message handler failed, retrying",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
		},
	)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
