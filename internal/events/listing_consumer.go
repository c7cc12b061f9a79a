package events

import (
	"context"
	"encoding/json"

	"github.com/Kilat-Marketplace/service-booking/internal/application"
	"github.com/Kilat-Marketplace/service-booking/internal/contract"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/entity"
	"github.com/Kilat-Marketplace/service-booking/pkg/cloudevent"
	"github.com/Kilat-Marketplace/service-booking/pkg/domain"
	"github.com/Kilat-Marketplace/service-booking/pkg/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ListingSyncer applies catalog changes to the listing projection.
type ListingSyncer interface {
	SyncDocument(ctx context.Context, entityType string, doc entity.Document) (*application.ListingDTO, error)
	SyncStatus(ctx context.Context, entityType, entityID, status string) error
}

// ListingEventConsumer keeps the listing projection in step with the catalog.
type ListingEventConsumer struct {
	consumer *kafka.Consumer
	syncer   ListingSyncer
	logger   *zap.Logger
}

// NewListingEventConsumer creates a new ListingEventConsumer.
func NewListingEventConsumer(
	brokers []string,
	groupID string,
	syncer ListingSyncer,
	logger *zap.Logger,
) *ListingEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, contract.TopicCatalogEvents, logger)
	return &ListingEventConsumer{
		consumer: consumer,
		syncer:   syncer,
		logger:   logger,
	}
}

// Start begins consuming catalog events. This blocks until the context is cancelled.
func (c *ListingEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// process handles one message, retrying it until it is applied or dropped.
func (c *ListingEventConsumer) process(ctx context.Context, msg kafkago.Message) error {
	return c.consumer.Process(ctx, msg, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *ListingEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *ListingEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	ce, err := cloudevent.Parse(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from catalog topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch ce.Type {
	case contract.CatalogListingUpserted:
		return c.handleUpserted(ctx, ce)
	case contract.CatalogListingStatusChanged:
		return c.handleStatusChanged(ctx, ce)
	default:
		c.logger.Debug("ignoring unhandled catalog event type",
			zap.String("type", ce.Type),
		)
		return nil
	}
}

func (c *ListingEventConsumer) handleUpserted(ctx context.Context, ce cloudevent.Event) error {
	var evt contract.CatalogListingUpsertedEvent
	if err := ce.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse listing upserted data", zap.Error(err))
		return nil
	}
	var doc entity.Document
	if err := json.Unmarshal(evt.Document, &doc); err != nil || doc == nil {
		c.logger.Error("listing upserted event has no document",
			zap.String("entity_type", evt.EntityType),
			zap.Error(err),
		)
		return nil
	}

	listing, err := c.syncer.SyncDocument(ctx, evt.EntityType, doc)
	if err != nil {
		return c.settle(err, "failed to sync listing document", zap.String("entity_type", evt.EntityType))
	}

	c.logger.Info("listing synced from catalog",
		zap.String("entity_type", listing.EntityType),
		zap.String("entity_id", listing.EntityID),
		zap.String("status", listing.Status),
	)
	return nil
}

func (c *ListingEventConsumer) handleStatusChanged(ctx context.Context, ce cloudevent.Event) error {
	var evt contract.CatalogListingStatusChangedEvent
	if err := ce.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse listing status data", zap.Error(err))
		return nil
	}

	if err := c.syncer.SyncStatus(ctx, evt.EntityType, evt.EntityID, evt.Status); err != nil {
		return c.settle(err, "failed to sync listing status",
			zap.String("entity_type", evt.EntityType),
			zap.String("entity_id", evt.EntityID),
		)
	}
	return nil
}

// settle logs err. Domain rejections are dropped; anything else is returned
// so the same message is retried before the offset moves on.
func (c *ListingEventConsumer) settle(err error, msg string, fields ...zap.Field) error {
	fields = append(fields, zap.Error(err))
	if domain.KindOf(err) != domain.KindInternal {
		c.logger.Warn(msg, fields...)
		return nil
	}
	c.logger.Error(msg, fields...)
	return err
}
