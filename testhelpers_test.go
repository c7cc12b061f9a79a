//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/Kilat-Marketplace/service-booking/internal/application"
	"github.com/Kilat-Marketplace/service-booking/internal/contract"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/entity"
	bookingEvents "github.com/Kilat-Marketplace/service-booking/internal/events"
	"github.com/Kilat-Marketplace/service-booking/internal/repository"
	"github.com/Kilat-Marketplace/service-booking/pkg/cloudevent"
	"github.com/Kilat-Marketplace/service-booking/pkg/database"
	"github.com/Kilat-Marketplace/service-booking/pkg/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Store           *repository.GormStore
	Listings        *application.ListingService
	Bookings        *application.BookingService
	Consumer        *bookingEvents.ListingEventConsumer
	CleanupProducer func()
}

// setupPostgres starts a PostgreSQL container and applies the SQL migrations.
func setupPostgres(t *testing.T) (*gorm.DB, func()) {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_booking",
		SSLMode:  "disable",
	}
	logger := zap.NewNop()

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(cfg, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(cfg.DatabaseURL(), "migrations", logger))

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}
	return db, cleanup
}

// setupContainers starts PostgreSQL and Kafka testcontainers.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	db, cleanupPG := setupPostgres(t)

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, contract.TopicBookingEvents, contract.TopicCatalogEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		cleanupPG()
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires the services over a GormStore. With no brokers
// events are dropped and no consumer is built.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	store := repository.NewGormStore(db)
	registry := entity.DefaultRegistry()
	listings := application.NewListingService(store, registry, nil, logger)

	stack := &bookingStack{Store: store, Listings: listings, CleanupProducer: func() {}}
	var publisher application.EventPublisher = application.NopPublisher{}
	if len(brokers) > 0 {
		producer := kafka.NewProducer(brokers, logger)
		publisher = producer
		stack.CleanupProducer = func() { _ = producer.Close() }

		groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
		stack.Consumer = bookingEvents.NewListingEventConsumer(brokers, groupID, listings, logger)
	}
	stack.Bookings = application.NewBookingService(store, registry, listings, publisher, logger)
	return stack
}

// seedListing projects an ACTIVE listing owned by sellerID.
func seedListing(t *testing.T, stack *bookingStack, entityType, entityID, sellerID string) {
	t.Helper()
	_, err := stack.Listings.UpsertListing(context.Background(), entityType, entityID, application.UpsertListingRequest{
		SellerID: sellerID,
		Title:    "integration " + entityID,
		Price:    1000,
	})
	require.NoError(t, err, "failed to seed listing")
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := cloudevent.New(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// consumeEvents reads from a Kafka topic until it has seen want events of
// each expected type, keyed by subject.
func consumeEvents(t *testing.T, brokers []string, topic string, want map[string]int, timeout time.Duration) map[string][]cloudevent.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	seen := make(map[string][]cloudevent.Event)
	done := func() bool {
		for typ, n := range want {
			if len(seen[typ]) < n {
				return false
			}
		}
		return true
	}
	for !done() {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for events %v on topic %q, saw %d types", want, topic, len(seen))
			}
			continue
		}
		ce, err := cloudevent.Parse(msg.Value)
		if err != nil {
			continue
		}
		seen[ce.Type] = append(seen[ce.Type], ce)
	}
	return seen
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
