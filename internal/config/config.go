package config

import (
	"fmt"

	"github.com/Kilat-Marketplace/service-booking/pkg/config"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	EventsDriverKafka    = "kafka"
	EventsDriverRabbitMQ = "rabbitmq"
	EventsDriverNone     = "none"
)

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	StoreDriver    string
	EventsDriver   string
	CatalogBaseURL string
	DBConfig       config.DatabaseConfig
	JWTConfig      config.JWTConfig
	KafkaConfig    config.KafkaConfig
	RabbitConfig   config.RabbitConfig
	TracingConfig  config.TracingConfig
}

// Load reads configuration from BOOKING_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("BOOKING")
	if err != nil {
		return nil, err
	}
	v.SetDefault("DB_NAME", "booking")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("EVENTS_DRIVER", EventsDriverKafka)
	v.SetDefault("RABBIT_EXCHANGE", "marketplace.events")

	cfg := &ServiceConfig{
		Port:           config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:         config.GetAppEnv(v),
		StoreDriver:    v.GetString("STORE_DRIVER"),
		EventsDriver:   v.GetString("EVENTS_DRIVER"),
		CatalogBaseURL: v.GetString("CATALOG_BASE_URL"),
		DBConfig:       config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:      config.LoadJWTConfig(v),
		KafkaConfig:    config.LoadKafkaConfig(v),
		RabbitConfig:   config.LoadRabbitConfig(v, "RABBIT_EXCHANGE"),
		TracingConfig:  config.LoadTracingConfig(v),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	switch cfg.EventsDriver {
	case EventsDriverKafka, EventsDriverRabbitMQ, EventsDriverNone:
	default:
		return nil, fmt.Errorf("unknown EVENTS_DRIVER %q", cfg.EventsDriver)
	}
	return cfg, nil
}
