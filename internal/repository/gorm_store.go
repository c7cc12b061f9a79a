package repository

import (
	"context"
	"fmt"
	"strings"

	bookingDomain "github.com/Kilat-Marketplace/service-booking/internal/domain/booking"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/listing"
	"gorm.io/gorm"
)

// GormStore is the Postgres-backed booking.Store.
type GormStore struct {
	db       *gorm.DB
	bookings *GormBookingRepository
	listings *GormListingRepository
}

// NewGormStore creates a store over db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:       db,
		bookings: NewGormBookingRepository(db),
		listings: NewGormListingRepository(db),
	}
}

// Bookings returns the booking repository bound to this store's connection.
func (s *GormStore) Bookings() bookingDomain.BookingRepository { return s.bookings }

// Listings returns the listing repository bound to this store's connection.
func (s *GormStore) Listings() listing.Repository { return s.listings }

// WithinTx runs fn in a database transaction. Nested calls become savepoints.
func (s *GormStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx bookingDomain.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormStore(tx))
	})
}

// Ping checks the underlying connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates the tables and the partial unique index that backs the
// duplicate-request guard. Used in development; other environments run the
// SQL migrations.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&ListingModel{}, &BookingModel{}, &BookingMessageModel{}); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	quoted := make([]string, len(bookingDomain.OpenStatuses))
	for i, s := range bookingDomain.OpenStatuses {
		quoted[i] = "'" + string(s) + "'"
	}
	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON bookings (entity_type, entity_id, buyer_id) WHERE status IN (%s)",
		openBookingIndex, strings.Join(quoted, ", "))
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to create open booking index: %w", err)
	}
	return nil
}
