package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingDomain "github.com/Kilat-Marketplace/service-booking/internal/domain/booking"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// openBookingIndex is the partial unique index backing the duplicate-request guard.
const openBookingIndex = "idx_bookings_open_request"

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID            uuid.UUID             `gorm:"type:uuid;primaryKey"`
	EntityType    string                `gorm:"not null;size:20;index:idx_bookings_listing,priority:1"`
	EntityID      string                `gorm:"not null;size:64;index:idx_bookings_listing,priority:2"`
	BuyerID       string                `gorm:"not null;size:64;index"`
	SellerID      string                `gorm:"not null;size:64;index"`
	Status        string                `gorm:"not null;size:30;index"`
	PreferredDate *time.Time            `gorm:""`
	Version       int64                 `gorm:"not null;default:1"`
	CreatedAt     time.Time             `gorm:"not null"`
	UpdatedAt     time.Time             `gorm:"not null"`
	Messages      []BookingMessageModel `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// BookingMessageModel is the GORM model for the booking_messages table.
type BookingMessageModel struct {
	ID         string    `gorm:"type:char(26);primaryKey"`
	BookingID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_booking_messages_seq,priority:1"`
	Seq        int       `gorm:"not null;uniqueIndex:idx_booking_messages_seq,priority:2"`
	SenderType string    `gorm:"not null;size:10"`
	SenderID   string    `gorm:"not null;size:64"`
	Message    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingMessageModel) TableName() string {
	return "booking_messages"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) withMessages(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	})
}

// FindByID retrieves a booking with its conversation.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	return r.findByID(ctx, r.withMessages(ctx), id)
}

// FindByIDForUpdate retrieves a booking and locks its row.
func (r *GormBookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	return r.findByID(ctx, r.withMessages(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormBookingRepository) findByID(_ context.Context, q *gorm.DB, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := q.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bookingDomain.NotFound(id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindOpenByKey returns the open booking for key, or nil.
func (r *GormBookingRepository) FindOpenByKey(ctx context.Context, key bookingDomain.Key) (*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.withMessages(ctx).
		Where("entity_type = ? AND entity_id = ? AND buyer_id = ? AND status IN ?",
			key.EntityType, key.EntityID, key.BuyerID, openStatusStrings()).
		Limit(1).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find open booking: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return toDomainBooking(&models[0])
}

// FindOpenByListingForUpdate locks every open booking of a listing, in id order.
func (r *GormBookingRepository) FindOpenByListingForUpdate(ctx context.Context, entityType, entityID string) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.withMessages(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("entity_type = ? AND entity_id = ? AND status IN ?", entityType, entityID, openStatusStrings()).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to lock listing bookings: %w", err)
	}
	return toDomainBookings(models)
}

// Find returns bookings matching filter, most recent activity first.
func (r *GormBookingRepository) Find(ctx context.Context, filter bookingDomain.Filter) ([]*bookingDomain.Booking, error) {
	q := r.withMessages(ctx).Where("entity_type = ?", filter.EntityType)
	if filter.BuyerID != "" {
		q = q.Where("buyer_id = ?", filter.BuyerID)
	}
	if filter.SellerID != "" {
		q = q.Where("seller_id = ?", filter.SellerID)
	}
	if filter.EntityID != "" {
		q = q.Where("entity_id = ?", filter.EntityID)
	}

	var models []BookingModel
	if err := q.Order("updated_at DESC").Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	return toDomainBookings(models)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.withMessages(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking and its opening messages.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	model.Messages = toMessageModels(bk.ID(), bk.UnpersistedMessages())

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err, openBookingIndex) {
			return bookingDomain.DuplicateRequest(bk.Key())
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}
	bk.MarkPersisted()
	return nil
}

// Update persists status changes and appended messages with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// IncrementVersion has already been called on the aggregate.
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":     model.Status,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})

	if result.Error != nil {
		if isUniqueViolation(result.Error, openBookingIndex) {
			return bookingDomain.DuplicateRequest(bk.Key())
		}
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return bookingDomain.ErrConflict
	}

	if msgs := toMessageModels(bk.ID(), bk.UnpersistedMessages()); len(msgs) > 0 {
		if err := r.db.WithContext(ctx).Create(&msgs).Error; err != nil {
			if isUniqueViolation(err, "") {
				return bookingDomain.ErrConflict.Wrap(err)
			}
			return fmt.Errorf("failed to append booking messages: %w", err)
		}
	}
	bk.MarkPersisted()
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique violation,
// optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func openStatusStrings() []string {
	out := make([]string, len(bookingDomain.OpenStatuses))
	for i, s := range bookingDomain.OpenStatuses {
		out[i] = string(s)
	}
	return out
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
		ID:            bk.ID(),
		EntityType:    bk.EntityType(),
		EntityID:      bk.EntityID(),
		BuyerID:       bk.BuyerID(),
		SellerID:      bk.SellerID(),
		Status:        string(bk.Status()),
		PreferredDate: bk.PreferredDate(),
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}
}

func toMessageModels(bookingID uuid.UUID, msgs []bookingDomain.Message) []BookingMessageModel {
	out := make([]BookingMessageModel, len(msgs))
	for i, m := range msgs {
		out[i] = BookingMessageModel{
			ID:         m.ID,
			BookingID:  bookingID,
			Seq:        m.Seq,
			SenderType: string(m.SenderType),
			SenderID:   m.SenderID,
			Message:    m.Body,
			CreatedAt:  m.Timestamp,
		}
	}
	return out
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	conversation := make([]bookingDomain.Message, len(m.Messages))
	for i, mm := range m.Messages {
		conversation[i] = bookingDomain.Message{
			ID:         mm.ID,
			Seq:        mm.Seq,
			SenderType: bookingDomain.SenderType(mm.SenderType),
			SenderID:   mm.SenderID,
			Body:       mm.Message,
			Timestamp:  mm.CreatedAt,
		}
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.EntityType,
		m.EntityID,
		m.BuyerID,
		m.SellerID,
		status,
		conversation,
		m.PreferredDate,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}
