package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kilat-Marketplace/service-booking/internal/domain/listing"
	"github.com/Kilat-Marketplace/service-booking/pkg/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListingModel is the GORM model for the listings projection table.
type ListingModel struct {
	EntityType  string          `gorm:"primaryKey;size:20"`
	EntityID    string          `gorm:"primaryKey;size:64"`
	SellerID    string          `gorm:"not null;size:64;index"`
	Status      string          `gorm:"not null;size:20;default:'ACTIVE'"`
	Title       string          `gorm:"size:255"`
	Price       float64         `gorm:"type:numeric(14,2)"`
	Images      json.RawMessage `gorm:"type:jsonb"`
	Description string          `gorm:"type:text"`
	Version     int64           `gorm:"not null;default:1"`
	CreatedAt   time.Time       `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time       `gorm:"type:timestamptz;not null;default:now()"`
}

func (ListingModel) TableName() string { return "listings" }

// GormListingRepository implements listing.Repository using GORM.
type GormListingRepository struct {
	db *gorm.DB
}

func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

func (r *GormListingRepository) FindByKey(ctx context.Context, entityType, entityID string) (*listing.Listing, error) {
	return r.find(r.db.WithContext(ctx), entityType, entityID)
}

func (r *GormListingRepository) FindByKeyForUpdate(ctx context.Context, entityType, entityID string) (*listing.Listing, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), entityType, entityID)
}

func (r *GormListingRepository) find(q *gorm.DB, entityType, entityID string) (*listing.Listing, error) {
	var model ListingModel
	if err := q.Where("entity_type = ? AND entity_id = ?", entityType, entityID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listing.NotFound(entityType, entityID)
		}
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	return toListingDomain(&model)
}

func (r *GormListingRepository) Upsert(ctx context.Context, l *listing.Listing) error {
	model, err := toListingModel(l)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"seller_id", "status", "title", "price", "images", "description", "version", "updated_at",
		}),
	}).Create(model).Error
}

func (r *GormListingRepository) UpdateStatus(ctx context.Context, l *listing.Listing) error {
	result := r.db.WithContext(ctx).
		Model(&ListingModel{}).
		Where("entity_type = ? AND entity_id = ? AND version = ?", l.EntityType(), l.EntityID(), l.Version()-1).
		Updates(map[string]interface{}{
			"status":     string(l.Status()),
			"version":    l.Version(),
			"updated_at": l.UpdatedAt(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update listing status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("listing was modified by another transaction")
	}
	return nil
}

// --- Conversions ---

func toListingModel(l *listing.Listing) (*ListingModel, error) {
	images := l.Images()
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal listing images: %w", err)
	}
	return &ListingModel{
		EntityType:  l.EntityType(),
		EntityID:    l.EntityID(),
		SellerID:    l.SellerID(),
		Status:      string(l.Status()),
		Title:       l.Title(),
		Price:       l.Price(),
		Images:      imagesJSON,
		Description: l.Description(),
		Version:     l.Version(),
		CreatedAt:   l.CreatedAt(),
		UpdatedAt:   l.UpdatedAt(),
	}, nil
}

func toListingDomain(m *ListingModel) (*listing.Listing, error) {
	var images []string
	if len(m.Images) > 0 {
		if err := json.Unmarshal(m.Images, &images); err != nil {
			return nil, fmt.Errorf("failed to unmarshal listing images: %w", err)
		}
	}
	return listing.Reconstruct(
		m.EntityType, m.EntityID, m.SellerID,
		listing.Status(m.Status),
		listing.Snapshot{Title: m.Title, Price: m.Price, Images: images, Description: m.Description},
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	), nil
}
