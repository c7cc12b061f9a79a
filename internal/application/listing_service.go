package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	bookingDomain "github.com/Kilat-Marketplace/service-booking/internal/domain/booking"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/entity"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/listing"
	"github.com/Kilat-Marketplace/service-booking/pkg/domain"
	"go.uber.org/zap"
)

// CatalogClient reads listing documents from, and writes status changes to,
// the catalog service.
type CatalogClient interface {
	FetchDocument(ctx context.Context, cfg entity.Config, entityID string) (entity.Document, error)
	SetListingStatus(ctx context.Context, cfg entity.Config, entityID, status string) error
}

// ListingService maintains the local projection of catalog listings.
type ListingService struct {
	store    bookingDomain.Store
	registry *entity.Registry
	catalog  CatalogClient
	logger   *zap.Logger
}

// NewListingService creates a new ListingService. catalog may be nil, in
// which case only listings already projected are known.
func NewListingService(
	store bookingDomain.Store,
	registry *entity.Registry,
	catalog CatalogClient,
	logger *zap.Logger,
) *ListingService {
	return &ListingService{store: store, registry: registry, catalog: catalog, logger: logger}
}

// GetListing returns a listing, reading through to the catalog on a miss.
func (s *ListingService) GetListing(ctx context.Context, entityType, entityID string) (*ListingDTO, error) {
	cfg, err := s.registry.Resolve(entityType)
	if err != nil {
		return nil, err
	}
	l, err := s.ensure(ctx, cfg, entityID)
	if err != nil {
		return nil, err
	}
	result := toListingDTO(l)
	return &result, nil
}

// UpsertListing creates or replaces a listing projection.
func (s *ListingService) UpsertListing(ctx context.Context, entityType, entityID string, req UpsertListingRequest) (*ListingDTO, error) {
	cfg, err := s.registry.Resolve(entityType)
	if err != nil {
		return nil, err
	}
	status, err := listing.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	snap := listing.Snapshot{
		Title:       req.Title,
		Price:       req.Price,
		Images:      req.Images,
		Description: req.Description,
	}
	l, err := s.apply(ctx, string(cfg.Type), entityID, req.SellerID, status, snap)
	if err != nil {
		return nil, err
	}
	result := toListingDTO(l)
	return &result, nil
}

// SyncDocument projects a raw catalog document.
func (s *ListingService) SyncDocument(ctx context.Context, entityType string, doc entity.Document) (*ListingDTO, error) {
	cfg, err := s.registry.Resolve(entityType)
	if err != nil {
		return nil, err
	}
	l, err := s.applyDocument(ctx, cfg, doc)
	if err != nil {
		return nil, err
	}
	result := toListingDTO(l)
	return &result, nil
}

// SyncStatus applies a catalog-side status change. A SOLD projection stays SOLD.
func (s *ListingService) SyncStatus(ctx context.Context, entityType, entityID, rawStatus string) error {
	cfg, err := s.registry.Resolve(entityType)
	if err != nil {
		return err
	}
	status, err := listing.ParseStatus(rawStatus)
	if err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(ctx context.Context, tx bookingDomain.Store) error {
		l, err := tx.Listings().FindByKeyForUpdate(ctx, string(cfg.Type), entityID)
		if err != nil {
			return err
		}
		l.Refresh(l.SellerID(), status, l.Snapshot())
		return tx.Listings().Upsert(ctx, l)
	})
}

// pushStatus tells the catalog about a status decided here. It runs after
// commit; failures are logged and the listing.sold event remains the fallback.
func (s *ListingService) pushStatus(ctx context.Context, l *listing.Listing) {
	if s.catalog == nil {
		return
	}
	cfg, err := s.registry.Resolve(l.EntityType())
	if err != nil {
		s.logger.Error("cannot push status for unregistered entity type",
			zap.String("entity_type", l.EntityType()),
			zap.Error(err),
		)
		return
	}
	if err := s.catalog.SetListingStatus(ctx, cfg, l.EntityID(), string(l.Status())); err != nil {
		s.logger.Error("failed to set catalog listing status",
			zap.String("entity_type", l.EntityType()),
			zap.String("entity_id", l.EntityID()),
			zap.String("status", string(l.Status())),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("catalog listing status set",
		zap.String("entity_type", l.EntityType()),
		zap.String("entity_id", l.EntityID()),
		zap.String("status", string(l.Status())),
	)
}

// ensure returns the projected listing, fetching it from the catalog when
// absent and a catalog is configured.
func (s *ListingService) ensure(ctx context.Context, cfg entity.Config, entityID string) (*listing.Listing, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, domain.NewValidationError("entity id is required")
	}
	l, err := s.store.Listings().FindByKey(ctx, string(cfg.Type), entityID)
	if err == nil || !errors.Is(err, listing.ErrEntityNotFound) || s.catalog == nil {
		return l, err
	}

	doc, err := s.catalog.FetchDocument(ctx, cfg, entityID)
	if err != nil {
		return nil, err
	}
	if id, ok := cfg.ID(doc); !ok || id != entityID {
		doc[cfg.IDField] = entityID
	}
	s.logger.Info("listing fetched from catalog",
		zap.String("entity_type", string(cfg.Type)),
		zap.String("entity_id", entityID),
	)
	return s.applyDocument(ctx, cfg, doc)
}

func (s *ListingService) applyDocument(ctx context.Context, cfg entity.Config, doc entity.Document) (*listing.Listing, error) {
	entityID, ok := cfg.ID(doc)
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("%s document has no %s", cfg.Type, cfg.IDField))
	}
	sellerID, ok := cfg.SellerID(doc)
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("%s document has no %s", cfg.Type, cfg.SellerField))
	}
	status, err := listing.ParseStatus(cfg.Status(doc))
	if err != nil {
		return nil, err
	}
	price, _ := cfg.Price(doc)
	snap := listing.Snapshot{
		Title:       cfg.Title(doc),
		Price:       price,
		Images:      cfg.Images(doc),
		Description: cfg.Description(doc),
	}
	return s.apply(ctx, string(cfg.Type), entityID, sellerID, status, snap)
}

func (s *ListingService) apply(
	ctx context.Context,
	entityType, entityID, sellerID string,
	status listing.Status,
	snap listing.Snapshot,
) (*listing.Listing, error) {
	var result *listing.Listing
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx bookingDomain.Store) error {
		l, err := tx.Listings().FindByKeyForUpdate(ctx, entityType, entityID)
		switch {
		case err == nil:
			l.Refresh(sellerID, status, snap)
		case errors.Is(err, listing.ErrEntityNotFound):
			l, err = listing.NewListing(entityType, entityID, sellerID, status, snap)
			if err != nil {
				return err
			}
		default:
			return err
		}
		if err := tx.Listings().Upsert(ctx, l); err != nil {
			return fmt.Errorf("failed to upsert listing: %w", err)
		}
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
