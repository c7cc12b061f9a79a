package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Kilat-Marketplace/service-booking/internal/contract"
	bookingDomain "github.com/Kilat-Marketplace/service-booking/internal/domain/booking"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/entity"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/listing"
	"github.com/Kilat-Marketplace/service-booking/pkg/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// BookingService is the application service orchestrating booking use cases.
// Every mutation runs in one store transaction; events go out after commit.
type BookingService struct {
	store    bookingDomain.Store
	registry *entity.Registry
	listings *ListingService
	events   eventEmitter
	logger   *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	store bookingDomain.Store,
	registry *entity.Registry,
	listings *ListingService,
	publisher EventPublisher,
	logger *zap.Logger,
) *BookingService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &BookingService{
		store:    store,
		registry: registry,
		listings: listings,
		events:   eventEmitter{publisher: publisher, logger: logger},
		logger:   logger,
	}
}

// CreateBooking opens a PENDING booking from the buyer to the listing's seller.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*BookingDTO, error) {
	cfg, err := s.registry.Resolve(req.EntityType)
	if err != nil {
		return nil, err
	}
	entityType := string(cfg.Type)
	entityID := strings.TrimSpace(req.EntityID)

	// Pull the listing into the projection before locking it.
	if _, err := s.listings.ensure(ctx, cfg, entityID); err != nil {
		return nil, err
	}

	var bk *bookingDomain.Booking
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx bookingDomain.Store) error {
		l, err := tx.Listings().FindByKeyForUpdate(ctx, entityType, entityID)
		if err != nil {
			return err
		}
		if err := l.EnsureAvailable(); err != nil {
			return err
		}

		key := bookingDomain.Key{EntityType: entityType, EntityID: entityID, BuyerID: req.BuyerID}
		existing, err := tx.Bookings().FindOpenByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return bookingDomain.DuplicateRequest(key)
		}

		bk, err = bookingDomain.NewBooking(entityType, entityID, req.BuyerID, l.SellerID(), req.Message, req.PreferredDate)
		if err != nil {
			return err
		}
		return tx.Bookings().Save(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking requested",
		zap.String("booking_id", bk.ID().String()),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID),
	)
	s.publishBookingRequested(ctx, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

// ListBookings returns one party's bookings, most recent activity first.
func (s *BookingService) ListBookings(ctx context.Context, q ListBookingsQuery) (*domain.PaginatedResult[BookingDTO], error) {
	cfg, err := s.registry.Resolve(q.EntityType)
	if err != nil {
		return nil, err
	}
	if q.BuyerID == "" && q.SellerID == "" && q.EntityID == "" {
		return nil, domain.NewValidationError("buyer id, seller id or entity id is required")
	}
	class, err := bookingDomain.ParseStatusClass(q.Class)
	if err != nil {
		return nil, err
	}

	bookings, err := s.store.Bookings().Find(ctx, bookingDomain.Filter{
		EntityType: string(cfg.Type),
		BuyerID:    q.BuyerID,
		SellerID:   q.SellerID,
		EntityID:   q.EntityID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	filtered := make([]*bookingDomain.Booking, 0, len(bookings))
	for _, bk := range bookings {
		if class.Includes(bk.Status()) {
			filtered = append(filtered, bk)
		}
	}

	page, limit := normalizePage(q.Page, q.Limit)
	window := domain.Paginate(filtered, page, limit)
	result := domain.NewPaginatedResult(toBookingDTOs(window.Items), window.Total, window.Page, window.Limit)
	return &result, nil
}

// GetBooking returns a booking with its full conversation.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.store.Bookings().FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetMessages returns up to limit messages after afterSeq.
func (s *BookingService) GetMessages(ctx context.Context, bookingID uuid.UUID, afterSeq, limit int) ([]MessageDTO, error) {
	if afterSeq < 0 {
		return nil, domain.NewValidationError("after_seq must not be negative")
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	bk, err := s.store.Bookings().FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return toMessageDTOs(bk.MessagesAfter(afterSeq, limit)), nil
}

// AppendMessage adds a message from the buyer or the seller.
func (s *BookingService) AppendMessage(ctx context.Context, bookingID uuid.UUID, senderID, senderType, message string) (*BookingDTO, error) {
	st, err := bookingDomain.ParseSenderType(senderType)
	if err != nil {
		return nil, err
	}

	var (
		bk       *bookingDomain.Booking
		msg      bookingDomain.Message
		advanced bool
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx bookingDomain.Store) error {
		var err error
		bk, err = tx.Bookings().FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		msg, advanced, err = bk.AppendMessage(senderID, st, message)
		if err != nil {
			return err
		}
		bk.IncrementVersion()
		return tx.Bookings().Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	if advanced {
		s.logger.Info("booking moved to negotiation on seller reply",
			zap.String("booking_id", bk.ID().String()),
		)
		s.publishStatusChanged(ctx, bk, bookingDomain.StatusPending, contract.ReasonSellerReply)
	}
	s.publishMessageAppended(ctx, bk, msg)

	result := toBookingDTO(bk)
	return &result, nil
}

// UpdateStatus applies a client-requested status change. COMPLETED is
// routed through CompleteDeal.
func (s *BookingService) UpdateStatus(ctx context.Context, bookingID uuid.UUID, rawStatus string) (*BookingDTO, error) {
	target, err := bookingDomain.ParseBookingStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	if target == bookingDomain.StatusCompleted {
		return s.CompleteDeal(ctx, bookingID)
	}

	var (
		bk   *bookingDomain.Booking
		from bookingDomain.BookingStatus
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx bookingDomain.Store) error {
		var err error
		bk, err = tx.Bookings().FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		from = bk.Status()
		if err := bk.TransitionTo(target); err != nil {
			return err
		}
		bk.IncrementVersion()
		return tx.Bookings().Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking status changed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)
	s.publishStatusChanged(ctx, bk, from, "")

	result := toBookingDTO(bk)
	return &result, nil
}

// CompleteDeal completes the booking, marks its listing SOLD and rejects every
// other open booking of the listing, all in one transaction. A second call,
// or a call for a listing another deal already sold, fails with
// IllegalTransition.
func (s *BookingService) CompleteDeal(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	var (
		bk        *bookingDomain.Booking
		from      bookingDomain.BookingStatus
		sold      *listing.Listing
		rejected  []*bookingDomain.Booking
		rivalFrom = make(map[uuid.UUID]bookingDomain.BookingStatus)
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx bookingDomain.Store) error {
		current, err := tx.Bookings().FindByID(ctx, bookingID)
		if err != nil {
			return err
		}

		// Lock order: listing, then its open bookings by id.
		l, err := tx.Listings().FindByKeyForUpdate(ctx, current.EntityType(), current.EntityID())
		if err != nil {
			return err
		}
		open, err := tx.Bookings().FindOpenByListingForUpdate(ctx, current.EntityType(), current.EntityID())
		if err != nil {
			return err
		}

		var rivals []*bookingDomain.Booking
		for _, candidate := range open {
			if candidate.ID() == bookingID {
				bk = candidate
			} else {
				rivals = append(rivals, candidate)
			}
		}
		if bk == nil {
			// Not open any more; re-read under the listing lock.
			latest, err := tx.Bookings().FindByID(ctx, bookingID)
			if err != nil {
				return err
			}
			return bookingDomain.IllegalTransition(latest.Status(), bookingDomain.StatusCompleted)
		}

		from = bk.Status()
		if err := bk.Complete(); err != nil {
			return err
		}
		if l.Status() == listing.StatusSold {
			return bookingDomain.ErrIllegalTransition.WithMessage(
				fmt.Sprintf("%s listing %s is already sold", l.EntityType(), l.EntityID()))
		}
		if err := l.MarkSold(); err != nil {
			return err
		}

		bk.IncrementVersion()
		if err := tx.Bookings().Update(ctx, bk); err != nil {
			return err
		}
		for _, rival := range rivals {
			rivalFrom[rival.ID()] = rival.Status()
			if err := rival.Foreclose(); err != nil {
				return err
			}
			rival.IncrementVersion()
			if err := tx.Bookings().Update(ctx, rival); err != nil {
				return err
			}
		}
		if err := tx.Listings().UpdateStatus(ctx, l); err != nil {
			return err
		}

		sold = l
		rejected = rivals
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deal completed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("entity_type", bk.EntityType()),
		zap.String("entity_id", bk.EntityID()),
		zap.Int("rejected_bookings", len(rejected)),
	)
	s.publishDealCompleted(ctx, bk, from, sold, rejected, rivalFrom)
	s.listings.pushStatus(ctx, sold)

	result := toBookingDTO(bk)
	return &result, nil
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	page, limit = normalizePage(page, limit)
	bookings, total, err := s.store.Bookings().ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.store.Bookings().CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func (s *BookingService) publishBookingRequested(ctx context.Context, bk *bookingDomain.Booking) {
	var opening string
	if conv := bk.Conversation(); len(conv) > 0 {
		opening = conv[0].Body
	}
	evt := contract.BookingRequestedEvent{
		BookingID:     bk.ID(),
		EntityType:    bk.EntityType(),
		EntityID:      bk.EntityID(),
		BuyerID:       bk.BuyerID(),
		SellerID:      bk.SellerID(),
		Message:       opening,
		PreferredDate: bk.PreferredDate(),
		OccurredAt:    time.Now().UTC(),
	}
	s.events.emit(ctx, contract.BookingRequested, bk.ID().String(), evt)
}

func (s *BookingService) publishMessageAppended(ctx context.Context, bk *bookingDomain.Booking, msg bookingDomain.Message) {
	recipient := bk.SellerID()
	if msg.SenderType == bookingDomain.SenderSeller {
		recipient = bk.BuyerID()
	}
	evt := contract.BookingMessageAppendedEvent{
		BookingID:   bk.ID(),
		EntityType:  bk.EntityType(),
		EntityID:    bk.EntityID(),
		MessageID:   msg.ID,
		Seq:         msg.Seq,
		SenderType:  string(msg.SenderType),
		SenderID:    msg.SenderID,
		RecipientID: recipient,
		OccurredAt:  msg.Timestamp,
	}
	s.events.emit(ctx, contract.BookingMessageAdded, bk.ID().String(), evt)
}

func (s *BookingService) publishStatusChanged(ctx context.Context, bk *bookingDomain.Booking, from bookingDomain.BookingStatus, reason string) {
	evt := contract.BookingStatusChangedEvent{
		BookingID:  bk.ID(),
		EntityType: bk.EntityType(),
		EntityID:   bk.EntityID(),
		BuyerID:    bk.BuyerID(),
		SellerID:   bk.SellerID(),
		From:       string(from),
		To:         string(bk.Status()),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	s.events.emit(ctx, contract.BookingStatusChanged, bk.ID().String(), evt)
}

func (s *BookingService) publishDealCompleted(
	ctx context.Context,
	bk *bookingDomain.Booking,
	from bookingDomain.BookingStatus,
	sold *listing.Listing,
	rejected []*bookingDomain.Booking,
	rivalFrom map[uuid.UUID]bookingDomain.BookingStatus,
) {
	now := time.Now().UTC()
	rejectedIDs := make([]uuid.UUID, len(rejected))
	for i, r := range rejected {
		rejectedIDs[i] = r.ID()
	}

	s.publishStatusChanged(ctx, bk, from, "")
	s.events.emit(ctx, contract.BookingCompleted, bk.ID().String(), contract.BookingCompletedEvent{
		BookingID:          bk.ID(),
		EntityType:         bk.EntityType(),
		EntityID:           bk.EntityID(),
		BuyerID:            bk.BuyerID(),
		SellerID:           bk.SellerID(),
		RejectedBookingIDs: rejectedIDs,
		OccurredAt:         now,
	})
	for _, r := range rejected {
		s.publishStatusChanged(ctx, r, rivalFrom[r.ID()], contract.ReasonForeclosed)
	}
	s.events.emit(ctx, contract.ListingSold, sold.EntityType()+":"+sold.EntityID(), contract.ListingSoldEvent{
		EntityType: sold.EntityType(),
		EntityID:   sold.EntityID(),
		SellerID:   sold.SellerID(),
		BuyerID:    bk.BuyerID(),
		BookingID:  bk.ID(),
		OccurredAt: now,
	})
}
