package handler

import (
	"strconv"

	"github.com/Kilat-Marketplace/service-booking/internal/application"
	"github.com/Kilat-Marketplace/service-booking/pkg/auth"
	"github.com/Kilat-Marketplace/service-booking/pkg/middleware"
	"github.com/Kilat-Marketplace/service-booking/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("/:entityType", h.CreateBooking)
		bookings.GET("/:entityType", h.ListBookings)
		bookings.GET("/id/:id", h.GetBooking)
		bookings.GET("/id/:id/messages", h.GetMessages)
		bookings.POST("/id/:id/messages", h.AppendMessage)
		bookings.PATCH("/id/:id/status", h.UpdateStatus)
		bookings.POST("/id/:id/complete", h.CompleteDeal)
	}
}

// CreateBooking handles POST /api/v1/bookings/:entityType. The caller is the buyer.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c)
		return
	}
	entityType, ok := bindEntityType(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.EntityType = entityType
	req.BuyerID = userID

	result, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings/:entityType. role=buyer (the
// default) lists the caller's requests; role=seller lists requests on the
// caller's listings, optionally narrowed to one entity_id.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c)
		return
	}
	entityType, ok := bindEntityType(c)
	if !ok {
		return
	}

	page, limit := parsePagination(c)
	q := application.ListBookingsQuery{
		EntityType: entityType,
		EntityID:   c.Query("entity_id"),
		Class:      c.Query("class"),
		Page:       page,
		Limit:      limit,
	}
	switch c.DefaultQuery("role", "buyer") {
	case "buyer":
		q.BuyerID = userID
	case "seller":
		q.SellerID = userID
	default:
		response.BadRequest(c, "role must be buyer or seller")
		return
	}

	result, err := h.service.ListBookings(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/id/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetMessages handles GET /api/v1/bookings/id/:id/messages.
func (h *BookingHandler) GetMessages(c *gin.Context) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}
	afterSeq, err := strconv.Atoi(c.DefaultQuery("after_seq", "0"))
	if err != nil {
		response.BadRequest(c, "after_seq must be an integer")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		response.BadRequest(c, "limit must be an integer")
		return
	}

	result, err := h.service.GetMessages(c.Request.Context(), bookingID, afterSeq, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AppendMessage handles POST /api/v1/bookings/id/:id/messages. The caller is the sender.
func (h *BookingHandler) AppendMessage(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c)
		return
	}
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	var req application.AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.AppendMessage(c.Request.Context(), bookingID, userID, req.SenderType, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateStatus handles PATCH /api/v1/bookings/id/:id/status.
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	var req application.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateStatus(c.Request.Context(), bookingID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CompleteDeal handles POST /api/v1/bookings/id/:id/complete.
func (h *BookingHandler) CompleteDeal(c *gin.Context) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	result, err := h.service.CompleteDeal(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// --- Helpers ---

func parseBookingID(c *gin.Context) (uuid.UUID, bool) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return uuid.Nil, false
	}
	return bookingID, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
