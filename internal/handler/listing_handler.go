package handler

import (
	"github.com/Kilat-Marketplace/service-booking/internal/application"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/entity"
	"github.com/Kilat-Marketplace/service-booking/pkg/auth"
	"github.com/Kilat-Marketplace/service-booking/pkg/middleware"
	"github.com/Kilat-Marketplace/service-booking/pkg/response"
	"github.com/gin-gonic/gin"
)

// ListingHandler serves the listing projection and the entity type catalogue.
type ListingHandler struct {
	service  *application.ListingService
	registry *entity.Registry
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(service *application.ListingService, registry *entity.Registry) *ListingHandler {
	return &ListingHandler{service: service, registry: registry}
}

// RegisterRoutes registers listing routes. Entity types are public.
func (h *ListingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	r.GET("/api/v1/entity-types", h.EntityTypes)

	listings := r.Group("/api/v1/listings")
	listings.Use(middleware.AuthMiddleware(jwtManager))
	{
		listings.GET("/:entityType/:entityID", h.GetListing)
		listings.PUT("/:entityType/:entityID", h.UpsertListing)
	}
}

// EntityTypes handles GET /api/v1/entity-types.
func (h *ListingHandler) EntityTypes(c *gin.Context) {
	response.Success(c, h.registry.Configs())
}

// GetListing handles GET /api/v1/listings/:entityType/:entityID.
func (h *ListingHandler) GetListing(c *gin.Context) {
	entityType, ok := bindEntityType(c)
	if !ok {
		return
	}

	result, err := h.service.GetListing(c.Request.Context(), entityType, c.Param("entityID"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpsertListing handles PUT /api/v1/listings/:entityType/:entityID.
func (h *ListingHandler) UpsertListing(c *gin.Context) {
	entityType, ok := bindEntityType(c)
	if !ok {
		return
	}

	var req application.UpsertListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpsertListing(c.Request.Context(), entityType, c.Param("entityID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
