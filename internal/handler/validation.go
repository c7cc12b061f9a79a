package handler

import (
	"fmt"

	"github.com/Kilat-Marketplace/service-booking/internal/domain/entity"
	"github.com/Kilat-Marketplace/service-booking/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the entity_type binding rule, backed by registry.
func RegisterValidators(registry *entity.Registry) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("entity_type", func(fl validator.FieldLevel) bool {
		return registry.IsRegistered(fl.Field().String())
	})
}

type entityTypeURI struct {
	EntityType string `uri:"entityType" binding:"required,entity_type"`
}

// bindEntityType validates the :entityType path segment and writes
// UNKNOWN_ENTITY_TYPE on failure.
func bindEntityType(c *gin.Context) (string, bool) {
	var uri entityTypeURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, entity.ErrUnknownEntityType.WithMessage(
			fmt.Sprintf("unknown entity type: %q", c.Param("entityType"))))
		return "", false
	}
	return uri.EntityType, true
}
