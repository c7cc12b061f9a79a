package response

import (
	"net/http"

	"github.com/Kilat-Marketplace/service-booking/pkg/domain"
	"github.com/gin-gonic/gin"
)

// Body is the envelope for every JSON response.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody describes a failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta carries paging information.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Paginated writes 200 with a page of items.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	c.JSON(http.StatusOK, Body{
		Success: true,
		Data:    items,
		Meta:    &Meta{Total: total, Page: page, Limit: limit, TotalPages: totalPages},
	})
}

// BadRequest writes 400 with a validation error.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Body{
		Error: &ErrorBody{Code: domain.CodeValidation, Message: msg},
	})
}

// Unauthorized writes 401.
func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Body{
		Error: &ErrorBody{Code: "UNAUTHORIZED", Message: "unauthorized"},
	})
}

// Error maps err to a status code and writes it. Untyped errors become 500
// without leaking their text.
func Error(c *gin.Context, err error) {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, Body{
			Error: &ErrorBody{Code: "INTERNAL", Message: "internal server error"},
		})
		return
	}
	c.AbortWithStatusJSON(StatusFor(domain.KindOf(appErr)), Body{
		Error: &ErrorBody{Code: appErr.Code, Message: appErr.Message},
	})
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
