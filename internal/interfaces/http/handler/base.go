package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/logger"
	"github.com/pharmaerp/receiving/internal/interfaces/http/dto"
	"github.com/pharmaerp/receiving/internal/interfaces/http/middleware"
	"github.com/pharmaerp/receiving/internal/interfaces/validate"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// HandleError writes err as an error envelope. Domain errors keep their code,
// message and details; the status follows the code. Anything else is a 500
// with an opaque message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		status := dto.GetHTTPStatus(domainErr.Code)
		c.Set(middleware.ErrorCodeKey, domainErr.Code)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, dto.NewErrorResponseWithDetails(domainErr.Code, domainErr.Message, requestID, domainErr.Details))
		return
	}

	logger.L(c.Request.Context()).Error("unhandled error", zap.Error(err))
	_ = c.Error(err)
	c.Set(middleware.ErrorCodeKey, dto.ErrCodeInternal)
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// BindJSON decodes and validates the body; on failure it writes the error
// response and returns false
func (h *BaseHandler) BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.handleBindError(c, err)
		return false
	}
	return true
}

// BindQuery decodes and validates the query string like BindJSON
func (h *BaseHandler) BindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		h.handleBindError(c, err)
		return false
	}
	return true
}

func (h *BaseHandler) handleBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.Set(middleware.ErrorCodeKey, dto.ErrCodeRequestTooLarge)
		c.JSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponse(
			dto.ErrCodeRequestTooLarge,
			"Request body exceeds maximum allowed size",
			middleware.GetRequestID(c),
		))
		return
	}

	converted := validate.ToDomainError(err)
	if _, ok := converted.(*shared.DomainError); !ok {
		converted = shared.NewValidationError("malformed request: %v", err)
	}
	h.HandleError(c, converted)
}

// ParseID reads a UUID path parameter; on failure it writes a validation error
func (h *BaseHandler) ParseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.HandleError(c, shared.NewValidationError("invalid %s: must be a UUID", param).WithDetail("field", param))
		return uuid.Nil, false
	}
	return id, true
}
