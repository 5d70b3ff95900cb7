package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/propbill/backend/internal/domain/shared"
	"github.com/propbill/backend/internal/interfaces/http/dto"
	"github.com/propbill/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	return middleware.GetRequestID(c)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 response for a failed request binding
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// errorStatus maps err onto an API code, status and message. Domain errors
// keep their message. Anything else is a persistence failure whose message is
// passed through so operators can see what the store rejected.
func errorStatus(err error) (int, string, string) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		return dto.GetHTTPStatus(code), code, domainErr.Message
	}
	message := err.Error()
	if message == "" {
		message = "An unexpected error occurred"
	}
	return http.StatusInternalServerError, dto.ErrCodePersistence, message
}

// HandleError converts an application error to an HTTP response
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	status, code, message := errorStatus(err)
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// HandlePartialError reports a failed operation along with the data
// describing how far it got
func (h *BaseHandler) HandlePartialError(c *gin.Context, err error, data any) {
	_ = c.Error(err)
	status, code, message := errorStatus(err)
	c.JSON(status, dto.NewPartialResponse(data, code, message, getRequestID(c)))
}
