package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse is the standardized JSON response envelope.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError contains error details in the response.
type APIError struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// Success sends a successful JSON response with data.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Data:    data,
	})
}

// Error sends an error JSON response.
func Error(c *gin.Context, statusCode int, message string) {
	ErrorWithReason(c, statusCode, "", message)
}

// ErrorWithReason sends an error JSON response carrying a machine-readable reason.
func ErrorWithReason(c *gin.Context, statusCode int, reason, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    statusCode,
			Reason:  reason,
			Message: message,
		},
	})
}

// HandleError inspects a domain error and sends the appropriate HTTP response.
// Uses errors.As to traverse the full error chain, supporting wrapped errors.
func HandleError(c *gin.Context, err error) {
	var notFound *NotFoundError
	var validation *ValidationError
	var unauthorized *UnauthorizedError
	var permission *PermissionError
	var host *HostError

	switch {
	case errors.As(err, &notFound):
		ErrorWithReason(c, http.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &validation):
		ErrorWithReason(c, http.StatusBadRequest, validation.Code, validation.Error())
	case errors.As(err, &unauthorized):
		Error(c, http.StatusUnauthorized, unauthorized.Error())
	case errors.As(err, &permission):
		ErrorWithReason(c, http.StatusForbidden, "permission_denied", permission.Error())
	case errors.As(err, &host):
		ErrorWithReason(c, http.StatusBadGateway, "host_"+host.Op, "notification center failure")
	default:
		Error(c, http.StatusInternalServerError, "internal server error")
	}
}
