package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driss-b/infercore/internal/domain"
)

// statusFor maps pipeline errors to HTTP status codes. Unclassified errors
// are internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCollectionNotFound),
		errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the error body shared by every handler.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		c.Header("Retry-After", "1")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
