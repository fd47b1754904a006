package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/photo"
)

// APIError is the HTTP error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

var (
	ErrNotFound = &APIError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: "resource not found",
	}
	ErrTooManyRequests = &APIError{
		Status:  http.StatusTooManyRequests,
		Code:    "rate_limited",
		Message: "too many triggers, slow down",
	}
	ErrServiceUnavailable = &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "service_unavailable",
		Message: "service unavailable",
	}
)

func invalidRequestError(message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: message,
	}
}

// AbortWithError maps an error onto the HTTP envelope.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}
	if errors.Is(err, photo.ErrNotFound) {
		c.AbortWithStatusJSON(ErrNotFound.Status, gin.H{"error": ErrNotFound})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": &APIError{
		Code:    "internal",
		Message: "internal error",
	}})
}
