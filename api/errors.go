package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
)

// writeError maps the core's typed error kinds onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrHoldExpired):
		status = http.StatusGone
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
