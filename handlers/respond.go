package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quizfunnel/api/models"
)

// respondError maps the error taxonomy onto HTTP statuses. Callers see the
// error kind and a human-readable message, never internal detail.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": err.Error(),
		})
	case errors.Is(err, models.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "session_not_found",
			"message": "Session not found",
		})
	case errors.Is(err, models.ErrTransactionFailure):
		// Rolled back in full; safe for the caller to retry as-is.
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "transaction_failure",
			"message": "Failed to record event, please retry",
		})
	case errors.Is(err, models.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Analytics are temporarily unavailable",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal",
			"message": "Internal server error",
		})
	}
}
