package handlers

import (
	"errors"
	"net/http"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/pkg/logger"
	"github.com/gin-gonic/gin"
)

// respondError maps service errors to status codes. notFound is the message
// used for ErrNotFound.
func respondError(c *gin.Context, err error, notFound string) {
	var validationErr *models.ValidationError
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	default:
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
