package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/caption-rater/backend/internal/database"
)

const (
	defaultGalleryLimit = 60
	maxGalleryLimit     = 600
)

type GallerySource interface {
	Gallery(ctx context.Context, limit int) ([]database.GalleryImage, error)
}

type GalleryHandler struct {
	source GallerySource
}

func NewGalleryHandler(source GallerySource) *GalleryHandler {
	return &GalleryHandler{source: source}
}

// GetGallery returns the newest images with their captions and vote tallies
func (h *GalleryHandler) GetGallery(c *gin.Context) {
	limit := defaultGalleryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxGalleryLimit)
	}

	images, err := h.source.Gallery(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Failed to fetch gallery", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch gallery"})
		return
	}

	c.JSON(http.StatusOK, images)
}
