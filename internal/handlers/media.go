package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/media"
)

// MediaReader loads stored blobs.
type MediaReader interface {
	Get(ctx context.Context, id string) (media.Blob, error)
}

// MediaHandler serves uploaded images.
type MediaHandler struct {
	store MediaReader
}

func NewMediaHandler(store MediaReader) *MediaHandler {
	return &MediaHandler{store: store}
}

// Get streams a stored blob with its content type.
func (h *MediaHandler) Get(c *gin.Context) {
	blob, err := h.store.Get(c.Request.Context(), c.Param("media_id"))
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load media"})
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}
