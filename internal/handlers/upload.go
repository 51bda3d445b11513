package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

var (
	errImageMissing  = errors.New("image file is required")
	errImageTooLarge = errors.New("image too large")
	errNotImage      = errors.New("file must be an image")
)

type imageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// readImage reads the multipart field and sniffs its type. It writes the error response itself.
func readImage(c *gin.Context, field string, limit int64) (imageUpload, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errImageMissing.Error()})
		return imageUpload{}, false
	}
	if fh.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLargeMessage(limit)})
		return imageUpload{}, false
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errImageMissing.Error()})
		return imageUpload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
		return imageUpload{}, false
	}
	if int64(len(data)) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLargeMessage(limit)})
		return imageUpload{}, false
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": errNotImage.Error()})
		return imageUpload{}, false
	}
	return imageUpload{Filename: fh.Filename, ContentType: mt.String(), Data: data}, true
}

func tooLargeMessage(limit int64) string {
	return errImageTooLarge.Error() + ": limit is " + humanize.Bytes(uint64(limit))
}
