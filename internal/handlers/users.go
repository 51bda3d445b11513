package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/media"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

// UserHandler serves profiles, settings and user discovery.
type UserHandler struct {
	users      repositories.UserRepository
	uploader   media.Uploader
	uploadKind string
	maxUpload  int64
	audit      *telemetry.AuditEmitter
	log        *zap.Logger
}

// NewUserHandler builds a UserHandler. uploadKind labels upload metrics ("local" or "imagehost").
func NewUserHandler(users repositories.UserRepository, uploader media.Uploader, uploadKind string, maxUpload int64, audit *telemetry.AuditEmitter, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, uploader: uploader, uploadKind: uploadKind, maxUpload: maxUpload, audit: audit, log: log}
}

// Me returns the caller's account.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe merges profile edits. Username uniqueness is enforced by the database.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var patch models.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		patch.Name = &name
	}
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if !usernamePattern.MatchString(username) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username must be 3-30 letters, digits, '.' or '_'"})
			return
		}
		patch.Username = &username
	}

	userID := c.GetString("userID")
	user, err := h.users.UpdateProfile(c.Request.Context(), userID, patch)
	if err != nil {
		h.userError(c, err)
		return
	}
	h.audit.Emit(c.Request.Context(), "INFO", "profile_update", "profile updated", requestIDFromContext(c), &userID)
	c.JSON(http.StatusOK, user)
}

// GetSettings returns the caller's preferences.
func (h *UserHandler) GetSettings(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Settings)
}

// UpdateSettings merges the supplied toggles.
func (h *UserHandler) UpdateSettings(c *gin.Context) {
	var patch models.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settings, err := h.users.UpdateSettings(c.Request.Context(), c.GetString("userID"), patch)
	if err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UploadAvatar stores a new profile image and links it to the profile.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	img, ok := readImage(c, "image", h.maxUpload)
	if !ok {
		return
	}

	url, err := h.uploader.Upload(c.Request.Context(), img.Filename, img.ContentType, img.Data)
	if err != nil {
		observability.IncUpload(h.uploadKind, "error")
		h.log.Warn("avatar_upload_failed", zap.String("user_id", c.GetString("userID")), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	observability.IncUpload(h.uploadKind, "ok")

	user, err := h.users.UpdateProfile(c.Request.Context(), c.GetString("userID"), models.ProfilePatch{ProfileImage: &url})
	if err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Search finds users by username or display name.
func (h *UserHandler) Search(c *gin.Context) {
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxSearchLimit)
	}

	profiles, err := h.users.SearchUsers(c.Request.Context(), c.Query("q"), limit, c.GetString("userID"))
	if err != nil {
		h.log.Error("user_search_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": profiles})
}

// GetUser returns another user's public profile.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Profile())
}

func (h *UserHandler) userError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, repositories.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
	default:
		h.log.Error("user_request_failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process request"})
	}
}
