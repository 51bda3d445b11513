package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
	"messenger-service/internal/events"
	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,30}$`)

// AuthHandler serves sign-up, sign-in and sign-out.
type AuthHandler struct {
	users       repositories.UserRepository
	tokens      *auth.TokenManager
	revocations auth.RevocationStore
	audit       *telemetry.AuditEmitter
	events      *events.Emitter
	log         *zap.Logger
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(users repositories.UserRepository, tokens *auth.TokenManager, revocations auth.RevocationStore, audit *telemetry.AuditEmitter, emitter *events.Emitter, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, revocations: revocations, audit: audit, events: emitter, log: log}
}

type authResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Register creates an account with default settings and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if !usernamePattern.MatchString(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username must be 3-30 letters, digits, '.' or '_'"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Error("password_hash_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create account"})
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Settings:     models.DefaultSettings(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		case errors.Is(err, repositories.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		default:
			h.log.Error("user_create_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create account"})
		}
		return
	}

	token, claims, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.log.Error("token_issue_failed", zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign in"})
		return
	}

	requestID := requestIDFromContext(c)
	h.audit.Emit(c.Request.Context(), "INFO", "register", "account created", requestID, &user.ID)
	h.events.UserRegistered(c.Request.Context(), events.UserRegistered{UserID: user.ID, Username: user.Username}, requestID)

	c.JSON(http.StatusCreated, authResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user})
}

// Login exchanges email and password for a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidCredentials.Error()})
			return
		}
		h.log.Error("user_lookup_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign in"})
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		h.audit.Emit(c.Request.Context(), "WARN", "login_failed", "bad password", requestIDFromContext(c), &user.ID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidCredentials.Error()})
		return
	}

	token, claims, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.log.Error("token_issue_failed", zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign in"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "login", "user signed in", requestIDFromContext(c), &user.ID)
	c.JSON(http.StatusOK, authResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user})
}

// Logout revokes the presented token until it would have expired.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
		return
	}

	if err := h.revocations.Revoke(c.Request.Context(), claims.ID, h.tokens.Remaining(claims)); err != nil {
		h.log.Error("logout_failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed. please try again."})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "logout", "user signed out", requestIDFromContext(c), &claims.UserID)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}
