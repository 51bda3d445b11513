package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/telemetry"
)

type debugAuditRequest struct {
	Level  string `json:"level"`
	Action string `json:"action"`
	Text   string `json:"text"`
}

var auditLevels = map[string]bool{"INFO": true, "WARN": true, "ERROR": true}

// RegisterDebugRoutes mounts development-only endpoints under /debug.
// POST /debug/audit pushes a synthetic audit record through the bus.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	debug := router.Group("/debug")
	debug.POST("/audit", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}

		req := debugAuditRequest{Level: "INFO", Action: "debug", Text: "audit test"}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}
		req.Level = strings.ToUpper(req.Level)
		if !auditLevels[req.Level] || strings.TrimSpace(req.Action) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "level must be INFO, WARN or ERROR and action is required"})
			return
		}

		emitter.Emit(c.Request.Context(), req.Level, req.Action, req.Text, requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusAccepted, gin.H{"action": req.Action, "level": req.Level})
	})
}
