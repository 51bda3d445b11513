package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/handlers"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

// routes bundles what the HTTP surface needs.
type routes struct {
	serviceName    string
	allowedOrigins []string
	trustedProxies []string
	debug          bool

	auth     gin.HandlerFunc
	limiter  *middleware.LimiterPool
	audit    *telemetry.AuditEmitter
	authH    *handlers.AuthHandler
	users    *handlers.UserHandler
	chats    *handlers.ChatHandler
	media    *handlers.MediaHandler
	chatWS   *ws.ChatWebSocketHandler
	feedWS   *ws.FeedWebSocketHandler
	statusFn func() gin.H
}

func newRouter(rt routes) *gin.Engine {
	router := gin.New()
	// nil trusts no proxy; entries are checked by config.Validate
	_ = router.SetTrustedProxies(rt.trustedProxies)
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(rt.serviceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(handlers.RequestID())
	router.Use(cors.New(corsConfig(rt.allowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if rt.statusFn != nil {
			for k, v := range rt.statusFn() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/media/:media_id", rt.media.Get)
	handlers.RegisterDebugRoutes(router, rt.audit, rt.debug)

	authGroup := router.Group("/auth")
	authGroup.POST("/register", middleware.RateLimit(rt.limiter), rt.authH.Register)
	authGroup.POST("/login", middleware.RateLimit(rt.limiter), rt.authH.Login)
	authGroup.POST("/logout", rt.auth, rt.authH.Logout)

	api := router.Group("/", rt.auth)

	api.GET("/users/me", rt.users.Me)
	api.PATCH("/users/me", rt.users.UpdateMe)
	api.GET("/users/me/settings", rt.users.GetSettings)
	api.PATCH("/users/me/settings", rt.users.UpdateSettings)
	api.POST("/users/me/avatar", rt.users.UploadAvatar)
	api.GET("/users/search", rt.users.Search)
	api.GET("/users/:user_id", rt.users.GetUser)

	api.GET("/chats", rt.chats.ListChats)
	api.POST("/chats", rt.chats.StartChat)
	api.GET("/chats/:chat_id", rt.chats.GetChat)
	api.POST("/chats/:chat_id/typing", rt.chats.Typing)
	api.POST("/chats/:chat_id/seen", rt.chats.MarkChatSeen)
	api.GET("/chats/:chat_id/messages", rt.chats.GetChatMessages)
	api.POST("/chats/:chat_id/messages", rt.chats.PostChatMessage)
	api.PUT("/chats/:chat_id/messages/:message_id/reaction", rt.chats.SetReaction)
	api.DELETE("/chats/:chat_id/messages/:message_id/reaction", rt.chats.ClearReaction)
	api.POST("/chats/:chat_id/messages/:message_id/seen", rt.chats.MarkSeen)
	api.POST("/chats/:chat_id/messages/:message_id/image", rt.chats.AttachImage)

	api.GET("/ws/feed", rt.feedWS.Handle)
	api.GET("/ws/chats/:chat_id", rt.chatWS.Handle)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-Device-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
