package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/events"
	"messenger-service/internal/grpcserver"
	"messenger-service/internal/handlers"
	"messenger-service/internal/imagehost"
	"messenger-service/internal/janitor"
	"messenger-service/internal/logger"
	"messenger-service/internal/media"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/typing"
	"messenger-service/internal/ws"
)

// App owns every long-lived resource of the service.
type App struct {
	cfg config.Config
	log *zap.Logger

	db          *sqlx.DB
	revocations auth.RevocationStore
	publisher   rabbitmq.Publisher
	media       *media.Store
	tracker     *typing.Tracker
	janitor     *janitor.Janitor
	grpc        *grpcserver.Server
	http        *http.Server
	tracing     func(context.Context) error
}

// New connects to the backing services and wires handlers. Optional services degrade to noops.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	log := logger.Named("app")
	a := &App{cfg: cfg, log: log}

	shutdown, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint, logger.Named("tracing"))
	if err != nil {
		return nil, err
	}
	a.tracing = shutdown

	if a.db, err = db.Connect(ctx, cfg.DBDSN); err != nil {
		a.Close()
		return nil, err
	}
	if err := db.Migrate(ctx, a.db, logger.Named("db")); err != nil {
		a.Close()
		return nil, err
	}

	if a.media, err = media.Open(cfg.MediaPath, logger.Named("media")); err != nil {
		a.Close()
		return nil, fmt.Errorf("open media store: %w", err)
	}

	a.revocations = auth.NewRevocationStore(ctx, cfg.RedisAddr, cfg.RedisPassword, logger.Named("auth"))
	a.publisher = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger.Named("amqp"))
	observability.SetPublisher(a.publisher)

	audit := telemetry.NewAuditEmitter(a.publisher, "audit.messenger", cfg.ServiceName, cfg.Env, logger.Named("audit"))
	emitter := events.NewEmitter(a.publisher, logger.Named("events"))

	users := repositories.NewUserRepo(a.db)
	chats := repositories.NewChatRepo(a.db)
	messages := repositories.NewMessageRepo(a.db)

	hub := ws.NewHub(logger.Named("ws"))
	presence := ws.NewPresence(hub, users, chats, logger.Named("presence"))
	a.tracker = typing.NewTracker(cfg.TypingTimeout, chats, hub, logger.Named("typing"))

	var uploader media.Uploader = media.NewLocalUploader(a.media, cfg.PublicBaseURL)
	uploadKind := "local"
	if cfg.ImageHostURL != "" {
		uploader = imagehost.New(cfg.ImageHostURL, cfg.ImageHostKey)
		uploadKind = "imagehost"
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	limiter := middleware.NewLimiterPool(cfg.AuthRateRPS, cfg.AuthRateBurst)

	chatHandler := handlers.NewChatHandler(chats, messages, users, hub, a.tracker, logger.Named("chats")).
		WithEvents(emitter).
		WithUploads(uploader, uploadKind, cfg.MaxUploadSize)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(routes{
		serviceName:    cfg.ServiceName,
		allowedOrigins: cfg.AllowedOrigins,
		trustedProxies: cfg.TrustedProxies,
		debug:          cfg.IsDevelopment(),
		auth:           middleware.AuthMiddleware(tokens, a.revocations, logger.Named("auth")),
		limiter:        limiter,
		audit:          audit,
		authH:          handlers.NewAuthHandler(users, tokens, a.revocations, audit, emitter, logger.Named("auth")),
		users:          handlers.NewUserHandler(users, uploader, uploadKind, cfg.MaxUploadSize, audit, logger.Named("users")),
		chats:          chatHandler,
		media:          handlers.NewMediaHandler(a.media),
		chatWS:         ws.NewChatWebSocketHandler(hub, chats, a.tracker, logger.Named("ws")),
		feedWS:         ws.NewFeedWebSocketHandler(hub, presence, logger.Named("ws")),
		statusFn: func() gin.H {
			return gin.H{
				"revocations":  auth.StoreMode(a.revocations),
				"events":       rabbitmq.PublisherMode(a.publisher),
				"uploads":      uploadKind,
				"online_users": len(hub.OnlineUsers()),
			}
		},
	})

	a.http = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.grpc = grpcserver.New(a.db, logger.Named("grpc"))
	a.janitor = janitor.New(cfg.JanitorCron, cfg.TypingTimeout, chats, users, hub, presence, limiter, logger.Named("janitor"))

	log.Info("app_ready",
		zap.String("env", cfg.Env),
		zap.String("revocations", auth.StoreMode(a.revocations)),
		zap.String("events", rabbitmq.PublisherMode(a.publisher)),
		zap.String("events_noop_reason", rabbitmq.PublisherNoopReason(a.publisher)),
		zap.String("uploads", uploadKind),
		zap.String("max_upload", cfg.MaxUploadSizeHuman()),
	)
	return a, nil
}

// Run serves HTTP and gRPC until ctx is cancelled or a server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.janitor.Start(ctx)

	errc := make(chan error, 2)
	go func() {
		a.log.Info("http_listening", zap.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
			return
		}
		errc <- nil
	}()
	go func() {
		errc <- a.grpc.Serve(ctx, ":"+a.cfg.GRPCPort)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	a.grpc.Stop()
	if err := a.http.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	a.log.Info("servers_stopped")
	return runErr
}

// Close releases resources in reverse dependency order. It is safe on a partially built App.
func (a *App) Close() {
	if a.tracker != nil {
		a.tracker.Close()
	}
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.revocations != nil {
		_ = a.revocations.Close()
	}
	if a.media != nil {
		if err := a.media.Close(); err != nil {
			a.log.Warn("media_close_failed", zap.Error(err))
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.tracing(ctx)
	}
}
