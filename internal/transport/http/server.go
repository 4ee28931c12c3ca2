package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"walletnotify/internal/audit"
	"walletnotify/internal/cache"
	"walletnotify/internal/config"
	"walletnotify/internal/database"
	"walletnotify/internal/handler"
	"walletnotify/internal/logger"
	"walletnotify/internal/queue"
	rediscli "walletnotify/internal/redis"
	"walletnotify/internal/repository"
	"walletnotify/internal/service"
	authmw "walletnotify/internal/transport/http/middleware"
	"walletnotify/internal/webhook"
	"walletnotify/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	tokens := repository.NewDeviceTokenRepository(db)
	subs := repository.NewWebPushSubscriptionRepository(db)

	// 3. Delivery channels. A missing channel is not fatal.
	var tokenSender service.TokenSender
	if cfg.FCMConfigured() {
		fcm, err := service.NewFCMClient(ctx, service.FCMCredentials{
			ServiceAccountJSON: cfg.FirebaseServiceAccountJSON,
			ServiceAccountPath: cfg.FirebaseServiceAccountPath,
			ProjectID:          cfg.FirebaseProjectID,
			ClientEmail:        cfg.FirebaseClientEmail,
			PrivateKey:         cfg.FirebasePrivateKey,
		})
		if err != nil {
			log.Error("FCM channel disabled", "error", err)
		} else {
			tokenSender = fcm
			log.Info("FCM channel enabled")
		}
	} else {
		log.Warn("FCM channel disabled: no credentials configured")
	}

	var subSender service.SubscriptionSender
	if cfg.WebPushConfigured() {
		webPush, err := service.NewWebPushClient(service.WebPushConfig{
			Subject:    cfg.VAPIDSubject,
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			TTL:        cfg.WebPushTTL,
		})
		if err != nil {
			log.Error("Web push channel disabled", "error", err)
		} else {
			subSender = webPush
			log.Info("Web push channel enabled")
		}
	} else {
		log.Warn("Web push channel disabled: VAPID subject and keys not configured")
	}

	dispatcher := service.NewDispatcher(tokens, subs, tokenSender, subSender, service.DispatcherConfig{
		MaxConcurrency: cfg.DispatchMaxConcurrency,
	})

	// 4. Optional Redis: de-duplication and the webhook queue
	var rdb *rediscli.Client
	if cfg.RedisURL != "" {
		rdb, err = rediscli.NewClient(cfg.RedisURL)
		if err == nil {
			err = rdb.Ping(ctx)
		}
		if err != nil {
			log.Warn("Redis unavailable, continuing without it", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	procCfg := webhook.ProcessorConfig{
		Notifiable:         webhook.NewStatusPolicy(cfg.NotifiableStatuses),
		IncludeWebhookData: cfg.SendWebhookData,
		Audit:              buildAuditSink(ctx, cfg, log),
	}
	if rdb != nil {
		procCfg.Deduper = cache.NewEventDeduper(rdb.Client, cfg.EventDedupeTTL)
	}
	processor := webhook.NewProcessor(dispatcher, procCfg)

	detached := worker.NewDetached("webhook-notify", processor, cfg.PipelineTimeout)
	var submitter worker.Submitter = detached

	var manager *worker.Manager
	var streamSubmitter *worker.StreamSubmitter
	if cfg.WebhookQueueEnabled && rdb != nil {
		mcfg := worker.DefaultManagerConfig()
		mcfg.WorkerCount = cfg.WorkerCount
		mcfg.TaskTimeout = cfg.PipelineTimeout
		manager = worker.NewManager(queue.NewConsumer(rdb.Client), processor, mcfg)
		if err := manager.Start(ctx); err != nil {
			log.Error("Worker manager failed to start, processing in-process", "error", err)
			manager = nil
		} else {
			streamSubmitter = worker.NewStreamSubmitter(queue.NewPublisher(rdb.Client), mcfg.Stream, detached)
			submitter = streamSubmitter
		}
	}

	// 5. HTTP
	auth := authmw.AuthConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}
	if cfg.JWTJWKSURL != "" {
		jwks, err := authmw.NewJWKSKeyfunc(ctx, cfg.JWTJWKSURL)
		if err != nil {
			return fmt.Errorf("failed to load JWKS: %w", err)
		}
		auth.JWKS = jwks
		log.Info("JWT verification via JWKS", "url", cfg.JWTJWKSURL)
	} else if cfg.JWTPublicKey != "" {
		key, err := authmw.ParseRSAPublicKey(cfg.JWTPublicKey)
		if err != nil {
			return fmt.Errorf("failed to parse JWT_PUBLIC_KEY: %w", err)
		}
		auth.PublicKey = key
	}
	if auth.JWKS == nil && auth.PublicKey == nil && auth.Secret == "" {
		log.Warn("No JWT verification key configured, registration endpoints will reject every token")
	}

	routerCfg := RouterConfig{
		NotificationHandler: handler.NewNotificationHandler(service.NewRegistrationService(tokens, subs), cfg.VAPIDPublicKey),
		WebhookHandler:      handler.NewWebhookHandler(submitter),
		Auth:                auth,
		RateLimiter:         authmw.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		AllowedOrigins:      cfg.CORSAllowedOrigins,
		TrustProxy:          cfg.TrustProxy,
	}
	if cfg.WebhookPublicKey != "" {
		verifier, err := webhook.NewVerifierFromPEM(cfg.WebhookPublicKey)
		if err != nil {
			return fmt.Errorf("failed to parse webhook public key: %w", err)
		}
		routerCfg.Verifier = verifier
	} else {
		log.Warn("No webhook public key configured, /api/webhook will reject every delivery")
	}

	server := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	// 6. Graceful shutdown: stop intake, then drain background work
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown FAILED", "error", err)
	}
	if streamSubmitter != nil {
		if err := streamSubmitter.Wait(shutdownCtx); err != nil {
			log.Warn("Queue publishes still running at shutdown", "error", err)
		}
	}
	if manager != nil {
		manager.Stop()
	}
	if err := detached.Wait(shutdownCtx); err != nil {
		log.Warn("Background tasks still running at shutdown", "error", err)
	}

	log.Info("Server stopped")
	return nil
}

func buildAuditSink(ctx context.Context, cfg *config.Config, log *slog.Logger) audit.Sink {
	if !cfg.AuditEnabled {
		return audit.Nop{}
	}

	switch cfg.AuditSink {
	case "s3":
		sink, err := audit.NewS3SinkFromConfig(ctx, cfg)
		if err != nil {
			log.Error("Audit sink disabled", "sink", "s3", "error", err)
			return audit.Nop{}
		}
		log.Info("Audit sink enabled", "sink", "s3", "bucket", cfg.AuditS3Bucket)
		return sink
	default:
		log.Info("Audit sink enabled", "sink", "file", "dir", cfg.AuditDir)
		return audit.NewFileSink(cfg.AuditDir)
	}
}
