package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/dedezza1D/lustra/api/httpapi"
	"github.com/dedezza1D/lustra/internal/auth"
	"github.com/dedezza1D/lustra/internal/blob"
	"github.com/dedezza1D/lustra/internal/config"
	"github.com/dedezza1D/lustra/internal/deploy"
	"github.com/dedezza1D/lustra/internal/events"
	"github.com/dedezza1D/lustra/internal/gemini"
	"github.com/dedezza1D/lustra/internal/hailuo"
	"github.com/dedezza1D/lustra/internal/logging"
	"github.com/dedezza1D/lustra/internal/observability"
	"github.com/dedezza1D/lustra/internal/payment"
	"github.com/dedezza1D/lustra/internal/store"
	"github.com/dedezza1D/lustra/internal/videotask"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Console: cfg.Env == "dev"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	observability.RegisterMetrics()

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.OTelConfig{
		ServiceName: firstNonEmpty(cfg.OTELServiceName, "lustra-api"),
		Endpoint:    cfg.OTELExporterOTLPEndpoint,
		Env:         cfg.Env,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		logger.Fatal("otel init failed", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres, only when a store asks for it
	var pg *store.Store
	if cfg.NeedsDatabase() {
		pg, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connection failed", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("db migration failed", zap.Error(err))
		}
	}

	var ready []func(context.Context) error
	if pg != nil {
		ready = append(ready, pg.Ping)
	}

	// Task store
	var tasks store.TaskRepository
	switch cfg.TaskStore {
	case "postgres":
		tasks = pg
	case "redis":
		rt, err := store.NewRedisTaskRepository(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.TaskRetention)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer func() { _ = rt.Close() }()
		ready = append(ready, rt.Ping)
		tasks = rt
	default:
		mem := store.NewMemoryTaskRepository()
		if cfg.TaskRetention > 0 {
			go pruneLoop(ctx, mem, cfg.TaskRetention, logger)
		}
		tasks = mem
	}

	var templates store.TemplateRepository = store.NewFileTemplateRepository(cfg.TemplatesFile)
	if cfg.TemplateStore == "postgres" {
		templates = pg
	}

	var users store.UserRepository = store.NewMemoryUserRepository()
	if cfg.UserStore == "postgres" {
		users = pg
	}

	// Blob store
	publicBaseURL := cfg.PublicBaseURL
	if publicBaseURL == "" {
		publicBaseURL = "http://localhost:" + cfg.HTTPPort
		logger.Warn("PUBLIC_BASE_URL not set; provider callbacks will not reach this host",
			zap.String("fallback", publicBaseURL))
	}

	var (
		blobs     blob.Store
		publicDir string
	)
	switch cfg.BlobBackend {
	case "s3":
		blobs, err = blob.NewS3Store(ctx, cfg.S3Bucket, cfg.S3PublicBaseURL)
	default:
		blobs, err = blob.NewLocalStore(cfg.PublicDir, publicBaseURL)
		publicDir = cfg.PublicDir
	}
	if err != nil {
		logger.Fatal("blob store init failed", zap.String("backend", cfg.BlobBackend), zap.Error(err))
	}

	// Task events
	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(ctx, events.Config{
			NATSURL:    cfg.NATSURL,
			StreamName: cfg.NATSStreamName,
		}, logger)
		if err != nil {
			logger.Fatal("nats connection failed", zap.Error(err))
		}
		defer np.Close()
		publisher = np
	} else {
		logger.Info("NATS_URL not set; task events disabled")
	}

	// External providers
	images, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		logger.Fatal("gemini client init failed", zap.Error(err))
	}

	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET not set; video callbacks are accepted without verification")
	}
	videoProvider := hailuo.NewClient(hailuo.Options{
		BaseURL:       cfg.PiAPIBaseURL,
		APIKey:        cfg.PiAPIKey,
		WebhookSecret: cfg.WebhookSecret,
		Timeout:       cfg.PiAPITimeout,
	}, logger)

	videos := videotask.NewService(tasks, blobs, videoProvider, publisher, videotask.Config{
		PublicBaseURL: publicBaseURL,
		InputURLTTL:   cfg.SignedURLTTL,
	}, logger)

	payments := payment.NewClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, nil)
	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, option.WithoutAuthentication())
	if err != nil {
		logger.Fatal("firebase auth init failed", zap.Error(err))
	}

	deployer := deploy.NewPipeline(deploy.ExecRunner{}, users, deploy.Config{
		ProjectRoot: cfg.DeployProjectRoot,
		SiteURL:     cfg.DeploySiteURL,
	}, logger)

	// HTTP server
	server := httpapi.NewServer(httpapi.Config{
		Port:               cfg.HTTPPort,
		WebhookSecret:      cfg.WebhookSecret,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		PublicDir:          publicDir,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger, httpapi.Deps{
		Videos:    videos,
		Images:    images,
		Templates: templates,
		Blobs:     blobs,
		Payments:  payments,
		Auth:      verifier,
		Deployer:  deployer,
		Ready: func(ctx context.Context) error {
			for _, check := range ready {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// pruneLoop drops finished tasks older than retention from the in-memory store.
func pruneLoop(ctx context.Context, repo *store.MemoryTaskRepository, retention time.Duration, logger *zap.Logger) {
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := repo.PruneTasks(now.Add(-retention)); n > 0 {
				logger.Info("pruned video tasks", zap.Int("removed", n), zap.Int("remaining", repo.Len()))
			}
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
