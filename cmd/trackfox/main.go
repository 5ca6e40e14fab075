package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/TrackFox/app/controllers"
	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/internal/pkg/bootstrap"
	"github.com/ManuelReschke/TrackFox/internal/pkg/config"
	"github.com/ManuelReschke/TrackFox/internal/pkg/constants"
	"github.com/ManuelReschke/TrackFox/internal/pkg/env"
	"github.com/ManuelReschke/TrackFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/TrackFox/internal/pkg/middleware"
	"github.com/ManuelReschke/TrackFox/internal/pkg/router"
)

func main() {
	app, services := NewApplication()
	defer services.Close()

	services.Manager.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("[Server] Shutting down")
		if err := app.Shutdown(); err != nil {
			log.Errorf("[Server] Shutdown failed: %v", err)
		}
	}()

	if err := app.Listen(services.Config.HTTP.Addr()); err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *bootstrap.Services) {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}
	log.SetLevel(bootstrap.ParseLogLevel(cfg.App.LogLevel))

	services, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("[Server] Startup failed: %v", err)
	}

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/trackfox to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.Webhook.MaxBodyBytes,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if basePath != "" {
		openAPICfg := swagger.Config{
			BasePath: constants.DocsBasePath,
			FilePath: basePath + "public/docs/v1/openapi.yml",
			Path:     "v1",
		}
		app.Use(swagger.New(openAPICfg))
	} else {
		log.Warn("[Server] OpenAPI document not found, /docs/api is disabled")
	}

	webhooks := controllers.NewWebhookController(services.Repos, nil, controllers.WebhookOptions{
		RequireSignature: cfg.Webhook.RequireSignature,
	})
	if services.Archiver != nil {
		webhooks.WithArchive(func(sale *models.Sale) error {
			return jobqueue.EnqueueArchive(services.Queue, sale)
		})
	}

	readyChecks := map[string]controllers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := services.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"cache": func(ctx context.Context) error {
			return services.Redis.Ping(ctx).Err()
		},
	}

	deps := router.Dependencies{
		Webhooks:     webhooks,
		Sync:         controllers.NewSyncController(services.Orchestrator, cfg.Sync.RunTimeout),
		ReadyChecks:  readyChecks,
		TriggerToken: cfg.Sync.TriggerToken,
		APIRateLimit: cfg.HTTP.APIRateLimit,
	}
	if cfg.Webhook.RateLimit > 0 {
		deps.WebhookThrottle = middleware.WebhookThrottle(services.Limiter, cfg.Webhook.RateLimit, cfg.Webhook.RateWindow)
	}
	if cfg.Resilience.Store == "redis" {
		deps.LimiterStorage = router.NewLimiterStorage(cfg.Cache)
	}

	// ROUTER
	router.InstallRouter(app, deps)

	return app, services
}
