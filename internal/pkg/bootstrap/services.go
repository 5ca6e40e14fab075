// Package bootstrap wires the configured services shared by the HTTP server
// and the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TrackFox/app/repository"
	"github.com/ManuelReschke/TrackFox/internal/pkg/adplatform"
	"github.com/ManuelReschke/TrackFox/internal/pkg/adsync"
	"github.com/ManuelReschke/TrackFox/internal/pkg/apperror"
	"github.com/ManuelReschke/TrackFox/internal/pkg/archive"
	"github.com/ManuelReschke/TrackFox/internal/pkg/cache"
	"github.com/ManuelReschke/TrackFox/internal/pkg/config"
	"github.com/ManuelReschke/TrackFox/internal/pkg/database"
	"github.com/ManuelReschke/TrackFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/TrackFox/internal/pkg/metrics"
	"github.com/ManuelReschke/TrackFox/internal/pkg/resilience"
	"github.com/ManuelReschke/TrackFox/internal/pkg/security"
)

// resilienceStateTTL bounds how long idle breaker and limiter keys live in Redis.
const resilienceStateTTL = 24 * time.Hour

// Services holds everything built from one Config.
type Services struct {
	Config       *config.Config
	DB           *gorm.DB
	Redis        *redis.Client
	Repos        *repository.Repositories
	Limiter      *resilience.RateLimiter
	Guard        *resilience.Guard
	Orchestrator *adsync.Orchestrator
	Queue        *jobqueue.Queue
	Manager      *jobqueue.Manager
	// Archiver is nil when the payload archive is disabled.
	Archiver *archive.Archiver
}

// New connects to MySQL and Redis and builds the sync and queue services.
func New(ctx context.Context, cfg *config.Config) (*Services, error) {
	db, err := database.SetupDatabase(cfg.DB, cfg.App.Env == "dev")
	if err != nil {
		return nil, err
	}
	rdb := cache.SetupCache(cfg.Cache)

	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	store := NewStateStore(cfg.Resilience, rdb)
	limiter := resilience.NewRateLimiter(store)
	breaker := resilience.NewCircuitBreaker(store, resilience.BreakerConfig{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		ResetTimeout:     cfg.Resilience.ResetTimeout,
		HalfOpenRequests: cfg.Resilience.HalfOpenRequests,
		IsFailure:        apperror.IsRetryable,
		OnStateChange: func(key string, from, to resilience.CircuitStateName) {
			metrics.ObserveCircuitTransition(key, string(from), string(to))
		},
	})
	guard := resilience.NewGuard(limiter, breaker, resilience.GuardConfig{
		RateWindow: cfg.Resilience.RateWindow,
		RateLimit:  cfg.Resilience.RateLimit,
		Retry: resilience.RetryOptions{
			MaxRetries:  cfg.Resilience.MaxRetries,
			BaseDelay:   cfg.Resilience.BaseDelay,
			MaxDelay:    cfg.Resilience.MaxDelay,
			ShouldRetry: apperror.IsRetryable,
		},
	})

	var cipher *security.TokenCipher
	if cfg.Security.TokenKey != "" {
		cipher, err = security.NewTokenCipherFromBase64(cfg.Security.TokenKey)
		if err != nil {
			return nil, fmt.Errorf("token key: %w", err)
		}
	} else {
		log.Warn("[Security] SECURITY_TOKEN_KEY is not set, stored ad platform tokens cannot be decrypted")
	}

	factory := &adplatform.Factory{
		Google: adplatform.GoogleAdsConfig{
			BaseURL:        cfg.GoogleAds.BaseURL,
			APIVersion:     cfg.GoogleAds.APIVersion,
			DeveloperToken: cfg.GoogleAds.DeveloperToken,
			ClientID:       cfg.GoogleAds.ClientID,
			ClientSecret:   cfg.GoogleAds.ClientSecret,
			TokenURL:       cfg.GoogleAds.TokenURL,
		},
		Meta: adplatform.MetaConfig{
			BaseURL:    cfg.Meta.BaseURL,
			APIVersion: cfg.Meta.APIVersion,
			AppID:      cfg.Meta.AppID,
			AppSecret:  cfg.Meta.AppSecret,
			MaxPages:   cfg.Meta.MaxPages,
		},
		Cipher:     cipher,
		Guard:      guard,
		HTTPClient: &http.Client{Timeout: cfg.Resilience.HTTPTimeout},
		Tokens:     repos.AdAccountConnection,
	}

	orchestrator := adsync.NewOrchestrator(repos.AdAccountConnection, repos.DailyMetric, factory, adsync.Config{
		WindowDays: cfg.Sync.WindowDays,
		BatchSize:  cfg.Sync.BatchSize,
		StaleAfter: cfg.Sync.StaleAfter,
		StuckAfter: cfg.Sync.StuckAfter,
	})

	queue := jobqueue.NewQueue(rdb, cfg.JobQueue.Workers)
	queue.Handle(jobqueue.JobTypeAdAccountSync, jobqueue.NewSyncHandler(orchestrator))

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		archiver, err = archive.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("payload archive: %w", err)
		}
		queue.Handle(jobqueue.JobTypePayloadArchive, jobqueue.NewArchiveHandler(repos.Sale, archiver))
	}

	manager := jobqueue.NewManager(queue, orchestrator, jobqueue.ManagerConfig{
		DispatchEnabled:  cfg.Sync.SchedulerEnabled,
		DispatchInterval: cfg.Sync.ScheduleInterval,
		DispatchLimit:    cfg.Sync.BatchSize,
	})

	return &Services{
		Config:       cfg,
		DB:           db,
		Redis:        rdb,
		Repos:        repos,
		Limiter:      limiter,
		Guard:        guard,
		Orchestrator: orchestrator,
		Queue:        queue,
		Manager:      manager,
		Archiver:     archiver,
	}, nil
}

// NewStateStore picks the resilience backend. Redis state is shared between
// instances, memory state is per process.
func NewStateStore(cfg config.Resilience, rdb *redis.Client) resilience.StateStore {
	if cfg.Store == "redis" && rdb != nil {
		log.Info("[Resilience] Using Redis state store")
		return resilience.NewRedisStore(rdb, resilienceStateTTL)
	}
	return resilience.NewMemoryStore()
}

// ParseLogLevel maps the LOG_LEVEL setting onto fiber's levels. Unknown
// values fall back to info.
func ParseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

// Close stops the queue manager and releases the connections.
func (s *Services) Close() {
	if s.Manager != nil && s.Manager.IsRunning() {
		s.Manager.Stop()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warnf("[Cache] Closing Redis client: %v", err)
		}
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
