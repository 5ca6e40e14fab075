// Package config parses the typed service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"

	appenv "github.com/ManuelReschke/TrackFox/internal/pkg/env"
)

type Config struct {
	App        App
	HTTP       HTTPServer
	DB         Database   `envPrefix:"DB_"`
	Cache      Cache      `envPrefix:"CACHE_"`
	Security   Security   `envPrefix:"SECURITY_"`
	Webhook    Webhook    `envPrefix:"WEBHOOK_"`
	Sync       Sync       `envPrefix:"SYNC_"`
	Resilience Resilience `envPrefix:"RESILIENCE_"`
	GoogleAds  GoogleAds  `envPrefix:"GOOGLE_ADS_"`
	Meta       Meta       `envPrefix:"META_"`
	Archive    Archive    `envPrefix:"ARCHIVE_"`
	JobQueue   JobQueue   `envPrefix:"JOBQUEUE_"`
}

type App struct {
	Name     string `env:"APP_NAME" envDefault:"TrackFox"`
	Env      string `env:"APP_ENV" envDefault:"prod" validate:"oneof=dev test prod"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
}

// HTTPServer configures the listener. APIRateLimit is requests per minute
// per IP on the /api group.
type HTTPServer struct {
	Host         string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port         string `env:"HTTP_PORT" envDefault:"4000" validate:"required,numeric"`
	APIRateLimit int    `env:"API_RATE_LIMIT" envDefault:"600" validate:"gte=0"`
}

func (h HTTPServer) Addr() string { return h.Host + ":" + h.Port }

type Database struct {
	Host     string `env:"HOST" envDefault:"127.0.0.1"`
	Port     string `env:"PORT" envDefault:"3306"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME"`
}

// DSN returns the go-sql-driver/mysql data source name.
func (d Database) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type Cache struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0" validate:"gte=0,lte=15"`
}

func (c Cache) Addr() string { return c.Host + ":" + c.Port }

// Security holds the base64 encoded 32 byte key for stored ad platform tokens.
type Security struct {
	TokenKey string `env:"TOKEN_KEY"`
}

type Webhook struct {
	RequireSignature bool          `env:"REQUIRE_SIGNATURE" envDefault:"false"`
	RateLimit        int           `env:"RATE_LIMIT" envDefault:"0" validate:"gte=0"`
	RateWindow       time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
	MaxBodyBytes     int           `env:"MAX_BODY_BYTES" envDefault:"1048576" validate:"gt=0"`
}

type Sync struct {
	WindowDays       int           `env:"WINDOW_DAYS" envDefault:"7" validate:"gte=1,lte=90"`
	BatchSize        int           `env:"BATCH_SIZE" envDefault:"5" validate:"gte=1,lte=100"`
	StaleAfter       time.Duration `env:"STALE_AFTER" envDefault:"6h"`
	StuckAfter       time.Duration `env:"STUCK_AFTER" envDefault:"1h"`
	SchedulerEnabled bool          `env:"SCHEDULER_ENABLED" envDefault:"false"`
	ScheduleInterval time.Duration `env:"SCHEDULE_INTERVAL" envDefault:"15m"`
	TriggerToken     string        `env:"TRIGGER_TOKEN"`
	RunTimeout       time.Duration `env:"RUN_TIMEOUT" envDefault:"10m"`
}

type Resilience struct {
	Store            string        `env:"STORE" envDefault:"memory" validate:"oneof=memory redis"`
	MaxRetries       int           `env:"MAX_RETRIES" envDefault:"3" validate:"gte=0,lte=10"`
	BaseDelay        time.Duration `env:"BASE_DELAY" envDefault:"500ms"`
	MaxDelay         time.Duration `env:"MAX_DELAY" envDefault:"10s"`
	FailureThreshold int           `env:"FAILURE_THRESHOLD" envDefault:"5" validate:"gte=1"`
	ResetTimeout     time.Duration `env:"RESET_TIMEOUT" envDefault:"30s"`
	HalfOpenRequests int           `env:"HALF_OPEN_REQUESTS" envDefault:"2" validate:"gte=1"`
	RateLimit        int           `env:"RATE_LIMIT" envDefault:"60" validate:"gte=0"`
	RateWindow       time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
}

type GoogleAds struct {
	BaseURL        string `env:"BASE_URL" envDefault:"https://googleads.googleapis.com"`
	APIVersion     string `env:"API_VERSION" envDefault:"v17"`
	DeveloperToken string `env:"DEVELOPER_TOKEN"`
	ClientID       string `env:"CLIENT_ID"`
	ClientSecret   string `env:"CLIENT_SECRET"`
	TokenURL       string `env:"TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
}

type Meta struct {
	BaseURL    string `env:"BASE_URL" envDefault:"https://graph.facebook.com"`
	APIVersion string `env:"API_VERSION" envDefault:"v19.0"`
	AppID      string `env:"APP_ID"`
	AppSecret  string `env:"APP_SECRET"`
	MaxPages   int    `env:"MAX_PAGES" envDefault:"50" validate:"gte=1"`
}

type Archive struct {
	Enabled         bool   `env:"ENABLED" envDefault:"false"`
	Bucket          string `env:"BUCKET" validate:"required_if=Enabled true"`
	Region          string `env:"REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Prefix          string `env:"PREFIX" envDefault:"webhooks"`
}

type JobQueue struct {
	Workers int `env:"WORKERS" envDefault:"1" validate:"gte=1,lte=16"`
}

// Load parses the configuration from the loaded .env values and the process
// environment, then validates it.
func Load() (*Config, error) {
	return Parse(appenv.Merged())
}

// Parse builds a Config from an explicit environment map.
func Parse(environment map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
