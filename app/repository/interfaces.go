package repository

import (
	"time"

	"github.com/ManuelReschke/TrackFox/app/models"
	"gorm.io/gorm"
)

// WebhookEndpointRepository defines the interface for webhook endpoint operations
type WebhookEndpointRepository interface {
	Create(endpoint *models.WebhookEndpoint) error
	GetByID(id uint) (*models.WebhookEndpoint, error)
	FindByWorkspaceAndUUID(workspaceID, uuid string) (*models.WebhookEndpoint, error)
	ListByWorkspace(workspaceID string) ([]models.WebhookEndpoint, error)
	IncrementDeliveryCounters(id uint, receivedAt time.Time) error
}

// SaleRepository defines the interface for canonical sale records
type SaleRepository interface {
	// CreateIfNotExists inserts the sale unless the same endpoint already stored
	// this transaction in this status. It reports whether a row was written.
	CreateIfNotExists(sale *models.Sale) (bool, error)
	GetByID(id uint) (*models.Sale, error)
	CountByEndpoint(endpointID uint) (int64, error)
	ListByWorkspace(workspaceID string, from, to time.Time) ([]models.Sale, error)
}

// AdAccountConnectionRepository defines the interface for ad account connections
type AdAccountConnectionRepository interface {
	Create(conn *models.AdAccountConnection) error
	GetByID(id uint) (*models.AdAccountConnection, error)
	ListDueForSync(now time.Time, staleAfter, stuckAfter time.Duration, limit int) ([]models.AdAccountConnection, error)
	MarkSyncing(id uint, stuckBefore time.Time) (bool, error)
	MarkSuccess(id uint, syncedAt time.Time) error
	MarkError(id uint, message string) error
	UpdateTokens(id uint, accessTokenEnc, refreshTokenEnc string, expiresAt *time.Time) error
}

// DailyMetricRepository defines the interface for daily metric aggregates
type DailyMetricRepository interface {
	// ReplaceRange deletes the connection's rows in [from, to] and inserts rows
	// inside one transaction.
	ReplaceRange(connectionID uint, from, to time.Time, rows []models.DailyMetric) error
	ListByConnection(connectionID uint, from, to time.Time) ([]models.DailyMetric, error)
}

// Repositories holds all repository instances
type Repositories struct {
	WebhookEndpoint     WebhookEndpointRepository
	Sale                SaleRepository
	AdAccountConnection AdAccountConnectionRepository
	DailyMetric         DailyMetricRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		WebhookEndpoint:     NewWebhookEndpointRepository(db),
		Sale:                NewSaleRepository(db),
		AdAccountConnection: NewAdAccountConnectionRepository(db),
		DailyMetric:         NewDailyMetricRepository(db),
	}
}
