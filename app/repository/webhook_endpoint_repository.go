package repository

import (
	"time"

	"github.com/ManuelReschke/TrackFox/app/models"
	"gorm.io/gorm"
)

// webhookEndpointRepository implements the WebhookEndpointRepository interface
type webhookEndpointRepository struct {
	db *gorm.DB
}

// NewWebhookEndpointRepository creates a new webhook endpoint repository instance
func NewWebhookEndpointRepository(db *gorm.DB) WebhookEndpointRepository {
	return &webhookEndpointRepository{db: db}
}

// Create stores a new endpoint after validating it
func (r *webhookEndpointRepository) Create(endpoint *models.WebhookEndpoint) error {
	if err := endpoint.Validate(); err != nil {
		return err
	}
	return r.db.Create(endpoint).Error
}

// GetByID retrieves an endpoint by its ID
func (r *webhookEndpointRepository) GetByID(id uint) (*models.WebhookEndpoint, error) {
	var endpoint models.WebhookEndpoint
	err := r.db.First(&endpoint, id).Error
	if err != nil {
		return nil, err
	}
	return &endpoint, nil
}

// FindByWorkspaceAndUUID resolves the endpoint addressed by a webhook URL
func (r *webhookEndpointRepository) FindByWorkspaceAndUUID(workspaceID, uuid string) (*models.WebhookEndpoint, error) {
	var endpoint models.WebhookEndpoint
	err := r.db.Where("workspace_id = ? AND uuid = ?", workspaceID, uuid).First(&endpoint).Error
	if err != nil {
		return nil, err
	}
	return &endpoint, nil
}

// ListByWorkspace returns all endpoints of a workspace
func (r *webhookEndpointRepository) ListByWorkspace(workspaceID string) ([]models.WebhookEndpoint, error) {
	var endpoints []models.WebhookEndpoint
	err := r.db.Where("workspace_id = ?", workspaceID).Order("id ASC").Find(&endpoints).Error
	return endpoints, err
}

// IncrementDeliveryCounters bumps total_received and stamps last_received_at.
// Concurrent deliveries may race; the counter is approximate.
func (r *webhookEndpointRepository) IncrementDeliveryCounters(id uint, receivedAt time.Time) error {
	return r.db.Model(&models.WebhookEndpoint{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"total_received":   gorm.Expr("total_received + ?", 1),
			"last_received_at": receivedAt,
		}).Error
}
