package repository

import (
	"time"

	"github.com/ManuelReschke/TrackFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// saleRepository implements the SaleRepository interface
type saleRepository struct {
	db *gorm.DB
}

// NewSaleRepository creates a new sale repository instance
func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) CreateIfNotExists(sale *models.Sale) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "webhook_endpoint_id"},
			{Name: "transaction_id"},
			{Name: "status"},
		},
		DoNothing: true,
	}).Create(sale)
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected > 0 {
		return true, nil
	}

	// Load the stored row so callers get its ID.
	var stored models.Sale
	if err := r.db.Where("webhook_endpoint_id = ? AND transaction_id = ? AND status = ?",
		sale.WebhookEndpointID, sale.TransactionID, sale.Status).First(&stored).Error; err != nil {
		return false, err
	}
	*sale = stored
	return false, nil
}

// GetByID retrieves a sale by its ID
func (r *saleRepository) GetByID(id uint) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.First(&sale, id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// CountByEndpoint counts the sales received through an endpoint
func (r *saleRepository) CountByEndpoint(endpointID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Sale{}).Where("webhook_endpoint_id = ?", endpointID).Count(&count).Error
	return count, err
}

// ListByWorkspace returns the sales of a workspace with sale_date in [from, to)
func (r *saleRepository) ListByWorkspace(workspaceID string, from, to time.Time) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.db.Where("workspace_id = ? AND sale_date >= ? AND sale_date < ?", workspaceID, from, to).
		Order("sale_date ASC, id ASC").
		Find(&sales).Error
	return sales, err
}
