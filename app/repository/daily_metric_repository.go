package repository

import (
	"time"

	"github.com/ManuelReschke/TrackFox/app/models"
	"gorm.io/gorm"
)

const dailyMetricBatchSize = 200

// dailyMetricRepository implements the DailyMetricRepository interface
type dailyMetricRepository struct {
	db *gorm.DB
}

// NewDailyMetricRepository creates a new daily metric repository instance
func NewDailyMetricRepository(db *gorm.DB) DailyMetricRepository {
	return &dailyMetricRepository{db: db}
}

func (r *dailyMetricRepository) ReplaceRange(connectionID uint, from, to time.Time, rows []models.DailyMetric) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ad_account_connection_id = ? AND date >= ? AND date <= ?", connectionID, from, to).
			Delete(&models.DailyMetric{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].ID = 0
			rows[i].AdAccountConnectionID = connectionID
		}
		return tx.CreateInBatches(rows, dailyMetricBatchSize).Error
	})
}

// ListByConnection returns the connection's rows with date in [from, to]
func (r *dailyMetricRepository) ListByConnection(connectionID uint, from, to time.Time) ([]models.DailyMetric, error) {
	var rows []models.DailyMetric
	err := r.db.Where("ad_account_connection_id = ? AND date >= ? AND date <= ?", connectionID, from, to).
		Order("date ASC").
		Find(&rows).Error
	return rows, err
}
