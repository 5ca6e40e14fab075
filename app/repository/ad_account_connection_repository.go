package repository

import (
	"time"

	"github.com/ManuelReschke/TrackFox/app/models"
	"gorm.io/gorm"
)

// adAccountConnectionRepository implements the AdAccountConnectionRepository interface
type adAccountConnectionRepository struct {
	db *gorm.DB
}

// NewAdAccountConnectionRepository creates a new ad account connection repository instance
func NewAdAccountConnectionRepository(db *gorm.DB) AdAccountConnectionRepository {
	return &adAccountConnectionRepository{db: db}
}

// Create stores a connection handed over by the OAuth callback flow
func (r *adAccountConnectionRepository) Create(conn *models.AdAccountConnection) error {
	if err := conn.Validate(); err != nil {
		return err
	}
	return r.db.Create(conn).Error
}

// GetByID retrieves a connection by its ID
func (r *adAccountConnectionRepository) GetByID(id uint) (*models.AdAccountConnection, error) {
	var conn models.AdAccountConnection
	if err := r.db.First(&conn, id).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

// ListDueForSync selects active connections that never synced, synced before
// the stale threshold, or are PENDING/ERROR. Running syncs are skipped unless
// they have not moved for stuckAfter, which means the process running them died.
// Oldest first, at most limit rows.
func (r *adAccountConnectionRepository) ListDueForSync(now time.Time, staleAfter, stuckAfter time.Duration, limit int) ([]models.AdAccountConnection, error) {
	if limit <= 0 {
		return nil, nil
	}
	var conns []models.AdAccountConnection
	err := r.db.
		Where("is_active = ?", true).
		Where(r.db.Where("sync_status <> ?", models.SyncStatusSyncing).
			Or("updated_at < ?", now.Add(-stuckAfter))).
		Where(r.db.Where("last_sync_at IS NULL").
			Or("last_sync_at < ?", now.Add(-staleAfter)).
			Or("sync_status IN ?", []models.SyncStatus{models.SyncStatusPending, models.SyncStatusError, models.SyncStatusSyncing})).
		Order("last_sync_at IS NOT NULL, last_sync_at ASC, id ASC").
		Limit(limit).
		Find(&conns).Error
	return conns, err
}

// MarkSyncing claims the connection for a run. It reports false when another
// run holds it and that run was last updated at or after stuckBefore.
func (r *adAccountConnectionRepository) MarkSyncing(id uint, stuckBefore time.Time) (bool, error) {
	result := r.db.Model(&models.AdAccountConnection{}).
		Where("id = ?", id).
		Where(r.db.Where("sync_status <> ?", models.SyncStatusSyncing).Or("updated_at < ?", stuckBefore)).
		Update("sync_status", models.SyncStatusSyncing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkSuccess stamps last_sync_at and clears the previous error
func (r *adAccountConnectionRepository) MarkSuccess(id uint, syncedAt time.Time) error {
	return r.db.Model(&models.AdAccountConnection{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_status":  models.SyncStatusSuccess,
			"last_sync_at": syncedAt,
			"sync_error":   "",
		}).Error
}

// MarkError stores a truncated failure message
func (r *adAccountConnectionRepository) MarkError(id uint, message string) error {
	return r.db.Model(&models.AdAccountConnection{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_status": models.SyncStatusError,
			"sync_error":  models.TruncateSyncError(message),
		}).Error
}

// UpdateTokens persists rotated credentials. An empty refresh token keeps the stored one.
func (r *adAccountConnectionRepository) UpdateTokens(id uint, accessTokenEnc, refreshTokenEnc string, expiresAt *time.Time) error {
	updates := map[string]interface{}{
		"access_token_enc": accessTokenEnc,
		"token_expires_at": expiresAt,
	}
	if refreshTokenEnc != "" {
		updates["refresh_token_enc"] = refreshTokenEnc
	}
	return r.db.Model(&models.AdAccountConnection{}).Where("id = ?", id).Updates(updates).Error
}
