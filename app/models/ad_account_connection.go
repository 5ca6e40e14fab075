package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AdPlatform identifies an advertising platform metrics are pulled from.
type AdPlatform string

const (
	AdPlatformGoogleAds AdPlatform = "GOOGLE_ADS"
	AdPlatformMetaAds   AdPlatform = "META_ADS"
)

// SyncStatus is the state of the last sync run for a connection.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusSyncing SyncStatus = "SYNCING"
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusError   SyncStatus = "ERROR"
)

const (
	SyncFrequencyHourly = "HOURLY"
	SyncFrequencyDaily  = "DAILY"
)

// MaxSyncErrorLength bounds the stored sync error message.
const MaxSyncErrorLength = 500

// AdAccountConnection links a workspace to an external ad account. Rows are
// created by the OAuth callback flow; this service only updates sync state and
// rotated tokens.
type AdAccountConnection struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	WorkspaceID       string     `gorm:"type:varchar(64);not null;index:ux_ad_account_connections_account,unique,priority:1" json:"workspace_id" validate:"required,max=64"`
	Platform          AdPlatform `gorm:"type:varchar(20);not null;index:ux_ad_account_connections_account,unique,priority:2" json:"platform" validate:"required,oneof=GOOGLE_ADS META_ADS"`
	ExternalAccountID string     `gorm:"type:varchar(64);not null;index:ux_ad_account_connections_account,unique,priority:3" json:"external_account_id" validate:"required,max=64"`
	AccountName       string     `gorm:"type:varchar(200);not null;default:''" json:"account_name"`
	LoginCustomerID   string     `gorm:"type:varchar(32);not null;default:''" json:"login_customer_id,omitempty"`
	AccessTokenEnc    string     `gorm:"type:text" json:"-"`
	RefreshTokenEnc   string     `gorm:"type:text" json:"-"`
	TokenExpiresAt    *time.Time `gorm:"type:timestamp;default:null" json:"token_expires_at,omitempty"`
	SyncStatus        SyncStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"sync_status"`
	SyncFrequency     string     `gorm:"type:varchar(16);not null;default:'DAILY'" json:"sync_frequency" validate:"omitempty,oneof=HOURLY DAILY"`
	LastSyncAt        *time.Time `gorm:"type:timestamp;default:null;index" json:"last_sync_at,omitempty"`
	SyncError         string     `gorm:"type:text" json:"sync_error,omitempty"`
	IsActive          bool       `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *AdAccountConnection) Validate() error {
	return validator.New().Struct(c)
}

// SyncInterval returns how often the connection should be refreshed.
func (c *AdAccountConnection) SyncInterval() time.Duration {
	if strings.EqualFold(c.SyncFrequency, SyncFrequencyHourly) {
		return time.Hour
	}
	return 24 * time.Hour
}

// TokenExpiresWithin reports whether the stored access token expires inside d.
// Unknown expiry is treated as not expiring.
func (c *AdAccountConnection) TokenExpiresWithin(now time.Time, d time.Duration) bool {
	if c.TokenExpiresAt == nil || c.TokenExpiresAt.IsZero() {
		return false
	}
	return c.TokenExpiresAt.Before(now.Add(d))
}

// TruncateSyncError shortens msg to MaxSyncErrorLength runes.
func TruncateSyncError(msg string) string {
	msg = strings.TrimSpace(msg)
	r := []rune(msg)
	if len(r) <= MaxSyncErrorLength {
		return msg
	}
	return string(r[:MaxSyncErrorLength-3]) + "..."
}
