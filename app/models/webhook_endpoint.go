package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookPlatform identifies the payment platform that sends deliveries to an endpoint.
type WebhookPlatform string

const (
	WebhookPlatformHotmart WebhookPlatform = "HOTMART"
	WebhookPlatformKiwify  WebhookPlatform = "KIWIFY"
	WebhookPlatformEduzz   WebhookPlatform = "EDUZZ"
	WebhookPlatformStripe  WebhookPlatform = "STRIPE"
	WebhookPlatformCustom  WebhookPlatform = "CUSTOM"
)

// WebhookPlatforms lists every platform the ingestion handler accepts.
var WebhookPlatforms = []WebhookPlatform{
	WebhookPlatformHotmart,
	WebhookPlatformKiwify,
	WebhookPlatformEduzz,
	WebhookPlatformStripe,
	WebhookPlatformCustom,
}

// ParseWebhookPlatform returns the platform for a case-insensitive name.
func ParseWebhookPlatform(s string) (WebhookPlatform, bool) {
	p := WebhookPlatform(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range WebhookPlatforms {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// WebhookEndpoint is an inbound delivery target owned by a workspace. The
// public identifier in the URL is UUID, never the numeric primary key.
type WebhookEndpoint struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UUID           string          `gorm:"type:char(36);not null;index:ux_webhook_endpoints_workspace_uuid,unique,priority:2" json:"uuid"`
	WorkspaceID    string          `gorm:"type:varchar(64);not null;index:ux_webhook_endpoints_workspace_uuid,unique,priority:1" json:"workspace_id" validate:"required,max=64"`
	Name           string          `gorm:"type:varchar(120);not null;default:''" json:"name" validate:"max=120"`
	Platform       WebhookPlatform `gorm:"type:varchar(20);not null;index" json:"platform" validate:"required,oneof=HOTMART KIWIFY EDUZZ STRIPE CUSTOM"`
	SecretKey      string          `gorm:"type:varchar(255);not null;default:''" json:"-"`
	IsActive       bool            `gorm:"not null;default:true" json:"is_active"`
	LastReceivedAt *time.Time      `gorm:"type:timestamp;default:null" json:"last_received_at,omitempty"`
	TotalReceived  int64           `gorm:"not null;default:0" json:"total_received"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the public UUID when the caller did not set one.
func (e *WebhookEndpoint) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == "" {
		e.UUID = uuid.New().String()
	}
	return nil
}

func (e *WebhookEndpoint) Validate() error {
	return validator.New().Struct(e)
}

// HasSecret reports whether deliveries must pass signature verification.
func (e *WebhookEndpoint) HasSecret() bool {
	return strings.TrimSpace(e.SecretKey) != ""
}
