package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SaleStatus is the canonical status of a sale regardless of the sending platform.
type SaleStatus string

const (
	SaleStatusPending    SaleStatus = "PENDING"
	SaleStatusApproved   SaleStatus = "APPROVED"
	SaleStatusRefunded   SaleStatus = "REFUNDED"
	SaleStatusChargeback SaleStatus = "CHARGEBACK"
	SaleStatusCancelled  SaleStatus = "CANCELLED"
)

// IsValid reports whether s is one of the five canonical statuses.
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusPending, SaleStatusApproved, SaleStatusRefunded, SaleStatusChargeback, SaleStatusCancelled:
		return true
	default:
		return false
	}
}

// Sale is the canonical record persisted for every accepted webhook delivery.
// Rows are append-only; a status transition arrives as a new row.
type Sale struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	WorkspaceID       string          `gorm:"type:varchar(64);not null;index:idx_sales_workspace_date,priority:1" json:"workspace_id"`
	WebhookEndpointID uint            `gorm:"not null;index:ux_sales_endpoint_txn_status,unique,priority:1" json:"webhook_endpoint_id"`
	Platform          WebhookPlatform `gorm:"type:varchar(20);not null" json:"platform"`
	TransactionID     string          `gorm:"type:varchar(191);not null;index:ux_sales_endpoint_txn_status,unique,priority:2" json:"transaction_id"`
	Status            SaleStatus      `gorm:"type:varchar(16);not null;index:ux_sales_endpoint_txn_status,unique,priority:3" json:"status"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount"`
	Currency          string          `gorm:"type:char(3);not null;default:''" json:"currency"`
	ProductID         string          `gorm:"type:varchar(191);not null;default:''" json:"product_id,omitempty"`
	ProductName       string          `gorm:"type:varchar(255);not null;default:''" json:"product_name,omitempty"`
	CustomerEmailHash string          `gorm:"type:char(64);not null;default:'';index" json:"hashed_customer_email,omitempty"`
	UTMSource         string          `gorm:"type:varchar(255);not null;default:''" json:"utm_source,omitempty"`
	UTMMedium         string          `gorm:"type:varchar(255);not null;default:''" json:"utm_medium,omitempty"`
	UTMCampaign       string          `gorm:"type:varchar(255);not null;default:''" json:"utm_campaign,omitempty"`
	UTMContent        string          `gorm:"type:varchar(255);not null;default:''" json:"utm_content,omitempty"`
	UTMTerm           string          `gorm:"type:varchar(255);not null;default:''" json:"utm_term,omitempty"`
	SaleDate          time.Time       `gorm:"type:datetime;not null;index:idx_sales_workspace_date,priority:2" json:"sale_date"`
	Degraded          bool            `gorm:"not null;default:false" json:"degraded"`
	RawPayload        datatypes.JSON  `gorm:"not null" json:"raw_payload"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
