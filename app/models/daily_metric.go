package models

import "time"

// DailyMetric is the per-date aggregate of one ad account. The whole date span
// touched by a sync run is replaced at once, rows are never merged.
type DailyMetric struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	WorkspaceID           string     `gorm:"type:varchar(64);not null;index:ux_daily_metrics_account_date,unique,priority:1" json:"workspace_id"`
	AdAccountConnectionID uint       `gorm:"not null;index:ux_daily_metrics_account_date,unique,priority:2" json:"ad_account_id"`
	Date                  time.Time  `gorm:"type:date;not null;index:ux_daily_metrics_account_date,unique,priority:3" json:"date"`
	Platform              AdPlatform `gorm:"type:varchar(20);not null" json:"platform"`

	AmountSpent      float64 `gorm:"type:decimal(14,2);not null;default:0" json:"amount_spent"`
	Reach            int64   `gorm:"not null;default:0" json:"reach"`
	Impressions      int64   `gorm:"not null;default:0" json:"impressions"`
	ClicksAll        int64   `gorm:"not null;default:0" json:"clicks_all"`
	LinkClicks       int64   `gorm:"not null;default:0" json:"link_clicks"`
	UniqueLinkClicks int64   `gorm:"not null;default:0" json:"unique_link_clicks"`
	Purchases        float64 `gorm:"type:decimal(14,2);not null;default:0" json:"purchases"`
	PurchaseValue    float64 `gorm:"type:decimal(14,2);not null;default:0" json:"purchase_value"`
	Leads            int64   `gorm:"not null;default:0" json:"leads"`
	LandingPageViews int64   `gorm:"not null;default:0" json:"landing_page_views"`
	AddToCart        int64   `gorm:"not null;default:0" json:"add_to_cart"`
	InitiateCheckout int64   `gorm:"not null;default:0" json:"initiate_checkout"`
	VideoViews       int64   `gorm:"not null;default:0" json:"video_views"`
	VideoP25         int64   `gorm:"not null;default:0" json:"video_p25"`
	VideoP50         int64   `gorm:"not null;default:0" json:"video_p50"`
	VideoP75         int64   `gorm:"not null;default:0" json:"video_p75"`
	VideoP100        int64   `gorm:"not null;default:0" json:"video_p100"`

	CTR  float64 `gorm:"type:decimal(10,4);not null;default:0" json:"ctr"`
	CPC  float64 `gorm:"type:decimal(14,4);not null;default:0" json:"cpc"`
	CPM  float64 `gorm:"type:decimal(14,4);not null;default:0" json:"cpm"`
	ROAS float64 `gorm:"type:decimal(10,4);not null;default:0" json:"roas"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
