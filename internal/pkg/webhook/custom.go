package webhook

import (
	"encoding/json"

	"github.com/ManuelReschke/TrackFox/app/models"
)

var customStatuses = map[string]models.SaleStatus{
	"approved":   models.SaleStatusApproved,
	"paid":       models.SaleStatusApproved,
	"completed":  models.SaleStatusApproved,
	"complete":   models.SaleStatusApproved,
	"succeeded":  models.SaleStatusApproved,
	"refunded":   models.SaleStatusRefunded,
	"refund":     models.SaleStatusRefunded,
	"chargeback": models.SaleStatusChargeback,
	"disputed":   models.SaleStatusChargeback,
	"cancelled":  models.SaleStatusCancelled,
	"canceled":   models.SaleStatusCancelled,
	"failed":     models.SaleStatusCancelled,
	"pending":    models.SaleStatusPending,
}

type customPayload struct {
	TransactionID flexString  `json:"transaction_id"`
	OrderID       flexString  `json:"order_id"`
	Status        string      `json:"status"`
	Amount        flexDecimal `json:"amount"`
	Currency      string      `json:"currency"`
	ProductID     flexString  `json:"product_id"`
	ProductName   string      `json:"product_name"`
	CustomerEmail string      `json:"customer_email"`
	Email         string      `json:"email"`
	UTMSource     string      `json:"utm_source"`
	UTMMedium     string      `json:"utm_medium"`
	UTMCampaign   string      `json:"utm_campaign"`
	UTMContent    string      `json:"utm_content"`
	UTMTerm       string      `json:"utm_term"`
	SaleDate      flexTime    `json:"sale_date"`
	CreatedAt     flexTime    `json:"created_at"`
}

// CustomAdapter reads the flat generic format documented for self-built
// integrations. Amounts are decimal currency units.
type CustomAdapter struct{}

func (CustomAdapter) Platform() models.WebhookPlatform { return models.WebhookPlatformCustom }

func (CustomAdapter) Normalize(payload []byte) (NormalizedSale, error) {
	var p customPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return NormalizedSale{}, err
	}

	return NormalizedSale{
		TransactionID:     firstNonEmpty(p.TransactionID.String(), p.OrderID.String()),
		Status:            lookupStatus(customStatuses, p.Status),
		Amount:            p.Amount.Value,
		Currency:          p.Currency,
		ProductID:         p.ProductID.String(),
		ProductName:       p.ProductName,
		CustomerEmailHash: hashEmail(p.CustomerEmail, p.Email),
		UTM: UTM{
			Source:   p.UTMSource,
			Medium:   p.UTMMedium,
			Campaign: p.UTMCampaign,
			Content:  p.UTMContent,
			Term:     p.UTMTerm,
		},
		SaleDate: firstTime(p.SaleDate, p.CreatedAt),
	}, nil
}
