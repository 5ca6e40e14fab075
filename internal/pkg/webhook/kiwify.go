package webhook

import (
	"encoding/json"

	"github.com/ManuelReschke/TrackFox/app/models"
)

var kiwifyStatuses = map[string]models.SaleStatus{
	"paid":             models.SaleStatusApproved,
	"approved":         models.SaleStatusApproved,
	"order_approved":   models.SaleStatusApproved,
	"refunded":         models.SaleStatusRefunded,
	"order_refunded":   models.SaleStatusRefunded,
	"chargedback":      models.SaleStatusChargeback,
	"chargeback":       models.SaleStatusChargeback,
	"refused":          models.SaleStatusCancelled,
	"order_rejected":   models.SaleStatusCancelled,
	"canceled":         models.SaleStatusCancelled,
	"cancelled":        models.SaleStatusCancelled,
	"waiting_payment":  models.SaleStatusPending,
	"pending":          models.SaleStatusPending,
	"billet_created":   models.SaleStatusPending,
	"pix_created":      models.SaleStatusPending,
	"processing":       models.SaleStatusPending,
	"authorized":       models.SaleStatusPending,
	"waiting_approval": models.SaleStatusPending,
}

type kiwifyPayload struct {
	OrderID          string   `json:"order_id"`
	OrderRef         string   `json:"order_ref"`
	OrderStatus      string   `json:"order_status"`
	WebhookEventType string   `json:"webhook_event_type"`
	CreatedAt        flexTime `json:"created_at"`
	ApprovedDate     flexTime `json:"approved_date"`
	Product          struct {
		ProductID   flexString `json:"product_id"`
		ProductName string     `json:"product_name"`
	} `json:"Product"`
	Customer struct {
		Email string `json:"email"`
	} `json:"Customer"`
	Commissions struct {
		ChargeAmount     flexDecimal `json:"charge_amount"`
		ProductBasePrice flexDecimal `json:"product_base_price"`
		Currency         string      `json:"currency"`
	} `json:"Commissions"`
	TrackingParameters map[string]any `json:"TrackingParameters"`
}

// KiwifyAdapter reads Kiwify order webhooks. Amounts arrive as integer cents.
type KiwifyAdapter struct{}

func (KiwifyAdapter) Platform() models.WebhookPlatform { return models.WebhookPlatformKiwify }

func (KiwifyAdapter) Normalize(payload []byte) (NormalizedSale, error) {
	var p kiwifyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return NormalizedSale{}, err
	}

	currency := normalizeCurrency(p.Commissions.Currency, "BRL")
	cents := p.Commissions.ChargeAmount
	if !cents.Valid {
		cents = p.Commissions.ProductBasePrice
	}

	return NormalizedSale{
		TransactionID:     firstNonEmpty(p.OrderID, p.OrderRef),
		Status:            lookupStatus(kiwifyStatuses, p.OrderStatus, p.WebhookEventType),
		Amount:            MinorToMajor(cents.Value, currency),
		Currency:          currency,
		ProductID:         p.Product.ProductID.String(),
		ProductName:       p.Product.ProductName,
		CustomerEmailHash: hashEmail(p.Customer.Email),
		UTM:               utmFromMap(p.TrackingParameters),
		SaleDate:          firstTime(p.ApprovedDate, p.CreatedAt),
	}, nil
}
