package webhook

import (
	"encoding/json"

	"github.com/ManuelReschke/TrackFox/app/models"
)

var hotmartStatuses = map[string]models.SaleStatus{
	"approved":                 models.SaleStatusApproved,
	"complete":                 models.SaleStatusApproved,
	"completed":                models.SaleStatusApproved,
	"purchase_approved":        models.SaleStatusApproved,
	"purchase_complete":        models.SaleStatusApproved,
	"refunded":                 models.SaleStatusRefunded,
	"purchase_refunded":        models.SaleStatusRefunded,
	"chargeback":               models.SaleStatusChargeback,
	"purchase_chargeback":      models.SaleStatusChargeback,
	"protested":                models.SaleStatusChargeback,
	"purchase_protest":         models.SaleStatusChargeback,
	"canceled":                 models.SaleStatusCancelled,
	"cancelled":                models.SaleStatusCancelled,
	"purchase_canceled":        models.SaleStatusCancelled,
	"expired":                  models.SaleStatusCancelled,
	"purchase_expired":         models.SaleStatusCancelled,
	"waiting_payment":          models.SaleStatusPending,
	"billet_printed":           models.SaleStatusPending,
	"purchase_billet_printed":  models.SaleStatusPending,
	"purchase_delayed":         models.SaleStatusPending,
	"started":                  models.SaleStatusPending,
	"purchase_out_of_shopping": models.SaleStatusPending,
}

type hotmartPayload struct {
	ID           string   `json:"id"`
	Event        string   `json:"event"`
	CreationDate flexTime `json:"creation_date"`
	Data         struct {
		Product struct {
			ID   flexString `json:"id"`
			Name string     `json:"name"`
		} `json:"product"`
		Buyer struct {
			Email string `json:"email"`
		} `json:"buyer"`
		Purchase struct {
			Transaction  string   `json:"transaction"`
			Status       string   `json:"status"`
			ApprovedDate flexTime `json:"approved_date"`
			OrderDate    flexTime `json:"order_date"`
			Price        struct {
				Value         flexDecimal `json:"value"`
				CurrencyValue string      `json:"currency_value"`
			} `json:"price"`
			Tracking map[string]any `json:"tracking"`
			Origin   struct {
				Src  string `json:"src"`
				Sck  string `json:"sck"`
				Xcod string `json:"xcod"`
			} `json:"origin"`
		} `json:"purchase"`
	} `json:"data"`
}

// HotmartAdapter reads Hotmart v2 postbacks. Prices are already in currency
// units; attribution lives in the nested purchase.tracking object.
type HotmartAdapter struct{}

func (HotmartAdapter) Platform() models.WebhookPlatform { return models.WebhookPlatformHotmart }

func (HotmartAdapter) Normalize(payload []byte) (NormalizedSale, error) {
	var p hotmartPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return NormalizedSale{}, err
	}
	purchase := p.Data.Purchase

	utm := utmFromMap(purchase.Tracking).Merge(UTM{Source: purchase.Origin.Src})

	return NormalizedSale{
		TransactionID:     firstNonEmpty(purchase.Transaction, p.ID),
		Status:            lookupStatus(hotmartStatuses, purchase.Status, p.Event),
		Amount:            purchase.Price.Value.Value,
		Currency:          normalizeCurrency(purchase.Price.CurrencyValue, "BRL"),
		ProductID:         p.Data.Product.ID.String(),
		ProductName:       p.Data.Product.Name,
		CustomerEmailHash: hashEmail(p.Data.Buyer.Email),
		UTM:               utm,
		SaleDate:          firstTime(purchase.ApprovedDate, purchase.OrderDate, p.CreationDate),
	}, nil
}
