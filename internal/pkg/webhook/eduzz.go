package webhook

import (
	"encoding/json"

	"github.com/ManuelReschke/TrackFox/app/models"
)

// Eduzz reports numeric invoice status codes.
var eduzzStatuses = map[string]models.SaleStatus{
	"1":  models.SaleStatusPending,
	"3":  models.SaleStatusApproved,
	"4":  models.SaleStatusCancelled,
	"6":  models.SaleStatusPending,
	"7":  models.SaleStatusRefunded,
	"9":  models.SaleStatusCancelled,
	"10": models.SaleStatusCancelled,
	"11": models.SaleStatusPending,
	"15": models.SaleStatusChargeback,

	"paid":       models.SaleStatusApproved,
	"open":       models.SaleStatusPending,
	"canceled":   models.SaleStatusCancelled,
	"refunded":   models.SaleStatusRefunded,
	"chargeback": models.SaleStatusChargeback,
}

type eduzzPayload struct {
	TransCod        flexString  `json:"trans_cod"`
	TransStatus     flexString  `json:"trans_status"`
	TransValue      flexDecimal `json:"trans_value"`
	TransPaid       flexDecimal `json:"trans_paid"`
	TransCurrency   string      `json:"trans_currency"`
	TransCreateDate flexTime    `json:"trans_createdate"`
	TransPaidDate   flexTime    `json:"trans_paiddate"`
	ProductCod      flexString  `json:"product_cod"`
	ProductName     string      `json:"product_name"`
	CusEmail        string      `json:"cus_email"`
	Tracker         struct {
		LandingPage string `json:"landing_page"`
	} `json:"tracker"`
	URL string `json:"url"`
}

// EduzzAdapter reads Eduzz sale notifications. Attribution is only available
// as utm parameters in the landing page URL.
type EduzzAdapter struct{}

func (EduzzAdapter) Platform() models.WebhookPlatform { return models.WebhookPlatformEduzz }

func (EduzzAdapter) Normalize(payload []byte) (NormalizedSale, error) {
	var p eduzzPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return NormalizedSale{}, err
	}

	amount := p.TransPaid
	if !amount.Valid || amount.Value.IsZero() {
		amount = p.TransValue
	}

	return NormalizedSale{
		TransactionID:     p.TransCod.String(),
		Status:            lookupStatus(eduzzStatuses, p.TransStatus.String()),
		Amount:            amount.Value,
		Currency:          normalizeCurrency(p.TransCurrency, "BRL"),
		ProductID:         p.ProductCod.String(),
		ProductName:       p.ProductName,
		CustomerEmailHash: hashEmail(p.CusEmail),
		UTM:               utmFromURL(firstNonEmpty(p.Tracker.LandingPage, p.URL)),
		SaleDate:          firstTime(p.TransPaidDate, p.TransCreateDate),
	}, nil
}
