package webhook

import (
	"encoding/json"
	"strings"

	"github.com/ManuelReschke/TrackFox/app/models"
)

var stripeStatuses = map[string]models.SaleStatus{
	"checkout.session.completed":               models.SaleStatusApproved,
	"checkout.session.async_payment_succeeded": models.SaleStatusApproved,
	"payment_intent.succeeded":                 models.SaleStatusApproved,
	"charge.succeeded":                         models.SaleStatusApproved,
	"invoice.paid":                             models.SaleStatusApproved,
	"invoice.payment_succeeded":                models.SaleStatusApproved,
	"charge.refunded":                          models.SaleStatusRefunded,
	"charge.dispute.created":                   models.SaleStatusChargeback,
	"charge.dispute.funds_withdrawn":           models.SaleStatusChargeback,
	"payment_intent.canceled":                  models.SaleStatusCancelled,
	"payment_intent.payment_failed":            models.SaleStatusCancelled,
	"checkout.session.expired":                 models.SaleStatusCancelled,
	"checkout.session.async_payment_failed":    models.SaleStatusCancelled,
	"charge.failed":                            models.SaleStatusCancelled,
	"payment_intent.processing":                models.SaleStatusPending,
	"payment_intent.created":                   models.SaleStatusPending,
}

type stripeEvent struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Created flexTime `json:"created"`
	Data    struct {
		Object stripeObject `json:"object"`
	} `json:"data"`
}

type stripeObject struct {
	ID              string          `json:"id"`
	Object          string          `json:"object"`
	PaymentIntent   flexString      `json:"payment_intent"`
	Charge          flexString      `json:"charge"`
	AmountTotal     flexDecimal     `json:"amount_total"`
	AmountReceived  flexDecimal     `json:"amount_received"`
	AmountPaid      flexDecimal     `json:"amount_paid"`
	Amount          flexDecimal     `json:"amount"`
	Currency        string          `json:"currency"`
	Created         flexTime        `json:"created"`
	CustomerEmail   string          `json:"customer_email"`
	ReceiptEmail    string          `json:"receipt_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	BillingDetails struct {
		Email string `json:"email"`
	} `json:"billing_details"`
	Metadata map[string]string `json:"metadata"`
}

// StripeAdapter reads Stripe events. Amounts are integer minor units whose
// exponent depends on the currency (JPY has none, KWD has three).
type StripeAdapter struct{}

func (StripeAdapter) Platform() models.WebhookPlatform { return models.WebhookPlatformStripe }

func (StripeAdapter) Normalize(payload []byte) (NormalizedSale, error) {
	var ev stripeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return NormalizedSale{}, err
	}
	obj := ev.Data.Object

	currency := normalizeCurrency(obj.Currency, "")
	minor := firstValidDecimal(obj.AmountTotal, obj.AmountReceived, obj.AmountPaid, obj.Amount)

	txID := obj.PaymentIntent.String()
	if txID == "" && strings.HasPrefix(obj.ID, "dp_") {
		txID = obj.Charge.String()
	}

	return NormalizedSale{
		TransactionID:     firstNonEmpty(txID, obj.ID, ev.ID),
		Status:            lookupStatus(stripeStatuses, ev.Type),
		Amount:            MinorToMajor(minor.Value, currency),
		Currency:          currency,
		ProductID:         obj.Metadata["product_id"],
		ProductName:       obj.Metadata["product_name"],
		CustomerEmailHash: hashEmail(obj.CustomerDetails.Email, obj.CustomerEmail, obj.ReceiptEmail, obj.BillingDetails.Email),
		UTM:               utmFromStringMap(obj.Metadata),
		SaleDate:          firstTime(obj.Created, ev.Created),
	}, nil
}

func firstValidDecimal(values ...flexDecimal) flexDecimal {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return flexDecimal{}
}
