package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/internal/pkg/apperror"
	"github.com/ManuelReschke/TrackFox/internal/pkg/security"
)

// NormalizedSale is the platform independent view of one delivery.
type NormalizedSale struct {
	TransactionID     string
	Status            models.SaleStatus
	Amount            decimal.Decimal
	Currency          string
	ProductID         string
	ProductName       string
	CustomerEmailHash string
	UTM               UTM
	SaleDate          time.Time
	// Degraded is set when the adapter failed and defaults were used.
	Degraded bool
}

// ToModel builds the persisted Sale for an endpoint.
func (n NormalizedSale) ToModel(endpoint *models.WebhookEndpoint, raw []byte) *models.Sale {
	return &models.Sale{
		WorkspaceID:       endpoint.WorkspaceID,
		WebhookEndpointID: endpoint.ID,
		Platform:          endpoint.Platform,
		TransactionID:     n.TransactionID,
		Status:            n.Status,
		Amount:            n.Amount,
		Currency:          n.Currency,
		ProductID:         n.ProductID,
		ProductName:       n.ProductName,
		CustomerEmailHash: n.CustomerEmailHash,
		UTMSource:         n.UTM.Source,
		UTMMedium:         n.UTM.Medium,
		UTMCampaign:       n.UTM.Campaign,
		UTMContent:        n.UTM.Content,
		UTMTerm:           n.UTM.Term,
		SaleDate:          n.SaleDate,
		Degraded:          n.Degraded,
		RawPayload:        append([]byte(nil), raw...),
	}
}

// Adapter maps one platform's payload shape onto NormalizedSale.
type Adapter interface {
	Platform() models.WebhookPlatform
	Normalize(payload []byte) (NormalizedSale, error)
}

// Registry dispatches payloads to the adapter of their platform.
type Registry struct {
	adapters map[models.WebhookPlatform]Adapter
	now      func() time.Time
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: make(map[models.WebhookPlatform]Adapter, len(adapters)),
		now:      time.Now,
	}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

// DefaultRegistry knows every supported payment platform.
func DefaultRegistry() *Registry {
	return NewRegistry(
		HotmartAdapter{},
		KiwifyAdapter{},
		EduzzAdapter{},
		StripeAdapter{},
		CustomAdapter{},
	)
}

// Normalize never fails. Adapter errors and panics produce a PENDING record
// with amount zero and Degraded set; the caller keeps the raw payload.
func (r *Registry) Normalize(platform models.WebhookPlatform, payload []byte) (sale NormalizedSale) {
	defer func() {
		if rec := recover(); rec != nil {
			err := apperror.New(apperror.KindNormalization, "webhook.normalize", fmt.Sprintf("panic: %v", rec))
			log.Warnf("[Webhook] %s adapter panicked, storing defaults: %v", platform, err)
			sale = r.fallback(payload)
		}
		sale = r.finalize(sale, payload)
	}()

	adapter, ok := r.adapters[platform]
	if !ok {
		log.Warnf("[Webhook] No adapter registered for platform %q, storing defaults", platform)
		return r.fallback(payload)
	}

	out, err := adapter.Normalize(payload)
	if err != nil {
		err = apperror.Wrap(apperror.KindNormalization, "webhook.normalize", err)
		log.Warnf("[Webhook] %s payload could not be normalized, storing defaults: %v", platform, err)
		return r.fallback(payload)
	}
	return out
}

func (r *Registry) fallback(payload []byte) NormalizedSale {
	return NormalizedSale{
		TransactionID: FallbackTransactionID(payload),
		Status:        models.SaleStatusPending,
		Amount:        decimal.Zero,
		SaleDate:      r.now().UTC(),
		Degraded:      true,
	}
}

func (r *Registry) finalize(s NormalizedSale, payload []byte) NormalizedSale {
	if !s.Status.IsValid() {
		s.Status = models.SaleStatusPending
	}
	if s.Amount.IsNegative() {
		s.Amount = s.Amount.Abs()
	}
	if s.SaleDate.IsZero() {
		s.SaleDate = r.now().UTC()
	}
	s.TransactionID = strings.TrimSpace(s.TransactionID)
	if s.TransactionID == "" {
		s.TransactionID = FallbackTransactionID(payload)
	}
	if len(s.TransactionID) > 191 {
		s.TransactionID = s.TransactionID[:191]
	}
	s.Currency = normalizeCurrency(s.Currency, "")
	return s
}

// FallbackTransactionID derives a stable id from the body so identical
// retries of an unidentifiable payload still collapse into one sale.
func FallbackTransactionID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}

// lookupStatus maps a provider status through table, defaulting to PENDING.
func lookupStatus(table map[string]models.SaleStatus, values ...string) models.SaleStatus {
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if s, ok := table[key]; ok {
			return s
		}
	}
	return models.SaleStatusPending
}

func hashEmail(candidates ...string) string {
	return security.HashEmail(firstNonEmpty(candidates...))
}
