package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/ManuelReschke/TrackFox/app/models"
)

// Scheme is the way a platform proves a delivery is authentic.
type Scheme int

const (
	// SchemeEmbeddedToken compares a shared secret carried in the body.
	SchemeEmbeddedToken Scheme = iota
	// SchemeHMACExact compares hex(HMAC-SHA256(body)) with the header value.
	SchemeHMACExact
	// SchemeHMACContains accepts a composite header that contains the hex digest.
	SchemeHMACContains
)

// Signature headers in the order the ingestion handler checks them.
var SignatureHeaders = []string{
	"X-Webhook-Signature",
	"X-Hotmart-Hottok",
	"X-Kiwify-Signature",
	"X-Eduzz-Signature",
	"Stripe-Signature",
}

// SchemeFor returns the verification scheme of a platform.
func SchemeFor(platform models.WebhookPlatform) Scheme {
	switch platform {
	case models.WebhookPlatformHotmart:
		return SchemeEmbeddedToken
	case models.WebhookPlatformStripe:
		return SchemeHMACContains
	default:
		return SchemeHMACExact
	}
}

// Verify checks a delivery for platform against secret. An empty secret means
// the endpoint runs without verification and every delivery passes.
func Verify(platform models.WebhookPlatform, secret, signature string, payload []byte) bool {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return true
	}
	signature = strings.TrimSpace(signature)

	switch SchemeFor(platform) {
	case SchemeEmbeddedToken:
		token := embeddedToken(payload)
		if token == "" {
			token = signature
		}
		if token == "" {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
	case SchemeHMACContains:
		if signature == "" {
			return false
		}
		return strings.Contains(strings.ToLower(signature), SignPayload(payload, secret))
	default:
		sig := strings.TrimPrefix(strings.ToLower(signature), "sha256=")
		decoded, err := hex.DecodeString(sig)
		if err != nil || len(decoded) == 0 {
			return false
		}
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		return hmac.Equal(mac.Sum(nil), decoded)
	}
}

// SignPayload returns the lower-case hex HMAC-SHA256 of payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func embeddedToken(payload []byte) string {
	var body struct {
		Hottok string `json:"hottok"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Hottok)
}
