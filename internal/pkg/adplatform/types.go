package adplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ManuelReschke/TrackFox/app/models"
)

// Client fetches raw per-campaign daily rows for one connected ad account.
// Rows keep the provider's field names and units.
type Client interface {
	Platform() models.AdPlatform
	GetDailyMetrics(ctx context.Context, start, end time.Time) ([]RawRow, error)
}

// RawRow is one provider-shaped row. Date returns the provider's YYYY-MM-DD value.
type RawRow interface {
	RowDate() string
}

// Number keeps a JSON number or numeric string verbatim. Parsing is left to
// the metric transformer so malformed values surface there.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(s))
		return nil
	}
	*n = Number(b)
	return nil
}

func (n Number) String() string { return string(n) }

// GoogleAdsRow is one element of a searchStream result batch.
type GoogleAdsRow struct {
	Campaign struct {
		ID   Number `json:"id"`
		Name string `json:"name"`
	} `json:"campaign"`
	Segments struct {
		Date string `json:"date"`
	} `json:"segments"`
	Metrics struct {
		CostMicros       Number `json:"costMicros"`
		Impressions      Number `json:"impressions"`
		Clicks           Number `json:"clicks"`
		Conversions      Number `json:"conversions"`
		ConversionsValue Number `json:"conversionsValue"`
		VideoViews       Number `json:"videoViews"`
		Interactions     Number `json:"interactions"`
	} `json:"metrics"`
}

func (r GoogleAdsRow) RowDate() string { return r.Segments.Date }

// MetaAction is an entry of the insights actions/action_values arrays.
type MetaAction struct {
	ActionType string `json:"action_type"`
	Value      Number `json:"value"`
}

// MetaInsightRow is one campaign-level insights row with time_increment=1.
type MetaInsightRow struct {
	CampaignID             string       `json:"campaign_id"`
	CampaignName           string       `json:"campaign_name"`
	DateStart              string       `json:"date_start"`
	DateStop               string       `json:"date_stop"`
	Spend                  Number       `json:"spend"`
	Reach                  Number       `json:"reach"`
	Impressions            Number       `json:"impressions"`
	Clicks                 Number       `json:"clicks"`
	InlineLinkClicks       Number       `json:"inline_link_clicks"`
	UniqueInlineLinkClicks Number       `json:"unique_inline_link_clicks"`
	Actions                []MetaAction `json:"actions"`
	ActionValues           []MetaAction `json:"action_values"`
	VideoP25               []MetaAction `json:"video_p25_watched_actions"`
	VideoP50               []MetaAction `json:"video_p50_watched_actions"`
	VideoP75               []MetaAction `json:"video_p75_watched_actions"`
	VideoP100              []MetaAction `json:"video_p100_watched_actions"`
}

func (r MetaInsightRow) RowDate() string { return r.DateStart }

// TokenStore persists rotated credentials of a connection. Tokens arrive
// encrypted.
type TokenStore interface {
	UpdateTokens(id uint, accessTokenEnc, refreshTokenEnc string, expiresAt *time.Time) error
}

// TokenRefreshFunc receives plaintext tokens after a refresh or exchange.
// An empty refresh token means the old one stays valid.
type TokenRefreshFunc func(ctx context.Context, accessToken, refreshToken string, expiresAt *time.Time) error

const dateLayout = "2006-01-02"
