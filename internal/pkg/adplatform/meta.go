package adplatform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/internal/pkg/apperror"
	"github.com/ManuelReschke/TrackFox/internal/pkg/resilience"
)

const (
	DefaultMetaBaseURL    = "https://graph.facebook.com"
	DefaultMetaAPIVersion = "v19.0"
	DefaultMetaMaxPages   = 50

	metaPageSize = 500
	// Long-lived tokens are exchanged again when they expire within this window.
	metaExchangeWindow = 7 * 24 * time.Hour
)

var metaInsightFields = []string{
	"campaign_id",
	"campaign_name",
	"spend",
	"reach",
	"impressions",
	"clicks",
	"inline_link_clicks",
	"unique_inline_link_clicks",
	"actions",
	"action_values",
	"video_p25_watched_actions",
	"video_p50_watched_actions",
	"video_p75_watched_actions",
	"video_p100_watched_actions",
}

// MetaConfig holds the Meta app settings.
type MetaConfig struct {
	BaseURL    string
	APIVersion string
	AppID      string
	AppSecret  string
	MaxPages   int
}

func (c MetaConfig) withDefaults() MetaConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultMetaBaseURL
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultMetaAPIVersion
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMetaMaxPages
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// MetaClient reads campaign insights of one ad account from the Graph API.
type MetaClient struct {
	cfg            MetaConfig
	httpClient     *http.Client
	guard          *resilience.Guard
	accountID      string
	accessToken    string
	tokenExpiresAt *time.Time
	onRefresh      TokenRefreshFunc
	now            func() time.Time
}

// MetaCredentials are the decrypted credentials of a connection.
type MetaCredentials struct {
	AccountID      string
	AccessToken    string
	TokenExpiresAt *time.Time
}

func NewMetaClient(cfg MetaConfig, creds MetaCredentials, httpClient *http.Client, guard *resilience.Guard, onRefresh TokenRefreshFunc) *MetaClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if guard == nil {
		guard = resilience.NewGuard(nil, nil, resilience.GuardConfig{})
	}
	return &MetaClient{
		cfg:            cfg.withDefaults(),
		httpClient:     httpClient,
		guard:          guard,
		accountID:      strings.TrimPrefix(strings.TrimSpace(creds.AccountID), "act_"),
		accessToken:    creds.AccessToken,
		tokenExpiresAt: creds.TokenExpiresAt,
		onRefresh:      onRefresh,
		now:            time.Now,
	}
}

func (c *MetaClient) Platform() models.AdPlatform { return models.AdPlatformMetaAds }

type metaInsightsPage struct {
	Data   []MetaInsightRow `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// GetDailyMetrics follows paging.next up to MaxPages pages.
func (c *MetaClient) GetDailyMetrics(ctx context.Context, start, end time.Time) ([]RawRow, error) {
	c.maybeExchangeToken(ctx)

	next, err := c.insightsURL(start, end)
	if err != nil {
		return nil, err
	}

	var rows []RawRow
	for page := 0; next != ""; page++ {
		if page >= c.cfg.MaxPages {
			log.Warnf("[Meta] Account %s stopped paging after %d pages", c.accountID, page)
			break
		}
		var p metaInsightsPage
		if err := c.get(ctx, "meta.insights", next, &p); err != nil {
			return nil, err
		}
		for _, r := range p.Data {
			rows = append(rows, r)
		}
		next = p.Paging.Next
	}
	log.Debugf("[Meta] Account %s returned %d rows", c.accountID, len(rows))
	return rows, nil
}

func (c *MetaClient) insightsURL(start, end time.Time) (string, error) {
	u, err := url.Parse(fmt.Sprintf("%s/%s/act_%s/insights", c.cfg.BaseURL, c.cfg.APIVersion, c.accountID))
	if err != nil {
		return "", apperror.Permanent("meta.insights", err)
	}
	timeRange, _ := json.Marshal(map[string]string{
		"since": start.Format(dateLayout),
		"until": end.Format(dateLayout),
	})

	q := u.Query()
	q.Set("access_token", c.accessToken)
	q.Set("fields", strings.Join(metaInsightFields, ","))
	q.Set("time_range", string(timeRange))
	q.Set("time_increment", "1")
	q.Set("level", "campaign")
	q.Set("limit", fmt.Sprintf("%d", metaPageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *MetaClient) get(ctx context.Context, op, rawURL string, out any) error {
	return c.guard.Do(ctx, string(models.AdPlatformMetaAds), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return apperror.Permanent(op, err)
		}
		req.Header.Set("Accept", "application/json")
		return doJSON(ctx, c.httpClient, req, op, classifyMetaError, out)
	})
}

type metaTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// maybeExchangeToken swaps a soon-expiring token for a fresh long-lived one.
// Failure is logged and the current token is used as is.
func (c *MetaClient) maybeExchangeToken(ctx context.Context) {
	if c.cfg.AppID == "" || c.cfg.AppSecret == "" || c.tokenExpiresAt == nil {
		return
	}
	now := c.now()
	if c.tokenExpiresAt.After(now.Add(metaExchangeWindow)) {
		return
	}

	u, err := url.Parse(fmt.Sprintf("%s/%s/oauth/access_token", c.cfg.BaseURL, c.cfg.APIVersion))
	if err != nil {
		return
	}
	q := u.Query()
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", c.cfg.AppID)
	q.Set("client_secret", c.cfg.AppSecret)
	q.Set("fb_exchange_token", c.accessToken)
	u.RawQuery = q.Encode()

	var tok metaTokenResponse
	if err := c.get(ctx, "meta.exchangeToken", u.String(), &tok); err != nil {
		log.Warnf("[Meta] Long-lived token exchange failed for account %s: %v", c.accountID, err)
		return
	}
	if tok.AccessToken == "" {
		return
	}

	c.accessToken = tok.AccessToken
	var expiresAt *time.Time
	if tok.ExpiresIn > 0 {
		exp := now.Add(time.Duration(tok.ExpiresIn) * time.Second).UTC()
		expiresAt = &exp
	}
	c.tokenExpiresAt = expiresAt
	log.Infof("[Meta] Exchanged access token for account %s", c.accountID)

	if c.onRefresh != nil {
		if err := c.onRefresh(ctx, tok.AccessToken, "", expiresAt); err != nil {
			log.Warnf("[Meta] Exchanged token could not be stored for account %s: %v", c.accountID, err)
		}
	}
}

type metaErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Graph API error codes: 190 invalid token, 4/17/32/613/80004 throttling.
func classifyMetaError(op string, status int, body []byte) error {
	var eb metaErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Code != 0 {
		msg := fmt.Sprintf("code %d: %s", eb.Error.Code, eb.Error.Message)
		switch eb.Error.Code {
		case 190, 102:
			return &apperror.Error{Kind: apperror.KindAuth, Op: op, StatusCode: status, Message: msg}
		case 4, 17, 32, 613, 80004:
			return &apperror.Error{Kind: apperror.KindTransientExternal, Op: op, StatusCode: status, Message: msg}
		}
	}
	return apperror.FromHTTPStatus(op, status, body)
}
