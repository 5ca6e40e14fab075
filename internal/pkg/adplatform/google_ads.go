package adplatform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/oauth2"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/internal/pkg/apperror"
	"github.com/ManuelReschke/TrackFox/internal/pkg/resilience"
)

const (
	DefaultGoogleAdsBaseURL    = "https://googleads.googleapis.com"
	DefaultGoogleAdsAPIVersion = "v17"
	DefaultGoogleTokenURL      = "https://oauth2.googleapis.com/token"
)

// GoogleAdsConfig holds the application level Google Ads settings.
type GoogleAdsConfig struct {
	BaseURL        string
	APIVersion     string
	DeveloperToken string
	ClientID       string
	ClientSecret   string
	TokenURL       string
}

func (c GoogleAdsConfig) withDefaults() GoogleAdsConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultGoogleAdsBaseURL
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultGoogleAdsAPIVersion
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultGoogleTokenURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// GoogleAdsClient queries one customer account through googleAds:searchStream.
type GoogleAdsClient struct {
	cfg             GoogleAdsConfig
	httpClient      *http.Client
	guard           *resilience.Guard
	customerID      string
	loginCustomerID string
	accessToken     string
	refreshToken    string
	onRefresh       TokenRefreshFunc
}

// GoogleAdsCredentials are the decrypted tokens of a connection.
type GoogleAdsCredentials struct {
	CustomerID      string
	LoginCustomerID string
	AccessToken     string
	RefreshToken    string
}

func NewGoogleAdsClient(cfg GoogleAdsConfig, creds GoogleAdsCredentials, httpClient *http.Client, guard *resilience.Guard, onRefresh TokenRefreshFunc) *GoogleAdsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if guard == nil {
		guard = resilience.NewGuard(nil, nil, resilience.GuardConfig{})
	}
	return &GoogleAdsClient{
		cfg:             cfg.withDefaults(),
		httpClient:      httpClient,
		guard:           guard,
		customerID:      normalizeCustomerID(creds.CustomerID),
		loginCustomerID: normalizeCustomerID(creds.LoginCustomerID),
		accessToken:     creds.AccessToken,
		refreshToken:    creds.RefreshToken,
		onRefresh:       onRefresh,
	}
}

func (c *GoogleAdsClient) Platform() models.AdPlatform { return models.AdPlatformGoogleAds }

// GetDailyMetrics returns one row per campaign and day in [start, end]. An
// expired access token is refreshed once and the query retried once.
func (c *GoogleAdsClient) GetDailyMetrics(ctx context.Context, start, end time.Time) ([]RawRow, error) {
	query := googleAdsQuery(start, end)

	rows, err := c.search(ctx, query)
	if err == nil || !apperror.Is(err, apperror.KindAuth) || c.refreshToken == "" {
		return rows, err
	}

	log.Infof("[GoogleAds] Access token rejected for customer %s, refreshing", c.customerID)
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	return c.search(ctx, query)
}

func googleAdsQuery(start, end time.Time) string {
	return fmt.Sprintf(
		"SELECT segments.date, campaign.id, campaign.name, metrics.cost_micros, metrics.impressions, "+
			"metrics.clicks, metrics.conversions, metrics.conversions_value, metrics.video_views, metrics.interactions "+
			"FROM campaign WHERE segments.date BETWEEN '%s' AND '%s'",
		start.Format(dateLayout), end.Format(dateLayout),
	)
}

type searchStreamBatch struct {
	Results []GoogleAdsRow `json:"results"`
}

func (c *GoogleAdsClient) search(ctx context.Context, query string) ([]RawRow, error) {
	const op = "googleads.searchStream"
	endpoint := fmt.Sprintf("%s/%s/customers/%s/googleAds:searchStream", c.cfg.BaseURL, c.cfg.APIVersion, c.customerID)
	payload := fmt.Sprintf(`{"query":%q}`, query)

	var batches []searchStreamBatch
	err := c.guard.Do(ctx, string(models.AdPlatformGoogleAds), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
		if err != nil {
			return apperror.Permanent(op, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("developer-token", c.cfg.DeveloperToken)
		if c.loginCustomerID != "" {
			req.Header.Set("login-customer-id", c.loginCustomerID)
		}
		batches = nil
		return doJSON(ctx, c.httpClient, req, op, nil, &batches)
	})
	if err != nil {
		return nil, err
	}

	var rows []RawRow
	for _, b := range batches {
		for _, r := range b.Results {
			rows = append(rows, r)
		}
	}
	log.Debugf("[GoogleAds] Customer %s returned %d rows", c.customerID, len(rows))
	return rows, nil
}

// refresh performs a single refresh_token grant. It is not retried.
func (c *GoogleAdsClient) refresh(ctx context.Context) error {
	const op = "googleads.refreshToken"
	conf := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: c.refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			if re.Response.StatusCode == http.StatusBadRequest || re.Response.StatusCode == http.StatusUnauthorized {
				return apperror.Wrap(apperror.KindAuth, op, err)
			}
			return apperror.FromHTTPStatus(op, re.Response.StatusCode, re.Body)
		}
		return apperror.FromTransport(op, err)
	}

	c.accessToken = tok.AccessToken
	rotated := ""
	if tok.RefreshToken != "" && tok.RefreshToken != c.refreshToken {
		c.refreshToken = tok.RefreshToken
		rotated = tok.RefreshToken
	}

	if c.onRefresh != nil {
		var expiresAt *time.Time
		if !tok.Expiry.IsZero() {
			exp := tok.Expiry.UTC()
			expiresAt = &exp
		}
		if err := c.onRefresh(ctx, tok.AccessToken, rotated, expiresAt); err != nil {
			log.Warnf("[GoogleAds] Refreshed token could not be stored for customer %s: %v", c.customerID, err)
		}
	}
	return nil
}

func normalizeCustomerID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "-", "")
}
