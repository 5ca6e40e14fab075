package adplatform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/TrackFox/internal/pkg/apperror"
)

func TestMetaClientQueryAndPaging(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/act_555/insights", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "token-1", q.Get("access_token"))

		if q.Get("after") == "" {
			assert.Equal(t, "1", q.Get("time_increment"))
			assert.Equal(t, "campaign", q.Get("level"))
			assert.Equal(t, "500", q.Get("limit"))
			assert.Contains(t, q.Get("fields"), "video_p100_watched_actions")

			var tr map[string]string
			assert.NoError(t, json.Unmarshal([]byte(q.Get("time_range")), &tr))
			assert.Equal(t, map[string]string{"since": "2024-03-01", "until": "2024-03-07"}, tr)

			fmt.Fprintf(w, `{"data":[{"campaign_id":"1","date_start":"2024-03-01","spend":"10.50","impressions":"1000",
				"actions":[{"action_type":"purchase","value":"2"}]}],
				"paging":{"next":"%s/v19.0/act_555/insights?access_token=token-1&after=c1"}}`, srvURL)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"campaign_id":"2","date_start":"2024-03-02","spend":"3"}],"paging":{}}`)
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := NewMetaClient(MetaConfig{BaseURL: srv.URL}, MetaCredentials{AccountID: "act_555", AccessToken: "token-1"}, srv.Client(), testGuard(0), nil)
	rows, err := c.GetDailyMetrics(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0].(MetaInsightRow)
	assert.Equal(t, "2024-03-01", first.RowDate())
	assert.Equal(t, Number("10.50"), first.Spend)
	assert.Equal(t, []MetaAction{{ActionType: "purchase", Value: "2"}}, first.Actions)
	assert.Equal(t, "2024-03-02", rows[1].RowDate())
}

func TestMetaClientStopsAtMaxPages(t *testing.T) {
	var calls int32
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprintf(w, `{"data":[{"date_start":"2024-03-01"}],"paging":{"next":"%s/loop"}}`, srvURL)
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := NewMetaClient(MetaConfig{BaseURL: srv.URL, MaxPages: 3}, MetaCredentials{AccountID: "1", AccessToken: "t"}, srv.Client(), testGuard(0), nil)
	rows, err := c.GetDailyMetrics(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestMetaClientExchangesExpiringToken(t *testing.T) {
	var exchanged int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v19.0/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanged, 1)
		q := r.URL.Query()
		assert.Equal(t, "fb_exchange_token", q.Get("grant_type"))
		assert.Equal(t, "app", q.Get("client_id"))
		assert.Equal(t, "old", q.Get("fb_exchange_token"))
		_, _ = io.WriteString(w, `{"access_token":"new","token_type":"bearer","expires_in":5184000}`)
	})
	mux.HandleFunc("/v19.0/act_9/insights", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "new", r.URL.Query().Get("access_token"))
		_, _ = io.WriteString(w, `{"data":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	soon := now.Add(2 * 24 * time.Hour)
	var storedAccess string
	var storedExp *time.Time
	sink := func(_ context.Context, access, refresh string, exp *time.Time) error {
		storedAccess = access
		storedExp = exp
		assert.Empty(t, refresh)
		return nil
	}

	c := NewMetaClient(MetaConfig{BaseURL: srv.URL, AppID: "app", AppSecret: "secret"},
		MetaCredentials{AccountID: "9", AccessToken: "old", TokenExpiresAt: &soon}, srv.Client(), testGuard(0), sink)
	c.now = func() time.Time { return now }

	_, err := c.GetDailyMetrics(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanged))
	assert.Equal(t, "new", storedAccess)
	require.NotNil(t, storedExp)
	assert.Equal(t, now.Add(60*24*time.Hour), *storedExp)
}

func TestMetaClientSkipsExchangeForFreshToken(t *testing.T) {
	var exchanged int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v19.0/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanged, 1)
	})
	mux.HandleFunc("/v19.0/act_9/insights", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	later := time.Now().Add(30 * 24 * time.Hour)
	c := NewMetaClient(MetaConfig{BaseURL: srv.URL, AppID: "app", AppSecret: "secret"},
		MetaCredentials{AccountID: "9", AccessToken: "tok", TokenExpiresAt: &later}, srv.Client(), testGuard(0), nil)
	_, err := c.GetDailyMetrics(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&exchanged))
}

func TestClassifyMetaError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperror.Kind
	}{
		{name: "expired token", status: 400, body: `{"error":{"message":"Error validating access token","code":190}}`, kind: apperror.KindAuth},
		{name: "throttled", status: 400, body: `{"error":{"message":"User request limit reached","code":17}}`, kind: apperror.KindTransientExternal},
		{name: "bad param", status: 400, body: `{"error":{"message":"Invalid parameter","code":100}}`, kind: apperror.KindPermanentExternal},
		{name: "server", status: 502, body: `bad gateway`, kind: apperror.KindTransientExternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyMetaError("meta.insights", tt.status, []byte(tt.body))
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
}

func TestMetaClientTransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	soon := time.Now().Add(time.Hour)
	c := NewMetaClient(MetaConfig{BaseURL: base, AppID: "app", AppSecret: "APP-SECRET-9"},
		MetaCredentials{AccountID: "1", AccessToken: "SECRET-TOKEN-123", TokenExpiresAt: &soon}, nil, testGuard(0), nil)

	_, err := c.GetDailyMetrics(context.Background(), windowStart, windowEnd)
	require.Error(t, err)
	assert.True(t, apperror.IsRetryable(err))
	assert.NotContains(t, err.Error(), "SECRET-TOKEN-123")
	assert.NotContains(t, err.Error(), "APP-SECRET-9")
	assert.Contains(t, err.Error(), "/v19.0/act_1/insights")
}
