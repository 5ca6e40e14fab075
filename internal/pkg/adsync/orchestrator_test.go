package adsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/app/repository"
	"github.com/ManuelReschke/TrackFox/internal/pkg/adplatform"
	"github.com/ManuelReschke/TrackFox/internal/pkg/testutil"
)

var fixedNow = time.Date(2024, 3, 7, 15, 30, 0, 0, time.UTC)

type stubClient struct {
	rows  []adplatform.RawRow
	err   error
	start time.Time
	end   time.Time
}

func (c *stubClient) Platform() models.AdPlatform { return models.AdPlatformMetaAds }

func (c *stubClient) GetDailyMetrics(_ context.Context, start, end time.Time) ([]adplatform.RawRow, error) {
	c.start, c.end = start, end
	return c.rows, c.err
}

type stubFactory struct {
	client *stubClient
	err    error
}

func (f *stubFactory) NewClient(*models.AdAccountConnection) (adplatform.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func row(date, spend, impressions string) adplatform.RawRow {
	return adplatform.MetaInsightRow{DateStart: date, Spend: adplatform.Number(spend), Impressions: adplatform.Number(impressions)}
}

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

type factoryFunc func(*models.AdAccountConnection) (adplatform.Client, error)

func (f factoryFunc) NewClient(c *models.AdAccountConnection) (adplatform.Client, error) { return f(c) }

type fixture struct {
	db    *gorm.DB
	repos *repository.Repositories
	conn  *models.AdAccountConnection
	other *models.AdAccountConnection
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)

	conn := &models.AdAccountConnection{WorkspaceID: "ws-1", Platform: models.AdPlatformMetaAds, ExternalAccountID: "act_1", SyncStatus: models.SyncStatusPending}
	other := &models.AdAccountConnection{WorkspaceID: "ws-1", Platform: models.AdPlatformMetaAds, ExternalAccountID: "act_2", SyncStatus: models.SyncStatusSuccess}
	require.NoError(t, repos.AdAccountConnection.Create(conn))
	require.NoError(t, repos.AdAccountConnection.Create(other))

	seed := func(c *models.AdAccountConnection, d int, spend float64) {
		require.NoError(t, repos.DailyMetric.ReplaceRange(c.ID, day(d), day(d), []models.DailyMetric{{
			WorkspaceID: c.WorkspaceID, Date: day(d), Platform: c.Platform, AmountSpent: spend,
		}}))
	}
	seed(conn, 2, 111)
	seed(conn, 5, 555)
	seed(other, 2, 999)

	return fixture{db: db, repos: repos, conn: conn, other: other}
}

func (f fixture) orchestrator(factory adplatform.ClientFactory) *Orchestrator {
	o := NewOrchestrator(f.repos.AdAccountConnection, f.repos.DailyMetric, factory, Config{})
	o.now = func() time.Time { return fixedNow }
	return o
}

func spendByDay(t *testing.T, repo repository.DailyMetricRepository, connID uint) map[int]float64 {
	t.Helper()
	rows, err := repo.ListByConnection(connID, day(1), day(31))
	require.NoError(t, err)
	out := make(map[int]float64, len(rows))
	for _, r := range rows {
		out[r.Date.Day()] = r.AmountSpent
	}
	return out
}

func TestWindowIsTrailingSevenDays(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil, Config{})
	o.now = func() time.Time { return fixedNow }

	start, end := o.Window()
	assert.Equal(t, day(1), start)
	assert.Equal(t, day(7), end)
}

func TestSyncConnectionReplacesTouchedSpan(t *testing.T) {
	f := newFixture(t)
	client := &stubClient{rows: []adplatform.RawRow{
		row("2024-03-02", "10", "1000"),
		row("2024-03-02", "20", "2000"),
		row("2024-03-04", "5", "500"),
	}}

	res := f.orchestrator(&stubFactory{client: client}).SyncConnection(context.Background(), f.conn.ID)
	require.Equal(t, models.SyncStatusSuccess, res.Status, res.Error)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, day(1), client.start)
	assert.Equal(t, day(7), client.end)
	require.NotNil(t, res.From)
	assert.Equal(t, day(2), *res.From)
	assert.Equal(t, day(4), *res.To)

	// day 5 lies outside the touched span 2..4 and stays
	assert.Equal(t, map[int]float64{2: 30, 4: 5, 5: 555}, spendByDay(t, f.repos.DailyMetric, f.conn.ID))
	assert.Equal(t, map[int]float64{2: 999}, spendByDay(t, f.repos.DailyMetric, f.other.ID))

	got, err := f.repos.AdAccountConnection.GetByID(f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSuccess, got.SyncStatus)
	assert.Empty(t, got.SyncError)
	require.NotNil(t, got.LastSyncAt)
	assert.True(t, got.LastSyncAt.Equal(fixedNow))

	rows, err := f.repos.DailyMetric.ListByConnection(f.conn.ID, day(2), day(2))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10.0, rows[0].CPM)
}

func TestSyncConnectionIsRepeatable(t *testing.T) {
	f := newFixture(t)
	client := &stubClient{rows: []adplatform.RawRow{row("2024-03-03", "7", "70")}}
	o := f.orchestrator(&stubFactory{client: client})

	for i := 0; i < 3; i++ {
		res := o.SyncConnection(context.Background(), f.conn.ID)
		require.Equal(t, models.SyncStatusSuccess, res.Status)
	}
	assert.Equal(t, map[int]float64{2: 111, 3: 7, 5: 555}, spendByDay(t, f.repos.DailyMetric, f.conn.ID))
}

func TestTransformFailureLeavesRowsUntouched(t *testing.T) {
	f := newFixture(t)
	client := &stubClient{rows: []adplatform.RawRow{row("2024-03-02", "not-a-number", "1")}}

	res := f.orchestrator(&stubFactory{client: client}).SyncConnection(context.Background(), f.conn.ID)
	assert.Equal(t, models.SyncStatusError, res.Status)
	assert.NotEmpty(t, res.Error)

	assert.Equal(t, map[int]float64{2: 111, 5: 555}, spendByDay(t, f.repos.DailyMetric, f.conn.ID))

	got, err := f.repos.AdAccountConnection.GetByID(f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, got.SyncStatus)
	assert.NotEmpty(t, got.SyncError)
	assert.Nil(t, got.LastSyncAt)
}

func TestClientFailureIsStoredTruncated(t *testing.T) {
	f := newFixture(t)
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'e'
	}
	client := &stubClient{err: errors.New(string(long))}

	res := f.orchestrator(&stubFactory{client: client}).SyncConnection(context.Background(), f.conn.ID)
	assert.Equal(t, models.SyncStatusError, res.Status)

	got, err := f.repos.AdAccountConnection.GetByID(f.conn.ID)
	require.NoError(t, err)
	assert.Len(t, got.SyncError, models.MaxSyncErrorLength)
}

func TestTransformPanicIsContained(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(&stubFactory{client: &stubClient{}})
	o.transform = func(*models.AdAccountConnection, []adplatform.RawRow) ([]models.DailyMetric, error) {
		panic("boom")
	}

	res := o.SyncConnection(context.Background(), f.conn.ID)
	assert.Equal(t, models.SyncStatusError, res.Status)
	assert.Contains(t, res.Error, "boom")
}

func TestUnknownConnection(t *testing.T) {
	f := newFixture(t)
	res := f.orchestrator(&stubFactory{client: &stubClient{}}).SyncConnection(context.Background(), 9999)
	assert.Equal(t, models.SyncStatusError, res.Status)
	assert.Contains(t, res.Error, "not found")
	assert.True(t, res.NotFound)
}

func TestSyncDueProcessesBatch(t *testing.T) {
	f := newFixture(t)
	recent := fixedNow.Add(-time.Hour)
	require.NoError(t, f.repos.AdAccountConnection.MarkSuccess(f.other.ID, recent))

	client := &stubClient{rows: []adplatform.RawRow{row("2024-03-06", "1", "1")}}
	o := f.orchestrator(&stubFactory{client: client})

	ids, err := o.DueConnectionIDs(0)
	require.NoError(t, err)
	assert.Equal(t, []uint{f.conn.ID}, ids)

	results, err := o.SyncDue(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, f.conn.ID, results[0].ConnectionID)
	assert.Equal(t, models.SyncStatusSuccess, results[0].Status)
}

func TestSyncConnectionSkipsRunningConnection(t *testing.T) {
	f := newFixture(t)
	claimed, err := f.repos.AdAccountConnection.MarkSyncing(f.conn.ID, fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	client := &stubClient{rows: []adplatform.RawRow{row("2024-03-02", "7", "1")}}
	res := f.orchestrator(&stubFactory{client: client}).SyncConnection(context.Background(), f.conn.ID)

	assert.True(t, res.Skipped)
	assert.Equal(t, models.SyncStatusSyncing, res.Status)
	assert.True(t, client.start.IsZero(), "platform must not be called")
	assert.Equal(t, map[int]float64{2: 111, 5: 555}, spendByDay(t, f.repos.DailyMetric, f.conn.ID))

	got, err := f.repos.AdAccountConnection.GetByID(f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSyncing, got.SyncStatus)
}

func TestSyncConnectionTakesOverStuckRun(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&models.AdAccountConnection{}).Where("id = ?", f.conn.ID).
		UpdateColumns(map[string]interface{}{
			"sync_status": models.SyncStatusSyncing,
			"updated_at":  fixedNow.Add(-2 * time.Hour),
		}).Error)

	client := &stubClient{rows: []adplatform.RawRow{row("2024-03-06", "4", "1")}}
	o := f.orchestrator(&stubFactory{client: client})

	ids, err := o.DueConnectionIDs(10)
	require.NoError(t, err)
	assert.Contains(t, ids, f.conn.ID)

	res := o.SyncConnection(context.Background(), f.conn.ID)
	assert.False(t, res.Skipped)
	assert.Equal(t, models.SyncStatusSuccess, res.Status)
	assert.Equal(t, 1, res.Rows)
}

func TestSyncErrorNeverHoldsAccessToken(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	factory := factoryFunc(func(c *models.AdAccountConnection) (adplatform.Client, error) {
		return adplatform.NewMetaClient(adplatform.MetaConfig{BaseURL: base},
			adplatform.MetaCredentials{AccountID: c.ExternalAccountID, AccessToken: "SECRET-TOKEN-123"}, nil, nil, nil), nil
	})

	res := f.orchestrator(factory).SyncConnection(context.Background(), f.conn.ID)
	assert.Equal(t, models.SyncStatusError, res.Status)
	assert.NotContains(t, res.Error, "SECRET-TOKEN-123")

	got, err := f.repos.AdAccountConnection.GetByID(f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, got.SyncStatus)
	assert.NotEmpty(t, got.SyncError)
	assert.NotContains(t, got.SyncError, "SECRET-TOKEN-123")
}
