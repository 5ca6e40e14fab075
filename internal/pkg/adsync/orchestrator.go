// Package adsync pulls ad platform metrics per connection and replaces the
// stored daily aggregates for the dates a run touched.
package adsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/app/repository"
	"github.com/ManuelReschke/TrackFox/internal/pkg/adplatform"
	"github.com/ManuelReschke/TrackFox/internal/pkg/apperror"
	"github.com/ManuelReschke/TrackFox/internal/pkg/metrics"
	"github.com/ManuelReschke/TrackFox/internal/pkg/transform"
)

const (
	DefaultWindowDays = 7
	DefaultBatchSize  = 5
	DefaultStaleAfter = 6 * time.Hour
	DefaultStuckAfter = time.Hour
)

// Config controls window size and due selection.
type Config struct {
	WindowDays int
	BatchSize  int
	StaleAfter time.Duration
	// StuckAfter is how long a SYNCING connection may go without an update
	// before another run may take it over.
	StuckAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.WindowDays <= 0 {
		c.WindowDays = DefaultWindowDays
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.StuckAfter <= 0 {
		c.StuckAfter = DefaultStuckAfter
	}
	return c
}

// Result describes one finished run.
type Result struct {
	ConnectionID uint              `json:"connection_id"`
	Platform     models.AdPlatform `json:"platform,omitempty"`
	Status       models.SyncStatus `json:"status"`
	Rows         int               `json:"rows"`
	From         *time.Time        `json:"from,omitempty"`
	To           *time.Time        `json:"to,omitempty"`
	Error        string            `json:"error,omitempty"`
	Duration     time.Duration     `json:"duration_ns"`
	Skipped      bool              `json:"skipped,omitempty"`
	NotFound     bool              `json:"-"`
}

// TransformFunc reduces raw rows into daily aggregates.
type TransformFunc func(conn *models.AdAccountConnection, rows []adplatform.RawRow) ([]models.DailyMetric, error)

// Orchestrator runs the PENDING -> SYNCING -> SUCCESS|ERROR state machine.
type Orchestrator struct {
	connections repository.AdAccountConnectionRepository
	metrics     repository.DailyMetricRepository
	clients     adplatform.ClientFactory
	transform   TransformFunc
	cfg         Config
	now         func() time.Time
}

func NewOrchestrator(connections repository.AdAccountConnectionRepository, dailyMetrics repository.DailyMetricRepository, clients adplatform.ClientFactory, cfg Config) *Orchestrator {
	return &Orchestrator{
		connections: connections,
		metrics:     dailyMetrics,
		clients:     clients,
		transform:   transform.DailyMetrics,
		cfg:         cfg.withDefaults(),
		now:         time.Now,
	}
}

// BatchSize is the configured number of connections per due run.
func (o *Orchestrator) BatchSize() int { return o.cfg.BatchSize }

// Window returns the trailing UTC date range ending today.
func (o *Orchestrator) Window() (start, end time.Time) {
	now := o.now().UTC()
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start = end.AddDate(0, 0, -(o.cfg.WindowDays - 1))
	return start, end
}

// SyncConnection runs one connection. It never returns an error; failures
// are stored on the connection and reported in the result.
func (o *Orchestrator) SyncConnection(ctx context.Context, id uint) Result {
	started := o.now()
	res := Result{ConnectionID: id}

	conn, err := o.connections.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = apperror.NotFound("adsync.syncConnection", fmt.Sprintf("connection %d not found", id))
			res.NotFound = true
		}
		log.Warnf("[Sync] Connection %d could not be loaded: %v", id, err)
		res.Status = models.SyncStatusError
		res.Error = err.Error()
		return res
	}
	res.Platform = conn.Platform

	claimed, err := o.connections.MarkSyncing(conn.ID, o.now().UTC().Add(-o.cfg.StuckAfter))
	if err != nil {
		log.Errorf("[Sync] Connection %d could not be marked syncing: %v", conn.ID, err)
		res.Status = models.SyncStatusError
		res.Error = err.Error()
		return res
	}
	if !claimed {
		log.Infof("[Sync] Connection %d is already syncing, skipped", conn.ID)
		res.Status = models.SyncStatusSyncing
		res.Error = "sync already running"
		res.Skipped = true
		return res
	}

	rows, from, to, err := o.run(ctx, conn)
	res.Duration = o.now().Sub(started)

	if err != nil {
		msg := models.TruncateSyncError(err.Error())
		if msg == "" {
			msg = "sync failed"
		}
		if merr := o.connections.MarkError(conn.ID, msg); merr != nil {
			log.Errorf("[Sync] Connection %d error state could not be stored: %v", conn.ID, merr)
		}
		log.Warnf("[Sync] Connection %d (%s) failed after %s: %s", conn.ID, conn.Platform, res.Duration, msg)
		res.Status = models.SyncStatusError
		res.Error = msg
		metrics.ObserveSync(string(conn.Platform), string(res.Status), res.Duration)
		return res
	}

	if err := o.connections.MarkSuccess(conn.ID, o.now().UTC()); err != nil {
		log.Errorf("[Sync] Connection %d success state could not be stored: %v", conn.ID, err)
	}
	res.Status = models.SyncStatusSuccess
	res.Rows = rows
	if rows > 0 {
		res.From, res.To = &from, &to
	}
	log.Infof("[Sync] Connection %d (%s) synced %d days in %s", conn.ID, conn.Platform, rows, res.Duration)
	metrics.ObserveSync(string(conn.Platform), string(res.Status), res.Duration)
	return res
}

// run fetches, transforms and replaces. Nothing is written unless the
// transform succeeded, and the replacement is a single transaction.
func (o *Orchestrator) run(ctx context.Context, conn *models.AdAccountConnection) (n int, from, to time.Time, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sync panicked: %v", rec)
		}
	}()

	client, err := o.clients.NewClient(conn)
	if err != nil {
		return 0, from, to, err
	}

	start, end := o.Window()
	raw, err := client.GetDailyMetrics(ctx, start, end)
	if err != nil {
		return 0, from, to, err
	}

	rows, err := o.transform(conn, raw)
	if err != nil {
		return 0, from, to, err
	}

	from, to, ok := transform.DateSpan(rows)
	if !ok {
		return 0, from, to, nil
	}
	if err := o.metrics.ReplaceRange(conn.ID, from, to, rows); err != nil {
		return 0, from, to, fmt.Errorf("store daily metrics: %w", err)
	}
	return len(rows), from, to, nil
}

// SyncDue runs the due connections one after another, at most limit of them.
// A non-positive limit uses the configured batch size.
func (o *Orchestrator) SyncDue(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = o.cfg.BatchSize
	}
	due, err := o.connections.ListDueForSync(o.now().UTC(), o.cfg.StaleAfter, o.cfg.StuckAfter, limit)
	if err != nil {
		return nil, err
	}
	log.Infof("[Sync] %d connections due", len(due))

	results := make([]Result, 0, len(due))
	for _, conn := range due {
		if ctx.Err() != nil {
			break
		}
		results = append(results, o.SyncConnection(ctx, conn.ID))
	}
	return results, nil
}

// DueConnectionIDs lists the ids a due run would process.
func (o *Orchestrator) DueConnectionIDs(limit int) ([]uint, error) {
	if limit <= 0 {
		limit = o.cfg.BatchSize
	}
	due, err := o.connections.ListDueForSync(o.now().UTC(), o.cfg.StaleAfter, o.cfg.StuckAfter, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(due))
	for _, c := range due {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
