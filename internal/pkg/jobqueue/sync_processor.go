package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TrackFox/internal/pkg/adsync"
)

// ConnectionSyncer runs one connection sync. Failures are persisted on the
// connection, so a finished sync never fails the job.
type ConnectionSyncer interface {
	SyncConnection(ctx context.Context, id uint) adsync.Result
}

// DueLister selects the connections that need a sync
type DueLister interface {
	DueConnectionIDs(limit int) ([]uint, error)
}

// SyncJobKey is the de-duplication key for a connection's sync job
func SyncJobKey(connectionID uint) string {
	return fmt.Sprintf("sync:%d", connectionID)
}

// NewSyncHandler returns the handler for JobTypeAdAccountSync
func NewSyncHandler(syncer ConnectionSyncer) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		payload, err := AdAccountSyncJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid sync payload: %w", err)
		}
		if payload.ConnectionID == 0 {
			return fmt.Errorf("invalid sync payload: missing connection_id")
		}

		res := syncer.SyncConnection(ctx, payload.ConnectionID)
		if res.Error != "" {
			log.Warnf("[JobQueue] Sync of connection %d ended with %s: %s", res.ConnectionID, res.Status, res.Error)
		} else {
			log.Infof("[JobQueue] Sync of connection %d stored %d rows", res.ConnectionID, res.Rows)
		}
		return nil
	}
}

// EnqueueSync queues a sync for one connection unless one is already queued
func EnqueueSync(q *Queue, connectionID uint) (bool, error) {
	_, added, err := q.EnqueueUnique(JobTypeAdAccountSync, SyncJobKey(connectionID), AdAccountSyncJobPayload{ConnectionID: connectionID}.ToMap())
	return added, err
}

// EnqueueDueSyncs queues a sync job for every due connection and returns how
// many jobs were added.
func EnqueueDueSyncs(q *Queue, lister DueLister, limit int) (int, error) {
	ids, err := lister.DueConnectionIDs(limit)
	if err != nil {
		return 0, fmt.Errorf("list due connections: %w", err)
	}
	added := 0
	for _, id := range ids {
		ok, err := EnqueueSync(q, id)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}
