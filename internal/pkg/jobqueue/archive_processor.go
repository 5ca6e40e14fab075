package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TrackFox/app/models"
)

// SaleLoader loads a stored sale
type SaleLoader interface {
	GetByID(id uint) (*models.Sale, error)
}

// PayloadArchiver stores the raw body of a sale
type PayloadArchiver interface {
	ArchiveSale(ctx context.Context, sale *models.Sale) (string, error)
}

// NewArchiveHandler returns the handler for JobTypePayloadArchive
func NewArchiveHandler(sales SaleLoader, archiver PayloadArchiver) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		payload, err := PayloadArchiveJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid archive payload: %w", err)
		}

		sale, err := sales.GetByID(payload.SaleID)
		if err != nil {
			return fmt.Errorf("load sale %d: %w", payload.SaleID, err)
		}

		key, err := archiver.ArchiveSale(ctx, sale)
		if err != nil {
			return err
		}
		log.Debugf("[JobQueue] Archived sale %d to %s", sale.ID, key)
		return nil
	}
}

// EnqueueArchive queues the raw payload archive of a stored sale
func EnqueueArchive(q *Queue, sale *models.Sale) error {
	_, err := q.EnqueueJob(JobTypePayloadArchive, PayloadArchiveJobPayload{
		SaleID:      sale.ID,
		WorkspaceID: sale.WorkspaceID,
	}.ToMap())
	return err
}
