package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeAdAccountSync  JobType = "ad_account_sync"
	JobTypePayloadArchive JobType = "payload_archive"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	UniqueKey   string                 `json:"unique_key,omitempty"` // dedupe lock held while queued
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// AdAccountSyncJobPayload contains the payload for a single connection sync
type AdAccountSyncJobPayload struct {
	ConnectionID uint `json:"connection_id"`
}

// ToMap converts the payload to a map for storage
func (p AdAccountSyncJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"connection_id": p.ConnectionID,
	}
}

// AdAccountSyncJobPayloadFromMap creates a payload from a map
func AdAccountSyncJobPayloadFromMap(data map[string]interface{}) (*AdAccountSyncJobPayload, error) {
	return payloadFromMap[AdAccountSyncJobPayload](data)
}

// PayloadArchiveJobPayload references the stored sale whose raw body is archived
type PayloadArchiveJobPayload struct {
	SaleID      uint   `json:"sale_id"`
	WorkspaceID string `json:"workspace_id"`
}

// ToMap converts the payload to a map for storage
func (p PayloadArchiveJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"sale_id":      p.SaleID,
		"workspace_id": p.WorkspaceID,
	}
}

// PayloadArchiveJobPayloadFromMap creates a payload from a map
func PayloadArchiveJobPayloadFromMap(data map[string]interface{}) (*PayloadArchiveJobPayload, error) {
	return payloadFromMap[PayloadArchiveJobPayload](data)
}

func payloadFromMap[T any](data map[string]interface{}) (*T, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var payload T
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
