package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeCalendarResync JobType = "calendar_resync"
	JobTypeMailboxResync  JobType = "mailbox_resync"
	JobTypeReviewResync   JobType = "review_resync"
	JobTypeWatchRenewal   JobType = "watch_renewal"
	JobTypeMirrorDelete   JobType = "mirror_delete"
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
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// IntegrationResyncJobPayload carries the target integration of a calendar,
// mailbox or review resync triggered by a webhook or manual action.
type IntegrationResyncJobPayload struct {
	IntegrationID  uint `json:"integration_id"`
	WebhookEventID uint `json:"webhook_event_id,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p IntegrationResyncJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"integration_id":   p.IntegrationID,
		"webhook_event_id": p.WebhookEventID,
	}
}

// IntegrationResyncJobPayloadFromMap creates a payload from a map
func IntegrationResyncJobPayloadFromMap(data map[string]interface{}) (*IntegrationResyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload IntegrationResyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// MirrorDeleteJobPayload carries the deleted job whose provider-side calendar
// mirrors must be cleaned up asynchronously.
type MirrorDeleteJobPayload struct {
	JobID  uint `json:"job_id"`
	UserID uint `json:"user_id"`
}

// ToMap converts the payload to a map for storage
func (p MirrorDeleteJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"job_id":  p.JobID,
		"user_id": p.UserID,
	}
}

// MirrorDeleteJobPayloadFromMap creates a payload from a map
func MirrorDeleteJobPayloadFromMap(data map[string]interface{}) (*MirrorDeleteJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload MirrorDeleteJobPayload
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
