package events

import (
	"time"

	"novelhub/pkg/models"
)

// JobEvent is broadcast on every job status transition so clients can
// watch an ingestion progress without polling.
type JobEvent struct {
	Type      string                 `json:"type"` // "job.status"
	JobID     string                 `json:"job_id"`
	SourceURL string                 `json:"source_url"`
	Status    models.IngestionStatus `json:"status"`
	Error     string                 `json:"error,omitempty"`
	At        time.Time              `json:"at"`
}

func NewJobEvent(job *models.IngestionJob) JobEvent {
	return JobEvent{
		Type:      "job.status",
		JobID:     job.ID,
		SourceURL: job.SourceURL,
		Status:    job.Status,
		Error:     job.ErrorMessage,
		At:        time.Now().UTC(),
	}
}
