package models

import "time"

// IngestionStatus tracks where an ingestion job is in the pipeline.
type IngestionStatus string

const (
	StatusQueued   IngestionStatus = "queued"
	StatusCrawling IngestionStatus = "crawling"
	StatusParsing  IngestionStatus = "parsing"
	StatusSaving   IngestionStatus = "saving"
	StatusDone     IngestionStatus = "done"
	StatusError    IngestionStatus = "error"
)

// Terminal reports whether the status is a final state.
func (s IngestionStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// IngestionJob is one ingestion attempt for a source URL.
//
// Jobs are created queued, mutated only by the pipeline stages, and never
// deleted here; retention is someone else's problem.
type IngestionJob struct {
	ID           string          `json:"id"`
	SourceURL    string          `json:"source_url"`
	Status       IngestionStatus `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RetryCount   int             `json:"retry_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
