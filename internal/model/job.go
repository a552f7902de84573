package model

import "time"

// Job status values persisted in the jobs table.
const (
	StatusAccepted  = "accepted"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Job records one process execution.
// This is a pure domain model with no database-specific dependencies or tags.
type Job struct {
	ID         string            `json:"id"`
	ProcessID  string            `json:"process_id"`
	Status     string            `json:"status"`
	Message    string            `json:"message,omitempty"`
	Inputs     map[string]string `json:"inputs"`
	DurationMS int64             `json:"duration_ms"`
	CreatedAt  time.Time         `json:"created_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Artifact is a result file produced by a job and held in object storage.
type Artifact struct {
	JobID      string `json:"job_id"`
	Name       string `json:"name"`
	StorageKey string `json:"storage_key"`
	MediaType  string `json:"media_type"`
	Size       int64  `json:"size"`
}
