package model

import (
	"encoding/json"
	"time"
)

// JobStatus tracks the lifecycle of a background job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// TaskTypeSupplierSearch is the only task type the worker currently dispatches.
const TaskTypeSupplierSearch = "supplier_search"

// Job is one durable unit of background work. Rows are owned by the store;
// the worker holds an in-memory copy only for a single claim-process-commit
// cycle. Jobs are never deleted by this subsystem.
type Job struct {
	ID         int64      `json:"id"`
	PurchaseID *int64     `json:"purchase_id,omitempty"`
	TaskType   string     `json:"task_type"`
	InputText  string     `json:"input_text"`
	OutputText *string    `json:"output_text,omitempty"`
	Status     JobStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

// SearchInput is the decoded job input payload.
type SearchInput struct {
	TermsText string   `json:"terms_text"`
	Hints     []string `json:"hints"`
}

// DecodeSearchInput decodes a job input payload. Raw text that is not a JSON
// object is treated as the terms text itself with empty hints, so a malformed
// payload degrades instead of failing the job.
func DecodeSearchInput(raw string) SearchInput {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err == nil && probe != nil {
		var in SearchInput
		_ = json.Unmarshal([]byte(raw), &in)
		if in.Hints == nil {
			in.Hints = []string{}
		}
		return in
	}
	return SearchInput{TermsText: raw, Hints: []string{}}
}

// Encode serializes the input payload for storage.
func (in SearchInput) Encode() string {
	b, err := json.Marshal(in)
	if err != nil {
		return in.TermsText
	}
	return string(b)
}
