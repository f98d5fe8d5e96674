package model

import (
	"encoding/json"
	"strings"
	"time"
)

// PurchaseStatus values this subsystem writes through the side-channel port.
const (
	PurchaseStatusDraft              = "draft"
	PurchaseStatusSearchingSuppliers = "searching_suppliers"
	PurchaseStatusSuppliersFound     = "suppliers_found"
)

// SearchResult is one ranked result from the search provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"text"`
}

// SiteContacts holds the contacts extracted from one candidate site during the
// crawl stage. Phones are extracted alongside emails but only emails feed the
// persisted contact rows.
type SiteContacts struct {
	Website string   `json:"website"`
	Emails  []string `json:"emails"`
	Phones  []string `json:"phones,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// SupplierCandidate is the merged per-site verdict produced by the pipeline.
type SupplierCandidate struct {
	Website    string   `json:"website"`
	IsRelevant bool     `json:"is_relevant"`
	Reason     string   `json:"reason"`
	Name       *string  `json:"name"`
	Emails     []string `json:"emails"`
}

// CreatedSupplier records one supplier row the merge step created or enriched.
type CreatedSupplier struct {
	SupplierID int64    `json:"supplier_id"`
	Website    string   `json:"website"`
	Emails     []string `json:"emails"`
}

// SearchOutput is the job output payload for a supplier search.
type SearchOutput struct {
	Queries           []string            `json:"queries"`
	Note              string              `json:"note"`
	TechTaskExcerpt   string              `json:"tech_task_excerpt"`
	SearchOutput      []SiteContacts      `json:"search_output"`
	ProcessedContacts []SupplierCandidate `json:"processed_contacts"`
	SkippedURLs       []string            `json:"skipped_urls,omitempty"`
	CreatedSuppliers  []CreatedSupplier   `json:"created_suppliers,omitempty"`
}

// Encode serializes the output payload for storage.
func (o *SearchOutput) Encode() (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SearchState is the read-only projection served to polling callers.
type SearchState struct {
	TaskID                int64               `json:"task_id"`
	Status                JobStatus           `json:"status"`
	Queries               []string            `json:"queries"`
	Note                  string              `json:"note"`
	TechTaskExcerpt       string              `json:"tech_task_excerpt"`
	SearchOutput          []SiteContacts      `json:"search_output"`
	ProcessedContacts     []SupplierCandidate `json:"processed_contacts"`
	QueueLength           int                 `json:"queue_length"`
	EstimatedCompleteTime *time.Time          `json:"estimated_complete_time,omitempty"`
}

// NormalizeWebsite strips the trailing slash so the same site keys identically
// across the search and validation stages.
func NormalizeWebsite(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}
