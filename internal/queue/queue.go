// Package queue exposes the durable supplier-search job queue: idempotent
// enqueue, the polling state projection, and the background worker that
// drains the queue through the pipeline.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zakupai/supplier-search/internal/model"
	"github.com/zakupai/supplier-search/internal/pipeline"
	"github.com/zakupai/supplier-search/internal/store"
)

// Notes surfaced to polling clients.
const (
	QueuedNote     = "Поиск поставщиков поставлен в очередь"
	InProgressNote = "Поиск поставщиков выполняется"
)

// ETA model: a fixed per-job allowance plus the same for every job ahead.
const (
	etaBase      = 10 * time.Minute
	etaPerQueued = 10 * time.Minute
)

// ErrNoSearch is returned by State when no supplier search was ever enqueued
// for the purchase.
var ErrNoSearch = eris.New("queue: no supplier search for purchase")

// PurchaseStatusPort is the side channel used to move the owning purchase
// between supplier-search states. Callers treat failures as log-only: the job
// itself is already durable when a status write happens.
type PurchaseStatusPort interface {
	TransitionPurchaseStatus(ctx context.Context, id int64, from, to string) (bool, error)
}

// Queue is the enqueue/state facade over the job store.
type Queue struct {
	store    store.Store
	statuses PurchaseStatusPort
}

// New creates a Queue. The store doubles as the purchase status port.
func New(st store.Store) *Queue {
	return &Queue{store: st, statuses: st}
}

// EnqueueSupplierSearch creates a supplier-search job for the purchase, or
// returns the already active one: a purchase never holds two live searches.
// Empty terms fall back to the purchase's technical task. Draft purchases
// move to searching_suppliers.
func (q *Queue) EnqueueSupplierSearch(ctx context.Context, purchaseID int64, termsText string, hints []string) (*model.Job, error) {
	purchase, err := q.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	existing, err := q.store.FindActiveJob(ctx, purchaseID, model.TaskTypeSupplierSearch)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if termsText == "" {
		termsText = purchase.TechTask
	}
	input := model.SearchInput{TermsText: termsText, Hints: hints}

	job, err := q.store.InsertJob(ctx, &purchaseID, model.TaskTypeSupplierSearch, input.Encode())
	if err != nil {
		return nil, err
	}

	// Status writes are fire-and-forget: the job is already durable.
	if _, err := q.statuses.TransitionPurchaseStatus(ctx, purchaseID,
		model.PurchaseStatusDraft, model.PurchaseStatusSearchingSuppliers); err != nil {
		zap.L().Warn("queue: purchase status update failed",
			zap.Int64("purchase_id", purchaseID), zap.Error(err))
	}

	return job, nil
}

// State projects the latest supplier-search job for the purchase into the
// read model served to polling clients.
func (q *Queue) State(ctx context.Context, purchaseID int64) (*model.SearchState, error) {
	job, err := q.store.FindLatestJob(ctx, purchaseID, model.TaskTypeSupplierSearch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSearch
		}
		return nil, err
	}

	state := &model.SearchState{
		TaskID: job.ID,
		Status: job.Status,
	}

	if job.OutputText != nil {
		out := decodeOutput(*job.OutputText)
		state.Queries = out.Queries
		state.Note = out.Note
		state.TechTaskExcerpt = out.TechTaskExcerpt
		state.SearchOutput = out.SearchOutput
		state.ProcessedContacts = out.ProcessedContacts
	}
	if state.Note == "" {
		// Failed jobs store a bare diagnostic string; surface it as the note.
		if job.Status == model.JobStatusFailed && job.OutputText != nil {
			state.Note = *job.OutputText
		} else {
			state.Note = InProgressNote
		}
	}

	// Completed jobs from before the full pipeline carry no query plan;
	// rebuild one deterministically so clients still see something useful.
	if job.Status == model.JobStatusCompleted && len(state.Queries) == 0 {
		in := model.DecodeSearchInput(job.InputText)
		plan := pipeline.FallbackPlan(in.TermsText, in.Hints)
		state.Queries = plan.Queries
		state.Note = plan.Note
	}

	queueLength, err := q.store.CountQueued(ctx, model.TaskTypeSupplierSearch)
	if err != nil {
		return nil, err
	}
	// The wait estimate counts jobs ahead of this one, not the job itself.
	if job.Status == model.JobStatusQueued && queueLength > 0 {
		queueLength--
	}
	state.QueueLength = queueLength

	if job.Status == model.JobStatusQueued || job.Status == model.JobStatusInProgress {
		eta := time.Now().UTC().Add(etaBase + time.Duration(queueLength)*etaPerQueued)
		state.EstimatedCompleteTime = &eta
	}

	return state, nil
}

// decodeOutput tolerates the historical raw-text output format the same way
// input decoding does: anything that is not a JSON object comes back empty.
func decodeOutput(raw string) model.SearchOutput {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil || probe == nil {
		return model.SearchOutput{}
	}
	var out model.SearchOutput
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
