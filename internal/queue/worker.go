package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zakupai/supplier-search/internal/model"
	"github.com/zakupai/supplier-search/internal/pipeline"
	"github.com/zakupai/supplier-search/internal/resilience"
	"github.com/zakupai/supplier-search/internal/store"
)

// Runner executes one supplier search. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, termsText string, hints []string) (*model.SearchOutput, error)
}

// WorkerConfig tunes the polling worker.
type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	// ReclaimAfter requeues in_progress jobs older than this, recovering
	// work lost to a crashed worker. Zero disables reclaiming.
	ReclaimAfter time.Duration `yaml:"reclaim_after" mapstructure:"reclaim_after"`
}

// Worker drains the supplier-search queue: claim, run the pipeline, persist
// suppliers, commit the result. One claim-process-commit cycle at a time.
type Worker struct {
	id       string
	store    store.Store
	statuses PurchaseStatusPort
	runner   Runner
	cfg      WorkerConfig
}

// NewWorker creates a Worker with a fresh instance id. The store doubles as
// the purchase status port.
func NewWorker(st store.Store, runner Runner, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ReclaimAfter < 0 {
		cfg.ReclaimAfter = 0
	}
	return &Worker{
		id:       uuid.New().String(),
		store:    st,
		statuses: st,
		runner:   runner,
		cfg:      cfg,
	}
}

// Run polls until the context is canceled. Jobs interrupted by shutdown stay
// in_progress and are picked up again once their lease expires.
func (w *Worker) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("worker_id", w.id))
	log.Info("worker: started",
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Duration("reclaim_after", w.cfg.ReclaimAfter))

	for {
		if err := ctx.Err(); err != nil {
			log.Info("worker: stopping")
			return nil
		}

		if w.cfg.ReclaimAfter > 0 {
			n, err := w.store.ReclaimStale(ctx, model.TaskTypeSupplierSearch, w.cfg.ReclaimAfter)
			if err != nil {
				log.Warn("worker: reclaim failed", zap.Error(err))
			} else if n > 0 {
				log.Info("worker: reclaimed stale jobs", zap.Int("count", n))
			}
		}

		job, err := w.store.ClaimOldestQueued(ctx, model.TaskTypeSupplierSearch)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Warn("worker: claim failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				log.Info("worker: stopping")
				return nil
			case <-time.After(w.cfg.PollInterval):
			}
			continue
		}

		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *model.Job) {
	log := zap.L().With(zap.String("worker_id", w.id), zap.Int64("job_id", job.ID))
	log.Info("worker: processing job")

	in := model.DecodeSearchInput(job.InputText)

	out, err := w.runner.Run(ctx, in.TermsText, in.Hints)
	if err != nil {
		// A canceled run is shutdown, not failure: leave the job
		// in_progress for lease-expiry reclaim.
		if ctx.Err() != nil {
			log.Info("worker: run interrupted by shutdown")
			return
		}
		w.failJob(ctx, job.ID, err)
		return
	}

	merged := pipeline.MergeContacts(out.ProcessedContacts, out.SearchOutput)

	if job.PurchaseID != nil {
		created, err := w.persistSuppliers(ctx, *job.PurchaseID, merged, out.SearchOutput)
		if err != nil {
			w.failJob(ctx, job.ID, err)
			return
		}
		out.CreatedSuppliers = created

		if len(created) > 0 {
			if err := w.markSuppliersFound(ctx, *job.PurchaseID); err != nil {
				log.Warn("worker: purchase status update failed", zap.Error(err))
			}
		}
	}

	encoded, err := out.Encode()
	if err != nil {
		w.failJob(ctx, job.ID, err)
		return
	}
	if err := w.store.CompleteJob(ctx, job.ID, encoded); err != nil {
		log.Error("worker: commit failed", zap.Error(err))
		return
	}
	log.Info("worker: job completed",
		zap.Int("suppliers", len(out.CreatedSuppliers)),
		zap.Int("sites", len(out.SearchOutput)))
}

// persistSuppliers upserts one supplier row per relevant merged candidate and
// attaches its contacts. Rerunning the same merge result changes nothing.
func (w *Worker) persistSuppliers(ctx context.Context, purchaseID int64, merged []model.SupplierCandidate, sites []model.SiteContacts) ([]model.CreatedSupplier, error) {
	phonesBySite := make(map[string][]string, len(sites))
	for _, s := range sites {
		phonesBySite[model.NormalizeWebsite(s.Website)] = s.Phones
	}

	var created []model.CreatedSupplier
	for _, c := range merged {
		if !c.IsRelevant {
			continue
		}

		supplierID, err := w.store.UpsertSupplier(ctx, purchaseID, c.Website, c.Name, 1.0, c.Reason)
		if err != nil {
			return nil, err
		}
		for _, email := range c.Emails {
			if err := w.store.AddSupplierContact(ctx, supplierID, "email", email); err != nil {
				return nil, err
			}
		}
		for _, phone := range phonesBySite[c.Website] {
			if err := w.store.AddSupplierContact(ctx, supplierID, "phone", phone); err != nil {
				return nil, err
			}
		}

		created = append(created, model.CreatedSupplier{
			SupplierID: supplierID,
			Website:    c.Website,
			Emails:     c.Emails,
		})
	}
	return created, nil
}

func (w *Worker) markSuppliersFound(ctx context.Context, purchaseID int64) error {
	moved, err := w.statuses.TransitionPurchaseStatus(ctx, purchaseID,
		model.PurchaseStatusSearchingSuppliers, model.PurchaseStatusSuppliersFound)
	if err != nil || moved {
		return err
	}
	// Searches enqueued outside the usual flow may still sit in draft.
	_, err = w.statuses.TransitionPurchaseStatus(ctx, purchaseID,
		model.PurchaseStatusDraft, model.PurchaseStatusSuppliersFound)
	return err
}

func (w *Worker) failJob(ctx context.Context, jobID int64, cause error) {
	log := zap.L().With(zap.String("worker_id", w.id), zap.Int64("job_id", jobID))
	log.Error("worker: job failed",
		zap.Error(cause),
		zap.Bool("transient", resilience.IsTransient(cause)))

	if err := w.store.FailJob(ctx, jobID, "error: "+cause.Error()); err != nil {
		log.Error("worker: recording failure failed", zap.Error(err))
	}
}
