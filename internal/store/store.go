package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/zakupai/supplier-search/internal/model"
)

// ErrNotFound is returned when a requested row does not exist or no row
// matched a claim.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the job queue and the supplier
// records the pipeline produces.
type Store interface {
	// Jobs
	InsertJob(ctx context.Context, purchaseID *int64, taskType, inputText string) (*model.Job, error)
	GetJob(ctx context.Context, id int64) (*model.Job, error)
	FindActiveJob(ctx context.Context, purchaseID int64, taskType string) (*model.Job, error)
	FindLatestJob(ctx context.Context, purchaseID int64, taskType string) (*model.Job, error)
	ClaimOldestQueued(ctx context.Context, taskType string) (*model.Job, error)
	CompleteJob(ctx context.Context, id int64, outputText string) error
	FailJob(ctx context.Context, id int64, outputText string) error
	CountQueued(ctx context.Context, taskType string) (int, error)
	ReclaimStale(ctx context.Context, taskType string, olderThan time.Duration) (int, error)

	// Purchases
	CreatePurchase(ctx context.Context, title, techTask string) (*model.Purchase, error)
	GetPurchase(ctx context.Context, id int64) (*model.Purchase, error)
	TransitionPurchaseStatus(ctx context.Context, id int64, from, to string) (bool, error)

	// Suppliers. UpsertSupplier inserts a row or enriches an existing one:
	// name and reason are filled only when missing, score is set on insert.
	UpsertSupplier(ctx context.Context, purchaseID int64, website string, name *string, score float64, reason string) (int64, error)
	AddSupplierContact(ctx context.Context, supplierID int64, kind, value string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
