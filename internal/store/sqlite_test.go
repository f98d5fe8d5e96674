package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zakupai/supplier-search/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedPurchase(t *testing.T, st *SQLiteStore) *model.Purchase {
	t.Helper()
	p, err := st.CreatePurchase(context.Background(), "Болты DIN 933", "Нужно 500 болтов DIN 933 M10x40, оцинкованные")
	require.NoError(t, err)
	return p
}

func TestSQLite_JobLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p := seedPurchase(t, st)

	job, err := st.InsertJob(ctx, &p.ID, model.TaskTypeSupplierSearch, p.TechTask)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)

	// The queued job is visible as active for its purchase.
	active, err := st.FindActiveJob(ctx, p.ID, model.TaskTypeSupplierSearch)
	require.NoError(t, err)
	assert.Equal(t, job.ID, active.ID)

	claimed, err := st.ClaimOldestQueued(ctx, model.TaskTypeSupplierSearch)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, model.JobStatusInProgress, claimed.Status)
	require.NotNil(t, claimed.StartedAt)

	// Nothing left to claim.
	_, err = st.ClaimOldestQueued(ctx, model.TaskTypeSupplierSearch)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.CompleteJob(ctx, claimed.ID, `{"queries":["болты оптом"]}`))

	done, err := st.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, done.Status)
	require.NotNil(t, done.OutputText)
	assert.Contains(t, *done.OutputText, "болты оптом")

	// Terminal jobs are no longer active.
	_, err = st.FindActiveJob(ctx, p.ID, model.TaskTypeSupplierSearch)
	assert.ErrorIs(t, err, ErrNotFound)

	latest, err := st.FindLatestJob(ctx, p.ID, model.TaskTypeSupplierSearch)
	require.NoError(t, err)
	assert.Equal(t, claimed.ID, latest.ID)
}

func TestSQLite_FailJob(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p := seedPurchase(t, st)

	job, err := st.InsertJob(ctx, &p.ID, model.TaskTypeSupplierSearch, p.TechTask)
	require.NoError(t, err)

	// Failing a job that was never claimed is rejected.
	assert.ErrorIs(t, st.FailJob(ctx, job.ID, "error: boom"), ErrNotFound)

	_, err = st.ClaimOldestQueued(ctx, model.TaskTypeSupplierSearch)
	require.NoError(t, err)
	require.NoError(t, st.FailJob(ctx, job.ID, "error: поиск не дал результатов"))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.NotNil(t, got.OutputText)
	assert.Equal(t, "error: поиск не дал результатов", *got.OutputText)
}

func TestSQLite_ClaimOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p := seedPurchase(t, st)

	first, err := st.InsertJob(ctx, &p.ID, model.TaskTypeSupplierSearch, "first")
	require.NoError(t, err)
	second, err := st.InsertJob(ctx, &p.ID, model.TaskTypeSupplierSearch, "second")
	require.NoError(t, err)

	claimed, err := st.ClaimOldestQueued(ctx, model.TaskTypeSupplierSearch)
	require.NoError(t, err)
	assert.Equal(t, first.ID, claimed.ID)

	claimed, err = st.ClaimOldestQueued(ctx, model.TaskTypeSupplierSearch)
	require.NoError(t, err)
	assert.Equal(t, second.ID, claimed.ID)
}

func TestSQLite_CountQueued(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p := seedPurchase(t, st)

	for range 3 {
		_, err := st.InsertJob(ctx, &p.ID, model.TaskTypeSupplierSearch, "x")
		require.NoError(t, err)
	}
	_, err := st.ClaimOldestQueued(ctx, model.TaskTypeSupplierSearch)
	require.NoError(t, err)

	n, err := st.CountQueued(ctx, model.TaskTypeSupplierSearch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_ReclaimStale(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p := seedPurchase(t, st)

	job, err := st.InsertJob(ctx, &p.ID, model.TaskTypeSupplierSearch, "x")
	require.NoError(t, err)
	_, err = st.ClaimOldestQueued(ctx, model.TaskTypeSupplierSearch)
	require.NoError(t, err)

	// A fresh claim is not reclaimed.
	n, err := st.ReclaimStale(ctx, model.TaskTypeSupplierSearch, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	// With a zero lease everything in progress is stale.
	n, err = st.ReclaimStale(ctx, model.TaskTypeSupplierSearch, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, got.Status)
	assert.Nil(t, got.StartedAt)
}

func TestSQLite_PurchaseTransitions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p := seedPurchase(t, st)

	moved, err := st.TransitionPurchaseStatus(ctx, p.ID, model.PurchaseStatusDraft, model.PurchaseStatusSearchingSuppliers)
	require.NoError(t, err)
	assert.True(t, moved)

	// Second attempt from draft no longer matches.
	moved, err = st.TransitionPurchaseStatus(ctx, p.ID, model.PurchaseStatusDraft, model.PurchaseStatusSearchingSuppliers)
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := st.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusSearchingSuppliers, got.Status)
}

func TestSQLite_UpsertSupplier_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p := seedPurchase(t, st)

	id1, err := st.UpsertSupplier(ctx, p.ID, "https://bolt-factory.ru", nil, 1.0, "")
	require.NoError(t, err)

	name := "Завод крепежа"
	id2, err := st.UpsertSupplier(ctx, p.ID, "https://bolt-factory.ru", &name, 1.0, "завод")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// Repeated contact rows collapse to one.
	require.NoError(t, st.AddSupplierContact(ctx, id1, "email", "sales@bolt-factory.ru"))
	require.NoError(t, st.AddSupplierContact(ctx, id1, "email", "sales@bolt-factory.ru"))
	require.NoError(t, st.AddSupplierContact(ctx, id1, "email", "info@bolt-factory.ru"))

	var count int
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM supplier_contacts WHERE supplier_id = ?`, id1,
	).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestSQLite_UpsertSupplier_FillsMissingFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p := seedPurchase(t, st)

	// First pass records neither name nor reason.
	id1, err := st.UpsertSupplier(ctx, p.ID, "https://bolt-factory.ru", nil, 1.0, "")
	require.NoError(t, err)

	name := "Завод крепежа"
	id2, err := st.UpsertSupplier(ctx, p.ID, "https://bolt-factory.ru", &name, 0.5, "прямой производитель")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	var (
		gotName   *string
		gotScore  float64
		gotReason *string
	)
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT name, score, reason FROM suppliers WHERE id = ?`, id1,
	).Scan(&gotName, &gotScore, &gotReason))

	// Missing name and reason were filled in; the insert-time score stays.
	require.NotNil(t, gotName)
	assert.Equal(t, name, *gotName)
	require.NotNil(t, gotReason)
	assert.Equal(t, "прямой производитель", *gotReason)
	assert.InDelta(t, 1.0, gotScore, 0.001)

	// A reason set earlier is never overwritten.
	_, err = st.UpsertSupplier(ctx, p.ID, "https://bolt-factory.ru", nil, 1.0, "повторный вердикт")
	require.NoError(t, err)
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT reason FROM suppliers WHERE id = ?`, id1,
	).Scan(&gotReason))
	require.NotNil(t, gotReason)
	assert.Equal(t, "прямой производитель", *gotReason)
}

func TestSQLite_GetPurchase_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetPurchase(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
