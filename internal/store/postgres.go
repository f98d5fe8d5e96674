package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/zakupai/supplier-search/internal/db"
	"github.com/zakupai/supplier-search/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot queue-path operations.
var preparedStatements = map[string]string{
	"insert_job":      `INSERT INTO jobs (purchase_id, task_type, input_text, status, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
	"get_job":         `SELECT id, purchase_id, task_type, input_text, output_text, status, created_at, started_at FROM jobs WHERE id = $1`,
	"find_active_job": `SELECT id, purchase_id, task_type, input_text, output_text, status, created_at, started_at FROM jobs WHERE purchase_id = $1 AND task_type = $2 AND status IN ('queued', 'in_progress') ORDER BY id DESC LIMIT 1`,
	"count_queued":    `SELECT COUNT(*) FROM jobs WHERE status = 'queued' AND task_type = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS purchases (
	id         BIGSERIAL PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	tech_task  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'draft',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS jobs (
	id          BIGSERIAL PRIMARY KEY,
	purchase_id BIGINT REFERENCES purchases(id),
	task_type   TEXT NOT NULL,
	input_text  TEXT NOT NULL DEFAULT '',
	output_text TEXT,
	status      TEXT NOT NULL DEFAULT 'queued',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_type ON jobs(status, task_type);
CREATE INDEX IF NOT EXISTS idx_jobs_purchase_type ON jobs(purchase_id, task_type);

CREATE TABLE IF NOT EXISTS suppliers (
	id          BIGSERIAL PRIMARY KEY,
	purchase_id BIGINT NOT NULL REFERENCES purchases(id),
	website     TEXT NOT NULL,
	name        TEXT,
	score       DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	reason      TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (purchase_id, website)
);

CREATE TABLE IF NOT EXISTS supplier_contacts (
	id          BIGSERIAL PRIMARY KEY,
	supplier_id BIGINT NOT NULL REFERENCES suppliers(id),
	kind        TEXT NOT NULL,
	value       TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (supplier_id, kind, value)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const jobColumns = `id, purchase_id, task_type, input_text, output_text, status, created_at, started_at`

func (s *PostgresStore) InsertJob(ctx context.Context, purchaseID *int64, taskType, inputText string) (*model.Job, error) {
	now := time.Now().UTC()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO jobs (purchase_id, task_type, input_text, status, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		purchaseID, taskType, inputText, string(model.JobStatusQueued), now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return &model.Job{
		ID:         id,
		PurchaseID: purchaseID,
		TaskType:   taskType,
		InputText:  inputText,
		Status:     model.JobStatusQueued,
		CreatedAt:  now,
	}, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get job %d", id)
	}
	return j, nil
}

func (s *PostgresStore) FindActiveJob(ctx context.Context, purchaseID int64, taskType string) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE purchase_id = $1 AND task_type = $2 AND status IN ('queued', 'in_progress')
		 ORDER BY id DESC LIMIT 1`,
		purchaseID, taskType,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: find active job for purchase %d", purchaseID)
	}
	return j, nil
}

func (s *PostgresStore) FindLatestJob(ctx context.Context, purchaseID int64, taskType string) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE purchase_id = $1 AND task_type = $2
		 ORDER BY id DESC LIMIT 1`,
		purchaseID, taskType,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: find latest job for purchase %d", purchaseID)
	}
	return j, nil
}

// ClaimOldestQueued atomically moves the oldest queued job of the given type
// to in_progress. SKIP LOCKED lets concurrent workers claim distinct jobs.
func (s *PostgresStore) ClaimOldestQueued(ctx context.Context, taskType string) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET status = 'in_progress', started_at = $2
		 WHERE id = (
		 	SELECT id FROM jobs
		 	WHERE status = 'queued' AND task_type = $1
		 	ORDER BY id
		 	FOR UPDATE SKIP LOCKED
		 	LIMIT 1
		 )
		 RETURNING `+jobColumns,
		taskType, time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "postgres: claim job")
	}
	return j, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id int64, outputText string) error {
	return s.finishJob(ctx, id, model.JobStatusCompleted, outputText)
}

func (s *PostgresStore) FailJob(ctx context.Context, id int64, outputText string) error {
	return s.finishJob(ctx, id, model.JobStatusFailed, outputText)
}

func (s *PostgresStore) finishJob(ctx context.Context, id int64, status model.JobStatus, outputText string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, output_text = $2 WHERE id = $3 AND status = 'in_progress'`,
		string(status), outputText, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish job %d", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountQueued(ctx context.Context, taskType string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = 'queued' AND task_type = $1`,
		taskType,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count queued")
}

// ReclaimStale requeues in_progress jobs whose lease expired, so work held by
// a crashed worker becomes claimable again.
func (s *PostgresStore) ReclaimStale(ctx context.Context, taskType string, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'queued', started_at = NULL
		 WHERE status = 'in_progress' AND task_type = $1 AND started_at IS NOT NULL AND started_at <= $2`,
		taskType, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reclaim stale jobs")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreatePurchase(ctx context.Context, title, techTask string) (*model.Purchase, error) {
	now := time.Now().UTC()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO purchases (title, tech_task, status, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		title, techTask, model.PurchaseStatusDraft, now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create purchase")
	}

	return &model.Purchase{
		ID:        id,
		Title:     title,
		TechTask:  techTask,
		Status:    model.PurchaseStatusDraft,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) GetPurchase(ctx context.Context, id int64) (*model.Purchase, error) {
	var p model.Purchase
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, tech_task, status, created_at FROM purchases WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Title, &p.TechTask, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get purchase %d", id)
	}
	return &p, nil
}

// TransitionPurchaseStatus moves a purchase from one status to another and
// reports whether the transition happened. A false return with nil error
// means the purchase was not in the expected source status.
func (s *PostgresStore) TransitionPurchaseStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE purchases SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: transition purchase %d", id)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertSupplier creates the supplier row for (purchase, website) or enriches
// the existing one: name and reason are filled only when missing, and the
// score recorded at insert time is kept.
func (s *PostgresStore) UpsertSupplier(ctx context.Context, purchaseID int64, website string, name *string, score float64, reason string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO suppliers (purchase_id, website, name, score, reason, created_at) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		 ON CONFLICT (purchase_id, website) DO UPDATE SET
		 	name = COALESCE(suppliers.name, EXCLUDED.name),
		 	reason = COALESCE(suppliers.reason, EXCLUDED.reason)
		 RETURNING id`,
		purchaseID, website, name, score, reason, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: upsert supplier %s", website)
	}
	return id, nil
}

func (s *PostgresStore) AddSupplierContact(ctx context.Context, supplierID int64, kind, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO supplier_contacts (supplier_id, kind, value, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (supplier_id, kind, value) DO NOTHING`,
		supplierID, kind, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: add contact for supplier %d", supplierID)
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	if err := row.Scan(&j.ID, &j.PurchaseID, &j.TaskType, &j.InputText, &j.OutputText, &j.Status, &j.CreatedAt, &j.StartedAt); err != nil {
		return nil, err
	}
	return &j, nil
}
