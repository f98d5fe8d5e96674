package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/zakupai/supplier-search/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It serves one-shot
// CLI runs and local development; production deployments use Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS purchases (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL DEFAULT '',
	tech_task  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'draft',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS jobs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	purchase_id INTEGER REFERENCES purchases(id),
	task_type   TEXT NOT NULL,
	input_text  TEXT NOT NULL DEFAULT '',
	output_text TEXT,
	status      TEXT NOT NULL DEFAULT 'queued',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	started_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_type ON jobs(status, task_type);
CREATE INDEX IF NOT EXISTS idx_jobs_purchase_type ON jobs(purchase_id, task_type);

CREATE TABLE IF NOT EXISTS suppliers (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	purchase_id INTEGER NOT NULL REFERENCES purchases(id),
	website     TEXT NOT NULL,
	name        TEXT,
	score       REAL NOT NULL DEFAULT 1.0,
	reason      TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (purchase_id, website)
);

CREATE TABLE IF NOT EXISTS supplier_contacts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	supplier_id INTEGER NOT NULL REFERENCES suppliers(id),
	kind        TEXT NOT NULL,
	value       TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (supplier_id, kind, value)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertJob(ctx context.Context, purchaseID *int64, taskType, inputText string) (*model.Job, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (purchase_id, task_type, input_text, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		purchaseID, taskType, inputText, string(model.JobStatusQueued), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job id")
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

func (s *SQLiteStore) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	return s.scanJobRow(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id,
	), "get job")
}

func (s *SQLiteStore) FindActiveJob(ctx context.Context, purchaseID int64, taskType string) (*model.Job, error) {
	return s.scanJobRow(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE purchase_id = ? AND task_type = ? AND status IN ('queued', 'in_progress')
		 ORDER BY id DESC LIMIT 1`,
		purchaseID, taskType,
	), "find active job")
}

func (s *SQLiteStore) FindLatestJob(ctx context.Context, purchaseID int64, taskType string) (*model.Job, error) {
	return s.scanJobRow(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE purchase_id = ? AND task_type = ?
		 ORDER BY id DESC LIMIT 1`,
		purchaseID, taskType,
	), "find latest job")
}

// ClaimOldestQueued relies on SQLite's writer lock for atomicity: the
// UPDATE-with-subquery is a single statement, so two workers cannot claim
// the same row.
func (s *SQLiteStore) ClaimOldestQueued(ctx context.Context, taskType string) (*model.Job, error) {
	return s.scanJobRow(s.db.QueryRowContext(ctx,
		`UPDATE jobs SET status = 'in_progress', started_at = ?
		 WHERE id = (
		 	SELECT id FROM jobs
		 	WHERE status = 'queued' AND task_type = ?
		 	ORDER BY id LIMIT 1
		 )
		 RETURNING `+jobColumns,
		time.Now().UTC(), taskType,
	), "claim job")
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id int64, outputText string) error {
	return s.finishJob(ctx, id, model.JobStatusCompleted, outputText)
}

func (s *SQLiteStore) FailJob(ctx context.Context, id int64, outputText string) error {
	return s.finishJob(ctx, id, model.JobStatusFailed, outputText)
}

func (s *SQLiteStore) finishJob(ctx context.Context, id int64, status model.JobStatus, outputText string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, output_text = ? WHERE id = ? AND status = 'in_progress'`,
		string(status), outputText, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish job %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: finish job rows")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CountQueued(ctx context.Context, taskType string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = 'queued' AND task_type = ?`,
		taskType,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count queued")
}

func (s *SQLiteStore) ReclaimStale(ctx context.Context, taskType string, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'queued', started_at = NULL
		 WHERE status = 'in_progress' AND task_type = ? AND started_at IS NOT NULL AND started_at <= ?`,
		taskType, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reclaim stale jobs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reclaim stale rows")
	}
	return int(n), nil
}

func (s *SQLiteStore) CreatePurchase(ctx context.Context, title, techTask string) (*model.Purchase, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO purchases (title, tech_task, status, created_at) VALUES (?, ?, ?, ?)`,
		title, techTask, model.PurchaseStatusDraft, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create purchase")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create purchase id")
	}

	return &model.Purchase{
		ID:        id,
		Title:     title,
		TechTask:  techTask,
		Status:    model.PurchaseStatusDraft,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetPurchase(ctx context.Context, id int64) (*model.Purchase, error) {
	var p model.Purchase
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, tech_task, status, created_at FROM purchases WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Title, &p.TechTask, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get purchase %d", id)
	}
	return &p, nil
}

func (s *SQLiteStore) TransitionPurchaseStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE purchases SET status = ? WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: transition purchase %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: transition purchase rows")
	}
	return n > 0, nil
}

func (s *SQLiteStore) UpsertSupplier(ctx context.Context, purchaseID int64, website string, name *string, score float64, reason string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO suppliers (purchase_id, website, name, score, reason, created_at) VALUES (?, ?, ?, ?, NULLIF(?, ''), ?)
		 ON CONFLICT (purchase_id, website) DO UPDATE SET
		 	name = COALESCE(suppliers.name, excluded.name),
		 	reason = COALESCE(suppliers.reason, excluded.reason)
		 RETURNING id`,
		purchaseID, website, name, score, reason, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert supplier %s", website)
	}
	return id, nil
}

func (s *SQLiteStore) AddSupplierContact(ctx context.Context, supplierID int64, kind, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO supplier_contacts (supplier_id, kind, value, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (supplier_id, kind, value) DO NOTHING`,
		supplierID, kind, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: add contact for supplier %d", supplierID)
}

func (s *SQLiteStore) scanJobRow(row *sql.Row, op string) (*model.Job, error) {
	var j model.Job
	err := row.Scan(&j.ID, &j.PurchaseID, &j.TaskType, &j.InputText, &j.OutputText, &j.Status, &j.CreatedAt, &j.StartedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	return &j, nil
}
