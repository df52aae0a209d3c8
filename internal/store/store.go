package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/copydesk/config"
	"github.com/mohammad-safakhou/copydesk/internal/pipeline"
)

// Store archives terminal runs and holds users and recurring briefs. The
// live run registry stays in memory; Postgres is the durable record.
type Store struct {
	DB *sql.DB
}

// New constructs the Store from configuration.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// RunRecord is an archived run row.
type RunRecord struct {
	ID         string
	UserID     *string
	Request    pipeline.ContentRequest
	State      string
	Stage      string
	ErrorKind  string
	Error      string
	Artifacts  []pipeline.Artifact
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// ArchiveRun persists a terminal run with its artifacts. Re-archiving the
// same run overwrites the row, so retried saves are harmless.
func (s *Store) ArchiveRun(ctx context.Context, run *pipeline.Run, userID *string) error {
	st := run.Status()
	if !st.State.Terminal() {
		return fmt.Errorf("run %s is not terminal", run.ID)
	}
	artifacts, err := json.Marshal(run.Artifacts())
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}
	var finished *time.Time
	if t := run.CompletedAt(); !t.IsZero() {
		finished = &t
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO runs (id, user_id, content_type, topic, target_audience, tone, state, stage, error_kind, error, artifacts, created_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  state       = EXCLUDED.state,
  stage       = EXCLUDED.stage,
  error_kind  = EXCLUDED.error_kind,
  error       = EXCLUDED.error,
  artifacts   = EXCLUDED.artifacts,
  finished_at = EXCLUDED.finished_at`,
		run.ID.String(), userID,
		run.Request.ContentType, run.Request.Topic, run.Request.TargetAudience, run.Request.Tone,
		string(st.State), string(st.Stage), string(st.Kind), st.Error,
		artifacts, run.CreatedAt, finished)
	return err
}

// GetRun loads one archived run.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, bool, error) {
	var rec RunRecord
	var artifacts []byte
	err := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, content_type, topic, target_audience, tone, state, stage, error_kind, error, artifacts, created_at, finished_at
FROM runs WHERE id=$1`, id).Scan(
		&rec.ID, &rec.UserID,
		&rec.Request.ContentType, &rec.Request.Topic, &rec.Request.TargetAudience, &rec.Request.Tone,
		&rec.State, &rec.Stage, &rec.ErrorKind, &rec.Error,
		&artifacts, &rec.CreatedAt, &rec.FinishedAt)
	if err == sql.ErrNoRows {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, err
	}
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &rec.Artifacts); err != nil {
			return RunRecord{}, false, fmt.Errorf("unmarshal artifacts: %w", err)
		}
	}
	return rec, true, nil
}

// ListRuns returns archived runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, content_type, topic, state, stage, error_kind, created_at, finished_at
FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Request.ContentType, &rec.Request.Topic,
			&rec.State, &rec.Stage, &rec.ErrorKind, &rec.CreatedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Brief is a recurring content request driven by the scheduler.
type Brief struct {
	ID        string
	UserID    *string
	Request   pipeline.ContentRequest
	CronSpec  string
	CreatedAt time.Time
	LastRunAt *time.Time
}

func (s *Store) CreateBrief(ctx context.Context, userID *string, req pipeline.ContentRequest, cronSpec string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO briefs (user_id, content_type, topic, target_audience, tone, cron_spec)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		userID, req.ContentType, req.Topic, req.TargetAudience, req.Tone, cronSpec).Scan(&id)
	return id, err
}

func (s *Store) ListBriefs(ctx context.Context) ([]Brief, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, content_type, topic, target_audience, tone, cron_spec, created_at, last_run_at
FROM briefs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Brief
	for rows.Next() {
		var b Brief
		if err := rows.Scan(&b.ID, &b.UserID,
			&b.Request.ContentType, &b.Request.Topic, &b.Request.TargetAudience, &b.Request.Tone,
			&b.CronSpec, &b.CreatedAt, &b.LastRunAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TouchBrief records that the scheduler fired the brief.
func (s *Store) TouchBrief(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE briefs SET last_run_at=NOW() WHERE id=$1`, id)
	return err
}

func (s *Store) DeleteBrief(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM briefs WHERE id=$1`, id)
	return err
}
