package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"face-match/api/internal/pipeline"
)

const schema = `
create table if not exists analysis_attempts (
    id           uuid primary key,
    created_at   timestamptz not null default now(),
    fingerprint  text        not null,
    outcome      text        not null,
    match_score  integer     not null default 0,
    model        text        not null default '',
    duration_ms  bigint      not null default 0
);
create index if not exists analysis_attempts_created_at_idx on analysis_attempts (created_at desc);`

// AttemptRepo is the attempt journal. It keeps outcomes only: no images, no reports.
type AttemptRepo struct{ DB *sql.DB }

func NewAttemptRepo(db *sql.DB) *AttemptRepo { return &AttemptRepo{DB: db} }

// EnsureSchema creates the journal table if it does not exist yet.
func (r *AttemptRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// Record implements pipeline.Journal.
func (r *AttemptRepo) Record(ctx context.Context, a pipeline.Attempt) error {
	const q = `
insert into analysis_attempts(id, created_at, fingerprint, outcome, match_score, model, duration_ms)
values ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.DB.ExecContext(ctx, q,
		a.ID.String(), a.CreatedAt, a.Fingerprint, a.Outcome, a.MatchScore, a.Model, a.Duration.Milliseconds())
	return err
}

// AttemptRow is one journal line as listed by Recent.
type AttemptRow struct {
	ID          uuid.UUID `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
	Outcome     string    `json:"outcome"`
	MatchScore  int       `json:"match_score"`
	Model       string    `json:"model"`
	DurationMS  int64     `json:"duration_ms"`
}

const maxRecent = 200

// Recent returns the newest attempts first. limit is clamped to [1,200].
func (r *AttemptRepo) Recent(ctx context.Context, limit int) ([]AttemptRow, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxRecent {
		limit = maxRecent
	}
	const q = `
select id, created_at, fingerprint, outcome, match_score, model, duration_ms
from analysis_attempts
order by created_at desc
limit $1`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]AttemptRow, 0, limit)
	for rows.Next() {
		var (
			row AttemptRow
			id  string
		)
		if err := rows.Scan(&id, &row.CreatedAt, &row.Fingerprint, &row.Outcome, &row.MatchScore, &row.Model, &row.DurationMS); err != nil {
			return nil, err
		}
		if row.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
