package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/bryanwahyu/contract-analysis/internal/domain/failures"
)

type FailureRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewFailureRepository(db *sql.DB, d Dialect) *FailureRepository {
	return &FailureRepository{db: db, dialect: d}
}

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	q := r.dialect.Rebind(`
INSERT INTO contract_analysis_failures
  (stage, source, user_id, message, details_json, created_at)
VALUES (?,?,?,?,?,?)`)
	msg := f.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		stringOrDash(f.Stage), stringOrDash(f.Source), stringOrDash(f.UserID),
		msg, nullJSON(f.DetailsJSON), storeTime(created))
	return err
}

func (r *FailureRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.dialect.Rebind(`
SELECT id, stage, source, user_id, message, details_json, created_at
FROM contract_analysis_failures
ORDER BY created_at DESC, id DESC
LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Failure{}
	for rows.Next() {
		var f domain.Failure
		if err := rows.Scan(&f.ID, &f.Stage, &f.Source, &f.UserID, &f.Message, &f.DetailsJSON, timeScanner{&f.CreatedAt}); err != nil {
			return nil, err
		}
		if f.UserID == "-" {
			f.UserID = ""
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
