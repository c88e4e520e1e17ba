package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/bryanwahyu/contract-analysis/internal/infra/db/sqlstore"
)

var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{`
CREATE TABLE IF NOT EXISTS contract_analyses (
  id                       TEXT    PRIMARY KEY,
  user_id                  TEXT    NOT NULL,
  contract_type            TEXT    NOT NULL,
  contract_text            TEXT    NOT NULL,
  summary                  TEXT    NOT NULL,
  overall_score            INTEGER NOT NULL CHECK (overall_score BETWEEN 0 AND 100),
  language                 TEXT    NOT NULL,
  ai_model                 TEXT    NOT NULL,
  legal_compliance         TEXT    NOT NULL,
  contract_duration        TEXT    NOT NULL,
  termination_conditions   TEXT    NOT NULL,
  specific_clauses         TEXT    NOT NULL,
  risks_json               TEXT    NOT NULL,
  opportunities_json       TEXT    NOT NULL,
  recommendations_json     TEXT    NOT NULL,
  key_clauses_json         TEXT    NOT NULL,
  negotiation_points_json  TEXT    NOT NULL,
  financial_terms_json     TEXT    NOT NULL,
  performance_metrics_json TEXT    NOT NULL,
  attachments_json         TEXT    NOT NULL,
  created_at               TEXT    NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_analyses_user ON contract_analyses (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_analyses_created ON contract_analyses (created_at)`,
		`
CREATE TABLE IF NOT EXISTS contract_analysis_failures (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  stage        TEXT    NOT NULL,
  source       TEXT    NOT NULL,
  user_id      TEXT    NOT NULL,
  message      TEXT    NOT NULL,
  details_json TEXT    NOT NULL,
  created_at   TEXT    NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_analysis_failures_created ON contract_analysis_failures (created_at)`,
	},
}

// Open opens or creates a SQLite database at path. ":memory:" keeps
// everything in one in-process connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}
