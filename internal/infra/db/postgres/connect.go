package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/bryanwahyu/contract-analysis/internal/infra/db/sqlstore"
)

var Dialect = sqlstore.Dialect{
	Name:     "postgres",
	Numbered: true,
	Schema: []string{`
CREATE TABLE IF NOT EXISTS contract_analyses (
  id                       VARCHAR(36)  PRIMARY KEY,
  user_id                  VARCHAR(128) NOT NULL,
  contract_type            VARCHAR(32)  NOT NULL,
  contract_text            TEXT         NOT NULL,
  summary                  TEXT         NOT NULL,
  overall_score            INTEGER      NOT NULL CHECK (overall_score BETWEEN 0 AND 100),
  language                 VARCHAR(16)  NOT NULL,
  ai_model                 VARCHAR(128) NOT NULL,
  legal_compliance         TEXT         NOT NULL,
  contract_duration        TEXT         NOT NULL,
  termination_conditions   TEXT         NOT NULL,
  specific_clauses         TEXT         NOT NULL,
  risks_json               JSONB        NOT NULL,
  opportunities_json       JSONB        NOT NULL,
  recommendations_json     JSONB        NOT NULL,
  key_clauses_json         JSONB        NOT NULL,
  negotiation_points_json  JSONB        NOT NULL,
  financial_terms_json     JSONB        NOT NULL,
  performance_metrics_json JSONB        NOT NULL,
  attachments_json         JSONB        NOT NULL,
  created_at               TIMESTAMPTZ  NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_analyses_user ON contract_analyses (user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_analyses_created ON contract_analyses (created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS contract_analysis_failures (
  id           BIGSERIAL    PRIMARY KEY,
  stage        VARCHAR(16)  NOT NULL,
  source       TEXT         NOT NULL,
  user_id      VARCHAR(128) NOT NULL,
  message      TEXT         NOT NULL,
  details_json JSONB        NOT NULL,
  created_at   TIMESTAMPTZ  NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_analysis_failures_created ON contract_analysis_failures (created_at DESC)`,
	},
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
