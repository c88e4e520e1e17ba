package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/contract-analysis/internal/infra/db/sqlstore"
)

// Dialect for MySQL 8. Indexes are declared inline because MySQL has no
// CREATE INDEX IF NOT EXISTS.
var Dialect = sqlstore.Dialect{
	Name: "mysql",
	Schema: []string{`
CREATE TABLE IF NOT EXISTS contract_analyses (
  id                       VARCHAR(36)  NOT NULL PRIMARY KEY,
  user_id                  VARCHAR(128) NOT NULL,
  contract_type            VARCHAR(32)  NOT NULL,
  contract_text            LONGTEXT     NOT NULL,
  summary                  TEXT         NOT NULL,
  overall_score            INT          NOT NULL,
  language                 VARCHAR(16)  NOT NULL,
  ai_model                 VARCHAR(128) NOT NULL,
  legal_compliance         TEXT         NOT NULL,
  contract_duration        TEXT         NOT NULL,
  termination_conditions   TEXT         NOT NULL,
  specific_clauses         TEXT         NOT NULL,
  risks_json               JSON         NOT NULL,
  opportunities_json       JSON         NOT NULL,
  recommendations_json     JSON         NOT NULL,
  key_clauses_json         JSON         NOT NULL,
  negotiation_points_json  JSON         NOT NULL,
  financial_terms_json     JSON         NOT NULL,
  performance_metrics_json JSON         NOT NULL,
  attachments_json         JSON         NOT NULL,
  created_at               DATETIME(6)  NOT NULL,
  INDEX idx_contract_analyses_user (user_id, created_at),
  INDEX idx_contract_analyses_created (created_at),
  CONSTRAINT chk_contract_analyses_score CHECK (overall_score BETWEEN 0 AND 100)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS contract_analysis_failures (
  id           BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  stage        VARCHAR(16)  NOT NULL,
  source       TEXT         NOT NULL,
  user_id      VARCHAR(128) NOT NULL,
  message      TEXT         NOT NULL,
  details_json JSON         NOT NULL,
  created_at   DATETIME(6)  NOT NULL,
  INDEX idx_contract_analysis_failures_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
