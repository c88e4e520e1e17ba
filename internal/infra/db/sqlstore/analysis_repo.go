package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

const analysisColumns = `id, user_id, contract_type, contract_text, summary, overall_score, language, ai_model,
  legal_compliance, contract_duration, termination_conditions, specific_clauses,
  risks_json, opportunities_json, recommendations_json, key_clauses_json, negotiation_points_json,
  financial_terms_json, performance_metrics_json, attachments_json, created_at`

type AnalysisRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewAnalysisRepository(db *sql.DB, d Dialect) *AnalysisRepository {
	return &AnalysisRepository{db: db, dialect: d}
}

// Save inserts one analysis inside a transaction. Records are immutable, so
// an existing id is an error rather than an update.
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.ContractAnalysis) error {
	if a.ID == "" || a.CreatedAt.IsZero() {
		return fmt.Errorf("%w: id and created_at must be assigned before save", domain.ErrPersistence)
	}
	args, err := analysisArgs(a)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", domain.ErrPersistence, err)
	}

	q := r.dialect.Rebind(`
INSERT INTO contract_analyses
  (` + analysisColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrPersistence, err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: insert: %v", domain.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (r *AnalysisRepository) FindByID(ctx context.Context, id domain.AnalysisID) (*domain.ContractAnalysis, error) {
	q := r.dialect.Rebind(`SELECT ` + analysisColumns + ` FROM contract_analyses WHERE id=?`)
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find: %v", domain.ErrPersistence, err)
	}
	return a, nil
}

// ListByOwner returns a page of one user's analyses ordered by created_at desc
func (r *AnalysisRepository) ListByOwner(ctx context.Context, userID string, page, pageSize int) ([]*domain.ContractAnalysis, error) {
	limit, offset := pageBounds(page, pageSize)
	q := r.dialect.Rebind(`
SELECT ` + analysisColumns + `
FROM contract_analyses
WHERE user_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`)
	return r.list(ctx, q, userID, limit, offset)
}

// ListAll returns a page of every analysis ordered by created_at desc
func (r *AnalysisRepository) ListAll(ctx context.Context, page, pageSize int) ([]*domain.ContractAnalysis, error) {
	limit, offset := pageBounds(page, pageSize)
	q := r.dialect.Rebind(`
SELECT ` + analysisColumns + `
FROM contract_analyses
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`)
	return r.list(ctx, q, limit, offset)
}

func (r *AnalysisRepository) list(ctx context.Context, q string, args ...any) ([]*domain.ContractAnalysis, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	out := []*domain.ContractAnalysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domain.ErrPersistence, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

func pageBounds(page, pageSize int) (limit, offset int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return pageSize, (page - 1) * pageSize
}

func analysisArgs(a *domain.ContractAnalysis) ([]any, error) {
	docs := []any{
		a.Risks, a.Opportunities, a.Recommendations, a.KeyClauses, a.NegotiationPoints,
		a.FinancialTerms, a.PerformanceMetrics, a.Attachments,
	}
	enc := make([]any, len(docs))
	for i, d := range docs {
		s, err := jsonText(d)
		if err != nil {
			return nil, err
		}
		enc[i] = s
	}

	args := []any{
		string(a.ID), a.UserID, string(a.ContractType), a.ContractText, a.Summary, a.OverallScore,
		stringOrDefault(a.Language, domain.DefaultLanguage), stringOrDash(a.AIModel),
		a.LegalCompliance, a.ContractDuration, a.TerminationConditions, a.SpecificClauses,
	}
	args = append(args, enc...)
	return append(args, storeTime(a.CreatedAt)), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.ContractAnalysis, error) {
	var a domain.ContractAnalysis
	var id, ct string
	err := row.Scan(
		&id, &a.UserID, &ct, &a.ContractText, &a.Summary, &a.OverallScore, &a.Language, &a.AIModel,
		&a.LegalCompliance, &a.ContractDuration, &a.TerminationConditions, &a.SpecificClauses,
		jsonScanner{&a.Risks}, jsonScanner{&a.Opportunities}, jsonScanner{&a.Recommendations},
		jsonScanner{&a.KeyClauses}, jsonScanner{&a.NegotiationPoints}, jsonScanner{&a.FinancialTerms},
		jsonScanner{&a.PerformanceMetrics}, jsonScanner{&a.Attachments},
		timeScanner{&a.CreatedAt},
	)
	if err != nil {
		return nil, err
	}
	a.ID = domain.AnalysisID(id)
	a.ContractType = domain.ContractType(ct)
	if a.AIModel == "-" {
		a.AIModel = ""
	}
	return &a, nil
}

func stringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
