package contracts

import (
	"context"
	"io"
)

// Repository port for persisting and querying analyses. Save must be all-or-nothing.
type Repository interface {
	Save(ctx context.Context, a *ContractAnalysis) error
	FindByID(ctx context.Context, id AnalysisID) (*ContractAnalysis, error)
	ListByOwner(ctx context.Context, userID string, page, pageSize int) ([]*ContractAnalysis, error)
	ListAll(ctx context.Context, page, pageSize int) ([]*ContractAnalysis, error)
}

// TextExtractor turns a fetchable PDF URL into page-ordered text.
type TextExtractor interface {
	ExtractText(ctx context.Context, fileURL string) (string, error)
}

// TypeClassifier picks a contract type for extracted text.
type TypeClassifier interface {
	DetectType(ctx context.Context, text string) (ContractType, error)
}

// Analyzer produces an unsaved analysis payload.
type Analyzer interface {
	Analyze(ctx context.Context, text string, ct ContractType) (*Payload, error)
}

// UserDirectory resolves display names for opaque user ids.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, bool, error)
}

// FileStore hosts uploaded documents and returns a fetchable URL.
type FileStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}
