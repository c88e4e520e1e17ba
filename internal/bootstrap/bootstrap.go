// Package bootstrap wires configuration into the pipeline service. It is
// shared by the HTTP server and the CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/bryanwahyu/contract-analysis/internal/application"
	"github.com/bryanwahyu/contract-analysis/internal/application/ai"
	appcontracts "github.com/bryanwahyu/contract-analysis/internal/application/contracts"
	"github.com/bryanwahyu/contract-analysis/internal/config"
	openaiclient "github.com/bryanwahyu/contract-analysis/internal/infra/ai/openai"
	"github.com/bryanwahyu/contract-analysis/internal/infra/db/mysql"
	"github.com/bryanwahyu/contract-analysis/internal/infra/db/postgres"
	"github.com/bryanwahyu/contract-analysis/internal/infra/db/sqlite"
	"github.com/bryanwahyu/contract-analysis/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/contract-analysis/internal/infra/directory"
	"github.com/bryanwahyu/contract-analysis/internal/infra/pdftext"
	"github.com/bryanwahyu/contract-analysis/internal/infra/storage"
	"github.com/bryanwahyu/contract-analysis/internal/logging"
)

// OpenDatabase connects with the configured driver and runs the schema
// migration once. Callers own the returned *sql.DB.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, sqlstore.Dialect, error) {
	var (
		db      *sql.DB
		dialect sqlstore.Dialect
		err     error
	)
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysql.Connect(ctx, cfg.MySQLDSN())
		dialect = mysql.Dialect
	case "postgres":
		db, err = postgres.Connect(ctx, cfg.PostgresDSN())
		dialect = postgres.Dialect
	case "sqlite":
		db, err = sqlite.Open(ctx, cfg.Database.Path)
		dialect = sqlite.Dialect
	default:
		return nil, sqlstore.Dialect{}, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, sqlstore.Dialect{}, fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
	}
	if err := sqlstore.Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, sqlstore.Dialect{}, fmt.Errorf("migrate: %w", err)
	}
	return db, dialect, nil
}

// OpenFileStore returns nil when MinIO is not configured.
func OpenFileStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	if cfg.Minio.Endpoint == "" {
		return nil, nil
	}
	store, err := storage.New(storage.Options{
		Endpoint:      cfg.Minio.Endpoint,
		Region:        cfg.Minio.Region,
		Bucket:        cfg.Minio.BucketName,
		AccessKey:     cfg.Minio.AccessKey,
		SecretKey:     cfg.Minio.SecretKey,
		UseSSL:        cfg.Minio.UseSSL,
		PublicRead:    cfg.Minio.PublicRead,
		PresignExpiry: cfg.Minio.PresignExpiry,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx, cfg.Minio.Region); err != nil {
		return nil, err
	}
	return store, nil
}

// Deps are the optional collaborators the caller has already built.
type Deps struct {
	Files   *storage.Store
	Metrics appcontracts.Recorder
	Logger  *slog.Logger
}

// NewService builds the pipeline service on top of an open database.
func NewService(ctx context.Context, cfg *config.Config, db *sql.DB, dialect sqlstore.Dialect, deps Deps) (*appcontracts.Service, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.New("pipeline")
	}

	ext, err := pdftext.New(ctx,
		pdftext.WithMaxBytes(cfg.Extractor.MaxBytes),
		pdftext.WithParseTimeout(cfg.Extractor.ParseTimeout),
		pdftext.WithAllowPrivateHosts(cfg.Extractor.AllowPrivateHosts),
		pdftext.WithLogger(logger.With("component", "pdftext")),
	)
	if err != nil {
		return nil, err
	}

	client := openaiclient.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.MaxTokens)
	analyzer, err := ai.NewAnalyzer(client, cfg.AI.MaxTextChars, logger.With("component", "analyzer"))
	if err != nil {
		return nil, err
	}

	svc := &appcontracts.Service{
		Repo:       sqlstore.NewAnalysisRepository(db, dialect),
		Extractor:  ext,
		Classifier: ai.NewClassifier(client, cfg.AI.ClassifySampleChars, logger.With("component", "classifier")),
		Analyzer:   analyzer,
		Users:      directory.New(cfg.Users),
		Failures:   sqlstore.NewFailureRepository(db, dialect),
		Clock:      application.SystemClock{},
		IDs:        application.UUIDGenerator{},
		Metrics:    deps.Metrics,
		Logger:     logger,
	}
	if deps.Files != nil {
		svc.Files = deps.Files
	}
	return svc, nil
}
