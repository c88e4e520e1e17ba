package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"os"

	appcontracts "github.com/bryanwahyu/contract-analysis/internal/application/contracts"
	"github.com/bryanwahyu/contract-analysis/internal/bootstrap"
	"github.com/bryanwahyu/contract-analysis/internal/config"
	"github.com/bryanwahyu/contract-analysis/internal/logging"
)

func configPath() string {
	if rootFlags.config != "" {
		return rootFlags.config
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "config.yaml"
}

// openService loads config, migrates the database and builds the pipeline.
// The returned closer releases the database.
func openService(ctx context.Context) (*appcontracts.Service, func(), error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Log.Level
	if rootFlags.logLevel != "" {
		level = rootFlags.logLevel
	}
	logging.Init(logging.ParseLevel(level), cfg.Log.Format, os.Stderr)

	db, dialect, err := bootstrap.OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := bootstrap.NewService(ctx, cfg, db, dialect, bootstrap.Deps{Logger: logging.New("contractctl")})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return svc, closeDB(db), nil
}

func closeDB(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
