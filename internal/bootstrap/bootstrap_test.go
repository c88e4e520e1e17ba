package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bryanwahyu/contract-analysis/internal/config"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("database:\n  driver: sqlite\n  path: " + filepath.Join(t.TempDir(), "c.db") + "\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cfg
}

func TestOpenDatabaseAndService(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	db, dialect, err := OpenDatabase(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	defer db.Close()
	if dialect.Name != "sqlite" {
		t.Errorf("dialect = %q", dialect.Name)
	}

	svc, err := NewService(ctx, cfg, db, dialect, Deps{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.Files != nil {
		t.Error("Files should stay nil without MinIO")
	}
	list, err := svc.ListAll(ctx, 1, 10)
	if err != nil || len(list) != 0 {
		t.Errorf("ListAll on empty store = %v, %v", list, err)
	}
}

func TestOpenFileStore_Disabled(t *testing.T) {
	store, err := OpenFileStore(context.Background(), sqliteConfig(t))
	if err != nil || store != nil {
		t.Errorf("OpenFileStore = %v, %v; want nil, nil", store, err)
	}
}
