package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the tables the service needs. Call it once at process
// start, before serving requests.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for i, stmt := range d.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate step %d: %w", d.Name, i+1, err)
		}
	}
	return nil
}
