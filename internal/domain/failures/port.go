package failures

import "context"

// Repository defines persistence for pipeline failures
type Repository interface {
	Save(ctx context.Context, f *Failure) error
	ListRecent(ctx context.Context, limit int) ([]*Failure, error)
}
