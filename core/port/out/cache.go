package out

import "context"

// CacheInvalidator is a fire-and-forget key-pattern deletion hook called
// after the pipeline's Store writes (see Store). The Store remains
// authoritative; Invalidate returns an error on failure, which the pipeline
// logs without failing the run.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID int64, scope CacheScope) error
}
