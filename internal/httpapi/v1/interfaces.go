package v1

import "context"

// ReadyChecker is implemented by dependencies that can report readiness,
// such as the Postgres and ORM stores.
type ReadyChecker interface {
    Ready(ctx context.Context) error
}
