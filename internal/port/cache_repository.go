package port

import "context"

type IdempotencyStore interface {
	// Acquire sets key if absent, returns false if it already exists
	Acquire(ctx context.Context, key string) (bool, error)

	// Release drops key so a failed request can be retried
	Release(ctx context.Context, key string) error
}
