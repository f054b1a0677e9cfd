package repository

import (
	"context"
)

// SequenceRepository is the storage primitive behind the sequence allocator.
type SequenceRepository interface {
	// FindMaxIdentifier returns the highest identifier in scope starting with
	// prefix, or "" when the scope is empty.
	FindMaxIdentifier(ctx context.Context, scope, prefix string) (string, error)
	// InsertIfAbsent claims identifier and reports whether this call won it.
	InsertIfAbsent(ctx context.Context, scope, identifier string) (bool, error)
	Delete(ctx context.Context, identifier string) error
}
