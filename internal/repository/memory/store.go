// Package memory holds in-process implementations of the domain repositories.
// They emulate the unique indexes and conditional updates of the PostgreSQL
// schema closely enough to exercise the usecases concurrently in tests.
package memory

import (
	"context"
	"sync"

	domainRepo "healconnect/internal/domain/repository"
)

// Transactor runs fn directly. Memory repositories have no rollback, tests
// that need atomicity assert on the compensation path instead. It does scope
// row locks: locks taken inside fn are held until fn returns.
type Transactor struct{}

func NewTransactor() *Transactor {
	return &Transactor{}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	tx := &txScope{}
	defer tx.end()
	return fn(context.WithValue(ctx, txKey{}, tx))
}

type txKey struct{}

// txScope identifies one transaction and releases its row locks on end.
type txScope struct {
	mu    sync.Mutex
	onEnd []func()
}

func (tx *txScope) atEnd(fn func()) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.onEnd = append(tx.onEnd, fn)
}

func (tx *txScope) end() {
	tx.mu.Lock()
	fns := tx.onEnd
	tx.onEnd = nil
	tx.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func txFrom(ctx context.Context) *txScope {
	tx, _ := ctx.Value(txKey{}).(*txScope)
	return tx
}

var _ domainRepo.Transactor = (*Transactor)(nil)

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
