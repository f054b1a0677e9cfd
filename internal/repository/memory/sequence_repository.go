package memory

import (
	"context"
	"strings"
	"sync"

	domainRepo "healconnect/internal/domain/repository"
)

type SequenceRepository struct {
	mu     sync.Mutex
	claims map[string]string // identifier -> scope

	// FailInsert, when set, is returned by InsertIfAbsent.
	FailInsert error
}

func NewSequenceRepository() *SequenceRepository {
	return &SequenceRepository{claims: make(map[string]string)}
}

var _ domainRepo.SequenceRepository = (*SequenceRepository)(nil)

func (r *SequenceRepository) FindMaxIdentifier(ctx context.Context, scope, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	best := ""
	for id, s := range r.claims {
		if s != scope || !strings.HasPrefix(id, prefix) {
			continue
		}
		if len(id) > len(best) || (len(id) == len(best) && id > best) {
			best = id
		}
	}
	return best, nil
}

func (r *SequenceRepository) InsertIfAbsent(ctx context.Context, scope, identifier string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailInsert != nil {
		return false, r.FailInsert
	}
	if _, exists := r.claims[identifier]; exists {
		return false, nil
	}
	r.claims[identifier] = scope
	return true, nil
}

func (r *SequenceRepository) Delete(ctx context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claims, identifier)
	return nil
}

// Claimed lists the identifiers currently held in scope.
func (r *SequenceRepository) Claimed(scope string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for id, s := range r.claims {
		if s == scope {
			out = append(out, id)
		}
	}
	return out
}
