package memory

import (
	"context"
	"sync"
	"time"

	"healconnect/internal/domain/entity"
	domainRepo "healconnect/internal/domain/repository"
)

type AuditLogRepository struct {
	mu   sync.Mutex
	logs []entity.AuditLog
}

func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

var _ domainRepo.AuditLogRepository = (*AuditLogRepository)(nil)

func (r *AuditLogRepository) Create(ctx context.Context, log *entity.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log.ID = int64(len(r.logs) + 1)
	log.CreatedAt = time.Now()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *AuditLogRepository) FindAll(ctx context.Context, filter entity.AuditLogFilter, limit, offset int) ([]entity.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []entity.AuditLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		l := r.logs[i]
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		if filter.EntityID != "" && l.Metadata["entity_id"] != filter.EntityID {
			continue
		}
		matched = append(matched, l)
	}
	return paginate(matched, limit, offset), int64(len(matched)), nil
}

func (r *AuditLogRepository) FindByID(ctx context.Context, id int64) (*entity.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.logs {
		if l.ID == id {
			found := l
			return &found, nil
		}
	}
	return nil, nil
}

// Actions returns the recorded actions in insertion order.
func (r *AuditLogRepository) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}
