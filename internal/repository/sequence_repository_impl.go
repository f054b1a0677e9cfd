package repository

import (
	"context"
	"errors"

	"healconnect/internal/domain/entity"
	domainRepo "healconnect/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) domainRepo.SequenceRepository {
	return &sequenceRepository{db: db}
}

// FindMaxIdentifier orders by length first so that "PAT10000" sorts after
// "PAT9999" should a scope ever outgrow its pad width.
func (r *sequenceRepository) FindMaxIdentifier(ctx context.Context, scope, prefix string) (string, error) {
	var claim entity.SequenceClaim
	err := conn(ctx, r.db).
		Where("scope = ? AND identifier LIKE ?", scope, escapeLike(prefix)+"%").
		Order("length(identifier) DESC, identifier DESC").
		First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return claim.Identifier, nil
}

// InsertIfAbsent relies on the primary key: ON CONFLICT DO NOTHING affects
// zero rows when another writer claimed the identifier first.
func (r *sequenceRepository) InsertIfAbsent(ctx context.Context, scope, identifier string) (bool, error) {
	claim := &entity.SequenceClaim{Identifier: identifier, Scope: scope}
	result := conn(ctx, r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(claim)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *sequenceRepository) Delete(ctx context.Context, identifier string) error {
	return conn(ctx, r.db).Where("identifier = ?", identifier).Delete(&entity.SequenceClaim{}).Error
}
