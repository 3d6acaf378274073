package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/bizops/backend/internal/domain/identity"
	"github.com/bizops/backend/internal/domain/shared"
	"github.com/bizops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOperatorRepository implements identity.OperatorRepository using GORM
type GormOperatorRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormOperatorRepository creates a new GormOperatorRepository
func NewGormOperatorRepository(db *gorm.DB) *GormOperatorRepository {
	return &GormOperatorRepository{db: db, now: time.Now}
}

// IsOperator reports whether userID holds an unrevoked operator grant
func (r *GormOperatorRepository) IsOperator(ctx context.Context, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PlatformOperatorModel{}).
		Where("user_id = ?", userID).
		Where("(revoked_at IS NULL OR revoked_at > ?)", r.now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Find returns the grant record for userID, revoked or not
func (r *GormOperatorRepository) Find(ctx context.Context, userID uuid.UUID) (*identity.PlatformOperator, error) {
	var model models.PlatformOperatorModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Grant creates or re-activates an operator grant
func (r *GormOperatorRepository) Grant(ctx context.Context, op *identity.PlatformOperator) error {
	model := models.PlatformOperatorModelFromDomain(op)
	model.GrantedAt = model.GrantedAt.UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted_by", "granted_at", "revoked_at"}),
	}).Create(model).Error
}

// Revoke ends an active operator grant
func (r *GormOperatorRepository) Revoke(ctx context.Context, userID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.PlatformOperatorModel{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
