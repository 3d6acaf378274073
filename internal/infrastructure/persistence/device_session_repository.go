package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/bizops/backend/internal/domain/device"
	"github.com/bizops/backend/internal/domain/shared"
	"github.com/bizops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDeviceSessionRepository implements device.SessionRepository using GORM
type GormDeviceSessionRepository struct {
	db *gorm.DB
}

// NewGormDeviceSessionRepository creates a new GormDeviceSessionRepository
func NewGormDeviceSessionRepository(db *gorm.DB) *GormDeviceSessionRepository {
	return &GormDeviceSessionRepository{db: db}
}

// refreshedOnConflict lists the columns a repeat check-in may change.
// created_at, principal_id and is_active keep their first-write values.
var refreshedOnConflict = []string{"last_active_at", "device_type", "device_name", "updated_at"}

// Upsert registers or refreshes the session for (tenant_id, device_id) and
// returns the row as stored.
func (r *GormDeviceSessionRepository) Upsert(ctx context.Context, s *device.Session) (*device.Session, error) {
	model := models.DeviceSessionModelFromDomain(s)
	model.CreatedAt = model.CreatedAt.UTC()
	model.UpdatedAt = model.UpdatedAt.UTC()
	model.LastActiveAt = model.LastActiveAt.UTC()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns(refreshedOnConflict),
	}).Create(model).Error
	if err != nil {
		return nil, err
	}

	return r.FindByTenantAndDevice(ctx, s.TenantID, s.DeviceID)
}

type typeCount struct {
	DeviceType device.Type
	Count      int64
}

// CountActiveByType counts active sessions with last_active_at >= since, per class
func (r *GormDeviceSessionRepository) CountActiveByType(ctx context.Context, tenantID uuid.UUID, since time.Time) (device.Counts, error) {
	var rows []typeCount
	err := r.db.WithContext(ctx).
		Model(&models.DeviceSessionModel{}).
		Scopes(tenantScope(tenantID)).
		Select("device_type, COUNT(*) AS count").
		Where("is_active = ? AND last_active_at >= ?", true, since.UTC()).
		Group("device_type").
		Scan(&rows).Error
	if err != nil {
		return device.Counts{}, err
	}

	var counts device.Counts
	for _, row := range rows {
		counts.Add(row.DeviceType, int(row.Count))
	}
	return counts, nil
}

// FindOldestActive returns the grandfathered set: up to limit active sessions of
// class t inside the window, oldest registration first, device_id breaking ties.
func (r *GormDeviceSessionRepository) FindOldestActive(ctx context.Context, tenantID uuid.UUID, t device.Type, since time.Time, limit int) ([]device.Session, error) {
	if limit <= 0 {
		return []device.Session{}, nil
	}

	var sessionModels []models.DeviceSessionModel
	err := r.db.WithContext(ctx).
		Scopes(tenantScope(tenantID)).
		Where("device_type = ? AND is_active = ? AND last_active_at >= ?", t, true, since.UTC()).
		Order("created_at ASC").
		Order("device_id ASC").
		Limit(limit).
		Find(&sessionModels).Error
	if err != nil {
		return nil, err
	}
	return toDomainSessions(sessionModels), nil
}

// FindByID finds a session of the tenant by its row id
func (r *GormDeviceSessionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*device.Session, error) {
	var model models.DeviceSessionModel
	err := r.db.WithContext(ctx).
		Scopes(tenantScope(tenantID)).
		First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenantAndDevice finds a session by its natural key
func (r *GormDeviceSessionRepository) FindByTenantAndDevice(ctx context.Context, tenantID uuid.UUID, deviceID string) (*device.Session, error) {
	var model models.DeviceSessionModel
	err := r.db.WithContext(ctx).
		Scopes(tenantScope(tenantID)).
		Where("device_id = ?", deviceID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenant lists the tenant's sessions with pagination
func (r *GormDeviceSessionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter device.SessionFilter) ([]device.Session, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.DeviceSessionModel{}).
		Scopes(tenantScope(tenantID))

	if filter.Type != "" {
		query = query.Where("device_type = ?", filter.Type)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Since != nil {
		query = query.Where("last_active_at >= ?", filter.Since.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, DeviceSessionSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir, "ASC")

	limit := filter.PageSize
	if limit <= 0 {
		limit = 20
	}

	var sessionModels []models.DeviceSessionModel
	err := query.
		Order(sortField + " " + sortOrder).
		Order("device_id ASC").
		Offset(filter.Offset()).
		Limit(limit).
		Find(&sessionModels).Error
	if err != nil {
		return nil, 0, err
	}
	return toDomainSessions(sessionModels), total, nil
}

// Save persists the activation state of an existing session
func (r *GormDeviceSessionRepository) Save(ctx context.Context, s *device.Session) error {
	model := models.DeviceSessionModelFromDomain(s)
	result := r.db.WithContext(ctx).
		Model(&models.DeviceSessionModel{}).
		Scopes(tenantScope(s.TenantID)).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"is_active":  model.IsActive,
			"revoked_at": model.RevokedAt,
			"updated_at": model.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toDomainSessions(sessionModels []models.DeviceSessionModel) []device.Session {
	sessions := make([]device.Session, len(sessionModels))
	for i := range sessionModels {
		sessions[i] = *sessionModels[i].ToDomain()
	}
	return sessions
}
