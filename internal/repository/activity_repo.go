package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityRepository interface {
	Log(ctx context.Context, entry *model.ActivityLog) error
	ListAll(ctx context.Context) ([]model.ActivityLog, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]model.ActivityLog, error)
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Log(ctx context.Context, entry *model.ActivityLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *activityRepository) ListAll(ctx context.Context) ([]model.ActivityLog, error) {
	var logs []model.ActivityLog
	if err := GetDB(ctx, r.db).
		Preload("User").
		Order("created_at DESC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// ListForOrder matches descriptions containing the literal token
// "Order #<id>". The match is textual, not relational; order ids are
// fixed-length UUIDs, so no id can be a prefix of another and the
// substring match is exact-token by construction.
func (r *activityRepository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]model.ActivityLog, error) {
	var logs []model.ActivityLog
	if err := GetDB(ctx, r.db).
		Preload("User").
		Where("description LIKE ?", "%Order #"+orderID.String()+"%").
		Order("created_at DESC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
