package repository

import (
	"context"
	"errors"

	"backend/internal/model"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// FindForUpdate reads the order under an exclusive row lock scoped
	// to the surrounding transaction. Must be called inside RunInTx.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// Replace updates the order's own fields and swaps the entire item
	// set (old items deleted, new items created).
	Replace(ctx context.Context, order *model.Order, items []model.OrderItem) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, approvedBy *uuid.UUID) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, paymentStatus string) error
	Delete(ctx context.Context, order *model.Order) error
	List(ctx context.Context) ([]model.Order, error)
	CountByStatus(ctx context.Context) (model.OrderStats, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return GetDB(ctx, r.db).Create(order).Error
}

func (r *orderRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Preload("User").
		Preload("Approver").
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) Replace(ctx context.Context, order *model.Order, items []model.OrderItem) error {
	db := GetDB(ctx, r.db)

	if err := db.Model(&model.Order{}).Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"customer_name": order.CustomerName,
			"amount":        order.Amount,
		}).Error; err != nil {
		return err
	}

	if err := db.Where("order_id = ?", order.ID).Delete(&model.OrderItem{}).Error; err != nil {
		return err
	}

	for i := range items {
		items[i].OrderID = order.ID
	}
	return db.Create(&items).Error
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, approvedBy *uuid.UUID) error {
	updates := map[string]interface{}{"status": status}
	if approvedBy != nil {
		updates["approved_by"] = *approvedBy
	}
	return GetDB(ctx, r.db).Model(&model.Order{}).Where("id = ?", id).Updates(updates).Error
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, paymentStatus string) error {
	return GetDB(ctx, r.db).Model(&model.Order{}).Where("id = ?", id).
		Update("payment_status", paymentStatus).Error
}

func (r *orderRepository) Delete(ctx context.Context, order *model.Order) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("order_id = ?", order.ID).Delete(&model.OrderItem{}).Error; err != nil {
		return err
	}
	return db.Delete(&model.Order{}, "id = ?", order.ID).Error
}

func (r *orderRepository) List(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Preload("User").
		Preload("Approver").
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) CountByStatus(ctx context.Context) (model.OrderStats, error) {
	var stats model.OrderStats
	db := GetDB(ctx, r.db)

	if err := db.Model(&model.Order{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := db.Model(&model.Order{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return stats, err
	}

	for _, c := range counts {
		switch c.Status {
		case model.OrderStatusPending:
			stats.Pending = c.Count
		case model.OrderStatusApproved:
			stats.Approved = c.Count
		case model.OrderStatusRejected:
			stats.Rejected = c.Count
		}
	}
	return stats, nil
}
