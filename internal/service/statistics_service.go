package service

import (
	"context"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"
)

type StatisticsService interface {
	GetOrderStats(ctx context.Context) (model.OrderStats, error)
}

type statisticsService struct {
	orders repository.OrderRepository
}

func NewStatisticsService(orders repository.OrderRepository) StatisticsService {
	return &statisticsService{orders: orders}
}

// GetOrderStats recomputes dashboard counters from the orders table.
func (s *statisticsService) GetOrderStats(ctx context.Context) (model.OrderStats, error) {
	stats, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return model.OrderStats{}, fmt.Errorf("failed to compute order stats: %w", err)
	}
	return stats, nil
}
