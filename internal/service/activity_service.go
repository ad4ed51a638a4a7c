package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"github.com/google/uuid"
)

type ActivityResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Action      string `json:"action"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type ActivityService interface {
	ListAll(ctx context.Context) ([]ActivityResponse, error)
	ListForOrder(ctx context.Context, orderID string) ([]ActivityResponse, error)
}

type activityService struct {
	activity repository.ActivityRepository
}

// NewActivityService creates a new ActivityService instance
func NewActivityService(activity repository.ActivityRepository) ActivityService {
	return &activityService{activity: activity}
}

// ListAll retrieves the global activity feed, newest first
func (s *activityService) ListAll(ctx context.Context) ([]ActivityResponse, error) {
	logs, err := s.activity.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return toActivityResponses(logs), nil
}

// ListForOrder retrieves records whose description embeds the
// "Order #<id>" token, newest first
func (s *activityService) ListForOrder(ctx context.Context, orderID string) ([]ActivityResponse, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}

	logs, err := s.activity.ListForOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list order activity: %w", err)
	}
	return toActivityResponses(logs), nil
}

func toActivityResponses(logs []model.ActivityLog) []ActivityResponse {
	res := make([]ActivityResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, ActivityResponse{
			ID:          l.ID.String(),
			UserID:      userID,
			Username:    username,
			Action:      l.Action,
			Description: l.Description,
			CreatedAt:   l.CreatedAt.Format(time.RFC3339),
		})
	}
	return res
}
