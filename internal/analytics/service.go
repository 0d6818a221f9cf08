package analytics

import (
	"context"

	"github.com/flowstate-app/gateway/internal/store"
	"github.com/flowstate-app/gateway/internal/store/model"
)

// Service reads aggregated usage back out of the store.
type Service interface {
	GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error)
	GetRecentRequests(ctx context.Context, limit int) ([]model.RequestLog, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error) {
	if days <= 0 {
		days = 7
	}
	return s.repo.Requests().GetDailyStats(ctx, days)
}

func (s *service) GetRecentRequests(ctx context.Context, limit int) ([]model.RequestLog, error) {
	return s.repo.Requests().GetRecent(ctx, limit)
}
