// Package report computes the admin dashboard figures.
package report

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// RecentWindow is how far back a signup counts as recent.
const RecentWindow = 30 * 24 * time.Hour

var nowFunc = time.Now // mockable

type Stats struct {
	TotalUsers         int `json:"totalUsers"`
	TotalCourses       int `json:"totalCourses"`
	TotalMessages      int `json:"totalMessages"`
	TotalAnnouncements int `json:"totalAnnouncements"`
	RecentUsers        int `json:"recentUsers"`
}

type (
	Repository interface {
		// Stats counts every table, and the users created at or after since.
		Stats(ctx context.Context, since time.Time) (Stats, error)
	}

	ServiceInterface interface {
		Stats(ctx context.Context) (Stats, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := svc.repo.Stats(ctx, nowFunc().UTC().Add(-RecentWindow))
	if err != nil {
		return Stats{}, errors.Wrap(err, "computing stats")
	}
	return stats, nil
}
