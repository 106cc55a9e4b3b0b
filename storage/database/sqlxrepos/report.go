package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/report"
)

type reportRepository struct {
	base
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db sqlx.ExtContext) *reportRepository {
	return &reportRepository{base{db: db}}
}

func (repo *reportRepository) Stats(ctx context.Context, since time.Time) (report.Stats, error) {
	// subqueries keep the "?" placeholders: the outer builder numbers them
	count := func(table string) sq.SelectBuilder {
		return sq.Select("COUNT(*)").From(table)
	}
	query := psql.Select().
		Column(sq.Alias(count("users"), "total_users")).
		Column(sq.Alias(count("courses"), "total_courses")).
		Column(sq.Alias(count("contact_messages"), "total_messages")).
		Column(sq.Alias(count("announcements"), "total_announcements")).
		Column(sq.Alias(count("users").Where(sq.GtOrEq{"created_at": since.UTC()}), "recent_users"))

	var row struct {
		TotalUsers         int `db:"total_users"`
		TotalCourses       int `db:"total_courses"`
		TotalMessages      int `db:"total_messages"`
		TotalAnnouncements int `db:"total_announcements"`
		RecentUsers        int `db:"recent_users"`
	}
	if err := repo.get(ctx, nil, &row, query); err != nil {
		return report.Stats{}, errors.Wrap(err, "counting rows")
	}
	return report.Stats(row), nil
}
