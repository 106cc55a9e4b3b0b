package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

type courseRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Content     string      `db:"content"`
	ImageURL    null.String `db:"image_url"`
	Category    null.String `db:"category"`
	Level       null.String `db:"level"`
	Duration    null.String `db:"duration"`
	FileURL     null.String `db:"file_url"`
	FileType    null.String `db:"file_type"`
	CreatedBy   null.String `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`

	CreatorLastName  null.String `db:"nom"`
	CreatorFirstName null.String `db:"prenom"`
}

func (row courseRow) course() course.Course {
	return course.Course{
		ID:               row.ID,
		Title:            row.Title,
		Description:      row.Description,
		Content:          row.Content,
		ImageURL:         row.ImageURL,
		Category:         row.Category,
		Level:            row.Level,
		Duration:         row.Duration,
		FileURL:          row.FileURL,
		FileType:         row.FileType,
		CreatedBy:        row.CreatedBy,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
		CreatorLastName:  row.CreatorLastName,
		CreatorFirstName: row.CreatorFirstName,
	}
}

func courseValues(crs course.Course) map[string]interface{} {
	return map[string]interface{}{
		"title":       crs.Title,
		"description": crs.Description,
		"content":     crs.Content,
		"image_url":   crs.ImageURL,
		"category":    crs.Category,
		"level":       crs.Level,
		"duration":    crs.Duration,
		"file_url":    crs.FileURL,
		"file_type":   crs.FileType,
		"updated_at":  crs.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	base
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db sqlx.ExtContext) *courseRepository {
	return &courseRepository{base{db: db}}
}

func (repo *courseRepository) selectCourses() sq.SelectBuilder {
	return psql.Select("c.*", "u.nom", "u.prenom").
		From("courses c").
		LeftJoin("users u ON c.created_by = u.id")
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course, tx ...core.Tx) (course.Course, error) {
	vals := courseValues(crs)
	vals["id"] = uuid.New().String()
	vals["created_by"] = crs.CreatedBy
	vals["created_at"] = crs.CreatedAt.UTC()

	var row courseRow
	if err := repo.get(ctx, tx, &row, psql.Insert("courses").SetMap(vals).Suffix("RETURNING *")); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.course(), nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string, tx ...core.Tx) (course.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Course{}, course.ErrNotFound
	}

	var row courseRow
	if err := repo.get(ctx, tx, &row, repo.selectCourses().Where(sq.Eq{"c.id": id})); err != nil {
		if isNoRows(err) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "selecting course")
	}
	return row.course(), nil
}

func (repo *courseRepository) QueryCourses(
	ctx context.Context,
	filter *course.QueryFilter,
	ordering []core.DBOrdering,
	tx ...core.Tx,
) ([]course.Course, error) {
	query := repo.selectCourses().OrderBy(orderBy("c", ordering)...)
	if filter != nil && filter.Category != "" {
		query = query.Where(sq.Eq{"c.category": filter.Category})
	}

	var rows []courseRow
	if err := repo.sel(ctx, tx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course, tx ...core.Tx) (course.Course, error) {
	if _, err := uuid.Parse(crs.ID); err != nil {
		return course.Course{}, course.ErrNotFound
	}

	query := psql.Update("courses").SetMap(courseValues(crs)).Where(sq.Eq{"id": crs.ID})
	n, err := repo.exec(ctx, tx, query)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return repo.GetCourse(ctx, crs.ID, tx...)
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string, tx ...core.Tx) error {
	if _, err := uuid.Parse(id); err != nil {
		return course.ErrNotFound
	}
	n, err := repo.exec(ctx, tx, psql.Delete("courses").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n == 0 {
		return course.ErrNotFound
	}
	return nil
}
