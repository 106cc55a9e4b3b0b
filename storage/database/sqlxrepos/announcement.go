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
	"github.com/trezcool/elimu/core/announcement"
)

type announcementRow struct {
	ID              string      `db:"id"`
	Title           string      `db:"title"`
	Description     string      `db:"description"`
	CourseID        null.String `db:"course_id"`
	TeacherName     null.String `db:"teacher_name"`
	TeacherImageURL null.String `db:"teacher_image_url"`
	IsActive        bool        `db:"is_active"`
	CreatedBy       null.String `db:"created_by"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`

	AdminLastName     null.String `db:"admin_nom"`
	AdminFirstName    null.String `db:"admin_prenom"`
	CourseTitle       null.String `db:"course_title"`
	CourseDescription null.String `db:"course_description"`
	CourseImageURL    null.String `db:"course_image_url"`
}

func (row announcementRow) announcement() announcement.Announcement {
	return announcement.Announcement{
		ID:                row.ID,
		Title:             row.Title,
		Description:       row.Description,
		CourseID:          row.CourseID,
		TeacherName:       row.TeacherName,
		TeacherImageURL:   row.TeacherImageURL,
		IsActive:          row.IsActive,
		CreatedBy:         row.CreatedBy,
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
		AdminLastName:     row.AdminLastName,
		AdminFirstName:    row.AdminFirstName,
		CourseTitle:       row.CourseTitle,
		CourseDescription: row.CourseDescription,
		CourseImageURL:    row.CourseImageURL,
	}
}

func announcementValues(ann announcement.Announcement) map[string]interface{} {
	return map[string]interface{}{
		"title":             ann.Title,
		"description":       ann.Description,
		"course_id":         ann.CourseID,
		"teacher_name":      ann.TeacherName,
		"teacher_image_url": ann.TeacherImageURL,
		"is_active":         ann.IsActive,
		"updated_at":        ann.UpdatedAt.UTC(),
	}
}

type announcementRepository struct {
	base
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db sqlx.ExtContext) *announcementRepository {
	return &announcementRepository{base{db: db}}
}

func (repo *announcementRepository) CreateAnnouncement(
	ctx context.Context,
	ann announcement.Announcement,
	tx ...core.Tx,
) (announcement.Announcement, error) {
	vals := announcementValues(ann)
	vals["id"] = uuid.New().String()
	vals["created_by"] = ann.CreatedBy
	vals["created_at"] = ann.CreatedAt.UTC()

	var row announcementRow
	if err := repo.get(ctx, tx, &row, psql.Insert("announcements").SetMap(vals).Suffix("RETURNING *")); err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return row.announcement(), nil
}

func (repo *announcementRepository) GetAnnouncement(
	ctx context.Context,
	id string,
	tx ...core.Tx,
) (announcement.Announcement, error) {
	if _, err := uuid.Parse(id); err != nil {
		return announcement.Announcement{}, announcement.ErrNotFound
	}

	query := psql.Select(
		"a.*",
		"u.nom AS admin_nom",
		"u.prenom AS admin_prenom",
		"c.title AS course_title",
		"c.description AS course_description",
		"c.image_url AS course_image_url",
	).
		From("announcements a").
		LeftJoin("users u ON a.created_by = u.id").
		LeftJoin("courses c ON a.course_id = c.id").
		Where(sq.Eq{"a.id": id})

	var row announcementRow
	if err := repo.get(ctx, tx, &row, query); err != nil {
		if isNoRows(err) {
			return announcement.Announcement{}, announcement.ErrNotFound
		}
		return announcement.Announcement{}, errors.Wrap(err, "selecting announcement")
	}
	return row.announcement(), nil
}

func (repo *announcementRepository) QueryAnnouncements(ctx context.Context, tx ...core.Tx) ([]announcement.Announcement, error) {
	query := psql.Select("a.*", "u.nom AS admin_nom", "u.prenom AS admin_prenom").
		From("announcements a").
		LeftJoin("users u ON a.created_by = u.id").
		OrderBy("a.created_at DESC")

	var rows []announcementRow
	if err := repo.sel(ctx, tx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting announcements")
	}
	anns := make([]announcement.Announcement, 0, len(rows))
	for _, row := range rows {
		anns = append(anns, row.announcement())
	}
	return anns, nil
}

func (repo *announcementRepository) UpdateAnnouncement(
	ctx context.Context,
	ann announcement.Announcement,
	tx ...core.Tx,
) (announcement.Announcement, error) {
	if _, err := uuid.Parse(ann.ID); err != nil {
		return announcement.Announcement{}, announcement.ErrNotFound
	}

	query := psql.Update("announcements").SetMap(announcementValues(ann)).Where(sq.Eq{"id": ann.ID})
	n, err := repo.exec(ctx, tx, query)
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "updating announcement")
	}
	if n == 0 {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	return repo.GetAnnouncement(ctx, ann.ID, tx...)
}

func (repo *announcementRepository) DeleteAnnouncement(ctx context.Context, id string, tx ...core.Tx) error {
	if _, err := uuid.Parse(id); err != nil {
		return announcement.ErrNotFound
	}
	n, err := repo.exec(ctx, tx, psql.Delete("announcements").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	if n == 0 {
		return announcement.ErrNotFound
	}
	return nil
}
