package inmemdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/announcement"
)

type announcementRepository struct {
	db *DB
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *DB) *announcementRepository {
	return &announcementRepository{db: db}
}

func (repo *announcementRepository) withJoins(ann announcement.Announcement, withCourse bool) announcement.Announcement {
	ann.AdminLastName, ann.AdminFirstName = null.String{}, null.String{}
	ann.CourseTitle, ann.CourseDescription, ann.CourseImageURL = null.String{}, null.String{}, null.String{}

	if usr, ok := repo.db.users[ann.CreatedBy.String]; ok && ann.CreatedBy.Valid {
		ann.AdminLastName = null.StringFrom(usr.LastName)
		ann.AdminFirstName = null.StringFrom(usr.FirstName)
	}
	if !withCourse {
		return ann
	}
	if crs, ok := repo.db.courses[ann.CourseID.String]; ok && ann.CourseID.Valid {
		ann.CourseTitle = null.StringFrom(crs.Title)
		ann.CourseDescription = null.StringFrom(crs.Description)
		ann.CourseImageURL = crs.ImageURL
	}
	return ann
}

func (repo *announcementRepository) CreateAnnouncement(
	_ context.Context,
	ann announcement.Announcement,
	tx ...core.Tx,
) (announcement.Announcement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ann.ID = uuid.New().String()
	repo.db.announcements[ann.ID] = ann
	record(tx, func() { delete(repo.db.announcements, ann.ID) })
	return repo.withJoins(ann, false), nil
}

func (repo *announcementRepository) GetAnnouncement(_ context.Context, id string, _ ...core.Tx) (announcement.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ann, ok := repo.db.announcements[id]
	if !ok {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	return repo.withJoins(ann, true), nil
}

func (repo *announcementRepository) QueryAnnouncements(context.Context, ...core.Tx) ([]announcement.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	anns := make([]announcement.Announcement, 0, len(repo.db.announcements))
	for _, ann := range repo.db.announcements {
		anns = append(anns, repo.withJoins(ann, false))
	}
	orderSlice(anns, []core.DBOrdering{{Field: "created_at"}}, func(ann announcement.Announcement, _ string) string {
		return timeKey(ann.CreatedAt.UnixNano())
	})
	return anns, nil
}

func (repo *announcementRepository) UpdateAnnouncement(
	_ context.Context,
	ann announcement.Announcement,
	tx ...core.Tx,
) (announcement.Announcement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	prev, ok := repo.db.announcements[ann.ID]
	if !ok {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	ann.CreatedBy, ann.CreatedAt = prev.CreatedBy, prev.CreatedAt
	repo.db.announcements[ann.ID] = ann
	record(tx, func() { repo.db.announcements[prev.ID] = prev })
	return repo.withJoins(ann, true), nil
}

func (repo *announcementRepository) DeleteAnnouncement(_ context.Context, id string, tx ...core.Tx) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	prev, ok := repo.db.announcements[id]
	if !ok {
		return announcement.ErrNotFound
	}
	delete(repo.db.announcements, id)
	record(tx, func() { repo.db.announcements[id] = prev })
	return nil
}
