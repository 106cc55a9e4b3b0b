package inmemdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

// withCreator fills the creator's names, like the SQL join does.
func (repo *courseRepository) withCreator(crs course.Course) course.Course {
	crs.CreatorLastName, crs.CreatorFirstName = null.String{}, null.String{}
	if usr, ok := repo.db.users[crs.CreatedBy.String]; ok && crs.CreatedBy.Valid {
		crs.CreatorLastName = null.StringFrom(usr.LastName)
		crs.CreatorFirstName = null.StringFrom(usr.FirstName)
	}
	return crs
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, tx ...core.Tx) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = crs
	record(tx, func() { delete(repo.db.courses, crs.ID) })
	return repo.withCreator(crs), nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, _ ...core.Tx) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return repo.withCreator(crs), nil
}

func (repo *courseRepository) QueryCourses(
	_ context.Context,
	filter *course.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.Tx,
) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if filter != nil && filter.Category != "" && crs.Category.String != filter.Category {
			continue
		}
		courses = append(courses, repo.withCreator(crs))
	}
	orderSlice(courses, ordering, func(crs course.Course, field string) string {
		switch field {
		case "title":
			return crs.Title
		case "category":
			return crs.Category.String
		case "level":
			return crs.Level.String
		default:
			return timeKey(crs.CreatedAt.UnixNano())
		}
	})
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, tx ...core.Tx) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	prev, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	// creator and creation date are not updatable
	crs.CreatedBy, crs.CreatedAt = prev.CreatedBy, prev.CreatedAt
	repo.db.courses[crs.ID] = crs
	record(tx, func() { repo.db.courses[prev.ID] = prev })
	return repo.withCreator(crs), nil
}

// DeleteCourse also unlinks the announcements of the course.
func (repo *courseRepository) DeleteCourse(_ context.Context, id string, tx ...core.Tx) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	prev, ok := repo.db.courses[id]
	if !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	record(tx, func() { repo.db.courses[id] = prev })

	for aid, ann := range repo.db.announcements {
		if ann.CourseID.String == id {
			prevAnn := ann
			ann.CourseID = null.String{}
			repo.db.announcements[aid] = ann
			record(tx, func() { repo.db.announcements[prevAnn.ID] = prevAnn })
		}
	}
	return nil
}
