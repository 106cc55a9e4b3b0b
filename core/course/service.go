package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/attachment"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("course")

	FileRule = attachment.Rule{
		Field:   "course_file",
		Allowed: []string{"application/pdf", "video/*"},
		TypeTag: func(contentType string) string {
			if contentType == "application/pdf" {
				return FileTypePDF
			}
			return FileTypeVideo
		},
	}
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course, tx ...core.Tx) (Course, error)
		GetCourse(ctx context.Context, id string, tx ...core.Tx) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, tx ...core.Tx) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course, tx ...core.Tx) (Course, error)
		DeleteCourse(ctx context.Context, id string, tx ...core.Tx) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, creatorID string, nc NewCourse, up *attachment.Upload) (Course, error)
		Get(ctx context.Context, id string) (Course, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse, up *attachment.Upload) (Course, error)
		Delete(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		files    *attachment.Manager
		validate *validator.Validate
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, files *attachment.Manager, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		files:    files,
		validate: validate,
	}
}

// Create stages the uploaded course file (if any), validates nc and inserts the Course.
func (svc *Service) Create(ctx context.Context, creatorID string, nc NewCourse, up *attachment.Upload) (Course, error) {
	var created Course
	_, err := svc.files.Create(ctx, up, FileRule,
		func() error { return nc.Validate(svc.validate) },
		func(tx core.Tx, file *attachment.File) error {
			crs := nc.course(creatorID, time.Now().UTC())
			if file != nil {
				crs.setFile(file.URL, file.Type)
			}
			var err error
			created, err = svc.repo.CreateCourse(ctx, crs, tx)
			return err
		},
	)
	if err != nil {
		return Course{}, err
	}
	return created, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryCourses(ctx, filter, OrderingAllowList.Clean(ordering))
}

// Update merges uc into the Course. When up is given, the Course switches to the new file and
// the previous one is removed after commit.
func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse, up *attachment.Upload) (Course, error) {
	if err := uc.Validate(svc.validate); err != nil {
		return Course{}, err
	}

	var updated Course
	_, err := svc.files.Update(ctx, up, FileRule, func(tx core.Tx, file *attachment.File) (*attachment.File, error) {
		crs, err := svc.repo.GetCourse(ctx, id, tx)
		if err != nil {
			return nil, err
		}
		uc.apply(&crs)

		var old *attachment.File
		if file != nil {
			if crs.FileURL.Valid {
				old = &attachment.File{URL: crs.FileURL.String, Type: crs.FileType.String}
			}
			crs.setFile(file.URL, file.Type)
		}
		crs.UpdatedAt = time.Now().UTC()

		if updated, err = svc.repo.UpdateCourse(ctx, crs, tx); err != nil {
			return nil, errors.Wrap(err, "updating course")
		}
		return old, nil
	})
	if err != nil {
		return Course{}, err
	}
	return updated, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.files.Delete(ctx, FileRule.Field, func(tx core.Tx) (*attachment.File, error) {
		crs, err := svc.repo.GetCourse(ctx, id, tx)
		if err != nil {
			return nil, err
		}
		if err = svc.repo.DeleteCourse(ctx, id, tx); err != nil {
			return nil, err
		}
		if !crs.FileURL.Valid {
			return nil, nil
		}
		return &attachment.File{URL: crs.FileURL.String, Type: crs.FileType.String}, nil
	})
}
