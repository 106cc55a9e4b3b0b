package announcement

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/attachment"
	"github.com/trezcool/elimu/core/course"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("announcement")
	ErrUnknownCourse  = errors.New("the linked course does not exist")
	unknownCourseFErr = core.FieldError{Field: "course_id", Error: ErrUnknownCourse.Error()}

	TeacherImageRule = attachment.Rule{
		Field:   "teacher_image",
		Allowed: []string{"image/*"},
	}
)

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, ann Announcement, tx ...core.Tx) (Announcement, error)
		// GetAnnouncement also loads the linked course's title, description and image.
		GetAnnouncement(ctx context.Context, id string, tx ...core.Tx) (Announcement, error)
		// QueryAnnouncements returns every Announcement, newest first.
		QueryAnnouncements(ctx context.Context, tx ...core.Tx) ([]Announcement, error)
		UpdateAnnouncement(ctx context.Context, ann Announcement, tx ...core.Tx) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string, tx ...core.Tx) error
	}

	// CourseGetter checks linked courses.
	CourseGetter interface {
		GetCourse(ctx context.Context, id string, tx ...core.Tx) (course.Course, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, creatorID string, na NewAnnouncement, up *attachment.Upload) (Announcement, error)
		Get(ctx context.Context, id string) (Announcement, error)
		Query(ctx context.Context) ([]Announcement, error)
		Update(ctx context.Context, id string, ua UpdateAnnouncement, up *attachment.Upload) (Announcement, error)
		Delete(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		courses  CourseGetter
		files    *attachment.Manager
		validate *validator.Validate
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, courses CourseGetter, files *attachment.Manager, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		courses:  courses,
		files:    files,
		validate: validate,
	}
}

func (svc *Service) checkCourse(ctx context.Context, id string, tx ...core.Tx) error {
	if id == "" {
		return nil
	}
	if _, err := svc.courses.GetCourse(ctx, id, tx...); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(ErrUnknownCourse, unknownCourseFErr)
		}
		return errors.Wrap(err, "checking linked course")
	}
	return nil
}

// Create stages the teacher image (if any), validates na and inserts the Announcement.
func (svc *Service) Create(ctx context.Context, creatorID string, na NewAnnouncement, up *attachment.Upload) (Announcement, error) {
	var created Announcement
	_, err := svc.files.Create(ctx, up, TeacherImageRule,
		func() error { return na.Validate(svc.validate) },
		func(tx core.Tx, file *attachment.File) error {
			if err := svc.checkCourse(ctx, na.CourseID, tx); err != nil {
				return err
			}
			ann := na.announcement(creatorID, time.Now().UTC())
			if file != nil {
				ann.TeacherImageURL.SetValid(file.URL)
			}
			var err error
			created, err = svc.repo.CreateAnnouncement(ctx, ann, tx)
			return err
		},
	)
	if err != nil {
		return Announcement{}, err
	}
	return created, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Announcement, error) {
	return svc.repo.GetAnnouncement(ctx, id)
}

func (svc *Service) Query(ctx context.Context) ([]Announcement, error) {
	return svc.repo.QueryAnnouncements(ctx)
}

func (svc *Service) Update(ctx context.Context, id string, ua UpdateAnnouncement, up *attachment.Upload) (Announcement, error) {
	if err := ua.Validate(svc.validate); err != nil {
		return Announcement{}, err
	}

	var updated Announcement
	_, err := svc.files.Update(ctx, up, TeacherImageRule, func(tx core.Tx, file *attachment.File) (*attachment.File, error) {
		ann, err := svc.repo.GetAnnouncement(ctx, id, tx)
		if err != nil {
			return nil, err
		}
		if ua.CourseID != nil {
			if err = svc.checkCourse(ctx, *ua.CourseID, tx); err != nil {
				return nil, err
			}
		}
		ua.apply(&ann)

		var old *attachment.File
		if file != nil {
			if ann.TeacherImageURL.Valid {
				old = &attachment.File{URL: ann.TeacherImageURL.String}
			}
			ann.TeacherImageURL.SetValid(file.URL)
		}
		ann.UpdatedAt = time.Now().UTC()

		if updated, err = svc.repo.UpdateAnnouncement(ctx, ann, tx); err != nil {
			return nil, errors.Wrap(err, "updating announcement")
		}
		return old, nil
	})
	if err != nil {
		return Announcement{}, err
	}
	return updated, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.files.Delete(ctx, TeacherImageRule.Field, func(tx core.Tx) (*attachment.File, error) {
		ann, err := svc.repo.GetAnnouncement(ctx, id, tx)
		if err != nil {
			return nil, err
		}
		if err = svc.repo.DeleteAnnouncement(ctx, id, tx); err != nil {
			return nil, err
		}
		if !ann.TeacherImageURL.Valid {
			return nil, nil
		}
		return &attachment.File{URL: ann.TeacherImageURL.String}, nil
	})
}
