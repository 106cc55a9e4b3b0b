// Package settings manages per-user preferences.
package settings

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var ErrNotFound = core.NewNotFoundError("user settings")

type (
	Notifications struct {
		EmailNotifications bool `json:"emailNotifications"`
		CourseUpdates      bool `json:"courseUpdates"`
		NewAnnouncements   bool `json:"newAnnouncements"`
		MarketingEmails    bool `json:"marketingEmails"`
	}

	Appearance struct {
		Theme         string `json:"theme" validate:"required,oneof=light dark system"`
		FontSize      string `json:"fontSize" validate:"required,oneof=small medium large"`
		ReducedMotion bool   `json:"reducedMotion"`
	}

	Privacy struct {
		ProfileVisibility   string `json:"profileVisibility" validate:"required,oneof=public students private"`
		ShowEnrolledCourses bool   `json:"showEnrolledCourses"`
		ShowActivityStatus  bool   `json:"showActivityStatus"`
	}

	Settings struct {
		Notifications Notifications `json:"notifications"`
		Appearance    Appearance    `json:"appearance"`
		Privacy       Privacy       `json:"privacy"`
		Language      string        `json:"language" validate:"required,oneof=fr en ar"`
	}

	// UserSettings are the Settings stored for one User.
	UserSettings struct {
		UserID    string
		Settings  Settings
		CreatedAt time.Time // UTC
		UpdatedAt time.Time // UTC
	}

	// UpdateSettings is the body of a settings update.
	UpdateSettings struct {
		Settings *Settings `json:"settings" validate:"required"`
	}
)

func (us *UpdateSettings) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

// Defaults returns the settings of a User who never saved any.
func Defaults() Settings {
	return Settings{
		Notifications: Notifications{
			EmailNotifications: true,
			CourseUpdates:      true,
			NewAnnouncements:   true,
			MarketingEmails:    false,
		},
		Appearance: Appearance{
			Theme:    "light",
			FontSize: "medium",
		},
		Privacy: Privacy{
			ProfileVisibility:   "public",
			ShowEnrolledCourses: true,
			ShowActivityStatus:  true,
		},
		Language: "fr",
	}
}

type (
	Repository interface {
		GetSettings(ctx context.Context, userID string, tx ...core.Tx) (UserSettings, error)
		// UpsertSettings inserts the settings, or replaces them when the User already has some.
		UpsertSettings(ctx context.Context, us UserSettings, tx ...core.Tx) (UserSettings, error)
	}

	ServiceInterface interface {
		Get(ctx context.Context, userID string) (Settings, error)
		Save(ctx context.Context, userID string, s Settings) (Settings, error)
	}

	Service struct {
		repo Repository
		db   core.Transactor
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, db core.Transactor) *Service {
	return &Service{repo: repo, db: db}
}

// Get returns the User's settings, storing the defaults on first read.
func (svc *Service) Get(ctx context.Context, userID string) (Settings, error) {
	us, err := svc.repo.GetSettings(ctx, userID)
	if err == nil {
		return us.Settings, nil
	}
	if err != ErrNotFound {
		return Settings{}, errors.Wrap(err, "getting settings")
	}

	now := time.Now().UTC()
	us, err = svc.repo.UpsertSettings(ctx, UserSettings{
		UserID:    userID,
		Settings:  Defaults(),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Settings{}, errors.Wrap(err, "creating default settings")
	}
	return us.Settings, nil
}

func (svc *Service) Save(ctx context.Context, userID string, s Settings) (Settings, error) {
	var saved UserSettings
	err := core.RunInTx(ctx, svc.db, func(tx core.Tx) error {
		now := time.Now().UTC()
		us, err := svc.repo.GetSettings(ctx, userID, tx)
		switch {
		case err == ErrNotFound:
			us = UserSettings{UserID: userID, CreatedAt: now}
		case err != nil:
			return err
		}
		us.Settings = s
		us.UpdatedAt = now
		saved, err = svc.repo.UpsertSettings(ctx, us, tx)
		return err
	})
	if err != nil {
		return Settings{}, errors.Wrap(err, "saving settings")
	}
	return saved.Settings, nil
}
