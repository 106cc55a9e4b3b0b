package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/attachment"
)

const defaultCountry = "Maroc"

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("invalid or expired token")
	ErrResetTokenTaken    = errors.New("reset code already held by another user")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrNoProfilePhoto     = errors.New("no profile photo to delete")
	ErrSelfDelete         = core.NewInvalidOperationError("you cannot delete your own account")

	ProfilePhotoRule = attachment.Rule{
		Field:   "profile_photo",
		Allowed: []string{"image/*"},
	}
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedID string, tx ...core.Tx) error
		CreateUser(ctx context.Context, usr User, tx ...core.Tx) (User, error)
		GetUser(ctx context.Context, filter GetFilter, tx ...core.Tx) (User, error)
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, tx ...core.Tx) ([]User, error)
		DistinctLevels(ctx context.Context, tx ...core.Tx) ([]string, error)
		// UpdateUser returns ErrResetTokenTaken when another User holds usr.ResetToken
		UpdateUser(ctx context.Context, usr User, tx ...core.Tx) (User, error)
		// ConsumeResetToken stores passwordHash on the User holding token (if not expired at validAt)
		// and clears the token, in a single statement. It returns ErrNotFound when no code matches.
		ConsumeResetToken(ctx context.Context, token string, validAt time.Time, passwordHash []byte, tx ...core.Tx) (User, error)
		DeleteUser(ctx context.Context, id string, tx ...core.Tx) error
	}

	ServiceInterface interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedID ...string) error
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		UpdateProfile(ctx context.Context, id string, data UpdateProfile) (User, error)
		ChangePassword(ctx context.Context, id string, data ChangePassword) error
		SetProfilePhoto(ctx context.Context, id string, up *attachment.Upload) (User, error)
		RemoveProfilePhoto(ctx context.Context, id string) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		VerifyResetToken(ctx context.Context, token string) (User, error)
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Levels(ctx context.Context) ([]string, error)
		UpdateRole(ctx context.Context, id, role string) (User, error)
		Delete(ctx context.Context, actorID, id string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		files   *attachment.Manager
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, files *attachment.Manager, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		files:   files,
		conf:    conf,
	}
}

func emailExistsError() error {
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

func invalidResetTokenError() error {
	return core.NewValidationError(ErrInvalidResetToken, core.FieldError{Field: "token", Error: ErrInvalidResetToken.Error()})
}

func (svc *Service) CheckEmailUniqueness(ctx context.Context, email string, excludedID ...string) error {
	var excl string
	if len(excludedID) > 0 {
		excl = excludedID[0]
	}
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excl); err != nil {
		if err == ErrEmailExists {
			return emailExistsError()
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		LastName:  nu.LastName,
		FirstName: nu.FirstName,
		BirthDate: nu.BirthDate,
		Level:     nu.Level,
		Track:     nu.Track,
		School:    nu.School,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Country:   nu.Country,
		City:      nu.City,
		Role:      RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, emailExistsError()
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) UpdateProfile(ctx context.Context, id string, data UpdateProfile) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	data.apply(&usr)
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) ChangePassword(ctx context.Context, id string, data ChangePassword) error {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err = usr.CheckPassword(data.CurrentPassword); err != nil {
		return core.NewValidationError(ErrWrongPassword, core.FieldError{Field: "currentPassword", Error: ErrWrongPassword.Error()})
	}
	if err = usr.SetPassword(data.NewPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating password")
	}
	return nil
}

// SetProfilePhoto replaces the profile photo of the User. The previous photo is removed once the
// new one is committed.
func (svc *Service) SetProfilePhoto(ctx context.Context, id string, up *attachment.Upload) (User, error) {
	if up == nil {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: ProfilePhotoRule.Field, Error: "this field is required"})
	}

	var updated User
	_, err := svc.files.Update(ctx, up, ProfilePhotoRule, func(tx core.Tx, file *attachment.File) (*attachment.File, error) {
		usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id}, tx)
		if err != nil {
			return nil, err
		}
		var old *attachment.File
		if usr.ProfilePhotoURL != "" {
			old = &attachment.File{URL: usr.ProfilePhotoURL}
		}
		usr.ProfilePhotoURL = file.URL
		usr.UpdatedAt = time.Now().UTC()
		updated, err = svc.repo.UpdateUser(ctx, usr, tx)
		return old, err
	})
	return updated, err
}

func (svc *Service) RemoveProfilePhoto(ctx context.Context, id string) (User, error) {
	var updated User
	_, err := svc.files.Update(ctx, nil, ProfilePhotoRule, func(tx core.Tx, _ *attachment.File) (*attachment.File, error) {
		usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id}, tx)
		if err != nil {
			return nil, err
		}
		if usr.ProfilePhotoURL == "" {
			return nil, core.NewValidationError(ErrNoProfilePhoto)
		}
		old := &attachment.File{URL: usr.ProfilePhotoURL}
		usr.ProfilePhotoURL = ""
		usr.UpdatedAt = time.Now().UTC()
		updated, err = svc.repo.UpdateUser(ctx, usr, tx)
		return old, err
	})
	return updated, err
}

// RequestPasswordReset stores a new reset code on the User (replacing any previous one)
// and emails it. It returns ErrNotFound when no User has this email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, usr, err := svc.storeResetCode(ctx, usr)
	if err != nil {
		return err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Réinitialisation de votre mot de passe",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":     usr.FirstName,
			"Code":     code,
			"ValidFor": fmt.Sprintf("%d minutes", int(svc.conf.PasswordResetTimeoutDelta.Minutes())),
		},
	})
	return nil
}

// storeResetCode sets a fresh code on usr. A code held by another User is never reused:
// on collision a new one is drawn, at most maxResetCodeAttempts times.
func (svc *Service) storeResetCode(ctx context.Context, usr User) (string, User, error) {
	for attempt := 1; ; attempt++ {
		code, err := resetCodeGen()
		if err != nil {
			return "", User{}, errors.Wrap(err, "generating reset code")
		}
		usr.SetResetToken(code, NowFunc().Add(svc.conf.PasswordResetTimeoutDelta))
		usr.UpdatedAt = time.Now().UTC()

		updated, err := svc.repo.UpdateUser(ctx, usr)
		switch {
		case err == nil:
			return code, updated, nil
		case err == ErrResetTokenTaken && attempt < maxResetCodeAttempts:
			continue
		default:
			return "", User{}, errors.Wrap(err, "storing reset code")
		}
	}
}

func (svc *Service) VerifyResetToken(ctx context.Context, token string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ResetToken: core.CleanString(token), ValidAt: NowFunc()})
	if err != nil {
		if err == ErrNotFound {
			return User{}, invalidResetTokenError()
		}
		return User{}, errors.Wrap(err, "finding user by reset token")
	}
	return usr, nil
}

// ResetPassword redeems a reset code. A code can only be redeemed once.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	var usr User
	if err := usr.SetPassword(data.NewPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	if _, err := svc.repo.ConsumeResetToken(ctx, data.Token, NowFunc(), usr.PasswordHash); err != nil {
		if err == ErrNotFound {
			return invalidResetTokenError()
		}
		return errors.Wrap(err, "consuming reset code")
	}
	return nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, OrderingAllowList.Clean(ordering))
}

func (svc *Service) Levels(ctx context.Context) ([]string, error) {
	return svc.repo.DistinctLevels(ctx)
}

func (svc *Service) UpdateRole(ctx context.Context, id, role string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Delete removes the User with id on behalf of actorID, then their profile photo.
// A User may not delete their own account.
func (svc *Service) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ErrSelfDelete
	}
	return svc.files.Delete(ctx, ProfilePhotoRule.Field, func(tx core.Tx) (*attachment.File, error) {
		usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id}, tx)
		if err != nil {
			return nil, err
		}
		if err = svc.repo.DeleteUser(ctx, id, tx); err != nil {
			return nil, err
		}
		if usr.ProfilePhotoURL == "" {
			return nil, nil
		}
		return &attachment.File{URL: usr.ProfilePhotoURL}, nil
	})
}
