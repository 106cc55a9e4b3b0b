package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/elimu/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

var AllRoles = []string{RoleStudent, RoleAdmin}

type User struct {
	ID              string    `json:"id"`
	LastName        string    `json:"nom"`
	FirstName       string    `json:"prenom"`
	BirthDate       string    `json:"dateNaissance,omitempty"` // YYYY-MM-DD
	Level           string    `json:"niveau,omitempty"`
	Track           string    `json:"option,omitempty"`
	School          string    `json:"etablissement,omitempty"`
	Email           string    `json:"email"`
	Phone           string    `json:"tel,omitempty"`
	Country         string    `json:"pays,omitempty"`
	City            string    `json:"ville,omitempty"`
	Role            string    `json:"role"`
	ProfilePhotoURL string    `json:"profile_photo_url,omitempty"`
	PasswordHash    []byte    `json:"-"`
	ResetToken      string    `json:"-"`
	ResetExpires    time.Time `json:"-"` // UTC
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) FullName() string {
	return core.CleanString(u.FirstName + " " + u.LastName)
}

// SetResetToken stores a password reset code. Token and expiry are always set together.
func (u *User) SetResetToken(token string, expires time.Time) {
	u.ResetToken = token
	u.ResetExpires = expires.UTC()
}

// ClearResetToken drops the password reset code and its expiry together.
func (u *User) ClearResetToken() {
	u.ResetToken = ""
	u.ResetExpires = time.Time{}
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	LastName  string `json:"nom" validate:"required,max=100"`
	FirstName string `json:"prenom" validate:"required,max=100"`
	BirthDate string `json:"dateNaissance" validate:"omitempty,datetime=2006-01-02"`
	Level     string `json:"niveau" validate:"max=50"`
	Track     string `json:"option" validate:"max=100"`
	School    string `json:"etablissement" validate:"max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Phone     string `json:"tel" validate:"omitempty,phone,max=30"`
	Country   string `json:"pays" validate:"max=100"`
	City      string `json:"ville" validate:"max=100"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	nu.LastName = core.CleanString(nu.LastName)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Level = core.CleanString(nu.Level)
	nu.Track = core.CleanString(nu.Track)
	nu.School = core.CleanString(nu.School)
	nu.Phone = core.CleanString(nu.Phone)
	nu.Country = core.CleanString(nu.Country)
	nu.City = core.CleanString(nu.City)
	if nu.Country == "" {
		nu.Country = defaultCountry
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, nu.Email)
}

// UpdateProfile defines what information a User may change on their own profile.
// nil fields keep their current value.
type UpdateProfile struct {
	LastName  *string `json:"nom" validate:"omitempty,min=1,max=100"`
	FirstName *string `json:"prenom" validate:"omitempty,min=1,max=100"`
	Level     *string `json:"niveau" validate:"omitempty,max=50"`
	Track     *string `json:"option" validate:"omitempty,max=100"`
	School    *string `json:"etablissement" validate:"omitempty,max=150"`
	Phone     *string `json:"tel" validate:"omitempty,phone,max=30"`
	Country   *string `json:"pays" validate:"omitempty,max=100"`
	City      *string `json:"ville" validate:"omitempty,max=100"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.LastName = core.CleanStringPtr(up.LastName)
	up.FirstName = core.CleanStringPtr(up.FirstName)
	up.Level = core.CleanStringPtr(up.Level)
	up.Track = core.CleanStringPtr(up.Track)
	up.School = core.CleanStringPtr(up.School)
	up.Phone = core.CleanStringPtr(up.Phone)
	up.Country = core.CleanStringPtr(up.Country)
	up.City = core.CleanStringPtr(up.City)
	return validate.Struct(up)
}

func (up UpdateProfile) apply(usr *User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&usr.LastName, up.LastName)
	set(&usr.FirstName, up.FirstName)
	set(&usr.Level, up.Level)
	set(&usr.Track, up.Track)
	set(&usr.School, up.School)
	set(&usr.Phone, up.Phone)
	set(&usr.Country, up.Country)
	set(&usr.City, up.City)
}

type ChangePassword struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (cp *ChangePassword) Validate(validate *validator.Validate) error { return validate.Struct(cp) }

type ResetUserPassword struct {
	Token       string `json:"token,omitempty" validate:"required"`
	NewPassword string `json:"newPassword,omitempty" validate:"required"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Token = core.CleanString(rp.Token)
	return validate.Struct(rp)
}

type UpdateRole struct {
	Role string `json:"role" validate:"required,oneof=student admin"`
}

func (ur *UpdateRole) Validate(validate *validator.Validate) error {
	ur.Role = core.CleanString(ur.Role, true /* lower */)
	return validate.Struct(ur)
}

// GetFilter selects a single User. Only the first non-empty criteria is used.
type GetFilter struct {
	ID         string
	Email      string
	ResetToken string
	ValidAt    time.Time // with ResetToken: only match codes expiring after ValidAt
}

type QueryFilter struct {
	Level string `query:"niveau"`
}

func (qf *QueryFilter) Clean() {
	qf.Level = core.CleanString(qf.Level)
}

// Ordering allow-list for user listings.
var OrderingAllowList = core.OrderingAllowList{
	Columns: map[string]string{
		"nom":        "nom",
		"prenom":     "prenom",
		"email":      "email",
		"niveau":     "niveau",
		"created_at": "created_at",
	},
	Default: core.DBOrdering{Field: "created_at", Ascending: false},
}
