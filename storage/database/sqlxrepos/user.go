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
	"github.com/trezcool/elimu/core/user"
)

const (
	birthDateLayout      = "2006-01-02"
	resetTokenConstraint = "users_reset_token_key"
)

var userColumns = []string{
	"id", "nom", "prenom", "date_naissance", "niveau", "option", "etablissement", "email", "password_hash",
	"tel", "pays", "ville", "role", "profile_photo_url", "reset_token", "reset_expires", "created_at", "updated_at",
}

type userRow struct {
	ID              string      `db:"id"`
	LastName        string      `db:"nom"`
	FirstName       string      `db:"prenom"`
	BirthDate       null.Time   `db:"date_naissance"`
	Level           null.String `db:"niveau"`
	Track           null.String `db:"option"`
	School          null.String `db:"etablissement"`
	Email           string      `db:"email"`
	PasswordHash    []byte      `db:"password_hash"`
	Phone           null.String `db:"tel"`
	Country         string      `db:"pays"`
	City            null.String `db:"ville"`
	Role            string      `db:"role"`
	ProfilePhotoURL null.String `db:"profile_photo_url"`
	ResetToken      null.String `db:"reset_token"`
	ResetExpires    null.Time   `db:"reset_expires"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func toUserRow(usr user.User) userRow {
	row := userRow{
		ID:              usr.ID,
		LastName:        usr.LastName,
		FirstName:       usr.FirstName,
		Level:           null.NewString(usr.Level, usr.Level != ""),
		Track:           null.NewString(usr.Track, usr.Track != ""),
		School:          null.NewString(usr.School, usr.School != ""),
		Email:           usr.Email,
		PasswordHash:    usr.PasswordHash,
		Phone:           null.NewString(usr.Phone, usr.Phone != ""),
		Country:         usr.Country,
		City:            null.NewString(usr.City, usr.City != ""),
		Role:            usr.Role,
		ProfilePhotoURL: null.NewString(usr.ProfilePhotoURL, usr.ProfilePhotoURL != ""),
		CreatedAt:       usr.CreatedAt.UTC(),
		UpdatedAt:       usr.UpdatedAt.UTC(),
	}
	if bd, err := time.Parse(birthDateLayout, usr.BirthDate); err == nil {
		row.BirthDate = null.TimeFrom(bd)
	}
	if usr.ResetToken != "" {
		row.ResetToken = null.StringFrom(usr.ResetToken)
		row.ResetExpires = null.TimeFrom(usr.ResetExpires.UTC())
	}
	return row
}

func (row userRow) user() user.User {
	usr := user.User{
		ID:              row.ID,
		LastName:        row.LastName,
		FirstName:       row.FirstName,
		Level:           row.Level.String,
		Track:           row.Track.String,
		School:          row.School.String,
		Email:           row.Email,
		PasswordHash:    row.PasswordHash,
		Phone:           row.Phone.String,
		Country:         row.Country,
		City:            row.City.String,
		Role:            row.Role,
		ProfilePhotoURL: row.ProfilePhotoURL.String,
		ResetToken:      row.ResetToken.String,
		ResetExpires:    row.ResetExpires.Time.UTC(),
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if row.BirthDate.Valid {
		usr.BirthDate = row.BirthDate.Time.Format(birthDateLayout)
	}
	return usr
}

func (row userRow) values() map[string]interface{} {
	return map[string]interface{}{
		"nom":               row.LastName,
		"prenom":            row.FirstName,
		"date_naissance":    row.BirthDate,
		"niveau":            row.Level,
		"option":            row.Track,
		"etablissement":     row.School,
		"email":             row.Email,
		"password_hash":     row.PasswordHash,
		"tel":               row.Phone,
		"pays":              row.Country,
		"ville":             row.City,
		"role":              row.Role,
		"profile_photo_url": row.ProfilePhotoURL,
		"reset_token":       row.ResetToken,
		"reset_expires":     row.ResetExpires,
		"updated_at":        row.UpdatedAt,
	}
}

type userRepository struct {
	base
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db sqlx.ExtContext) *userRepository {
	return &userRepository{base{db: db}}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedID string, tx ...core.Tx) error {
	query := psql.Select("COUNT(*)").From("users").Where(sq.Eq{"email": email})
	if excludedID != "" {
		query = query.Where(sq.NotEq{"id": excludedID})
	}

	var count int
	if err := repo.get(ctx, tx, &count, query); err != nil {
		return errors.Wrap(err, "counting users by email")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, tx ...core.Tx) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)
	vals := row.values()
	vals["id"] = row.ID
	vals["created_at"] = row.CreatedAt

	var created userRow
	query := psql.Insert("users").SetMap(vals).Suffix("RETURNING *")
	if err := repo.get(ctx, tx, &created, query); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return created.user(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, tx ...core.Tx) (user.User, error) {
	query := psql.Select(userColumns...).From("users")
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		query = query.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		query = query.Where(sq.Eq{"email": filter.Email})
	case filter.ResetToken != "":
		query = query.Where(sq.And{sq.Eq{"reset_token": filter.ResetToken}, sq.Gt{"reset_expires": filter.ValidAt.UTC()}})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.get(ctx, tx, &row, query); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.user(), nil
}

func (repo *userRepository) QueryUsers(
	ctx context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	tx ...core.Tx,
) ([]user.User, error) {
	query := psql.Select(userColumns...).From("users").OrderBy(orderBy("", ordering)...)
	if filter != nil && filter.Level != "" {
		query = query.Where(sq.Eq{"niveau": filter.Level})
	}

	var rows []userRow
	if err := repo.sel(ctx, tx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *userRepository) DistinctLevels(ctx context.Context, tx ...core.Tx) ([]string, error) {
	query := psql.Select("DISTINCT niveau").From("users").
		Where(sq.And{sq.NotEq{"niveau": nil}, sq.NotEq{"niveau": ""}}).
		OrderBy("niveau ASC")

	levels := make([]string, 0)
	if err := repo.sel(ctx, tx, &levels, query); err != nil {
		return nil, errors.Wrap(err, "selecting levels")
	}
	return levels, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, tx ...core.Tx) (user.User, error) {
	if _, err := uuid.Parse(usr.ID); err != nil {
		return user.User{}, user.ErrNotFound
	}
	row := toUserRow(usr)

	var updated userRow
	query := psql.Update("users").SetMap(row.values()).Where(sq.Eq{"id": row.ID}).Suffix("RETURNING *")
	if err := repo.get(ctx, tx, &updated, query); err != nil {
		switch {
		case isNoRows(err):
			return user.User{}, user.ErrNotFound
		case isUniqueViolation(err, resetTokenConstraint):
			return user.User{}, user.ErrResetTokenTaken
		case isUniqueViolation(err):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return updated.user(), nil
}

func (repo *userRepository) ConsumeResetToken(
	ctx context.Context,
	token string,
	validAt time.Time,
	passwordHash []byte,
	tx ...core.Tx,
) (user.User, error) {
	query := psql.Update("users").
		SetMap(map[string]interface{}{
			"password_hash": passwordHash,
			"reset_token":   nil,
			"reset_expires": nil,
			"updated_at":    time.Now().UTC(),
		}).
		Where(sq.Expr(
			"id = (SELECT id FROM users WHERE reset_token = ? AND reset_expires > ? LIMIT 1 FOR UPDATE)",
			token, validAt.UTC(),
		)).
		Suffix("RETURNING *")

	var updated userRow
	if err := repo.get(ctx, tx, &updated, query); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "consuming reset token")
	}
	return updated.user(), nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string, tx ...core.Tx) error {
	if _, err := uuid.Parse(id); err != nil {
		return user.ErrNotFound
	}
	n, err := repo.exec(ctx, tx, psql.Delete("users").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
