package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/settings"
)

const upsertSettingsSuffix = `ON CONFLICT (user_id) DO UPDATE SET
	notifications = EXCLUDED.notifications,
	appearance = EXCLUDED.appearance,
	privacy = EXCLUDED.privacy,
	language = EXCLUDED.language,
	updated_at = EXCLUDED.updated_at
RETURNING *`

type settingsRow struct {
	UserID        string    `db:"user_id"`
	Notifications []byte    `db:"notifications"`
	Appearance    []byte    `db:"appearance"`
	Privacy       []byte    `db:"privacy"`
	Language      string    `db:"language"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func toSettingsRow(us settings.UserSettings) (settingsRow, error) {
	row := settingsRow{
		UserID:    us.UserID,
		Language:  us.Settings.Language,
		CreatedAt: us.CreatedAt.UTC(),
		UpdatedAt: us.UpdatedAt.UTC(),
	}
	var err error
	if row.Notifications, err = json.Marshal(us.Settings.Notifications); err != nil {
		return row, err
	}
	if row.Appearance, err = json.Marshal(us.Settings.Appearance); err != nil {
		return row, err
	}
	row.Privacy, err = json.Marshal(us.Settings.Privacy)
	return row, err
}

func (row settingsRow) userSettings() (settings.UserSettings, error) {
	us := settings.UserSettings{
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	us.Settings.Language = row.Language
	if err := json.Unmarshal(row.Notifications, &us.Settings.Notifications); err != nil {
		return us, err
	}
	if err := json.Unmarshal(row.Appearance, &us.Settings.Appearance); err != nil {
		return us, err
	}
	return us, json.Unmarshal(row.Privacy, &us.Settings.Privacy)
}

type settingsRepository struct {
	base
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db sqlx.ExtContext) *settingsRepository {
	return &settingsRepository{base{db: db}}
}

func (repo *settingsRepository) GetSettings(ctx context.Context, userID string, tx ...core.Tx) (settings.UserSettings, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return settings.UserSettings{}, settings.ErrNotFound
	}

	var row settingsRow
	if err := repo.get(ctx, tx, &row, psql.Select("*").From("user_settings").Where(sq.Eq{"user_id": userID})); err != nil {
		if isNoRows(err) {
			return settings.UserSettings{}, settings.ErrNotFound
		}
		return settings.UserSettings{}, errors.Wrap(err, "selecting settings")
	}
	us, err := row.userSettings()
	return us, errors.Wrap(err, "decoding settings")
}

func (repo *settingsRepository) UpsertSettings(
	ctx context.Context,
	us settings.UserSettings,
	tx ...core.Tx,
) (settings.UserSettings, error) {
	row, err := toSettingsRow(us)
	if err != nil {
		return settings.UserSettings{}, errors.Wrap(err, "encoding settings")
	}

	query := psql.Insert("user_settings").
		Columns("user_id", "notifications", "appearance", "privacy", "language", "created_at", "updated_at").
		Values(row.UserID, row.Notifications, row.Appearance, row.Privacy, row.Language, row.CreatedAt, row.UpdatedAt).
		Suffix(upsertSettingsSuffix)

	var saved settingsRow
	if err = repo.get(ctx, tx, &saved, query); err != nil {
		return settings.UserSettings{}, errors.Wrap(err, "upserting settings")
	}
	us, err = saved.userSettings()
	return us, errors.Wrap(err, "decoding settings")
}
