package settings_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/settings"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	repo := inmemdb.NewSettingsRepository(db)
	svc := settings.NewService(repo, db)

	t.Run("first read stores defaults", func(t *testing.T) {
		s, err := svc.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, settings.Defaults(), s)

		us, err := repo.GetSettings(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, us.CreatedAt.IsZero())
	})

	t.Run("save keeps created_at", func(t *testing.T) {
		before, err := repo.GetSettings(ctx, "u1")
		require.NoError(t, err)

		s := settings.Defaults()
		s.Privacy.ProfileVisibility = "private"
		saved, err := svc.Save(ctx, "u1", s)
		require.NoError(t, err)
		assert.Equal(t, s, saved)

		after, err := repo.GetSettings(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, before.CreatedAt, after.CreatedAt)
		assert.Equal(t, "private", after.Settings.Privacy.ProfileVisibility)
	})

	t.Run("failed save changes nothing", func(t *testing.T) {
		s := settings.Defaults()
		s.Language = "ar"
		db.FailNextCommit()
		_, err := svc.Save(ctx, "u2", s)
		require.Error(t, err)

		_, err = repo.GetSettings(ctx, "u2")
		assert.Equal(t, settings.ErrNotFound, err)
	})
}

func TestUpdateSettings_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	valid := settings.Defaults()
	badTheme := settings.Defaults()
	badTheme.Appearance.Theme = "neon"
	badLang := settings.Defaults()
	badLang.Language = "de"

	tests := []struct {
		name    string
		data    settings.UpdateSettings
		wantErr bool
	}{
		{name: "valid", data: settings.UpdateSettings{Settings: &valid}},
		{name: "missing", data: settings.UpdateSettings{}, wantErr: true},
		{name: "theme", data: settings.UpdateSettings{Settings: &badTheme}, wantErr: true},
		{name: "language", data: settings.UpdateSettings{Settings: &badLang}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate)
			assert.Equal(t, tt.wantErr, err != nil, err)
		})
	}
}
