package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) emailTaken(email, excludedID string) bool {
	for _, usr := range repo.db.users {
		if usr.Email == email && usr.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *userRepository) resetTokenTaken(token, excludedID string) bool {
	if token == "" {
		return false
	}
	for _, usr := range repo.db.users {
		if usr.ResetToken == token && usr.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedID string, _ ...core.Tx) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if repo.emailTaken(email, excludedID) {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, tx ...core.Tx) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.emailTaken(usr.Email, "") {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = usr
	record(tx, func() { delete(repo.db.users, usr.ID) })
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.Tx) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
	case filter.Email != "":
		for _, usr := range repo.db.users {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
	case filter.ResetToken != "":
		for _, usr := range repo.db.users {
			if usr.ResetToken == filter.ResetToken && usr.ResetExpires.After(filter.ValidAt) {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(
	_ context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.Tx,
) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if filter != nil && filter.Level != "" && usr.Level != filter.Level {
			continue
		}
		users = append(users, usr)
	}
	orderSlice(users, ordering, func(usr user.User, field string) string {
		switch field {
		case "nom":
			return usr.LastName
		case "prenom":
			return usr.FirstName
		case "email":
			return usr.Email
		case "niveau":
			return usr.Level
		default:
			return timeKey(usr.CreatedAt.UnixNano())
		}
	})
	return users, nil
}

func (repo *userRepository) DistinctLevels(context.Context, ...core.Tx) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	seen := make(map[string]bool)
	levels := make([]string, 0)
	for _, usr := range repo.db.users {
		if usr.Level != "" && !seen[usr.Level] {
			seen[usr.Level] = true
			levels = append(levels, usr.Level)
		}
	}
	sort.Strings(levels)
	return levels, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, tx ...core.Tx) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	prev, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	if repo.resetTokenTaken(usr.ResetToken, usr.ID) {
		return user.User{}, user.ErrResetTokenTaken
	}
	repo.db.users[usr.ID] = usr
	record(tx, func() { repo.db.users[prev.ID] = prev })
	return usr, nil
}

func (repo *userRepository) ConsumeResetToken(
	_ context.Context,
	token string,
	validAt time.Time,
	passwordHash []byte,
	tx ...core.Tx,
) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, prev := range repo.db.users {
		if prev.ResetToken != token || !prev.ResetExpires.After(validAt) {
			continue
		}
		usr := prev
		usr.PasswordHash = passwordHash
		usr.ClearResetToken()
		usr.UpdatedAt = time.Now().UTC()
		repo.db.users[id] = usr
		record(tx, func() { repo.db.users[prev.ID] = prev })
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

// DeleteUser also applies the foreign keys: owned settings go, authored rows lose their author.
func (repo *userRepository) DeleteUser(_ context.Context, id string, tx ...core.Tx) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	prev, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	delete(repo.db.users, id)
	record(tx, func() { repo.db.users[id] = prev })

	if us, ok := repo.db.settings[id]; ok {
		delete(repo.db.settings, id)
		record(tx, func() { repo.db.settings[id] = us })
	}
	for cid, crs := range repo.db.courses {
		if crs.CreatedBy.String == id {
			prevCrs := crs
			crs.CreatedBy = null.String{}
			repo.db.courses[cid] = crs
			record(tx, func() { repo.db.courses[prevCrs.ID] = prevCrs })
		}
	}
	for aid, ann := range repo.db.announcements {
		if ann.CreatedBy.String == id {
			prevAnn := ann
			ann.CreatedBy = null.String{}
			repo.db.announcements[aid] = ann
			record(tx, func() { repo.db.announcements[prevAnn.ID] = prevAnn })
		}
	}
	return nil
}
