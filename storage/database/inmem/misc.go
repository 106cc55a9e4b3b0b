package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/contact"
	"github.com/trezcool/elimu/core/report"
	"github.com/trezcool/elimu/core/settings"
)

type settingsRepository struct {
	db *DB
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) GetSettings(_ context.Context, userID string, _ ...core.Tx) (settings.UserSettings, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if us, ok := repo.db.settings[userID]; ok {
		return us, nil
	}
	return settings.UserSettings{}, settings.ErrNotFound
}

func (repo *settingsRepository) UpsertSettings(
	_ context.Context,
	us settings.UserSettings,
	tx ...core.Tx,
) (settings.UserSettings, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if prev, ok := repo.db.settings[us.UserID]; ok {
		us.CreatedAt = prev.CreatedAt
		record(tx, func() { repo.db.settings[prev.UserID] = prev })
	} else {
		record(tx, func() { delete(repo.db.settings, us.UserID) })
	}
	repo.db.settings[us.UserID] = us
	return us, nil
}

type messageRepository struct {
	db *DB
}

var _ contact.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(_ context.Context, msg contact.Message, tx ...core.Tx) (contact.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	msg.ID = uuid.New().String()
	repo.db.messages[msg.ID] = msg
	record(tx, func() { delete(repo.db.messages, msg.ID) })
	return msg, nil
}

func (repo *messageRepository) QueryMessages(_ context.Context, ordering []core.DBOrdering, _ ...core.Tx) ([]contact.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	msgs := make([]contact.Message, 0, len(repo.db.messages))
	for _, msg := range repo.db.messages {
		msgs = append(msgs, msg)
	}
	orderSlice(msgs, ordering, func(msg contact.Message, field string) string {
		switch field {
		case "nom":
			return msg.Name
		case "email":
			return msg.Email
		default:
			return timeKey(msg.CreatedAt.UnixNano())
		}
	})
	return msgs, nil
}

func (repo *messageRepository) DeleteMessage(_ context.Context, id string, tx ...core.Tx) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	prev, ok := repo.db.messages[id]
	if !ok {
		return contact.ErrNotFound
	}
	delete(repo.db.messages, id)
	record(tx, func() { repo.db.messages[id] = prev })
	return nil
}

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) *reportRepository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) Stats(_ context.Context, since time.Time) (report.Stats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	stats := report.Stats{
		TotalUsers:         len(repo.db.users),
		TotalCourses:       len(repo.db.courses),
		TotalMessages:      len(repo.db.messages),
		TotalAnnouncements: len(repo.db.announcements),
	}
	for _, usr := range repo.db.users {
		if !usr.CreatedAt.Before(since) {
			stats.RecentUsers++
		}
	}
	return stats, nil
}
