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
	"github.com/trezcool/elimu/core/contact"
)

type messageRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"nom"`
	Email     string      `db:"email"`
	Phone     null.String `db:"tel"`
	Subject   null.String `db:"objet"`
	Message   string      `db:"message"`
	CreatedAt time.Time   `db:"created_at"`
}

func (row messageRow) message() contact.Message {
	return contact.Message{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Phone:     row.Phone,
		Subject:   row.Subject,
		Message:   row.Message,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type messageRepository struct {
	base
}

var _ contact.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db sqlx.ExtContext) *messageRepository {
	return &messageRepository{base{db: db}}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, msg contact.Message, tx ...core.Tx) (contact.Message, error) {
	query := psql.Insert("contact_messages").
		SetMap(map[string]interface{}{
			"id":         uuid.New().String(),
			"nom":        msg.Name,
			"email":      msg.Email,
			"tel":        msg.Phone,
			"objet":      msg.Subject,
			"message":    msg.Message,
			"created_at": msg.CreatedAt.UTC(),
		}).
		Suffix("RETURNING *")

	var row messageRow
	if err := repo.get(ctx, tx, &row, query); err != nil {
		return contact.Message{}, errors.Wrap(err, "inserting message")
	}
	return row.message(), nil
}

func (repo *messageRepository) QueryMessages(ctx context.Context, ordering []core.DBOrdering, tx ...core.Tx) ([]contact.Message, error) {
	var rows []messageRow
	if err := repo.sel(ctx, tx, &rows, psql.Select("*").From("contact_messages").OrderBy(orderBy("", ordering)...)); err != nil {
		return nil, errors.Wrap(err, "selecting messages")
	}
	msgs := make([]contact.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.message())
	}
	return msgs, nil
}

func (repo *messageRepository) DeleteMessage(ctx context.Context, id string, tx ...core.Tx) error {
	if _, err := uuid.Parse(id); err != nil {
		return contact.ErrNotFound
	}
	n, err := repo.exec(ctx, tx, psql.Delete("contact_messages").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting message")
	}
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}
