// Package contact stores the messages sent through the public contact form.
package contact

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
)

var ErrNotFound = core.NewNotFoundError("message")

type Message struct {
	ID        string      `json:"id"`
	Name      string      `json:"nom"`
	Email     string      `json:"email"`
	Phone     null.String `json:"tel"`
	Subject   null.String `json:"objet"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"` // UTC
}

type NewMessage struct {
	Name    string `json:"nom" validate:"required,max=150"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"tel" validate:"omitempty,phone,max=30"`
	Subject string `json:"objet" validate:"max=255"`
	Message string `json:"message" validate:"required"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.Phone = core.CleanString(nm.Phone)
	nm.Subject = core.CleanString(nm.Subject)
	nm.Message = core.CleanString(nm.Message)
	return validate.Struct(nm)
}

// Ordering allow-list for message listings.
var OrderingAllowList = core.OrderingAllowList{
	Columns: map[string]string{
		"nom":        "nom",
		"email":      "email",
		"created_at": "created_at",
	},
	Default: core.DBOrdering{Field: "created_at", Ascending: false},
}

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message, tx ...core.Tx) (Message, error)
		QueryMessages(ctx context.Context, ordering []core.DBOrdering, tx ...core.Tx) ([]Message, error)
		DeleteMessage(ctx context.Context, id string, tx ...core.Tx) error
	}

	ServiceInterface interface {
		Send(ctx context.Context, nm NewMessage) (Message, error)
		Query(ctx context.Context, ordering []core.DBOrdering) ([]Message, error)
		Delete(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Send(ctx context.Context, nm NewMessage) (Message, error) {
	return svc.repo.CreateMessage(ctx, Message{
		Name:      nm.Name,
		Email:     nm.Email,
		Phone:     null.NewString(nm.Phone, nm.Phone != ""),
		Subject:   null.NewString(nm.Subject, nm.Subject != ""),
		Message:   nm.Message,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) Query(ctx context.Context, ordering []core.DBOrdering) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, OrderingAllowList.Clean(ordering))
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteMessage(ctx, id)
}
