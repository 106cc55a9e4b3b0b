package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/contact"
)

type contactApi struct {
	svc      contact.ServiceInterface
	validate *validator.Validate
}

func registerContactAPI(g *echo.Group, deps *Deps) {
	api := contactApi{svc: deps.ContactSvc, validate: deps.Validate}
	g.POST("/contact", api.send)
}

func (api *contactApi) send(ctx echo.Context) error {
	var data contact.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.Send(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"message": "Message envoyé avec succès !", "messageId": msg.ID})
}
