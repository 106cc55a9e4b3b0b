package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/contact"
	"github.com/trezcool/elimu/core/report"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/services/export"
)

type adminApi struct {
	users    user.ServiceInterface
	messages contact.ServiceInterface
	reports  report.ServiceInterface
	validate *validator.Validate
}

// registerAdminAPI expects g to be guarded by the JWT and admin middlewares.
func registerAdminAPI(g *echo.Group, deps *Deps) {
	api := adminApi{
		users:    deps.UserSvc,
		messages: deps.ContactSvc,
		reports:  deps.ReportSvc,
		validate: deps.Validate,
	}

	g.GET("/stats", api.stats)
	g.GET("/distinct-levels", api.levels)

	g.GET("/messages", api.queryMessages)
	g.GET("/messages/export", api.exportMessages)
	g.DELETE("/messages/:id", api.destroyMessage)

	g.GET("/users", api.queryUsers)
	g.GET("/users/export", api.exportUsers)
	g.GET("/users/:id", api.retrieveUser)
	g.PUT("/users/:id/role", api.updateRole)
	g.DELETE("/users/:id", api.destroyUser)
}

func (api *adminApi) stats(ctx echo.Context) error {
	stats, err := api.reports.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Statistiques récupérées avec succès", "stats": stats})
}

func (api *adminApi) levels(ctx echo.Context) error {
	levels, err := api.users.Levels(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing levels")
	}
	if levels == nil {
		levels = []string{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Niveaux récupérés avec succès", "levels": levels})
}

func (api *adminApi) queryMessages(ctx echo.Context) error {
	msgs, err := api.listMessages(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Messages récupérés avec succès", "messages": msgs})
}

func (api *adminApi) exportMessages(ctx echo.Context) error {
	msgs, err := api.listMessages(ctx)
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	if err = export.Messages(buf, msgs); err != nil {
		return errors.Wrap(err, "exporting messages")
	}
	return sendWorkbook(ctx, "messages", buf)
}

func (api *adminApi) listMessages(ctx echo.Context) ([]contact.Message, error) {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	msgs, err := api.messages.Query(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	if msgs == nil {
		msgs = []contact.Message{}
	}
	return msgs, nil
}

func (api *adminApi) destroyMessage(ctx echo.Context) error {
	if err := api.messages.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Message supprimé avec succès"})
}

func (api *adminApi) queryUsers(ctx echo.Context) error {
	users, err := api.listUsers(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Utilisateurs récupérés avec succès", "users": users})
}

func (api *adminApi) exportUsers(ctx echo.Context) error {
	users, err := api.listUsers(ctx)
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	if err = export.Users(buf, users); err != nil {
		return errors.Wrap(err, "exporting users")
	}
	return sendWorkbook(ctx, "users", buf)
}

func (api *adminApi) listUsers(ctx echo.Context) ([]user.User, error) {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.users.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return users, nil
}

func (api *adminApi) retrieveUser(ctx echo.Context) error {
	usr, err := api.users.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Utilisateur récupéré avec succès", "user": usr})
}

func (api *adminApi) updateRole(ctx echo.Context) error {
	var data user.UpdateRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRole")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.users.UpdateRole(ctx.Request().Context(), ctx.Param("id"), data.Role); err != nil {
		return errors.Wrap(err, "updating role")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Rôle utilisateur mis à jour avec succès"})
}

func (api *adminApi) destroyUser(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.users.Delete(ctx.Request().Context(), claims.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Utilisateur supprimé avec succès"})
}

func sendWorkbook(ctx echo.Context, name string, buf *bytes.Buffer) error {
	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", export.Filename(name, time.Now())),
	)
	return ctx.Blob(http.StatusOK, export.ContentType, buf.Bytes())
}
