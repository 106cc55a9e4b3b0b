package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/announcement"
)

type announcementApi struct {
	svc announcement.ServiceInterface
}

func registerAnnouncementAPI(g *echo.Group, jwt, admin echo.MiddlewareFunc, deps *Deps) {
	api := announcementApi{svc: deps.AnnouncementSvc}

	ag := g.Group("/announcements")
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.POST("", api.create, jwt, admin)
	ag.PUT("/:id", api.update, jwt, admin)
	ag.DELETE("/:id", api.destroy, jwt, admin)
}

func (api *announcementApi) query(ctx echo.Context) error {
	anns, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if anns == nil {
		anns = []announcement.Announcement{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"announcements": anns})
}

func (api *announcementApi) retrieve(ctx echo.Context) error {
	ann, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting announcement")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"announcement": ann})
}

func (api *announcementApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data announcement.NewAnnouncement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	up, err := formUpload(ctx, announcement.TeacherImageRule.Field)
	if err != nil {
		return err
	}

	ann, err := api.svc.Create(ctx.Request().Context(), claims.ID, data, up)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{
		"message":        "Annonce créée avec succès",
		"announcementId": ann.ID,
		"announcement":   ann,
	})
}

func (api *announcementApi) update(ctx echo.Context) error {
	var data announcement.UpdateAnnouncement
	if isFormRequest(ctx) {
		params, err := ctx.FormParams()
		if err != nil {
			return errors.Wrap(err, "reading form")
		}
		form := formValues(params)
		isActive, err := form.boolean("is_active")
		if err != nil {
			return err
		}
		data = announcement.UpdateAnnouncement{
			Title:       form.str("title"),
			Description: form.str("description"),
			CourseID:    form.str("course_id"),
			TeacherName: form.str("teacher_name"),
			IsActive:    isActive,
		}
	} else if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAnnouncement")
	}

	up, err := formUpload(ctx, announcement.TeacherImageRule.Field)
	if err != nil {
		return err
	}

	ann, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, up)
	if err != nil {
		return errors.Wrap(err, "updating announcement")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Annonce mise à jour avec succès", "announcement": ann})
}

func (api *announcementApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Annonce supprimée avec succès"})
}
