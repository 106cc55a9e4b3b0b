package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/course"
)

type courseApi struct {
	svc course.ServiceInterface
}

func registerCourseAPI(g *echo.Group, jwt, admin echo.MiddlewareFunc, deps *Deps) {
	api := courseApi{svc: deps.CourseSvc}

	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.POST("", api.create, jwt, admin)
	cg.PUT("/:id", api.update, jwt, admin)
	cg.DELETE("/:id", api.destroy, jwt, admin)
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"courses": courses})
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"course": crs})
}

func (api *courseApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	up, err := formUpload(ctx, course.FileRule.Field)
	if err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), claims.ID, data, up)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{
		"message":  "Cours créé avec succès !",
		"courseId": crs.ID,
		"course":   crs,
	})
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if isFormRequest(ctx) {
		params, err := ctx.FormParams()
		if err != nil {
			return errors.Wrap(err, "reading form")
		}
		form := formValues(params)
		data = course.UpdateCourse{
			Title:       form.str("title"),
			Description: form.str("description"),
			Content:     form.str("content"),
			ImageURL:    form.str("image_url"),
			Category:    form.str("category"),
			Level:       form.str("level"),
			Duration:    form.str("duration"),
		}
	} else if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}

	up, err := formUpload(ctx, course.FileRule.Field)
	if err != nil {
		return err
	}

	crs, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, up)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Cours mis à jour avec succès !", "course": crs})
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Cours supprimé avec succès !"})
}
