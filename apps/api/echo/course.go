package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/stats"
	"github.com/trezcool/darasa/core/user"
	exportsvc "github.com/trezcool/darasa/services/export"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type courseApi struct {
	courses       *course.Service
	assignments   *assignment.Service
	announcements *announcement.Service
	stats         *stats.Service
	validate      *validator.Validate
	metrics       *Metrics
}

func registerCourseAPI(g *echo.Group, jwt, actor echo.MiddlewareFunc, api *courseApi) {
	cg := g.Group("/courses", jwt, actor)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/available", api.available)

	// detail endpoints
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
	cg.POST("/:id/enroll", api.enroll)
	cg.GET("/:id/students", api.students)
	cg.GET("/:id/assignments", api.queryAssignments)
	cg.GET("/:id/announcements", api.queryAnnouncements)
	cg.POST("/:id/announcements", api.postAnnouncement)
	cg.GET("/:id/gradebook.xlsx", api.gradebook)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.courses.VisibleTo(ctx.Request().Context(), actor, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) available(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	courses, err := api.courses.Available(ctx.Request().Context(), actor, queryLimit(ctx))
	if err != nil {
		return errors.Wrap(err, "querying available courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.courses.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	api.metrics.event(eventCourseCreated)
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	detail, err := api.courses.Detail(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *courseApi) update(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.courses.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.courses.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	c, status, err := api.courses.Enroll(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}

	code := http.StatusOK
	if status == course.Enrolled {
		code = http.StatusCreated
		api.metrics.event(eventEnrolled)
	}
	return ctx.JSON(code, EnrollResponse{Status: status.String(), Course: c})
}

func (api *courseApi) students(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	students, err := api.courses.Students(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	if students == nil {
		students = []user.User{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *courseApi) queryAssignments(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	as, err := api.assignments.ForCourse(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing course assignments")
	}
	return ctx.JSON(http.StatusOK, assignment.NewViews(as, core.Now()))
}

func (api *courseApi) queryAnnouncements(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	ans, err := api.announcements.ForCourse(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing announcements")
	}
	if ans == nil {
		ans = []announcement.Announcement{}
	}
	return ctx.JSON(http.StatusOK, ans)
}

func (api *courseApi) postAnnouncement(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data announcement.NewAnnouncement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	an, err := api.announcements.Post(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "posting announcement")
	}
	api.metrics.event(eventAnnouncementPosted)
	return ctx.JSON(http.StatusCreated, an)
}

func (api *courseApi) gradebook(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	gb, err := api.stats.Gradebook(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building gradebook")
	}
	buf, name, err := exportsvc.Gradebook(gb)
	if err != nil {
		return errors.Wrap(err, "exporting gradebook")
	}
	api.metrics.event(eventGradebookExported)
	return attachment(ctx, xlsxMIME, name, buf.Bytes())
}

// attachment sends data as a file download.
func attachment(ctx echo.Context, contentType, name string, data []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return ctx.Blob(http.StatusOK, contentType, data)
}

type EnrollResponse struct {
	Status string        `json:"status"`
	Course course.Course `json:"course"`
}
