package echoapi

import (
	"bytes"
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/authz"
	"github.com/trezcool/darasa/core/submission"
	exportsvc "github.com/trezcool/darasa/services/export"
	storagesvc "github.com/trezcool/darasa/services/storage"
)

const icsMIME = "text/calendar; charset=utf-8"

// submissionTypes are the files students may attach to a submission.
var submissionTypes = []string{
	"application/pdf",
	"application/zip",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.oasis.opendocument.text",
	"text/plain",
	"text/csv",
	"text/markdown",
	"image/jpeg",
	"image/png",
}

type assignmentApi struct {
	assignments *assignment.Service
	submissions *submission.Service
	files       core.FileStorage
	validate    *validator.Validate
	metrics     *Metrics
	conf        *core.Config
	logger      core.Logger
}

func registerAssignmentAPI(g *echo.Group, jwt, actor echo.MiddlewareFunc, api *assignmentApi) {
	ag := g.Group("/assignments", jwt, actor)
	ag.POST("", api.create)
	ag.GET("/calendar.ics", api.calendar)

	// detail endpoints
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.POST("/:id/publish", api.publish)
	ag.POST("/:id/close", api.close)
	ag.POST("/:id/submit", api.submit)
	ag.GET("/:id/submission", api.mySubmission)
	ag.GET("/:id/submissions", api.querySubmissions)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data assignment.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.assignments.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	api.metrics.event(eventAssignmentCreated)
	return ctx.JSON(http.StatusCreated, assignment.NewView(a, core.Now()))
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	a, err := api.assignments.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, assignment.NewView(a, core.Now()))
}

func (api *assignmentApi) update(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data assignment.UpdateAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.assignments.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, assignment.NewView(a, core.Now()))
}

func (api *assignmentApi) publish(ctx echo.Context) error {
	return api.transition(ctx, api.assignments.Publish)
}

func (api *assignmentApi) close(ctx echo.Context) error {
	return api.transition(ctx, api.assignments.Close)
}

func (api *assignmentApi) transition(
	ctx echo.Context,
	fn func(ctx context.Context, actor authz.Actor, id string) (assignment.Assignment, error),
) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	a, err := fn(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "changing assignment status")
	}
	return ctx.JSON(http.StatusOK, assignment.NewView(a, core.Now()))
}

// submit accepts either a JSON body or a multipart form carrying `content` and an optional `file`.
func (api *assignmentApi) submit(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	id := ctx.Param("id")

	var data submission.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	var fileKey string
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		// no upload unless the actor may submit
		if _, err = api.assignments.Authorize(rctx, actor, authz.SubmitAssignment, id); err != nil {
			return errors.Wrap(err, "authorizing submission")
		}
		up, err := readUpload(ctx, "file", api.conf.Server.MaxUploadSize, submissionTypes...)
		if err != nil {
			return err
		}
		if up != nil {
			blob, err := api.files.Save(
				rctx,
				storagesvc.NewKey(path.Join("submissions", id), up.MIME.Extension()),
				bytes.NewReader(up.Data),
				up.MIME.String(),
			)
			if err != nil {
				return errors.Wrap(err, "saving submission file")
			}
			fileKey = blob.Key
			data.File = &submission.File{Key: blob.Key, Name: path.Base(up.Name)}
		}
	}

	receipt, err := api.submissions.Submit(rctx, actor, id, data)
	if err != nil {
		if fileKey != "" {
			if dErr := api.files.Delete(rctx, fileKey); dErr != nil {
				api.logger.Warn("deleting orphan submission file", dErr)
			}
		}
		return errors.Wrap(err, "submitting")
	}

	code := http.StatusOK
	if receipt.Created {
		code = http.StatusCreated
		api.metrics.event(eventSubmissionCreated)
	} else {
		api.metrics.event(eventSubmissionUpdated)
	}
	return ctx.JSON(code, receipt)
}

func (api *assignmentApi) mySubmission(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	view, err := api.submissions.Mine(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting own submission")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	views, err := api.submissions.ForAssignment(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if views == nil {
		views = []submission.View{}
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *assignmentApi) calendar(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	as, err := api.assignments.Calendar(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "getting calendar assignments")
	}
	buf := exportsvc.Calendar(api.conf.AppName, api.conf.FrontendBaseURL, as)
	return attachment(ctx, icsMIME, "deadlines.ics", buf.Bytes())
}
