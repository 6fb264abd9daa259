package echoapi

import (
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/submission"
)

type submissionApi struct {
	svc      *submission.Service
	validate *validator.Validate
	metrics  *Metrics
}

func registerSubmissionAPI(g *echo.Group, jwt, actor echo.MiddlewareFunc, api *submissionApi) {
	sg := g.Group("/submissions", jwt, actor)
	sg.GET("/:id", api.retrieve)
	sg.GET("/:id/file", api.download)
	sg.POST("/:id/grade", api.grade)
}

// Handlers

func (api *submissionApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *submissionApi) download(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	rc, blob, name, err := api.svc.OpenFile(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening submission file")
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if disposition == "" {
		disposition = "attachment"
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	contentType := blob.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return ctx.Stream(http.StatusOK, contentType, rc)
}

func (api *submissionApi) grade(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data submission.Grade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Grade")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	view, err := api.svc.Grade(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	api.metrics.event(eventSubmissionGraded)
	return ctx.JSON(http.StatusOK, view)
}
