package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/atelier/core/feedback"
	"github.com/trezcool/atelier/core/user"
)

type feedbackApi struct {
	svc      feedback.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerFeedbackAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc feedback.ServiceInterface, usrSvc user.ServiceInterface, validate *validator.Validate) {
	api := feedbackApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	pg := g.Group("/projects/:id/feedback", jwt)
	pg.POST("", api.create, teacherMiddleware())
	pg.GET("", api.queryByProject)

	fg := g.Group("/feedback/:id", jwt)
	fg.POST("/replies", api.reply)
}

// Handlers

func (api *feedbackApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data feedback.NewFeedback
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeedback")
	}
	data.ProjectID = ctx.Param("id")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	fb, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, fb)
}

func (api *feedbackApi) queryByProject(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	fbs, err := api.svc.QueryByProject(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if fbs == nil {
		fbs = []feedback.Feedback{}
	}
	return ctx.JSON(http.StatusOK, fbs)
}

func (api *feedbackApi) reply(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data feedback.NewReply
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReply")
	}
	data.FeedbackID = ctx.Param("id")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rp, err := api.svc.Reply(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rp)
}
