package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/atelier/core/project"
	"github.com/trezcool/atelier/core/user"
)

type projectApi struct {
	svc      project.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerProjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc project.ServiceInterface, usrSvc user.ServiceInterface, validate *validator.Validate) {
	api := projectApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	pg := g.Group("/projects", jwt)
	pg.POST("", api.create)
	pg.GET("", api.query)
	pg.GET("/review-queue", api.reviewQueue, teacherMiddleware())
	pg.GET("/on-time", api.onTime, teacherMiddleware())

	dg := pg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/request-approval", api.requestApproval)
	dg.POST("/evaluate", api.evaluate, teacherMiddleware())
	dg.POST("/deliveries", api.addDelivery)
	dg.GET("/deliveries", api.queryDeliveries)
	dg.GET("/checklist", api.queryChecklist)

	ag := g.Group("/admin", jwt, teacherMiddleware())
	ag.POST("/fix-progress", api.fixProgress)
}

// Handlers

func (api *projectApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data project.NewProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prj, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, prj)
}

func (api *projectApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	projects, err := api.svc.Query(ctx.Request().Context(), usr, ordering.Orderings...)
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) reviewQueue(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	projects, err := api.svc.QueryUnderReview(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) onTime(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	projects, err := api.svc.QueryOnTime(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	prj, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	data, err := project.DecodeUpdateProject(ctx.Request().Body)
	if err != nil {
		return err
	}
	if data.IsEmpty() {
		prj, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, prj)
	}

	prj, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) requestApproval(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	prj, err := api.svc.RequestApproval(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) evaluate(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data project.EvaluateProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EvaluateProject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	evaluated, err := api.svc.Evaluate(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, evaluated)
}

func (api *projectApi) addDelivery(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data project.NewDelivery
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDelivery")
	}
	data.ProjectID = ctx.Param("id")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.AddDelivery(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *projectApi) queryDeliveries(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	deliveries, err := api.svc.Deliveries(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if deliveries == nil {
		deliveries = []project.Delivery{}
	}
	return ctx.JSON(http.StatusOK, deliveries)
}

func (api *projectApi) queryChecklist(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	items, err := api.svc.Checklist(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []project.ChecklistItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *projectApi) fixProgress(ctx echo.Context) error {
	n, err := api.svc.FixFinalizedProgress(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, FixProgressResponse{Fixed: n})
}

type FixProgressResponse struct {
	Fixed int `json:"fixed"`
}
