package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/atelier/core/notification"
	"github.com/trezcool/atelier/core/user"
)

type notificationApi struct {
	svc    notification.ServiceInterface
	usrSvc user.ServiceInterface
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc notification.ServiceInterface, usrSvc user.ServiceInterface) {
	api := notificationApi{
		svc:    svc,
		usrSvc: usrSvc,
	}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.list)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
}

// Handlers

func (api *notificationApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	inbox, err := api.svc.ListForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inbox)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkRead(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.MarkAllRead(ctx.Request().Context(), usr); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
