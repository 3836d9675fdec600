package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

type notificationApi struct {
	svc    *notification.Service
	usrSvc *user.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *notification.Service, usrSvc *user.Service) {
	api := notificationApi{svc: svc, usrSvc: usrSvc}

	ng := g.Group("/notifications", jwt)
	ng.POST("", api.create, adminMiddleware())
	ng.GET("", api.list)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
}

// Handlers

func (api *notificationApi) create(ctx echo.Context) error {
	var data notification.NewNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	n, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notification")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *notificationApi) list(ctx echo.Context) error {
	usr, err := contextUserFromClaims(ctx)
	if err != nil {
		return err
	}

	notifs, err := api.svc.ListFor(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := contextUserFromClaims(ctx)
	if err != nil {
		return err
	}

	n, err := api.svc.MarkRead(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		switch errors.Cause(err) {
		case notification.ErrNotFound, notification.ErrNotVisible:
			return err
		}
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := contextUserFromClaims(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.MarkAllReadFor(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "marking all notifications read")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "All notifications marked as read."})
}
