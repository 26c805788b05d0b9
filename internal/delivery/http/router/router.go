// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"userapi/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	RootHandler *handler.RootHandler
	UserHandler *handler.UserHandler
}

// router holds all the handlers that need to be registered.
type router struct {
	rootHandler *handler.RootHandler
	userHandler *handler.UserHandler
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		rootHandler: params.RootHandler,
		userHandler: params.UserHandler,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/", r.rootHandler.Welcome)
	e.GET("/health", handler.HealthCheck)

	usersGroup := e.Group("/users")
	{
		usersGroup.POST("", r.userHandler.CreateUser)
		usersGroup.GET("", r.userHandler.ListUsers)
		usersGroup.POST("/verify", r.userHandler.VerifyCredentials)
		usersGroup.GET("/:id", r.userHandler.GetUser)
		usersGroup.PATCH("/:id", r.userHandler.UpdateUser)
	}
}
