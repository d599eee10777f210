// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/handler"
	"github.com/iliyamo/taskboard/internal/middleware"
	"github.com/iliyamo/taskboard/internal/model"
)

// Handlers groups everything the route table needs.
type Handlers struct {
	Auth       *handler.AuthHandler
	Users      *handler.UserHandler
	Tasks      *handler.TaskHandler
	Kanban     *handler.KanbanHandler
	Statistics *handler.StatisticsHandler
}

// Register mounts the API.  Public auth endpoints live under /v1/auth;
// everything else under /v1 requires an access token.  extra runs on
// the protected group after authentication, which is where the rate
// limiter and response cache belong since both key on the caller.
func Register(e *echo.Echo, h Handlers, parser middleware.PrincipalParser, extra ...echo.MiddlewareFunc) {
	if e.Validator == nil {
		e.Validator = handler.NewValidator()
	}

	e.GET("/healthz", handler.Health)

	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	jwt := middleware.JWTAuth(parser)
	auth.GET("/me", h.Auth.Me, jwt)
	auth.POST("/logout-all", h.Auth.LogoutAll, jwt)

	v1 := e.Group("/v1", jwt)
	v1.Use(extra...)
	registerUsers(v1, h.Users)
	registerTasks(v1, h.Tasks)
	registerKanban(v1, h.Kanban)
	registerStatistics(v1, h.Statistics)
}

func registerUsers(g *echo.Group, h *handler.UserHandler) {
	g.GET("/users", h.List)
	g.POST("/users", h.Create)
	g.GET("/users/:id", h.Get)
	g.PUT("/users/:id", h.Update)
	g.PATCH("/users/:id", h.Update)
	g.DELETE("/users/:id", h.Delete)
}

func registerTasks(g *echo.Group, h *handler.TaskHandler) {
	g.GET("/tasks", h.List)
	g.POST("/tasks", h.Create)
	g.GET("/tasks/:id", h.Get)
	g.PUT("/tasks/:id", h.Update)
	g.PATCH("/tasks/:id", h.Update)
	g.DELETE("/tasks/:id", h.Delete)
}

func registerKanban(g *echo.Group, h *handler.KanbanHandler) {
	k := g.Group("/kanban")
	k.GET("/columns", h.Columns)
	k.POST("/tasks/:id/move", h.MoveTask)

	admin := middleware.RequireRole(model.RoleAdmin)
	k.POST("/columns", h.CreateColumn, admin)
	k.PUT("/columns/:id", h.UpdateColumn, admin)
	k.DELETE("/columns/:id", h.DeleteColumn, admin)
}

func registerStatistics(g *echo.Group, h *handler.StatisticsHandler) {
	g.GET("/statistics/user/:id", h.User)
	g.GET("/statistics/all", h.All, middleware.RequireRole(model.RoleAdmin))
}
