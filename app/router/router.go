// Package router wires the gin engine's route table to the admin
// handler.
package router

import (
	"proxysharing/app/handler"
	"proxysharing/app/middleware"

	"github.com/gin-gonic/gin"
)

// Router owns the handler set exposed over HTTP.
type Router struct {
	adminHandler *handler.AdminHandler
}

// NewRouter creates a Router over adminHandler.
func NewRouter(adminHandler *handler.AdminHandler) *Router {
	return &Router{adminHandler: adminHandler}
}

// Setup registers middleware and routes on engine.
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())

	admin := engine.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	{
		admin.GET("/specs/:specId/seats", r.adminHandler.GetSeats)
		admin.GET("/specs/:specId/pending", r.adminHandler.GetPending)
		admin.POST("/proxies/:proxyId/stop", r.adminHandler.StopProxy)
	}
}
