package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatline/config"
	"chatline/pkg/entities"
	"chatline/pkg/middlewares"
)

type Controller struct {
	router      *gin.RouterGroup
	middleWares *middlewares.Middlewares
}

// NewController
func NewController(router *gin.RouterGroup, middleWare *middlewares.Middlewares) *Controller {
	return &Controller{
		router:      router,
		middleWares: middleWare,
	}
}

// InitRoutes
func (c *Controller) InitRoutes() {
	v1 := c.router.Group(config.GetConfig().Server.APIVersion)
	{
		v1.GET("/", c.RootHandler)
		v1.GET("/health", c.HealthHandler)
	}
}

func (c *Controller) RootHandler(ctx *gin.Context) {
	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Welcome to the Chatline engine API! Please refer to the documentation for information on available endpoints.",
		},
	)
}

// HealthHandler
func (c *Controller) HealthHandler(ctx *gin.Context) {
	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Heath check ok",
		},
	)
}
