package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatline/config"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/pkg/middlewares"
	"chatline/pkg/usecases"
	"chatline/utilities"
)

type CallController struct {
	router      *gin.RouterGroup
	useCases    usecases.CallUseCaseImply
	middleWares *middlewares.Middlewares
}

func NewCallController(
	router *gin.RouterGroup, callUseCase usecases.CallUseCaseImply, middleWare *middlewares.Middlewares,
) *CallController {
	return &CallController{
		router:      router,
		useCases:    callUseCase,
		middleWares: middleWare,
	}
}

func (c *CallController) InitRoutes() {
	v1 := c.router.Group(config.GetConfig().Server.APIVersion)

	verifyToken := v1.Group("", c.middleWares.ValidateToken)
	{
		verifyToken.GET("/call", c.GetCurrent)
		verifyToken.POST("/call/user/:user", c.Initiate)
		verifyToken.POST("/call/accept", c.Accept)
		verifyToken.POST("/call/reject", c.Reject)
		verifyToken.POST("/call/end", c.End)
		verifyToken.POST("/call/candidates", c.SendCandidate)
	}
}

func (c *CallController) GetCurrent(ctx *gin.Context) {
	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully fetched call state",
			Data:       c.useCases.Current(),
		},
	)
}

func (c *CallController) Initiate(ctx *gin.Context) {
	log := utilities.NewLogger("InitiateCall")
	log.Info("Received InitiateCall request")

	callee := ctx.Param("user")
	var req struct {
		Type  string          `json:"type"`
		Offer json.RawMessage `json:"offer"`
	}
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Error:      "invalid request body",
				Message:    err.Error(),
			},
		)
		return
	}
	if req.Type == "" {
		req.Type = consts.CallTypeAudio
	}

	session, err := c.useCases.Initiate(ctx, callee, req.Type, req.Offer)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, usecases.ErrPeerBlocked):
			status = http.StatusForbidden
		case errors.Is(err, usecases.ErrPeerOffline), errors.Is(err, usecases.ErrCallInProgress):
			status = http.StatusConflict
		}
		ctx.JSON(
			status, entities.ErrorResponse{
				StatusCode: status,
				Error:      "failed to initiate call",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully initiated call",
			Data:       session,
		},
	)
}

func (c *CallController) Accept(ctx *gin.Context) {
	var req struct {
		Answer json.RawMessage `json:"answer"`
	}
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Error:      "invalid request body",
				Message:    err.Error(),
			},
		)
		return
	}

	if err := c.useCases.Accept(ctx, req.Answer); err != nil {
		c.callError(ctx, "failed to accept call", err)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully accepted call",
		},
	)
}

func (c *CallController) Reject(ctx *gin.Context) {
	if err := c.useCases.Reject(ctx); err != nil {
		c.callError(ctx, "failed to reject call", err)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully rejected call",
		},
	)
}

func (c *CallController) End(ctx *gin.Context) {
	if err := c.useCases.End(ctx); err != nil {
		c.callError(ctx, "failed to end call", err)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully ended call",
		},
	)
}

func (c *CallController) SendCandidate(ctx *gin.Context) {
	var req struct {
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Error:      "invalid request body",
				Message:    err.Error(),
			},
		)
		return
	}

	if err := c.useCases.SendCandidate(ctx, req.Candidate); err != nil {
		c.callError(ctx, "failed to send candidate", err)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully sent candidate",
		},
	)
}

func (c *CallController) callError(ctx *gin.Context, what string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, usecases.ErrNoCall) || errors.Is(err, usecases.ErrNotRinging) {
		status = http.StatusConflict
	}
	ctx.JSON(
		status, entities.ErrorResponse{
			StatusCode: status,
			Error:      what,
			Message:    err.Error(),
		},
	)
}
