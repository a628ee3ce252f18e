package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatline/config"
	"chatline/pkg/entities"
	"chatline/pkg/middlewares"
	"chatline/pkg/repo"
	"chatline/pkg/usecases"
	"chatline/utilities"
)

type UserController struct {
	router      *gin.RouterGroup
	useCases    usecases.UserUseCaseImply
	middleWares *middlewares.Middlewares
}

func NewUserController(
	router *gin.RouterGroup, userUseCase usecases.UserUseCaseImply, middleWare *middlewares.Middlewares,
) *UserController {
	return &UserController{
		router:      router,
		useCases:    userUseCase,
		middleWares: middleWare,
	}
}

func (u *UserController) InitRoutes() {
	v1 := u.router.Group(config.GetConfig().Server.APIVersion)
	v1.POST("/user/signup", u.Signup)
	v1.POST("/user/:handle/attach", u.Attach)

	verifyToken := v1.Group("", u.middleWares.ValidateToken)
	{
		verifyToken.GET("/peers/:peer", u.GetPeer)
	}
}

func (u *UserController) Signup(ctx *gin.Context) {
	log := utilities.NewLogger("Signup")
	log.Info("Received Signup request")

	var req entities.SignupRequest
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

	res, err := u.useCases.Signup(ctx, &req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecases.ErrInvalidHandle) {
			status = http.StatusBadRequest
		}
		if errors.Is(err, repo.ErrUsernameTaken) {
			status = http.StatusConflict
		}
		ctx.JSON(
			status, entities.ErrorResponse{
				StatusCode: status,
				Error:      "signup failed",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully signed up",
			Data:       res,
		},
	)
}

func (u *UserController) Attach(ctx *gin.Context) {
	log := utilities.NewLogger("Attach")
	log.Info("Received Attach request")

	handle := ctx.Param("handle")
	res, err := u.useCases.Attach(ctx, handle)
	if err != nil {
		ctx.JSON(
			http.StatusUnauthorized, entities.ErrorResponse{
				StatusCode: http.StatusUnauthorized,
				Error:      "attach failed",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully attached",
			Data:       res,
		},
	)
}

func (u *UserController) GetPeer(ctx *gin.Context) {
	log := utilities.NewLogger("GetPeer")

	handle := ctx.Param("peer")
	peer, err := u.useCases.GetPeer(ctx, handle)
	if err != nil {
		log.WithError(err).Errorf("failed to fetch peer %s", handle)
		ctx.JSON(
			http.StatusNotFound, entities.ErrorResponse{
				StatusCode: http.StatusNotFound,
				Error:      "peer not found",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully fetched peer",
			Data:       peer,
		},
	)
}
