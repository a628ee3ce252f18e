package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatline/config"
	"chatline/pkg/cache"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/pkg/middlewares"
	"chatline/pkg/repo/driver/medium"
	"chatline/pkg/usecases"
	"chatline/utilities"
)

type ChatController struct {
	router      *gin.RouterGroup
	useCases    usecases.ChatUseCaseImply
	contacts    usecases.ContactUseCaseImply
	unread      usecases.UnreadUseCaseImply
	middleWares *middlewares.Middlewares
	ws          *medium.Socket
}

func NewChatController(
	router *gin.RouterGroup, chatUseCase usecases.ChatUseCaseImply,
	contacts usecases.ContactUseCaseImply, unread usecases.UnreadUseCaseImply,
	ws *medium.Socket, middleWare *middlewares.Middlewares,
) *ChatController {
	return &ChatController{
		router:      router,
		useCases:    chatUseCase,
		contacts:    contacts,
		unread:      unread,
		middleWares: middleWare,
		ws:          ws,
	}
}

// InitRoutes initializes the routes for the ChatController.
func (c *ChatController) InitRoutes(ctx context.Context) {
	v1 := c.router.Group(config.GetConfig().Server.APIVersion)
	v1.GET("/ws/chat", c.WebsocketHandler)

	verifyToken := v1.Group("", c.middleWares.ValidateToken)
	{
		verifyToken.GET("/chat/contacts", c.GetContacts)
		verifyToken.POST("/chat/:target/activate", c.ActivateChat)
		verifyToken.POST("/chat/deactivate", c.DeactivateChat)
		verifyToken.POST("/chat/send", c.Send)
		verifyToken.POST("/chat/:target/clear", c.ClearChat)
		verifyToken.POST("/chat/:target/read", c.MarkRead)
		verifyToken.GET("/chat/unread", c.GetUnread)
		verifyToken.POST("/chat/user/:user/block", c.BlockUser)
		verifyToken.POST("/chat/user/:user/unblock", c.UnblockUser)
		verifyToken.GET("/chat/blocked", c.GetBlockedUsers)
		verifyToken.POST("/chat/group", c.CreateGroup)
	}

	go c.useCases.CommandProcessor(ctx)
}

func (c *ChatController) GetContacts(ctx *gin.Context) {
	log := utilities.NewLogger("GetContacts")
	log.Debug("Received GetContacts request")

	rows := c.contacts.ContactRows(ctx.Query("q"), ctx.Query("filter"))
	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully fetched contacts",
			Data:       rows,
		},
	)
}

func (c *ChatController) ActivateChat(ctx *gin.Context) {
	log := utilities.NewLogger("ActivateChat")

	target := ctx.Param("target")
	kind := ctx.Query("kind")
	if kind == "" {
		kind = consts.ChatKindIndividual
	}

	if err := c.useCases.SetActiveChat(ctx, target, kind); err != nil {
		log.WithError(err).Errorf("failed to activate chat %s", target)
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Error:      "failed to activate chat",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully activated chat",
		},
	)
}

func (c *ChatController) DeactivateChat(ctx *gin.Context) {
	c.useCases.DeactivateChat()
	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully deactivated chat",
		},
	)
}

// Send accepts either a JSON body for text messages or a multipart form
// with a file part for attachments.
func (c *ChatController) Send(ctx *gin.Context) {
	log := utilities.NewLogger("Send")
	log.Debug("Received Send request")

	var (
		resp *entities.Response
		err  error
	)

	if file, header, ferr := ctx.Request.FormFile("file"); ferr == nil {
		defer file.Close()
		msg := &entities.Message{
			Type:     ctx.PostForm("type"),
			FileName: header.Filename,
			Message:  ctx.PostForm("message"),
		}
		if msg.Type == "" {
			msg.Type = consts.MsgTypeFile
		}
		resp, err = c.useCases.Send(ctx, msg, file, header.Size)
	} else {
		var msg entities.Message
		if berr := ctx.BindJSON(&msg); berr != nil {
			ctx.JSON(
				http.StatusBadRequest, entities.ErrorResponse{
					StatusCode: http.StatusBadRequest,
					Error:      "invalid request body",
					Message:    berr.Error(),
				},
			)
			return
		}
		resp, err = c.useCases.Send(ctx, &msg, nil, 0)
	}

	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, usecases.ErrNoActiveChat), errors.Is(err, usecases.ErrEmptyMessage):
			status = http.StatusBadRequest
		case errors.Is(err, usecases.ErrPeerBlocked):
			status = http.StatusForbidden
		}
		ctx.JSON(
			status, entities.ErrorResponse{
				StatusCode: status,
				Error:      "failed to send message",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

func (c *ChatController) ClearChat(ctx *gin.Context) {
	log := utilities.NewLogger("ClearChat")

	target := ctx.Param("target")
	resp, err := c.useCases.ClearChat(ctx, target)
	if err != nil {
		log.WithError(err).Errorf("failed to clear chat %s", target)
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: http.StatusInternalServerError,
				Error:      "failed to clear chat",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

func (c *ChatController) MarkRead(ctx *gin.Context) {
	log := utilities.NewLogger("MarkRead")

	target := ctx.Param("target")
	if err := c.unread.MarkRead(ctx, target); err != nil {
		log.WithError(err).Errorf("failed to mark %s read", target)
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: http.StatusInternalServerError,
				Error:      "failed to mark chat read",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully marked chat read",
		},
	)
}

func (c *ChatController) GetUnread(ctx *gin.Context) {
	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully fetched unread totals",
			Data: map[string]interface{}{
				"total": c.unread.Total(),
			},
		},
	)
}

func (c *ChatController) BlockUser(ctx *gin.Context) {
	log := utilities.NewLogger("BlockUser")

	target := ctx.Param("user")
	resp, err := c.useCases.Block(ctx, target)
	if err != nil {
		log.WithError(err).Errorf("failed to block %s", target)
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: http.StatusInternalServerError,
				Error:      "failed to block user",
				Message:    err.Error(),
			},
		)
		return
	}

	c.contacts.Refresh(ctx)
	ctx.JSON(http.StatusOK, resp)
}

func (c *ChatController) UnblockUser(ctx *gin.Context) {
	log := utilities.NewLogger("UnblockUser")

	target := ctx.Param("user")
	resp, err := c.useCases.Unblock(ctx, target)
	if err != nil {
		log.WithError(err).Errorf("failed to unblock %s", target)
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: http.StatusInternalServerError,
				Error:      "failed to unblock user",
				Message:    err.Error(),
			},
		)
		return
	}

	c.contacts.Refresh(ctx)
	ctx.JSON(http.StatusOK, resp)
}

func (c *ChatController) GetBlockedUsers(ctx *gin.Context) {
	user := ctx.GetString(consts.UserHandle)
	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully fetched blocked users",
			Data:       cache.BlockedUserCache.List(user),
		},
	)
}

func (c *ChatController) CreateGroup(ctx *gin.Context) {
	log := utilities.NewLogger("CreateGroup")

	var req struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if err := ctx.BindJSON(&req); err != nil || req.Name == "" {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Error:      "invalid request body",
				Message:    "group name is required",
			},
		)
		return
	}

	info, err := c.useCases.CreateGroup(ctx, req.Name, req.Members)
	if err != nil {
		log.WithError(err).Errorf("failed to create group %s", req.Name)
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: http.StatusInternalServerError,
				Error:      "failed to create group",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: http.StatusOK,
			Message:    "Successfully created group",
			Data:       info,
		},
	)
}

func (c *ChatController) WebsocketHandler(ctx *gin.Context) {
	log := utilities.NewLogger("WebsocketHandler")

	handle := ctx.Query("handle")
	token := ctx.Query("token")

	if err := c.middleWares.VerifyWebsocketRequest(ctx, handle, token); err != nil {
		ctx.JSON(
			http.StatusUnauthorized, entities.Response{
				StatusCode: http.StatusUnauthorized,
				Message:    err.Error(),
			},
		)
		return
	}

	upgrader := medium.Upgrade()
	wsConn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.WithError(err).Error("websocket upgrade failed")
		ctx.JSON(
			http.StatusBadRequest, entities.Response{
				StatusCode: http.StatusBadRequest,
				Message:    "websocket upgrade failed",
			},
		)
		return
	}

	c.ws.Add(handle, wsConn)
}
