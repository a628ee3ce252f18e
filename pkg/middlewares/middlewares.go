package middlewares

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/utilities"
	"chatline/utilities/jwt"
)

type Middlewares struct {
	Cache *cache.Cache
}

func NewMiddlewares() *Middlewares {
	return &Middlewares{
		Cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (m *Middlewares) ValidateToken(ctx *gin.Context) {
	log := utilities.NewLogger("ValidateToken")

	tokenValue := ctx.GetHeader("Authorization")
	if len(tokenValue) == 0 || len(strings.Split(tokenValue, " ")) != 2 {
		ctx.AbortWithStatusJSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    "Missing Authorization in API header",
			},
		)
		return
	}

	token := strings.Split(tokenValue, " ")[1]

	handle := ctx.GetHeader("X-USER-HANDLE")
	if len(handle) == 0 {
		ctx.AbortWithStatusJSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    "Missing X-USER-HANDLE in API header",
			},
		)
		return
	}

	if handleParam := ctx.Param("handle"); handleParam != "" && handleParam != handle {
		ctx.AbortWithStatusJSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    "Handle parameter doesn't match with X-USER-HANDLE in API header",
			},
		)
		return
	}

	// verified tokens are cached so every request doesn't pay the
	// signature check
	cacheKey := handle + ":" + token
	if _, found := m.Cache.Get(cacheKey); found {
		ctx.Set(consts.UserHandle, handle)
		ctx.Set(consts.UserToken, token)
		ctx.Next()
		return
	}

	claims, err := jwt.VerifyJWT(handle, token)
	if err != nil {
		log.WithError(err).Errorf("jwt verification failed for user %s", handle)
		ctx.AbortWithStatusJSON(
			http.StatusUnauthorized, entities.ErrorResponse{
				StatusCode: http.StatusUnauthorized,
				Message:    "Authentication failed",
			},
		)
		return
	}

	m.Cache.Set(cacheKey, claims["uuid"], cache.DefaultExpiration)

	log.Debugf("User %s validated", handle)

	ctx.Set(consts.UserHandle, claims["handle"])
	ctx.Set(consts.UserToken, token)
	ctx.Set(consts.ClientUUID, claims["uuid"])

	ctx.Next()
}

func (m *Middlewares) VerifyWebsocketRequest(ctx *gin.Context, handle, token string) error {
	claims, err := jwt.VerifyJWT(handle, token)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	ctx.Set(consts.UserHandle, claims["handle"])
	ctx.Set(consts.UserToken, token)
	ctx.Set(consts.ClientUUID, claims["uuid"])

	return nil
}
