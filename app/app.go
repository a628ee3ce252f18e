package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chatline/config"
	"chatline/pkg/cache"
	controllersLib "chatline/pkg/controllers"
	"chatline/pkg/middlewares"
	repoLib "chatline/pkg/repo"
	"chatline/pkg/repo/driver/cursor"
	"chatline/pkg/repo/driver/medium"
	"chatline/pkg/repo/driver/store"
	"chatline/pkg/usecases"
	"chatline/utilities"
)

func initStore(ctx context.Context, conf *config.ChatlineConfModel) store.Client {
	log := utilities.NewLogger("initStore")

	if conf.Store.Driver == "memory" {
		log.Info("Using in-memory store")
		return store.NewMemoryStore()
	}

	log.Info("Initialising realtime database store")
	client, err := store.NewFirebaseStore(ctx, conf)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise store")
	}
	return client
}

func Run() {
	ctx := context.Background()
	ctx, cancelFn := context.WithCancel(ctx)

	// init the env config
	conf, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("unable to initialize environment variables %s", err.Error())
	}

	// Initialise the logger
	utilities.InitLogger(conf.LogLevel)
	log := utilities.NewLogger("run")

	user := conf.LocalHandle
	if user == "" {
		log.Fatal("local_handle is not configured")
	}

	log.Info("Initialising store")
	db := initStore(ctx, conf)
	defer db.Close()

	log.Info("Initialising cursor store")
	cursors, err := cursor.Open(conf.Cursor.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open cursor store")
	}
	defer cursors.Close()

	log.Info("Initialising cache")
	cache.Init()

	// here initalizing the router
	router := initRouter(conf)
	if conf.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	api := router.Group(conf.Server.APIPrefix)

	gatewayWS := medium.NewWebSocket(true)
	mediaClient := medium.NewMediaClient(conf)

	var (
		presenceUseCases usecases.PresenceUseCaseImply
		contactUseCases  usecases.ContactUseCaseImply
		unreadUseCases   usecases.UnreadUseCaseImply
		callUseCases     usecases.CallUseCaseImply
	)
	{
		// repo initialization
		chatRepo := repoLib.NewChatRepo(db, conf)
		userRepo := repoLib.NewUserRepo(db, conf)
		callRepo := repoLib.NewCallRepo(db, conf)

		// initializing usecases
		unreadUseCases = usecases.NewUnreadUseCases(user, conf, chatRepo, cursors, gatewayWS)
		chatUseCases := usecases.NewChatUseCases(user, conf, chatRepo, unreadUseCases, mediaClient, gatewayWS)
		presenceUseCases = usecases.NewPresenceUseCases(user, conf, userRepo, gatewayWS)
		contactUseCases = usecases.NewContactUseCases(user, conf, userRepo, chatRepo, unreadUseCases, gatewayWS)
		callUseCases = usecases.NewCallUseCases(user, conf, callRepo, presenceUseCases, gatewayWS)
		userUseCases := usecases.NewUserUseCases(conf, userRepo)

		// initializing middleware
		m := middlewares.NewMiddlewares()

		// initializing controllers
		chatControllers := controllersLib.NewChatController(api, chatUseCases, contactUseCases, unreadUseCases, gatewayWS, m)
		callControllers := controllersLib.NewCallController(api, callUseCases, m)
		userControllers := controllersLib.NewUserController(api, userUseCases, m)
		controllers := controllersLib.NewController(api, m)

		// init the routes
		chatControllers.InitRoutes(ctx)
		callControllers.InitRoutes()
		userControllers.InitRoutes()
		controllers.InitRoutes()
	}

	log.Info("Announcing presence")
	if err := presenceUseCases.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to announce presence")
	}

	log.Info("Starting watchers")
	contactUseCases.Start(ctx)
	callUseCases.Start(ctx)

	// run the app
	launch(ctx, cancelFn, router)

	// orderly teardown: watchers first, then the offline write
	callUseCases.Stop()
	contactUseCases.Stop()
	unreadUseCases.Stop()

	offCtx, offCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer offCancel()
	if err := presenceUseCases.Stop(offCtx); err != nil {
		log.WithError(err).Warn("failed to write offline presence")
	}
}

func initRouter(conf *config.ChatlineConfModel) *gin.Engine {

	router := gin.Default()
	gin.SetMode(gin.DebugMode)

	router.Use(
		cors.New(
			cors.Config{
				AllowOrigins: []string{"*"},
				AllowMethods: []string{"PUT", "PATCH", "POST", "DELETE", "GET", "OPTIONS"},
				AllowHeaders: []string{
					"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization", "accept",
					"origin", "Cache-Control", "X-USER-HANDLE", "HOST",
				},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			},
		),
	)

	mode := conf.Mode
	if mode == "stage" || mode == "local" {
		router.GET("/debug/pprof/*profile", gin.WrapF(pprof.Index))
	}

	router.Use(gzip.Gzip(gzip.DefaultCompression))

	return router
}

// launch
func launch(ctx context.Context, cancelFn context.CancelFunc, router *gin.Engine) {
	log := utilities.NewLogger("launch")
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.GetConfig().Server.Port),
		Handler: router,
	}

	go func() {
		// service connections
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	fmt.Println("Server listening in...", config.GetConfig().Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Println("Shutdown Server ...")
	cancelFn()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	log.Println("Server exiting")
}
