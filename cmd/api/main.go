package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botdeck/backend/internal/config"
	"botdeck/backend/internal/handler"
	"botdeck/backend/internal/lifecycle"
	"botdeck/backend/internal/middleware"
	"botdeck/backend/internal/notification"
	"botdeck/backend/internal/repository"
	"botdeck/backend/internal/service"
	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/jwt"
	"botdeck/backend/pkg/logger"
	"botdeck/backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.GetLogger()

	log.Info("Starting BotDeck backend...")
	log.Infof("Environment: %s", cfg.Server.Env)
	log.Infof("Trading service: %s", cfg.Upstream.APIURL)

	log.Info("Connecting to Redis...")
	redisClient, err := redis.New(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()
	log.Info("✓ Redis connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One notification queue per process; the notification service fans it out over Redis
	notificationService := service.NewNotificationService(redisClient)
	bus := notification.NewBus(
		notification.WithLogger(log.Component("notification_bus")),
		notification.WithDefaultDuration(cfg.Bots.NotificationDuration),
		notification.WithSink(notificationService),
	)

	botClient := botapi.NewClient(cfg.Upstream.APIURL, cfg.Upstream.Timeout)
	jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.SessionExpire)

	sessionRepo := repository.NewSessionRepository(redisClient)
	botListRepo := repository.NewBotListRepository(redisClient, cfg.Bots.ListCacheTTL)

	// Bot list, detail and dashboard share the lock so every view shows the same busy state
	botGuard := lifecycle.NewGuard()

	authService := service.NewAuthService(botClient, sessionRepo, jwtManager, cfg.Encryption.Key, notificationService)
	actionService := service.NewBotActionService(service.BotActionConfig{
		Client:        botClient,
		Cache:         botListRepo,
		Guard:         botGuard,
		Bus:           bus,
		Sessions:      authService,
		Notifier:      notificationService,
		ActionTimeout: cfg.Bots.ActionTimeout,
	})
	botService := service.NewBotService(botClient, botClient, botListRepo, botGuard, bus, authService)
	dashboardService := service.NewDashboardService(botClient, bus, authService, botGuard)
	exchangeService := service.NewExchangeService(botClient, bus, authService)
	settingsService := service.NewSettingsService(botClient, bus, authService)

	wsHub := service.NewWSHub(redisClient, bus, cfg.CORS.AllowedOrigins)
	go wsHub.Run(ctx)
	go wsHub.StartPubSubListener(ctx)

	refresher := service.NewDashboardRefresher(
		cfg.Bots.RefreshSchedule,
		wsHub,
		botClient,
		dashboardService,
		notificationService,
		authService,
		cfg.Upstream.Timeout,
	)
	if err := refresher.Start(); err != nil {
		log.Fatal("Failed to start dashboard refresher", err)
	}

	authHandler := handler.NewAuthHandler(authService)
	botHandler := handler.NewBotHandler(botService, actionService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	exchangeHandler := handler.NewExchangeHandler(exchangeService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	notificationHandler := handler.NewNotificationHandler(bus)

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log.Component("http"), "/health", "/ws"))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		hctx, hcancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer hcancel()

		if err := redisClient.Ping(hctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "Redis connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":        "healthy",
			"redis":         "connected",
			"notifications": len(bus.List()),
			"busy_bots":     len(botGuard.Locked()),
		})
	})

	requireAuth := middleware.AuthMiddleware(authService)
	router.GET("/ws", requireAuth, wsHub.ServeWS)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(redisClient, cfg.RateLimit.RequestsPerMinute))
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message": "pong",
				"time":    time.Now().Unix(),
			})
		})

		auth := v1.Group("/auth")
		{
			authLimit := middleware.AuthRateLimit(redisClient, cfg.RateLimit.AuthRequestsPerMinute)
			auth.POST("/register", authLimit, authHandler.Register)
			auth.POST("/login", authLimit, authHandler.Login)
			auth.POST("/logout", requireAuth, authHandler.Logout)
			auth.GET("/me", requireAuth, authHandler.GetMe)
		}

		protected := v1.Group("")
		protected.Use(requireAuth)
		{
			protected.GET("/dashboard", dashboardHandler.GetDashboard)

			bots := protected.Group("/bots")
			{
				bots.GET("", botHandler.ListBots)
				bots.POST("", botHandler.CreateBot)
				bots.GET("/new", botHandler.CreateOptions)
				bots.GET("/:id", botHandler.GetBot)
				bots.DELETE("/:id", botHandler.DeleteBot)
				bots.GET("/:id/controls", botHandler.GetControls)
				bots.POST("/:id/actions/:action", botHandler.PerformAction)
			}

			protected.GET("/strategies", botHandler.ListStrategies)
			protected.GET("/strategies/:id", botHandler.GetStrategy)

			exchange := protected.Group("/exchange/accounts")
			{
				exchange.GET("", exchangeHandler.List)
				exchange.POST("", exchangeHandler.Add)
				exchange.DELETE("/:id", exchangeHandler.Delete)
				exchange.POST("/:id/test", exchangeHandler.Test)
			}

			settings := protected.Group("/settings")
			{
				settings.PUT("/email", settingsHandler.UpdateEmail)
				settings.POST("/email/test", settingsHandler.TestEmail)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", notificationHandler.List)
				notifications.DELETE("/:id", notificationHandler.Dismiss)
			}
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Bots.ActionTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", err)
		}
	}()

	log.Info("✓ Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err)
	}

	refresher.Stop()
	bus.Close()
	notificationService.Stop()
	cancel()

	log.Info("Server exited")
}
