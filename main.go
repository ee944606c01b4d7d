package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/studentos/chat_backend/config"
	"github.com/studentos/chat_backend/controllers"
	"github.com/studentos/chat_backend/database"
	"github.com/studentos/chat_backend/docs"
	"github.com/studentos/chat_backend/middleware"
	"github.com/studentos/chat_backend/relay"
	"github.com/studentos/chat_backend/store"
	"github.com/studentos/chat_backend/websocket"
)

// @title           StudentOS Chat API
// @version         1.0
// @description     Chat relay API for the StudentOS backend
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "chat_backend").Logger()

	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	logger.Info().Msg("database ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	st := store.NewGormStore(db)
	rel := relay.New(st, hub, logger, relay.Options{
		HistoryLimit: cfg.MessageHistoryLimit,
		MessageRate:  cfg.MessageRate,
		MessageBurst: cfg.MessageBurst,
	})

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port

	router := setupRouter(cfg, st, rel, hub, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	logger.Info().Str("port", cfg.Port).Msg("server running")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

// setupRouter wires the REST surface, the websocket endpoint, and the
// operational routes.
func setupRouter(cfg config.Config, st store.ChatStore, rel *relay.Relay, hub *websocket.Hub, logger zerolog.Logger) *gin.Engine {
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/healthz", controllers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chat := controllers.NewChatController(st, rel, logger)
	api := router.Group("/api/chat")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	{
		api.GET("/rooms", chat.GetRooms)
		api.POST("/rooms", chat.CreateRoom)
		api.POST("/private", chat.CreatePrivateChat)
		api.POST("/rooms/:roomId/members", chat.AddMember)
		api.GET("/messages/:roomId", chat.GetMessages)
	}

	wsHandler := websocket.NewHandler(hub, rel, cfg.JWTSecret, logger)
	router.GET("/ws", wsHandler.HandleConnection)

	return router
}
