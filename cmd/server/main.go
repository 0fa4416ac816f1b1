// Package main runs the classroom polling server: HTTP surface plus the
// realtime WebSocket protocol, with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classpulse/backend/config"
	"github.com/classpulse/backend/internal/middleware"
	"github.com/classpulse/backend/internal/poll"
	"github.com/classpulse/backend/internal/realtime"
	"github.com/classpulse/backend/internal/sessions"
	"github.com/classpulse/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	engine := poll.NewEngine(logger)
	registry := poll.NewRegistry()
	hub := realtime.NewHub(logger)

	// The clock's expiry callback closes over directory and gateway; both are
	// assigned right below, before the engine processes any event.
	var (
		directory *poll.Directory
		gateway   *realtime.Gateway
	)
	clock := poll.NewClock(clockwork.NewRealClock(), func(sessionID, questionID string) {
		engine.Do(func() {
			gateway.Execute(directory.ExpireQuestion(sessionID, questionID))
		})
	})
	directory = poll.NewDirectory(registry, clock, logger)
	gateway = realtime.NewGateway(engine, directory, hub, logger)

	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()
	go engine.Run(engineCtx)

	sessionHandler := sessions.NewHandler(engine, directory, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"ok": true}) })

	// Session creation convenience endpoint
	router.POST("/sessions", sessionHandler.Create)
	router.GET("/sessions/:id", sessionHandler.Get)

	// WebSocket
	router.GET("/ws", realtime.ServeWs(hub, gateway, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	engineCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
