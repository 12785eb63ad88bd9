// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verseforge/storyboardmv/internal/api"
	"github.com/verseforge/storyboardmv/internal/app"
	"github.com/verseforge/storyboardmv/internal/config"
	"github.com/verseforge/storyboardmv/internal/utils"
)

func main() {
	// 1. Base configuration from environment and .env
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 2. Directory layout
	createDirectories(baseConfig)

	// 3. Persistent configuration overlay
	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	// 4. Rotating log file
	if err := utils.InitLogger(app.LogFilePath()); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger := utils.GetLogger()
	if config.GetCurrentConfig().DebugMode {
		logger.SetLogLevel(utils.DEBUG)
	}

	// 5. Services, in dependency order
	if err := app.InitServices(); err != nil {
		logger.Fatalf("failed to initialize services: %v", err)
	}

	// 6. Router
	router, err := api.SetupRouter()
	if err != nil {
		logger.Fatalf("failed to set up router: %v", err)
	}

	port := config.GetCurrentConfig().Port
	logger.Infof("storyboard engine listening on :%s", port)

	runWithGracefulShutdown(router, port)
}

func createDirectories(cfg *config.AppConfig) {
	dirs := []string{
		cfg.DataDir,
		cfg.LogDir,
		filepath.Join(cfg.DataDir, "songs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}
}

func runWithGracefulShutdown(router *gin.Engine, port string) {
	logger := utils.GetLogger()

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("forced shutdown: %v", err)
	}

	logger.Info("server stopped", nil)
}
