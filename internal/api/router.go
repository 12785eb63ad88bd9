// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/verseforge/storyboardmv/internal/config"
	"github.com/verseforge/storyboardmv/internal/di"
	"github.com/verseforge/storyboardmv/internal/services"
)

// SetupRouter builds the gin engine from the already-initialized service
// container. Services are fetched, never created here.
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()
	if cfg != nil && !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	container := di.GetContainer()

	songService, ok := container.Get("song").(*services.SongService)
	if !ok {
		return nil, fmt.Errorf("song service not initialized")
	}
	storyboardService, ok := container.Get("storyboard").(*services.StoryboardService)
	if !ok {
		return nil, fmt.Errorf("storyboard service not initialized")
	}
	collabService, ok := container.Get("collab").(*services.CollabService)
	if !ok {
		return nil, fmt.Errorf("collaborator service not initialized")
	}
	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("progress service not initialized")
	}

	handler := NewHandler(songService, storyboardService, collabService, progressService)

	router := gin.New()
	router.Use(RequestLogger(), Recovery())

	router.GET("/health", handler.Health)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/songs", handler.CreateSong)
		apiGroup.GET("/songs", handler.ListSongs)
		apiGroup.GET("/songs/:id", handler.GetSong)

		apiGroup.GET("/songs/:id/alignment", handler.AlignTranscript)
		apiGroup.POST("/songs/:id/storyboard", handler.GenerateStoryboard)
		apiGroup.POST("/songs/:id/prompts", handler.AssemblePrompts)
		apiGroup.POST("/songs/:id/images", handler.GenerateImages)
		apiGroup.PUT("/songs/:id/scenes/:scene/prompt", handler.UpdateScenePrompt)

		apiGroup.GET("/tasks/:taskID", handler.TaskStatus)
		apiGroup.POST("/tasks/:taskID/cancel", handler.CancelTask)

		apiGroup.GET("/stats", handler.Stats)
	}

	router.GET("/ws/progress/:taskID", handler.ProgressSocket)

	return router, nil
}
