// internal/app/app.go
package app

import (
	"fmt"
	"path/filepath"

	"github.com/verseforge/storyboardmv/internal/config"
	"github.com/verseforge/storyboardmv/internal/di"
	"github.com/verseforge/storyboardmv/internal/services"
	"github.com/verseforge/storyboardmv/internal/storage"
	"github.com/verseforge/storyboardmv/internal/utils"
	"github.com/verseforge/storyboardmv/internal/vocab"
)

// InitServices builds every service in dependency order and registers it in
// the DI container. Config must be initialized first.
func InitServices() error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("configuration not initialized")
	}

	logger := utils.GetLogger()
	container := di.GetContainer()

	// Storage first; everything persistent goes through it
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	container.Register("storage", fileStorage)

	// Vocabulary: compiled-in defaults, optionally extended from a YAML file
	vocabulary := vocab.Default()
	if cfg.VocabPath != "" {
		loaded, err := vocab.Load(cfg.VocabPath)
		if err != nil {
			logger.Warnf("failed to load vocabulary from %s, using defaults: %v", cfg.VocabPath, err)
		} else {
			vocabulary = loaded
		}
	}
	container.Register("vocab", vocabulary)

	collabService := services.NewCollabService()
	container.Register("collab", collabService)

	songService := services.NewSongService(fileStorage)
	container.Register("song", songService)

	auditService := services.NewAuditService(fileStorage, cfg.AuditEnabled)
	container.Register("audit", auditService)

	progressService := services.NewProgressService()
	container.Register("progress", progressService)

	storyboardService := services.NewStoryboardService(
		songService, collabService, auditService, progressService, vocabulary)
	container.Register("storyboard", storyboardService)

	logger.Info("services initialized", map[string]interface{}{
		"services":      len(container.GetNames()),
		"audit":         cfg.AuditEnabled,
		"collaborators": collabService.Names(),
	})

	return nil
}

// LogFilePath resolves the rotating log file location for the current config.
func LogFilePath() string {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return filepath.Join("logs", "storyboardmv.log")
	}
	return filepath.Join(cfg.LogDir, "storyboardmv.log")
}
