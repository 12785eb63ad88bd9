// internal/api/handlers.go
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verseforge/storyboardmv/internal/config"
	apperrors "github.com/verseforge/storyboardmv/internal/errors"
	"github.com/verseforge/storyboardmv/internal/models"
	"github.com/verseforge/storyboardmv/internal/services"
	"github.com/verseforge/storyboardmv/internal/utils"
)

// Handler carries the service dependencies for all HTTP endpoints.
type Handler struct {
	songs      *services.SongService
	storyboard *services.StoryboardService
	collab     *services.CollabService
	progress   *services.ProgressService
	logger     *utils.Logger
}

// NewHandler wires the endpoint handler.
func NewHandler(songs *services.SongService, storyboard *services.StoryboardService,
	collab *services.CollabService, progress *services.ProgressService) *Handler {
	return &Handler{
		songs:      songs,
		storyboard: storyboard,
		collab:     collab,
		progress:   progress,
		logger:     utils.GetLogger(),
	}
}

// CreateSongRequest is the POST /api/songs payload.
type CreateSongRequest struct {
	Title           string  `json:"title" binding:"required"`
	Artist          string  `json:"artist"`
	Duration        float64 `json:"duration" binding:"required"`
	SecondsPerScene float64 `json:"seconds_per_scene"`
	Transcript      string  `json:"transcript"`
}

// CreateSong registers a new song record.
func (h *Handler) CreateSong(c *gin.Context) {
	var req CreateSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	if req.SecondsPerScene <= 0 {
		req.SecondsPerScene = config.GetCurrentConfig().Timing.SecondsPerScene
	}

	song, err := h.songs.CreateSong(req.Title, req.Artist, req.Transcript, req.Duration, req.SecondsPerScene)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, song)
}

// ListSongs returns all song ids.
func (h *Handler) ListSongs(c *gin.Context) {
	ids, err := h.songs.ListSongs()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"songs": ids})
}

// GetSong returns one song record.
func (h *Handler) GetSong(c *gin.Context) {
	song, err := h.songs.GetSong(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, song)
}

// AlignTranscript exposes the timing pass on its own: parsed lyric segments,
// scene windows and the per-window lyric mapping, without calling any
// collaborator.
func (h *Handler) AlignTranscript(c *gin.Context) {
	segments, windows, windowLyrics, err := h.storyboard.AlignTranscript(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"segments":      segments,
		"windows":       windows,
		"window_lyrics": windowLyrics,
	})
}

// GenerateRequest carries the theme parameters for storyboard generation and
// prompt assembly.
type GenerateRequest struct {
	Theme     models.ThemeContext `json:"theme"`
	PresetKey string              `json:"preset_key"`
}

// GenerateStoryboard runs the completion loop synchronously for one song.
func (h *Handler) GenerateStoryboard(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	scenes, err := h.storyboard.GenerateStoryboard(c.Request.Context(), c.Param("id"), req.Theme)
	if err != nil {
		// Scenes parsed before the failure are included for diagnosis
		h.logger.Warnf("storyboard generation failed for song %s: %v", c.Param("id"), err)
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"scenes": scenes})
}

// AssemblePrompts fills GeneratedPrompt for all scenes of a song.
func (h *Handler) AssemblePrompts(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	scenes, err := h.storyboard.AssemblePrompts(c.Request.Context(), c.Param("id"), req.Theme, req.PresetKey)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"scenes": scenes})
}

// GenerateImages starts the sequential image batch in the background and
// returns a task id for progress tracking and cancellation.
func (h *Handler) GenerateImages(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	songID := c.Param("id")
	if _, err := h.songs.GetSong(songID); err != nil {
		respondError(c, err)
		return
	}

	taskID := newTaskID()
	h.progress.CreateTracker(taskID)

	go func() {
		if err := h.storyboard.GenerateSceneImages(context.Background(), songID, req.Theme, req.PresetKey, taskID); err != nil {
			h.logger.Errorf("image generation task %s failed: %v", taskID, err)
		}
	}()

	respondAccepted(c, gin.H{"task_id": taskID}, "image generation started")
}

// CancelTask flips the cooperative cancellation flag for a running batch.
func (h *Handler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskID")
	if !h.storyboard.CancelTask(taskID) {
		respondError(c, apperrors.NewNotFoundError(fmt.Sprintf("no running task %s", taskID), nil))
		return
	}
	respondOK(c, gin.H{"task_id": taskID, "canceled": true})
}

// TaskStatus reports the current progress of a task.
func (h *Handler) TaskStatus(c *gin.Context) {
	tracker, exists := h.progress.GetTracker(c.Param("taskID"))
	if !exists {
		respondError(c, apperrors.NewNotFoundError("unknown task", nil))
		return
	}
	respondOK(c, gin.H{
		"task_id":  tracker.TaskID,
		"progress": tracker.Progress,
		"message":  tracker.Message,
		"status":   tracker.Status,
	})
}

// UpdateScenePrompt overwrites one scene's generated prompt. The only scene
// field writable from outside the engine.
func (h *Handler) UpdateScenePrompt(c *gin.Context) {
	scene, err := strconv.Atoi(c.Param("scene"))
	if err != nil || scene <= 0 {
		respondError(c, apperrors.NewValidationError("scene must be a positive integer", err))
		return
	}

	var req struct {
		GeneratedPrompt string `json:"generated_prompt" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	if err := h.songs.UpdateGeneratedPrompt(c.Param("id"), scene, req.GeneratedPrompt); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"scene": scene})
}

// Stats exposes the runtime counters and configured collaborators.
func (h *Handler) Stats(c *gin.Context) {
	respondOK(c, gin.H{
		"metrics":       utils.GetMetrics().Snapshot(),
		"collaborators": h.collab.Names(),
	})
}

// Health is a liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now()})
}

func newTaskID() string {
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("task_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}
