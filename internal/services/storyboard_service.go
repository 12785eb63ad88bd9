// internal/services/storyboard_service.go
package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/verseforge/storyboardmv/internal/config"
	"github.com/verseforge/storyboardmv/internal/continuity"
	apperrors "github.com/verseforge/storyboardmv/internal/errors"
	"github.com/verseforge/storyboardmv/internal/llm"
	"github.com/verseforge/storyboardmv/internal/models"
	"github.com/verseforge/storyboardmv/internal/prompt"
	"github.com/verseforge/storyboardmv/internal/storyboard"
	"github.com/verseforge/storyboardmv/internal/timing"
	"github.com/verseforge/storyboardmv/internal/utils"
	"github.com/verseforge/storyboardmv/internal/vocab"
)

// StoryboardService drives the full pipeline for one song: transcript
// alignment, storyboard generation, prompt assembly and sequential scene
// image rendering. One logical worker per run; the only cross-goroutine
// state is the cooperative cancellation flag.
type StoryboardService struct {
	songs    *SongService
	collab   *CollabService
	audit    *AuditService
	progress *ProgressService
	vocab    *vocab.Vocabulary
	logger   *utils.Logger

	cancelMu sync.Mutex
	cancels  map[string]*atomic.Bool
}

// NewStoryboardService wires the pipeline service.
func NewStoryboardService(songs *SongService, collab *CollabService, audit *AuditService,
	progress *ProgressService, v *vocab.Vocabulary) *StoryboardService {
	if v == nil {
		v = vocab.Default()
	}
	return &StoryboardService{
		songs:    songs,
		collab:   collab,
		audit:    audit,
		progress: progress,
		vocab:    v,
		logger:   utils.GetLogger(),
		cancels:  make(map[string]*atomic.Bool),
	}
}

// AlignTranscript parses a song's transcript into timed segments and maps
// them onto scene windows. Returned without persisting; GenerateStoryboard
// repeats the same computation internally.
func (s *StoryboardService) AlignTranscript(songID string) ([]models.LyricSegment, []models.SceneWindow, map[int]string, error) {
	song, err := s.songs.GetSong(songID)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg := config.GetCurrentConfig()
	sps := s.secondsPerScene(song, cfg)

	segments := timing.NewParser(s.vocab, cfg.Timing.SparseWordLimit).Parse(song.Transcript, song.Duration, sps)
	windows := timing.Windows(song.Duration, sps)
	if len(windows) == 0 {
		return nil, nil, nil, apperrors.NewValidationError(
			fmt.Sprintf("song %s yields no scene windows (duration %.1fs)", songID, song.Duration), nil)
	}

	return segments, windows, timing.MapLyrics(windows, segments, s.vocab), nil
}

// GenerateStoryboard runs the completion loop for a song and persists the
// resulting scene list. On a fatal loop error the scenes parsed so far are
// still persisted and returned alongside the error.
func (s *StoryboardService) GenerateStoryboard(ctx context.Context, songID string, theme models.ThemeContext) ([]models.SceneRecord, error) {
	song, err := s.songs.GetSong(songID)
	if err != nil {
		return nil, err
	}

	segments, windows, windowLyrics, err := s.AlignTranscript(songID)
	if err != nil {
		return nil, err
	}
	s.logger.Infof("aligned %d lyric segments onto %d scene windows for song %s",
		len(segments), len(windows), songID)

	cfg := config.GetCurrentConfig()
	run := &storyboard.Run{
		Theme:           theme,
		Windows:         windows,
		WindowLyrics:    windowLyrics,
		TotalScenes:     len(windows),
		SecondsPerScene: s.secondsPerScene(song, cfg),
	}

	loop := storyboard.NewCompletionLoop(
		storyboard.NewRequestBuilder(s.vocab),
		s.collab,
		storyboard.RetryPolicy{BatchSize: cfg.Retry.BatchSize, MaxIterations: cfg.Retry.MaxIterations},
		s.audit.Hook(song),
	)

	scenes, loopErr := loop.Execute(ctx, run)

	// Partial results stay usable: persist whatever was accepted.
	song.Scenes = scenes.Ordered()
	if loopErr == nil {
		s.audit.SaveSceneSummary(song, song.Scenes)
	}
	if len(song.Scenes) > 0 {
		if saveErr := s.songs.SaveSong(song); saveErr != nil {
			s.logger.Errorf("failed to persist scenes for song %s: %v", songID, saveErr)
			if loopErr == nil {
				return song.Scenes, saveErr
			}
		}
	}

	return song.Scenes, loopErr
}

// AssemblePrompts fills GeneratedPrompt for every scene of a song and
// persists the result. Continuity hints are not applied here; they depend on
// rendered images and are injected during image generation.
func (s *StoryboardService) AssemblePrompts(ctx context.Context, songID string, theme models.ThemeContext, presetKey string) ([]models.SceneRecord, error) {
	song, err := s.songs.GetSong(songID)
	if err != nil {
		return nil, err
	}
	if len(song.Scenes) == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("song %s has no storyboard yet", songID), nil)
	}

	asm := prompt.NewAssembler(s.vocab, s.collab)
	for i := range song.Scenes {
		scene := &song.Scenes[i]
		generated, err := asm.Assemble(ctx, prompt.Input{
			Scene:     scene.Scene,
			PresetKey: presetKey,
			Body:      scene.Prompt,
			Lyrics:    scene.Lyrics,
			Theme:     theme,
		})
		if err != nil {
			return nil, err
		}
		scene.GeneratedPrompt = generated
	}

	if err := s.songs.SaveSong(song); err != nil {
		return nil, err
	}
	return song.Scenes, nil
}

// GenerateSceneImages renders every scene image in order, one collaborator
// call at a time. Cancellation is cooperative and checked between scenes,
// never mid-call. Progress is published through the tracker for taskID.
func (s *StoryboardService) GenerateSceneImages(ctx context.Context, songID string, theme models.ThemeContext, presetKey, taskID string) error {
	song, err := s.songs.GetSong(songID)
	if err != nil {
		return err
	}
	if len(song.Scenes) == 0 {
		return apperrors.NewValidationError(fmt.Sprintf("song %s has no storyboard yet", songID), nil)
	}
	if !s.collab.HasImage() {
		return apperrors.NewCollaboratorError("image collaborator not configured", nil)
	}

	tracker := s.progress.CreateTracker(taskID)
	flag := s.registerCancel(taskID)
	defer s.unregisterCancel(taskID)

	cfg := config.GetCurrentConfig()
	engine := continuity.NewEngine(s.collab, continuity.Options{
		SimilarityThreshold: cfg.Continuity.SimilarityThreshold,
		MinPromptLength:     cfg.Continuity.MinPromptLength,
		ReferenceMaxEdge:    cfg.Continuity.ReferenceMaxEdge,
		TempDir:             filepath.Join(os.TempDir(), "storyboardmv"),
	})
	asm := prompt.NewAssembler(s.vocab, s.collab)

	total := len(song.Scenes)
	prevAssembled := ""

	for i := range song.Scenes {
		scene := &song.Scenes[i]

		if flag.Load() {
			tracker.Cancel(fmt.Sprintf("canceled before scene %d", scene.Scene))
			s.saveQuietly(song)
			return apperrors.NewCanceledError(fmt.Sprintf(
				"image generation canceled at scene %d of %d", scene.Scene, total))
		}
		if err := ctx.Err(); err != nil {
			tracker.Cancel(fmt.Sprintf("context canceled before scene %d", scene.Scene))
			s.saveQuietly(song)
			return apperrors.NewCanceledError(fmt.Sprintf(
				"image generation interrupted at scene %d of %d", scene.Scene, total))
		}

		hint := s.continuityHint(ctx, engine, song, theme, i, prevAssembled)

		generated, err := asm.Assemble(ctx, prompt.Input{
			Scene:          scene.Scene,
			PresetKey:      presetKey,
			Body:           scene.Prompt,
			Lyrics:         scene.Lyrics,
			ContinuityHint: hint,
			Theme:          theme,
		})
		if err != nil {
			tracker.Fail(fmt.Sprintf("prompt assembly failed for scene %d", scene.Scene))
			s.saveQuietly(song)
			return err
		}

		utils.GetMetrics().Inc(utils.MetricImageCalls)
		data, err := s.collab.SynthesizeImage(ctx, llm.ImageRequest{Prompt: generated, Size: "1024x1024"})
		if err != nil {
			tracker.Fail(fmt.Sprintf("image synthesis failed for scene %d", scene.Scene))
			s.saveQuietly(song)
			return apperrors.NewCollaboratorError(
				fmt.Sprintf("image collaborator failed for scene %d", scene.Scene), err)
		}

		if err := s.songs.SaveSceneImage(song.ID, scene.Scene, data); err != nil {
			tracker.Fail(fmt.Sprintf("failed to store image for scene %d", scene.Scene))
			s.saveQuietly(song)
			return err
		}

		scene.GeneratedPrompt = generated
		prevAssembled = generated

		tracker.UpdateProgress((i+1)*100/total, fmt.Sprintf("rendered scene %d of %d", scene.Scene, total))
	}

	if err := s.songs.SaveSong(song); err != nil {
		tracker.Fail("failed to persist song record")
		return err
	}

	tracker.Complete(fmt.Sprintf("rendered %d scenes", total))
	return nil
}

// CancelTask flips the cancellation flag for a running image batch. Returns
// false when no such task is running.
func (s *StoryboardService) CancelTask(taskID string) bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()

	flag, exists := s.cancels[taskID]
	if !exists {
		return false
	}
	flag.Store(true)
	return true
}

// continuityHint fetches the reference hint for one scene: the album cover
// for scene 1, the previous scene's rendered image otherwise. Hints are best
// effort; a failed lookup logs and degrades to no hint.
func (s *StoryboardService) continuityHint(ctx context.Context, engine *continuity.Engine,
	song *models.Song, theme models.ThemeContext, index int, prevAssembled string) string {
	if !s.collab.HasVision() {
		return ""
	}

	if index == 0 {
		hint, err := engine.CoverHint(ctx, song.AlbumCoverPath)
		if err != nil {
			s.logger.Warnf("album cover hint failed for song %s: %v", song.ID, err)
			return ""
		}
		return hint
	}

	prevScene := song.Scenes[index-1].Scene
	current := strings.TrimSpace(theme.ThemePrefix + " " + song.Scenes[index].Prompt)
	hint, err := engine.Hint(ctx, current, prevAssembled, s.songs.SceneImagePath(song.ID, prevScene))
	if err != nil {
		s.logger.Warnf("continuity hint failed for song %s scene %d: %v",
			song.ID, song.Scenes[index].Scene, err)
		return ""
	}
	return hint
}

func (s *StoryboardService) secondsPerScene(song *models.Song, cfg *config.AppConfig) float64 {
	if song.SecondsPerScene > 0 {
		return song.SecondsPerScene
	}
	return cfg.Timing.SecondsPerScene
}

func (s *StoryboardService) registerCancel(taskID string) *atomic.Bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()

	flag := &atomic.Bool{}
	s.cancels[taskID] = flag
	return flag
}

func (s *StoryboardService) unregisterCancel(taskID string) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	delete(s.cancels, taskID)
}

// saveQuietly persists partial progress without masking the primary error.
func (s *StoryboardService) saveQuietly(song *models.Song) {
	if err := s.songs.SaveSong(song); err != nil {
		s.logger.Errorf("failed to persist partial progress for song %s: %v", song.ID, err)
	}
}
