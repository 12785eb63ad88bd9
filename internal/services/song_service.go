// internal/services/song_service.go
package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	apperrors "github.com/verseforge/storyboardmv/internal/errors"
	"github.com/verseforge/storyboardmv/internal/models"
	"github.com/verseforge/storyboardmv/internal/storage"
)

const songFileName = "song.json"

// SongService persists song records as songs/<id>/song.json. Every overwrite
// of an existing record is preceded by a timestamped backup.
type SongService struct {
	storage *storage.FileStorage
}

// NewSongService creates a song service over the shared file storage.
func NewSongService(fs *storage.FileStorage) *SongService {
	return &SongService{storage: fs}
}

func songDir(id string) string {
	return fmt.Sprintf("songs/%s", id)
}

// CreateSong validates and persists a new song record.
func (s *SongService) CreateSong(title, artist, transcript string, duration, secondsPerScene float64) (*models.Song, error) {
	if title == "" {
		return nil, apperrors.NewValidationError("song title is required", nil)
	}
	if duration <= 0 {
		return nil, apperrors.NewValidationError("song duration must be positive", nil)
	}
	if secondsPerScene <= 0 {
		return nil, apperrors.NewValidationError("seconds per scene must be positive", nil)
	}

	now := time.Now()
	song := &models.Song{
		ID:              newSongID(now),
		Title:           title,
		Artist:          artist,
		Duration:        duration,
		SecondsPerScene: secondsPerScene,
		Transcript:      transcript,
		CreatedAt:       now,
		LastUpdated:     now,
	}

	if err := s.storage.SaveJSONFile(songDir(song.ID), songFileName, song); err != nil {
		return nil, fmt.Errorf("failed to persist song: %w", err)
	}

	return song, nil
}

// GetSong loads a song record by id.
func (s *SongService) GetSong(id string) (*models.Song, error) {
	var song models.Song
	if err := s.storage.LoadJSONFile(songDir(id), songFileName, &song); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("song %s not found", id), err)
		}
		return nil, fmt.Errorf("failed to load song %s: %w", id, err)
	}
	return &song, nil
}

// SaveSong overwrites a song record, backing up the previous version first.
func (s *SongService) SaveSong(song *models.Song) error {
	if song == nil || song.ID == "" {
		return apperrors.NewValidationError("song record has no id", nil)
	}

	if _, err := s.storage.BackupFile(songDir(song.ID), songFileName); err != nil {
		return err
	}

	song.LastUpdated = time.Now()
	return s.storage.SaveJSONFile(songDir(song.ID), songFileName, song)
}

// ListSongs returns all persisted song ids.
func (s *SongService) ListSongs() ([]string, error) {
	return s.storage.ListDirs("songs")
}

// UpdateGeneratedPrompt overwrites one scene's assembled prompt. This is the
// only scene field external consumers may update in place.
func (s *SongService) UpdateGeneratedPrompt(songID string, scene int, generated string) error {
	song, err := s.GetSong(songID)
	if err != nil {
		return err
	}

	for i := range song.Scenes {
		if song.Scenes[i].Scene == scene {
			song.Scenes[i].GeneratedPrompt = generated
			return s.SaveSong(song)
		}
	}
	return apperrors.NewNotFoundError(fmt.Sprintf("scene %d not found in song %s", scene, songID), nil)
}

// SceneImagePath resolves where a rendered scene image lives for a song.
func (s *SongService) SceneImagePath(songID string, scene int) string {
	return s.storage.FilePath(songDir(songID)+"/images", models.SceneImageName(scene))
}

// SaveSceneImage persists rendered image bytes for one scene.
func (s *SongService) SaveSceneImage(songID string, scene int, data []byte) error {
	return s.storage.SaveFile(songDir(songID)+"/images", models.SceneImageName(scene), data)
}

// SceneImageExists reports whether a scene image has been rendered.
func (s *SongService) SceneImageExists(songID string, scene int) bool {
	return s.storage.FileExists(songDir(songID)+"/images", models.SceneImageName(scene))
}

func newSongID(now time.Time) string {
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s_%s", now.Format("20060102_150405"), hex.EncodeToString(suffix))
}
