// internal/services/audit_service.go
package services

import (
	"fmt"
	"time"

	"github.com/verseforge/storyboardmv/internal/models"
	"github.com/verseforge/storyboardmv/internal/storage"
	"github.com/verseforge/storyboardmv/internal/storyboard"
	"github.com/verseforge/storyboardmv/internal/utils"
)

// AuditRecord is one append-only request or response artifact. Written for
// offline debugging, never read back by the engine.
type AuditRecord struct {
	Timestamp       string         `json:"timestamp"`
	SongID          string         `json:"song_id"`
	Title           string         `json:"title"`
	SecondsPerScene float64        `json:"seconds_per_scene"`
	Metadata        AuditMetadata  `json:"metadata"`
	Prompt          string         `json:"prompt,omitempty"`
	RawResponse     string         `json:"raw_response,omitempty"`
}

// AuditMetadata describes which part of the run produced the artifact.
type AuditMetadata struct {
	Mode       string `json:"mode"`        // "single_shot" or "continuation"
	BatchRange string `json:"batch_range"` // "start-end"
}

// AuditService writes collaborator request/response pairs under a song's
// audit directory. Disabled instances drop everything silently.
type AuditService struct {
	storage *storage.FileStorage
	enabled bool
	logger  *utils.Logger
}

// NewAuditService creates an audit service; enabled follows configuration.
func NewAuditService(fs *storage.FileStorage, enabled bool) *AuditService {
	return &AuditService{
		storage: fs,
		enabled: enabled,
		logger:  utils.GetLogger(),
	}
}

// Enabled reports whether artifacts are being written.
func (s *AuditService) Enabled() bool { return s.enabled }

// Hook returns a storyboard audit hook bound to one song, or nil when
// auditing is disabled.
func (s *AuditService) Hook(song *models.Song) storyboard.AuditHook {
	if !s.enabled || song == nil {
		return nil
	}

	return func(kind string, batch models.StoryboardBatch, payload string) {
		now := time.Now()
		record := AuditRecord{
			Timestamp:       now.Format(time.RFC3339),
			SongID:          song.ID,
			Title:           song.Title,
			SecondsPerScene: song.SecondsPerScene,
			Metadata: AuditMetadata{
				Mode:       batchMode(batch),
				BatchRange: fmt.Sprintf("%d-%d", batch.StartScene, batch.EndScene),
			},
		}
		switch kind {
		case "request":
			record.Prompt = payload
		default:
			record.RawResponse = payload
		}

		name := fmt.Sprintf("%s_%s.json", now.Format("20060102_150405.000"), kind)
		dir := fmt.Sprintf("songs/%s/audit", song.ID)
		if err := s.storage.SaveJSONFile(dir, name, record); err != nil {
			// Audit failures never interrupt a generation run.
			s.logger.Warnf("failed to write audit artifact %s: %v", name, err)
		}
	}
}

// SaveSceneSummary writes the accepted scene list in its text form next to
// the request/response artifacts. Written once per completed run.
func (s *AuditService) SaveSceneSummary(song *models.Song, records []models.SceneRecord) {
	if !s.enabled || song == nil || len(records) == 0 {
		return
	}

	name := fmt.Sprintf("%s_scenes.txt", time.Now().Format("20060102_150405.000"))
	dir := fmt.Sprintf("songs/%s/audit", song.ID)
	if err := s.storage.SaveFile(dir, name, []byte(storyboard.SerializeScenes(records))); err != nil {
		s.logger.Warnf("failed to write scene summary %s: %v", name, err)
	}
}

func batchMode(batch models.StoryboardBatch) string {
	if batch.StartScene == 1 && batch.EndScene == batch.TotalScenes {
		return "single_shot"
	}
	return "continuation"
}
