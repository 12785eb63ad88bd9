// internal/models/song.go
package models

import (
	"fmt"
	"time"
)

// Song is the persisted record for one track. The scene list persists as an
// ordered array; consumers outside the engine read and write GeneratedPrompt
// only after the prompt assembler has produced it.
type Song struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Artist          string        `json:"artist,omitempty"`
	Duration        float64       `json:"duration"` // seconds
	SecondsPerScene float64       `json:"seconds_per_scene"`
	Transcript      string        `json:"transcript,omitempty"`
	Scenes          []SceneRecord `json:"scenes,omitempty"`
	AlbumCoverPath  string        `json:"album_cover_path,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	LastUpdated     time.Time     `json:"last_updated"`
}

// SceneImageName returns the canonical file name for a rendered scene image.
func SceneImageName(scene int) string {
	return fmt.Sprintf("scene_%03d.png", scene)
}
