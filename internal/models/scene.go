// internal/models/scene.go
package models

import (
	"sort"
)

// SceneRecord is one storyboard scene as parsed from a collaborator reply.
// All fields except GeneratedPrompt are append-only for a given scene number
// within one generation run; GeneratedPrompt is filled later by the prompt
// assembler and may be overwritten.
type SceneRecord struct {
	Scene           int    `json:"scene"`
	Timestamp       string `json:"timestamp"` // "M:SS"
	Duration        string `json:"duration"`  // "Ns"
	Lyrics          string `json:"lyrics,omitempty"`
	Prompt          string `json:"prompt"`
	GeneratedPrompt string `json:"generated_prompt,omitempty"`
}

// SceneSet is the in-progress scene collection for one generation run,
// keyed by scene number. Owned by a single worker; no locking under the
// sequential model.
type SceneSet struct {
	records map[int]SceneRecord
}

// NewSceneSet creates an empty scene collection.
func NewSceneSet() *SceneSet {
	return &SceneSet{records: make(map[int]SceneRecord)}
}

// Merge adds records to the set. Already-present scene numbers keep their
// first-accepted record; scene fields are append-only within a run.
func (s *SceneSet) Merge(records []SceneRecord) {
	for _, rec := range records {
		if rec.Scene <= 0 {
			continue
		}
		if _, exists := s.records[rec.Scene]; exists {
			continue
		}
		s.records[rec.Scene] = rec
	}
}

// MaxScene returns the highest scene index observed, or 0 when empty.
func (s *SceneSet) MaxScene() int {
	max := 0
	for n := range s.records {
		if n > max {
			max = n
		}
	}
	return max
}

// Len returns the number of accepted scenes.
func (s *SceneSet) Len() int {
	return len(s.records)
}

// Get returns the record for a scene number.
func (s *SceneSet) Get(scene int) (SceneRecord, bool) {
	rec, ok := s.records[scene]
	return rec, ok
}

// Ordered returns the records sorted by scene number.
func (s *SceneSet) Ordered() []SceneRecord {
	out := make([]SceneRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scene < out[j].Scene })
	return out
}

// Gaps returns scene numbers in [1, limit] that are absent from the set.
// Interior gaps are reported, never backfilled.
func (s *SceneSet) Gaps(limit int) []int {
	var missing []int
	for n := 1; n <= limit; n++ {
		if _, ok := s.records[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}
