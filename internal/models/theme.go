// internal/models/theme.go
package models

// ThemeContext is the read-only bundle of style, persona and theme parameters
// consumed by request building and prompt assembly. It carries no behavior;
// callers construct it once per generation run and never mutate it.
type ThemeContext struct {
	StyleText          string   `json:"style_text"`
	ThemePrefix        string   `json:"theme_prefix,omitempty"`
	PersonaName        string   `json:"persona_name,omitempty"`
	PersonaDescriptors []string `json:"persona_descriptors,omitempty"`
	PersonaPresencePct int      `json:"persona_presence_pct"` // target % of scenes featuring the persona
	SetupCount         int      `json:"setup_count"`          // bounded count of reusable location+lighting setups
	EmbedLyrics        bool     `json:"embed_lyrics"`
	EmbedKeywords      bool     `json:"embed_keywords"`
	Keywords           []string `json:"keywords,omitempty"`
}

// HasPersona reports whether a persona identity is configured at all.
func (t ThemeContext) HasPersona() bool {
	return t.PersonaName != "" || len(t.PersonaDescriptors) > 0
}

// StoryboardBatch is the unit of work sent to the narrative collaborator:
// an absolute scene range, the run total, the theme, and the lyric-to-window
// mapping slice covering that range.
type StoryboardBatch struct {
	StartScene  int              `json:"start_scene"`
	EndScene    int              `json:"end_scene"`
	TotalScenes int              `json:"total_scenes"`
	Theme       ThemeContext     `json:"theme"`
	Windows     []SceneWindow    `json:"windows"`
	WindowLyric map[int]string   `json:"window_lyrics"` // scene index -> mapped lyric text ("" is valid)
}

// Size returns the number of scenes the batch requests.
func (b StoryboardBatch) Size() int {
	return b.EndScene - b.StartScene + 1
}
