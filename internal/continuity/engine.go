// internal/continuity/engine.go
package continuity

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/verseforge/storyboardmv/internal/errors"
	"github.com/verseforge/storyboardmv/internal/llm"
	"github.com/verseforge/storyboardmv/internal/utils"
)

// VisionAnalyzer is the narrow contract the engine needs from the
// vision-analysis collaborator.
type VisionAnalyzer interface {
	AnalyzeImages(ctx context.Context, req llm.VisionRequest) (*llm.TextResponse, error)
}

// Options carry the continuity tunables. The source constants (0.55, 40) are
// defaults; see config.
type Options struct {
	SimilarityThreshold float64
	MinPromptLength     int
	ReferenceMaxEdge    int
	TempDir             string
}

// Engine decides when a scene should carry a visual-continuity hint and
// fetches the hint text from the vision collaborator.
type Engine struct {
	vision VisionAnalyzer
	opts   Options
	logger *utils.Logger

	// Collapses concurrent descriptions of the same image file.
	group singleflight.Group
}

// NewEngine creates a continuity engine.
func NewEngine(vision VisionAnalyzer, opts Options) *Engine {
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = 0.55
	}
	if opts.MinPromptLength <= 0 {
		opts.MinPromptLength = 40
	}
	if opts.ReferenceMaxEdge <= 0 {
		opts.ReferenceMaxEdge = 512
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Engine{
		vision: vision,
		opts:   opts,
		logger: utils.GetLogger(),
	}
}

// ShouldReference reports whether two adjacent theme-prefixed prompts are
// similar enough to justify a continuity reference: both exceed the minimum
// length and their case-folded similarity meets the threshold.
func (e *Engine) ShouldReference(current, previous string) bool {
	if len(current) < e.opts.MinPromptLength || len(previous) < e.opts.MinPromptLength {
		return false
	}
	return Similarity(strings.ToLower(current), strings.ToLower(previous)) >= e.opts.SimilarityThreshold
}

// Hint returns the continuity hint for a scene, or "" when the gate does not
// open: prompts dissimilar or short, no rendered image for the prior scene,
// or no vision collaborator configured.
func (e *Engine) Hint(ctx context.Context, current, previous, prevImagePath string) (string, error) {
	if e.vision == nil || prevImagePath == "" {
		return "", nil
	}
	if !e.ShouldReference(current, previous) {
		return "", nil
	}
	if _, err := os.Stat(prevImagePath); err != nil {
		return "", nil
	}

	description, err := e.describe(ctx, prevImagePath)
	if err != nil {
		return "", err
	}

	utils.GetMetrics().Inc(utils.MetricContinuityHints)
	return fmt.Sprintf("Reference image (previous scene): %s Use the reference only for continuity of palette, lighting and composition.",
		sentence(description)), nil
}

// CoverHint returns the one-time scene-1 hint derived from the album cover,
// or "" when no cover exists.
func (e *Engine) CoverHint(ctx context.Context, coverPath string) (string, error) {
	if e.vision == nil || coverPath == "" {
		return "", nil
	}
	if _, err := os.Stat(coverPath); err != nil {
		return "", nil
	}

	description, err := e.describe(ctx, coverPath)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Album cover reference: %s Use this as the starting visual tone; make the scene a moving shot.",
		sentence(description)), nil
}

// describe fetches a concise visual description of an image, downscaled to
// keep the payload small. Deduplicated per path within the engine's lifetime.
func (e *Engine) describe(ctx context.Context, imagePath string) (string, error) {
	result, err, _ := e.group.Do(imagePath, func() (interface{}, error) {
		payloadPath, err := DownscaleForPayload(imagePath, e.opts.ReferenceMaxEdge, e.opts.TempDir)
		if err != nil {
			return nil, apperrors.NewCollaboratorError("failed to prepare reference image", err)
		}

		utils.GetMetrics().Inc(utils.MetricVisionCalls)
		resp, err := e.vision.AnalyzeImages(ctx, llm.VisionRequest{
			ImagePaths: []string{payloadPath},
			Prompt: "Describe this image concisely: dominant palette, lighting, and composition. " +
				"Two sentences at most.",
			SystemMessage: "You describe images for visual continuity in film production. Be brief and concrete.",
		})
		if err != nil {
			return nil, apperrors.NewCollaboratorError("vision collaborator failed", err)
		}
		if strings.TrimSpace(resp.Content) == "" {
			return nil, apperrors.NewEmptyResponseError("vision collaborator returned empty description")
		}

		return strings.TrimSpace(resp.Content), nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// sentence guarantees a trailing period so hints compose cleanly.
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "!") && !strings.HasSuffix(s, "?") {
		s += "."
	}
	return s
}
