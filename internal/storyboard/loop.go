// internal/storyboard/loop.go
package storyboard

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/verseforge/storyboardmv/internal/errors"
	"github.com/verseforge/storyboardmv/internal/llm"
	"github.com/verseforge/storyboardmv/internal/models"
	"github.com/verseforge/storyboardmv/internal/utils"
)

// TextGenerator is the narrow contract the loop needs from the text
// collaborator. Tests substitute fakes.
type TextGenerator interface {
	GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResponse, error)
}

// AuditHook receives every outgoing prompt and raw reply; kind is "request"
// or "response".
type AuditHook func(kind string, batch models.StoryboardBatch, payload string)

/// Run describes one storyboard generation: the theme, the full window list,
// the lyric mapping and the target scene count.
type Run struct {
	Theme        models.ThemeContext
	Windows      []models.SceneWindow
	WindowLyrics map[int]string
	TotalScenes  int

	// SecondsPerScene backs timestamp fallbacks for scenes past the window
	// list; normally every scene has a window.
	SecondsPerScene float64
}

// Batch slices the run into one collaborator request.
func (r *Run) Batch(start, end int) models.StoryboardBatch {
	return models.StoryboardBatch{
		StartScene:  start,
		EndScene:    end,
		TotalScenes: r.TotalScenes,
		Theme:       r.Theme,
		Windows:     r.Windows,
		WindowLyric: r.WindowLyrics,
	}
}

func (r *Run) parser() *ResponseParser {
	return NewResponseParser(r.Windows, r.WindowLyrics, r.SecondsPerScene)
}

// CompletionLoop drives request building, collaborator calls and response
// parsing until the scene list is complete or a bound trips. Strictly
// sequential: one collaborator call at a time.
type CompletionLoop struct {
	builder   *RequestBuilder
	generator TextGenerator
	policy    RetryPolicy
	logger    *utils.Logger
	audit     AuditHook
}

// NewCompletionLoop wires a loop. audit may be nil.
func NewCompletionLoop(builder *RequestBuilder, generator TextGenerator, policy RetryPolicy, audit AuditHook) *CompletionLoop {
	return &CompletionLoop{
		builder:   builder,
		generator: generator,
		policy:    policy.normalized(),
		logger:    utils.GetLogger(),
		audit:     audit,
	}
}

const (
	requestTemperature = 0.8
	requestMaxTokens   = 3000
)

// Execute runs the completion loop for one generation run.
//
// The first reply is requested single-shot for all scenes. Refusal language
// with no scene markers switches to fixed-size batching from scene 1.
// Truncated replies trigger continuation batches for the missing trailing
// range until the target is reached, progress stalls, or the iteration bound
// is exceeded. Partial results already parsed stay usable on failure.
func (l *CompletionLoop) Execute(ctx context.Context, run *Run) (*models.SceneSet, error) {
	scenes := models.NewSceneSet()
	parser := run.parser()

	content, err := l.send(ctx, run.Batch(1, run.TotalScenes))
	if err != nil {
		return scenes, err
	}

	if DetectRefusal(content) {
		// Fixed-size batching from scene 1: the empty scene set sends the
		// continuation loop straight to batch [1, BatchSize].
		l.logger.Warn("collaborator refused single-shot storyboard, switching to fixed-size batches",
			map[string]interface{}{"total_scenes": run.TotalScenes, "batch_size": l.policy.BatchSize})
	} else {
		records, err := parser.Parse(content)
		if err != nil {
			return scenes, err
		}
		l.merge(scenes, records, run.TotalScenes)
	}

	prevMax := scenes.MaxScene()
	iterations := 0

	for scenes.MaxScene() < run.TotalScenes {
		if iterations >= l.policy.MaxIterations {
			return scenes, apperrors.NewTruncatedError(fmt.Sprintf(
				"continuation bound (%d) exceeded; last known scene %d of %d",
				l.policy.MaxIterations, scenes.MaxScene(), run.TotalScenes))
		}
		iterations++
		utils.GetMetrics().Inc(utils.MetricContinuationRounds)

		start := scenes.MaxScene() + 1
		end := start + l.policy.BatchSize - 1
		if end > run.TotalScenes {
			end = run.TotalScenes
		}

		l.logger.Infof("requesting continuation batch %d-%d of %d (iteration %d)",
			start, end, run.TotalScenes, iterations)

		content, err := l.send(ctx, run.Batch(start, end))
		if err != nil {
			return scenes, err
		}

		records, err := parser.Parse(content)
		if err != nil {
			return scenes, err
		}
		l.merge(scenes, records, run.TotalScenes)

		newMax := scenes.MaxScene()
		if newMax <= prevMax {
			return scenes, apperrors.NewStalledError(fmt.Sprintf(
				"continuation made no forward progress at scene %d of %d",
				prevMax, run.TotalScenes))
		}
		prevMax = newMax
	}

	if gaps := scenes.Gaps(run.TotalScenes); len(gaps) > 0 {
		// Interior gaps are not treated as truncation; reported, not
		// backfilled.
		l.logger.Warn("storyboard complete by max-scene heuristic but has interior gaps",
			map[string]interface{}{"missing": fmt.Sprint(gaps)})
	}

	return scenes, nil
}

// send builds, audits and performs one collaborator round trip.
func (l *CompletionLoop) send(ctx context.Context, batch models.StoryboardBatch) (string, error) {
	prompt := l.builder.Build(batch)

	if l.audit != nil {
		l.audit("request", batch, prompt)
	}

	utils.GetMetrics().Inc(utils.MetricTextCalls)
	resp, err := l.generator.GenerateText(ctx, llm.TextRequest{
		Prompt:        prompt,
		SystemMessage: SystemMessage,
		MaxTokens:     requestMaxTokens,
		Temperature:   requestTemperature,
	})
	if err != nil {
		return "", apperrors.NewCollaboratorError(
			fmt.Sprintf("text collaborator failed for scenes %d-%d", batch.StartScene, batch.EndScene), err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", apperrors.NewEmptyResponseError(fmt.Sprintf(
			"text collaborator returned empty content for scenes %d-%d", batch.StartScene, batch.EndScene))
	}

	if l.audit != nil {
		l.audit("response", batch, resp.Content)
	}

	return resp.Content, nil
}

// merge folds parsed records into the set, dropping indexes past the target.
func (l *CompletionLoop) merge(scenes *models.SceneSet, records []models.SceneRecord, total int) {
	kept := records[:0]
	for _, rec := range records {
		if rec.Scene > total {
			l.logger.Warnf("dropping out-of-range scene %d (target %d)", rec.Scene, total)
			continue
		}
		kept = append(kept, rec)
	}
	scenes.Merge(kept)
	utils.GetMetrics().Add(utils.MetricScenesParsed, int64(len(kept)))
}
