// internal/services/collab_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/verseforge/storyboardmv/internal/config"
	apperrors "github.com/verseforge/storyboardmv/internal/errors"
	"github.com/verseforge/storyboardmv/internal/llm"
	_ "github.com/verseforge/storyboardmv/internal/llm/providers/azure"
	_ "github.com/verseforge/storyboardmv/internal/llm/providers/openai"
	"github.com/verseforge/storyboardmv/internal/utils"
)

// CollabService fronts the three collaborator roles (text, vision, image)
// behind one service. Providers are built from the configured profiles; a
// missing profile leaves that role disabled rather than failing startup.
type CollabService struct {
	text   llm.TextProvider
	vision llm.VisionProvider
	image  llm.ImageProvider
	logger *utils.Logger
}

// NewCollabService builds providers from the current configuration.
func NewCollabService() *CollabService {
	s := &CollabService{logger: utils.GetLogger()}

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		s.logger.Warn("configuration not initialized, all collaborator roles disabled", nil)
		return s
	}

	for role, profile := range cfg.Profiles {
		provider, err := llm.GetProvider(profile.Provider, profileConfig(profile))
		if err != nil {
			s.logger.Warnf("collaborator role %q disabled: %v", role, err)
			continue
		}

		switch role {
		case "text":
			if p, ok := provider.(llm.TextProvider); ok {
				s.text = p
			}
		case "vision":
			if p, ok := provider.(llm.VisionProvider); ok {
				s.vision = p
			}
		case "image":
			if p, ok := provider.(llm.ImageProvider); ok {
				s.image = p
			}
		default:
			s.logger.Warnf("unknown collaborator role %q in configuration", role)
		}
	}

	return s
}

// NewCollabServiceWith wires explicit providers. Used by tests and by callers
// that manage provider lifecycle themselves.
func NewCollabServiceWith(text llm.TextProvider, vision llm.VisionProvider, image llm.ImageProvider) *CollabService {
	return &CollabService{
		text:   text,
		vision: vision,
		image:  image,
		logger: utils.GetLogger(),
	}
}

func profileConfig(p config.CollaboratorProfile) map[string]string {
	return map[string]string{
		"endpoint":    p.Endpoint,
		"api_key":     p.APIKey,
		"deployment":  p.Deployment,
		"api_version": p.APIVersion,
		"model":       p.Model,
	}
}

// HasText reports whether the text role is configured.
func (s *CollabService) HasText() bool { return s.text != nil }

// HasVision reports whether the vision role is configured.
func (s *CollabService) HasVision() bool { return s.vision != nil }

// HasImage reports whether the image role is configured.
func (s *CollabService) HasImage() bool { return s.image != nil }

// GenerateText performs one text round trip. A 400-class rejection is retried
// exactly once with the token budget halved; this is the only retry the
// wrapper performs on its own.
func (s *CollabService) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResponse, error) {
	if s.text == nil {
		return nil, apperrors.NewCollaboratorError("text collaborator not configured", nil)
	}

	resp, err := s.text.GenerateText(ctx, req)
	if err == nil {
		return resp, nil
	}

	var badReq *llm.BadRequestError
	if errors.As(err, &badReq) && req.MaxTokens > 1 {
		downgraded := req
		downgraded.MaxTokens = req.MaxTokens / 2
		s.logger.Warnf("text collaborator rejected request (%d), retrying once with max_tokens %d -> %d",
			badReq.StatusCode, req.MaxTokens, downgraded.MaxTokens)
		return s.text.GenerateText(ctx, downgraded)
	}

	return nil, err
}

// AnalyzeImages performs one vision round trip.
func (s *CollabService) AnalyzeImages(ctx context.Context, req llm.VisionRequest) (*llm.TextResponse, error) {
	if s.vision == nil {
		return nil, apperrors.NewCollaboratorError("vision collaborator not configured", nil)
	}
	return s.vision.AnalyzeImages(ctx, req)
}

// SynthesizeImage performs one image round trip.
func (s *CollabService) SynthesizeImage(ctx context.Context, req llm.ImageRequest) ([]byte, error) {
	if s.image == nil {
		return nil, apperrors.NewCollaboratorError("image collaborator not configured", nil)
	}
	data, err := s.image.SynthesizeImage(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperrors.NewEmptyResponseError("image collaborator returned no image data")
	}
	return data, nil
}

// Names reports the configured provider names per role, for diagnostics.
func (s *CollabService) Names() map[string]string {
	out := make(map[string]string, 3)
	if s.text != nil {
		out["text"] = s.text.GetName()
	}
	if s.vision != nil {
		out["vision"] = s.vision.GetName()
	}
	if s.image != nil {
		out["image"] = s.image.GetName()
	}
	if len(out) == 0 {
		out["status"] = fmt.Sprintf("no collaborators configured (known providers: %v)", llm.ListProviders())
	}
	return out
}
