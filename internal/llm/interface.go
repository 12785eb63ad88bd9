// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownProvider = errors.New("unknown collaborator provider")

// TextRequest is a text-generation round-trip.
type TextRequest struct {
	Prompt        string  `json:"prompt"`
	SystemMessage string  `json:"system_message,omitempty"`
	MaxTokens     int     `json:"max_tokens,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
}

// VisionRequest asks for an analysis of local image files.
type VisionRequest struct {
	ImagePaths    []string `json:"image_paths"`
	Prompt        string   `json:"prompt"`
	SystemMessage string   `json:"system_message,omitempty"`
}

// ImageRequest asks for one synthesized image.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"` // "1024x1024" etc.
}

// TextResponse carries generated or analyzed text.
type TextResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
}

// BadRequestError marks a 400-class rejection from a collaborator API. The
// text collaborator wrapper uses it to decide the one documented
// parameter-downgrade retry.
type BadRequestError struct {
	StatusCode int
	Body       string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("collaborator rejected request (%d): %s", e.StatusCode, e.Body)
}

// Provider is the common contract all collaborator providers implement.
type Provider interface {
	// Initialize the provider with its profile configuration.
	Initialize(config map[string]string) error

	// GetName returns the provider's display name.
	GetName() string
}

// TextProvider generates free text.
type TextProvider interface {
	Provider
	GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error)
}

// VisionProvider produces a textual description of images.
type VisionProvider interface {
	Provider
	AnalyzeImages(ctx context.Context, req VisionRequest) (*TextResponse, error)
}

// ImageProvider synthesizes one image per request.
type ImageProvider interface {
	Provider
	SynthesizeImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

// Provider registry and factory type
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register adds a provider factory under a name. Called from provider
// package init functions.
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider creates and initializes a named provider.
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	provider := factory()
	err := provider.Initialize(config)
	return provider, err
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
