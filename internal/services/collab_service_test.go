// internal/services/collab_service_test.go
package services

import (
	"context"
	"fmt"
	"testing"

	apperrors "github.com/verseforge/storyboardmv/internal/errors"
	"github.com/verseforge/storyboardmv/internal/llm"
)

// fakeTextProvider scripts text replies per call.
type fakeTextProvider struct {
	calls    int
	requests []llm.TextRequest
	respond  func(call int, req llm.TextRequest) (string, error)
}

func (f *fakeTextProvider) Initialize(map[string]string) error { return nil }
func (f *fakeTextProvider) GetName() string                    { return "fake-text" }

func (f *fakeTextProvider) GenerateText(_ context.Context, req llm.TextRequest) (*llm.TextResponse, error) {
	f.calls++
	f.requests = append(f.requests, req)
	content, err := f.respond(f.calls, req)
	if err != nil {
		return nil, err
	}
	return &llm.TextResponse{Content: content}, nil
}

func TestGenerateTextDowngradeRetry(t *testing.T) {
	provider := &fakeTextProvider{respond: func(call int, req llm.TextRequest) (string, error) {
		if call == 1 {
			return "", &llm.BadRequestError{StatusCode: 400, Body: "max_tokens too large"}
		}
		return "ok", nil
	}}
	s := NewCollabServiceWith(provider, nil, nil)

	resp, err := s.GenerateText(context.Background(), llm.TextRequest{Prompt: "p", MaxTokens: 3000})
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q, want ok", resp.Content)
	}
	if provider.calls != 2 {
		t.Fatalf("calls = %d, want 2 (one downgrade retry)", provider.calls)
	}
	if got := provider.requests[1].MaxTokens; got != 1500 {
		t.Errorf("retried max tokens = %d, want 1500", got)
	}
}

func TestGenerateTextNoRetryOnTransportError(t *testing.T) {
	provider := &fakeTextProvider{respond: func(call int, req llm.TextRequest) (string, error) {
		return "", fmt.Errorf("connection refused")
	}}
	s := NewCollabServiceWith(provider, nil, nil)

	_, err := s.GenerateText(context.Background(), llm.TextRequest{Prompt: "p", MaxTokens: 3000})
	if err == nil {
		t.Fatal("expected error")
	}
	if provider.calls != 1 {
		t.Errorf("transport errors must not retry, got %d calls", provider.calls)
	}
}

func TestGenerateTextDowngradeRetriesOnlyOnce(t *testing.T) {
	provider := &fakeTextProvider{respond: func(call int, req llm.TextRequest) (string, error) {
		return "", &llm.BadRequestError{StatusCode: 400, Body: "still too large"}
	}}
	s := NewCollabServiceWith(provider, nil, nil)

	_, err := s.GenerateText(context.Background(), llm.TextRequest{Prompt: "p", MaxTokens: 3000})
	if err == nil {
		t.Fatal("expected error")
	}
	if provider.calls != 2 {
		t.Errorf("exactly one downgrade retry allowed, got %d calls", provider.calls)
	}
}

func TestUnconfiguredRolesFail(t *testing.T) {
	s := NewCollabServiceWith(nil, nil, nil)

	if _, err := s.GenerateText(context.Background(), llm.TextRequest{Prompt: "p"}); !apperrors.IsType(err, apperrors.ErrorTypeCollaborator) {
		t.Errorf("text error = %v, want collaborator_failure", err)
	}
	if _, err := s.AnalyzeImages(context.Background(), llm.VisionRequest{}); !apperrors.IsType(err, apperrors.ErrorTypeCollaborator) {
		t.Errorf("vision error = %v, want collaborator_failure", err)
	}
	if _, err := s.SynthesizeImage(context.Background(), llm.ImageRequest{}); !apperrors.IsType(err, apperrors.ErrorTypeCollaborator) {
		t.Errorf("image error = %v, want collaborator_failure", err)
	}
}
