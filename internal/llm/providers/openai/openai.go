// internal/llm/providers/openai/openai.go
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/verseforge/storyboardmv/internal/llm"
)

func init() {
	llm.Register("openai", func() llm.Provider {
		return &Provider{
			baseURL: "https://api.openai.com/v1",
		}
	})
}

// Provider talks to the OpenAI API or any compatible endpoint.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	imageModel string
	client     *http.Client
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("openai api key not provided")
	}

	p.apiKey = apiKey
	p.client = &http.Client{Timeout: 60 * time.Second}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}
	if model, exists := config["model"]; exists && model != "" {
		p.model = model
	} else {
		p.model = "gpt-4.1-mini"
	}
	if model, exists := config["image_model"]; exists && model != "" {
		p.imageModel = model
	} else {
		p.imageModel = "gpt-image-1"
	}

	return nil
}

func (p *Provider) GetName() string {
	return "OpenAI"
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// GenerateText runs one chat-completions round trip.
func (p *Provider) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResponse, error) {
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	messages := make([]chatMessage, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemMessage})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatPayload{
		Model:       p.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}

	respBody, status, err := p.post(ctx, p.baseURL+"/chat/completions", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, httpError(status, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("chat response contained no choices")
	}

	return &llm.TextResponse{
		Content:      parsed.Choices[0].Message.Content,
		FinishReason: parsed.Choices[0].FinishReason,
		TokensUsed:   parsed.Usage.TotalTokens,
	}, nil
}

type imagePayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	N      int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// SynthesizeImage calls the images API.
func (p *Provider) SynthesizeImage(ctx context.Context, req llm.ImageRequest) ([]byte, error) {
	size := req.Size
	if size == "" {
		size = "1024x1024"
	}

	body, err := json.Marshal(imagePayload{
		Model:  p.imageModel,
		Prompt: req.Prompt,
		Size:   size,
		N:      1,
	})
	if err != nil {
		return nil, err
	}

	respBody, status, err := p.post(ctx, p.baseURL+"/images/generations", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, httpError(status, respBody)
	}

	var parsed imageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse image response: %w", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return nil, errors.New("no image data returned")
	}

	return base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
}

func (p *Provider) post(ctx context.Context, apiURL string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	return respBody, resp.StatusCode, nil
}

func httpError(status int, body []byte) error {
	preview := string(body)
	if len(preview) > 300 {
		preview = preview[:300]
	}
	if status >= 400 && status < 500 {
		return &llm.BadRequestError{StatusCode: status, Body: preview}
	}
	return fmt.Errorf("openai api error %d: %s", status, preview)
}
