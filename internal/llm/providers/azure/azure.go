// internal/llm/providers/azure/azure.go
package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verseforge/storyboardmv/internal/llm"
)

func init() {
	llm.Register("azure", func() llm.Provider {
		return &Provider{
			apiVersion:      "2024-12-01-preview",
			imageAPIVersion: "2024-02-15-preview",
		}
	})
}

// Provider talks to an Azure OpenAI resource. One deployment serves chat
// (text and vision) and one serves image generation; both ride the same
// endpoint and key.
type Provider struct {
	endpoint        string
	deployment      string
	imageDeployment string
	apiVersion      string
	imageAPIVersion string
	apiKey          string
	client          *http.Client
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("azure api key not provided")
	}
	endpoint := strings.TrimRight(config["endpoint"], "/")
	if endpoint == "" {
		return errors.New("azure endpoint not provided")
	}

	p.apiKey = apiKey
	p.endpoint = endpoint
	p.client = &http.Client{Timeout: 60 * time.Second}

	p.deployment = config["deployment"]
	if p.deployment == "" {
		p.deployment = "gpt-4.1"
	}
	p.imageDeployment = config["image_deployment"]
	if p.imageDeployment == "" {
		p.imageDeployment = p.deployment
	}
	if v := config["api_version"]; v != "" {
		p.apiVersion = v
	}
	if v := config["image_api_version"]; v != "" {
		p.imageAPIVersion = v
	}

	return nil
}

func (p *Provider) GetName() string {
	return "Azure OpenAI"
}

// chatMessage supports both plain string content and the multimodal
// content-part array used by vision requests.
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatPayload struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
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
	messages := make([]chatMessage, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemMessage})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	return p.chat(ctx, messages, req.Temperature, req.MaxTokens)
}

// AnalyzeImages runs a chat-completions round trip with the images attached
// as base64 data URLs.
func (p *Provider) AnalyzeImages(ctx context.Context, req llm.VisionRequest) (*llm.TextResponse, error) {
	parts := []map[string]interface{}{
		{"type": "text", "text": req.Prompt},
	}
	for _, path := range req.ImagePaths {
		dataURL, err := encodeImageFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to attach image %s: %w", path, err)
		}
		parts = append(parts, map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]string{"url": dataURL},
		})
	}

	messages := make([]chatMessage, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemMessage})
	}
	messages = append(messages, chatMessage{Role: "user", Content: parts})

	return p.chat(ctx, messages, 0.2, 400)
}

func (p *Provider) chat(ctx context.Context, messages []chatMessage, temperature float64, maxTokens int) (*llm.TextResponse, error) {
	if temperature <= 0 {
		temperature = 0.7
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	apiURL := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, p.deployment, p.apiVersion)

	body, err := json.Marshal(chatPayload{
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}

	respBody, status, err := p.post(ctx, apiURL, body)
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
	Prompt       string `json:"prompt"`
	Size         string `json:"size"`
	OutputFormat string `json:"output_format"`
	N            int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// SynthesizeImage calls the images/generations API. A 404 triggers one retry
// with a known-good preview api-version, since image deployments frequently
// lag the chat api-version.
func (p *Provider) SynthesizeImage(ctx context.Context, req llm.ImageRequest) ([]byte, error) {
	size := req.Size
	if size == "" {
		size = "1024x1024"
	}

	body, err := json.Marshal(imagePayload{
		Prompt:       req.Prompt,
		Size:         size,
		OutputFormat: "png",
		N:            1,
	})
	if err != nil {
		return nil, err
	}

	base := imageBaseEndpoint(p.endpoint)
	versions := []string{p.imageAPIVersion}
	const fallbackVersion = "2025-04-01-preview"
	if p.imageAPIVersion != fallbackVersion {
		versions = append(versions, fallbackVersion)
	}

	var lastErr error
	for i, version := range versions {
		apiURL := fmt.Sprintf("%s/openai/deployments/%s/images/generations?api-version=%s",
			base, p.imageDeployment, version)

		respBody, status, err := p.post(ctx, apiURL, body)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound && i == 0 {
			lastErr = httpError(status, respBody)
			continue
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

	return nil, lastErr
}

func (p *Provider) post(ctx context.Context, apiURL string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)

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
	return fmt.Errorf("azure api error %d: %s", status, preview)
}

// imageBaseEndpoint keeps only scheme://host; image calls reject endpoints
// that carry an extra path or query.
func imageBaseEndpoint(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	return parsed.Scheme + "://" + parsed.Host
}

// encodeImageFile reads a local image and renders it as a data URL.
func encodeImageFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".webp":
		mime = "image/webp"
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
