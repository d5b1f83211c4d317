package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// ErrNoBackend is returned when no language model is configured.
var ErrNoBackend = errors.New("no language model configured")

// Backend completes a single prompt.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model       string          `json:"model"`
	Messages    []ollamaMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float64         `json:"temperature"`
}

type ollamaChatResponse struct {
	Choices []struct {
		Message ollamaMessage `json:"message"`
	} `json:"choices"`
}

// OllamaBackend talks to the OpenAI-compatible endpoint of an Ollama server.
type OllamaBackend struct {
	url         string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllamaBackend creates a backend for host, which may be "host:port" or a full base URL.
// A nil client uses http.DefaultClient.
func NewOllamaBackend(host, model string, temperature float64, client *http.Client) *OllamaBackend {
	base := strings.TrimRight(host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaBackend{
		url:         base + "/v1/chat/completions",
		model:       model,
		temperature: temperature,
		client:      client,
	}
}

func (b *OllamaBackend) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:       b.model,
		Messages:    []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:      false,
		Temperature: b.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("ollama response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// GeminiBackend generates text with the Google GenAI SDK.
type GeminiBackend struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiBackend creates a Gemini client for apiKey.
func NewGeminiBackend(ctx context.Context, apiKey, model string, temperature float64) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiBackend{client: client, model: model, temperature: float32(temperature)}, nil
}

func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(b.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return resp.Text(), nil
}

type noBackend struct{}

func (noBackend) Complete(context.Context, string) (string, error) {
	return "", ErrNoBackend
}
