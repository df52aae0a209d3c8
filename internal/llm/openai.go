package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/copydesk/config"
)

// openaiClient implements Provider against the OpenAI chat completions API.
type openaiClient struct {
	apiKey     string
	baseURL    string
	models     map[string]config.LLMModel
	fallback   string
	httpClient *http.Client
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newOpenAIClient(cfg config.LLMConfig) *openaiClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &openaiClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		models:     cfg.Models,
		fallback:   cfg.Routing.Fallback,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *openaiClient) Generate(ctx context.Context, model string, messages []Message) (string, error) {
	if model == "" {
		model = c.fallback
	}
	apiName := model
	var temperature float64
	var maxTokens int
	if m, ok := c.models[model]; ok {
		if m.APIName != "" {
			apiName = m.APIName
		}
		temperature = m.Temperature
		maxTokens = m.MaxTokens
	}
	if apiName == "" {
		return "", fmt.Errorf("no model configured and no fallback set")
	}

	requestBody := chatRequest{
		Model:       apiName,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var openaiResp chatResponse
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if openaiResp.Error != nil {
			return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, openaiResp.Error.Message)
		}
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}
	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return openaiResp.Choices[0].Message.Content, nil
}
