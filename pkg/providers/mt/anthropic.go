package mt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

// AnthropicMT translates via Claude's messages endpoint.
type AnthropicMT struct {
	apiKey string
	url    string
	model  string
}

func NewAnthropicMT(apiKey, model string) *AnthropicMT {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	return &AnthropicMT{
		apiKey: apiKey,
		url:    "https://api.anthropic.com/v1/messages",
		model:  model,
	}
}

func (a *AnthropicMT) Name() string { return "anthropic" }

func (a *AnthropicMT) Translate(ctx context.Context, text string, source, target pipeline.Language) (string, error) {
	payload := map[string]any{
		"model":      a.model,
		"system":     systemPrompt(source, target),
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": text},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("anthropic mt error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("no content returned from anthropic")
	}
	return result.Content[0].Text, nil
}
