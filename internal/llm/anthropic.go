package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicAnalyzer struct {
	client anthropic.Client
	model  string
}

func NewAnthropicAnalyzer(apiKey, model string) *AnthropicAnalyzer {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicAnalyzer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (a *AnthropicAnalyzer) Model() string { return a.model }

func (a *AnthropicAnalyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(analysisPrompt, text))),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("anthropic analyze: %w: %v", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("anthropic analyze: %w", err)
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	content = strings.TrimSpace(content)

	// The model occasionally wraps the JSON in a fenced block.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var analysis Analysis
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	analysis.PromptTokens = int(resp.Usage.InputTokens)
	analysis.CompletionTokens = int(resp.Usage.OutputTokens)
	analysis.Model = a.model
	return &analysis, nil
}
