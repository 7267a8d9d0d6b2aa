package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
}

func NewOpenAIAnalyzer(apiKey, model string) *OpenAIAnalyzer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAnalyzer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (a *OpenAIAnalyzer) Model() string { return a.model }

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(analysisPrompt, text)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("openai analyze: %w: %v", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai analyze: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai analyze: empty response")
	}

	var analysis Analysis
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	analysis.PromptTokens = resp.Usage.PromptTokens
	analysis.CompletionTokens = resp.Usage.CompletionTokens
	analysis.Model = resp.Model
	return &analysis, nil
}

// OpenAIEmbedder generates embeddings for section content.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}
