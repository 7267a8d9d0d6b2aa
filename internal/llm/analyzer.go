package llm

import (
	"context"
	"errors"
)

// Analysis is the structured result of analyzing one section of text.
type Analysis struct {
	Summary          string   `json:"summary"`
	Claims           []string `json:"claims"`
	PromptTokens     int      `json:"-"`
	CompletionTokens int      `json:"-"`
	Model            string   `json:"-"`
}

// Analyzer produces a summary and key claims for a piece of section text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*Analysis, error)
	Model() string
}

// ErrRateLimited marks a provider rate-limit response. It is the only error
// kind the summarization stage retries.
var ErrRateLimited = errors.New("llm: rate limited")

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

const analysisPrompt = `You are an expert academic researcher. Analyze the following text from a research paper section.

TEXT TO ANALYZE:
%s

Return JSON matching the schema: {"summary": string, "claims": string array}.
The summary is a concise summary of the section content in 2-3 sentences.
The claims are 3-5 key claims, facts, or findings extracted from this section.`
