package ai

import (
	"context"

	"github.com/openai/openai-go"
)

// Completion is the text-generation capability the analysis pipeline
// depends on. Implementations may fail or time out; callers are expected
// to degrade gracefully.
type Completion interface {
	Completions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, model string) (openai.ChatCompletionMessage, error)
	Generate(ctx context.Context, prompt string, maxTokens int64, temperature float64) (string, error)
}

// Vision describes an image for the screenshot enrichment pipeline.
type Vision interface {
	DescribeImage(ctx context.Context, imageBase64 string, prompt string) (string, error)
}
