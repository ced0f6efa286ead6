package ai

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	_ Completion = (*Service)(nil)
	_ Vision     = (*Service)(nil)
)

// Service is an OpenAI-compatible completion and vision client. Any
// endpoint speaking the chat-completions protocol works (hosted OpenAI,
// LM Studio, ollama).
type Service struct {
	client *openai.Client
	logger *log.Logger
	model  string
}

func NewOpenAIService(logger *log.Logger, apiKey, baseURL, model string) *Service {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &Service{
		client: &client,
		logger: logger,
		model:  model,
	}
}

func (s *Service) Completions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, model string) (openai.ChatCompletionMessage, error) {
	if model == "" {
		model = s.model
	}

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    model,
	})
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}

	if len(completion.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("model returned no completion choices")
	}

	return completion.Choices[0].Message, nil
}

// Generate runs a single-prompt completion and returns the raw text.
func (s *Service) Generate(ctx context.Context, prompt string, maxTokens int64, temperature float64) (string, error) {
	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:               s.model,
		MaxCompletionTokens: openai.Int(maxTokens),
		Temperature:         openai.Float(temperature),
	})
	if err != nil {
		return "", err
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("model returned no completion choices")
	}

	return completion.Choices[0].Message.Content, nil
}

// DescribeImage sends a base64-encoded image through the vision model with
// the given instruction prompt.
func (s *Service) DescribeImage(ctx context.Context, imageBase64 string, prompt string) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: fmt.Sprintf("data:image/jpeg;base64,%s", imageBase64),
		}),
	}

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
		Model: s.model,
	})
	if err != nil {
		return "", err
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("model returned no completion choices")
	}

	return completion.Choices[0].Message.Content, nil
}
