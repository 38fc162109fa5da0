package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"go.uber.org/zap"
)

const azureAPIVersion = "2024-08-01-preview"

// OpenAIProvider generates replies with an Azure OpenAI deployment
type OpenAIProvider struct {
	client     *openai.Client
	deployment string
	logger     *zap.Logger
}

// NewOpenAIProvider creates a new Azure OpenAI client using the openai-go SDK with Azure extensions
func NewOpenAIProvider(endpoint, apiKey, deployment string, logger *zap.Logger) (*OpenAIProvider, error) {
	if endpoint == "" || apiKey == "" || deployment == "" {
		return nil, fmt.Errorf("endpoint, apiKey, and deployment are required")
	}

	client := openai.NewClient(
		azure.WithEndpoint(endpoint, azureAPIVersion),
		azure.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		client:     &client,
		deployment: deployment,
		logger:     logger,
	}, nil
}

// Name identifies the provider in logs and metrics
func (p *OpenAIProvider) Name() string {
	return "azure_openai"
}

// Generate performs a single chat completion request
func (p *OpenAIProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	requestStart := time.Now()

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.deployment),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from Azure OpenAI")
	}

	p.logger.Info("Azure OpenAI token usage",
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("request_time", time.Since(requestStart)),
	)

	return resp.Choices[0].Message.Content, nil
}
