// Package assistant answers free-text questions through a generative text
// provider and degrades to fixed replies when the provider is unavailable.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// SystemInstruction sets the assistant persona for every request
	SystemInstruction = "You are a friendly, empathetic health assistant named Dr. Brainy. " +
		"Your tone is encouraging, concise, and warm. You help users stay motivated with their " +
		"medication adherence. Keep answers under 100 words."

	// Greeting opens every conversation
	Greeting = "Hi! I'm Dr. Brainy. How can I help you stick to your schedule today?"

	// UnconfiguredReply is returned when no provider credentials are set
	UnconfiguredReply = "AI Service Unavailable (Missing API Key)"
	// EmptyReply is returned when the provider answers with no text
	EmptyReply = "I couldn't generate an insight right now."
	// FailureReply is returned whenever the provider could not be reached
	FailureReply = "Sorry, I'm having trouble connecting to my brain right now."

	maxPromptLength = 2000
)

// Provider generates a text reply to prompt under a system instruction
type Provider interface {
	Name() string
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Outcome classifies how a request was answered
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeEmpty        Outcome = "empty"
	OutcomeError        Outcome = "error"
	OutcomeUnconfigured Outcome = "unconfigured"
	OutcomeRateLimited  Outcome = "rate_limited"
	OutcomeCircuitOpen  Outcome = "circuit_open"
)

// Recorder observes assistant requests
type Recorder interface {
	AssistantRequest(provider string, outcome Outcome, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) AssistantRequest(string, Outcome, time.Duration) {}

// Config holds the degradation settings of an Assistant
type Config struct {
	// Timeout bounds a single provider call
	Timeout time.Duration
	// RatePerMinute limits provider calls; 0 disables the limit
	RatePerMinute int
	Burst         int
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open
	OpenTimeout time.Duration
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		Timeout:          15 * time.Second,
		RatePerMinute:    30,
		Burst:            5,
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
	}
}

// Assistant proxies prompts to a Provider. It never returns provider
// errors: every failure becomes a fixed reply.
type Assistant struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker[string]
	limiter  *rate.Limiter
	timeout  time.Duration
	recorder Recorder
	logger   *zap.Logger
}

// Option configures an Assistant
type Option func(*Assistant)

// WithRecorder sets the request observer
func WithRecorder(r Recorder) Option {
	return func(a *Assistant) { a.recorder = r }
}

// New creates an Assistant. A nil provider answers every prompt with UnconfiguredReply.
func New(provider Provider, cfg Config, logger *zap.Logger, opts ...Option) *Assistant {
	a := &Assistant{
		provider: provider,
		timeout:  cfg.Timeout,
		recorder: noopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.RatePerMinute > 0 {
		burst := max(cfg.Burst, 1)
		a.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), burst)
	}

	if provider != nil {
		threshold := cfg.FailureThreshold
		if threshold == 0 {
			threshold = DefaultConfig().FailureThreshold
		}
		a.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        provider.Name(),
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("assistant circuit breaker state changed",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	return a
}

// Configured reports whether a provider is set
func (a *Assistant) Configured() bool {
	return a.provider != nil
}

// Greeting returns the opening message of a conversation
func (a *Assistant) Greeting() model.ChatMessage {
	return model.ChatMessage{Role: model.ChatRoleModel, Text: Greeting}
}

// Ask sends prompt to the provider and returns its reply. The only error is
// a ValidationError for an empty or oversized prompt.
func (a *Assistant) Ask(ctx context.Context, prompt string) (model.ChatMessage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return model.ChatMessage{}, apperr.Validation("message is required")
	}
	if len(prompt) > maxPromptLength {
		return model.ChatMessage{}, apperr.Validation("message exceeds %d characters", maxPromptLength)
	}

	text := a.ask(ctx, prompt)
	return model.ChatMessage{Role: model.ChatRoleModel, Text: text}, nil
}

func (a *Assistant) ask(ctx context.Context, prompt string) string {
	if a.provider == nil {
		a.logger.Warn("assistant provider not configured")
		a.recorder.AssistantRequest("none", OutcomeUnconfigured, 0)
		return UnconfiguredReply
	}

	name := a.provider.Name()
	if a.limiter != nil && !a.limiter.Allow() {
		a.logger.Warn("assistant request rate limited", zap.String("provider", name))
		a.recorder.AssistantRequest(name, OutcomeRateLimited, 0)
		return FailureReply
	}

	start := time.Now()
	reply, err := a.breaker.Execute(func() (string, error) {
		callCtx := ctx
		if a.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}
		return a.provider.Generate(callCtx, SystemInstruction, prompt)
	})
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		a.logger.Warn("assistant circuit open, skipping provider", zap.String("provider", name))
		a.recorder.AssistantRequest(name, OutcomeCircuitOpen, elapsed)
		return FailureReply
	case err != nil:
		a.logger.Error("assistant provider request failed",
			zap.Error(err),
			zap.String("provider", name),
			zap.Duration("elapsed", elapsed),
		)
		a.recorder.AssistantRequest(name, OutcomeError, elapsed)
		return FailureReply
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		a.recorder.AssistantRequest(name, OutcomeEmpty, elapsed)
		return EmptyReply
	}

	a.logger.Info("assistant reply generated",
		zap.String("provider", name),
		zap.Duration("elapsed", elapsed),
		zap.Int("reply_length", len(reply)),
	)
	a.recorder.AssistantRequest(name, OutcomeOK, elapsed)
	return reply
}

// NewProvider builds the provider named by kind: "gemini", "azure_openai"
// or "none". Missing credentials yield a nil provider.
func NewProvider(ctx context.Context, kind string, creds Credentials, logger *zap.Logger) (Provider, error) {
	switch kind {
	case "", "gemini":
		if creds.GeminiAPIKey == "" {
			logger.Warn("API_KEY not found in environment variables, assistant disabled")
			return nil, nil
		}
		p, err := NewGeminiProvider(ctx, creds.GeminiAPIKey, creds.GeminiModel, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "azure_openai":
		if creds.OpenAIEndpoint == "" || creds.OpenAIAPIKey == "" {
			logger.Warn("Azure OpenAI credentials not set, assistant disabled")
			return nil, nil
		}
		p, err := NewOpenAIProvider(creds.OpenAIEndpoint, creds.OpenAIAPIKey, creds.OpenAIDeployment, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", kind)
	}
}

// Credentials holds the secrets of every supported provider
type Credentials struct {
	GeminiAPIKey     string
	GeminiModel      string
	OpenAIEndpoint   string
	OpenAIAPIKey     string
	OpenAIDeployment string
}
