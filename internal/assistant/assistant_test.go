package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

type recordedOutcomes struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recordedOutcomes) AssistantRequest(_ string, outcome Outcome, _ time.Duration) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()
}

func (r *recordedOutcomes) last() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outcomes) == 0 {
		return ""
	}
	return r.outcomes[len(r.outcomes)-1]
}

func unlimited() Config {
	cfg := DefaultConfig()
	cfg.RatePerMinute = 0
	return cfg
}

func TestAssistant_Unconfigured(t *testing.T) {
	rec := &recordedOutcomes{}
	a := New(nil, DefaultConfig(), zap.NewNop(), WithRecorder(rec))

	assert.False(t, a.Configured())
	reply, err := a.Ask(context.Background(), "How am I doing?")
	require.NoError(t, err)
	assert.Equal(t, model.ChatRoleModel, reply.Role)
	assert.Equal(t, UnconfiguredReply, reply.Text)
	assert.Equal(t, OutcomeUnconfigured, rec.last())
}

func TestAssistant_Ask(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		err      error
		want     string
		expected Outcome
	}{
		{name: "reply is trimmed", reply: "  Keep it up!\n", want: "Keep it up!", expected: OutcomeOK},
		{name: "empty reply", reply: "   ", want: EmptyReply, expected: OutcomeEmpty},
		{name: "provider error", err: errors.New("503 service unavailable"), want: FailureReply, expected: OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(MockProvider)
			provider.On("Generate", mock.Anything, SystemInstruction, "Any tips for remembering my pills?").Return(tt.reply, tt.err)
			rec := &recordedOutcomes{}
			a := New(provider, unlimited(), zap.NewNop(), WithRecorder(rec))

			reply, err := a.Ask(context.Background(), "  Any tips for remembering my pills?  ")
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Text)
			assert.Equal(t, tt.expected, rec.last())
			provider.AssertExpectations(t)
		})
	}
}

func TestAssistant_Ask_Validation(t *testing.T) {
	provider := new(MockProvider)
	a := New(provider, unlimited(), zap.NewNop())

	_, err := a.Ask(context.Background(), "   ")
	assert.True(t, apperr.IsValidation(err))

	_, err = a.Ask(context.Background(), strings.Repeat("a", maxPromptLength+1))
	assert.True(t, apperr.IsValidation(err))

	provider.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestAssistant_CircuitBreakerOpens(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("connection refused"))
	rec := &recordedOutcomes{}
	cfg := unlimited()
	cfg.FailureThreshold = 2
	cfg.OpenTimeout = time.Minute
	a := New(provider, cfg, zap.NewNop(), WithRecorder(rec))

	for range 2 {
		reply, err := a.Ask(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, FailureReply, reply.Text)
	}

	reply, err := a.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, FailureReply, reply.Text)
	assert.Equal(t, OutcomeCircuitOpen, rec.last())
	provider.AssertNumberOfCalls(t, "Generate", 2)
}

func TestAssistant_RateLimited(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("Great job!", nil)
	rec := &recordedOutcomes{}
	cfg := DefaultConfig()
	cfg.RatePerMinute = 1
	cfg.Burst = 1
	a := New(provider, cfg, zap.NewNop(), WithRecorder(rec))

	reply, err := a.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Great job!", reply.Text)

	reply, err = a.Ask(context.Background(), "hello again")
	require.NoError(t, err)
	assert.Equal(t, FailureReply, reply.Text)
	assert.Equal(t, OutcomeRateLimited, rec.last())
	provider.AssertNumberOfCalls(t, "Generate", 1)
}

func TestAssistant_Timeout(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)
	rec := &recordedOutcomes{}
	cfg := unlimited()
	cfg.Timeout = 20 * time.Millisecond
	a := New(provider, cfg, zap.NewNop(), WithRecorder(rec))

	reply, err := a.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, FailureReply, reply.Text)
	assert.Equal(t, OutcomeError, rec.last())
}

func TestAssistant_Greeting(t *testing.T) {
	msg := New(nil, DefaultConfig(), zap.NewNop()).Greeting()
	assert.Equal(t, model.ChatRoleModel, msg.Role)
	assert.Equal(t, Greeting, msg.Text)
}

func TestNewOpenAIProvider(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		endpoint   string
		apiKey     string
		deployment string
		wantErr    bool
	}{
		{name: "valid configuration", endpoint: "https://test.openai.azure.com/", apiKey: "test-key", deployment: "gpt-4o"},
		{name: "missing endpoint", apiKey: "test-key", deployment: "gpt-4o", wantErr: true},
		{name: "missing api key", endpoint: "https://test.openai.azure.com/", deployment: "gpt-4o", wantErr: true},
		{name: "missing deployment", endpoint: "https://test.openai.azure.com/", apiKey: "test-key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewOpenAIProvider(tt.endpoint, tt.apiKey, tt.deployment, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.deployment, provider.deployment)
			assert.Equal(t, "azure_openai", provider.Name())
		})
	}
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "", "", zap.NewNop())
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	p, err := NewProvider(ctx, "none", Credentials{GeminiAPIKey: "key"}, logger)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewProvider(ctx, "gemini", Credentials{}, logger)
	require.NoError(t, err)
	assert.Nil(t, p, "missing key disables the assistant")

	p, err = NewProvider(ctx, "azure_openai", Credentials{OpenAIEndpoint: "https://test.openai.azure.com/"}, logger)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewProvider(ctx, "azure_openai", Credentials{
		OpenAIEndpoint:   "https://test.openai.azure.com/",
		OpenAIAPIKey:     "test-key",
		OpenAIDeployment: "gpt-4o",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)

	_, err = NewProvider(ctx, "clippy", Credentials{}, logger)
	assert.Error(t, err)
}
