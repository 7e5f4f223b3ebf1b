package ai

import (
	"context"
	"fmt"
	"testing"
	"time"

	"resumegate/internal/config"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func breakerConfig(minRequests uint32, threshold float64) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider: "gemini",
		Model:    "test-model",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			MinRequests:      minRequests,
			FailureThreshold: threshold,
		},
	}
}

func TestCircuitBreakerConfigurationMapping(t *testing.T) {
	cb := NewAICircuitBreaker("review", breakerConfig(5, 0.8), nil)
	require.NotNil(t, cb)

	stats := cb.GetStats()
	assert.Equal(t, "AI-review", stats["name"])
	assert.Equal(t, "closed", stats["state"])
	assert.Equal(t, true, stats["enabled"])
	assert.True(t, cb.IsHealthy())

	model := NewModelCircuitBreaker("review", breakerConfig(5, 0.8), nil)
	require.NotNil(t, model)
	assert.Equal(t, "AI-Model-review", model.GetStats()["name"])
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cfg := &config.OperationAIConfig{Provider: "gemini", Model: "test-model"}

	cb := NewAICircuitBreaker("review", cfg, nil)
	assert.Nil(t, cb)
	assert.Nil(t, NewModelCircuitBreaker("review", cfg, nil))

	// A nil breaker passes calls straight through
	calls := 0
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		calls++
		return nil, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, cb.IsHealthy())
	assert.Equal(t, map[string]any{"enabled": false}, cb.GetStats())
}

func TestCircuitBreakerTripsAfterFailures(t *testing.T) {
	cb := NewAICircuitBreaker("review", breakerConfig(2, 0.5), newTestLogger())
	require.NotNil(t, cb)

	calls := 0
	failing := func() (*genai.GenerateContentResponse, error) {
		calls++
		return nil, fmt.Errorf("upstream unavailable")
	}

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(failing)
		require.Error(t, err)
	}
	assert.False(t, cb.IsHealthy())

	_, err := cb.Execute(failing)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls, "open breaker must not reach the service")
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewAICircuitBreaker("review", breakerConfig(1, 0.1), nil)
	require.NotNil(t, cb)

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (*genai.GenerateContentResponse, error) {
			return nil, fmt.Errorf("request aborted: %w", context.Canceled)
		})
	}
	assert.True(t, cb.IsHealthy())
}
