package ai

import (
	"context"

	"resumegate/internal/types"
)

// AIProvider is a completion service that can produce a structured resume review.
// Token usage may be nil when the backend does not report it.
type AIProvider interface {
	ReviewResume(ctx context.Context, resumeText string) (types.ResumeReview, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}

// BreakerReporter is implemented by providers that guard calls with circuit breakers
type BreakerReporter interface {
	GetCircuitBreakerStats() map[string]any
}
