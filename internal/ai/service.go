package ai

import (
	"context"
	"fmt"
	"time"

	"resumegate/internal/config"
	"resumegate/internal/errors"
	"resumegate/internal/types"
)

// Service handles AI operations for resume review
type Service struct {
	Provider AIProvider // Exported for access from server package
	config   *config.OperationAIConfig
	logger   *errors.Logger
}

// NewService creates a new AI service instance with configuration for a specific operation
func NewService(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (*Service, error) {
	var provider AIProvider
	var err error

	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"operation_type", operationType,
		"model", cfg.Model,
		"temperature", *cfg.Temperature,
		"timeout", *cfg.Timeout,
		"api_key_configured", cfg.APIKey != "")

	switch cfg.Provider {
	case "gemini":
		provider, err = NewGeminiProvider(cfg, operationType, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}

	if err != nil {
		return nil, err
	}

	return NewServiceWithProvider(provider, cfg, logger), nil
}

// NewServiceWithProvider wraps an already constructed provider
func NewServiceWithProvider(provider AIProvider, cfg *config.OperationAIConfig, logger *errors.Logger) *Service {
	return &Service{
		Provider: provider,
		config:   cfg,
		logger:   logger,
	}
}

// ReviewResume asks the provider for a review and logs the outcome.
// Exactly one call is made; failures are returned as *errors.AppError.
func (s *Service) ReviewResume(ctx context.Context, resumeText string) (types.ResumeReview, error) {
	review, _, err := s.ReviewResumeWithUsage(ctx, resumeText)
	return review, err
}

// ReviewResumeWithUsage is ReviewResume plus the token usage the provider reported
func (s *Service) ReviewResumeWithUsage(ctx context.Context, resumeText string) (types.ResumeReview, *TokenUsage, error) {
	start := time.Now()
	review, usage, err := s.Provider.ReviewResume(ctx, resumeText)
	duration := time.Since(start)

	if err != nil {
		s.logger.LogError(err, "Resume review failed",
			"duration", duration,
			"text_length", len(resumeText))
		return types.ResumeReview{}, nil, err
	}

	args := []any{"duration", duration, "status", review.Status}
	if usage != nil {
		args = append(args, "tokens_total", usage.TotalTokens)
	}
	s.logger.Info("Resume review completed", args...)

	return review, usage, nil
}

// GetModelInfo returns information about the AI model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// CircuitBreakerStats returns breaker statistics when the provider exposes them
func (s *Service) CircuitBreakerStats() map[string]any {
	if reporter, ok := s.Provider.(BreakerReporter); ok {
		return reporter.GetCircuitBreakerStats()
	}
	return nil
}

// Close releases provider resources
func (s *Service) Close() error {
	return s.Provider.Close()
}
