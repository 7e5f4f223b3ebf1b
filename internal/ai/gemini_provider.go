package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resumegate/internal/config"
	resumegateErrors "resumegate/internal/errors"
	"resumegate/internal/types"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// modelCheckTimeout bounds the model availability probe used by health checks
const modelCheckTimeout = 10 * time.Second

// modelsAPI is the subset of *genai.Models the provider calls
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// GeminiProvider implements AIProvider for Google Gemini
type GeminiProvider struct {
	models         modelsAPI
	prompt         string
	schema         *genai.Schema
	config         *config.OperationAIConfig
	circuitBreaker *AICircuitBreaker
	modelBreaker   *ModelCircuitBreaker
	logger         *resumegateErrors.Logger
}

// Ensure GeminiProvider implements AIProvider
var _ AIProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini provider instance for a specific operation.
// A missing API key is not an error here; every review then fails with AI_CONFIG_ERROR.
func NewGeminiProvider(cfg *config.OperationAIConfig, operationType string, logger *resumegateErrors.Logger) (*GeminiProvider, error) {
	prompt, err := cfg.ResolvePrompt()
	if err != nil {
		return nil, resumegateErrors.NewConfigError(resumegateErrors.ErrCodeInvalidConfig,
			"Failed to load review prompt", err)
	}

	g := &GeminiProvider{
		prompt:         prompt,
		schema:         ReviewSchema(),
		config:         cfg,
		circuitBreaker: NewAICircuitBreaker(operationType, cfg, logger),
		modelBreaker:   NewModelCircuitBreaker(operationType, cfg, logger),
		logger:         logger,
	}

	if cfg.APIKey == "" {
		logger.Warn("Gemini API key is not configured, resume reviews will fail",
			"operation_type", operationType,
			"model", cfg.Model)
		return g, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Timeout != nil {
		clientConfig.HTTPClient = &http.Client{Timeout: *cfg.Timeout}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, resumegateErrors.NewAIError(resumegateErrors.ErrCodeAIConfig,
			"Failed to create Gemini client", err)
	}
	g.models = client.Models

	return g, nil
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      g.config.Model,
		Available: false,
	}

	if g.models == nil {
		modelInfo.Error = "API key is not configured"
		return modelInfo
	}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", g.config.Provider,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	modelInfo.DisplayName = model.DisplayName
	modelInfo.Version = model.Version

	g.logger.Debug("Model availability check successful",
		"model", g.config.Model,
		"provider", g.config.Provider,
		"display_name", modelInfo.DisplayName,
		"version", modelInfo.Version)

	return modelInfo
}

// ReviewResume implements AIProvider. One request is made per call; a
// response that fails schema validation is reported as AI_ANALYSIS_FAILED.
func (g *GeminiProvider) ReviewResume(ctx context.Context, resumeText string) (types.ResumeReview, *TokenUsage, error) {
	tracer := otel.Tracer("resumegate.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini.review_resume")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Int("input.resume_length", len(resumeText)),
	)

	fail := func(err error) (types.ResumeReview, *TokenUsage, error) {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return types.ResumeReview{}, nil, err
	}

	if g.models == nil {
		return fail(resumegateErrors.NewAIError(resumegateErrors.ErrCodeAIConfig,
			"Gemini API key is not configured", nil))
	}

	callCtx := ctx
	if g.config.Timeout != nil && *g.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, *g.config.Timeout)
		defer cancel()
	}

	prompt := buildReviewPrompt(g.prompt, resumeText)
	genaiConfig := g.buildReviewConfig()

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.models.GenerateContent(callCtx, g.config.Model, genai.Text(prompt), genaiConfig)
	})
	if err != nil {
		return fail(classifyError(err))
	}

	review, err := DecodeReview(result.Text(), g.schema)
	if err != nil {
		return fail(resumegateErrors.NewAIError(resumegateErrors.ErrCodeAIAnalysisFailed,
			"AI response did not match the review schema", err))
	}

	tokenUsage := extractTokenUsage(result)
	if tokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", tokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", tokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", tokenUsage.TotalTokens),
		)
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.String("review.status", review.Status),
	)
	return review, tokenUsage, nil
}

// buildReviewConfig creates the generation config carrying the review schema
func (g *GeminiProvider) buildReviewConfig() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   g.schema,
	}

	if g.config.Temperature != nil && *g.config.Temperature > 0 {
		config.Temperature = g.config.Temperature
	}

	return config
}

// classifyError maps a failed completion call onto the intake error taxonomy
func classifyError(err error) *resumegateErrors.AppError {
	status, statusText := apiStatus(err)
	message := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return resumegateErrors.NewAIError(resumegateErrors.ErrCodeAIAnalysisFailed,
			"AI service temporarily unavailable (circuit breaker open)", err)
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		strings.Contains(message, "api key"), strings.Contains(message, "api_key"):
		return resumegateErrors.NewAIError(resumegateErrors.ErrCodeAIConfig,
			"AI service rejected the configured credentials", err).WithContext("status_code", status)
	case status == http.StatusTooManyRequests, statusText == "RESOURCE_EXHAUSTED",
		strings.Contains(message, "rate limit"), strings.Contains(message, "resource_exhausted"):
		return resumegateErrors.NewAIError(resumegateErrors.ErrCodeRateLimit,
			"AI service rate limit exceeded", err).WithContext("status_code", status)
	case status == 0 && resumegateErrors.IsNetworkError(err):
		return resumegateErrors.NewNetworkError(resumegateErrors.ErrCodeAIAnalysisFailed,
			"AI service unreachable", err)
	default:
		return resumegateErrors.NewAIError(resumegateErrors.ErrCodeAIAnalysisFailed,
			"Failed to generate resume review", err).WithContext("status_code", status)
	}
}

// apiStatus extracts the HTTP status and canonical status name from API errors
func apiStatus(err error) (int, string) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status
	}
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return googleErr.Code, ""
	}
	return 0, ""
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	stats := map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetStats(),
	}

	stats["overall_healthy"] = g.circuitBreaker.IsHealthy() && g.modelBreaker.IsHealthy()
	return stats
}

// Close implements AIProvider interface
func (g *GeminiProvider) Close() error {
	// The genai client holds no long-lived connections in single-shot usage
	return nil
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
