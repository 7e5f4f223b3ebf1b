package ai

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	"resumegate/internal/config"
	"resumegate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const validReviewJSON = `{
  "student_name": "Asha Rao",
  "student_email": "",
  "page_count": "1",
  "presentation": {"no_errors": true, "links_working": null, "links_blue": null, "full_lines": true,
    "has_github_link": true, "has_coding_platform_link": false, "has_linkedin_link": true,
    "has_portfolio_link": false, "section_comment": "- Add a LeetCode link"},
  "summary": {"concise_score": 4, "problem_open_cp": false, "section_comment": "- Mention open source"},
  "education": {"highlighted": true, "date_format": true, "section_comment": "- Fine"},
  "skills": {"has_programming_languages": true, "has_software_packages": true, "has_problem_solving_ds": false,
    "has_soft_skills": false, "no_buzzwords": true, "section_comment": "- Add DSA"},
  "projects": {"project_count": 2, "categories": {"frontend": true, "backend": true, "fullstack": false,
    "aiml": false, "iot": false, "robotics": false, "research": false, "others": false},
    "others_details": "", "ai_generated": null, "has_project_names": true, "sequence_score": 3,
    "has_links": true, "strong_verbs": false, "section_comment": "- Start bullets with verbs"},
  "experience": {"has_basic_details": true, "has_learnings": false, "has_outcomes": false, "has_soft_skills": false,
    "strong_verbs": true, "description_score": null, "section_comment": "- Add outcomes"},
  "achievements": {"mentions_cp": false, "mentions_opensource": false, "mentions_competitions": true,
    "mentions_volunteering": false, "mentions_other": false, "overall_score": 2, "section_comment": "- Add ranks"},
  "certs": {"has_basic_info": true, "links_work": null, "section_comment": "- Fine"},
  "overall": 6,
  "status": "request_changes",
  "comments": "- Solid start"
}`

func newTestLogger() *errors.Logger {
	return errors.NewNopLogger()
}

// fakeModels stands in for *genai.Models
type fakeModels struct {
	text      string
	err       error
	calls     int
	lastModel string
	lastText  string
	lastCfg   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.lastModel = model
	f.lastCfg = cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.lastText = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 80,
			TotalTokenCount:      200,
		},
	}, nil
}

func (f *fakeModels) Get(ctx context.Context, model string, cfg *genai.GetModelConfig) (*genai.Model, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &genai.Model{Name: model, DisplayName: "Test Model", Version: "001"}, nil
}

func testOperationConfig() *config.OperationAIConfig {
	timeout := 30 * time.Second
	temperature := float32(0.2)
	return &config.OperationAIConfig{
		Provider:    "gemini",
		Model:       "gemini-test",
		Timeout:     &timeout,
		Temperature: &temperature,
	}
}

func newTestProvider(t *testing.T, cfg *config.OperationAIConfig, models modelsAPI) *GeminiProvider {
	t.Helper()
	g, err := NewGeminiProvider(cfg, "review", newTestLogger())
	require.NoError(t, err)
	g.models = models
	return g
}

func TestReviewResumeSuccess(t *testing.T) {
	models := &fakeModels{text: validReviewJSON}
	g := newTestProvider(t, testOperationConfig(), models)

	review, usage, err := g.ReviewResume(context.Background(), "RESUME BODY")
	require.NoError(t, err)

	assert.Equal(t, 1, models.calls)
	assert.Equal(t, "gemini-test", models.lastModel)
	assert.Contains(t, models.lastText, "RESUME BODY")
	assert.NotContains(t, models.lastText, ResumeTextPlaceholder)

	require.NotNil(t, models.lastCfg)
	assert.Equal(t, "application/json", models.lastCfg.ResponseMIMEType)
	require.NotNil(t, models.lastCfg.ResponseSchema)
	assert.Contains(t, models.lastCfg.ResponseSchema.Required, "overall")
	require.NotNil(t, models.lastCfg.Temperature)
	assert.Equal(t, float32(0.2), *models.lastCfg.Temperature)

	assert.Equal(t, "Asha Rao", review.StudentName)
	assert.Equal(t, "request_changes", review.Status)
	require.NotNil(t, review.Overall)
	assert.Equal(t, 6.0, *review.Overall)
	assert.Nil(t, review.Experience.DescriptionScore)

	require.NotNil(t, usage)
	assert.Equal(t, int64(200), usage.TotalTokens)
}

func TestReviewResumeUsesPromptOverride(t *testing.T) {
	cfg := testOperationConfig()
	cfg.Prompt = "Grade this:\n{{resume_text}}\nEnd."
	models := &fakeModels{text: validReviewJSON}
	g := newTestProvider(t, cfg, models)

	_, _, err := g.ReviewResume(context.Background(), "TEXT")
	require.NoError(t, err)
	assert.Equal(t, "Grade this:\nTEXT\nEnd.", models.lastText)
}

func TestReviewResumeMissingAPIKey(t *testing.T) {
	g, err := NewGeminiProvider(testOperationConfig(), "review", newTestLogger())
	require.NoError(t, err)

	_, _, err = g.ReviewResume(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAIConfig, errors.CodeOf(err))

	info := g.GetModelInfo(context.Background())
	assert.False(t, info.Available)
	assert.NotEmpty(t, info.Error)
}

func TestReviewResumeRejectsNonConformingOutput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "not json", text: "Here is your review!"},
		{name: "missing section", text: strings.Replace(validReviewJSON, `"overall": 6,`, "", 1)},
		{name: "score out of range", text: strings.Replace(validReviewJSON, `"overall": 6`, `"overall": 11`, 1)},
		{name: "bad enum", text: strings.Replace(validReviewJSON, `"status": "request_changes"`, `"status": "maybe"`, 1)},
		{name: "null in non-nullable", text: strings.Replace(validReviewJSON, `"no_errors": true`, `"no_errors": null`, 1)},
		{name: "wrong type", text: strings.Replace(validReviewJSON, `"full_lines": true`, `"full_lines": "yes"`, 1)},
		{name: "unknown field", text: strings.Replace(validReviewJSON, `"comments":`, `"extra": 1, "comments":`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := &fakeModels{text: tt.text}
			g := newTestProvider(t, testOperationConfig(), models)

			_, _, err := g.ReviewResume(context.Background(), "text")
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeAIAnalysisFailed, errors.CodeOf(err))
			assert.Equal(t, 1, models.calls, "no retries")
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "genai unauthorized", err: genai.APIError{Code: 401, Status: "UNAUTHENTICATED"}, want: errors.ErrCodeAIConfig},
		{name: "genai forbidden pointer", err: &genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, want: errors.ErrCodeAIConfig},
		{name: "invalid key message", err: genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."}, want: errors.ErrCodeAIConfig},
		{name: "genai quota", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, want: errors.ErrCodeRateLimit},
		{name: "wrapped googleapi 429", err: fmt.Errorf("call failed: %w", &googleapi.Error{Code: 429}), want: errors.ErrCodeRateLimit},
		{name: "rate limit message", err: fmt.Errorf("rate limit reached"), want: errors.ErrCodeRateLimit},
		{name: "server error", err: genai.APIError{Code: 500, Status: "INTERNAL"}, want: errors.ErrCodeAIAnalysisFailed},
		{name: "deadline", err: context.DeadlineExceeded, want: errors.ErrCodeAIAnalysisFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err).Code)
		})
	}
}

func TestClassifyErrorMarksTransportFailures(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}
	appErr := classifyError(&url.Error{Op: "Post", URL: "https://generativelanguage.googleapis.com", Err: dial})

	assert.Equal(t, errors.ErrorTypeNetwork, appErr.Type)
	assert.Equal(t, errors.ErrCodeAIAnalysisFailed, appErr.Code)

	appErr = classifyError(genai.APIError{Code: 500, Status: "INTERNAL"})
	assert.Equal(t, errors.ErrorTypeAI, appErr.Type)
}

func TestReviewResumeAcceptsFractionalRatings(t *testing.T) {
	text := strings.Replace(validReviewJSON, `"overall": 6`, `"overall": 7.5`, 1)
	g := newTestProvider(t, testOperationConfig(), &fakeModels{text: text})

	review, _, err := g.ReviewResume(context.Background(), "text")
	require.NoError(t, err)
	require.NotNil(t, review.Overall)
	assert.Equal(t, 7.5, *review.Overall)
}

func TestReviewResumeUpstreamErrorIsNotRetried(t *testing.T) {
	models := &fakeModels{err: genai.APIError{Code: 503, Status: "UNAVAILABLE"}}
	g := newTestProvider(t, testOperationConfig(), models)

	_, _, err := g.ReviewResume(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAIAnalysisFailed, errors.CodeOf(err))
	assert.Equal(t, 1, models.calls)
}

func TestReviewResumeOpenBreaker(t *testing.T) {
	cfg := testOperationConfig()
	cfg.CircuitBreaker = config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      1,
		FailureThreshold: 0.5,
	}
	models := &fakeModels{err: genai.APIError{Code: 500}}
	g := newTestProvider(t, cfg, models)

	_, _, err := g.ReviewResume(context.Background(), "text")
	require.Error(t, err)

	_, _, err = g.ReviewResume(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAIAnalysisFailed, errors.CodeOf(err))
	assert.Equal(t, 1, models.calls)

	stats := g.GetCircuitBreakerStats()
	assert.Equal(t, false, stats["overall_healthy"])
}

func TestGetModelInfo(t *testing.T) {
	g := newTestProvider(t, testOperationConfig(), &fakeModels{})

	info := g.GetModelInfo(context.Background())
	assert.True(t, info.Available)
	assert.Equal(t, "gemini-test", info.Name)
	assert.Equal(t, "Test Model", info.DisplayName)

	g.models = &fakeModels{err: fmt.Errorf("boom")}
	info = g.GetModelInfo(context.Background())
	assert.False(t, info.Available)
	assert.Contains(t, info.Error, "boom")
}

func TestNewGeminiProviderBadPromptFile(t *testing.T) {
	cfg := testOperationConfig()
	cfg.PromptFile = "/nonexistent/prompt.md"

	_, err := NewGeminiProvider(cfg, "review", newTestLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
}

func TestNewServiceUnsupportedProvider(t *testing.T) {
	cfg := testOperationConfig()
	cfg.Provider = "openai"

	_, err := NewService(cfg, "review", newTestLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
}

func TestServiceReviewResume(t *testing.T) {
	models := &fakeModels{text: validReviewJSON}
	cfg := testOperationConfig()
	svc := NewServiceWithProvider(newTestProvider(t, cfg, models), cfg, newTestLogger())

	review, err := svc.ReviewResume(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", review.StudentName)
	assert.NotNil(t, svc.CircuitBreakerStats())
}

func TestBuildReviewPrompt(t *testing.T) {
	assert.Contains(t, buildReviewPrompt("", "BODY"), "BODY")
	assert.Contains(t, buildReviewPrompt("", "BODY"), "You are a resume reviewer")
	assert.Equal(t, "Check\n\nResume text:\n-----\nBODY\n-----", buildReviewPrompt("Check", "BODY"))
}
