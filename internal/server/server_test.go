package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resumegate/internal/ai"
	"resumegate/internal/config"
	resumegateErrors "resumegate/internal/errors"
	"resumegate/internal/intake"
	"resumegate/internal/observability"
	"resumegate/internal/spreadsheet"
	"resumegate/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPasskey = "resume2025"

var (
	longText  = strings.Repeat("Final year student with internship experience. ", 5)
	fixedTime = time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return f.text, f.err
}

type fakeReviewService struct {
	review    types.ResumeReview
	err       error
	panicWith any
	model     *ai.ModelInfo
}

func (f *fakeReviewService) ReviewResumeWithUsage(ctx context.Context, resumeText string) (types.ResumeReview, *ai.TokenUsage, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return types.ResumeReview{}, nil, f.err
	}
	return f.review, &ai.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, nil
}

func (f *fakeReviewService) GetModelInfo(ctx context.Context) *ai.ModelInfo {
	if f.model != nil {
		return f.model
	}
	return &ai.ModelInfo{Name: "gemini-test", Available: true}
}

func (f *fakeReviewService) CircuitBreakerStats() map[string]any {
	return map[string]any{"overall_healthy": true}
}

type testEnv struct {
	server    *Server
	handler   http.Handler
	store     *spreadsheet.MemoryStore
	extractor *fakeExtractor
	reviewer  *fakeReviewService
}

func newTestEnv(t *testing.T, mutate func(cfg *ServerConfig, appCfg *config.Config)) *testEnv {
	t.Helper()

	logger := resumegateErrors.NewNopLogger()
	store := spreadsheet.NewMemoryStore()
	extractor := &fakeExtractor{text: longText}
	reviewer := &fakeReviewService{review: types.ResumeReview{
		PageCount: types.PageCountOne,
		Status:    types.StatusApproved,
		Comments:  "- Looks good",
	}}

	appCfg := &config.Config{App: config.AppConfig{Environment: "production"}}
	cfg := ServerConfig{
		Version:          "test",
		Passkeys:         config.StaticPasskey(testPasskey),
		Extractor:        extractor,
		Reviewer:         reviewer,
		Appender:         spreadsheet.NewAppender(store, "Sheet1", logger, spreadsheet.WithClock(func() time.Time { return fixedTime })),
		MaxRequestSize:   1 << 20,
		MaxSheetBodySize: 1 << 10,
	}
	if mutate != nil {
		mutate(&cfg, appCfg)
	}

	srv := NewServer(appCfg, cfg, logger)
	t.Cleanup(srv.closeRateLimiter)

	om, err := observability.NewObservabilityManager(observability.ObservabilityConfig{Enabled: false}, nil)
	require.NoError(t, err)

	return &testEnv{
		server:    srv,
		handler:   srv.Handler(om),
		store:     store,
		extractor: extractor,
		reviewer:  reviewer,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("resume", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, AnalyzeResumePath, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validUpload(t *testing.T) *http.Request {
	return uploadRequest(t, map[string]string{
		intake.FieldPasskey:      testPasskey,
		intake.FieldStudentName:  "Asha Rao",
		intake.FieldStudentEmail: "asha@example.com",
	}, "resume.pdf", []byte("%PDF-1.4 fake"))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAnalyzeResumeSuccess(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(validUpload(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Resume analyzed successfully", resp.Message)
	assert.Equal(t, "Asha Rao", resp.Form.StudentName)
	assert.Equal(t, "asha@example.com", resp.Form.StudentEmail)
	assert.Equal(t, types.StatusApproved, resp.Form.Status)
}

func TestAnalyzeResumeMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, AnalyzeResumePath, nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "METHOD_NOT_ALLOWED", resp.ErrorType)
	assert.Equal(t, "Method not allowed", resp.Error)
	assert.Equal(t, "Only POST requests are supported", resp.Message)
}

func TestAnalyzeResumeErrors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(env *testEnv)
		request    func(t *testing.T) *http.Request
		wantStatus int
		wantType   string
	}{
		{
			name: "wrong passkey",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, map[string]string{intake.FieldPasskey: "nope"}, "resume.pdf", []byte("x"))
			},
			wantStatus: http.StatusUnauthorized,
			wantType:   "INVALID_PASSKEY",
		},
		{
			name: "not multipart",
			request: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, AnalyzeResumePath, strings.NewReader(`{"passkey":"resume2025"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantStatus: http.StatusUnauthorized,
			wantType:   "INVALID_PASSKEY",
		},
		{
			name: "no file",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, map[string]string{intake.FieldPasskey: testPasskey}, "", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantType:   "NO_FILE",
		},
		{
			name: "wrong file type",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, map[string]string{intake.FieldPasskey: testPasskey}, "resume.docx", []byte("doc"))
			},
			wantStatus: http.StatusBadRequest,
			wantType:   "INVALID_FILE_TYPE",
		},
		{
			name:       "extraction fails",
			setup:      func(env *testEnv) { env.extractor.err = fmt.Errorf("encrypted") },
			request:    validUpload,
			wantStatus: http.StatusBadRequest,
			wantType:   "PDF_EXTRACTION_FAILED",
		},
		{
			name:       "too little text",
			setup:      func(env *testEnv) { env.extractor.text = "short" },
			request:    validUpload,
			wantStatus: http.StatusBadRequest,
			wantType:   "INSUFFICIENT_TEXT",
		},
		{
			name: "ai configuration",
			setup: func(env *testEnv) {
				env.reviewer.err = resumegateErrors.NewAIError(resumegateErrors.ErrCodeAIConfig, "no key", nil)
			},
			request:    validUpload,
			wantStatus: http.StatusInternalServerError,
			wantType:   "AI_CONFIG_ERROR",
		},
		{
			name: "ai rate limited",
			setup: func(env *testEnv) {
				env.reviewer.err = resumegateErrors.NewAIError(resumegateErrors.ErrCodeRateLimit, "quota", nil)
			},
			request:    validUpload,
			wantStatus: http.StatusTooManyRequests,
			wantType:   "RATE_LIMIT",
		},
		{
			name:       "ai plain failure",
			setup:      func(env *testEnv) { env.reviewer.err = fmt.Errorf("boom") },
			request:    validUpload,
			wantStatus: http.StatusInternalServerError,
			wantType:   "AI_ANALYSIS_FAILED",
		},
		{
			name: "uncatalogued error",
			setup: func(env *testEnv) {
				env.reviewer.err = resumegateErrors.NewConfigError(resumegateErrors.ErrCodeInvalidConfig, "bad provider", nil)
			},
			request:    validUpload,
			wantStatus: http.StatusInternalServerError,
			wantType:   "INTERNAL_ERROR",
		},
		{
			name:       "reviewer panics",
			setup:      func(env *testEnv) { env.reviewer.panicWith = "unexpected" },
			request:    validUpload,
			wantStatus: http.StatusInternalServerError,
			wantType:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			if tt.setup != nil {
				tt.setup(env)
			}

			rec := env.do(tt.request(t))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantType, resp.ErrorType)
			assert.Equal(t, intakeErrorCatalog[tt.wantType].title, resp.Error)
			assert.Equal(t, intakeErrorCatalog[tt.wantType].message, resp.Message)
			assert.Empty(t, resp.Details)
		})
	}
}

func TestAnalyzeResumeFileTooLarge(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig, _ *config.Config) {
		cfg.Intake = intake.Options{MaxFileSize: 8}
	})

	req := uploadRequest(t, map[string]string{intake.FieldPasskey: testPasskey}, "resume.pdf", []byte("0123456789"))
	rec := env.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decodeError(t, rec).ErrorType)
}

func TestAnalyzeResumeDetailsInDevelopment(t *testing.T) {
	env := newTestEnv(t, func(_ *ServerConfig, appCfg *config.Config) {
		appCfg.App.Environment = "development"
	})
	env.reviewer.err = resumegateErrors.NewConfigError(resumegateErrors.ErrCodeInvalidConfig, "bad provider", nil)

	rec := env.do(validUpload(t))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.ErrorType)
	assert.Contains(t, resp.Details, "bad provider")
}

func TestAnalyzeResumeWithoutReviewer(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig, _ *config.Config) {
		cfg.Reviewer = nil
	})

	rec := env.do(validUpload(t))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "AI_CONFIG_ERROR", decodeError(t, rec).ErrorType)
}

func sheetRequest(method, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, SheetsAppendPath, nil)
	} else {
		req = httptest.NewRequest(method, SheetsAppendPath, strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder, origin string) {
	t.Helper()
	assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func decodeSheet(t *testing.T, rec *httptest.ResponseRecorder) SheetResponse {
	t.Helper()
	var resp SheetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSheetsAppendSuccess(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(sheetRequest(http.MethodPost, `{"name":"Asha","scores":{"overall":7},"tags":["a","b"],"passed":true}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec, "*")
	assert.Equal(t, SheetResponse{OK: true}, decodeSheet(t, rec))

	rows := env.store.Rows("Sheet1")
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"Timestamp", "name", "scores.overall", "tags", "passed"}, rows[0])
	assert.Equal(t, []any{"2025-03-04T05:06:07.890Z", "Asha", float64(7), `["a","b"]`, true}, rows[1])
}

func TestSheetsAppendEmptyBody(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(sheetRequest(http.MethodPost, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	rows := env.store.Rows("Sheet1")
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"Timestamp"}, rows[0])
	assert.Equal(t, []any{"2025-03-04T05:06:07.890Z"}, rows[1])
}

func TestSheetsAppendPreflight(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig, _ *config.Config) {
		cfg.AllowOrigin = "https://forms.example.com"
	})

	rec := env.do(httptest.NewRequest(http.MethodOptions, SheetsAppendPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assertCORS(t, rec, "https://forms.example.com")
	assert.Empty(t, env.store.Calls())
}

func TestSheetsAppendMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, SheetsAppendPath, nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assertCORS(t, rec, "*")
	assert.Equal(t, SheetResponse{OK: false, Error: "Method not allowed"}, decodeSheet(t, rec))
}

func TestSheetsAppendFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		failOn string
	}{
		{name: "invalid json", body: `{"name":`},
		{name: "array body", body: `[1,2,3]`},
		{name: "scalar body", body: `42`},
		{name: "body too large", body: `{"blob":"` + strings.Repeat("x", 2048) + `"}`},
		{name: "header read fails", body: `{"a":1}`, failOn: "read"},
		{name: "header write fails", body: `{"a":1}`, failOn: "header"},
		{name: "append fails", body: `{"a":1}`, failOn: "append"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.store.FailOn = tt.failOn

			rec := env.do(sheetRequest(http.MethodPost, tt.body))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assertCORS(t, rec, "*")
			assert.Equal(t, SheetResponse{OK: false, Error: "Bad Request"}, decodeSheet(t, rec))
		})
	}
}

func TestSheetsAppendWithoutAppender(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig, _ *config.Config) {
		cfg.Appender = nil
	})

	rec := env.do(sheetRequest(http.MethodPost, `{"a":1}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiting(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig, _ *config.Config) {
		cfg.RateLimit = &config.RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 1,
			BurstCapacity:  1,
			ByIP:           true,
			Window:         time.Minute,
		}
	})

	t.Run("resume endpoint", func(t *testing.T) {
		first := validUpload(t)
		first.RemoteAddr = "203.0.113.7:1234"
		require.Equal(t, http.StatusOK, env.do(first).Code)

		second := validUpload(t)
		second.RemoteAddr = "203.0.113.7:1234"
		rec := env.do(second)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "RATE_LIMIT", decodeError(t, rec).ErrorType)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))

		other := validUpload(t)
		other.RemoteAddr = "198.51.100.1:1234"
		assert.Equal(t, http.StatusOK, env.do(other).Code)
	})

	t.Run("sheet endpoint", func(t *testing.T) {
		first := sheetRequest(http.MethodPost, `{"a":1}`)
		first.RemoteAddr = "192.0.2.10:1"
		require.Equal(t, http.StatusOK, env.do(first).Code)

		second := sheetRequest(http.MethodPost, `{"a":2}`)
		second.RemoteAddr = "192.0.2.10:1"
		rec := env.do(second)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assertCORS(t, rec, "*")
		assert.Equal(t, SheetResponse{OK: false, Error: "Too many requests"}, decodeSheet(t, rec))
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		env := newTestEnv(t, nil)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp["status"])
		assert.Equal(t, "resumegate", resp["service"])
		models := resp["ai_models"].(map[string]any)
		assert.Equal(t, true, models["review"].(map[string]any)["available"])
	})

	t.Run("model unavailable", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.reviewer.model = &ai.ModelInfo{Name: "gemini-test", Available: false, Error: "API key is not configured"}

		rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp["status"])
	})

	t.Run("wrong method", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(httptest.NewRequest(http.MethodPost, "/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestStatsHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "test", resp["version"])
	assert.Equal(t, false, resp["rate_limiting"].(map[string]any)["enabled"])
}

func TestServeStopsWhenContextIsCancelled(t *testing.T) {
	env := newTestEnv(t, nil)
	om, err := observability.NewObservabilityManager(observability.ObservabilityConfig{Enabled: false}, nil)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, listener, om) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}
