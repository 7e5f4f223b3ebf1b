package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	resumegateErrors "resumegate/internal/errors"
)

// defaultHealthCheckTimeout applies when no health check timeout is configured
const defaultHealthCheckTimeout = 10 * time.Second

type intakeErrorEntry struct {
	status  int
	title   string
	message string
}

// intakeErrorCatalog maps intake error codes to their HTTP status and public text
var intakeErrorCatalog = map[string]intakeErrorEntry{
	resumegateErrors.ErrCodeMethodNotAllowed: {
		http.StatusMethodNotAllowed, "Method not allowed",
		"Only POST requests are supported",
	},
	resumegateErrors.ErrCodeInvalidPasskey: {
		http.StatusUnauthorized, "Invalid passkey",
		"The provided passkey is incorrect. Please contact admin for access.",
	},
	resumegateErrors.ErrCodeNoFile: {
		http.StatusBadRequest, "No file uploaded",
		"Please select a PDF file to upload",
	},
	resumegateErrors.ErrCodeInvalidFileType: {
		http.StatusBadRequest, "Only PDF files are allowed",
		"Please upload a PDF file. Other file types are not supported.",
	},
	resumegateErrors.ErrCodeFileTooLarge: {
		http.StatusBadRequest, "File size must be less than 5MB",
		"File size exceeds 5MB limit. Please upload a smaller file.",
	},
	resumegateErrors.ErrCodePDFExtraction: {
		http.StatusBadRequest, "Failed to extract text from PDF",
		"Unable to read the PDF file. The file may be corrupted or password-protected.",
	},
	resumegateErrors.ErrCodeInsufficientText: {
		http.StatusBadRequest, "Could not extract text from PDF or text too short",
		"The PDF appears to be empty or contains insufficient text to analyze. Please ensure the resume has readable text content.",
	},
	resumegateErrors.ErrCodeAIConfig: {
		http.StatusInternalServerError, "AI service configuration error",
		"The AI analysis service is not properly configured. Please contact the administrator.",
	},
	resumegateErrors.ErrCodeRateLimit: {
		http.StatusTooManyRequests, "Rate limit exceeded",
		"Too many requests. Please try again in a few minutes.",
	},
	resumegateErrors.ErrCodeAIAnalysisFailed: {
		http.StatusInternalServerError, "AI analysis failed",
		"Failed to analyze the resume. Please try again or contact support if the issue persists.",
	},
	resumegateErrors.ErrCodeInternal: {
		http.StatusInternalServerError, "Internal server error",
		"An unexpected error occurred. Please try again later.",
	},
}

// intakeCode returns the public error type for err. Anything outside the
// intake catalog is reported as INTERNAL_ERROR.
func intakeCode(err error) string {
	code := resumegateErrors.CodeOf(err)
	if _, ok := intakeErrorCatalog[code]; ok {
		return code
	}
	return resumegateErrors.ErrCodeInternal
}

// writeIntakeError writes the catalog response for err. Internal details are
// only included in development mode.
func (s *Server) writeIntakeError(w http.ResponseWriter, err error) {
	code := intakeCode(err)
	entry := intakeErrorCatalog[code]

	response := ErrorResponse{
		Error:     entry.title,
		ErrorType: code,
		Message:   entry.message,
	}
	if code == resumegateErrors.ErrCodeInternal && s.AppConfig != nil && s.AppConfig.App.IsDevelopment() {
		response.Details = err.Error()
	}

	writeJSON(w, entry.status, response)
}

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig == nil || s.AppConfig.Observability.HealthCheck.Timeout <= 0 {
		return defaultHealthCheckTimeout
	}
	return s.AppConfig.Observability.HealthCheck.Timeout
}

// healthHandler reports service status including review model availability
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":  "healthy",
		"service": "resumegate",
		"version": s.Version,
	}

	aiStatus, modelAvailable := s.checkAIModelsHealth(r.Context())
	response["ai_models"] = aiStatus
	response["circuit_breakers"] = s.checkCircuitBreakerHealth()
	response["sheets"] = map[string]any{
		"configured": s.Appender != nil,
	}

	status := http.StatusOK
	if !modelAvailable || s.Appender == nil {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

// checkAIModelsHealth checks the review model and reports whether it is available
func (s *Server) checkAIModelsHealth(parent context.Context) (map[string]any, bool) {
	if s.Reviewer == nil {
		return map[string]any{
			"review": map[string]any{
				"available": false,
				"error":     "AI review service is not configured",
			},
		}, false
	}

	ctx, cancel := context.WithTimeout(parent, s.getHealthCheckTimeout())
	defer cancel()

	modelInfo := s.Reviewer.GetModelInfo(ctx)
	available := modelInfo != nil && modelInfo.Available
	return map[string]any{"review": modelInfo}, available
}

// checkCircuitBreakerHealth reports breaker state for the review operation
func (s *Server) checkCircuitBreakerHealth() map[string]any {
	if s.Reviewer == nil {
		return map[string]any{"review": map[string]any{"enabled": false}}
	}

	stats := s.Reviewer.CircuitBreakerStats()
	if stats == nil {
		stats = map[string]any{"enabled": false}
	}
	return map[string]any{"review": stats}
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"service": "resumegate",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes":    s.MaxRequestSize,
			"max_sheet_body_size_bytes": s.MaxSheetBodySize,
		},
		"intake": map[string]any{
			"max_file_size_bytes": s.Intake.MaxFileSize,
			"min_text_length":     s.Intake.MinTextLength,
		},
	}

	response["rate_limiting"] = s.RateLimiter.Stats()

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"window":           s.RateLimit.Window.String(),
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
