package server

import (
	"net/http"

	"resumegate/internal/intake"
	"resumegate/internal/observability"
)

// Public endpoint paths
const (
	AnalyzeResumePath = "/api/analyze-resume"
	SheetsAppendPath  = "/api/sheets-append"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *http.ServeMux {
	mux := http.NewServeMux()

	pipeline := intake.NewPipeline(s.Passkeys, s.Extractor,
		&meteredReviewer{service: s.Reviewer, om: om}, s.Intake, s.Logger)

	resumeRateLimit := s.createRateLimitMiddleware(om, writeIntakeRateLimited)
	sheetRateLimit := s.createRateLimitMiddleware(om, writeSheetRateLimited)

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc(AnalyzeResumePath,
		resumeRateLimit(
			requestSizeLimitMiddleware(s.MaxRequestSize)(s.createResumeHandler(pipeline, om)),
		),
	)
	mux.HandleFunc(SheetsAppendPath,
		s.corsMiddleware(
			sheetRateLimit(
				requestSizeLimitMiddleware(s.MaxSheetBodySize)(s.createSheetsHandler(om)),
			),
		),
	)

	return mux
}

// corsMiddleware sets the sheet endpoint's CORS headers on every response
// and answers preflight requests itself
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.AllowOrigin)
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// requestSizeLimitMiddleware limits the size of incoming requests
func requestSizeLimitMiddleware(limit int64) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}

			next(w, r)
		}
	}
}
