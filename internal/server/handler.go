package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	resumegateErrors "resumegate/internal/errors"
	"resumegate/internal/flatten"
	"resumegate/internal/intake"
	"resumegate/internal/observability"
	"resumegate/internal/spreadsheet"
	"resumegate/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// createResumeHandler wraps the intake pipeline with observability
func (s *Server) createResumeHandler(pipeline *intake.Pipeline, om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumegate.api")
		ctx, span := tracer.Start(ctx, "api.analyze_resume")
		defer span.End()

		if r.Method != http.MethodPost {
			span.SetAttributes(attribute.String("error.type", resumegateErrors.ErrCodeMethodNotAllowed))
			s.writeIntakeError(w, resumegateErrors.NewValidationError(resumegateErrors.ErrCodeMethodNotAllowed,
				fmt.Sprintf("method %s not allowed", r.Method), nil))
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				err := resumegateErrors.NewInternalError(resumegateErrors.ErrCodeInternal,
					"unexpected failure while handling upload", fmt.Errorf("panic: %v", rec))
				span.RecordError(err)
				s.Logger.LogError(err, "Recovered from panic in resume handler")
				s.writeIntakeError(w, err)
			}
		}()

		sub := intake.ParseSubmission(r, pipeline.MaxFileSize())
		span.SetAttributes(
			attribute.Bool("request.has_file", sub.HasFile()),
			attribute.Int("request.file_size", len(sub.File)),
			attribute.String("operation", "review"),
		)

		metrics := om.GetMetrics()
		review, err := pipeline.Run(ctx, sub)
		if err != nil {
			code := intakeCode(err)
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", code))
			metrics.RecordBusinessMetric(ctx, observability.MetricIntakeRejected, false, om,
				attribute.String("error_type", code))
			s.Logger.LogError(err, "Resume intake failed",
				"intake_error", code,
				"filename", sub.Filename,
				"client_ip", getClientIP(r))
			s.writeIntakeError(w, err)
			return
		}

		metrics.RecordBusinessMetric(ctx, observability.MetricResumeReviewed, true, om,
			attribute.String("review.status", review.Status))

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.String("review.status", review.Status),
		)

		writeJSON(w, http.StatusOK, AnalyzeResponse{
			Success: true,
			Form:    review,
			Message: "Resume analyzed successfully",
		})
	}
}

// createSheetsHandler wraps the sheet appender with observability. Every
// failure is answered with the same opaque 400.
func (s *Server) createSheetsHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumegate.api")
		ctx, span := tracer.Start(ctx, "api.sheets_append")
		defer span.End()

		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, SheetResponse{OK: false, Error: "Method not allowed"})
			return
		}

		metrics := om.GetMetrics()
		fail := func(err error) {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", resumegateErrors.CodeOf(err)))
			metrics.RecordBusinessMetric(ctx, observability.MetricRowAppended, false, om)
			s.Logger.LogError(err, "Sheet append failed", "client_ip", getClientIP(r))
			writeJSON(w, http.StatusBadRequest, SheetResponse{OK: false, Error: "Bad Request"})
		}

		defer func() {
			if rec := recover(); rec != nil {
				fail(resumegateErrors.NewInternalError(resumegateErrors.ErrCodeInternal,
					"unexpected failure while appending row", fmt.Errorf("panic: %v", rec)))
			}
		}()

		result, err := s.appendRecord(ctx, r)
		if err != nil {
			fail(err)
			return
		}

		sheetAttr := attribute.String("sheet", result.Sheet)
		metrics.RecordBusinessMetric(ctx, observability.MetricRowAppended, true, om, sheetAttr)
		metrics.RecordHeaderColumns(ctx, len(result.AddedColumns), om, sheetAttr)

		span.SetAttributes(
			attribute.Bool("success", true),
			sheetAttr,
			attribute.Int("sheet.columns", len(result.Header)),
			attribute.Int("sheet.added_columns", len(result.AddedColumns)),
		)

		writeJSON(w, http.StatusOK, SheetResponse{OK: true})
	}
}

// appendRecord reads a JSON object from the request and appends it as a row.
// An empty body or a null is an empty record.
func (s *Server) appendRecord(ctx context.Context, r *http.Request) (*spreadsheet.AppendResult, error) {
	if s.Appender == nil {
		return nil, resumegateErrors.NewConfigError(resumegateErrors.ErrCodeInvalidConfig,
			"sheet appender is not configured", nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return nil, resumegateErrors.NewValidationError(resumegateErrors.ErrCodeInvalidRequest,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return nil, resumegateErrors.NewIOError(resumegateErrors.ErrCodeInvalidRequest,
			"failed to read request body", err)
	}

	rec, err := flatten.FlattenObject(body)
	if err != nil {
		return nil, resumegateErrors.NewValidationError(resumegateErrors.ErrCodeInvalidRecord,
			"request body must be a JSON object", err)
	}

	return s.Appender.Append(ctx, rec)
}

// meteredReviewer records AI metrics around each review call
type meteredReviewer struct {
	service ReviewService
	om      *observability.ObservabilityManager
}

// ReviewResume implements intake.Reviewer
func (m *meteredReviewer) ReviewResume(ctx context.Context, resumeText string) (types.ResumeReview, error) {
	if m.service == nil {
		return types.ResumeReview{}, resumegateErrors.NewAIError(resumegateErrors.ErrCodeAIConfig,
			"AI review service is not configured", nil)
	}

	metrics := m.om.GetMetrics()
	metrics.RecordTextLength(ctx, utf8.RuneCountInString(resumeText), m.om)

	var review types.ResumeReview
	err := metrics.TrackAIOperationWithTokens(ctx, "review", func(ctx context.Context) *observability.AIOperationResult {
		output, tokenUsage, aiErr := m.service.ReviewResumeWithUsage(ctx, resumeText)
		review = output
		return &observability.AIOperationResult{
			Error:      aiErr,
			TokenUsage: (*observability.TokenUsage)(tokenUsage),
		}
	}, m.om)

	return review, err
}

// createRateLimitMiddleware adds observability to rate limiting. reject writes
// the endpoint-specific 429 body.
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager, reject func(http.ResponseWriter)) func(http.HandlerFunc) http.HandlerFunc {
	return s.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		metrics := om.GetMetrics()
		metrics.RecordBusinessMetric(r.Context(), observability.MetricRateLimitHit, true, om,
			attribute.String("endpoint", r.URL.Path),
			attribute.String("method", r.Method))
		reject(w)
	})
}

func writeIntakeRateLimited(w http.ResponseWriter) {
	entry := intakeErrorCatalog[resumegateErrors.ErrCodeRateLimit]
	writeJSON(w, entry.status, ErrorResponse{
		Error:     entry.title,
		ErrorType: resumegateErrors.ErrCodeRateLimit,
		Message:   entry.message,
	})
}

func writeSheetRateLimited(w http.ResponseWriter) {
	writeJSON(w, http.StatusTooManyRequests, SheetResponse{OK: false, Error: "Too many requests"})
}
