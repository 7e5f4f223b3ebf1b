package intake

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"resumegate/internal/config"
	"resumegate/internal/errors"
	"resumegate/internal/types"
)

// Defaults applied when Options leaves a limit at zero
const (
	DefaultMaxFileSize   int64 = 5 * 1024 * 1024
	DefaultMinTextLength       = 100
)

// TextExtractor turns an uploaded document into plain text
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Reviewer produces a structured review from resume text
type Reviewer interface {
	ReviewResume(ctx context.Context, resumeText string) (types.ResumeReview, error)
}

// Options holds the intake limits
type Options struct {
	MaxFileSize   int64
	MinTextLength int
}

// Pipeline runs an upload through the intake gates. The first failing gate
// ends the run; nothing is retried.
type Pipeline struct {
	passkeys  config.PasskeySource
	extractor TextExtractor
	reviewer  Reviewer
	opts      Options
	logger    *errors.Logger
}

// NewPipeline creates an intake pipeline
func NewPipeline(passkeys config.PasskeySource, extractor TextExtractor, reviewer Reviewer, opts Options, logger *errors.Logger) *Pipeline {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = DefaultMinTextLength
	}
	return &Pipeline{
		passkeys:  passkeys,
		extractor: extractor,
		reviewer:  reviewer,
		opts:      opts,
		logger:    logger,
	}
}

// MaxFileSize returns the configured upload limit
func (p *Pipeline) MaxFileSize() int64 {
	return p.opts.MaxFileSize
}

// Run checks the passkey and then reviews the uploaded file
func (p *Pipeline) Run(ctx context.Context, sub *Submission) (types.ResumeReview, error) {
	expected := ""
	if p.passkeys != nil {
		expected = p.passkeys.Passkey()
	}
	if !PasskeyMatches(expected, sub.Field(FieldPasskey)) {
		return types.ResumeReview{}, errors.NewAuthError(errors.ErrCodeInvalidPasskey,
			"passkey missing or incorrect", nil)
	}

	if !sub.HasFile() {
		return types.ResumeReview{}, errors.NewValidationError(errors.ErrCodeNoFile,
			"no file uploaded", nil)
	}

	return p.Analyze(ctx, sub.Filename, sub.File,
		sub.Field(FieldStudentName), sub.Field(FieldStudentEmail))
}

// Analyze runs the file gates, extraction and review for an already
// authorised upload, then backfills the student's name and email.
func (p *Pipeline) Analyze(ctx context.Context, filename string, data []byte, studentName, studentEmail string) (types.ResumeReview, error) {
	if filename == "" || len(data) == 0 {
		return types.ResumeReview{}, errors.NewValidationError(errors.ErrCodeNoFile,
			"no file uploaded", nil)
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return types.ResumeReview{}, errors.NewValidationError(errors.ErrCodeInvalidFileType,
			"only PDF files are accepted", nil).WithContext("filename", filename)
	}

	if int64(len(data)) > p.opts.MaxFileSize {
		return types.ResumeReview{}, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("file exceeds %d bytes", p.opts.MaxFileSize), nil).WithContext("filename", filename)
	}

	text, err := p.extractor.Extract(ctx, data)
	if err != nil {
		return types.ResumeReview{}, errors.NewValidationError(errors.ErrCodePDFExtraction,
			"failed to extract text from PDF", err).WithContext("filename", filename)
	}

	text = strings.TrimSpace(text)
	if length := utf8.RuneCountInString(text); length < p.opts.MinTextLength {
		return types.ResumeReview{}, errors.NewValidationError(errors.ErrCodeInsufficientText,
			fmt.Sprintf("extracted text has %d characters, need at least %d", length, p.opts.MinTextLength), nil).
			WithContext("filename", filename)
	}

	p.logger.Debug("Resume text extracted",
		"filename", filename,
		"bytes", len(data),
		"characters", utf8.RuneCountInString(text))

	review, err := p.reviewer.ReviewResume(ctx, text)
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return types.ResumeReview{}, err
		}
		return types.ResumeReview{}, errors.NewAIError(errors.ErrCodeAIAnalysisFailed,
			"resume review failed", err)
	}

	review.Backfill(studentName, studentEmail)
	return review, nil
}

// PasskeyMatches compares passkeys in constant time. An empty expected
// passkey matches nothing.
func PasskeyMatches(expected, provided string) bool {
	if expected == "" || provided == "" {
		return false
	}
	want := sha256.Sum256([]byte(expected))
	got := sha256.Sum256([]byte(provided))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}
