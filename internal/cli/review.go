package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"resumegate/internal/ai"
	"resumegate/internal/common"
	"resumegate/internal/config"
	"resumegate/internal/intake"
	"resumegate/internal/pdftext"
	"resumegate/internal/types"

	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review [resume.pdf]",
	Short: "Review a local PDF resume",
	Long: `Run a local PDF through the same gates as the upload endpoint (file type,
size, text extraction, minimum text length) and print the structured review.
No passkey is required.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &reviewOutput)
	},
	RunE: runReview,
}

var (
	reviewOutput       commandOutput
	reviewStudentName  string
	reviewStudentEmail string
)

func init() {
	outputFlags(reviewCmd, &reviewOutput)
	reviewCmd.Flags().StringVar(&reviewStudentName, "name", "", "Student name used when the review has none")
	reviewCmd.Flags().StringVar(&reviewStudentEmail, "email", "", "Student email used when the review has none")
}

// reviewInput is a resume read from disk
type reviewInput struct {
	Filename string
	Data     []byte
}

// usageRecorder keeps the token usage of the last review so the command can report it
type usageRecorder struct {
	service *ai.Service

	mu    sync.Mutex
	usage *ai.TokenUsage
}

func (u *usageRecorder) ReviewResume(ctx context.Context, resumeText string) (types.ResumeReview, error) {
	review, usage, err := u.service.ReviewResumeWithUsage(ctx, resumeText)
	u.mu.Lock()
	u.usage = usage
	u.mu.Unlock()
	return review, err
}

func (u *usageRecorder) lastUsage() *ai.TokenUsage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.usage
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	reviewAIConfig := cfg.GetReviewConfig()
	aiService, err := ai.NewService(&reviewAIConfig, "review", logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() {
		if err := aiService.Close(); err != nil {
			logger.Warn("Failed to close AI service", "error", err)
		}
	}()

	recorder := &usageRecorder{service: aiService}
	pipeline := intake.NewPipeline(config.StaticPasskey(""), pdftext.NewExtractor(), recorder, intake.Options{
		MaxFileSize:   cfg.Intake.MaxFileSize,
		MinTextLength: cfg.Intake.MinTextLength,
	}, logger)

	err = common.RunFileCommand(cmd.Context(), logger, reviewOutput, args, common.FileCommand[reviewInput, types.ResumeReview]{
		Extensions: []string{".pdf"},
		CreateInput: func(files []common.InputFile) (reviewInput, error) {
			if len(files) != 1 {
				return reviewInput{}, fmt.Errorf("expected 1 file path, got %d", len(files))
			}
			return reviewInput{Filename: filepath.Base(files[0].Name), Data: files[0].Data}, nil
		},
		LogDetails: func(input reviewInput, out common.CommandConfig) {
			logger.Info("Starting resume review",
				"filename", input.Filename,
				"bytes", len(input.Data),
				"output_format", out.OutputFormat)
		},
		Operation: func(ctx context.Context, input reviewInput) (types.ResumeReview, *ai.TokenUsage, error) {
			review, err := pipeline.Analyze(ctx, input.Filename, input.Data, reviewStudentName, reviewStudentEmail)
			return review, recorder.lastUsage(), err
		},
	})
	if err != nil {
		return fmt.Errorf("failed to review resume: %w", err)
	}

	logger.Info("Resume review completed successfully")
	return nil
}
