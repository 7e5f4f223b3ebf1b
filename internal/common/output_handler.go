package common

import (
	"fmt"
	"io"
	"os"
	"strings"

	"resumegate/internal/errors"
	"resumegate/internal/formatters"
	"resumegate/internal/utils"
)

// CommandConfig holds the output destination shared by every command
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
}

// formatByExtension maps output file extensions to the format they imply
var formatByExtension = map[string]string{
	".json":     "json",
	".md":       "markdown",
	".markdown": "markdown",
	".txt":      "text",
}

// InferFormat guesses the output format from the output file's extension.
// It returns "" when the file is unset or the extension is unknown.
func InferFormat(outputFile string) string {
	if outputFile == "" {
		return ""
	}
	return formatByExtension[utils.GetFileExtension(outputFile)]
}

// OutputHandler renders command results and sends them to a file or stdout
type OutputHandler struct {
	files    *FileProcessor
	registry *formatters.FormatterRegistry
	logger   *errors.Logger
	stdout   io.Writer
}

// NewOutputHandler creates an output handler writing to os.Stdout
func NewOutputHandler(logger *errors.Logger) *OutputHandler {
	return &OutputHandler{
		files:    NewFileProcessor(logger),
		registry: formatters.GlobalRegistry,
		logger:   logger,
		stdout:   os.Stdout,
	}
}

// HandleOutput renders data in the configured format. Output always ends with a newline.
func (oh *OutputHandler) HandleOutput(data any, config CommandConfig) error {
	if err := oh.files.ValidateOutputFile(config.OutputFile); err != nil {
		return err
	}

	rendered, err := oh.registry.Format(data, config.OutputFormat)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Failed to render output as %s", config.OutputFormat), err)
	}
	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}

	if config.OutputFile == "" {
		if _, err := io.WriteString(oh.stdout, rendered); err != nil {
			return errors.NewIOError(errors.ErrCodeFileWrite, "Failed to write output", err)
		}
		return nil
	}

	if err := oh.files.WriteFile(config.OutputFile, []byte(rendered)); err != nil {
		return err
	}
	if oh.logger != nil {
		oh.logger.Debug("Output written",
			"file", config.OutputFile, "format", config.OutputFormat, "bytes", len(rendered))
	}
	return nil
}
