package common

import (
	"context"
	"fmt"
	"os"

	"resumegate/internal/ai"
	"resumegate/internal/errors"
)

// CreateInputFunc builds the operation input from the named files and their raw contents.
type CreateInputFunc[Input any] func(files []InputFile) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// OperationFunc runs the command. Token usage is nil for operations that do not call a model.
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, *ai.TokenUsage, error)

// FileCommand describes a file-based CLI command
type FileCommand[Input, Output any] struct {
	Extensions  []string // expected input extensions; others only produce a warning
	CreateInput CreateInputFunc[Input]
	Operation   OperationFunc[Input, Output]
	LogDetails  LogDetailsFunc[Input]
}

// RunFileCommand reads the input files, runs the operation, reports token usage
// and writes the formatted result.
func RunFileCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	args []string,
	command FileCommand[Input, Output],
) error {
	fileProcessor := NewFileProcessor(logger)
	outputHandler := NewOutputHandler(logger)

	files, err := fileProcessor.ValidateAndReadFiles(command.Extensions, args...)
	if err != nil {
		return err
	}

	input, err := command.CreateInput(files)
	if err != nil {
		return fmt.Errorf("failed to create input from file contents: %w", err)
	}

	if command.LogDetails != nil {
		command.LogDetails(input, cmdConfig)
	}

	result, tokenUsage, err := command.Operation(ctx, input)
	if err != nil {
		return err
	}

	if tokenUsage != nil {
		if logger != nil {
			logger.Info("AI token usage", "input_tokens", tokenUsage.InputTokens, "output_tokens", tokenUsage.OutputTokens, "total_tokens", tokenUsage.TotalTokens)
		} else {
			fmt.Fprintf(os.Stderr, "AI token usage: input=%d, output=%d, total=%d\n", tokenUsage.InputTokens, tokenUsage.OutputTokens, tokenUsage.TotalTokens)
		}
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
