package common

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"resumegate/internal/ai"
	"resumegate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sizeReport struct {
	File  string `json:"file"`
	Bytes int    `json:"bytes"`
}

func sizeCommand(opErr error) FileCommand[InputFile, sizeReport] {
	return FileCommand[InputFile, sizeReport]{
		Extensions: []string{".pdf"},
		CreateInput: func(files []InputFile) (InputFile, error) {
			if len(files) != 1 {
				return InputFile{}, fmt.Errorf("expected 1 file, got %d", len(files))
			}
			return files[0], nil
		},
		Operation: func(ctx context.Context, in InputFile) (sizeReport, *ai.TokenUsage, error) {
			if opErr != nil {
				return sizeReport{}, nil, opErr
			}
			return sizeReport{File: filepath.Base(in.Name), Bytes: len(in.Data)},
				&ai.TokenUsage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}, nil
		},
	}
}

func TestRunFileCommandWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "resume.pdf")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.7"), 0600))
	output := filepath.Join(dir, "out", "report.json")

	err := RunFileCommand(context.Background(), errors.NewNopLogger(),
		CommandConfig{OutputFile: output, OutputFormat: "json"}, []string{input}, sizeCommand(nil))
	require.NoError(t, err)

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	var report sizeReport
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, sizeReport{File: "resume.pdf", Bytes: 8}, report)
}

func TestRunFileCommandMissingFile(t *testing.T) {
	err := RunFileCommand(context.Background(), errors.NewNopLogger(),
		CommandConfig{OutputFormat: "json"}, []string{filepath.Join(t.TempDir(), "nope.pdf")}, sizeCommand(nil))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInputFile, errors.CodeOf(err))
}

func TestRunFileCommandOperationError(t *testing.T) {
	input := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0600))

	opErr := errors.NewValidationError(errors.ErrCodeInsufficientText, "too short", nil)
	err := RunFileCommand(context.Background(), errors.NewNopLogger(),
		CommandConfig{OutputFormat: "json"}, []string{input}, sizeCommand(opErr))
	assert.ErrorIs(t, err, opErr)
}

func TestReadFileReturnsRawBytes(t *testing.T) {
	input := filepath.Join(t.TempDir(), "blob.pdf")
	data := []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff}
	require.NoError(t, os.WriteFile(input, data, 0600))

	got, err := NewFileProcessor(nil).ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = NewFileProcessor(nil).ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.CodeOf(err))
}
