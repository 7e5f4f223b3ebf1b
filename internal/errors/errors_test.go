package errors

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewStorageError(ErrCodeSheetWrite, "append failed", cause)

	assert.Equal(t, "SHEET_WRITE_FAILED: append failed (caused by: disk full)", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorTypeStorage, err.Type)

	plain := NewAuthError(ErrCodeInvalidPasskey, "wrong passkey", nil)
	assert.Equal(t, "INVALID_PASSKEY: wrong passkey", plain.Error())
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewValidationError(ErrCodeNoFile, "no file", nil))
	assert.Equal(t, ErrCodeNoFile, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(stderrors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestIsNetworkError(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}

	assert.True(t, IsNetworkError(dial))
	assert.True(t, IsNetworkError(fmt.Errorf("call: %w", &url.Error{Op: "Post", URL: "https://example.com", Err: dial})))
	assert.False(t, IsNetworkError(nil))
	assert.False(t, IsNetworkError(fmt.Errorf("boom")))
	assert.False(t, IsNetworkError(&url.Error{Op: "Post", URL: "https://example.com", Err: context.DeadlineExceeded}))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogErrorExpandsAppError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelDebug)

	err := NewIOError(ErrCodeFileNotFound, "missing", fmt.Errorf("stat failed")).
		WithContext("file", "cv.pdf")
	logger.LogError(err, "read failed", "attempt", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "read failed", entry["msg"])
	assert.Equal(t, "io", entry["error_type"])
	assert.Equal(t, ErrCodeFileNotFound, entry["error_code"])
	assert.Equal(t, "stat failed", entry["cause"])
	assert.Equal(t, "cv.pdf", entry["file"])
	assert.Equal(t, float64(1), entry["attempt"])
}

func TestLogErrorPlainError(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter(&buf, slog.LevelInfo).LogError(stderrors.New("boom"), "failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
}
