// Package spreadsheet appends flattened records to a tabular sheet whose first
// row holds the column names.
package spreadsheet

import (
	"context"
	"fmt"
	"strings"

	"resumegate/internal/config"
	"resumegate/internal/errors"
)

// Store is the range-level contract every spreadsheet backend implements.
// Row 1 of a sheet is its header.
type Store interface {
	// ReadHeader returns row 1 of sheet. A missing or empty row yields an empty slice.
	ReadHeader(ctx context.Context, sheet string) ([]string, error)

	// WriteHeader overwrites row 1 of sheet.
	WriteHeader(ctx context.Context, sheet string, header []string) error

	// AppendRow adds row after the last non-empty row of sheet.
	AppendRow(ctx context.Context, sheet string, row []any) error
}

// Backend names accepted in sheets.backend.
const (
	BackendGoogle = "google"
	BackendXLSX   = "xlsx"
	BackendMemory = "memory"
)

// NewStore builds the backend selected by cfg.Backend.
func NewStore(ctx context.Context, cfg *config.SheetsConfig, logger *errors.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendGoogle:
		return NewGoogleStore(ctx, cfg, logger)
	case BackendXLSX:
		return NewXLSXStore(cfg.XLSXPath, logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported sheets backend: %q", cfg.Backend), nil)
	}
}

// quoteSheetName renders a sheet title for use in A1 notation.
func quoteSheetName(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// headerRange is the A1 range covering the whole first row of sheet.
func headerRange(sheet string) string {
	return quoteSheetName(sheet) + "!1:1"
}
