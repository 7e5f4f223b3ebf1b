package common

import (
	"fmt"
	"slices"

	"resumegate/internal/errors"
	"resumegate/internal/formatters"
)

// SupportedFormats returns the formats that are both configured and have a formatter.
// An empty configured list means every registered format is allowed.
func SupportedFormats(configured []string) []string {
	registered := formatters.GlobalRegistry.GetSupportedFormats()
	if len(configured) == 0 {
		return registered
	}
	var out []string
	for _, f := range configured {
		if slices.Contains(registered, f) && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// ValidateOutputFormat rejects formats that are unconfigured or have no formatter.
// Matching is case-sensitive.
func ValidateOutputFormat(format string, configured []string) error {
	allowed := SupportedFormats(configured)
	if slices.Contains(allowed, format) {
		return nil
	}
	return errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported output format %q, expected one of %v", format, allowed), nil).
		WithContext("format", format)
}
