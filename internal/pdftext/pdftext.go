// Package pdftext extracts plain text from PDF documents held in memory.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is the text content of a parsed PDF
type Document struct {
	Text  string
	Pages int
}

// Extractor turns PDF bytes into plain text
type Extractor struct{}

// NewExtractor creates a PDF text extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of every page, one page per line block
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	doc, err := Parse(ctx, data)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// Parse reads data as a PDF and collects its text. Malformed documents make
// the underlying parser panic in places, so panics are reported as errors.
func Parse(ctx context.Context, data []byte) (doc *Document, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty PDF")
	}

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	doc = &Document{Pages: reader.NumPage()}

	var text strings.Builder
	var firstErr error
	readable := 0
	for i := 1; i <= doc.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", i, err)
			}
			continue
		}
		readable++

		text.WriteString(strings.TrimSpace(pageText))
		text.WriteString("\n")
	}

	if readable == 0 && firstErr != nil {
		return nil, fmt.Errorf("failed to read PDF text: %w", firstErr)
	}

	doc.Text = strings.TrimSpace(text.String())
	return doc, nil
}
