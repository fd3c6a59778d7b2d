package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxDocumentBytes bounds how much of an uploaded document is read.
const maxDocumentBytes = 16 << 20

// Extractor pulls plain text out of uploaded invoice documents. PDF
// files go through a real PDF parser, everything else is treated as
// UTF-8 text.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, filename string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", filename, err)
	}

	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		text, err := extractPDF(raw)
		if err != nil {
			return "", fmt.Errorf("extract pdf text from %s: %w", filename, err)
		}
		return text, nil
	}
	return strings.TrimSpace(string(raw)), nil
}

func extractPDF(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
