package pdftext

import (
	"context"
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	extractor := New()

	text, err := extractor.Extract(context.Background(), "invoice.txt", strings.NewReader("  TAX INVOICE INV-001  \n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "TAX INVOICE INV-001" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractUnknownExtensionFallsBackToText(t *testing.T) {
	extractor := New()

	text, err := extractor.Extract(context.Background(), "invoice.md", strings.NewReader("# Invoice INV-002"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "# Invoice INV-002" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractMalformedPDFFails(t *testing.T) {
	extractor := New()

	_, err := extractor.Extract(context.Background(), "invoice.pdf", strings.NewReader("definitely not a pdf"))
	if err == nil {
		t.Fatal("expected error for malformed pdf")
	}
	if !strings.Contains(err.Error(), "invoice.pdf") {
		t.Fatalf("expected filename in error, got %v", err)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	extractor := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := extractor.Extract(ctx, "invoice.txt", strings.NewReader("text")); err == nil {
		t.Fatal("expected context error")
	}
}
