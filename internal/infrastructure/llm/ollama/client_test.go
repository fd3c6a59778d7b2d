package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

func newGenerateServer(t *testing.T, response string, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if capture != nil {
			*capture = payload
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
}

func TestAnalyzeParsesConcerns(t *testing.T) {
	var captured map[string]any
	server := newGenerateServer(t, `{"concerns": [{"kind": "unusual_payment_method", "explanation": "asks for gift cards"}]}`, &captured)
	defer server.Close()

	client := New(server.URL, "llama3", Options{})
	analyzer := NewAnalyzer(client)

	concerns, err := analyzer.Analyze(context.Background(), domain.Invoice{
		InvoiceNumber: "INV-77",
		VendorName:    "Acme Supplies",
		TotalAmount:   1100,
		IssueDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Notes:         "Please pay with Apple gift cards",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(concerns) != 1 {
		t.Fatalf("expected 1 concern, got %d", len(concerns))
	}
	if concerns[0].Kind != domain.ConcernUnusualPaymentMethod {
		t.Fatalf("unexpected kind %q", concerns[0].Kind)
	}

	if captured["model"] != "llama3" {
		t.Fatalf("expected model llama3, got %v", captured["model"])
	}
	prompt, _ := captured["prompt"].(string)
	if !strings.Contains(prompt, "INV-77") {
		t.Fatalf("prompt missing invoice number: %q", prompt)
	}
	if !strings.Contains(prompt, "payment_detail_change") {
		t.Fatalf("prompt missing concern vocabulary: %q", prompt)
	}
}

func TestAnalyzeWrapsChatterAroundJSON(t *testing.T) {
	server := newGenerateServer(t, "Here you go:\n{\"concerns\": []}\nLet me know if you need more.", nil)
	defer server.Close()

	analyzer := NewAnalyzer(New(server.URL, "llama3", Options{}))
	concerns, err := analyzer.Analyze(context.Background(), domain.Invoice{InvoiceNumber: "INV-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(concerns) != 0 {
		t.Fatalf("expected no concerns, got %d", len(concerns))
	}
}

func TestAnalyzeServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	analyzer := NewAnalyzer(New(server.URL, "llama3", Options{}))
	_, err := analyzer.Analyze(context.Background(), domain.Invoice{InvoiceNumber: "INV-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !strings.Contains(err.Error(), "model is loading") {
		t.Fatalf("expected server body in error, got %v", err)
	}
}

func TestAnalyzeClientErrorIsNotTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown model", http.StatusNotFound)
	}))
	defer server.Close()

	analyzer := NewAnalyzer(New(server.URL, "llama3", Options{}))
	_, err := analyzer.Analyze(context.Background(), domain.Invoice{InvoiceNumber: "INV-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}

func TestExtractInvoiceMapsFields(t *testing.T) {
	server := newGenerateServer(t, `{
		"invoice_number": " INV-42 ",
		"invoice_date": "2026-03-01",
		"due_date": "30/03/2026",
		"vendor_name": "Acme Supplies",
		"vendor_abn": "51 824 753 556",
		"customer_name": "Widgets Pty Ltd",
		"line_items": [{"description": "Widget", "quantity": 2, "unit_price": 500, "amount": 1000}],
		"subtotal": 1000,
		"tax_amount": 100,
		"total_amount": 1100,
		"notes": "Net 30"
	}`, nil)
	defer server.Close()

	extractor := NewExtractor(New(server.URL, "llama3", Options{}))
	invoice, err := extractor.ExtractInvoice(context.Background(), "TAX INVOICE ...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if invoice.InvoiceNumber != "INV-42" {
		t.Fatalf("expected trimmed invoice number, got %q", invoice.InvoiceNumber)
	}
	if got := invoice.IssueDate; !got.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected issue date %v", got)
	}
	if invoice.DueDate == nil || !invoice.DueDate.Equal(time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected due date %v", invoice.DueDate)
	}
	if len(invoice.LineItems) != 1 || invoice.LineItems[0].Amount != 1000 {
		t.Fatalf("unexpected line items %+v", invoice.LineItems)
	}
	if invoice.TotalAmount != 1100 {
		t.Fatalf("unexpected total %v", invoice.TotalAmount)
	}
}

func TestExtractInvoiceTreatsNullDatesAsMissing(t *testing.T) {
	server := newGenerateServer(t, `{"invoice_number": "INV-9", "invoice_date": "null", "due_date": null, "vendor_name": "Acme"}`, nil)
	defer server.Close()

	extractor := NewExtractor(New(server.URL, "llama3", Options{}))
	invoice, err := extractor.ExtractInvoice(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !invoice.IssueDate.IsZero() {
		t.Fatalf("expected zero issue date, got %v", invoice.IssueDate)
	}
	if invoice.DueDate != nil {
		t.Fatalf("expected nil due date, got %v", invoice.DueDate)
	}
}

func TestParseDateLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2026-03-01":    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		"01/03/2026":    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		"1 March 2026":  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		"March 1, 2026": time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		"not a date":    {},
		"":              {},
	}
	for raw, want := range cases {
		if got := parseDate(raw); !got.Equal(want) {
			t.Fatalf("parseDate(%q) = %v, want %v", raw, got, want)
		}
	}
}
