package ollama

import (
	"fmt"
	"time"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

const maxSnippet = 4000

func buildAnalysisPrompt(invoice domain.Invoice, now time.Time) string {
	snippet := invoice.RawText
	if snippet == "" {
		snippet = invoice.Notes
	}
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return fmt.Sprintf(`You are an experienced financial auditor reviewing an invoice. Today is %s.

Invoice details:
- Number: %s
- Vendor: %s
- Total: %.2f
- Issue date: %s

Invoice text:
%s

Flag ONLY explicitly concerning patterns. Recognized kinds:
- duplicate_mention: the text itself warns about a duplicate, a resend, or says VOID/CANCELLED
- payment_detail_change: notes mention changed bank account or payment details
- unusual_payment_method: requests for gift cards, cryptocurrency or similar
- other_anomaly: anything else that would genuinely concern an accountant

Do NOT flag round numbers, standard payment terms like Net 30, or high but plausible amounts. Be conservative.

Return strict JSON: {"concerns": [{"kind": "...", "explanation": "..."}]}.
Return an empty concerns array for a normal invoice. No markdown, no extra keys.`,
		now.Format("January 2, 2006"),
		invoice.InvoiceNumber,
		invoice.VendorName,
		invoice.TotalAmount,
		formatDate(invoice.IssueDate),
		snippet,
	)
}

func buildExtractionPrompt(text string) string {
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return `Extract ALL information from this invoice into a JSON object with this EXACT structure:
{
  "invoice_number": "string",
  "invoice_date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD or null",
  "vendor_name": "string",
  "vendor_abn": "string or null",
  "customer_name": "string",
  "line_items": [{"description": "string", "quantity": 0, "unit_price": 0, "amount": 0}],
  "subtotal": 0,
  "tax_amount": 0,
  "total_amount": 0,
  "notes": "any free-text remarks or payment instructions"
}

Use null for anything absent. Return ONLY the JSON object.

Invoice text:
` + snippet
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02")
}
