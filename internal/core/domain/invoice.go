package domain

import "time"

type InvoiceStatus string

const (
	StatusReceived   InvoiceStatus = "received"
	StatusValidating InvoiceStatus = "validating"
	StatusValidated  InvoiceStatus = "validated"
	StatusFailed     InvoiceStatus = "failed"
)

// LineItem is a single billed position on an invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// Invoice is the structured record produced by extraction. The
// validation core treats it as read-only: checks annotate it with
// findings, they never repair or normalize the data.
type Invoice struct {
	InvoiceNumber string     `json:"invoice_number"`
	VendorName    string     `json:"vendor_name"`
	VendorABN     string     `json:"vendor_abn,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	IssueDate     time.Time  `json:"issue_date"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	LineItems     []LineItem `json:"line_items"`
	Subtotal      float64    `json:"subtotal"`
	TaxAmount     float64    `json:"tax_amount"`
	TotalAmount   float64    `json:"total_amount"`
	Notes         string     `json:"notes,omitempty"`
	RawText       string     `json:"raw_text,omitempty"`
}

// InvoiceRecord wraps an extracted invoice with processing metadata for
// persistence and the async worker flow.
type InvoiceRecord struct {
	ID        string        `json:"id"`
	Filename  string        `json:"filename"`
	Invoice   Invoice       `json:"invoice"`
	Status    InvoiceStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BatchResult pairs one invoice with its report, in batch input order.
type BatchResult struct {
	Invoice Invoice `json:"invoice"`
	Report  Report  `json:"report"`
}

// BatchSummary aggregates counters over a processed batch.
type BatchSummary struct {
	Processed  int     `json:"processed"`
	Passed     int     `json:"passed"`
	Warned     int     `json:"warned"`
	Failed     int     `json:"failed"`
	TotalValue float64 `json:"total_value"`
}

func Summarize(results []BatchResult) BatchSummary {
	summary := BatchSummary{Processed: len(results)}
	for _, result := range results {
		summary.TotalValue += result.Invoice.TotalAmount
		switch result.Report.Status {
		case StatusPass:
			summary.Passed++
		case StatusWarn:
			summary.Warned++
		case StatusFail:
			summary.Failed++
		}
	}
	return summary
}
