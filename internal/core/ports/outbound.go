package ports

import (
	"context"
	"io"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

// AuditRepository persists invoice records and their reports.
type AuditRepository interface {
	Create(ctx context.Context, record *domain.InvoiceRecord) error
	GetByID(ctx context.Context, id string) (*domain.InvoiceRecord, error)
	UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus, errMessage string) error
	SaveExtraction(ctx context.Context, id string, invoice domain.Invoice) error
	SaveReport(ctx context.Context, id string, report domain.Report) error
	GetReport(ctx context.Context, id string) (*domain.Report, error)

	// KnownInvoiceNumbers returns the invoice numbers of every stored
	// record except excludeID, for store-wide duplicate detection.
	KnownInvoiceNumbers(ctx context.Context, excludeID string) (map[string]struct{}, error)
}

// MessageQueue publishes/consumes invoice-received events.
type MessageQueue interface {
	PublishInvoiceReceived(ctx context.Context, recordID string) error
	SubscribeInvoiceReceived(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor pulls plain text out of a raw uploaded document.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, body io.Reader) (string, error)
}

// InvoiceExtractor turns free invoice text into a structured record.
// Output is untrusted; the rule validator assumes any field may be
// absent or malformed.
type InvoiceExtractor interface {
	ExtractInvoice(ctx context.Context, text string) (domain.Invoice, error)
}

// SemanticAnalyzer submits invoice fields/notes to the external
// pattern-recognition service and returns its concerns. All
// non-determinism of the pipeline lives behind this contract.
type SemanticAnalyzer interface {
	Analyze(ctx context.Context, invoice domain.Invoice) ([]domain.SemanticConcern, error)
}

// ReportExporter renders batch results for external consumers.
type ReportExporter interface {
	Export(results []domain.BatchResult) ([]byte, error)
}
