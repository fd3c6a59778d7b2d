package ports

import (
	"context"
	"io"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

// DocumentIngestor is the inbound contract for raw invoice intake.
type DocumentIngestor interface {
	Ingest(ctx context.Context, filename string, body io.Reader) (*domain.InvoiceRecord, error)
}

// InvoiceAuditor validates a single extracted invoice against the rule
// battery and the semantic analyzer.
type InvoiceAuditor interface {
	Audit(ctx context.Context, invoice domain.Invoice, knownNumbers map[string]struct{}) (domain.Report, error)
}

// BatchAuditor runs the validation pipeline over an ordered batch.
type BatchAuditor interface {
	ProcessBatch(ctx context.Context, invoices []domain.Invoice) ([]domain.BatchResult, error)
}

// InvoiceReader is the inbound read model for stored invoice state.
type InvoiceReader interface {
	GetByID(ctx context.Context, id string) (*domain.InvoiceRecord, error)
}

// InvoiceProcessor is the inbound contract for asynchronous validation
// of a previously ingested document.
type InvoiceProcessor interface {
	ProcessByID(ctx context.Context, recordID string) error
}
