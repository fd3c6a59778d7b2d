package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
	"github.com/mkazantsev/invoice-auditor/internal/core/ports"
)

// IngestDocumentUseCase takes a raw uploaded document, extracts its
// plain text, stores the pending record and hands it to the worker
// queue. Structured extraction and validation happen asynchronously.
type IngestDocumentUseCase struct {
	repo      ports.AuditRepository
	extractor ports.TextExtractor
	queue     ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.AuditRepository,
	extractor ports.TextExtractor,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		queue:     queue,
	}
}

func (uc *IngestDocumentUseCase) Ingest(ctx context.Context, filename string, body io.Reader) (*domain.InvoiceRecord, error) {
	text, err := uc.extractor.Extract(ctx, filename, body)
	if err != nil {
		return nil, fmt.Errorf("extract document text: %w", err)
	}
	if text == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract document text", errors.New("empty document"))
	}

	now := time.Now().UTC()
	record := &domain.InvoiceRecord{
		ID:       uuid.NewString(),
		Filename: filename,
		Invoice: domain.Invoice{
			RawText: text,
		},
		Status:    domain.StatusReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create invoice record: %w", err)
	}

	if err := uc.queue.PublishInvoiceReceived(ctx, record.ID); err != nil {
		return nil, fmt.Errorf("publish received event: %w", err)
	}

	return record, nil
}
