package usecase

import (
	"context"
	"fmt"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
	"github.com/mkazantsev/invoice-auditor/internal/core/ports"
)

// ProcessRecordUseCase drives asynchronous validation of an ingested
// document: structured extraction, the audit pipeline, persistence of
// the produced report.
type ProcessRecordUseCase struct {
	repo      ports.AuditRepository
	extractor ports.InvoiceExtractor
	audit     *AuditInvoiceUseCase
}

func NewProcessRecordUseCase(
	repo ports.AuditRepository,
	extractor ports.InvoiceExtractor,
	audit *AuditInvoiceUseCase,
) *ProcessRecordUseCase {
	return &ProcessRecordUseCase{
		repo:      repo,
		extractor: extractor,
		audit:     audit,
	}
}

func (uc *ProcessRecordUseCase) ProcessByID(ctx context.Context, recordID string) error {
	if err := uc.markStatus(ctx, recordID, domain.StatusValidating, ""); err != nil {
		return fmt.Errorf("set status=validating: %w", err)
	}

	report, err := uc.processPipeline(ctx, recordID)
	if err != nil {
		if failErr := uc.markFailed(ctx, recordID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveReport(ctx, recordID, report); err != nil {
		if failErr := uc.markFailed(ctx, recordID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, recordID, domain.StatusValidated, ""); err != nil {
		return fmt.Errorf("set status=validated: %w", err)
	}
	return nil
}

func (uc *ProcessRecordUseCase) processPipeline(ctx context.Context, recordID string) (domain.Report, error) {
	record, err := uc.repo.GetByID(ctx, recordID)
	if err != nil {
		return domain.Report{}, fmt.Errorf("fetch record by id: %w", err)
	}

	invoice, err := uc.extractInvoice(ctx, record)
	if err != nil {
		return domain.Report{}, err
	}

	if err := uc.repo.SaveExtraction(ctx, record.ID, invoice); err != nil {
		return domain.Report{}, fmt.Errorf("save extracted invoice: %w", err)
	}

	known, err := uc.repo.KnownInvoiceNumbers(ctx, record.ID)
	if err != nil {
		return domain.Report{}, fmt.Errorf("load known invoice numbers: %w", err)
	}

	report, err := uc.audit.Audit(ctx, invoice, known)
	if err != nil {
		return domain.Report{}, fmt.Errorf("audit invoice: %w", err)
	}
	return report, nil
}

func (uc *ProcessRecordUseCase) extractInvoice(ctx context.Context, record *domain.InvoiceRecord) (domain.Invoice, error) {
	invoice, err := uc.extractor.ExtractInvoice(ctx, record.Invoice.RawText)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("extract structured invoice: %w", err)
	}
	invoice.RawText = record.Invoice.RawText
	return invoice, nil
}

func (uc *ProcessRecordUseCase) markStatus(ctx context.Context, recordID string, status domain.InvoiceStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, recordID, status, errMessage)
}

func (uc *ProcessRecordUseCase) markFailed(ctx context.Context, recordID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, recordID, domain.StatusFailed, processErr.Error())
}
