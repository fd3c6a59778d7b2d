package usecase

import (
	"context"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

// AuditInvoiceUseCase runs the full validation pipeline for a single
// invoice: deterministic rules, semantic review, aggregation.
type AuditInvoiceUseCase struct {
	rules    *RuleValidator
	semantic *SemanticValidator
}

func NewAuditInvoiceUseCase(rules *RuleValidator, semantic *SemanticValidator) *AuditInvoiceUseCase {
	return &AuditInvoiceUseCase{
		rules:    rules,
		semantic: semantic,
	}
}

// Audit validates one invoice against the known-numbers snapshot. The
// snapshot is read-only here; callers that track duplicates across
// invoices own the update.
func (uc *AuditInvoiceUseCase) Audit(ctx context.Context, invoice domain.Invoice, knownNumbers map[string]struct{}) (domain.Report, error) {
	ruleFindings := uc.rules.Validate(invoice, knownNumbers)
	semanticResult := uc.semantic.Validate(ctx, invoice)
	return Aggregate(ruleFindings, semanticResult), nil
}
