package usecase

import (
	"context"
	"strings"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

// BatchAuditUseCase applies the validation pipeline across an ordered
// batch of invoices. It owns the batch-wide seen-numbers set: the set
// is threaded into each rule validation as a read-only snapshot and
// updated strictly in input order after each invoice, so the second
// occurrence of a duplicate number is always the one flagged.
//
// Semantic calls are dispatched concurrently with a bounded number in
// flight; each invoice's semantic result is joined back before its
// report is aggregated, keeping reports in input order.
type BatchAuditUseCase struct {
	rules       *RuleValidator
	semantic    *SemanticValidator
	maxInFlight int
}

func NewBatchAuditUseCase(rules *RuleValidator, semantic *SemanticValidator, maxInFlight int) *BatchAuditUseCase {
	if maxInFlight <= 0 {
		maxInFlight = 4
	}
	return &BatchAuditUseCase{
		rules:       rules,
		semantic:    semantic,
		maxInFlight: maxInFlight,
	}
}

// ProcessBatch validates invoices in input order. On cancellation the
// results produced so far are returned alongside the context error;
// in-flight semantic calls for unprocessed invoices are abandoned.
func (uc *BatchAuditUseCase) ProcessBatch(ctx context.Context, invoices []domain.Invoice) ([]domain.BatchResult, error) {
	semanticResults := make([]chan domain.SemanticResult, len(invoices))
	slots := make(chan struct{}, uc.maxInFlight)

	for i := range invoices {
		semanticResults[i] = make(chan domain.SemanticResult, 1)
		go func(invoice domain.Invoice, out chan<- domain.SemanticResult) {
			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
				out <- uc.semantic.Validate(ctx, invoice)
			case <-ctx.Done():
				out <- domain.SemanticResult{
					Degraded:       true,
					DegradedReason: ctx.Err().Error(),
				}
			}
		}(invoices[i], semanticResults[i])
	}

	seen := make(map[string]struct{}, len(invoices))
	results := make([]domain.BatchResult, 0, len(invoices))

	for i, invoice := range invoices {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		ruleFindings := uc.rules.Validate(invoice, seen)

		// The seen-set grows only after the invoice was validated, so
		// invoice N never sees its own number as a duplicate.
		if number := strings.TrimSpace(invoice.InvoiceNumber); number != "" {
			seen[number] = struct{}{}
		}

		semanticResult := <-semanticResults[i]
		results = append(results, domain.BatchResult{
			Invoice: invoice,
			Report:  Aggregate(ruleFindings, semanticResult),
		})
	}
	return results, nil
}
