package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
	"github.com/mkazantsev/invoice-auditor/internal/core/ports"
)

// SemanticValidator wraps the external pattern-recognition service.
// It is the only non-deterministic stage of the pipeline and it fails
// soft: any infrastructure fault (unreachable service, timeout,
// malformed response) is converted into a degraded result instead of
// an error, so one flaky call never sinks a validation run.
type SemanticValidator struct {
	analyzer ports.SemanticAnalyzer
	timeout  time.Duration
}

func NewSemanticValidator(analyzer ports.SemanticAnalyzer, timeout time.Duration) *SemanticValidator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SemanticValidator{
		analyzer: analyzer,
		timeout:  timeout,
	}
}

// Validate submits the invoice to the analyzer and maps each returned
// concern to a warning finding. Semantic findings are advisory and
// never carry error severity.
func (v *SemanticValidator) Validate(ctx context.Context, invoice domain.Invoice) domain.SemanticResult {
	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	concerns, err := v.analyzer.Analyze(callCtx, invoice)
	if err != nil {
		slog.Warn("semantic_analysis_skipped",
			"invoice_number", invoice.InvoiceNumber,
			"error", err,
		)
		return domain.SemanticResult{
			Degraded:       true,
			DegradedReason: err.Error(),
		}
	}

	findings := make([]domain.Finding, 0, len(concerns))
	for _, concern := range concerns {
		findings = append(findings, concernToFinding(concern))
	}
	return domain.SemanticResult{Findings: findings}
}

func concernToFinding(concern domain.SemanticConcern) domain.Finding {
	kind := concern.Kind
	switch kind {
	case domain.ConcernDuplicateMention,
		domain.ConcernPaymentDetailChange,
		domain.ConcernUnusualPaymentMethod,
		domain.ConcernOtherAnomaly:
	default:
		// Out-of-vocabulary kinds from the service are kept but tagged
		// as generic anomalies.
		kind = domain.ConcernOtherAnomaly
	}

	return domain.Finding{
		Kind:     domain.KindSemanticWarning,
		Severity: domain.SeverityWarning,
		Message:  fmt.Sprintf("%s: %s", concernLabel(kind), concern.Explanation),
		Context:  map[string]string{"concern": string(kind)},
	}
}

func concernLabel(kind domain.SemanticConcernKind) string {
	switch kind {
	case domain.ConcernDuplicateMention:
		return "duplicate mention"
	case domain.ConcernPaymentDetailChange:
		return "payment detail change"
	case domain.ConcernUnusualPaymentMethod:
		return "unusual payment method"
	default:
		return "anomaly"
	}
}
