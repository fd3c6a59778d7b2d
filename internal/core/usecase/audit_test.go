package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkazantsev/invoice-auditor/internal/config"
	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

func newAuditUseCase(t *testing.T, analyzer *analyzerFake) *AuditInvoiceUseCase {
	t.Helper()
	rules, err := NewRuleValidator(config.DefaultRules())
	if err != nil {
		t.Fatalf("NewRuleValidator() error = %v", err)
	}
	rules.WithClock(testClock)
	return NewAuditInvoiceUseCase(rules, NewSemanticValidator(analyzer, time.Second))
}

func TestAuditMergesRuleAndSemanticFindings(t *testing.T) {
	uc := newAuditUseCase(t, &analyzerFake{concerns: []domain.SemanticConcern{
		{Kind: domain.ConcernUnusualPaymentMethod, Explanation: "asks for gift cards"},
	}})

	invoice := cleanInvoice()
	invoice.TaxAmount = 90
	invoice.TotalAmount = 1090

	report, err := uc.Audit(context.Background(), invoice, nil)
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}

	if report.Status != domain.StatusFail {
		t.Fatalf("rule error must fail the report, got %s", report.Status)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("expected rule error + semantic warning, got %+v", report.Findings)
	}
	if report.Findings[0].Severity != domain.SeverityError {
		t.Fatalf("errors must sort first, got %+v", report.Findings)
	}
}

func TestAuditSurvivesSemanticOutage(t *testing.T) {
	uc := newAuditUseCase(t, &analyzerFake{err: errors.New("service unreachable")})

	report, err := uc.Audit(context.Background(), cleanInvoice(), nil)
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}

	if report.Status != domain.StatusPass {
		t.Fatalf("clean invoice with degraded semantics must still pass, got %s", report.Status)
	}
	if !report.SemanticDegraded {
		t.Fatalf("expected degraded coverage to be recorded")
	}
}
