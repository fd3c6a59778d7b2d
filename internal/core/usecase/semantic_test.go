package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

type analyzerFake struct {
	concerns []domain.SemanticConcern
	err      error
	block    bool
}

func (f *analyzerFake) Analyze(ctx context.Context, _ domain.Invoice) ([]domain.SemanticConcern, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.concerns, nil
}

func TestSemanticValidateMapsConcernsToWarnings(t *testing.T) {
	v := NewSemanticValidator(&analyzerFake{concerns: []domain.SemanticConcern{
		{Kind: domain.ConcernDuplicateMention, Explanation: "text mentions a prior invoice"},
		{Kind: domain.ConcernPaymentDetailChange, Explanation: "bank account changed in notes"},
	}}, time.Second)

	result := v.Validate(context.Background(), domain.Invoice{InvoiceNumber: "INV-1"})

	if result.Degraded {
		t.Fatalf("did not expect degraded result: %+v", result)
	}
	if len(result.Findings) != 2 {
		t.Fatalf("expected 2 findings, got %+v", result.Findings)
	}
	for _, f := range result.Findings {
		if f.Kind != domain.KindSemanticWarning || f.Severity != domain.SeverityWarning {
			t.Fatalf("semantic findings must be advisory warnings, got %+v", f)
		}
	}
	if !strings.Contains(result.Findings[1].Message, "bank account changed") {
		t.Fatalf("expected explanation in message, got %q", result.Findings[1].Message)
	}
}

func TestSemanticValidateFailsSoftOnServiceError(t *testing.T) {
	v := NewSemanticValidator(&analyzerFake{err: errors.New("connection refused")}, time.Second)

	result := v.Validate(context.Background(), domain.Invoice{})

	if !result.Degraded {
		t.Fatalf("expected degraded result on service error")
	}
	if len(result.Findings) != 0 {
		t.Fatalf("expected no findings on degraded run, got %+v", result.Findings)
	}
	if !strings.Contains(result.DegradedReason, "connection refused") {
		t.Fatalf("expected reason to carry the cause, got %q", result.DegradedReason)
	}
}

func TestSemanticValidateTimesOutAsSoftFailure(t *testing.T) {
	v := NewSemanticValidator(&analyzerFake{block: true}, 20*time.Millisecond)

	result := v.Validate(context.Background(), domain.Invoice{})

	if !result.Degraded {
		t.Fatalf("expected degraded result on timeout")
	}
}

func TestSemanticValidateNormalizesUnknownConcernKind(t *testing.T) {
	v := NewSemanticValidator(&analyzerFake{concerns: []domain.SemanticConcern{
		{Kind: "made_up_kind", Explanation: "something odd"},
	}}, time.Second)

	result := v.Validate(context.Background(), domain.Invoice{})

	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %+v", result.Findings)
	}
	if result.Findings[0].Context["concern"] != string(domain.ConcernOtherAnomaly) {
		t.Fatalf("expected unknown kind mapped to other anomaly, got %+v", result.Findings[0])
	}
}
