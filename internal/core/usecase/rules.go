package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/mkazantsev/invoice-auditor/internal/config"
	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

// ruleCheck evaluates one deterministic condition over an invoice
// snapshot. Checks are independent; the validator runs every check
// regardless of earlier findings so a single pass surfaces every issue.
type ruleCheck func(invoice domain.Invoice, known map[string]struct{}) []domain.Finding

// RuleValidator runs the fixed battery of deterministic checks. It is
// pure: it never mutates the invoice or the known-numbers set, and for
// a fixed clock the same input always yields the same findings in the
// same order.
type RuleValidator struct {
	cfg     config.RuleConfig
	taxIDRe *regexp.Regexp
	now     func() time.Time
	checks  []ruleCheck
}

func NewRuleValidator(cfg config.RuleConfig) (*RuleValidator, error) {
	taxIDRe, err := regexp.Compile(cfg.TaxIDPattern)
	if err != nil {
		return nil, fmt.Errorf("compile tax id pattern: %w", err)
	}

	v := &RuleValidator{
		cfg:     cfg,
		taxIDRe: taxIDRe,
		now:     time.Now,
	}
	v.checks = []ruleCheck{
		v.checkRequiredFields,
		v.checkDuplicate,
		v.checkLineItems,
		v.checkTax,
		v.checkTotal,
		v.checkHighValue,
		v.checkLineItemThresholds,
		v.checkTaxID,
		v.checkDates,
	}
	return v, nil
}

// WithClock overrides the clock used for date-skew checks. Tests rely
// on this to keep the validator deterministic.
func (v *RuleValidator) WithClock(now func() time.Time) *RuleValidator {
	v.now = now
	return v
}

// Validate runs every check in registration order. known is a read-only
// snapshot of invoice numbers already seen; the caller owns updates.
func (v *RuleValidator) Validate(invoice domain.Invoice, known map[string]struct{}) []domain.Finding {
	findings := make([]domain.Finding, 0)
	for _, check := range v.checks {
		findings = append(findings, check(invoice, known)...)
	}
	return findings
}

func (v *RuleValidator) checkRequiredFields(invoice domain.Invoice, _ map[string]struct{}) []domain.Finding {
	var findings []domain.Finding
	missing := func(field string) {
		findings = append(findings, domain.Finding{
			Kind:     domain.KindMissingField,
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("missing %s", strings.ReplaceAll(field, "_", " ")),
			Context:  map[string]string{"field": field},
		})
	}

	if strings.TrimSpace(invoice.VendorName) == "" {
		missing("vendor_name")
	}
	if strings.TrimSpace(invoice.InvoiceNumber) == "" {
		missing("invoice_number")
	}
	if invoice.IssueDate.IsZero() {
		missing("issue_date")
	}
	if invoice.TotalAmount == 0 {
		missing("total_amount")
	}
	return findings
}

func (v *RuleValidator) checkDuplicate(invoice domain.Invoice, known map[string]struct{}) []domain.Finding {
	number := strings.TrimSpace(invoice.InvoiceNumber)
	if number == "" {
		return nil
	}
	if _, seen := known[number]; !seen {
		return nil
	}
	return []domain.Finding{{
		Kind:     domain.KindDuplicateInvoiceNumber,
		Severity: domain.SeverityError,
		Message:  fmt.Sprintf("invoice %s already processed", number),
		Context:  map[string]string{"invoice_number": number},
	}}
}

func (v *RuleValidator) checkLineItems(invoice domain.Invoice, _ map[string]struct{}) []domain.Finding {
	var findings []domain.Finding

	var itemSum float64
	for i, item := range invoice.LineItems {
		itemSum += item.Amount

		expected := item.Quantity * item.UnitPrice
		if !v.withinTolerance(expected, item.Amount) {
			findings = append(findings, domain.Finding{
				Kind:     domain.KindMathMismatch,
				Severity: domain.SeverityError,
				Message: fmt.Sprintf("line item %q: %.2f x %.2f = %.2f, but amount shows %.2f",
					item.Description, item.Quantity, item.UnitPrice, expected, item.Amount),
				Context: map[string]string{
					"line_item": fmt.Sprintf("%d", i),
					"expected":  fmt.Sprintf("%.2f", expected),
					"actual":    fmt.Sprintf("%.2f", item.Amount),
				},
			})
		}
	}

	if len(invoice.LineItems) > 0 && !v.withinTolerance(itemSum, invoice.Subtotal) {
		findings = append(findings, domain.Finding{
			Kind:     domain.KindMathMismatch,
			Severity: domain.SeverityError,
			Message: fmt.Sprintf("line items sum to %.2f but subtotal is %.2f",
				itemSum, invoice.Subtotal),
			Context: map[string]string{
				"field":    "subtotal",
				"expected": fmt.Sprintf("%.2f", itemSum),
				"actual":   fmt.Sprintf("%.2f", invoice.Subtotal),
			},
		})
	}
	return findings
}

func (v *RuleValidator) checkTax(invoice domain.Invoice, _ map[string]struct{}) []domain.Finding {
	expected := invoice.Subtotal * v.cfg.TaxRate
	if v.withinTolerance(expected, invoice.TaxAmount) {
		return nil
	}
	return []domain.Finding{{
		Kind:     domain.KindTaxMismatch,
		Severity: domain.SeverityError,
		Message: fmt.Sprintf("tax amount %.2f does not match expected %.0f%% of %.2f (%.2f)",
			invoice.TaxAmount, v.cfg.TaxRate*100, invoice.Subtotal, expected),
		Context: map[string]string{
			"field":    "tax_amount",
			"expected": fmt.Sprintf("%.2f", expected),
			"actual":   fmt.Sprintf("%.2f", invoice.TaxAmount),
		},
	}}
}

func (v *RuleValidator) checkTotal(invoice domain.Invoice, _ map[string]struct{}) []domain.Finding {
	expected := invoice.Subtotal + invoice.TaxAmount
	if v.withinTolerance(expected, invoice.TotalAmount) {
		return nil
	}
	return []domain.Finding{{
		Kind:     domain.KindMathMismatch,
		Severity: domain.SeverityError,
		Message: fmt.Sprintf("total mismatch: %.2f + %.2f = %.2f, but total shows %.2f",
			invoice.Subtotal, invoice.TaxAmount, expected, invoice.TotalAmount),
		Context: map[string]string{
			"field":    "total_amount",
			"expected": fmt.Sprintf("%.2f", expected),
			"actual":   fmt.Sprintf("%.2f", invoice.TotalAmount),
		},
	}}
}

func (v *RuleValidator) checkHighValue(invoice domain.Invoice, _ map[string]struct{}) []domain.Finding {
	// Threshold is inclusive: a total of exactly the ceiling needs approval.
	if invoice.TotalAmount < v.cfg.HighValueThreshold {
		return nil
	}
	return []domain.Finding{{
		Kind:     domain.KindHighValueThreshold,
		Severity: domain.SeverityWarning,
		Message: fmt.Sprintf("total %.2f meets or exceeds %.2f approval threshold",
			invoice.TotalAmount, v.cfg.HighValueThreshold),
		Context: map[string]string{
			"field":     "total_amount",
			"threshold": fmt.Sprintf("%.2f", v.cfg.HighValueThreshold),
		},
	}}
}

func (v *RuleValidator) checkLineItemThresholds(invoice domain.Invoice, _ map[string]struct{}) []domain.Finding {
	var findings []domain.Finding
	for i, item := range invoice.LineItems {
		if item.Amount < v.cfg.LineItemThreshold {
			continue
		}
		findings = append(findings, domain.Finding{
			Kind:     domain.KindLineItemThreshold,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("high value line item %q: %.2f", item.Description, item.Amount),
			Context: map[string]string{
				"line_item": fmt.Sprintf("%d", i),
				"threshold": fmt.Sprintf("%.2f", v.cfg.LineItemThreshold),
			},
		})
	}
	return findings
}

func (v *RuleValidator) checkTaxID(invoice domain.Invoice, _ map[string]struct{}) []domain.Finding {
	raw := strings.TrimSpace(invoice.VendorABN)
	if raw == "" {
		return nil
	}

	digits := stripNonDigits(raw)
	if v.taxIDRe.MatchString(digits) && validABNChecksum(digits) {
		return nil
	}
	return []domain.Finding{{
		Kind:     domain.KindInvalidTaxID,
		Severity: domain.SeverityError,
		Message:  fmt.Sprintf("ABN %q fails format or checksum validation", raw),
		Context:  map[string]string{"field": "vendor_abn", "actual": raw},
	}}
}

func (v *RuleValidator) checkDates(invoice domain.Invoice, _ map[string]struct{}) []domain.Finding {
	var findings []domain.Finding

	if invoice.DueDate != nil && !invoice.IssueDate.IsZero() && invoice.DueDate.Before(invoice.IssueDate) {
		findings = append(findings, domain.Finding{
			Kind:     domain.KindDateInconsistency,
			Severity: domain.SeverityError,
			Message: fmt.Sprintf("due date %s precedes issue date %s",
				invoice.DueDate.Format("2006-01-02"), invoice.IssueDate.Format("2006-01-02")),
			Context: map[string]string{"field": "due_date"},
		})
	}

	if !invoice.IssueDate.IsZero() {
		horizon := v.now().Add(time.Duration(v.cfg.DateSkew))
		if invoice.IssueDate.After(horizon) {
			findings = append(findings, domain.Finding{
				Kind:     domain.KindDateInconsistency,
				Severity: domain.SeverityError,
				Message: fmt.Sprintf("issue date %s is in the future",
					invoice.IssueDate.Format("2006-01-02")),
				Context: map[string]string{"field": "issue_date"},
			})
		}
	}
	return findings
}

func (v *RuleValidator) withinTolerance(expected, actual float64) bool {
	return math.Abs(expected-actual) <= v.cfg.Tolerance
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// abnWeights are the official ABN checksum weights: subtract one from
// the first digit, multiply each digit by its weight, the sum must be
// divisible by 89.
var abnWeights = [11]int{10, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19}

func validABNChecksum(digits string) bool {
	if len(digits) != 11 {
		// Non-standard lengths are left to the configured pattern.
		return true
	}
	sum := 0
	for i, r := range digits {
		d := int(r - '0')
		if i == 0 {
			d--
		}
		sum += d * abnWeights[i]
	}
	return sum%89 == 0
}
