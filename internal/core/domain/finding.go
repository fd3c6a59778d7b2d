package domain

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type FindingKind string

const (
	KindMissingField           FindingKind = "missing_field"
	KindDuplicateInvoiceNumber FindingKind = "duplicate_invoice_number"
	KindMathMismatch           FindingKind = "math_mismatch"
	KindTaxMismatch            FindingKind = "tax_mismatch"
	KindHighValueThreshold     FindingKind = "high_value_threshold"
	KindLineItemThreshold      FindingKind = "line_item_threshold"
	KindInvalidTaxID           FindingKind = "invalid_tax_id"
	KindDateInconsistency      FindingKind = "date_inconsistency"
	KindSemanticWarning        FindingKind = "semantic_warning"
)

// Finding is one validation issue. Context carries optional field-level
// detail (field name, expected/actual values) for downstream consumers.
type Finding struct {
	Kind     FindingKind       `json:"kind"`
	Severity Severity          `json:"severity"`
	Message  string            `json:"message"`
	Context  map[string]string `json:"context,omitempty"`
}

type ReportStatus string

const (
	StatusPass ReportStatus = "pass"
	StatusWarn ReportStatus = "warn"
	StatusFail ReportStatus = "fail"
)

// Report is the write-once outcome of validating one invoice. Status is
// derived purely from Findings; SemanticDegraded marks that semantic
// analysis could not complete, which is distinct from a clean pass.
type Report struct {
	Findings         []Finding    `json:"findings"`
	Status           ReportStatus `json:"status"`
	SemanticDegraded bool         `json:"semantic_degraded"`
	DegradedReason   string       `json:"degraded_reason,omitempty"`
}

// StatusFromFindings derives the overall verdict: any error fails the
// invoice, otherwise any warning downgrades it, otherwise it passes.
func StatusFromFindings(findings []Finding) ReportStatus {
	status := StatusPass
	for _, finding := range findings {
		switch finding.Severity {
		case SeverityError:
			return StatusFail
		case SeverityWarning:
			status = StatusWarn
		}
	}
	return status
}

// SemanticConcernKind is the fixed vocabulary returned by the external
// pattern-recognition service.
type SemanticConcernKind string

const (
	ConcernDuplicateMention     SemanticConcernKind = "duplicate_mention"
	ConcernPaymentDetailChange  SemanticConcernKind = "payment_detail_change"
	ConcernUnusualPaymentMethod SemanticConcernKind = "unusual_payment_method"
	ConcernOtherAnomaly         SemanticConcernKind = "other_anomaly"
)

// SemanticConcern is one heuristic issue raised by the external service.
type SemanticConcern struct {
	Kind        SemanticConcernKind `json:"kind"`
	Explanation string              `json:"explanation"`
}

// SemanticResult carries semantic findings plus the degradation signal
// the aggregator needs when the external service could not be reached.
type SemanticResult struct {
	Findings       []Finding
	Degraded       bool
	DegradedReason string
}
