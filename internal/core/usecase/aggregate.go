package usecase

import "github.com/mkazantsev/invoice-auditor/internal/core/domain"

// Aggregate merges rule findings (always complete) with the semantic
// result (possibly degraded) into one write-once report. Findings with
// identical (kind, message) are collapsed, errors sort before warnings
// with each group preserving production order, and the status is a pure
// function of the surviving finding set.
func Aggregate(ruleFindings []domain.Finding, semantic domain.SemanticResult) domain.Report {
	merged := dedupeFindings(append(append([]domain.Finding{}, ruleFindings...), semantic.Findings...))

	ordered := make([]domain.Finding, 0, len(merged))
	for _, finding := range merged {
		if finding.Severity == domain.SeverityError {
			ordered = append(ordered, finding)
		}
	}
	for _, finding := range merged {
		if finding.Severity != domain.SeverityError {
			ordered = append(ordered, finding)
		}
	}

	return domain.Report{
		Findings:         ordered,
		Status:           domain.StatusFromFindings(ordered),
		SemanticDegraded: semantic.Degraded,
		DegradedReason:   semantic.DegradedReason,
	}
}

type findingKey struct {
	kind    domain.FindingKind
	message string
}

func dedupeFindings(findings []domain.Finding) []domain.Finding {
	seen := make(map[findingKey]struct{}, len(findings))
	out := make([]domain.Finding, 0, len(findings))
	for _, finding := range findings {
		key := findingKey{kind: finding.Kind, message: finding.Message}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, finding)
	}
	return out
}
