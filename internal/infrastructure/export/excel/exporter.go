package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

const (
	summarySheet  = "Summary"
	findingsSheet = "Findings"
)

// Exporter renders batch validation results as an xlsx workbook with a
// per-invoice summary sheet and a per-finding detail sheet.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(results []domain.BatchResult) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := writeSummarySheet(f, results); err != nil {
		return nil, err
	}
	if err := writeFindingsSheet(f, results); err != nil {
		return nil, err
	}

	index, err := f.GetSheetIndex(summarySheet)
	if err != nil {
		return nil, fmt.Errorf("locate summary sheet: %w", err)
	}
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummarySheet(f *excelize.File, results []domain.BatchResult) error {
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}

	headers := []any{"Invoice Number", "Vendor", "Issue Date", "Total", "Status", "Errors", "Warnings"}
	if err := f.SetSheetRow(summarySheet, "A1", &headers); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	for i, result := range results {
		errorCount, warningCount := 0, 0
		for _, finding := range result.Report.Findings {
			switch finding.Severity {
			case domain.SeverityError:
				errorCount++
			case domain.SeverityWarning:
				warningCount++
			}
		}

		issueDate := ""
		if !result.Invoice.IssueDate.IsZero() {
			issueDate = result.Invoice.IssueDate.Format("2006-01-02")
		}
		row := []any{
			result.Invoice.InvoiceNumber,
			result.Invoice.VendorName,
			issueDate,
			result.Invoice.TotalAmount,
			string(result.Report.Status),
			errorCount,
			warningCount,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("summary cell name: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	summary := domain.Summarize(results)
	totalsRow := []any{
		"TOTAL", "", "",
		summary.TotalValue,
		fmt.Sprintf("%d pass / %d warn / %d fail", summary.Passed, summary.Warned, summary.Failed),
		"", "",
	}
	cell, err := excelize.CoordinatesToCellName(1, len(results)+3)
	if err != nil {
		return fmt.Errorf("totals cell name: %w", err)
	}
	if err := f.SetSheetRow(summarySheet, cell, &totalsRow); err != nil {
		return fmt.Errorf("write totals row: %w", err)
	}
	return nil
}

func writeFindingsSheet(f *excelize.File, results []domain.BatchResult) error {
	if _, err := f.NewSheet(findingsSheet); err != nil {
		return fmt.Errorf("create findings sheet: %w", err)
	}

	headers := []any{"Invoice Number", "Kind", "Severity", "Message"}
	if err := f.SetSheetRow(findingsSheet, "A1", &headers); err != nil {
		return fmt.Errorf("write findings header: %w", err)
	}

	rowIndex := 2
	for _, result := range results {
		for _, finding := range result.Report.Findings {
			row := []any{
				result.Invoice.InvoiceNumber,
				string(finding.Kind),
				string(finding.Severity),
				finding.Message,
			}
			cell, err := excelize.CoordinatesToCellName(1, rowIndex)
			if err != nil {
				return fmt.Errorf("findings cell name: %w", err)
			}
			if err := f.SetSheetRow(findingsSheet, cell, &row); err != nil {
				return fmt.Errorf("write findings row: %w", err)
			}
			rowIndex++
		}
	}
	return nil
}
