package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
	"github.com/mkazantsev/invoice-auditor/internal/core/ports"
	"github.com/mkazantsev/invoice-auditor/internal/observability/metrics"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Router struct {
	service  string
	ingestUC ports.DocumentIngestor
	auditUC  ports.InvoiceAuditor
	batchUC  ports.BatchAuditor
	repo     ports.AuditRepository
	exporter ports.ReportExporter
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	service string,
	ingestUC ports.DocumentIngestor,
	auditUC ports.InvoiceAuditor,
	batchUC ports.BatchAuditor,
	repo ports.AuditRepository,
	exporter ports.ReportExporter,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		service:  service,
		ingestUC: ingestUC,
		auditUC:  auditUC,
		batchUC:  batchUC,
		repo:     repo,
		exporter: exporter,
		metrics:  serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/metrics", rt.metricsEndpoint)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/invoices/validate", rt.validateInvoice)
	mux.HandleFunc("/v1/batches/validate", rt.validateBatch)
	mux.HandleFunc("/v1/invoices/", rt.invoiceByID)

	handler := rt.metrics.Middleware(rt.service, mux)
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) metricsEndpoint(w http.ResponseWriter, r *http.Request) {
	rt.metrics.Handler().ServeHTTP(w, r)
}

// uploadDocument accepts a raw invoice document and queues it for
// asynchronous extraction and validation.
func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	record, err := rt.ingestUC.Ingest(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, record)
}

// validateInvoice runs the synchronous single-invoice pipeline. The
// caller may supply the set of already-known invoice numbers for
// duplicate detection.
func (rt *Router) validateInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Invoice             domain.Invoice `json:"invoice"`
		KnownInvoiceNumbers []string       `json:"known_invoice_numbers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	known := make(map[string]struct{}, len(req.KnownInvoiceNumbers))
	for _, number := range req.KnownInvoiceNumbers {
		if number = strings.TrimSpace(number); number != "" {
			known[number] = struct{}{}
		}
	}

	start := time.Now()
	report, err := rt.auditUC.Audit(r.Context(), req.Invoice, known)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordValidation(
		rt.service, "validate", string(report.Status),
		len(report.Findings), report.SemanticDegraded, time.Since(start),
	)
	writeJSON(w, http.StatusOK, report)
}

// validateBatch validates an ordered batch. With "export" set the
// response is an xlsx workbook instead of JSON.
func (rt *Router) validateBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Invoices []domain.Invoice `json:"invoices"`
		Export   bool             `json:"export"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Invoices) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invoices are required"})
		return
	}

	start := time.Now()
	results, err := rt.batchUC.ProcessBatch(r.Context(), req.Invoices)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordBatch(rt.service, len(req.Invoices))
	for _, result := range results {
		rt.metrics.RecordValidation(
			rt.service, "batch", string(result.Report.Status),
			len(result.Report.Findings), result.Report.SemanticDegraded, time.Since(start),
		)
	}

	if req.Export {
		workbook, err := rt.exporter.Export(results)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		rt.metrics.RecordExport(rt.service)
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="validation-results.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(workbook)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"summary": domain.Summarize(results),
	})
}

// invoiceByID serves GET /v1/invoices/{id} and /v1/invoices/{id}/report.
func (rt *Router) invoiceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/invoices/")
	id, wantReport := strings.CutSuffix(rest, "/report")
	id = strings.Trim(id, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invoice id is required"})
		return
	}

	if wantReport {
		report, err := rt.repo.GetReport(r.Context(), id)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	record, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
