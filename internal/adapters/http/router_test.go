package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
	"github.com/mkazantsev/invoice-auditor/internal/observability/metrics"
)

type ingestorFake struct {
	record *domain.InvoiceRecord
	err    error

	gotFilename string
	gotText     string
}

func (f *ingestorFake) Ingest(_ context.Context, filename string, body io.Reader) (*domain.InvoiceRecord, error) {
	f.gotFilename = filename
	raw, _ := io.ReadAll(body)
	f.gotText = string(raw)
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

type auditorFake struct {
	report   domain.Report
	err      error
	gotKnown map[string]struct{}
}

func (f *auditorFake) Audit(_ context.Context, _ domain.Invoice, known map[string]struct{}) (domain.Report, error) {
	f.gotKnown = known
	return f.report, f.err
}

type batchFake struct {
	results []domain.BatchResult
	err     error
}

func (f *batchFake) ProcessBatch(_ context.Context, invoices []domain.Invoice) ([]domain.BatchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	results := make([]domain.BatchResult, 0, len(invoices))
	for _, invoice := range invoices {
		results = append(results, domain.BatchResult{
			Invoice: invoice,
			Report:  domain.Report{Status: domain.StatusPass},
		})
	}
	return results, nil
}

type routerRepoFake struct {
	record *domain.InvoiceRecord
	report *domain.Report
}

func (f *routerRepoFake) Create(context.Context, *domain.InvoiceRecord) error { return nil }

func (f *routerRepoFake) GetByID(_ context.Context, id string) (*domain.InvoiceRecord, error) {
	if f.record == nil {
		return nil, domain.WrapError(domain.ErrInvoiceNotFound, "get invoice record", errors.New("id="+id))
	}
	return f.record, nil
}

func (f *routerRepoFake) UpdateStatus(context.Context, string, domain.InvoiceStatus, string) error {
	return nil
}

func (f *routerRepoFake) SaveExtraction(context.Context, string, domain.Invoice) error { return nil }

func (f *routerRepoFake) SaveReport(context.Context, string, domain.Report) error { return nil }

func (f *routerRepoFake) GetReport(_ context.Context, id string) (*domain.Report, error) {
	if f.report == nil {
		return nil, domain.WrapError(domain.ErrInvoiceNotFound, "get report", errors.New("id="+id))
	}
	return f.report, nil
}

func (f *routerRepoFake) KnownInvoiceNumbers(context.Context, string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

type exporterFake struct {
	data []byte
	err  error
}

func (f *exporterFake) Export([]domain.BatchResult) ([]byte, error) {
	return f.data, f.err
}

type routerFixture struct {
	ingestor *ingestorFake
	auditor  *auditorFake
	batch    *batchFake
	repo     *routerRepoFake
	exporter *exporterFake
	handler  http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	fixture := &routerFixture{
		ingestor: &ingestorFake{},
		auditor:  &auditorFake{},
		batch:    &batchFake{},
		repo:     &routerRepoFake{},
		exporter: &exporterFake{data: []byte("xlsx-bytes")},
	}
	router := NewRouter(
		"api-test",
		fixture.ingestor,
		fixture.auditor,
		fixture.batch,
		fixture.repo,
		fixture.exporter,
		metrics.NewHTTPServerMetrics("api-test"),
	)
	fixture.handler = router.Handler()
	return fixture
}

func TestHealthz(t *testing.T) {
	fixture := newRouterFixture(t)

	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestValidateInvoiceReturnsReport(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.auditor.report = domain.Report{
		Status: domain.StatusFail,
		Findings: []domain.Finding{
			{Kind: domain.KindTaxMismatch, Severity: domain.SeverityError, Message: "tax off"},
		},
	}

	body := `{"invoice": {"invoice_number": "INV-1"}, "known_invoice_numbers": [" INV-9 ", ""]}`
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/invoices/validate", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var report domain.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != domain.StatusFail || len(report.Findings) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	if _, ok := fixture.auditor.gotKnown["INV-9"]; !ok {
		t.Fatalf("expected trimmed known number, got %v", fixture.auditor.gotKnown)
	}
	if len(fixture.auditor.gotKnown) != 1 {
		t.Fatalf("expected empty entries dropped, got %v", fixture.auditor.gotKnown)
	}
}

func TestValidateInvoiceRejectsBadJSON(t *testing.T) {
	fixture := newRouterFixture(t)

	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/invoices/validate", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestValidateBatchRequiresInvoices(t *testing.T) {
	fixture := newRouterFixture(t)

	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/batches/validate", strings.NewReader(`{"invoices": []}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestValidateBatchReturnsResultsAndSummary(t *testing.T) {
	fixture := newRouterFixture(t)

	body := `{"invoices": [{"invoice_number": "INV-1"}, {"invoice_number": "INV-2"}]}`
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/batches/validate", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Results []domain.BatchResult `json:"results"`
		Summary domain.BatchSummary  `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Summary.Processed != 2 || resp.Summary.Passed != 2 {
		t.Fatalf("unexpected summary %+v", resp.Summary)
	}
}

func TestValidateBatchExportsWorkbook(t *testing.T) {
	fixture := newRouterFixture(t)

	body := `{"invoices": [{"invoice_number": "INV-1"}], "export": true}`
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/batches/validate", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	if rec.Body.String() != "xlsx-bytes" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestUploadDocumentAccepted(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.ingestor.record = &domain.InvoiceRecord{
		ID:       "rec-1",
		Filename: "invoice.pdf",
		Status:   domain.StatusReceived,
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "invoice.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("TAX INVOICE")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if fixture.ingestor.gotFilename != "invoice.pdf" || fixture.ingestor.gotText != "TAX INVOICE" {
		t.Fatalf("ingestor got %q %q", fixture.ingestor.gotFilename, fixture.ingestor.gotText)
	}

	var record domain.InvoiceRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.ID != "rec-1" || record.Status != domain.StatusReceived {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestUploadDocumentInvalidInputMapsTo400(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.ingestor.err = domain.WrapError(domain.ErrInvalidInput, "extract document text", errors.New("empty document"))

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "empty.txt")
	_, _ = part.Write(nil)
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	fixture := newRouterFixture(t)

	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/invoices/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetInvoiceAndReport(t *testing.T) {
	fixture := newRouterFixture(t)
	now := time.Now().UTC()
	fixture.repo.record = &domain.InvoiceRecord{
		ID:        "rec-1",
		Filename:  "invoice.pdf",
		Status:    domain.StatusValidated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fixture.repo.report = &domain.Report{Status: domain.StatusWarn}

	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/invoices/rec-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/invoices/rec-1/report", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for report, got %d", rec.Code)
	}
	var report domain.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != domain.StatusWarn {
		t.Fatalf("unexpected report %+v", report)
	}
}
