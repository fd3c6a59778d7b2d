package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
	"github.com/mkazantsev/invoice-auditor/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	// RequestsPerSecond caps the outbound request rate to the model
	// server; zero disables limiting.
	RequestsPerSecond float64
	RateBurst         int
	Executor          *resilience.Executor
}

func New(baseURL, genModel string, options Options) *Client {
	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		burst := options.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    limiter,
		executor:   options.Executor,
	}
}

// Analyzer implements ports.SemanticAnalyzer against an
// Ollama-compatible generation API.
type Analyzer struct {
	client *Client
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

func (a *Analyzer) Analyze(ctx context.Context, invoice domain.Invoice) ([]domain.SemanticConcern, error) {
	respText, err := a.client.generateJSON(ctx, "analyze", buildAnalysisPrompt(invoice, time.Now()))
	if err != nil {
		return nil, err
	}

	var result struct {
		Concerns []domain.SemanticConcern `json:"concerns"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return nil, fmt.Errorf("parse analysis json: %w", err)
	}
	return result.Concerns, nil
}

// Extractor implements ports.InvoiceExtractor. Its output is candidate
// data only; every field may come back absent or wrong and the rule
// validator treats it accordingly.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func (e *Extractor) ExtractInvoice(ctx context.Context, text string) (domain.Invoice, error) {
	respText, err := e.client.generateJSON(ctx, "extract", buildExtractionPrompt(text))
	if err != nil {
		return domain.Invoice{}, err
	}

	var dto invoiceDTO
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &dto); err != nil {
		return domain.Invoice{}, fmt.Errorf("parse extraction json: %w", err)
	}
	return dto.toDomain(), nil
}

type lineItemDTO struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

type invoiceDTO struct {
	InvoiceNumber string        `json:"invoice_number"`
	InvoiceDate   string        `json:"invoice_date"`
	DueDate       string        `json:"due_date"`
	VendorName    string        `json:"vendor_name"`
	VendorABN     string        `json:"vendor_abn"`
	CustomerName  string        `json:"customer_name"`
	LineItems     []lineItemDTO `json:"line_items"`
	Subtotal      float64       `json:"subtotal"`
	TaxAmount     float64       `json:"tax_amount"`
	TotalAmount   float64       `json:"total_amount"`
	Notes         string        `json:"notes"`
}

func (dto invoiceDTO) toDomain() domain.Invoice {
	invoice := domain.Invoice{
		InvoiceNumber: strings.TrimSpace(dto.InvoiceNumber),
		VendorName:    strings.TrimSpace(dto.VendorName),
		VendorABN:     strings.TrimSpace(dto.VendorABN),
		CustomerName:  strings.TrimSpace(dto.CustomerName),
		IssueDate:     parseDate(dto.InvoiceDate),
		Subtotal:      dto.Subtotal,
		TaxAmount:     dto.TaxAmount,
		TotalAmount:   dto.TotalAmount,
		Notes:         strings.TrimSpace(dto.Notes),
	}
	if due := parseDate(dto.DueDate); !due.IsZero() {
		invoice.DueDate = &due
	}
	for _, item := range dto.LineItems {
		invoice.LineItems = append(invoice.LineItems, domain.LineItem{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		})
	}
	return invoice
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2 January 2006", "January 2, 2006"}

// parseDate is lenient: an unparseable date becomes the zero time and
// surfaces later as a missing-field finding, not an extraction error.
func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama "+operation, err)
	}
	return strings.TrimSpace(response.Response), nil
}

// extractJSONObject trims any chatter the model wraps around the JSON
// payload.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
