package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkazantsev/invoice-auditor/internal/core/domain"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	raw_text TEXT NOT NULL DEFAULT '',
	invoice_number TEXT NOT NULL DEFAULT '',
	invoice JSONB NOT NULL DEFAULT '{}'::jsonb,
	report JSONB,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);
CREATE INDEX IF NOT EXISTS idx_invoices_number ON invoices(invoice_number);
CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *AuditRepository) Create(ctx context.Context, record *domain.InvoiceRecord) error {
	invoiceJSON, err := json.Marshal(record.Invoice)
	if err != nil {
		return fmt.Errorf("marshal invoice: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO invoices (
	id, filename, raw_text, invoice_number, invoice, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		record.ID, record.Filename, record.Invoice.RawText, strings.TrimSpace(record.Invoice.InvoiceNumber),
		invoiceJSON, string(record.Status), record.Error, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice record: %w", err)
	}
	return nil
}

func (r *AuditRepository) GetByID(ctx context.Context, id string) (*domain.InvoiceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, raw_text, invoice, status, error_message, created_at, updated_at
FROM invoices
WHERE id = $1
`, id)

	var record domain.InvoiceRecord
	var invoiceRaw []byte
	var status string
	var errMessage sql.NullString
	var rawText string

	err := row.Scan(
		&record.ID, &record.Filename, &rawText, &invoiceRaw, &status, &errMessage,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrInvoiceNotFound, "get invoice record", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan invoice record: %w", err)
	}

	if err := json.Unmarshal(invoiceRaw, &record.Invoice); err != nil {
		return nil, fmt.Errorf("unmarshal invoice: %w", err)
	}
	record.Invoice.RawText = rawText
	record.Status = domain.InvoiceStatus(status)
	record.Error = errMessage.String
	return &record, nil
}

func (r *AuditRepository) UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE invoices
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	return requireRowsAffected(result, "update invoice status", id)
}

func (r *AuditRepository) SaveExtraction(ctx context.Context, id string, invoice domain.Invoice) error {
	invoiceJSON, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("marshal invoice: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE invoices
SET invoice = $2, invoice_number = $3, updated_at = $4
WHERE id = $1
`, id, invoiceJSON, strings.TrimSpace(invoice.InvoiceNumber), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}
	return requireRowsAffected(result, "save extraction", id)
}

func (r *AuditRepository) SaveReport(ctx context.Context, id string, report domain.Report) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE invoices
SET report = $2, updated_at = $3
WHERE id = $1
`, id, reportJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return requireRowsAffected(result, "save report", id)
}

func (r *AuditRepository) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT report
FROM invoices
WHERE id = $1
`, id)

	var reportRaw []byte
	if err := row.Scan(&reportRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrInvoiceNotFound, "get report", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	if len(reportRaw) == 0 {
		return nil, domain.WrapError(domain.ErrInvoiceNotFound, "get report", fmt.Errorf("report not ready: id=%s", id))
	}

	var report domain.Report
	if err := json.Unmarshal(reportRaw, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

func (r *AuditRepository) KnownInvoiceNumbers(ctx context.Context, excludeID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT invoice_number
FROM invoices
WHERE id <> $1 AND invoice_number <> ''
`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query known invoice numbers: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("scan invoice number: %w", err)
		}
		known[number] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice numbers: %w", err)
	}
	return known, nil
}

func requireRowsAffected(result sql.Result, op, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrInvoiceNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
