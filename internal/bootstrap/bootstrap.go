package bootstrap

import (
	"context"
	"fmt"

	"github.com/mkazantsev/invoice-auditor/internal/config"
	"github.com/mkazantsev/invoice-auditor/internal/core/ports"
	"github.com/mkazantsev/invoice-auditor/internal/core/usecase"
	"github.com/mkazantsev/invoice-auditor/internal/infrastructure/export/excel"
	"github.com/mkazantsev/invoice-auditor/internal/infrastructure/extractor/pdftext"
	"github.com/mkazantsev/invoice-auditor/internal/infrastructure/llm/ollama"
	"github.com/mkazantsev/invoice-auditor/internal/infrastructure/queue/nats"
	"github.com/mkazantsev/invoice-auditor/internal/infrastructure/repository/postgres"
	"github.com/mkazantsev/invoice-auditor/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.AuditRepository
	Exporter  ports.ReportExporter
	IngestUC  ports.DocumentIngestor
	AuditUC   ports.InvoiceAuditor
	BatchUC   ports.BatchAuditor
	ProcessUC ports.InvoiceProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewAuditRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
		RequestsPerSecond: cfg.SemanticRateLimit,
		RateBurst:         cfg.SemanticRateBurst,
		Executor:          resilience.NewExecutor(resilience.DefaultConfig()),
	})
	analyzer := ollama.NewAnalyzer(ollamaClient)
	invoiceExtractor := ollama.NewExtractor(ollamaClient)
	textExtractor := pdftext.New()
	exporter := excel.New()

	rules, err := usecase.NewRuleValidator(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("init rule validator: %w", err)
	}
	semantic := usecase.NewSemanticValidator(analyzer, cfg.SemanticTimeout)

	auditUC := usecase.NewAuditInvoiceUseCase(rules, semantic)
	batchUC := usecase.NewBatchAuditUseCase(rules, semantic, cfg.SemanticMaxInFlight)
	ingestUC := usecase.NewIngestDocumentUseCase(repo, textExtractor, queue)
	processUC := usecase.NewProcessRecordUseCase(repo, invoiceExtractor, auditUC)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Repo:     repo,
		Exporter: exporter,

		IngestUC:  ingestUC,
		AuditUC:   auditUC,
		BatchUC:   batchUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
