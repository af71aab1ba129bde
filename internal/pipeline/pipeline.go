package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justin4957/zeekreport/internal/analyzer"
	"github.com/justin4957/zeekreport/internal/archive"
	"github.com/justin4957/zeekreport/internal/config"
	"github.com/justin4957/zeekreport/internal/enrich"
	"github.com/justin4957/zeekreport/internal/parser"
	"github.com/justin4957/zeekreport/internal/report"
	"github.com/justin4957/zeekreport/internal/services"
	"github.com/justin4957/zeekreport/pkg/models"
)

// Pipeline runs read → enrich → aggregate → report
type Pipeline struct {
	cfg        *config.Config
	reader     *archive.Reader
	ports      enrich.PortNamer
	aggregator *analyzer.Aggregator
	generator  *report.Generator
	logger     *zap.Logger
	now        func() time.Time
}

// New wires the pipeline stages from configuration
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	agg, err := analyzer.NewAggregator(cfg.AnalysisConfig, logger.Named("analyzer"))
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:        cfg,
		reader:     archive.NewReader(cfg.LogSuffix, parser.NewParser(cfg.LogFormat), logger.Named("archive")),
		ports:      services.Load(),
		aggregator: agg,
		generator:  report.NewGenerator(cfg.ReportConfig, logger.Named("report")),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Run performs one full analysis of the configured archive
func (p *Pipeline) Run(ctx context.Context) (*models.Summary, error) {
	start := p.now()
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID), zap.String("archive", p.cfg.ArchivePath))

	tables, err := p.reader.ReadFile(p.cfg.ArchivePath)
	if err != nil {
		return nil, err
	}
	log.Info("archive read", zap.Int("logs", len(tables)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := enrich.Tables(tables, p.ports); err != nil {
		return nil, err
	}

	summary := p.aggregator.Aggregate(tables)
	summary.RunID = runID
	summary.Archive = p.cfg.ArchivePath
	summary.GeneratedAt = start.UTC()

	fields := make([]zap.Field, 0, len(summary.Counters)+1)
	for _, c := range summary.Counters {
		fields = append(fields, zap.Int(string(c.Name), c.Value))
	}
	fields = append(fields, zap.Strings("port_services", summary.PortServices))
	log.Info("analysis complete", fields...)

	if n := summary.Get(models.CounterBannedHosts); n > 0 {
		log.Warn("banned hosts detected", zap.Int("rows", n))
	}

	if err := p.generator.Generate(ctx, summary); err != nil {
		return nil, err
	}

	log.Info("run complete", zap.Duration("elapsed", time.Since(start)))
	return summary, nil
}
