package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justin4957/zeekreport/internal/config"
	"github.com/justin4957/zeekreport/internal/dashboard"
	"github.com/justin4957/zeekreport/internal/pipeline"
	"github.com/justin4957/zeekreport/internal/watch"
	"github.com/justin4957/zeekreport/pkg/models"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "zeekreport.yaml", "path to YAML config file")
	archivePath := flag.String("archive", "", "zip archive of capture folders (overrides config)")
	outputPath := flag.String("out", "", "PDF report path (overrides config)")
	summaryPath := flag.String("summary", "", "write the summary as JSON to this path")
	watchMode := flag.Bool("watch", false, "re-run whenever the archive changes")
	serveDashboard := flag.Bool("dashboard", false, "serve the latest summary over HTTP")
	verbose := flag.Bool("verbose", false, "log per-capture findings")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("zeekreport %s\n", version)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *archivePath != "" {
		cfg.ArchivePath = *archivePath
	}
	if *outputPath != "" {
		cfg.ReportConfig.OutputPath = *outputPath
	}
	if *summaryPath != "" {
		cfg.ReportConfig.SummaryJSON = *summaryPath
	}
	if *watchMode {
		cfg.WatchConfig.Enabled = true
	}
	if *serveDashboard {
		cfg.DashboardConfig.Enabled = true
	}
	if *verbose {
		cfg.AnalysisConfig.Verbose = true
		cfg.LogLevel = "debug"
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("run failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	var summaries chan *models.Summary
	dashboardDone := make(chan struct{})
	if cfg.DashboardConfig.Enabled {
		summaries = make(chan *models.Summary, 1)
		srv := dashboard.NewServer(cfg.DashboardConfig, logger.Named("dashboard"))
		go func() {
			defer close(dashboardDone)
			srv.Start(ctx, summaries)
		}()
	} else {
		close(dashboardDone)
	}

	publish := func(s *models.Summary) {
		if summaries == nil {
			return
		}
		select {
		case summaries <- s:
		case <-ctx.Done():
		}
	}

	summary, err := p.Run(ctx)
	if err != nil {
		if !cfg.WatchConfig.Enabled {
			return err
		}
		logger.Error("initial run failed, waiting for archive changes", zap.Error(err))
	} else {
		publish(summary)
	}

	if !cfg.WatchConfig.Enabled {
		if cfg.DashboardConfig.Enabled {
			logger.Info("serving dashboard until interrupted", zap.String("addr", cfg.DashboardConfig.Addr()))
			<-ctx.Done()
			<-dashboardDone
		}
		return nil
	}

	w := watch.New(cfg.ArchivePath, cfg.WatchConfig.Debounce(), logger.Named("watch"))
	triggers, err := w.Start(ctx)
	if err != nil {
		return err
	}
	defer w.Stop()

	for range triggers {
		summary, err := p.Run(ctx)
		if err != nil {
			// a half-copied archive fails to open; the next write retriggers
			logger.Error("run failed", zap.Error(err))
			continue
		}
		publish(summary)
	}

	<-dashboardDone
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var zcfg zap.Config
	if lvl == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
