package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ahrav/go-gatekeeper/infrastructure/checks"
	"github.com/ahrav/go-gatekeeper/infrastructure/config"
	"github.com/ahrav/go-gatekeeper/infrastructure/gatestore"
	"github.com/ahrav/go-gatekeeper/infrastructure/guidance"
	"github.com/ahrav/go-gatekeeper/infrastructure/llm"
	"github.com/ahrav/go-gatekeeper/infrastructure/observability"
	"github.com/ahrav/go-gatekeeper/internal/application"
	"github.com/ahrav/go-gatekeeper/internal/logging"
)

// engine bundles everything a command needs.
type engine struct {
	cfg       application.ServiceConfig
	logger    *zap.Logger
	registry  *prometheus.Registry
	store     *gatestore.FileStore
	validator *application.GateValidator
	semantic  *application.SemanticService
}

// loadServiceConfig reads path over the defaults. An empty path keeps the
// defaults.
func loadServiceConfig(ctx context.Context, path string) (application.ServiceConfig, error) {
	cfg := application.DefaultServiceConfig()
	if path == "" {
		return cfg, nil
	}
	loader := config.NewYAMLLoader(path, config.WithValidation(application.ValidateConfig))
	if err := loader.Load(ctx, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newEngine(ctx context.Context, opts globalOptions) (*engine, error) {
	cfg, err := loadServiceConfig(ctx, opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.gatesDir != "" {
		cfg.Gates.Directory = opts.gatesDir
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}
	if cfg.Gates.Directory == "" {
		return nil, errors.New("no gate directory: set gates.directory in the config or pass --gates")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewPrometheusMetrics(registry)

	store, err := gatestore.NewFileStore(ctx, cfg.Gates.Directory,
		gatestore.WithLogger(logging.Named(logger, "gatestore")),
		gatestore.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}

	tracer := otel.Tracer("gatecheck")
	selfChecker := checks.NewSelfChecker(
		checks.WithSelfCheckLogger(logging.Named(logger, "selfcheck")),
		checks.WithIntegrationOptions(llm.IntegrationOptions{Tracer: tracer, Metrics: metrics}),
	)
	validator := application.NewGateValidator(store,
		application.WithLogger(logging.Named(logger, "validator")),
		application.WithMetrics(metrics),
		application.WithTracer(tracer),
		application.WithSelfChecker(selfChecker),
		application.WithMaxConcurrency(cfg.Semantic.MaxConcurrency),
		application.WithLLMIntegration(cfg.Semantic.LLMIntegration),
	)

	renderer, err := guidance.NewRenderer(store, guidance.WithLogger(logging.Named(logger, "guidance")))
	if err != nil {
		return nil, err
	}
	semantic := application.NewSemanticService(renderer, validator, cfg.Semantic,
		application.WithServiceLogger(logging.Named(logger, "semantic")))

	return &engine{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		store:     store,
		validator: validator,
		semantic:  semantic,
	}, nil
}

// close flushes metrics to path when set and syncs the logger.
func (e *engine) close(metricsPath string) error {
	var errs []error
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if metricsPath != "" {
		if err := prometheus.WriteToTextfile(metricsPath, e.registry); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	// Sync fails on terminals; nothing useful can be done about it.
	_ = e.logger.Sync()
	return errors.Join(errs...)
}

// readInput returns the contents of path, or stdin for "-".
func readInput(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
