package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/hassan-khan-web/ScholarForge/config"
	"github.com/hassan-khan-web/ScholarForge/council"
	"github.com/hassan-khan-web/ScholarForge/evidence"
	"github.com/hassan-khan-web/ScholarForge/llm"
	"github.com/hassan-khan-web/ScholarForge/metrics"
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/hassan-khan-web/ScholarForge/pipeline"
	"github.com/hassan-khan-web/ScholarForge/progress"
	"github.com/hassan-khan-web/ScholarForge/search"
	"github.com/hassan-khan-web/ScholarForge/source/parser"
	"github.com/hassan-khan-web/ScholarForge/storage"
)

// App wires the configured components into a runnable pipeline.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics  *metrics.Metrics
	registry *model.Registry
	provider search.Provider
	fetcher  *search.Fetcher
	parser   *parser.Registry
	tracker  *progress.Tracker

	// Optional
	store         *storage.Store
	natsConn      *nats.Conn
	metricsServer *http.Server
}

// NewApp builds every component from cfg. Storage and NATS are opened here;
// call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	provider, err := search.New(cfg.Search.Provider, cfg.SearchOptions())
	if err != nil {
		return nil, fmt.Errorf("search provider: %w", err)
	}

	app := &App{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(true),
		registry: model.NewFromConfig(cfg.Models),
		provider: provider,
		fetcher:  search.NewFetcher(cfg.FetchConfig(), logger),
		parser:   parser.NewRegistry(cfg.Pipeline.Documents),
		tracker:  progress.NewTracker(),
	}

	if !cfg.Storage.Disabled {
		store, err := storage.Open(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open report archive: %w", err)
		}
		app.store = store
	}

	if cfg.NATS.URL != "" {
		conn, err := progress.Connect(cfg.NATS.URL)
		if err != nil {
			// Progress publishing is optional
			logger.Warn("Failed to connect to NATS, progress will not be published",
				"url", cfg.NATS.URL, "error", err)
		} else {
			app.natsConn = conn
		}
	}

	return app, nil
}

// newPipeline assembles the gateway, collector and council for one run.
// The run gets its own fork of the registry, so endpoint health starts fresh.
func (a *App) newPipeline() *pipeline.Pipeline {
	registry := a.registry.Fork()
	client := llm.NewClient(registry,
		llm.WithRetryConfig(a.cfg.RetryConfig()),
		llm.WithCallTimeout(a.cfg.GetCallTimeout()),
		llm.WithLogger(a.logger),
		llm.WithObserver(a.metrics),
	)
	collector := evidence.NewCollector(client, a.provider, a.fetcher,
		evidence.WithLogger(a.logger),
		evidence.WithObserver(a.metrics),
		evidence.WithConfig(a.cfg.EvidenceConfig()),
	)
	engine := council.NewEngine(client, collector, registry.Panel(),
		council.WithLogger(a.logger),
		council.WithConfig(a.cfg.Council),
		council.WithObserver(a.metrics),
	)

	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithCredentialCheck(client),
		pipeline.WithParser(a.parser),
		pipeline.WithCouncil(engine),
		pipeline.WithDocumentsCap(a.cfg.Pipeline.DocumentsCap),
	}
	if a.store != nil {
		opts = append(opts, pipeline.WithStore(a.store))
	}
	return pipeline.New(client, collector, opts...)
}

// StartMetrics serves /metrics and /runs/{id} on the configured address.
// It returns the bound address, or "" when metrics are disabled.
func (a *App) StartMetrics() (string, error) {
	if a.cfg.Metrics.Addr == "" {
		return "", nil
	}

	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", a.cfg.Metrics.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("GET /runs/{id}", a.handleRunStatus)
	mux.HandleFunc("DELETE /runs/{id}", a.handleForgetRun)

	a.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("Metrics listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

func (a *App) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := a.tracker.Status(r.PathValue("id"))
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		a.logger.Debug("Failed to write run status", "error", err)
	}
}

func (a *App) handleForgetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := a.tracker.Status(id); !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	a.tracker.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// Generate runs one report. Progress goes to the status tracker, to NATS
// when connected, and to extra, or the log when extra is nil.
func (a *App) Generate(ctx context.Context, req pipeline.Request, extra progress.Sink) (*pipeline.Result, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	sinks := []progress.Sink{a.tracker.Start(req.RunID, req.Topic)}
	if extra != nil {
		sinks = append(sinks, extra)
	} else {
		sinks = append(sinks, progress.NewLog(a.logger.With("run_id", req.RunID)))
	}
	if a.natsConn != nil {
		sinks = append(sinks, progress.NewNATS(a.natsConn, a.cfg.NATS.SubjectPrefix, req.RunID, a.logger))
	}

	res, err := a.newPipeline().Run(ctx, req, progress.Multi(sinks...))
	if err != nil {
		a.tracker.Fail(req.RunID, err)
		return nil, err
	}
	a.tracker.Complete(req.RunID)
	return res, nil
}

// Close releases what NewApp and StartMetrics opened.
func (a *App) Close() error {
	var errs []error
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("nats drain: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("report archive: %w", err))
		}
	}
	return errors.Join(errs...)
}
