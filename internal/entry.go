// Package internal provides the application entry points: a single build,
// a watch loop, the preview server and the MCP server.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/siphon/internal/api"
	"github.com/starford/siphon/internal/builder"
	"github.com/starford/siphon/internal/collection"
	"github.com/starford/siphon/internal/index"
	"github.com/starford/siphon/internal/mcpserver"
	"github.com/starford/siphon/internal/sse"
	"github.com/starford/siphon/internal/storage"
)

type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	source  *storage.FS
	db      *index.DB
	builder *builder.Builder
	svc     api.Service
	events  *sse.Broker
}

// publishing announces every finished build to SSE clients.
type publishing struct {
	*builder.Builder
	events *sse.Broker
}

func (p publishing) Build(ctx context.Context) (*builder.Report, error) {
	report, err := p.Builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range report.Outputs {
		if o.Written {
			p.events.PublishCollection(o.Collection)
		}
	}
	p.events.Publish(sse.Event{Type: sse.TypeBuildFinished, Data: report})
	return report, nil
}

func (r *runtime) Close() error {
	return r.db.Close()
}

// setup applies opts and wires logger, storage, catalog and builder.
func setup(opts []Option) (*runtime, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("source_path", cfg.Source.Path),
		slog.String("target_path", cfg.Target.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("dry_run", cfg.Target.DryRun),
		slog.String("log_level", cfg.App.LogLevel.String()))

	source, err := storage.NewFS(cfg.Source.Path)
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}
	target, err := storage.EnsureFS(cfg.Target.Path)
	if err != nil {
		return nil, fmt.Errorf("init target: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	b := builder.New(source, target, db, builder.Options{
		SourceExtension: cfg.Source.Extension,
		TargetExtension: cfg.Target.Extension,
		KeepExtension:   cfg.Names.KeepExtension,
		CleanDrafts:     cfg.Source.CleanDrafts,
		DryRun:          cfg.Target.DryRun,
		Workers:         cfg.Source.Workers,
		Missing:         collection.MissingPolicy(cfg.Target.MissingCollection),
	}, logger)

	return &runtime{cfg: cfg, logger: logger, source: source, db: db, builder: b, svc: b}, nil
}

// Run performs a single build and returns its report.
func Run(ctx context.Context, opts ...Option) (*builder.Report, error) {
	rt, err := setup(opts)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	return rt.builder.Build(ctx)
}

// Collections returns the index stored by the latest build.
func Collections(ctx context.Context, opts ...Option) (*collection.Index, error) {
	rt, err := setup(opts)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	return rt.builder.Collections(ctx)
}

// Watch builds once, then rebuilds whenever documents change until a
// shutdown signal arrives or ctx is cancelled.
func Watch(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.builder.Build(ctx); err != nil {
		rt.logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	g, gCtx := errgroup.WithContext(signalContext(ctx, rt.logger))
	g.Go(func() error {
		return rt.watch(gCtx)
	})
	return g.Wait()
}

// Serve builds once and runs the preview HTTP server alongside a watcher.
func Serve(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	rt.events = sse.NewBroker(2 * time.Second)
	defer rt.events.Close()
	rt.svc = publishing{Builder: rt.builder, events: rt.events}

	if _, err := rt.svc.Build(ctx); err != nil {
		logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/api", api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.events))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(signalContext(ctx, logger))

	g.Go(func() error {
		return rt.watch(gCtx)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP builds once and serves MCP tools over stdio.
func ServeMCP(ctx context.Context, opts ...Option) error {
	rt, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.builder.Build(ctx); err != nil {
		rt.logger.Warn("initial build failed", slog.String("error", err.Error()))
	}
	return mcpserver.New(rt.builder).ServeStdio()
}

func (rt *runtime) watch(ctx context.Context) error {
	return index.Watch(ctx, rt.source.Root(), index.WatchOptions{
		Extension: rt.cfg.Source.Extension,
		Ignore:    rt.builder.IgnorePath,
	}, rt.logger, func(paths []string) {
		rt.logger.Info("documents changed", slog.Int("count", len(paths)))
		if rt.events != nil {
			rt.events.Publish(sse.Event{Type: sse.TypePoemsChanged, Data: map[string][]string{"paths": paths}})
		}
		if _, err := rt.svc.Build(ctx); err != nil {
			rt.logger.Error("rebuild failed", slog.String("error", err.Error()))
		}
	})
}

// signalContext is cancelled on SIGINT/SIGTERM or when parent is done.
func signalContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-ctx.Done():
		}
		cancel()
	}()
	return ctx
}
