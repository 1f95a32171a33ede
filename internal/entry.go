// Package internal provides the application initialization and runtime
// logic behind each CLI command.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/scanner"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/watch"
	"github.com/starford/ansuz/pkg/exitcode"
)

// ErrFindings is returned when findings are present and the caller asked
// for them to fail the command.
var ErrFindings = errors.New("findings present")

// environment is what every command needs once configuration is resolved.
type environment struct {
	logger   *slog.Logger
	store    storage.Provider
	pipeline pipeline.Options
}

func newApplication(opts []Option) (*application, error) {
	app := &application{
		out:     os.Stdout,
		logOut:  os.Stderr,
		version: "dev",
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, fmt.Errorf("config is required"))
	}
	return app, nil
}

func (a *application) setup() (*environment, error) {
	cfg := a.config

	level := cfg.App.LogLevel
	if a.verbose {
		level = slog.LevelDebug
	}
	// Structured JSON logs on stderr; stdout carries reports and MCP traffic.
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("root", cfg.Corpus.Root),
		slog.Bool("fix", a.fix),
		slog.Int("workers", cfg.App.WorkerCount()),
		slog.String("log_level", level.String()))

	store, err := storage.NewFS(cfg.Corpus.Root)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.FileSystemError, fmt.Errorf("init storage: %w", err))
	}

	fields := schema.WithRequired(schema.DefaultFields(), cfg.Schema.RequiredFields...)
	var validatorOpts []schema.Option
	if cfg.Schema.JSONSchema != "" {
		js, err := schema.LoadJSONSchema(cfg.Schema.JSONSchema)
		if err != nil {
			return nil, exitcode.Wrap(exitcode.ConfigError, fmt.Errorf("load json schema: %w", err))
		}
		validatorOpts = append(validatorOpts, schema.WithJSONSchema(js))
	}

	return &environment{
		logger: logger,
		store:  store,
		pipeline: pipeline.Options{
			Scanner:     cfg.Corpus.ScannerOptions(),
			TOC:         cfg.TOC.Synthesizer(),
			Validator:   schema.New(fields, validatorOpts...),
			IndexFields: cfg.Index.Fields,
			Fix:         a.fix,
			Workers:     cfg.App.WorkerCount(),
			Logger:      logger,
		},
	}, nil
}

func (a *application) verdict(findings bool) error {
	if findings && a.failOnFindings {
		return exitcode.Wrap(exitcode.FindingsPresent, ErrFindings)
	}
	return nil
}

// RunMaintain performs one maintenance pass and writes its report.
func RunMaintain(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}

	rep, err := pipeline.Run(ctx, rt.store, rt.pipeline)
	if err != nil {
		return fmt.Errorf("maintain: %w", err)
	}

	exportPath := app.exportPath
	if exportPath == "" {
		exportPath = app.config.Index.ExportPath
	}
	if exportPath != "" {
		if err := index.Export(ctx, rep.Index, exportPath); err != nil {
			return fmt.Errorf("export index: %w", err)
		}
		rt.logger.Info("Index exported", slog.String("path", exportPath), slog.Int("entries", rep.Index.Len()))
	}

	if err := rep.Write(app.out, app.config.App.Format); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return app.verdict(rep.HasFindings())
}

// RunDrift performs the duplicate check followed by a maintenance pass.
func RunDrift(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}

	d, err := pipeline.Drift(ctx, rt.store, rt.pipeline)
	if err != nil {
		return err
	}
	if err := d.Write(app.out, app.config.App.Format); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return app.verdict(d.HasFindings())
}

// RunWatch re-runs maintenance whenever corpus documents change, until a
// shutdown signal arrives or ctx is cancelled.
func RunWatch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	sc, err := scanner.New(rt.store.Root(), rt.pipeline.Scanner)
	if err != nil {
		return err
	}

	run := func(ctx context.Context) error {
		rep, err := pipeline.Run(ctx, rt.store, rt.pipeline)
		if err != nil {
			return err
		}
		return rep.Write(app.out, app.config.App.Format)
	}

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, cancel := context.WithCancel(gCtx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return watch.Watch(watchCtx, rt.store.Root(), sc, run, watch.WithLogger(rt.logger))
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			rt.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-watchCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		rt.logger.Error("Watch error", slog.String("error", err.Error()))
		return err
	}
	rt.logger.Info("Watch stopped")
	return nil
}

// RunMCP performs a dry maintenance pass and serves its results as MCP
// tools on stdio.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append(opts, WithFix(false))
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}

	rep, err := pipeline.Run(ctx, rt.store, rt.pipeline)
	if err != nil {
		return fmt.Errorf("mcp: %w", err)
	}

	rt.logger.Info("MCP server starting on stdio", slog.Int("documents", rep.Documents))
	return mcpserver.New(rep, app.version).ServeStdio()
}
