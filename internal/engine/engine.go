package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"catalogpull/internal/config"
	"catalogpull/internal/metrics"
	"catalogpull/internal/output"
	"catalogpull/internal/pull"

	"github.com/google/uuid"
)

func exitCodeForRun(fatal, partial, failures bool) int {
	// Exit code contract:
	// 0 = every node compiled on the new server
	// 1 = compile failures recorded
	// 2 = partial run (some seed calls were dropped)
	// 3 = fatal error (no report was produced)
	if fatal {
		return 3
	}
	if partial {
		return 2
	}
	if failures {
		return 1
	}
	return 0
}

func setupOutputManager(cfg *config.Config, stdout io.Writer) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(stdout, cfg.Output.ConsoleFormat)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Report Sink
	if cfg.Output.Report != "" {
		rs, err := output.NewReportSink(cfg.Output.Report)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

type Engine struct {
	Finder pull.NodeFinder
	Seeder pull.SeedClient

	// Publisher files the Markdown report as an issue. Nil disables publishing.
	Publisher Publisher

	Logger *slog.Logger
	Stdout io.Writer

	newRunID func() string
}

// New builds an engine with the Puppet, PuppetDB and (when requested)
// GitHub collaborators described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	col, err := buildCollaborators(cfg, logger)
	if err != nil {
		return nil, err
	}
	e := NewEngine(col.finder, col.seeder, logger)
	if cfg.Publish.Issue != "" && !cfg.Runtime.DryRun {
		pub, err := newGitHubPublisher(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		e.Publisher = pub
	}
	return e, nil
}

func NewEngine(finder pull.NodeFinder, seeder pull.SeedClient, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		Finder:   finder,
		Seeder:   seeder,
		Logger:   logger,
		Stdout:   os.Stdout,
		newRunID: uuid.NewString,
	}
}

func pullOptions(cfg *config.Config) pull.Options {
	return pull.Options{
		OldServer:    cfg.Servers.Old,
		NewServer:    cfg.Servers.New,
		Threads:      cfg.Runtime.Threads,
		UsePuppetDB:  cfg.Discovery.UsePuppetDB,
		FilterLocal:  cfg.Discovery.FilterLocal,
		ChangedDepth: cfg.Runtime.ChangedDepth,
	}
}

// Run pulls catalogs for every discovered node and returns the process exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) int {
	if cfg.Runtime.DryRun {
		return e.ListNodes(ctx, cfg)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	outMgr, err := setupOutputManager(cfg, e.Stdout)
	if err != nil {
		e.Logger.Error("cannot create output sinks", "error", err)
		return exitCodeForRun(true, false, false)
	}
	defer outMgr.Close()

	runID := e.newRunID()
	logger := e.Logger.With("run_id", runID)
	rec := metrics.NewRecorder()

	_ = outMgr.Write(output.Event{
		Type:      output.EventRunStarted,
		RunID:     runID,
		OldServer: cfg.Servers.Old,
		NewServer: cfg.Servers.New,
		Threads:   cfg.Runtime.Threads,
	})

	puller, err := pull.NewPuller(e.Finder, e.Seeder,
		pull.WithPullLogger(logger),
		pull.WithDiscoveredNodes(func(nodes []string) {
			logger.Info("nodes discovered", "count", len(nodes))
			_ = outMgr.Write(output.Event{Type: output.EventNodesDiscovered, RunID: runID, Nodes: len(nodes)})
		}),
		pull.WithSeedObserver(func(ev pull.SeedEvent) {
			rec.ObserveSeed(ev)
			_ = outMgr.Write(output.NodeSeeded(runID, ev))
		}),
	)
	if err != nil {
		return e.finish(outMgr, runID, exitCodeForRun(true, false, false), err, cfg.Runtime.Verbose)
	}

	rep, err := puller.Pull(ctx, cfg.Catalogs.OldDir, cfg.Catalogs.NewDir, cfg.Discovery.Query, pullOptions(cfg))
	if err != nil {
		return e.finish(outMgr, runID, exitCodeForRun(true, false, false), err, cfg.Runtime.Verbose)
	}

	logger.Info("pull finished",
		"nodes", rep.TotalNodes,
		"failed", rep.FailedNodesTotal,
		"dropped_calls", rep.DroppedCalls,
	)
	_ = outMgr.Write(output.Event{Type: output.EventReport, RunID: runID, Report: rep})

	rec.ObserveReport(rep)
	if cfg.Output.MetricsTextfile != "" {
		if err := rec.WriteTextfile(cfg.Output.MetricsTextfile); err != nil {
			logger.Error("cannot write metrics textfile", "path", cfg.Output.MetricsTextfile, "error", err)
		}
	}

	code := exitCodeForRun(false, rep.DroppedCalls > 0, rep.FailedNodesTotal > 0)
	if e.Publisher != nil && rep.FailedNodesTotal > 0 {
		e.publish(ctx, cfg, rep, output.RunMeta{
			RunID:     runID,
			OldServer: cfg.Servers.Old,
			NewServer: cfg.Servers.New,
			ExitCode:  code,
			Finished:  true,
		}, logger)
	}

	_ = outMgr.Write(output.Event{Type: output.EventRunFinished, RunID: runID, ExitCode: code})
	return code
}

// ListNodes runs discovery only and prints the resolved node names.
func (e *Engine) ListNodes(ctx context.Context, cfg *config.Config) int {
	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	outMgr, err := setupOutputManager(cfg, e.Stdout)
	if err != nil {
		e.Logger.Error("cannot create output sinks", "error", err)
		return exitCodeForRun(true, false, false)
	}
	defer outMgr.Close()

	runID := e.newRunID()
	if e.Finder == nil {
		return e.finish(outMgr, runID, exitCodeForRun(true, false, false), errors.New("node finder is nil"), cfg.Runtime.Verbose)
	}

	nodes, err := e.Finder.FindNodes(ctx, cfg.Discovery.Query, pull.DiscoveryOptions{
		OldServer:   cfg.Servers.Old,
		UsePuppetDB: cfg.Discovery.UsePuppetDB,
		FilterLocal: cfg.Discovery.FilterLocal,
	})
	if err == nil && len(nodes) == 0 {
		err = pull.ErrNoNodesFound
	}
	if err != nil {
		err = fmt.Errorf("problem finding nodes with query %v: %w", cfg.Discovery.Query, err)
		return e.finish(outMgr, runID, exitCodeForRun(true, false, false), err, cfg.Runtime.Verbose)
	}

	_ = outMgr.Write(output.Event{
		Type:      output.EventNodesDiscovered,
		RunID:     runID,
		Nodes:     len(nodes),
		NodeNames: nodes,
	})
	return exitCodeForRun(false, false, false)
}

func (e *Engine) finish(outMgr *output.Manager, runID string, code int, err error, verbose bool) int {
	if err != nil {
		e.Logger.Error(presentRunError(err, verbose), "run_id", runID)
	}
	_ = outMgr.Write(output.Event{Type: output.EventRunFinished, RunID: runID, ExitCode: code, Error: errString(err)})
	return code
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
