package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/skywatch/internal/api"
	"github.com/star/skywatch/internal/archive"
	"github.com/star/skywatch/internal/config"
	"github.com/star/skywatch/internal/heavens"
	"github.com/star/skywatch/internal/iridium"
	"github.com/star/skywatch/internal/refresh"
	"github.com/star/skywatch/internal/satellite"
	"github.com/star/skywatch/internal/selfcheck"
)

const usage = `usage: skywatch <command> [flags]

commands:
  serve                      run the HTTP API and scheduled refresher
  fetch <satellite|iridium>  fetch one table and print it as JSON
  check                      run the project self-check
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "serve":
		code = runServe(os.Args[2:])
	case "fetch":
		code = runFetch(os.Args[2:])
	case "check":
		code = runCheck(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		code = 2
	}
	os.Exit(code)
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// sources builds the table fetchers for cfg.
func sources(cfg config.Config, logger *slog.Logger) []heavens.TableGetter {
	client := heavens.NewClient(cfg.OptionBuilder(), logger)
	return []heavens.TableGetter{
		satellite.NewFetcher(client, cfg.Satellite.NoradID, logger),
		iridium.NewFetcher(client, logger),
	}
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("SKYWATCH_CONFIG"), "path to YAML config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := newLogger(os.Stdout, *debug)

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}

	store := archive.NewStore()
	tableArchive := archive.NewCache(cfg.Archive.Dir, cfg.Archive.MaxFiles)

	refresher, err := refresh.New(cfg.Refresh.Config, store, tableArchive, logger, sources(cfg, logger)...)
	if err != nil {
		logger.Error("invalid refresh configuration", "error", err)
		return 1
	}

	// Attempt to load archived tables on startup.
	for _, name := range refresher.Sources() {
		t, err := tableArchive.LoadLatest(name)
		if err != nil {
			logger.Info("no archived table, starting without it", "source", name, "error", err)
			continue
		}
		refresher.Seed(t)
		logger.Info("loaded table from archive", "source", name, "rows", len(t.Rows), "fetched_at", t.FetchedAt.Format(time.RFC3339))
	}

	srv := api.NewServer(cfg.HTTP, logger, store, refresher)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Refresh.Enabled {
		go func() {
			// Fill sources the archive could not provide before the first tick.
			for _, name := range refresher.Sources() {
				if store.Get(name) != nil {
					continue
				}
				if _, err := refresher.RefreshOnce(ctx, name); err != nil {
					logger.Warn("initial fetch failed", "source", name, "error", err)
				}
			}
		}()
		go refresher.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.HTTP.Addr, "auth_enabled", cfg.HTTP.Auth.Enabled, "refresh_enabled", cfg.Refresh.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server listen error", "error", err)
		return 1
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return 1
	}

	logger.Info("server stopped")
	return 0
}

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("SKYWATCH_CONFIG"), "path to YAML config file")
	archiveIt := fs.Bool("archive", false, "also write the table to the archive directory")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	name := fs.Arg(0)

	logger := newLogger(os.Stderr, *debug)
	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}

	var getter heavens.TableGetter
	for _, s := range sources(cfg, logger) {
		if s.Name() == name {
			getter = s
		}
	}
	if getter == nil {
		fmt.Fprintf(os.Stderr, "unknown table source %q\n", name)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t, err := getter.GetTable(ctx)
	if err != nil {
		logger.Error("fetch failed", "source", name, "error", err)
		return 1
	}

	if *archiveIt {
		if err := archive.NewCache(cfg.Archive.Dir, cfg.Archive.MaxFiles).Write(t); err != nil {
			logger.Error("archive write failed", "source", name, "error", err)
			return 1
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		logger.Error("encoding table", "error", err)
		return 1
	}
	return 0
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	root := fs.String("root", ".", "project root to check")
	live := fs.Bool("live", false, "also fetch each table once")
	configPath := fs.String("config", os.Getenv("SKYWATCH_CONFIG"), "path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := newLogger(io.Discard, false)
	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	fsys := os.DirFS(*root)
	checks := []selfcheck.Check{
		selfcheck.FileStructure(fsys, selfcheck.RequiredFiles...),
		selfcheck.Manifest(fsys, selfcheck.ManifestFile),
		selfcheck.UtilsCheck(selfcheck.DefaultUtils()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	for _, s := range sources(cfg, logger) {
		if *live {
			checks = append(checks, selfcheck.LiveSource(ctx, s.Name(), s))
		} else {
			checks = append(checks, selfcheck.Source(s.Name(), s))
		}
	}

	return selfcheck.Run(os.Stdout, checks...).ExitCode()
}
