// Package main is the entry point for the linkreview server.
//
// linkreview coordinates multiple simultaneous reviewers of a shared JSON
// dataset of link-comparison records. Configuration is read from CLI flags,
// LINKREVIEW_* environment variables, and an optional YAML config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/breslov-archive/linkreview/internal/config"
	"github.com/breslov-archive/linkreview/internal/review"
	"github.com/breslov-archive/linkreview/internal/server"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "linkreview: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "Path to YAML config file")
	httpAddr := flag.String("http", "", "Address to listen on (e.g., localhost:7860, :7860)")
	dataFile := flag.String("data-file", "", "Path to the JSON dataset file")
	adminUser := flag.String("admin-user", "", "Username allowed to upload, download, and force-save")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			// Drop empty attrs to keep request lines short.
			switch t := a.Value.Any().(type) {
			case string:
				if t == "" {
					return slog.Attr{}
				}
			case time.Duration:
				if t == 0 {
					return slog.Attr{}
				}
			case nil:
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *httpAddr != "" {
		cfg.Server.Addr = *httpAddr
	}
	if *dataFile != "" {
		cfg.Data.File = *dataFile
	}
	if *adminUser != "" {
		cfg.Review.AdminUser = *adminUser
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	switch cfg.Log.Level {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info", "":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", cfg.Log.Level)
	}

	// Normalize addr: ":7860" becomes "localhost:7860".
	addr := cfg.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Data.File), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := review.New(cfg.Data.File, review.Config{
		SaveThreshold:    cfg.Review.SaveThreshold,
		InactivityWindow: time.Duration(cfg.Review.SessionTimeout),
	})
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	slog.InfoContext(ctx, "Dataset loaded", "file", cfg.Data.File, "records", store.Len(), "dataVersion", store.Version())

	// Watch own executable for modifications (for development restarts).
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}
	// Watch the dataset file so writes by a sibling tool are visible in logs.
	if err := watchDataset(ctx, cfg.Data.File); err != nil {
		slog.WarnContext(ctx, "Failed to watch dataset file", "err", err)
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.New(store, cfg).Router(),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "admin", cfg.Review.AdminUser)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	// Flush unsaved modifications before exiting.
	if err := store.ForceSave(); err != nil {
		return fmt.Errorf("final save failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}

func printVersion() {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	fmt.Printf("linkreview %s\n", version)
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected. This enables seamless
// restarts during development.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}

// watchDataset logs when the dataset file changes on disk. The server's own
// atomic saves show up here too; the value is seeing writes from the legacy
// sibling tool that shares the lock file.
func watchDataset(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: atomic renames replace the file node itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return err
	}
	base := filepath.Base(path)
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
					slog.DebugContext(ctx, "Dataset file changed on disk", "event", event.Op.String())
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching dataset file", "err", err)
			}
		}
	}()
	return nil
}
