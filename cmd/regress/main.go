// Command regress runs the CSS visual regression pipeline.
//
// Usage:
//
//	regress -config regress.yaml -generate     # capture reference screenshots
//	regress -config regress.yaml               # compare and write the report
//	regress -config regress.yaml -serve :8080  # compare, then serve the report
//	regress -config regress.yaml -mcp          # expose the pipeline as MCP tools on stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/regress/regress"
)

type options struct {
	configPath     string
	generate       bool
	serveAddr      string
	mcp            bool
	open           bool
	failOnMismatch bool
	historyPath    string
}

// errMismatch signals failed cells under -fail-on-mismatch.
var errMismatch = errors.New("cells above threshold")

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "regress.yaml", "path to regress.yaml config file")
	flag.BoolVar(&o.generate, "generate", false, "capture reference screenshots instead of comparing")
	flag.StringVar(&o.serveAddr, "serve", "", "serve the report on this address after the run (e.g. :8080)")
	flag.BoolVar(&o.mcp, "mcp", false, "serve regress tools over MCP on stdio")
	flag.BoolVar(&o.open, "open", false, "open the report in a browser after compare")
	flag.BoolVar(&o.failOnMismatch, "fail-on-mismatch", false, "exit 1 when a cell is above the threshold")
	flag.StringVar(&o.historyPath, "history", "", "history database path (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		if !errors.Is(err, errMismatch) {
			logger.Error("regress: fatal", "error", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := regress.LoadConfigFile(o.configPath)
	if err != nil {
		return err
	}
	if o.historyPath != "" {
		cfg.History.Path = o.historyPath
	}

	b, err := regress.StartBrowser(ctx, cfg.Browser, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	opts := []regress.Option{regress.WithLogger(logger)}
	if cfg.History.Path != "" {
		store, err := regress.OpenHistory(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, regress.WithHistory(store))
	}
	p := regress.New(cfg, b, opts...)

	if o.mcp {
		srv := mcp.NewServer(&mcp.Implementation{Name: "regress", Version: "1.0.0"}, nil)
		p.RegisterMCP(srv)
		logger.Info("regress: mcp on stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	}

	out, runErr := p.Run(ctx, o.generate)
	if err := regress.WriteSummary(os.Stdout, out); err != nil {
		logger.Warn("regress: summary", "error", err)
	}
	if runErr != nil {
		return runErr
	}

	if o.open && out.IndexPath != "" {
		if err := openBrowser(out.IndexPath); err != nil {
			logger.Warn("regress: open report", "error", err)
		}
	}
	if o.serveAddr != "" {
		if err := serve(ctx, logger, o.serveAddr, p.Handler()); err != nil {
			return err
		}
	}
	if o.failOnMismatch && out.Report != nil && !out.Report.Passed() {
		return errMismatch
	}
	return nil
}

func serve(ctx context.Context, logger *slog.Logger, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("regress: serving report", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("regress: shutdown", "error", err)
	}
	logger.Info("regress: server stopped")
	return nil
}

func openBrowser(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}
