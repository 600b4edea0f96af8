package regress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/regress/regress/internal/browser"
	"github.com/hazyhaar/regress/regress/internal/capture"
	"github.com/hazyhaar/regress/regress/internal/history"
	"github.com/hazyhaar/regress/regress/internal/layout"
	"github.com/hazyhaar/regress/regress/internal/report"
	"github.com/hazyhaar/regress/regress/internal/server"
)

// Capturer produces one PNG screenshot per call.
type Capturer = capture.Capturer

// CapturerFunc adapts a function to Capturer.
type CapturerFunc = capture.CapturerFunc

// HistoryStore persists runs. Re-exported from internal.
type HistoryStore = history.Store

// Browser is a running Chrome that captures screenshots.
type Browser struct {
	*browser.Capturer
	mgr *browser.Manager
}

// StartBrowser launches Chrome, or connects to cfg.Remote when set.
func StartBrowser(ctx context.Context, cfg BrowserConfig, logger *slog.Logger) (*Browser, error) {
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Remote,
		Headful:          cfg.Headful,
		Timeout:          cfg.Timeout,
		ResourceBlocking: cfg.ResourceBlocking,
		Logger:           logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return nil, fmt.Errorf("regress: %w", err)
	}
	return &Browser{Capturer: browser.NewCapturer(mgr), mgr: mgr}, nil
}

// Close shuts Chrome down.
func (b *Browser) Close() error {
	return b.mgr.Close()
}

// OpenHistory opens (or creates) the history database at path.
func OpenHistory(path string) (*HistoryStore, error) {
	return history.Open(path)
}

// Handler serves the report folder and the run history over HTTP.
func (p *Pipeline) Handler() http.Handler {
	return server.New(layout.Folders(p.cfg.Dest), p.cfg.Dest, p.store, p.logger)
}

// WriteSummary prints the compare verdict of out to w. Generate runs
// print nothing.
func WriteSummary(w io.Writer, out *Outcome) error {
	if out == nil || out.Report == nil {
		return nil
	}
	return report.Summary(w, out.Report)
}
