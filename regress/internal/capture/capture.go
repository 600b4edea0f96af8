// Package capture drives screenshot capture over the scenario × viewport
// cross-product and writes each image into the folder of the run mode.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/regress/regress/failure"
	"github.com/hazyhaar/regress/regress/internal/fanout"
	"github.com/hazyhaar/regress/regress/internal/layout"
	"github.com/hazyhaar/regress/regress/scenario"
)

// Capturer takes a screenshot of url at size and streams PNG bytes.
// The stream is read to EOF and closed by the caller; a read error is
// treated as a capture failure.
type Capturer interface {
	Capture(ctx context.Context, url string, size scenario.Size, c scenario.CaptureContext) (io.ReadCloser, error)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(ctx context.Context, url string, size scenario.Size, c scenario.CaptureContext) (io.ReadCloser, error)

func (f CapturerFunc) Capture(ctx context.Context, url string, size scenario.Size, c scenario.CaptureContext) (io.ReadCloser, error) {
	return f(ctx, url, size, c)
}

// Orchestrator runs captures for every cell of a run.
type Orchestrator struct {
	capturer    Capturer
	concurrency int
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithConcurrency bounds the number of cells captured at once. 0 means
// every cell runs at the same time.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// New creates an Orchestrator over capturer.
func New(capturer Capturer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		capturer: capturer,
		logger:   slog.Default(),
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// Concurrency returns the configured cell concurrency bound.
func (o *Orchestrator) Concurrency() int { return o.concurrency }

// CaptureAll captures every scenario at every viewport into the folder of
// mode and returns the written paths in cross-product order. The first
// failing cell fails the whole call and no paths are returned.
func (o *Orchestrator) CaptureAll(ctx context.Context, mode scenario.Mode, scenarios []scenario.Scenario, opts scenario.RunOptions) ([]string, error) {
	cells, err := scenario.Cells(scenarios, opts.Viewports)
	if err != nil {
		return nil, err
	}

	folders, err := layout.Ensure(opts.Dest)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	paths := make([]string, len(cells))
	err = fanout.Run(ctx, len(cells), o.concurrency, func(ctx context.Context, i int) error {
		p, err := o.CaptureCell(ctx, mode, cells[i], folders, opts)
		if err != nil {
			return err
		}
		paths[i] = p
		return nil
	})
	if err != nil {
		o.logger.Error("capture: run failed", "mode", mode, "error", err)
		return nil, fmt.Errorf("capture: %s: %w", mode, err)
	}

	o.logger.Info("capture: run done",
		"mode", mode, "cells", len(cells), "duration", time.Since(start))
	return paths, nil
}

// CaptureCell captures a single cell into the folder of mode. The image is
// streamed to a temporary file renamed into place once complete, so a
// failed capture never leaves a truncated PNG under the final name.
func (o *Orchestrator) CaptureCell(ctx context.Context, mode scenario.Mode, cell scenario.Cell, folders layout.FolderSet, opts scenario.RunOptions) (string, error) {
	path, err := folders.CellPath(mode, cell.File)
	if err != nil {
		return "", err
	}

	size := cell.Viewport.Size()
	stream, err := o.capturer.Capture(ctx, cell.Scenario.URL, size, scenario.Merge(cell.Scenario, opts))
	if err != nil {
		return "", &failure.CaptureError{URL: cell.Scenario.URL, File: cell.File, Cause: err}
	}
	defer stream.Close()

	if err := writeStream(stream, path, cell); err != nil {
		return "", err
	}

	o.logger.Debug("capture: cell done",
		"mode", mode, "url", cell.Scenario.URL, "size", size.String(), "file", path)
	return path, nil
}

// writeStream copies src into path. Read errors are capture failures,
// write errors are I/O failures.
func writeStream(src io.Reader, path string, cell scenario.Cell) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".capture-*.png")
	if err != nil {
		return &failure.IOError{Op: "create", Path: path, Cause: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, readerOnly{src}); err != nil {
		var re *readError
		if errors.As(err, &re) {
			return &failure.CaptureError{URL: cell.Scenario.URL, File: cell.File, Cause: re.err}
		}
		return &failure.IOError{Op: "write", Path: path, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return &failure.IOError{Op: "close", Path: path, Cause: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &failure.IOError{Op: "rename", Path: path, Cause: err}
	}
	committed = true
	return nil
}
