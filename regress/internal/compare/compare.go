// Package compare captures the actual image of every cell, diffs it
// against the stored reference and writes the diff image.
package compare

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/regress/regress/internal/capture"
	"github.com/hazyhaar/regress/regress/internal/diff"
	"github.com/hazyhaar/regress/regress/internal/fanout"
	"github.com/hazyhaar/regress/regress/internal/layout"
	"github.com/hazyhaar/regress/regress/scenario"
)

// Orchestrator runs capture-then-compare for every cell of a run.
type Orchestrator struct {
	capture    *capture.Orchestrator
	engine     *diff.Engine
	onCaptured func(scenario.Cell)
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// OnCaptured registers a hook called once a cell's actual image is
// written, before it is compared. It may be called concurrently.
func OnCaptured(fn func(scenario.Cell)) Option {
	return func(o *Orchestrator) { o.onCaptured = fn }
}

// New creates an Orchestrator.
func New(c *capture.Orchestrator, e *diff.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		capture: c,
		engine:  e,
		logger:  slog.Default(),
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// CompareAll returns one result per cell, nested per scenario then per
// viewport in configuration order. Cells run concurrently; within a cell
// capture, compare and diff write are sequential. The first failing cell
// fails the call and no results are returned.
func (o *Orchestrator) CompareAll(ctx context.Context, scenarios []scenario.Scenario, opts scenario.RunOptions) ([][]*diff.Result, error) {
	cells, err := scenario.Cells(scenarios, opts.Viewports)
	if err != nil {
		return nil, err
	}

	folders, err := layout.Ensure(opts.Dest)
	if err != nil {
		return nil, err
	}

	results := make([][]*diff.Result, len(scenarios))
	for i := range results {
		results[i] = make([]*diff.Result, len(opts.Viewports))
	}

	start := time.Now()
	err = fanout.Run(ctx, len(cells), o.capture.Concurrency(), func(ctx context.Context, i int) error {
		cell := cells[i]
		res, err := o.compareCell(ctx, cell, folders, opts)
		if err != nil {
			return err
		}
		results[cell.ScenarioIndex][cell.ViewportIndex] = res
		return nil
	})
	if err != nil {
		o.logger.Error("compare: run failed", "error", err)
		return nil, fmt.Errorf("compare: %w", err)
	}

	o.logger.Info("compare: run done", "cells", len(cells), "duration", time.Since(start))
	return results, nil
}

func (o *Orchestrator) compareCell(ctx context.Context, cell scenario.Cell, folders layout.FolderSet, opts scenario.RunOptions) (*diff.Result, error) {
	actualPath, err := o.capture.CaptureCell(ctx, scenario.Actual, cell, folders, opts)
	if err != nil {
		return nil, err
	}
	if o.onCaptured != nil {
		o.onCaptured(cell)
	}

	referencePath, err := folders.CellPath(scenario.Reference, cell.File)
	if err != nil {
		return nil, err
	}

	res, err := o.engine.Compare(ctx, referencePath, actualPath)
	if err != nil {
		return nil, err
	}
	res.Scenario = cell.Scenario
	res.Viewport = cell.Viewport
	res.Folders = folders
	res.File = cell.File

	diffPath, err := folders.DiffPath(cell.File)
	if err != nil {
		return nil, err
	}
	if err := diff.Save(res.DiffImage, diffPath); err != nil {
		return nil, err
	}

	o.logger.Debug("compare: cell done",
		"file", cell.File, "mismatch", res.Mismatch())
	return res, nil
}
