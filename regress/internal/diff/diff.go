// Package diff compares a reference image with an actual image and
// produces a structured result: the mismatch percentage and a diff image
// highlighting the changed pixels.
package diff

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/hazyhaar/regress/regress/failure"
	"github.com/hazyhaar/regress/regress/internal/layout"
	"github.com/hazyhaar/regress/regress/scenario"
)

// Comparer is the pluggable image comparison capability.
type Comparer interface {
	Compare(ctx context.Context, referencePath, actualPath string) (*Comparison, error)
}

// Comparison is the raw output of a Comparer.
type Comparison struct {
	MismatchPercentage  float64
	DiffImage           image.Image
	DimensionDifference image.Point     // actual size minus reference size
	ChangedBounds       image.Rectangle // empty when nothing changed
}

// Result is the outcome of one cell. The engine fills the comparison
// fields; the compare orchestrator adds the cell metadata.
type Result struct {
	MismatchPercentage  float64         `json:"mismatch_percentage"`
	DimensionDifference image.Point     `json:"dimension_difference"`
	ChangedBounds       image.Rectangle `json:"changed_bounds"`
	DiffImage           image.Image     `json:"-"`

	Scenario scenario.Scenario `json:"scenario"`
	Viewport scenario.Viewport `json:"viewport"`
	Folders  layout.FolderSet  `json:"folders"`
	File     string            `json:"file"`
}

// Mismatch formats the percentage the way reports display it ("12.34").
func (r *Result) Mismatch() string {
	return strconv.FormatFloat(r.MismatchPercentage, 'f', 2, 64)
}

// SameDimensions reports whether reference and actual had the same size.
func (r *Result) SameDimensions() bool {
	return r.DimensionDifference == image.Point{}
}

// Engine wraps a Comparer with existence checks on its inputs.
type Engine struct {
	cmp    Comparer
	logger *slog.Logger
}

// NewEngine creates an Engine over cmp.
func NewEngine(cmp Comparer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cmp: cmp, logger: logger}
}

// Compare diffs referencePath against actualPath. Both existence checks
// run concurrently with the comparison itself; a missing input is reported
// as a FileNotFoundError naming every missing path, whatever the comparer
// returned.
func (e *Engine) Compare(ctx context.Context, referencePath, actualPath string) (*Result, error) {
	paths := []string{referencePath, actualPath}
	missing := make([]bool, len(paths))

	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := os.Stat(p)
			missing[i] = errors.Is(err, os.ErrNotExist)
		}()
	}

	type outcome struct {
		cmp *Comparison
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		c, err := e.cmp.Compare(ctx, referencePath, actualPath)
		done <- outcome{c, err}
	}()

	wg.Wait()
	var notFound []string
	for i, m := range missing {
		if m {
			notFound = append(notFound, paths[i])
		}
	}
	if len(notFound) > 0 {
		e.logger.Warn("diff: missing input", "paths", notFound)
		return nil, &failure.FileNotFoundError{Paths: notFound}
	}

	out := <-done
	if out.err != nil {
		return nil, &failure.CompareError{Reference: referencePath, Actual: actualPath, Cause: out.err}
	}
	if out.cmp == nil {
		return nil, &failure.CompareError{Reference: referencePath, Actual: actualPath, Cause: fmt.Errorf("diff: comparer returned no result")}
	}
	if out.cmp.DiffImage == nil {
		return nil, &failure.CompareError{Reference: referencePath, Actual: actualPath, Cause: fmt.Errorf("diff: comparer returned no diff image")}
	}

	e.logger.Debug("diff: compared",
		"reference", referencePath, "actual", actualPath, "mismatch", out.cmp.MismatchPercentage)
	return &Result{
		MismatchPercentage:  out.cmp.MismatchPercentage,
		DimensionDifference: out.cmp.DimensionDifference,
		ChangedBounds:       out.cmp.ChangedBounds,
		DiffImage:           out.cmp.DiffImage,
	}, nil
}
