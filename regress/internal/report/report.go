// Package report aggregates per-cell diff results into run-level data and
// renders it: an HTML page next to the images, plus optional Markdown and
// PDF exports and a terminal summary.
package report

import (
	"html/template"
	"math"
	"time"

	"github.com/hazyhaar/regress/regress/failure"
	"github.com/hazyhaar/regress/regress/internal/diff"
	"github.com/hazyhaar/regress/regress/scenario"
)

// Data is everything a report template can reach.
type Data struct {
	Title           string
	RunID           string
	GeneratedAt     time.Time
	Results         [][]*diff.Result
	FlatResults     []*diff.Result
	AverageMismatch float64
	Threshold       float64
	Failed          int
	Styles          template.CSS
	Script          template.JS
}

// Passed reports whether no cell exceeded the threshold.
func (d *Data) Passed() bool { return d.Failed == 0 }

// IsFailed reports whether r is above the run threshold.
func (d *Data) IsFailed(r *diff.Result) bool {
	return r.MismatchPercentage > d.Threshold
}

// Average formats AverageMismatch with two decimals; "n/a" when undefined.
func (d *Data) Average() string {
	if math.IsNaN(d.AverageMismatch) {
		return "n/a"
	}
	return formatPercent(d.AverageMismatch)
}

// Aggregate flattens nested results in scenario then viewport order and
// computes the average mismatch. An empty set yields NaN together with
// failure.ErrEmptyResultSet; the data is still returned.
func Aggregate(nested [][]*diff.Result, assets *Assets) (*Data, error) {
	d := &Data{
		Results:     nested,
		GeneratedAt: time.Now().UTC(),
	}
	if assets != nil {
		d.Styles = template.CSS(assets.Styles)
		d.Script = template.JS(assets.Script)
	}

	var sum float64
	for _, row := range nested {
		for _, r := range row {
			if r == nil {
				continue
			}
			d.FlatResults = append(d.FlatResults, r)
			sum += r.MismatchPercentage
		}
	}

	if len(d.FlatResults) == 0 {
		d.AverageMismatch = math.NaN()
		return d, failure.ErrEmptyResultSet
	}
	d.AverageMismatch = sum / float64(len(d.FlatResults))
	return d, nil
}

// Section groups the cells of one scenario.
type Section struct {
	Scenario scenario.Scenario
	Cells    []*diff.Result
}

// Sections returns one Section per non-empty scenario row.
func (d *Data) Sections() []Section {
	var out []Section
	for _, row := range d.Results {
		var cells []*diff.Result
		for _, r := range row {
			if r != nil {
				cells = append(cells, r)
			}
		}
		if len(cells) == 0 {
			continue
		}
		out = append(out, Section{Scenario: cells[0].Scenario, Cells: cells})
	}
	return out
}

// ApplyThreshold sets the threshold and recounts failed cells.
func (d *Data) ApplyThreshold(threshold float64) {
	d.Threshold = threshold
	d.Failed = 0
	for _, r := range d.FlatResults {
		if d.IsFailed(r) {
			d.Failed++
		}
	}
}
