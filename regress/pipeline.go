// Package regress is a CSS visual regression pipeline. In generate mode it
// screenshots every scenario × viewport cell as a reference image; in
// compare mode it captures the same cells again, diffs them against the
// references and renders a report of the mismatches.
package regress

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hazyhaar/regress/idgen"
	"github.com/hazyhaar/regress/regress/failure"
	"github.com/hazyhaar/regress/regress/internal/capture"
	"github.com/hazyhaar/regress/regress/internal/compare"
	"github.com/hazyhaar/regress/regress/internal/diff"
	"github.com/hazyhaar/regress/regress/internal/history"
	"github.com/hazyhaar/regress/regress/internal/report"
	"github.com/hazyhaar/regress/regress/scenario"
)

// State is the pipeline position.
type State string

const (
	Idle                State = "idle"
	GeneratingReference State = "generating_reference"
	CapturingActual     State = "capturing_actual"
	Comparing           State = "comparing"
	Aggregating         State = "aggregating"
	Reporting           State = "reporting"
	Done                State = "done"
	Failed              State = "failed"
)

// Run modes as recorded in history.
const (
	ModeGenerate = "generate"
	ModeCompare  = "compare"
)

// Outcome describes a finished run.
type Outcome struct {
	RunID      string
	Mode       string
	State      State
	StartedAt  time.Time
	FinishedAt time.Time

	// Generate mode.
	ReferencePaths []string

	// Compare mode.
	Report       *report.Data
	IndexPath    string
	MarkdownPath string
	PDFPath      string
}

// Pipeline drives one run at a time: generate or compare.
type Pipeline struct {
	cfg      *Config
	capture  *capture.Orchestrator
	comparer diff.Comparer
	store    *history.Store
	ids      idgen.Generator
	logger   *slog.Logger

	runMu sync.Mutex // one run at a time

	mu    sync.Mutex
	state State
	err   error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithHistory records every run in store.
func WithHistory(store *history.Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithIDGenerator overrides the run ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(p *Pipeline) { p.ids = gen }
}

// WithComparer replaces the pixel comparer built from the configuration.
func WithComparer(c diff.Comparer) Option {
	return func(p *Pipeline) { p.comparer = c }
}

// New creates a Pipeline over cfg. capturer produces the screenshots.
func New(cfg *Config, capturer capture.Capturer, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		ids:    idgen.Run,
		logger: slog.Default(),
		state:  Idle,
	}
	for _, fn := range opts {
		fn(p)
	}
	if p.comparer == nil {
		p.comparer = diff.NewPixelComparer(cfg.DiffOptions())
	}
	p.capture = capture.New(capturer,
		capture.WithLogger(p.logger),
		capture.WithConcurrency(cfg.Concurrency),
	)
	return p
}

// State returns the current state and, when Failed, the error that caused it.
func (p *Pipeline) State() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.err
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	if s != Failed {
		p.err = nil
	}
	p.mu.Unlock()
	p.logger.Debug("regress: state", "state", string(s))
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	p.state = Failed
	p.err = err
	p.mu.Unlock()
}

// Run executes one run. generate selects reference generation; otherwise
// actual images are captured, compared and reported. The returned outcome
// is non-nil even on failure.
func (p *Pipeline) Run(ctx context.Context, generate bool) (*Outcome, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.setState(Idle)
	out := &Outcome{
		RunID:     p.ids(),
		Mode:      ModeCompare,
		StartedAt: time.Now().UTC(),
	}
	if generate {
		out.Mode = ModeGenerate
	}
	log := p.logger.With("run_id", out.RunID, "mode", out.Mode)
	log.Info("regress: run started",
		"scenarios", len(p.cfg.Scenarios), "viewports", len(p.cfg.Viewports), "dest", p.cfg.Dest)

	var err error
	if generate {
		err = p.generate(ctx, out)
	} else {
		err = p.compare(ctx, out, log)
	}

	out.FinishedAt = time.Now().UTC()
	if err != nil {
		p.fail(err)
		log.Error("regress: run failed", "error", err, "kind", failure.Kind(err))
	} else {
		p.setState(Done)
		log.Info("regress: run done", "duration", out.FinishedAt.Sub(out.StartedAt))
	}
	out.State, _ = p.State()

	p.record(ctx, out, err, log)
	return out, err
}

// RunAsync runs in a new goroutine and calls done exactly once with the
// result, also when the run panics.
func (p *Pipeline) RunAsync(ctx context.Context, generate bool, done func(*Outcome, error)) {
	go func() {
		var (
			out *Outcome
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("regress: panic: %v", r)
				p.fail(err)
			}
			done(out, err)
		}()
		out, err = p.Run(ctx, generate)
	}()
}

func (p *Pipeline) generate(ctx context.Context, out *Outcome) error {
	p.setState(GeneratingReference)
	paths, err := p.capture.CaptureAll(ctx, scenario.Reference, p.cfg.Scenarios, p.cfg.RunOptions())
	if err != nil {
		return fmt.Errorf("regress: generate: %w", err)
	}
	out.ReferencePaths = paths
	return nil
}

func (p *Pipeline) compare(ctx context.Context, out *Outcome, log *slog.Logger) error {
	p.setState(CapturingActual)

	var firstCapture sync.Once
	cmp := compare.New(p.capture, diff.NewEngine(p.comparer, p.logger),
		compare.WithLogger(p.logger),
		compare.OnCaptured(func(scenario.Cell) {
			firstCapture.Do(func() { p.setState(Comparing) })
		}),
	)
	nested, err := cmp.CompareAll(ctx, p.cfg.Scenarios, p.cfg.RunOptions())
	if err != nil {
		return fmt.Errorf("regress: %w", err)
	}

	p.setState(Aggregating)
	assets, err := report.LoadAssets(p.cfg.Report.TemplateDir)
	if err != nil {
		return fmt.Errorf("regress: %w", err)
	}
	data, err := report.Aggregate(nested, assets)
	out.Report = data
	if err != nil {
		return fmt.Errorf("regress: aggregate: %w", err)
	}
	data.Title = p.cfg.Report.Title
	data.RunID = out.RunID
	data.ApplyThreshold(p.cfg.Report.Threshold)

	p.setState(Reporting)
	renderer, err := report.NewRenderer(assets, report.WithLogger(p.logger))
	if err != nil {
		return fmt.Errorf("regress: %w", err)
	}
	if out.IndexPath, err = renderer.Render(ctx, data, p.cfg.Dest); err != nil {
		return fmt.Errorf("regress: report: %w", err)
	}

	if p.cfg.Report.Markdown {
		page, err := renderer.Execute(data)
		if err != nil {
			return fmt.Errorf("regress: %w", err)
		}
		if out.MarkdownPath, err = report.WriteMarkdown(page, p.cfg.Dest); err != nil {
			return fmt.Errorf("regress: markdown: %w", err)
		}
	}
	if p.cfg.Report.PDF {
		if out.PDFPath, err = report.WritePDF(data, p.cfg.Dest); err != nil {
			return fmt.Errorf("regress: pdf: %w", err)
		}
	}

	log.Info("regress: compared",
		"cells", len(data.FlatResults), "average", data.Average(), "failed", data.Failed)
	return nil
}

// record stores the run in history. Failures are logged only.
func (p *Pipeline) record(ctx context.Context, out *Outcome, runErr error, log *slog.Logger) {
	if p.store == nil {
		return
	}
	r := &history.Run{
		ID:         out.RunID,
		Mode:       out.Mode,
		State:      string(out.State),
		Dest:       p.cfg.Dest,
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
		ErrorKind:  failure.Kind(runErr),
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	if out.Mode == ModeGenerate {
		r.CellCount = len(out.ReferencePaths)
	}
	if d := out.Report; d != nil {
		r.CellCount = len(d.FlatResults)
		r.Failed = d.Failed
		if !math.IsNaN(d.AverageMismatch) {
			avg := d.AverageMismatch
			r.Average = &avg
		}
		for _, res := range d.FlatResults {
			r.Cells = append(r.Cells, history.Cell{
				Scenario: res.Scenario.Name(),
				Viewport: res.Viewport.Name,
				File:     res.File,
				Mismatch: res.MismatchPercentage,
				Failed:   d.IsFailed(res),
			})
		}
	}

	if err := p.store.Record(context.WithoutCancel(ctx), r); err != nil {
		log.Warn("regress: history record failed", "error", err)
	}
}
