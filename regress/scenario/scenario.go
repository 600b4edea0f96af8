// Package scenario holds the run model shared by every stage of the
// regression pipeline: scenarios, viewports, run options and the
// scenario × viewport cells that drive capture, compare and report.
package scenario

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// Mode selects the destination folder of a capture.
type Mode string

const (
	Reference Mode = "reference" // baseline screenshots, written by generate
	Actual    Mode = "actual"    // current screenshots, written by compare
)

// Scenario is a named page to capture. Extra carries fields the pipeline
// does not read itself; they are handed to the capturer untouched.
type Scenario struct {
	Label string         `yaml:"label" json:"label,omitempty"`
	URL   string         `yaml:"url" json:"url"`
	Notes string         `yaml:"notes" json:"notes,omitempty"`
	Extra map[string]any `yaml:",inline" json:"extra,omitempty"`
}

// Viewport is a named screen size.
type Viewport struct {
	Name   string `yaml:"name" json:"name"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Size returns the capture size of the viewport.
func (v Viewport) Size() Size {
	return Size{Width: v.Width, Height: v.Height}
}

// Size is a capture size in CSS pixels.
type Size struct {
	Width  int
	Height int
}

// String renders the size as "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// RunOptions are the run-level settings. Hide, Delay, Crop and Extra are
// overlaid on each scenario at capture time.
type RunOptions struct {
	Dest      string
	Viewports []Viewport
	Delay     time.Duration
	Hide      []string
	Crop      bool
	Extra     map[string]any
}

// CaptureContext is what a capturer receives for one cell.
type CaptureContext struct {
	Label string
	Hide  []string
	Delay time.Duration
	Crop  bool
	Extra map[string]any
}

// String returns a value from Extra, or "" when absent or not a string.
func (c CaptureContext) String(key string) string {
	v, _ := c.Extra[key].(string)
	return v
}

// Merge overlays the run-level options on the scenario. Run-level extra
// fields win over scenario fields with the same key.
func Merge(s Scenario, opts RunOptions) CaptureContext {
	extra := make(map[string]any, len(s.Extra)+len(opts.Extra))
	maps.Copy(extra, s.Extra)
	maps.Copy(extra, opts.Extra)
	return CaptureContext{
		Label: s.Name(),
		Hide:  opts.Hide,
		Delay: opts.Delay,
		Crop:  opts.Crop,
		Extra: extra,
	}
}

// Name is the scenario identity: its label, or its URL without scheme.
func (s Scenario) Name() string {
	return FileBase(s)
}

// FileBase derives the filename base of a scenario: the label when set,
// otherwise the URL, with a leading http:// or https:// removed.
func FileBase(s Scenario) string {
	base := s.Label
	if base == "" {
		base = s.URL
	}
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(base, scheme) {
			return strings.TrimPrefix(base, scheme)
		}
	}
	return base
}

// FileName returns the per-cell file name shared by the reference, actual
// and diff folders.
func FileName(s Scenario, v Viewport) string {
	return FileBase(s) + "-" + v.Name + ".png"
}
