package config

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/regress/regress/internal/diff"
)

const sample = `
dest: out
viewports:
  - {name: phone, width: 320, height: 480}
  - {name: desktop, width: 1280, height: 800}
scenarios:
  - label: getting-started
    url: http://getbootstrap.com/getting-started/
    wait_for: "#content"
  - url: https://example.com/about
hide: [".ad"]
delay: 0.5
concurrency: 2
extra:
  user_agent: regress-bot
browser:
  timeout: 10s
  resource_blocking: [media, font]
diff:
  error_color: {red: 255, green: 0, blue: 0}
  error_type: flat
  tolerance: 0
  outline: false
report:
  title: Nightly
  threshold: 0.5
history:
  path: out/history.db
`

func TestParse_Sample(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Dest != "out" || len(cfg.Viewports) != 2 || len(cfg.Scenarios) != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if got := cfg.Scenarios[0].Extra["wait_for"]; got != "#content" {
		t.Errorf("scenario extra wait_for = %v", got)
	}
	if cfg.Browser.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Browser.Timeout)
	}
	if cfg.Concurrency != 2 || cfg.History.Path != "out/history.db" {
		t.Errorf("concurrency/history = %d/%s", cfg.Concurrency, cfg.History.Path)
	}

	opts := cfg.RunOptions()
	if opts.Delay != 500*time.Millisecond {
		t.Errorf("delay = %v", opts.Delay)
	}
	if opts.Extra["user_agent"] != "regress-bot" {
		t.Errorf("run extra = %v", opts.Extra)
	}

	d := cfg.DiffOptions()
	if d.ErrorType != diff.Flat || d.Tolerance != 0 || d.Outline {
		t.Errorf("diff options = %+v", d)
	}
	if d.ErrorColor != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("error color = %+v", d.ErrorColor)
	}
	if d.Transparency != 0.3 {
		t.Errorf("transparency default lost: %v", d.Transparency)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("viewports: []\nscenarios: []\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Dest != "css_regression" {
		t.Errorf("dest = %q", cfg.Dest)
	}
	if cfg.Browser.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Browser.Timeout)
	}
	if cfg.DiffOptions() != diff.DefaultOptions() {
		t.Errorf("diff options = %+v", cfg.DiffOptions())
	}
}

func TestParse_SchemaErrors(t *testing.T) {
	cases := map[string]string{
		"missing height":   "viewports: [{name: a, width: 1}]\nscenarios: []\n",
		"missing url":      "viewports: []\nscenarios: [{label: x}]\n",
		"unknown key":      "viewports: []\nscenarios: []\ncolour: red\n",
		"bad error type":   "viewports: []\nscenarios: []\ndiff: {error_type: sparkle}\n",
		"channel overflow": "viewports: []\nscenarios: []\ndiff: {tolerance: 300}\n",
		"bad timeout":      "viewports: []\nscenarios: []\nbrowser: {timeout: soon}\n",
		"negative delay":   "viewports: []\nscenarios: []\ndelay: -1\n",
		"empty":            "",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regress.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Report.Title != "Nightly" || cfg.Report.Threshold != 0.5 {
		t.Errorf("report = %+v", cfg.Report)
	}

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.HasPrefix(err.Error(), "config:") {
		t.Errorf("missing file error = %v", err)
	}
}
