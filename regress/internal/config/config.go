// Package config loads the regress run configuration from YAML.
package config

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/regress/regress/internal/diff"
	"github.com/hazyhaar/regress/regress/scenario"
)

// Config is the top-level run configuration.
type Config struct {
	Dest        string              `yaml:"dest"`
	Viewports   []scenario.Viewport `yaml:"viewports"`
	Scenarios   []scenario.Scenario `yaml:"scenarios"`
	Hide        []string            `yaml:"hide"`
	Delay       float64             `yaml:"delay"` // seconds
	Crop        bool                `yaml:"crop"`
	Concurrency int                 `yaml:"concurrency"` // 0 = unbounded
	Extra       map[string]any      `yaml:"extra"`
	Browser     BrowserConfig       `yaml:"browser"`
	Diff        DiffConfig          `yaml:"diff"`
	Report      ReportConfig        `yaml:"report"`
	History     HistoryConfig       `yaml:"history"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Headful          bool          `yaml:"headful"`
	Timeout          time.Duration `yaml:"timeout"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// DiffConfig controls the pixel comparer. Pointer fields distinguish an
// explicit zero from an absent key.
type DiffConfig struct {
	ErrorColor   *ColorConfig `yaml:"error_color"`
	ErrorType    string       `yaml:"error_type"`
	Transparency *float64     `yaml:"transparency"`
	Tolerance    *uint8       `yaml:"tolerance"`
	Outline      *bool        `yaml:"outline"`
}

// ColorConfig is an RGB triple.
type ColorConfig struct {
	Red   uint8 `yaml:"red"`
	Green uint8 `yaml:"green"`
	Blue  uint8 `yaml:"blue"`
}

// ReportConfig controls report outputs.
type ReportConfig struct {
	Title       string  `yaml:"title"`
	Threshold   float64 `yaml:"threshold"` // percent
	Markdown    bool    `yaml:"markdown"`
	PDF         bool    `yaml:"pdf"`
	TemplateDir string  `yaml:"template_dir"`
}

// HistoryConfig locates the run history database. Empty disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates data against the schema, decodes it and applies
// defaults.
func Parse(data []byte) (*Config, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Dest == "" {
		c.Dest = "css_regression"
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 30 * time.Second
	}
	if c.Report.Title == "" {
		c.Report.Title = "CSS regression"
	}
}

// RunOptions converts the run-level settings.
func (c *Config) RunOptions() scenario.RunOptions {
	return scenario.RunOptions{
		Dest:      c.Dest,
		Viewports: c.Viewports,
		Delay:     time.Duration(c.Delay * float64(time.Second)),
		Hide:      c.Hide,
		Crop:      c.Crop,
		Extra:     c.Extra,
	}
}

// DiffOptions overlays the configured values on diff.DefaultOptions.
func (c *Config) DiffOptions() diff.Options {
	o := diff.DefaultOptions()
	d := c.Diff
	if d.ErrorColor != nil {
		o.ErrorColor = color.RGBA{R: d.ErrorColor.Red, G: d.ErrorColor.Green, B: d.ErrorColor.Blue, A: 255}
	}
	if d.ErrorType != "" {
		o.ErrorType = diff.ErrorType(d.ErrorType)
	}
	if d.Transparency != nil {
		o.Transparency = *d.Transparency
	}
	if d.Tolerance != nil {
		o.Tolerance = *d.Tolerance
	}
	if d.Outline != nil {
		o.Outline = *d.Outline
	}
	return o
}
