package regress

import (
	"github.com/hazyhaar/regress/regress/internal/config"
)

// Config is the top-level run configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome.
type BrowserConfig = config.BrowserConfig

// DiffConfig controls the pixel comparer.
type DiffConfig = config.DiffConfig

// ColorConfig is an RGB triple.
type ColorConfig = config.ColorConfig

// ReportConfig controls report outputs.
type ReportConfig = config.ReportConfig

// HistoryConfig locates the run history database.
type HistoryConfig = config.HistoryConfig

// LoadConfigFile reads, validates and defaults a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig is LoadConfigFile over in-memory YAML.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}
