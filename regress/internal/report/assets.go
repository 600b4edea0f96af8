package report

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
)

//go:embed assets
var embedded embed.FS

const (
	styleFile    = "style.css"
	scriptFile   = "report.js"
	templateFile = "index.html.tmpl"
)

// Assets are the static pieces of a report, loaded once per run.
type Assets struct {
	Styles   string
	Script   string
	Template string
}

// LoadAssets reads the report assets. Files present in dir replace their
// embedded counterpart; dir may be empty.
func LoadAssets(dir string) (*Assets, error) {
	base, err := fs.Sub(embedded, "assets")
	if err != nil {
		return nil, fmt.Errorf("report: assets: %w", err)
	}

	var override fs.FS
	if dir != "" {
		override = os.DirFS(dir)
	}

	read := func(name string) (string, error) {
		if override != nil {
			b, err := fs.ReadFile(override, name)
			if err == nil {
				return string(b), nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("report: read %s: %w", name, err)
			}
		}
		b, err := fs.ReadFile(base, name)
		if err != nil {
			return "", fmt.Errorf("report: read embedded %s: %w", name, err)
		}
		return string(b), nil
	}

	a := &Assets{}
	if a.Styles, err = read(styleFile); err != nil {
		return nil, err
	}
	if a.Script, err = read(scriptFile); err != nil {
		return nil, err
	}
	if a.Template, err = read(templateFile); err != nil {
		return nil, err
	}
	return a, nil
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
