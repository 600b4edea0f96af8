package report

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hazyhaar/regress/regress/failure"
)

// IndexFile is the report file name under dest.
const IndexFile = "index.html"

// Renderer turns report Data into an HTML page.
type Renderer struct {
	tmpl   *template.Template
	logger *slog.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) RendererOption {
	return func(r *Renderer) { r.logger = l }
}

// NewRenderer parses the assets template.
func NewRenderer(assets *Assets, opts ...RendererOption) (*Renderer, error) {
	policy := bluemonday.UGCPolicy()
	funcs := template.FuncMap{
		"title":   title,
		"percent": formatPercent,
		"notes": func(s string) template.HTML {
			return template.HTML(policy.Sanitize(s))
		},
	}
	tmpl, err := template.New(templateFile).Funcs(funcs).Parse(assets.Template)
	if err != nil {
		return nil, fmt.Errorf("report: parse template: %w", err)
	}

	r := &Renderer{tmpl: tmpl, logger: slog.Default()}
	for _, fn := range opts {
		fn(r)
	}
	return r, nil
}

// Execute renders data to HTML bytes.
func (r *Renderer) Execute(data *Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("report: render: %w", err)
	}
	return buf.Bytes(), nil
}

// Render writes dest/index.html and returns its path.
func (r *Renderer) Render(ctx context.Context, data *Data, dest string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	page, err := r.Execute(data)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dest, IndexFile)
	if err := writeFile(path, page); err != nil {
		return "", err
	}
	r.logger.Info("report: written", "path", path, "cells", len(data.FlatResults), "average", data.Average())
	return path, nil
}

func writeFile(path string, b []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return &failure.IOError{Op: "create", Path: path, Cause: err}
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(b); err != nil {
		f.Close()
		return &failure.IOError{Op: "write", Path: path, Cause: err}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return &failure.IOError{Op: "write", Path: path, Cause: err}
	}
	if err := f.Close(); err != nil {
		return &failure.IOError{Op: "close", Path: path, Cause: err}
	}
	return nil
}

// title is per call: a cases.Caser is stateful.
func title(s string) string {
	return cases.Title(language.English).String(s)
}
