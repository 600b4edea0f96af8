package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/regress/regress/failure"
)

// Export file names under dest.
const (
	MarkdownFile = "report.md"
	PDFFile      = "diff.pdf"
)

// WriteMarkdown converts a rendered HTML page to Markdown and writes
// dest/report.md. Inline styles and scripts are dropped first.
func WriteMarkdown(page []byte, dest string) (string, error) {
	md, err := ToMarkdown(page)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dest, MarkdownFile)
	if err := writeFile(path, []byte(md)); err != nil {
		return "", err
	}
	return path, nil
}

// ToMarkdown converts an HTML page to Markdown.
func ToMarkdown(page []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("report: parse html: %w", err)
	}
	stripNodes(doc, atom.Script, atom.Style, atom.Input)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("report: render html: %w", err)
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	md, err := conv.ConvertString(buf.String())
	if err != nil {
		return "", fmt.Errorf("report: markdown: %w", err)
	}
	return md, nil
}

// stripNodes removes every element whose atom is listed.
func stripNodes(n *html.Node, atoms ...atom.Atom) {
	var drop []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && slices.Contains(atoms, c.DataAtom) {
			drop = append(drop, c)
			continue
		}
		stripNodes(c, atoms...)
	}
	for _, c := range drop {
		n.RemoveChild(c)
	}
}

// WritePDF bundles the diff images of every cell, one per page, into
// dest/diff.pdf.
func WritePDF(data *Data, dest string) (string, error) {
	var images []string
	for _, r := range data.FlatResults {
		images = append(images, filepath.Join(r.Folders.Diff, r.File))
	}
	if len(images) == 0 {
		return "", failure.ErrEmptyResultSet
	}

	path := filepath.Join(dest, PDFFile)
	// ImportImagesFile appends to an existing file.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", &failure.IOError{Op: "remove", Path: path, Cause: err}
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImagesFile(images, path, pdfcpu.DefaultImportConfig(), conf); err != nil {
		return "", fmt.Errorf("report: pdf: %w", err)
	}
	return path, nil
}
