// Package layout owns the on-disk layout of a run: the reference, actual
// and diff folders under the destination root, and the per-cell paths
// inside them.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/hazyhaar/regress/regress/failure"
	"github.com/hazyhaar/regress/regress/scenario"
)

// ErrPathTraversal is returned when a cell file would land outside its folder.
var ErrPathTraversal = errors.New("layout: path escapes its folder")

// FolderSet is the set of run folders derived from the destination root.
type FolderSet struct {
	Reference string `json:"reference"`
	Actual    string `json:"actual"`
	Diff      string `json:"diff"`
}

// Folders derives the folder set of dest without touching the disk.
func Folders(dest string) FolderSet {
	return FolderSet{
		Reference: filepath.Join(dest, string(scenario.Reference)),
		Actual:    filepath.Join(dest, string(scenario.Actual)),
		Diff:      filepath.Join(dest, "diff"),
	}
}

// Ensure creates the three run folders under dest, including missing
// parents. It is idempotent and safe to call concurrently for the same root.
func Ensure(dest string) (FolderSet, error) {
	fs := Folders(dest)
	dirs := []string{fs.Reference, fs.Actual, fs.Diff}

	var wg sync.WaitGroup
	errs := make([]error, len(dirs))
	for i, dir := range dirs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = mkdir(dir)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return FolderSet{}, err
		}
	}
	return fs, nil
}

func mkdir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &failure.IOError{Op: "mkdir", Path: dir, Cause: err}
	}
	return nil
}

// Dir returns the folder of mode. Any mode other than reference or actual
// maps to the diff folder.
func (fs FolderSet) Dir(mode scenario.Mode) string {
	switch mode {
	case scenario.Reference:
		return fs.Reference
	case scenario.Actual:
		return fs.Actual
	default:
		return fs.Diff
	}
}

// Path joins file under dir and creates the intermediate directories a
// file name like "x.com/a-phone.png" needs. A ".." path element is
// rejected; dots inside a name ("v1..2") are not.
func Path(dir, file string) (string, error) {
	if file == "" || filepath.IsAbs(file) || slices.Contains(strings.Split(filepath.ToSlash(file), "/"), "..") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, file)
	}
	p := filepath.Join(dir, filepath.Clean("/"+file))
	if !strings.HasPrefix(p, filepath.Clean(dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, file)
	}
	if parent := filepath.Dir(p); parent != filepath.Clean(dir) {
		if err := mkdir(parent); err != nil {
			return "", err
		}
	}
	return p, nil
}

// CellPath is Path under the folder of mode.
func (fs FolderSet) CellPath(mode scenario.Mode, file string) (string, error) {
	return Path(fs.Dir(mode), file)
}

// DiffPath is Path under the diff folder.
func (fs FolderSet) DiffPath(file string) (string, error) {
	return Path(fs.Diff, file)
}
