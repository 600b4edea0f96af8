package diff

import (
	"bufio"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/hazyhaar/regress/regress/failure"
)

// Save encodes img as PNG at path. The image is written to a temporary
// file in the same folder and renamed into place, so a failed encode
// never leaves a partial file under path.
func Save(img image.Image, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".diff-*.png")
	if err != nil {
		return &failure.IOError{Op: "create", Path: path, Cause: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := png.Encode(w, img); err != nil {
		return &failure.IOError{Op: "encode", Path: path, Cause: err}
	}
	if err := w.Flush(); err != nil {
		return &failure.IOError{Op: "write", Path: path, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return &failure.IOError{Op: "close", Path: path, Cause: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &failure.IOError{Op: "rename", Path: path, Cause: err}
	}
	committed = true
	return nil
}
