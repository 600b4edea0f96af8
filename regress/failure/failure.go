// Package failure defines the error kinds surfaced by the regression
// pipeline. Every stage wraps its errors in one of these so callers can
// match them with errors.As / errors.Is regardless of the wrapping depth.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResultSet is returned when a report is aggregated over zero
// cells. The average mismatch of such a run is not a number.
var ErrEmptyResultSet = errors.New("regress: empty result set")

// FileNotFoundError is returned when a reference or actual image is
// missing at compare time.
type FileNotFoundError struct {
	Paths []string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("regress: file not found: %s", strings.Join(e.Paths, ", "))
}

// IOError wraps a directory creation, stream write or read failure.
type IOError struct {
	Op    string
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("regress: %s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *IOError) Unwrap() error { return e.Cause }

// CaptureError wraps a failure of the capture collaborator. The cause is
// preserved as-is.
type CaptureError struct {
	URL   string
	File  string
	Cause error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("regress: capture %s (%s): %v", e.URL, e.File, e.Cause)
}

func (e *CaptureError) Unwrap() error { return e.Cause }

// CompareError wraps a failure of the compare collaborator.
type CompareError struct {
	Reference string
	Actual    string
	Cause     error
}

func (e *CompareError) Error() string {
	return fmt.Sprintf("regress: compare %s with %s: %v", e.Reference, e.Actual, e.Cause)
}

func (e *CompareError) Unwrap() error { return e.Cause }

// Kind names the error kind of err for logs and history rows.
func Kind(err error) string {
	var (
		nf  *FileNotFoundError
		ioe *IOError
		ce  *CaptureError
		cmp *CompareError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyResultSet):
		return "empty_result_set"
	case errors.As(err, &nf):
		return "file_not_found"
	case errors.As(err, &ce):
		return "capture_failure"
	case errors.As(err, &cmp):
		return "compare_failure"
	case errors.As(err, &ioe):
		return "io_failure"
	default:
		return "error"
	}
}
