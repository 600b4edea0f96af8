package failure

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrEmptyResultSet, "empty_result_set"},
		{fmt.Errorf("report: %w", ErrEmptyResultSet), "empty_result_set"},
		{&FileNotFoundError{Paths: []string{"a.png"}}, "file_not_found"},
		{&IOError{Op: "write", Path: "a.png", Cause: io.ErrShortWrite}, "io_failure"},
		{&CaptureError{URL: "http://a", Cause: io.EOF}, "capture_failure"},
		{fmt.Errorf("cell: %w", &CompareError{Cause: io.EOF}), "compare_failure"},
		{errors.New("other"), "error"},
	}
	for _, c := range cases {
		if got := Kind(c.err); got != c.want {
			t.Errorf("Kind(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestUnwrap_PreservesCause(t *testing.T) {
	cause := errors.New("browser crashed")
	err := fmt.Errorf("capture: %w", &CaptureError{URL: "http://a", File: "a-phone.png", Cause: cause})
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through CaptureError")
	}
}

func TestFileNotFoundError_NamesAllPaths(t *testing.T) {
	err := &FileNotFoundError{Paths: []string{"ref/a.png", "act/a.png"}}
	want := "regress: file not found: ref/a.png, act/a.png"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
