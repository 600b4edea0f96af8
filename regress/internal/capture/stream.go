package capture

import (
	"errors"
	"io"
)

// readError marks an error that came from the capture stream rather than
// from the destination file.
type readError struct {
	err error
}

func (e *readError) Error() string { return e.err.Error() }

func (e *readError) Unwrap() error { return e.err }

// readerOnly hides any WriterTo on the source and tags its read errors.
type readerOnly struct {
	r io.Reader
}

func (r readerOnly) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &readError{err: err}
	}
	return n, err
}
