package tabexport

import (
	"errors"
	"fmt"
)

// ErrNotPreprocessed is returned by Build when Preprocess has not run.
var ErrNotPreprocessed = errors.New("export preprocessing has not been performed")

// ConfigurationError aborts a run before anything is written.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("export configuration: %v", e.Err)
	}
	return fmt.Sprintf("export configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErrorf(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
}

// CellFormattingError reports a cell whose accessor or formatter failed.
// It is logged and the cell degrades to its raw text.
type CellFormattingError struct {
	Key string
	Err error
}

func (e *CellFormattingError) Error() string {
	return fmt.Sprintf("format column %q: %v", e.Key, e.Err)
}

func (e *CellFormattingError) Unwrap() error { return e.Err }

// SinkIOError means the underlying writer failed. The run is aborted.
type SinkIOError struct {
	Op  string
	Err error
}

func (e *SinkIOError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Op, e.Err)
}

func (e *SinkIOError) Unwrap() error { return e.Err }

func sinkError(op string, err error) error {
	if err == nil {
		return nil
	}
	var sinkErr *SinkIOError
	if errors.As(err, &sinkErr) {
		return err
	}
	return &SinkIOError{Op: op, Err: err}
}

// AccessorResolutionError reports a column key that no accessor serves. The
// column is written with empty cells.
type AccessorResolutionError struct {
	Component string
	Key       string
}

func (e *AccessorResolutionError) Error() string {
	return fmt.Sprintf("component %q: no accessor for column %q", e.Component, e.Key)
}
