package batch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrJobNotFound is returned by the store when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// StoreError indicates a schema, connection or commit failure in the job
// record store. Store errors are fatal for the invoking process.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err as a StoreError for the given operation.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// ValidationError indicates required parameter keys were missing from a
// job's params.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) == 1 {
		return fmt.Sprintf("required parameter field %q was not provided", e.Missing[0])
	}
	return fmt.Sprintf("required parameter fields '%s' were not provided", strings.Join(e.Missing, ", "))
}

// ProcessingError carries a processing failure out of diagnostic mode.
type ProcessingError struct {
	Failure *Failure
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed (%s): %s", e.Failure.Kind, e.Failure.Message)
}

// OutputsMissingError indicates the post-processing outputs check failed.
type OutputsMissingError struct {
	Outputs map[string]string
}

func (e *OutputsMissingError) Error() string {
	return fmt.Sprintf("%d output(s) missing after processing", len(e.Outputs))
}

// ConfigError indicates a malformed script configuration or template.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

// NewConfigError formats a new ConfigError.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}
