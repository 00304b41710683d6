// Package batch defines the capability interfaces implemented by concrete
// workloads and the result type returned from processing.
package batch

import (
	"context"

	"github.com/batchkit/batchkit/internal/db/models"
)

// JobProcessor is implemented by a workload to execute a single job. The
// runner depends only on this interface: it validates the job parameters
// against RequiredParams, invokes Process and verifies OutputsPresent.
type JobProcessor interface {
	// RequiredParams returns the parameter keys that must be present in a
	// job's params before Process is invoked.
	RequiredParams() []string

	// Process performs the work for one job. Failures are reported through
	// the returned Result rather than an error so the batch runner can
	// record them without aborting the surrounding fan-out.
	Process(ctx context.Context, params models.Params) Result

	// OutputsPresent reports whether all outputs for the job exist. The
	// returned map holds the missing outputs keyed by path with an error
	// message as the value; it is empty when the bool is true.
	OutputsPresent(params models.Params) (bool, map[string]string)

	// RemoveOutputs deletes any outputs the job has produced so it can be
	// rerun from a clean state.
	RemoveOutputs(params models.Params) error
}

// JobGenerator is implemented by a workload to enumerate the parameter sets
// for one batch. Workload-specific configuration is carried by the
// implementing type, validated at construction time.
type JobGenerator interface {
	// Generate returns one params map per job, in the order the jobs should
	// be assigned ids. Returning an empty slice is valid.
	Generate(ctx context.Context) ([]models.Params, error)
}

// Failure describes why processing a job did not succeed.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// Result is the outcome of JobProcessor.Process.
type Result struct {
	Failure *Failure
}

// OK returns a successful Result.
func OK() Result {
	return Result{}
}

// Failed returns a Result carrying a failure of the given kind.
func Failed(kind, message string) Result {
	return Result{Failure: &Failure{Kind: kind, Message: message}}
}

// FailedErr returns a Result carrying the error as a processing failure.
func FailedErr(err error) Result {
	if err == nil {
		return OK()
	}
	return Result{Failure: &Failure{Kind: KindProcessing, Message: err.Error()}}
}

// Succeeded reports whether the result carries no failure.
func (r Result) Succeeded() bool {
	return r.Failure == nil
}

// Failure kinds recorded into a job's error info.
const (
	// KindValidation indicates required parameter keys were missing.
	KindValidation = "validation"
	// KindProcessing indicates the workload's processing failed.
	KindProcessing = "processing"
	// KindPanic indicates the workload's processing panicked.
	KindPanic = "panic"
	// KindOutputsMissing indicates processing returned success but the
	// outputs check found files missing.
	KindOutputsMissing = "outputs_missing"
)
