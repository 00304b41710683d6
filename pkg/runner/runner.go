// Package runner executes exactly one job record end-to-end and leaves the
// store consistent.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/batchkit/batchkit/internal/db/models"
	"github.com/batchkit/batchkit/internal/db/repos"
	"github.com/batchkit/batchkit/internal/logger"
	"github.com/batchkit/batchkit/pkg/batch"
)

// Runner executes a single job against the shared store. Parallelism across
// jobs comes from external fan-out (GNU parallel or SLURM) launching one
// Runner process per job; each job id is owned by exactly one invocation.
type Runner struct {
	store *repos.JobRepository
	proc  batch.JobProcessor
}

// New creates a Runner over the given store handle and processor.
func New(store *repos.JobRepository, proc batch.JobProcessor) *Runner {
	return &Runner{store: store, proc: proc}
}

// Run executes the job in batch mode. Processing failures, missing required
// parameters and missing outputs are captured into the record and never
// propagated, so a driving shell loop continues to the next job. Only store
// access failures (unknown id, schema/commit errors) return an error.
func (r *Runner) Run(ctx context.Context, id uint) error {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if missing := r.missingParams(job.Params); len(missing) > 0 {
		verr := &batch.ValidationError{Missing: missing}
		logger.DebugWithFields("job params failed validation", map[string]interface{}{
			"job": id, "missing": missing,
		})
		r.recordFailure(job, &batch.Failure{Kind: batch.KindValidation, Message: verr.Error()})
		// The job never started; timestamps stay untouched.
		return r.store.Update(ctx, job)
	}

	start := time.Now()
	job.StartTime = &start
	job.EndTime = nil

	res := r.processSafely(ctx, job.Params)
	if res.Failure != nil {
		logger.DebugWithFields("job processing failed", map[string]interface{}{
			"job": id, "kind": res.Failure.Kind, "message": res.Failure.Message,
		})
		r.recordFailure(job, res.Failure)
		return r.finish(ctx, job)
	}

	present, missingOuts := r.proc.OutputsPresent(job.Params)
	if !present {
		oerr := &batch.OutputsMissingError{Outputs: missingOuts}
		r.recordFailure(job, &batch.Failure{
			Kind:    batch.KindOutputsMissing,
			Message: fmt.Sprintf("%s: %s", oerr.Error(), formatMissingOutputs(missingOuts)),
		})
		return r.finish(ctx, job)
	}

	job.Completed = true
	job.Error = false
	job.ErrorInfo = nil
	logger.Debugf("job %d completed", id)
	return r.finish(ctx, job)
}

// RunDiagnostic executes the job in diagnostic mode: a single job, no store
// bookkeeping, with failures propagated unmodified to the caller. Intended
// for debugging one job outside the batch.
func (r *Runner) RunDiagnostic(ctx context.Context, id uint) error {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if missing := r.missingParams(job.Params); len(missing) > 0 {
		return &batch.ValidationError{Missing: missing}
	}

	// No recover here: a panicking workload should surface at the console.
	res := r.proc.Process(ctx, job.Params)
	if res.Failure != nil {
		return &batch.ProcessingError{Failure: res.Failure}
	}
	return nil
}

// RemoveOutputs asks the collaborator to delete the job's produced artifacts
// and resets the record so the job can be rerun.
func (r *Runner) RemoveOutputs(ctx context.Context, id uint) error {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.proc.RemoveOutputs(job.Params); err != nil {
		return fmt.Errorf("failed to remove outputs for job %d: %w", id, err)
	}
	ResetRecord(job)
	return r.store.Update(ctx, job)
}

// PrintParams writes the job's parameters to w as indented JSON. Read-only.
func (r *Runner) PrintParams(ctx context.Context, id uint, w io.Writer) error {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(job.Params, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal params for job %d: %w", id, err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// ResetRecord clears a job's completion, error and timing state.
func ResetRecord(job *models.Job) {
	job.Completed = false
	job.Error = false
	job.ErrorInfo = nil
	job.StartTime = nil
	job.EndTime = nil
}

func (r *Runner) missingParams(params models.Params) []string {
	var missing []string
	for _, key := range r.proc.RequiredParams() {
		if _, ok := params[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// processSafely invokes the collaborator, converting a panic into a recorded
// failure with the stack trace text.
func (r *Runner) processSafely(ctx context.Context, params models.Params) (res batch.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = batch.Result{Failure: &batch.Failure{
				Kind:    batch.KindPanic,
				Message: fmt.Sprint(rec),
				Trace:   string(debug.Stack()),
			}}
		}
	}()
	return r.proc.Process(ctx, params)
}

// recordFailure marks the record errored. An error always resets the
// completed flag until outputs are re-verified.
func (r *Runner) recordFailure(job *models.Job, failure *batch.Failure) {
	job.Completed = false
	job.Error = true
	job.ErrorInfo = &models.ErrorInfo{
		Kind:    failure.Kind,
		Message: failure.Message,
		Trace:   failure.Trace,
	}
}

func (r *Runner) finish(ctx context.Context, job *models.Job) error {
	end := time.Now()
	job.EndTime = &end
	return r.store.Update(ctx, job)
}

func formatMissingOutputs(outputs map[string]string) string {
	parts := make([]string, 0, len(outputs))
	for path, msg := range outputs {
		parts = append(parts, fmt.Sprintf("%s: %s", path, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
