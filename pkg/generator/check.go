package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/batchkit/batchkit/internal/db/models"
	"github.com/batchkit/batchkit/internal/logger"
	"github.com/batchkit/batchkit/pkg/batch"
)

// ErrorEntry is one errored job in a check report.
type ErrorEntry struct {
	ID        uint              `json:"id"`
	Params    models.Params     `json:"params"`
	ErrorInfo *models.ErrorInfo `json:"error_info,omitempty"`
}

// JobEntry is one job referenced by id and params in a check report.
type JobEntry struct {
	ID     uint          `json:"id"`
	Params models.Params `json:"params"`
}

// CheckResult is the outcome of an output check over the whole batch.
type CheckResult struct {
	// Errors lists jobs whose error flag is set.
	Errors []ErrorEntry `json:"errors"`
	// NonComplete lists jobs that have neither completed nor errored,
	// including jobs killed externally before writing an end time.
	NonComplete []JobEntry `json:"non_complete"`
}

// CheckOutputs verifies the batch after execution. Completed jobs have their
// outputs independently re-checked through the processor; a completed job
// with missing outputs is demoted to errored. It then reports the errored
// jobs and the non-complete jobs.
func (g *Generator) CheckOutputs(ctx context.Context) (*CheckResult, error) {
	if err := g.recheckCompleted(ctx); err != nil {
		return nil, err
	}

	res := &CheckResult{}
	err := g.store.ForEach(ctx, models.JobFilter{Error: models.Bool(true)}, func(job *models.Job) error {
		res.Errors = append(res.Errors, ErrorEntry{ID: job.ID, Params: job.Params, ErrorInfo: job.ErrorInfo})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = g.store.ForEach(ctx, models.JobFilter{Completed: models.Bool(false), Error: models.Bool(false)}, func(job *models.Job) error {
		res.NonComplete = append(res.NonComplete, JobEntry{ID: job.ID, Params: job.Params})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// recheckCompleted re-verifies output presence for completed jobs. Completed
// outputs are assumed valid only until this independent re-check.
func (g *Generator) recheckCompleted(ctx context.Context) error {
	var demote []*models.Job
	err := g.store.ForEach(ctx, models.JobFilter{Completed: models.Bool(true)}, func(job *models.Job) error {
		present, missing := g.processor.OutputsPresent(job.Params)
		if present {
			return nil
		}
		job.Completed = false
		job.Error = true
		job.ErrorInfo = &models.ErrorInfo{
			Kind:    batch.KindOutputsMissing,
			Message: fmt.Sprintf("outputs missing on re-check: %s", formatMissing(missing)),
		}
		demote = append(demote, job)
		return nil
	})
	if err != nil {
		return err
	}

	for _, job := range demote {
		logger.Warnf("job %d completed but outputs are missing", job.ID)
		if err := g.store.Update(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// Print writes the two reports to w in a human-readable form.
func (r *CheckResult) Print(w io.Writer) error {
	if len(r.Errors) == 0 && len(r.NonComplete) == 0 {
		_, err := fmt.Fprintln(w, "Checks complete: all jobs finished successfully")
		return err
	}
	for _, entry := range r.Errors {
		msg := ""
		if entry.ErrorInfo != nil {
			msg = fmt.Sprintf(" [%s] %s", entry.ErrorInfo.Kind, entry.ErrorInfo.Message)
		}
		if _, err := fmt.Fprintf(w, "error: job %d%s\n", entry.ID, msg); err != nil {
			return err
		}
	}
	for _, entry := range r.NonComplete {
		if _, err := fmt.Fprintf(w, "non-complete: job %d\n", entry.ID); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d job(s) errored, %d job(s) non-complete\n", len(r.Errors), len(r.NonComplete))
	return err
}

// WriteFiles writes the errors report and the non-complete report as JSON to
// the given paths. Empty paths skip that report.
func (r *CheckResult) WriteFiles(errFile, nonCompleteFile string) error {
	if errFile != "" {
		if err := writeJSON(r.Errors, errFile); err != nil {
			return err
		}
	}
	if nonCompleteFile != "" {
		if err := writeJSON(r.NonComplete, nonCompleteFile); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(v interface{}, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report file %s: %w", path, err)
	}
	return nil
}

func formatMissing(missing map[string]string) string {
	parts := make([]string, 0, len(missing))
	for path, msg := range missing {
		parts = append(parts, fmt.Sprintf("%s: %s", path, msg))
	}
	// Deterministic ordering for stored messages.
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
