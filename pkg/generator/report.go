package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/batchkit/batchkit/internal/db/models"
	"github.com/batchkit/batchkit/internal/db/repos"
)

// TimeStats summarises wall-clock run times, in seconds, across the
// completed jobs of a batch.
type TimeStats struct {
	Mean   float64 `json:"time_mean_secs"`
	Min    float64 `json:"time_min_secs"`
	Max    float64 `json:"time_max_secs"`
	Median float64 `json:"time_median_secs"`
	Stdev  float64 `json:"time_stdev_secs"`
}

// Report aggregates the state of a batch: job counts plus run-time
// statistics over the jobs that completed.
type Report struct {
	Total     int64      `json:"n_tasks"`
	Completed int64      `json:"n_completed"`
	Errored   int64      `json:"n_errored"`
	Started   int64      `json:"n_started"`
	Times     *TimeStats `json:"times,omitempty"`
}

// BuildReport scans the store and computes the batch report. Time stats are
// omitted when no completed job carries both a start and an end time.
func (g *Generator) BuildReport(ctx context.Context) (*Report, error) {
	return BuildReport(ctx, g.store)
}

// BuildReport computes the batch report for any job store, without needing a
// configured Generator. Used for read-only inspection of a finished batch.
func BuildReport(ctx context.Context, store *repos.JobRepository) (*Report, error) {
	rpt := &Report{}
	var durations []float64
	err := store.ForEach(ctx, models.JobFilter{}, func(job *models.Job) error {
		rpt.Total++
		if job.StartTime != nil {
			rpt.Started++
		}
		if job.Error {
			rpt.Errored++
		}
		if job.Completed {
			rpt.Completed++
			if d, ok := job.RunDuration(); ok {
				durations = append(durations, d.Seconds())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(durations) > 0 {
		rpt.Times = computeTimeStats(durations)
	}
	return rpt, nil
}

func computeTimeStats(durations []float64) *TimeStats {
	sort.Float64s(durations)
	n := len(durations)

	var sum float64
	for _, d := range durations {
		sum += d
	}
	mean := sum / float64(n)

	var sqDiff float64
	for _, d := range durations {
		sqDiff += (d - mean) * (d - mean)
	}

	median := durations[n/2]
	if n%2 == 0 {
		median = (durations[n/2-1] + durations[n/2]) / 2
	}

	return &TimeStats{
		Mean:   mean,
		Min:    durations[0],
		Max:    durations[n-1],
		Median: median,
		Stdev:  math.Sqrt(sqDiff / float64(n)),
	}
}

// Write emits the report as indented JSON to w.
func (r *Report) Write(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// WriteFile writes the report as indented JSON to the given path.
func (r *Report) WriteFile(path string) error {
	return writeJSON(r, path)
}
