// Package generator produces the full set of job records for one batch and
// the artifacts needed to execute them.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/batchkit/batchkit/internal/db"
	"github.com/batchkit/batchkit/internal/db/models"
	"github.com/batchkit/batchkit/internal/db/repos"
	"github.com/batchkit/batchkit/internal/logger"
	"github.com/batchkit/batchkit/pkg/batch"
	"github.com/batchkit/batchkit/pkg/runner"
	"github.com/batchkit/batchkit/pkg/scripts"
)

// Scope selects which jobs an output-removal sweep covers.
type Scope int

// Removal scopes
const (
	// ScopeAll removes outputs for every job
	ScopeAll Scope = iota
	// ScopeErrorsOnly removes outputs only for jobs that logged an error
	ScopeErrorsOnly
)

// Config wires a Generator to its collaborators.
type Config struct {
	// Store is the job record store handle.
	Store *repos.JobRepository
	// StoreInfo describes how runner subprocesses reach the store.
	StoreInfo db.Info
	// Jobs enumerates the parameter sets for the batch.
	Jobs batch.JobGenerator
	// Processor is the workload used for output checks and removal sweeps.
	Processor batch.JobProcessor
	// RunCmd is the command executing one job (e.g. the runner binary).
	RunCmd string
}

// Generator accumulates a batch of jobs, persists them and emits the
// command list plus fan-out wrapper that executes them.
type Generator struct {
	store     *repos.JobRepository
	storeInfo db.Info
	jobs      batch.JobGenerator
	processor batch.JobProcessor
	runner    *runner.Runner
	runCmd    string
}

// New creates a Generator from the given configuration.
func New(cfg Config) (*Generator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("generator requires a store")
	}
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("generator requires a job generator")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("generator requires a processor")
	}
	if cfg.RunCmd == "" {
		return nil, fmt.Errorf("generator requires a run command")
	}
	return &Generator{
		store:     cfg.Store,
		storeInfo: cfg.StoreInfo,
		jobs:      cfg.Jobs,
		processor: cfg.Processor,
		runner:    runner.New(cfg.Store, cfg.Processor),
		runCmd:    cfg.RunCmd,
	}, nil
}

// PopulateStore wipes the schema and bulk-inserts one record per generated
// parameter set. Insertion order becomes id order, ids running 1..N.
// Re-running against an existing store drops all prior records. Zero
// generated jobs is valid.
func (g *Generator) PopulateStore(ctx context.Context) error {
	paramSets, err := g.jobs.Generate(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate job params: %w", err)
	}

	if err := g.store.ResetSchema(ctx); err != nil {
		return err
	}

	jobs := make([]*models.Job, 0, len(paramSets))
	for i, params := range paramSets {
		jobs = append(jobs, &models.Job{ID: uint(i + 1), Params: params})
	}

	logger.Infof("There are %d jobs to be written to the database", len(jobs))
	if err := g.store.InsertAll(ctx, jobs); err != nil {
		return err
	}
	logger.Info("Written jobs to the database")
	return nil
}

// ExecOptions configures WriteExecutionScripts.
type ExecOptions struct {
	// CommandsFile receives one runner invocation line per job.
	CommandsFile string
	// RunScript receives the GNU parallel wrapper script.
	RunScript string
	// NParallel bounds the number of concurrent workers.
	NParallel int
	// DBInfoFile is where the store descriptor is written. A unique name is
	// generated when empty.
	DBInfoFile string
}

// WriteExecutionScripts writes the store descriptor file, a commands file
// with one line per job record referencing its id, and a wrapper script
// fanning the commands out with GNU parallel.
func (g *Generator) WriteExecutionScripts(ctx context.Context, opts ExecOptions) error {
	if opts.CommandsFile == "" || opts.RunScript == "" {
		return fmt.Errorf("commands file and run script paths are required")
	}
	if opts.NParallel <= 0 {
		return fmt.Errorf("number of parallel workers must be greater than zero, got %d", opts.NParallel)
	}

	dbInfoFile := opts.DBInfoFile
	if dbInfoFile == "" {
		dbInfoFile = fmt.Sprintf("store_db_info_%s.json", shortUID())
	}
	if err := db.WriteInfoFile(g.storeInfo, dbInfoFile); err != nil {
		return err
	}

	var cmds []string
	err := g.store.ForEach(ctx, models.JobFilter{}, func(job *models.Job) error {
		cmds = append(cmds, fmt.Sprintf("%s --dbinfo %s --job %d", g.runCmd, dbInfoFile, job.ID))
		return nil
	})
	if err != nil {
		return err
	}

	if err := scripts.WriteLines(cmds, opts.CommandsFile); err != nil {
		return err
	}

	wrapper := fmt.Sprintf("parallel -j %d < %s", opts.NParallel, opts.CommandsFile)
	if err := scripts.WriteLines([]string{wrapper}, opts.RunScript); err != nil {
		return err
	}
	logger.Infof("Finished creating shell scripts for %d jobs", len(cmds))
	return nil
}

// RemoveOutputs sweeps the matching jobs, removing each job's produced
// artifacts through the runner and resetting the record for a rerun.
func (g *Generator) RemoveOutputs(ctx context.Context, scope Scope) error {
	filter := models.JobFilter{}
	if scope == ScopeErrorsOnly {
		filter.Error = models.Bool(true)
	}

	var ids []uint
	err := g.store.ForEach(ctx, filter, func(job *models.Job) error {
		ids = append(ids, job.ID)
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := g.runner.RemoveOutputs(ctx, id); err != nil {
			return err
		}
	}
	logger.Infof("Removed outputs for %d jobs", len(ids))
	return nil
}

func shortUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
