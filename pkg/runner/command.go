package runner

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/batchkit/batchkit/internal/db"
	"github.com/batchkit/batchkit/internal/db/repos"
	"github.com/batchkit/batchkit/pkg/batch"
)

// flag names
const (
	flagDBInfo     = "dbinfo"
	flagJob        = "job"
	flagParams     = "params"
	flagRmOuts     = "rmouts"
	flagDiagnostic = "diagnostic"
	flagDriver     = "driver"
	flagDBFile     = "dbfile"
	flagHost       = "host"
	flagUser       = "user"
	flagPassword   = "password"
	flagDBName     = "dbname"
	flagPort       = "port"
	flagSSLMode    = "sslmode"
)

// NewCommand builds the runner CLI for a workload. The returned command
// selects one job by id and either runs it (batch mode by default), removes
// its outputs, prints its parameters, or runs it in diagnostic mode. The
// store is located through a descriptor file written by the generator, or
// through inline connection flags.
func NewCommand(use, short string, proc batch.JobProcessor) *cobra.Command {
	var (
		dbInfoFile string
		storeOpts  db.Options
		driver     string
		jobID      uint
		printOnly  bool
		rmOuts     bool
		diagnostic bool
	)

	openStore := func() (*gorm.DB, error) {
		if dbInfoFile != "" {
			return db.NewFromInfoFile(dbInfoFile)
		}
		if driver == "" {
			return nil, fmt.Errorf("store location required: set --%s or --%s", flagDBInfo, flagDriver)
		}
		storeOpts.Driver = db.Driver(driver)
		return db.New(storeOpts)
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := openStore()
			if err != nil {
				return err
			}
			store := repos.NewJobRepository(gdb)
			r := New(store, proc)
			ctx := context.Background()

			switch {
			case printOnly:
				return r.PrintParams(ctx, jobID, cmd.OutOrStdout())
			case rmOuts:
				return r.RemoveOutputs(ctx, jobID)
			case diagnostic:
				return r.RunDiagnostic(ctx, jobID)
			default:
				return r.Run(ctx, jobID)
			}
		},
	}

	cmd.Flags().StringVarP(&dbInfoFile, flagDBInfo, "d", "", "Path to the JSON store descriptor file")
	cmd.Flags().UintVarP(&jobID, flagJob, "j", 0, "ID of the job to execute")
	cmd.Flags().BoolVarP(&printOnly, flagParams, "p", false, "Print the job's parameters instead of running it")
	cmd.Flags().BoolVarP(&rmOuts, flagRmOuts, "r", false, "Remove the job's outputs instead of running it")
	cmd.Flags().BoolVar(&diagnostic, flagDiagnostic, false, "Run the job without store bookkeeping; failures propagate")

	// Inline connection parameters, used when no descriptor file is given.
	cmd.Flags().StringVar(&driver, flagDriver, "", "Store driver: sqlite or postgres (alternative to --dbinfo)")
	cmd.Flags().StringVar(&storeOpts.Path, flagDBFile, "", "Store database file path (sqlite)")
	cmd.Flags().StringVar(&storeOpts.Host, flagHost, "", "Store host (postgres)")
	cmd.Flags().StringVar(&storeOpts.User, flagUser, "", "Store user (postgres)")
	cmd.Flags().StringVar(&storeOpts.Password, flagPassword, "", "Store password (postgres)")
	cmd.Flags().StringVar(&storeOpts.DBName, flagDBName, "", "Store database name (postgres)")
	cmd.Flags().IntVar(&storeOpts.Port, flagPort, 0, "Store port (postgres)")
	cmd.Flags().StringVar(&storeOpts.SSLMode, flagSSLMode, "", "Store sslmode (postgres)")

	_ = cmd.MarkFlagRequired(flagJob)

	return cmd
}

// Main executes the runner command for a workload binary, exiting non-zero
// on store or configuration failure.
func Main(use, short string, proc batch.JobProcessor) {
	if err := NewCommand(use, short, proc).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
