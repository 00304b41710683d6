package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/batchkit/batchkit/config"
	"github.com/batchkit/batchkit/internal/db"
	"github.com/batchkit/batchkit/internal/db/repos"
	"github.com/batchkit/batchkit/pkg/generator"
)

// flag names
const (
	flagDBInfo = "dbinfo"
	flagJobID  = "job"
)

// environment variable names
const (
	envDBInfo = "BATCHKIT_DB_INFO"
)

func init() {
	jobsCmd.PersistentFlags().StringP(flagDBInfo, "d", "", "Path to the JSON store descriptor file (env: BATCHKIT_DB_INFO)")

	jobsParamsCmd.Flags().UintP(flagJobID, "j", 0, "ID of the job to inspect")
	_ = jobsParamsCmd.MarkFlagRequired(flagJobID)

	jobsReportCmd.Flags().StringP(flagOutput, "o", "", "Write the report as JSON to this file instead of stdout")

	jobsCmd.AddCommand(jobsReportCmd)
	jobsCmd.AddCommand(jobsCountCmd)
	jobsCmd.AddCommand(jobsParamsCmd)
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect a job record store",
}

// openStore locates the store through the --dbinfo flag, falling back to the
// BATCHKIT_DB_INFO environment variable.
func openStore(cmd *cobra.Command) (*repos.JobRepository, error) {
	dbInfoFile, _ := cmd.Flags().GetString(flagDBInfo)
	if dbInfoFile == "" {
		dbInfoFile = config.GetEnv(envDBInfo, "")
	}
	if dbInfoFile == "" {
		return nil, fmt.Errorf("store descriptor required: set --%s or %s", flagDBInfo, envDBInfo)
	}
	gdb, err := db.NewFromInfoFile(dbInfoFile)
	if err != nil {
		return nil, err
	}
	return repos.NewJobRepository(gdb), nil
}

var jobsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise the batch: job counts and run-time statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		rpt, err := generator.BuildReport(cmd.Context(), store)
		if err != nil {
			return err
		}
		if outFile, _ := cmd.Flags().GetString(flagOutput); outFile != "" {
			return rpt.WriteFile(outFile)
		}
		return rpt.Write(cmd.OutOrStdout())
	},
}

var jobsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of job records in the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		n, err := store.Count(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
		return err
	},
}

var jobsParamsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print one job's parameters as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint(flagJobID)
		job, err := store.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(job.Params, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal job params: %w", err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return err
	},
}

// GetJobsCmd returns the jobs command
func GetJobsCmd() *cobra.Command {
	return jobsCmd
}
