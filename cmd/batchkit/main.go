package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/batchkit/batchkit/cmd/batchkit/commands"
	"github.com/batchkit/batchkit/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "batchkit",
	Short: "batchkit - tooling for fanning workloads out over HPC batch systems",
	Long: `batchkit prepares and inspects batches of jobs executed through GNU
parallel or SLURM: splitting command lists, generating sbatch submission
scripts and querying job record stores.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(commands.GetSplitCmd())
	rootCmd.AddCommand(commands.GetPrefixCmd())
	rootCmd.AddCommand(commands.GetSbatchCmd())
	rootCmd.AddCommand(commands.GetJobsCmd())
}

func main() {
	// .env is optional; environment variables win when both are present.
	_ = godotenv.Load()
	logger.Initialize()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
