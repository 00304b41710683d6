package generator

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewCommand builds the generator CLI for a workload. Subcommands cover the
// batch lifecycle: gen populates the store and writes the execution scripts,
// check verifies outputs after a run, report summarises the batch, and
// rmouts sweeps produced artifacts ahead of a rerun.
func NewCommand(use, short string, g *Generator) *cobra.Command {
	root := &cobra.Command{
		Use:          use,
		Short:        short,
		SilenceUsage: true,
	}
	root.AddCommand(
		newGenCmd(g),
		newCheckCmd(g),
		newReportCmd(g),
		newRmOutsCmd(g),
	)
	return root
}

func newGenCmd(g *Generator) *cobra.Command {
	var opts ExecOptions
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Populate the job store and write the execution scripts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := g.PopulateStore(ctx); err != nil {
				return err
			}
			return g.WriteExecutionScripts(ctx, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.CommandsFile, "cmds", "c", "", "Output file for the per-job command list")
	cmd.Flags().StringVarP(&opts.RunScript, "run", "r", "", "Output file for the GNU parallel wrapper script")
	cmd.Flags().IntVarP(&opts.NParallel, "nparallel", "n", 1, "Number of jobs run concurrently")
	cmd.Flags().StringVar(&opts.DBInfoFile, "dbinfo", "", "Output path for the store descriptor file (generated when empty)")
	_ = cmd.MarkFlagRequired("cmds")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func newCheckCmd(g *Generator) *cobra.Command {
	var errFile, nonCompleteFile string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify job outputs and report errored and non-complete jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := g.CheckOutputs(cmd.Context())
			if err != nil {
				return err
			}
			if errFile != "" || nonCompleteFile != "" {
				return res.WriteFiles(errFile, nonCompleteFile)
			}
			return res.Print(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&errFile, "errs", "", "Write the errored-jobs report as JSON to this file")
	cmd.Flags().StringVar(&nonCompleteFile, "noncomplete", "", "Write the non-complete jobs report as JSON to this file")
	return cmd
}

func newReportCmd(g *Generator) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise the batch: job counts and run-time statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rpt, err := g.BuildReport(cmd.Context())
			if err != nil {
				return err
			}
			if outFile != "" {
				return rpt.WriteFile(outFile)
			}
			return rpt.Write(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the report as JSON to this file instead of stdout")
	return cmd
}

func newRmOutsCmd(g *Generator) *cobra.Command {
	var all, errsOnly bool
	cmd := &cobra.Command{
		Use:   "rmouts",
		Short: "Remove produced outputs and reset job records for a rerun",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all == errsOnly {
				return fmt.Errorf("exactly one of --all or --error must be set")
			}
			scope := ScopeAll
			if errsOnly {
				scope = ScopeErrorsOnly
			}
			return g.RemoveOutputs(cmd.Context(), scope)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Sweep every job in the batch")
	cmd.Flags().BoolVar(&errsOnly, "error", false, "Sweep only jobs flagged as errored")
	return cmd
}

// Main executes the generator command for a workload binary, exiting
// non-zero on failure.
func Main(use, short string, g *Generator) {
	if err := NewCommand(use, short, g).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
