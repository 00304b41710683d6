package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/batchkit/batchkit/pkg/scripts"
)

// flag names
const (
	flagConfig   = "config"
	flagCmdsFile = "cmdsfile"
	flagTemplate = "template"
	flagCommand  = "cmd"
	flagMulti    = "multi"
)

func init() {
	sbatchGenCmd.Flags().StringP(flagConfig, "c", "", "JSON file with the sbatch submission settings")
	sbatchGenCmd.Flags().StringP(flagInput, "i", "", "Input file with one command per line (or one command file per line with --multi)")
	sbatchGenCmd.Flags().StringP(flagCmdsFile, "f", "", "Output file for the srun-wrapped commands")
	sbatchGenCmd.Flags().StringP(flagOutput, "o", "", "Output file for the sbatch submission script")
	sbatchGenCmd.Flags().StringP(flagTemplate, "t", "", "Custom sbatch template file (built-in template when empty)")
	sbatchGenCmd.Flags().StringP(flagPreCmd, "p", "", "Command prepended to every command, e.g. a container exec wrapper")
	sbatchGenCmd.Flags().Bool(flagMulti, false, "Treat the input as a list of command files and generate one sbatch per file plus a runall script")
	_ = sbatchGenCmd.MarkFlagRequired(flagConfig)
	_ = sbatchGenCmd.MarkFlagRequired(flagInput)
	_ = sbatchGenCmd.MarkFlagRequired(flagCmdsFile)
	_ = sbatchGenCmd.MarkFlagRequired(flagOutput)

	sbatchCommandCmd.Flags().StringP(flagConfig, "c", "", "JSON file with the sbatch submission settings")
	sbatchCommandCmd.Flags().String(flagCommand, "", "Command the submission script executes")
	sbatchCommandCmd.Flags().StringP(flagOutput, "o", "", "Output file for the sbatch submission script")
	sbatchCommandCmd.Flags().StringP(flagTemplate, "t", "", "Custom sbatch template file (built-in template when empty)")
	_ = sbatchCommandCmd.MarkFlagRequired(flagConfig)
	_ = sbatchCommandCmd.MarkFlagRequired(flagCommand)
	_ = sbatchCommandCmd.MarkFlagRequired(flagOutput)

	sbatchCmd.AddCommand(sbatchGenCmd)
	sbatchCmd.AddCommand(sbatchCommandCmd)
}

var sbatchCmd = &cobra.Command{
	Use:   "sbatch",
	Short: "Generate SLURM sbatch submission scripts",
}

var sbatchGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate an sbatch script fanning a command list out with GNU parallel",
	RunE: func(cmd *cobra.Command, _ []string) error {
		configFile, _ := cmd.Flags().GetString(flagConfig)
		input, _ := cmd.Flags().GetString(flagInput)
		outCmds, _ := cmd.Flags().GetString(flagCmdsFile)
		outSbatch, _ := cmd.Flags().GetString(flagOutput)
		templatePath, _ := cmd.Flags().GetString(flagTemplate)
		preCmd, _ := cmd.Flags().GetString(flagPreCmd)
		multi, _ := cmd.Flags().GetBool(flagMulti)

		spec, err := scripts.LoadSpec(configFile)
		if err != nil {
			return err
		}

		if multi {
			inputFiles, err := scripts.ReadLines(input)
			if err != nil {
				return err
			}
			return scripts.GenerateSbatchMulti(spec, inputFiles, outCmds, outSbatch, templatePath, preCmd)
		}
		return scripts.GenerateSbatch(spec, input, outCmds, outSbatch, templatePath, preCmd)
	},
}

var sbatchCommandCmd = &cobra.Command{
	Use:   "cmd",
	Short: "Generate an sbatch script executing a single command",
	RunE: func(cmd *cobra.Command, _ []string) error {
		configFile, _ := cmd.Flags().GetString(flagConfig)
		command, _ := cmd.Flags().GetString(flagCommand)
		outSbatch, _ := cmd.Flags().GetString(flagOutput)
		templatePath, _ := cmd.Flags().GetString(flagTemplate)

		spec, err := scripts.LoadSpec(configFile)
		if err != nil {
			return err
		}
		script, err := scripts.RenderCommandSbatch(spec, command, templatePath)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outSbatch, []byte(script), 0o644); err != nil {
			return fmt.Errorf("failed to write sbatch script %s: %w", outSbatch, err)
		}
		return nil
	},
}

// GetSbatchCmd returns the sbatch command
func GetSbatchCmd() *cobra.Command {
	return sbatchCmd
}
