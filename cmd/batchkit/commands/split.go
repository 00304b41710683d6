package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/batchkit/batchkit/internal/logger"
	"github.com/batchkit/batchkit/pkg/scripts"
)

// flag names
const (
	flagInput  = "input"
	flagOutput = "output"
	flagSplit  = "split"
	flagNFiles = "nfiles"
	flagDeal   = "dealsplit"
	flagPreCmd = "precmd"
	flagPrefix = "prefix"
)

func init() {
	splitCmd.Flags().StringP(flagInput, "i", "", "Input file with one command per line")
	splitCmd.Flags().StringP(flagOutput, "o", "", "Output file path; chunk files are numbered from it")
	splitCmd.Flags().IntP(flagSplit, "s", 0, "Number of commands per output file")
	splitCmd.Flags().IntP(flagNFiles, "f", 0, "Number of output files to generate")
	splitCmd.Flags().Bool(flagDeal, false, "Split the commands as cards would be dealt rather than contiguous runs")
	splitCmd.Flags().StringP(flagPreCmd, "p", "", "Command prepended to every command before splitting, e.g. a container exec wrapper")
	_ = splitCmd.MarkFlagRequired(flagInput)
	_ = splitCmd.MarkFlagRequired(flagOutput)

	prefixCmd.Flags().StringP(flagInput, "i", "", "Input file with one command per line")
	prefixCmd.Flags().StringP(flagOutput, "o", "", "Output file for the prefixed commands")
	prefixCmd.Flags().StringP(flagPrefix, "p", "", "Text prepended to every command")
	_ = prefixCmd.MarkFlagRequired(flagInput)
	_ = prefixCmd.MarkFlagRequired(flagOutput)
	_ = prefixCmd.MarkFlagRequired(flagPrefix)
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a command list into numbered chunk files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		input, _ := cmd.Flags().GetString(flagInput)
		output, _ := cmd.Flags().GetString(flagOutput)
		perFile, _ := cmd.Flags().GetInt(flagSplit)
		nFiles, _ := cmd.Flags().GetInt(flagNFiles)
		deal, _ := cmd.Flags().GetBool(flagDeal)
		preCmd, _ := cmd.Flags().GetString(flagPreCmd)

		if (perFile > 0) == (nFiles > 0) {
			return fmt.Errorf("specify exactly one of --%s or --%s", flagSplit, flagNFiles)
		}

		cmds, err := scripts.ReadLines(input)
		if err != nil {
			return err
		}
		cmds = scripts.Prefix(cmds, preCmd)

		mode, n := scripts.ByCount, perFile
		if nFiles > 0 {
			mode, n = scripts.ByFiles, nFiles
		}
		files, err := scripts.SplitFiles(cmds, output, mode, n, deal)
		if err != nil {
			return err
		}
		logger.Infof("Split %d commands into %d files", len(cmds), len(files))
		return nil
	},
}

var prefixCmd = &cobra.Command{
	Use:   "prefix",
	Short: "Prepend a fixed prefix to every command in a list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		input, _ := cmd.Flags().GetString(flagInput)
		output, _ := cmd.Flags().GetString(flagOutput)
		prefix, _ := cmd.Flags().GetString(flagPrefix)

		cmds, err := scripts.ReadLines(input)
		if err != nil {
			return fmt.Errorf("failed to read commands: %w", err)
		}
		// Commented-out commands must not come back to life with a prefix.
		cmds = scripts.FilterComments(cmds)
		return scripts.WriteLines(scripts.Prefix(cmds, prefix), output)
	},
}

// GetSplitCmd returns the split command
func GetSplitCmd() *cobra.Command {
	return splitCmd
}

// GetPrefixCmd returns the prefix command
func GetPrefixCmd() *cobra.Command {
	return prefixCmd
}
