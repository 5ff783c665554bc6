package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pperf",
		Short:         "Rank and trace hot functions from perf report --stdio output",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newTopCmd())
	return cmd
}
