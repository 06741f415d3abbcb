package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dcir/internal/ir"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [listing.toml|dir]...",
	Short: "Print the IR of every function as text",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, timer, err := buildFromArgs(cmd, args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(out)
			}
			if err := ir.DumpFunction(out, r.Function); err != nil {
				return err
			}
		}
		printTimings(cmd.ErrOrStderr(), timer)
		return nil
	},
}
