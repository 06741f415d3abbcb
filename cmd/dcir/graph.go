package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var graphOut string

func init() {
	graphCmd.Flags().StringVarP(&graphOut, "out", "o", "", "write DOT to file instead of stdout")
}

var graphCmd = &cobra.Command{
	Use:   "graph [listing.toml|dir]...",
	Short: "Render the control-flow graph of every function as DOT",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		results, timer, err := buildFromArgs(cmd, args)
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if graphOut != "" && graphOut != "-" {
			var f *os.File
			if f, err = os.Create(graphOut); err != nil {
				return fmt.Errorf("failed to create %s: %w", graphOut, err)
			}
			defer func() {
				if cerr := f.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			out = f
		}

		w := bufio.NewWriter(out)
		for _, r := range results {
			if err := r.Function.Print(w); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		printTimings(cmd.ErrOrStderr(), timer)
		return nil
	},
}
