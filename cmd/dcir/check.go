package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"dcir/internal/ir"
)

var checkStrict bool

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "also require jumps and returns to end their block")
}

var errCheckFailed = errors.New("check failed")

var checkCmd = &cobra.Command{
	Use:   "check [listing.toml|dir]...",
	Short: "Validate block and function invariants of every function",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, timer, err := buildFromArgs(cmd, args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ok := color.New(color.FgGreen, color.Bold).SprintFunc()
		bad := color.New(color.FgRed, color.Bold).SprintFunc()

		width := 0
		for _, r := range results {
			width = max(width, runewidth.StringWidth(r.Function.Name))
		}

		failed := 0
		for _, r := range results {
			name := runewidth.FillRight(r.Function.Name, width)
			verr := ir.Validate(r.Function, ir.ValidateOptions{Strict: checkStrict})
			if verr == nil {
				fmt.Fprintf(out, "%s   %s  %s, %d blocks\n", ok("ok"), name, r.File.Path, r.Function.Len())
				continue
			}
			failed++
			fmt.Fprintf(out, "%s %s  %s\n", bad("FAIL"), name, r.File.Path)
			fmt.Fprintf(out, "  %v\n", verr)
		}
		printTimings(cmd.ErrOrStderr(), timer)
		if failed > 0 {
			return fmt.Errorf("%w: %d of %d functions", errCheckFailed, failed, len(results))
		}
		return nil
	},
}
