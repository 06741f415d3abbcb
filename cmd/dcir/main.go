package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dcir/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "dcir",
	Short:         "Decompiler IR toolkit",
	Long:          `dcir builds basic-block IR from instruction listings and renders it as graphs or text`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupColor(cmd); err != nil {
			return err
		}
		stopProfiling, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		stopTracing, err := setupTracing(cmd)
		if err != nil {
			stopProfiling()
			return err
		}
		cleanup = sync.OnceFunc(func() {
			stopTracing()
			stopProfiling()
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		cleanup()
	},
}

// cleanup flushes the tracer and stops profilers. PersistentPostRun is
// skipped on error, so main calls it too.
var cleanup = func() {}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("timings", false, "show timing information")
	flags.Int("jobs", 0, "parallel workers (0 = GOMAXPROCS, overrides dcir.toml)")
	flags.Bool("no-cache", false, "do not read or write the build cache")
	flags.String("passes", "", "comma separated passes to run, or none (default from dcir.toml)")

	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "events kept in ring mode")
	flags.Duration("trace-heartbeat", 0, "heartbeat interval, 0 disables")

	flags.String("cpu-profile", "", "write CPU profile to file")
	flags.String("mem-profile", "", "write heap profile to file on exit")
	flags.String("runtime-trace", "", "write Go runtime trace to file")
}

// main executes the root command. Any error exits with status 1.
func main() {
	err := rootCmd.Execute()
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func setupColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color %q (must be auto, on or off)", mode)
	}
	return nil
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
