package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dcir/internal/driver"
	"dcir/internal/observ"
	"dcir/internal/passes"
)

// buildSettings is the merged view of flags and dcir.toml. Flags win.
type buildSettings struct {
	paths   []string
	jobs    int
	passes  []string
	cache   bool
	timings bool
}

func resolveSettings(cmd *cobra.Command, args []string) (buildSettings, error) {
	flags := cmd.Root().PersistentFlags()
	var s buildSettings

	manifest, _, err := loadProjectManifest(".")
	if err != nil {
		return s, err
	}

	switch {
	case len(args) > 0:
		s.paths = args
	case manifest != nil:
		s.paths = manifest.listingPaths()
	}
	if len(s.paths) == 0 {
		return s, fmt.Errorf("%s", noManifestMessage)
	}

	if s.jobs, err = flags.GetInt("jobs"); err != nil {
		return s, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if s.jobs == 0 && manifest != nil {
		s.jobs = manifest.Config.Build.Jobs
	}

	passList, err := flags.GetString("passes")
	if err != nil {
		return s, fmt.Errorf("failed to get passes flag: %w", err)
	}
	if passList == "" && manifest != nil && manifest.Config.Build.Passes != nil {
		passList = strings.Join(manifest.Config.Build.Passes, ",")
		if passList == "" {
			passList = "none"
		}
	}
	if s.passes, err = passes.Parse(passList); err != nil {
		return s, err
	}

	noCache, err := flags.GetBool("no-cache")
	if err != nil {
		return s, fmt.Errorf("failed to get no-cache flag: %w", err)
	}
	s.cache = !noCache && manifest.cacheEnabled()

	if s.timings, err = flags.GetBool("timings"); err != nil {
		return s, fmt.Errorf("failed to get timings flag: %w", err)
	}
	return s, nil
}

// buildFromArgs loads and builds every listing named by args or the
// manifest. The timer is returned for printTimings.
func buildFromArgs(cmd *cobra.Command, args []string) ([]driver.Result, *observ.Timer, error) {
	s, err := resolveSettings(cmd, args)
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	timer := observ.NewTimer()

	paths, err := driver.ExpandPaths(s.paths)
	if err != nil {
		return nil, nil, err
	}

	var cache *driver.DiskCache
	if s.cache {
		if cache, err = driver.OpenDiskCache("dcir"); err != nil {
			return nil, nil, fmt.Errorf("failed to open cache: %w", err)
		}
	}

	idx := timer.Begin("load")
	files, err := driver.LoadAll(ctx, paths, s.jobs)
	timer.End(idx, fmt.Sprintf("%d files", len(paths)))
	if err != nil {
		return nil, nil, err
	}

	idx = timer.Begin("build")
	results, err := driver.BuildAll(ctx, files, driver.Options{
		Jobs:   s.jobs,
		Passes: s.passes,
		Cache:  cache,
		Timer:  timer,
	})
	timer.End(idx, fmt.Sprintf("%d functions", len(results)))
	if err != nil {
		return nil, nil, err
	}

	if !s.timings {
		timer = nil
	}
	return results, timer, nil
}
