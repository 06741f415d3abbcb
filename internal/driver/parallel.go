// Package driver loads listings and builds their functions in parallel,
// running the configured passes and consulting the disk cache.
package driver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"dcir/internal/ir"
	"dcir/internal/irgen"
	"dcir/internal/listing"
	"dcir/internal/observ"
	"dcir/internal/passes"
	"dcir/internal/trace"
)

// ManifestName is skipped when collecting listings from a directory.
const ManifestName = "dcir.toml"

// Options configures BuildAll.
type Options struct {
	Jobs   int           // <= 0 means GOMAXPROCS
	Passes []string      // pass names in run order
	Cache  *DiskCache    // nil disables caching
	Timer  *observ.Timer // may be nil
}

// Result is one built function.
type Result struct {
	File     *listing.File
	Function *ir.Function
	Cached   bool
}

// listListings returns a sorted list of all listing files in dir.
func listListings(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".toml") && d.Name() != ManifestName {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ExpandPaths replaces directories in paths by the listings they contain.
func ExpandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		files, err := listListings(p)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

func jobsFor(jobs, n int) int {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return max(1, min(jobs, n))
}

// LoadAll decodes the listings at paths in parallel, preserving order.
func LoadAll(ctx context.Context, paths []string, jobs int) ([]*listing.File, error) {
	span, ctx := trace.Start(ctx, trace.ScopeDriver, "load")
	defer span.End("")
	span.WithExtra("files", strconv.Itoa(len(paths)))

	files := make([]*listing.File, len(paths))
	if len(paths) == 0 {
		return files, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobsFor(jobs, len(paths)))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := listing.Load(path)
			if err != nil {
				return err
			}
			// index i is unique per goroutine, no mutex needed
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

type job struct {
	file *listing.File
	fn   *listing.Function
}

// BuildAll builds every function of files and runs the pass pipeline on
// each. Results follow file order, then function order within a file.
func BuildAll(ctx context.Context, files []*listing.File, opts Options) ([]Result, error) {
	span, ctx := trace.Start(ctx, trace.ScopeDriver, "build")
	defer span.End("")

	pipeline, err := passes.NewPipeline(opts.Passes, opts.Timer)
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, f := range files {
		for _, fn := range f.Functions {
			jobs = append(jobs, job{file: f, fn: fn})
		}
	}
	span.WithExtra("functions", strconv.Itoa(len(jobs)))

	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobsFor(opts.Jobs, len(jobs)))
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := buildOne(gctx, j, pipeline, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", j.file.Path, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func buildOne(ctx context.Context, j job, pipeline *passes.Pipeline, opts Options) (Result, error) {
	key := CacheKey(j.file.Digest, j.fn.Name, pipeline.Names())
	if opts.Cache != nil {
		fn, ok, err := opts.Cache.Get(key)
		if err != nil {
			// A broken entry is rebuilt and overwritten below.
			trace.Point(ctx, trace.ScopeFunction, "cache:corrupt", err.Error())
		} else if ok {
			trace.Point(ctx, trace.ScopeFunction, "cache:hit", j.fn.Name)
			return Result{File: j.file, Function: fn, Cached: true}, nil
		}
	}

	start := time.Now()
	fn, err := irgen.Build(ctx, j.fn)
	opts.Timer.Add("irgen", time.Since(start))
	if err != nil {
		return Result{}, err
	}
	if err := pipeline.Run(ctx, fn); err != nil {
		return Result{}, err
	}
	if err := opts.Cache.Put(key, pipeline.Names(), fn); err != nil {
		return Result{}, fmt.Errorf("%s: cache: %w", j.fn.Name, err)
	}
	return Result{File: j.file, Function: fn}, nil
}
