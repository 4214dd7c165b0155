package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phobologic/docreflect/internal/discover"
	"github.com/phobologic/docreflect/internal/graph"
	"github.com/phobologic/docreflect/internal/lang"
	"github.com/phobologic/docreflect/internal/model"
	"github.com/phobologic/docreflect/internal/ranking"
	"github.com/phobologic/docreflect/internal/toon"
)

type scanOptions struct {
	top          int
	class        string
	file         string
	exclude      []string
	excludeTests bool
	vendor       bool
	workers      int
}

func newScanCmd(g *globals) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan [path...]",
		Short: "Reflect every class under the given paths and map their dependencies",
		Long: `scan parses every PHP file under the given paths (default: scan.paths from
docreflect.yaml), builds the merged metadata of each declared class, links
classes through the types of their properties and methods, and ranks them
with PageRank.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("top") {
				opts.top = a.cfg.Scan.Top
			}
			if !cmd.Flags().Changed("workers") {
				opts.workers = a.cfg.Scan.Workers
			}
			if !cmd.Flags().Changed("exclude-tests") {
				opts.excludeTests = a.cfg.Scan.ExcludeTests
			}
			opts.exclude = append(opts.exclude, a.cfg.Scan.Exclude...)

			paths := args
			if len(paths) == 0 {
				paths = a.cfg.Scan.Paths
			}

			pm, err := scan(cmd.Context(), a, paths, opts, g)
			if err != nil {
				return err
			}
			return g.render(func() string { return toon.Encode(pm) }, viewProject(pm))
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.top, "top", "n", 0, "maximum number of classes to include (0 = all)")
	f.StringVar(&opts.class, "class", "", "only classes whose name contains this, plus their neighbors")
	f.StringVar(&opts.file, "file", "", "only classes declared in files whose path contains this")
	f.StringSliceVarP(&opts.exclude, "exclude", "x", nil, "doublestar patterns to skip, relative to each path")
	f.BoolVar(&opts.excludeTests, "exclude-tests", false, "skip test files")
	f.BoolVar(&opts.vendor, "vendor", false, "walk vendor/ directories")
	f.IntVarP(&opts.workers, "workers", "j", 0, "parser goroutines (0 = GOMAXPROCS)")
	return cmd
}

func scan(ctx context.Context, a *app, paths []string, opts scanOptions, g *globals) (*model.ProjectMap, error) {
	files, err := discoverAll(a.cfg.Root, paths, opts)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no PHP files found")
	}
	a.logger.Debug("discovered", zap.Int("files", len(files)))

	classes := reflectFilesConcurrent(ctx, a, files, opts.workers, g.stderr)
	if len(classes) == 0 {
		return nil, fmt.Errorf("no classes could be reflected")
	}

	deps := graph.Build(classes)
	graph.Rank(classes, deps)

	pm := &model.ProjectMap{
		Name:         filepath.Base(a.cfg.Root),
		Root:         filepath.Base(a.cfg.Root),
		Classes:      classes,
		Dependencies: deps,
	}
	if opts.class != "" {
		pm = ranking.FilterByName(pm, opts.class)
	}
	if opts.file != "" {
		pm = ranking.FilterByFile(pm, opts.file)
	}
	if opts.top > 0 {
		pm = ranking.SelectClasses(pm, opts.top)
	}
	return pm, nil
}

// discoverAll returns the PHP files under each path, relative to root and
// without duplicates.
func discoverAll(root string, paths []string, opts scanOptions) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, p := range paths {
		base := p
		if !filepath.IsAbs(base) {
			base = filepath.Join(root, base)
		}
		entries, err := discover.Files(base, discover.Options{
			Languages:     []string{lang.PHP},
			Exclude:       opts.exclude,
			IncludeVendor: opts.vendor,
		})
		if err != nil {
			return nil, fmt.Errorf("discovering files in %s: %w", p, err)
		}
		for _, e := range entries {
			rel, err := filepath.Rel(root, filepath.Join(base, e.Path))
			if err != nil {
				rel = filepath.Join(base, e.Path)
			}
			if opts.excludeTests && discover.IsTestFile(filepath.ToSlash(rel)) {
				continue
			}
			if _, dup := seen[rel]; dup {
				continue
			}
			seen[rel] = struct{}{}
			files = append(files, rel)
		}
	}
	return files, nil
}

// reflectFilesConcurrent parses files on a pool of workers, registers the
// declared classes with the reflector and builds their metadata. Classes are
// returned in file order, then declaration order.
func reflectFilesConcurrent(ctx context.Context, a *app, files []string, workers int, stderr io.Writer) []model.ClassReport {
	type result struct {
		index   int
		reports []model.ClassReport
	}

	numWorkers := workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	var stderrMu sync.Mutex
	warn := func(format string, args ...any) {
		stderrMu.Lock()
		defer stderrMu.Unlock()
		_, _ = fmt.Fprintf(stderr, "Warning: "+format+"\n", args...)
	}

	for n := 0; n < numWorkers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				rel := files[idx]
				infos, err := a.reflector.ParseFile(filepath.Join(a.cfg.Root, rel))
				if err != nil {
					warn("failed to parse %s: %v", rel, err)
					continue
				}

				var reports []model.ClassReport
				for _, info := range infos {
					meta, err := a.store.ClassMetadata(info.Name)
					if err != nil {
						warn("%s: %v", info.Name, err)
						continue
					}
					reports = append(reports, model.ClassReport{
						Name:     info.Name,
						File:     filepath.ToSlash(rel),
						Metadata: meta,
					})
				}
				results <- result{index: idx, reports: reports}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([][]model.ClassReport, len(files))
	for r := range results {
		indexed[r.index] = r.reports
	}

	// The first declaration of a class name in file order wins.
	seen := make(map[string]struct{})
	var classes []model.ClassReport
	for _, reports := range indexed {
		for _, r := range reports {
			key := strings.ToLower(r.Name)
			if _, dup := seen[key]; dup {
				warn("%s: duplicate declaration in %s ignored", r.Name, r.File)
				continue
			}
			seen[key] = struct{}{}
			classes = append(classes, r)
		}
	}
	return classes
}
