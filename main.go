// docreflect reports the merged structural and doc comment metadata of PHP
// classes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/docreflect/internal/config"
	"github.com/phobologic/docreflect/internal/finder"
	"github.com/phobologic/docreflect/internal/logging"
	"github.com/phobologic/docreflect/internal/metadata"
	"github.com/phobologic/docreflect/internal/persist"
	"github.com/phobologic/docreflect/internal/structure"
	"github.com/phobologic/docreflect/internal/tagreader"
)

var version = "dev"

// Output formats.
const (
	formatTOON = "toon"
	formatJSON = "json"
	formatYAML = "yaml"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// globals holds the persistent flags shared by every command.
type globals struct {
	stdout, stderr io.Writer

	root    string
	format  string
	verbose bool
	noColor bool
	noCache bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "docreflect",
		Short: "Inspect PHP classes with their doc comment metadata merged in",
		Long: `docreflect reflects PHP classes from source and merges the facts carried by
their doc comments (@var, @property, @property-read, @property-write,
@method, @return) into one view of each class's properties and methods.

Classes are located with the class finders listed in docreflect.yaml
(composer by default). Run "docreflect init" to write a configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch g.format {
			case formatTOON, formatJSON, formatYAML:
				return nil
			}
			return fmt.Errorf("unsupported format %q (want toon, json or yaml)", g.format)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("docreflect {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.root, "root", "C", ".", "project root")
	pf.StringVarP(&g.format, "format", "f", formatTOON, "output format: toon, json or yaml")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")
	pf.BoolVar(&g.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&g.noCache, "no-cache", false, "ignore the configured metadata cache")

	cmd.AddCommand(
		newInspectCmd(g),
		newPropertyCmd(g),
		newScanCmd(g),
		newExtractCmd(g),
		newHydrateCmd(g),
		newCacheCmd(g),
		newInitCmd(g),
		newVersionCmd(g),
	)
	return cmd
}

func newVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(g.stdout, "docreflect %s\n", version)
			return err
		},
	}
}

// app is the wired component graph behind a command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	reflector *structure.Reflector
	store     *metadata.Store
	backend   persist.Backend
}

// setup loads the configuration under g.root and wires the store.
func (g *globals) setup(ctx context.Context) (*app, error) {
	root, err := filepath.Abs(g.root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log, g.verbose, g.stderr)
	if err != nil {
		return nil, err
	}

	reader := tagreader.NewReader(tagreader.NewContextResolver(logger.Named("tags")))
	if err := reader.RegisterMap(cfg.TagMap()); err != nil {
		return nil, &config.ConfigError{Field: "tag_class_map", Err: err}
	}

	finders, err := finder.NewRegistry().Build(cfg.ClassFinders, cfg)
	if err != nil {
		return nil, err
	}
	reflector := structure.New(finders, logger.Named("structure"))

	opts := []metadata.Option{
		metadata.WithLogger(logger.Named("metadata")),
		metadata.WithProxyInterfaces(cfg.ProxyInterfaces...),
	}
	var backend persist.Backend
	if !g.noCache {
		backend, err = persist.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if backend != nil {
			opts = append(opts, metadata.WithPersister(backend))
		}
	}

	logger.Debug("configured",
		zap.String("root", cfg.Root),
		zap.Strings("class_finders", cfg.ClassFinders),
		zap.String("cache", cfg.Cache.Backend))

	return &app{
		cfg:       cfg,
		logger:    logger,
		reflector: reflector,
		store:     metadata.New(reflector, reader, opts...),
		backend:   backend,
	}, nil
}

func (a *app) Close() {
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Warn("closing cache", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// render writes v in the selected format. toonText produces the TOON form.
func (g *globals) render(toonText func() string, v any) error {
	switch g.format {
	case formatJSON:
		enc := json.NewEncoder(g.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(g.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	_, err := fmt.Fprintln(g.stdout, toonText())
	return err
}

// warnf prints a user-facing warning to stderr, colored when stderr is a
// terminal.
func (g *globals) warnf(format string, args ...any) {
	c := color.New(color.FgYellow)
	if g.noColor || !isTerminal(g.stderr) {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	_, _ = c.Fprintf(g.stderr, "Warning: "+format+"\n", args...)
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
