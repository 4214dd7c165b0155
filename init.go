package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/phobologic/docreflect/internal/config"
)

const (
	sentinelStart = "# docreflect:start"
	sentinelEnd   = "# docreflect:end"
)

type initOptions struct {
	dryRun      bool
	force       bool
	interactive bool
}

// initAnswers are the choices written into the generated configuration.
type initAnswers struct {
	Finders []string `survey:"finders"`
	Cache   string   `survey:"cache"`
}

func defaultAnswers() initAnswers {
	return initAnswers{Finders: []string{config.FinderComposer}, Cache: config.CacheNone}
}

func askAnswers() (initAnswers, error) {
	a := defaultAnswers()
	questions := []*survey.Question{
		{
			Name: "finders",
			Prompt: &survey.MultiSelect{
				Message: "Class finders (tried in order):",
				Options: []string{config.FinderComposer, config.FinderPSR4, config.FinderClassmap},
				Default: a.Finders,
			},
			Validate: survey.MinItems(1),
		},
		{
			Name: "cache",
			Prompt: &survey.Select{
				Message: "Metadata cache:",
				Options: []string{config.CacheNone, config.CacheSQLite, config.CacheRedis, config.CachePostgres},
				Default: a.Cache,
			},
		},
	}
	if err := survey.Ask(questions, &a); err != nil {
		return initAnswers{}, err
	}
	return a, nil
}

func newInitCmd(g *globals) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a docreflect.yaml and ignore the cache directory",
		Long: `init writes a commented docreflect.yaml to the project root and adds the
default cache directory to .gitignore. The .gitignore entry is wrapped in
sentinel comments so it can be updated in place on subsequent runs without
touching surrounding content.

An existing docreflect.yaml is left alone unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			answers := defaultAnswers()
			if opts.interactive {
				if !isTerminal(cmd.InOrStdin()) {
					return fmt.Errorf("--interactive needs a terminal on stdin")
				}
				var err error
				if answers, err = askAnswers(); err != nil {
					return err
				}
			}
			return runInit(g.root, opts, answers, g.stdout, g.stderr)
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print what would be written without modifying any file")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing docreflect.yaml")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "choose class finders and cache backend interactively")
	return cmd
}

func runInit(root string, opts initOptions, answers initAnswers, stdout, stderr io.Writer) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	configPath := filepath.Join(root, config.FileName)
	_, statErr := os.Stat(configPath)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", configPath, statErr)
	}
	writeConfig := !exists || opts.force

	ignorePath := filepath.Join(root, ".gitignore")
	existing, _ := os.ReadFile(ignorePath)
	updated := applySection(string(existing), generateSection())

	if opts.dryRun {
		if writeConfig {
			_, _ = fmt.Fprintf(stdout, "--- %s\n%s", config.FileName, generateConfig(answers))
		}
		_, _ = fmt.Fprintf(stdout, "--- .gitignore\n%s", updated)
		return nil
	}

	if writeConfig {
		if err := os.WriteFile(configPath, []byte(generateConfig(answers)), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configPath, err)
		}
		_, _ = fmt.Fprintf(stderr, "wrote %s\n", configPath)
	} else {
		_, _ = fmt.Fprintf(stderr, "%s exists, leaving it alone (use --force to overwrite)\n", configPath)
	}

	if updated != string(existing) {
		if err := os.WriteFile(ignorePath, []byte(updated), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", ignorePath, err)
		}
		_, _ = fmt.Fprintf(stderr, "updated %s\n", ignorePath)
	}
	return nil
}

// generateConfig returns the docreflect.yaml written by init. Values other
// than the answers match the built-in defaults.
func generateConfig(answers initAnswers) string {
	var b strings.Builder
	b.WriteString(`# docreflect configuration. Paths are relative to this file.

# Class finders tried in order: composer, psr4, classmap.
class_finders:
`)
	for _, f := range answers.Finders {
		fmt.Fprintf(&b, "  - %s\n", f)
	}
	b.WriteString(`
# Extra PSR-4 roots for the psr4 finder.
# psr4:
#   - prefix: 'App\'
#     paths: [src]

# Directories scanned by the classmap finder.
# classmap:
#   paths: [lib]

# Custom doc comment tags and the record type they parse as
# (var, property, property-read, property-write, method, return, generic).
# tag_class_map:
#   - tag: psalm-var
#     record: var

# Interfaces marking generated proxy classes.
proxy_interfaces:
`)
	for _, iface := range config.DefaultProxyInterfaces {
		fmt.Fprintf(&b, "  - '%s'\n", iface)
	}
	fmt.Fprintf(&b, `
# Metadata cache: none, sqlite, redis or postgres.
cache:
  backend: %s
  path: %s
  # redis_addr: localhost:6379
  # redis_db: 0
  # key_prefix: 'docreflect:'
  # ttl: 24h
  # dsn: postgres://localhost/docreflect

log:
  level: warn

scan:
  paths: [.]
  exclude_tests: false
`, answers.Cache, filepath.ToSlash(filepath.Join(".docreflect", "cache.db")))
	return b.String()
}

// generateSection returns the sentinel-wrapped .gitignore block.
func generateSection() string {
	return sentinelStart + "\n.docreflect/\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if len(content) > 0 {
		content += "\n"
	}
	return content + section + "\n"
}
