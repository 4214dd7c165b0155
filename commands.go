package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/phobologic/docreflect/internal/hydrator"
	"github.com/phobologic/docreflect/internal/metadata"
	"github.com/phobologic/docreflect/internal/toon"
)

func newInspectCmd(g *globals) *cobra.Command {
	var proxy bool

	cmd := &cobra.Command{
		Use:   "inspect <class>",
		Short: "Print the merged metadata of a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			name := args[0]
			if proxy && a.store.EliminateProxy(&name) {
				a.logger.Debug("resolved proxy")
			}
			meta, err := a.store.ClassMetadata(name)
			if err != nil {
				return err
			}
			if !meta.Found {
				g.warnf("class %s not found", name)
			}
			v := viewClass(meta)
			if meta.Found {
				v.Ancestors = a.reflector.Ancestors(meta.Name)
			}
			return g.render(func() string { return toon.EncodeClass(meta) }, v)
		},
	}
	cmd.Flags().BoolVar(&proxy, "proxy", false, "inspect the parent class when <class> is a proxy")
	return cmd
}

type propertyReport struct {
	propertyView `yaml:",inline"`
	Class        string   `json:"class" yaml:"class"`
	Tagged       []string `json:"tagged,omitempty" yaml:"tagged,omitempty"`
}

func newPropertyCmd(g *globals) *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "property <class> <property>",
		Short: "Print the merged metadata of one property",
		Long: `property prints the visibility, accessibility, type and annotations of one
property. With --tag it also prints the bodies of the property's tags with
that name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			class, prop := args[0], strings.TrimPrefix(args[1], "$")
			meta, err := a.store.ClassMetadata(class)
			if err != nil {
				return err
			}
			p, ok := meta.Properties[prop]
			if !ok {
				if matches := fuzzy.Find(prop, a.store.ClassPropertyNames(class)); len(matches) > 0 {
					return fmt.Errorf("%s has no property $%s (did you mean $%s?)", class, prop, matches[0].Str)
				}
				return fmt.Errorf("%s has no property $%s", class, prop)
			}

			r := propertyReport{propertyView: viewProperty(prop, p), Class: meta.Name}
			if tag != "" {
				r.Tagged = a.store.PropertyTagValues(class, prop, tag)
			}
			return g.render(func() string { return encodePropertyReport(r) }, r)
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "also print the bodies of this tag")
	return cmd
}

func encodePropertyReport(r propertyReport) string {
	lines := []string{
		"class: " + r.Class,
		"property: " + r.Name,
		"visibility: " + r.Visibility,
		"static: " + strconv.FormatBool(r.Static),
		"readable: " + strconv.FormatBool(r.Readable),
		"writable: " + strconv.FormatBool(r.Writable),
	}
	if r.Type != "" {
		lines = append(lines, "type: "+r.Type)
	}
	for _, a := range r.Annotations {
		lines = append(lines, fmt.Sprintf("annotation: %s %s", a.Name, a.Value))
	}
	for _, v := range r.Tagged {
		lines = append(lines, "tagged: "+v)
	}
	return strings.Join(lines, "\n")
}

type hydrateOptions struct {
	snake   bool
	exclude []string
}

func (o hydrateOptions) newHydrator(meta hydrator.Metadata) *hydrator.Hydrator {
	var opts []hydrator.Option
	if o.snake {
		opts = append(opts, hydrator.WithNaming(hydrator.SnakeCase{}))
	}
	if len(o.exclude) > 0 {
		skip := make(map[string]struct{}, len(o.exclude))
		for _, name := range o.exclude {
			skip[name] = struct{}{}
		}
		opts = append(opts, hydrator.WithFilter(func(name string) bool {
			_, drop := skip[name]
			return !drop
		}))
	}
	return hydrator.New(meta, opts...)
}

func newExtractCmd(g *globals) *cobra.Command {
	var opts hydrateOptions

	cmd := &cobra.Command{
		Use:   "extract <class> [file|-]",
		Short: "Extract the readable properties of an object",
		Long: `extract reads a JSON object of property values (from file, or stdin when
file is "-" or omitted) and prints the values of the properties of <class>
that are readable: public, and not declared write-only.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := readObject(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}
			a, err := g.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.store.IsClassReflected(args[0]) {
				g.warnf("class %s not found", args[0])
			}
			out := opts.newHydrator(a.store).Extract(&hydrator.Object{Class: args[0], Fields: fields})
			return g.render(func() string { return encodeFields(out) }, out)
		},
	}
	cmd.Flags().BoolVar(&opts.snake, "snake", false, "emit snake_case keys")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "output keys to leave out")
	return cmd
}

func newHydrateCmd(g *globals) *cobra.Command {
	var opts hydrateOptions

	cmd := &cobra.Command{
		Use:   "hydrate <class> [file|-]",
		Short: "Hydrate an object from data",
		Long: `hydrate reads a JSON object of data (from file, or stdin when file is "-"
or omitted) and prints the property values of a new <class> object after
setting every writable property named by a key. Keys naming no writable
property are reported and ignored.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readObject(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}
			a, err := g.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.store.IsClassReflected(args[0]) {
				g.warnf("class %s not found", args[0])
			}
			obj := &hydrator.Object{Class: args[0], Fields: map[string]any{}}
			ignored := opts.newHydrator(a.store).Hydrate(data, obj)
			if len(ignored) > 0 {
				g.warnf("ignored keys: %s", strings.Join(ignored, ", "))
			}
			return g.render(func() string { return encodeFields(obj.Fields) }, obj)
		},
	}
	cmd.Flags().BoolVar(&opts.snake, "snake", false, "read snake_case keys")
	return cmd
}

// readObject decodes a JSON object from the file named in args, or from
// stdin when args is empty or "-".
func readObject(stdin io.Reader, args []string) (map[string]any, error) {
	r := stdin
	name := "stdin"
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r, name = f, args[0]
	}
	var fields map[string]any
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// encodeFields renders values as sorted "key: json" lines.
func encodeFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(fields[k])
		if err != nil {
			v = []byte(fmt.Sprint(fields[k]))
		}
		lines = append(lines, k+": "+string(v))
	}
	return strings.Join(lines, "\n")
}

func newCacheCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persisted metadata cache",
	}
	cmd.AddCommand(newCacheClearCmd(g), newCacheWarmCmd(g))
	return cmd
}

func newCacheClearCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached class record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.backend == nil {
				g.warnf("no cache backend configured")
				return nil
			}
			if err := a.backend.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clearing %s cache: %w", a.cfg.Cache.Backend, err)
			}
			_, err = fmt.Fprintf(g.stderr, "cleared %s cache\n", a.cfg.Cache.Backend)
			return err
		},
	}
}

func newCacheWarmCmd(g *globals) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "warm [path...]",
		Short: "Build and persist the metadata of every class under the given paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.backend == nil {
				g.warnf("no cache backend configured; records are built but not kept")
			}
			opts.exclude = append(opts.exclude, a.cfg.Scan.Exclude...)
			paths := args
			if len(paths) == 0 {
				paths = a.cfg.Scan.Paths
			}
			files, err := discoverAll(a.cfg.Root, paths, opts)
			if err != nil {
				return err
			}

			var names []string
			for _, rel := range files {
				infos, err := a.reflector.ParseFile(filepath.Join(a.cfg.Root, rel))
				if err != nil {
					g.warnf("failed to parse %s: %v", rel, err)
					continue
				}
				for _, info := range infos {
					names = append(names, info.Name)
				}
			}
			if err := a.store.Warm(names...); err != nil {
				return err
			}
			_, err = fmt.Fprintf(g.stderr, "warmed %d classes from %d files\n", a.store.Len(), len(files))
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&opts.exclude, "exclude", "x", nil, "doublestar patterns to skip, relative to each path")
	cmd.Flags().BoolVar(&opts.vendor, "vendor", false, "walk vendor/ directories")
	return cmd
}

var _ hydrator.Metadata = (*metadata.Store)(nil)
