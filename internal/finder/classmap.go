package finder

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/docreflect/internal/discover"
	"github.com/phobologic/docreflect/internal/lang"
	"github.com/phobologic/docreflect/internal/model"
	"github.com/phobologic/docreflect/internal/parse"
)

// Classmap finds classes by scanning directories for class declarations.
// The index is built on first use and kept for the finder's lifetime.
type Classmap struct {
	paths   []string
	exclude []string

	once  sync.Once
	index map[string]string // lower-cased class name -> file
	err   error
}

// NewClassmap returns a finder indexing every PHP file under paths. A path
// may also name a single file. exclude holds doublestar patterns relative
// to each scanned directory.
func NewClassmap(paths, exclude []string) *Classmap {
	return &Classmap{paths: paths, exclude: exclude}
}

// Find implements Finder. PHP class names are case-insensitive.
func (c *Classmap) Find(className string) (string, bool) {
	index, err := c.Index()
	if err != nil {
		return "", false
	}
	path, ok := index[strings.ToLower(model.NormalizeClassName(className))]
	return path, ok
}

// Index returns the class name -> file index, building it if necessary.
func (c *Classmap) Index() (map[string]string, error) {
	c.once.Do(func() {
		c.index, c.err = c.build()
	})
	return c.index, c.err
}

func (c *Classmap) build() (map[string]string, error) {
	var files []string
	for _, root := range c.paths {
		info, err := os.Stat(root)
		if err != nil {
			// A configured path that does not exist simply declares nothing.
			continue
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		entries, err := discover.Files(root, discover.Options{
			Languages:     []string{lang.PHP},
			Exclude:       c.exclude,
			IncludeVendor: true,
		})
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			files = append(files, filepath.Join(root, e.Path))
		}
	}
	return indexFiles(files)
}

// indexFiles reads the declarations of files concurrently. When a class is
// declared more than once the first file in input order wins.
func indexFiles(files []string) (map[string]string, error) {
	l := lang.Languages[lang.PHP]
	query, err := l.GetDeclarationQuery()
	if err != nil {
		return nil, err
	}

	found := make([][]parse.Declaration, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			source, err := os.ReadFile(file)
			if err != nil {
				return nil // unreadable files declare nothing
			}
			found[i] = parse.Declarations(l.NewParser(), query, source)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	index := make(map[string]string)
	for i, decls := range found {
		for _, d := range decls {
			key := strings.ToLower(d.Name)
			if _, dup := index[key]; !dup {
				index[key] = files[i]
			}
		}
	}
	return index, nil
}
