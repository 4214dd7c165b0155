// Package finder locates the source file declaring a PHP class.
package finder

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/phobologic/docreflect/internal/config"
)

// Finder maps a fully-qualified class name to the file declaring it.
// A missing class is reported as ("", false), never as an error.
type Finder interface {
	Find(className string) (string, bool)
}

// ErrNestedAggregate is returned when an Aggregate is registered into
// another Aggregate.
var ErrNestedAggregate = errors.New("an aggregate finder cannot contain another aggregate")

// Aggregate tries its finders in registration order; the first hit wins.
type Aggregate struct {
	mu      sync.RWMutex
	finders []Finder
}

// NewAggregate returns an Aggregate over finders.
func NewAggregate(finders ...Finder) (*Aggregate, error) {
	a := &Aggregate{}
	for _, f := range finders {
		if err := a.Register(f); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register appends f to the search order.
func (a *Aggregate) Register(f Finder) error {
	if _, ok := f.(*Aggregate); ok {
		return ErrNestedAggregate
	}
	a.mu.Lock()
	a.finders = append(a.finders, f)
	a.mu.Unlock()
	return nil
}

// Find implements Finder.
func (a *Aggregate) Find(className string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, f := range a.finders {
		if path, ok := f.Find(className); ok {
			return path, true
		}
	}
	return "", false
}

// Len returns the number of registered finders.
func (a *Aggregate) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.finders)
}

// Constructor builds a finder from configuration.
type Constructor func(cfg *config.Config) (Finder, error)

// Registry maps finder identifiers to constructors.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry returns a registry knowing the composer, psr4 and classmap
// finders.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]Constructor)}
	r.Add(config.FinderComposer, func(cfg *config.Config) (Finder, error) {
		return NewComposer(cfg.Root)
	})
	r.Add(config.FinderPSR4, func(cfg *config.Config) (Finder, error) {
		return NewPSR4(cfg.PSR4Prefixes()), nil
	})
	r.Add(config.FinderClassmap, func(cfg *config.Config) (Finder, error) {
		paths := make([]string, 0, len(cfg.Classmap.Paths))
		for _, p := range cfg.Classmap.Paths {
			paths = append(paths, cfg.Abs(p))
		}
		return NewClassmap(paths, cfg.Classmap.Exclude), nil
	})
	return r
}

// Add registers or replaces the constructor for id.
func (r *Registry) Add(id string, c Constructor) {
	r.ctors[id] = c
}

// Build constructs the finders named by ids, in order, and aggregates them.
// Unknown identifiers and constructor failures are configuration errors.
func (r *Registry) Build(ids []string, cfg *config.Config) (*Aggregate, error) {
	agg := &Aggregate{}
	for i, id := range ids {
		ctor, ok := r.ctors[id]
		if !ok {
			return nil, config.Errorf(fmt.Sprintf("class_finders[%d]", i), "unknown class finder %q", id)
		}
		f, err := ctor(cfg)
		if err != nil {
			if config.IsConfigError(err) {
				return nil, err
			}
			return nil, &config.ConfigError{Field: fmt.Sprintf("class_finders[%d]", i), Err: err}
		}
		if err := agg.Register(f); err != nil {
			return nil, &config.ConfigError{Field: fmt.Sprintf("class_finders[%d]", i), Err: err}
		}
	}
	return agg, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
