// Package structure provides structural reflection of PHP classes by name,
// locating their source with a finder and parsing it on demand.
package structure

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/phobologic/docreflect/internal/finder"
	"github.com/phobologic/docreflect/internal/lang"
	"github.com/phobologic/docreflect/internal/model"
	"github.com/phobologic/docreflect/internal/parse"
)

// ErrClassNotFound is returned when no source declaring a class is found.
var ErrClassNotFound = errors.New("class not found")

// Reflector resolves class names to their structural reflection. Parsed
// files are cached for the Reflector's lifetime. It is safe for concurrent
// use; each parse uses its own tree-sitter parser.
type Reflector struct {
	finder finder.Finder
	logger *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	files   map[string][]*model.ClassInfo
	classes map[string]*model.ClassInfo // lower-cased name -> class
}

// New returns a Reflector locating sources with f. f may be nil, in which
// case only classes added with Add or ParseFile are known.
func New(f finder.Finder, logger *zap.Logger) *Reflector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reflector{
		finder:  f,
		logger:  logger,
		files:   make(map[string][]*model.ClassInfo),
		classes: make(map[string]*model.ClassInfo),
	}
}

// Add makes classes known without parsing a file.
func (r *Reflector) Add(classes ...*model.ClassInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range classes {
		r.classes[strings.ToLower(c.Name)] = c
	}
}

// Class returns the structural reflection of name. Names are matched
// case-insensitively and a leading backslash is ignored.
func (r *Reflector) Class(name string) (*model.ClassInfo, error) {
	name = model.NormalizeClassName(name)
	key := strings.ToLower(name)

	r.mu.RLock()
	c, ok := r.classes[key]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	if r.finder == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	path, ok := r.finder.Find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	if _, err := r.ParseFile(path); err != nil {
		return nil, err
	}

	r.mu.RLock()
	c, ok = r.classes[key]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("finder returned a file not declaring the class",
			zap.String("class", name), zap.String("file", path))
		return nil, fmt.Errorf("%w: %s (not declared in %s)", ErrClassNotFound, name, path)
	}
	return c, nil
}

// ParseFile parses path (once) and registers every class it declares.
func (r *Reflector) ParseFile(path string) ([]*model.ClassInfo, error) {
	r.mu.RLock()
	classes, ok := r.files[path]
	r.mu.RUnlock()
	if ok {
		return classes, nil
	}

	v, err, _ := r.group.Do(path, func() (any, error) {
		r.mu.RLock()
		classes, ok := r.files[path]
		r.mu.RUnlock()
		if ok {
			return classes, nil
		}

		source, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		l := lang.Languages[lang.PHP]
		classes, err = parse.File(l.NewParser(), source, path)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		r.files[path] = classes
		for _, c := range classes {
			key := strings.ToLower(c.Name)
			if _, dup := r.classes[key]; !dup {
				r.classes[key] = c
			}
		}
		r.logger.Debug("parsed", zap.String("file", path), zap.Int("classes", len(classes)))
		return classes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.ClassInfo), nil
}

// Reflect returns the class as PHP reflection reports it: the declared
// members, then the members of the traits it uses, then the non-private
// members of its parent and the methods of its interfaces, each skipped when
// the class already has a member of that name. Supertypes that cannot be
// reflected contribute nothing. The cached declaration is not modified.
func (r *Reflector) Reflect(name string) (*model.ClassInfo, error) {
	return r.reflect(name, make(map[string]bool))
}

func (r *Reflector) reflect(name string, visiting map[string]bool) (*model.ClassInfo, error) {
	c, err := r.Class(name)
	if err != nil {
		return nil, err
	}
	key := strings.ToLower(c.Name)
	if visiting[key] {
		r.logger.Debug("inheritance cycle", zap.String("class", c.Name))
		return c, nil
	}
	visiting[key] = true
	defer delete(visiting, key)

	view := *c
	view.Properties = slices.Clone(c.Properties)
	view.Methods = slices.Clone(c.Methods)
	view.Sources = nil

	for _, t := range c.Traits {
		r.inherit(&view, t, true, visiting)
	}
	if c.Extends != "" {
		r.inherit(&view, c.Extends, false, visiting)
	}
	for _, iface := range c.Implements {
		r.inherit(&view, iface, false, visiting)
	}
	return &view, nil
}

// inherit appends the members of supertype that view does not declare.
// Private members are copied only from traits.
func (r *Reflector) inherit(view *model.ClassInfo, supertype string, trait bool, visiting map[string]bool) {
	src, err := r.reflect(supertype, visiting)
	if err != nil {
		r.logger.Debug("supertype not reflected",
			zap.String("class", view.Name), zap.String("supertype", supertype), zap.Error(err))
		return
	}
	for _, p := range src.Properties {
		if (!trait && p.Visibility == model.Private) || view.Property(p.Name) != nil {
			continue
		}
		view.Properties = append(view.Properties, p)
	}
	for _, m := range src.Methods {
		if (!trait && m.Visibility == model.Private) || view.Method(m.Name) != nil {
			continue
		}
		view.Methods = append(view.Methods, m)
	}
	for _, f := range append([]string{src.File}, src.Sources...) {
		if f != "" && f != view.File && !slices.Contains(view.Sources, f) {
			view.Sources = append(view.Sources, f)
		}
	}
}

// Parent returns the parent class name of name, if it has one.
func (r *Reflector) Parent(name string) (string, bool) {
	c, err := r.Class(name)
	if err != nil || c.Extends == "" {
		return "", false
	}
	return c.Extends, true
}

// Implements reports whether name, one of its ancestors, or one of the
// interfaces they implement (transitively) is iface. Ancestors that cannot
// be reflected are skipped.
func (r *Reflector) Implements(name, iface string) bool {
	iface = model.NormalizeClassName(iface)
	return r.anySupertype(name, func(c string) bool {
		return strings.EqualFold(c, iface)
	})
}

// Ancestors returns the parent chain of name, nearest first.
func (r *Reflector) Ancestors(name string) []string {
	var out []string
	seen := map[string]bool{strings.ToLower(model.NormalizeClassName(name)): true}
	for {
		parent, ok := r.Parent(name)
		if !ok || seen[strings.ToLower(parent)] {
			return out
		}
		seen[strings.ToLower(parent)] = true
		out = append(out, parent)
		name = parent
	}
}

// anySupertype walks the supertypes of name breadth-first and reports
// whether match holds for one of them.
func (r *Reflector) anySupertype(name string, match func(string) bool) bool {
	name = model.NormalizeClassName(name)
	queue := []string{name}
	seen := map[string]bool{}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		key := strings.ToLower(current)
		if seen[key] {
			continue
		}
		seen[key] = true

		if current != name && match(current) {
			return true
		}

		c, err := r.Class(current)
		if err != nil {
			continue
		}
		if c.Extends != "" {
			queue = append(queue, c.Extends)
		}
		queue = append(queue, c.Implements...)
	}
	return false
}
