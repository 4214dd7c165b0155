package tagreader

import (
	"errors"
	"fmt"
	"sync"

	"github.com/phobologic/docreflect/internal/docblock"
	"github.com/phobologic/docreflect/internal/model"
)

// ErrInvalidRegistration is returned when a tag record type cannot be
// registered.
var ErrInvalidRegistration = errors.New("invalid tag registration")

// Reader extracts tags from doc comments. Tags whose name has a registered
// factory are built by it; all others get the builtin record for their name.
type Reader struct {
	resolver *ContextResolver

	mu        sync.RWMutex
	factories map[string]docblock.Factory
}

// NewReader returns a Reader using resolver for type resolution.
func NewReader(resolver *ContextResolver) *Reader {
	if resolver == nil {
		resolver = NewContextResolver(nil)
	}
	return &Reader{
		resolver:  resolver,
		factories: make(map[string]docblock.Factory),
	}
}

// Register makes tags named name be built by f. A later registration for the
// same name replaces the earlier one.
func (r *Reader) Register(name string, f docblock.Factory) error {
	if name == "" {
		return fmt.Errorf("%w: empty tag name", ErrInvalidRegistration)
	}
	if f == nil {
		return fmt.Errorf("%w: nil factory for tag %q", ErrInvalidRegistration, name)
	}
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
	return nil
}

// RegisterKind registers one of the builtin record types by name ("var",
// "property", "property-read", "property-write", "method", "return",
// "generic") for tags named name.
func (r *Reader) RegisterKind(name, recordType string) error {
	kind, ok := docblock.ParseKind(recordType)
	if !ok {
		return fmt.Errorf("%w: tag record type %q does not exist", ErrInvalidRegistration, recordType)
	}
	return r.Register(name, docblock.FactoryFor(kind))
}

// RegisterMap registers every name -> record type pair of m.
func (r *Reader) RegisterMap(m map[string]string) error {
	for name, recordType := range m {
		if err := r.RegisterKind(name, recordType); err != nil {
			return err
		}
	}
	return nil
}

// Annotations returns the tags of target's doc comment in source order.
// A handle without a doc comment yields no tags and no error.
func (r *Reader) Annotations(target any) ([]docblock.Tag, error) {
	ctx, err := r.resolver.Resolve(target)
	if err != nil {
		return nil, err
	}

	comment, line, file := docOf(target)
	raws := docblock.Tokenize(comment, line, file)
	if len(raws) == 0 {
		return []docblock.Tag{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]docblock.Tag, 0, len(raws))
	for _, raw := range raws {
		var tag docblock.Tag
		if f, ok := r.factories[raw.Name]; ok {
			tag = f(raw, ctx)
		} else {
			tag = docblock.New(raw, ctx)
		}
		if tag != nil {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

// Annotation returns the first tag of target named exactly name.
func (r *Reader) Annotation(target any, name string) (docblock.Tag, bool, error) {
	tags, err := r.Annotations(target)
	if err != nil {
		return nil, false, err
	}
	for _, tag := range tags {
		if tag.Name() == name {
			return tag, true, nil
		}
	}
	return nil, false, nil
}

// docOf returns the doc comment of an already classified handle with the
// line it starts on and the file it came from.
func docOf(target any) (comment string, line int, file string) {
	switch t := target.(type) {
	case *model.ClassInfo:
		return t.DocComment, t.DocLine, t.File
	case *model.PropertyInfo:
		return t.DocComment, t.DocLine, t.Class.File
	case *model.MethodInfo:
		return t.DocComment, t.DocLine, t.Class.File
	}
	return "", 0, ""
}
