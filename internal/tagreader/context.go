// Package tagreader reads doc comment tags from reflected classes, properties
// and methods, resolving type references in the declaring class's scope.
package tagreader

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/phobologic/docreflect/internal/docblock"
	"github.com/phobologic/docreflect/internal/model"
)

// ErrInvalidTarget is returned for a handle that is not a class, property or
// method.
var ErrInvalidTarget = errors.New("target is neither a class, property nor method")

// TargetKind is the category of a reflected handle.
type TargetKind int

const (
	TargetClass TargetKind = iota + 1
	TargetProperty
	TargetMethod
)

func (k TargetKind) String() string {
	switch k {
	case TargetClass:
		return "class"
	case TargetProperty:
		return "property"
	case TargetMethod:
		return "method"
	}
	return "invalid"
}

// Classify reports the category of target. It is determined from the kind
// of handle alone, never from comment content.
func Classify(target any) (TargetKind, error) {
	switch t := target.(type) {
	case *model.ClassInfo:
		if t != nil {
			return TargetClass, nil
		}
	case *model.PropertyInfo:
		if t != nil {
			return TargetProperty, nil
		}
	case *model.MethodInfo:
		if t != nil {
			return TargetMethod, nil
		}
	}
	return 0, fmt.Errorf("%w: %T", ErrInvalidTarget, target)
}

// declaringClass returns the class a handle belongs to.
func declaringClass(target any) (*model.ClassInfo, error) {
	kind, err := Classify(target)
	if err != nil {
		return nil, err
	}
	var class *model.ClassInfo
	switch kind {
	case TargetClass:
		class = target.(*model.ClassInfo)
	case TargetProperty:
		class = target.(*model.PropertyInfo).Class
	case TargetMethod:
		class = target.(*model.MethodInfo).Class
	}
	if class == nil {
		return nil, fmt.Errorf("%w: %s without declaring class", ErrInvalidTarget, kind)
	}
	return class, nil
}

// ContextResolver builds the docblock.Context of a reflected handle.
type ContextResolver struct {
	logger *zap.Logger
}

// NewContextResolver returns a resolver logging through logger. A nil logger
// discards diagnostics.
func NewContextResolver(logger *zap.Logger) *ContextResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextResolver{logger: logger}
}

// Resolve returns the namespace and import aliases of target's declaring
// class. A class without import information degrades to a namespace-only
// Context and a logged warning.
func (r *ContextResolver) Resolve(target any) (docblock.Context, error) {
	class, err := declaringClass(target)
	if err != nil {
		return docblock.Context{}, err
	}

	if class.Uses == nil {
		r.logger.Warn("could not reliably determine the context of the tag; class has no use statements",
			zap.String("class", class.Name))
		return docblock.NewContext(class.Namespace, nil), nil
	}
	return docblock.NewContext(class.Namespace, RepairCase(class.Uses)), nil
}

// RepairCase restores alias casing lost by a case-insensitive import table.
// For each alias whose fully-qualified name ends with it case-insensitively
// but not case-sensitively, the correctly cased alias is added. Corrected
// entries take precedence over originals with the same key. Renamed imports
// ("use X\Y as Z") are not repaired since the original casing of Z is not
// recoverable from the name.
func RepairCase(uses map[string]string) map[string]string {
	out := make(map[string]string, len(uses)*2)
	for alias, full := range uses {
		out[alias] = full
	}
	for alias, full := range uses {
		if len(alias) > len(full) {
			continue
		}
		tail := full[len(full)-len(alias):]
		if tail != alias && strings.EqualFold(tail, alias) {
			out[tail] = full
		}
	}
	return out
}
