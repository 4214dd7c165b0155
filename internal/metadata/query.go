package metadata

import (
	"strings"

	"github.com/phobologic/docreflect/internal/docblock"
	"github.com/phobologic/docreflect/internal/model"
)

// matches reports whether a carries the annotation name. Formal annotations
// match their class name, tags their tag name; case and a leading backslash
// are ignored.
func matches(a model.Annotation, name string) bool {
	return strings.EqualFold(model.NormalizeClassName(a.AnnotationName()), model.NormalizeClassName(name))
}

func filter(list []model.Annotation, name string) []model.Annotation {
	if name == "" {
		return append([]model.Annotation(nil), list...)
	}
	var out []model.Annotation
	for _, a := range list {
		if matches(a, name) {
			out = append(out, a)
		}
	}
	return out
}

func first(list []model.Annotation, name string) (model.Annotation, bool) {
	for _, a := range list {
		if matches(a, name) {
			return a, true
		}
	}
	return nil, false
}

func (s *Store) property(className, propertyName string) *model.PropertyMetadata {
	return s.lookup(className).Property(propertyName)
}

func (s *Store) method(className, methodName string) *model.MethodMetadata {
	meta := s.lookup(className)
	if meta == nil {
		return nil
	}
	return methodFold(meta, methodName)
}

// IsClassReflected reports whether className was found and built.
func (s *Store) IsClassReflected(className string) bool {
	meta := s.lookup(className)
	return meta != nil && meta.Found && meta.Built
}

// IsClassAbstract reports whether className is declared abstract.
func (s *Store) IsClassAbstract(className string) bool {
	meta := s.lookup(className)
	return meta != nil && meta.Abstract
}

// ClassPropertyNames returns the declared and virtual property names of
// className in declaration order.
func (s *Store) ClassPropertyNames(className string) []string {
	meta := s.lookup(className)
	if meta == nil {
		return nil
	}
	return append([]string(nil), meta.PropertyOrder...)
}

// ClassMethodNames returns the declared and virtual method names of
// className in declaration order.
func (s *Store) ClassMethodNames(className string) []string {
	meta := s.lookup(className)
	if meta == nil {
		return nil
	}
	return append([]string(nil), meta.MethodOrder...)
}

// ClassAnnotations returns the class annotations named annotationName, or
// all of them when annotationName is empty.
func (s *Store) ClassAnnotations(className, annotationName string) []model.Annotation {
	meta := s.lookup(className)
	if meta == nil {
		return nil
	}
	return filter(meta.Annotations, annotationName)
}

// ClassAnnotation returns the first class annotation named annotationName.
func (s *Store) ClassAnnotation(className, annotationName string) (model.Annotation, bool) {
	meta := s.lookup(className)
	if meta == nil {
		return nil, false
	}
	return first(meta.Annotations, annotationName)
}

// IsClassAnnotatedWith reports whether className carries annotationName.
func (s *Store) IsClassAnnotatedWith(className, annotationName string) bool {
	_, ok := s.ClassAnnotation(className, annotationName)
	return ok
}

// IsPropertyPublic reports whether the property is public.
func (s *Store) IsPropertyPublic(className, propertyName string) bool {
	p := s.property(className, propertyName)
	return p != nil && p.Visibility == model.Public
}

// IsPropertyPrivate reports whether the property is private.
func (s *Store) IsPropertyPrivate(className, propertyName string) bool {
	p := s.property(className, propertyName)
	return p != nil && p.Visibility == model.Private
}

// IsPropertyStatic reports whether the property is static.
func (s *Store) IsPropertyStatic(className, propertyName string) bool {
	p := s.property(className, propertyName)
	return p != nil && p.Static
}

// IsPropertyReadable reports whether the property is public and readable.
func (s *Store) IsPropertyReadable(className, propertyName string) bool {
	p := s.property(className, propertyName)
	return p != nil && p.Visibility == model.Public && p.Accessibility&model.Read != 0
}

// IsPropertyWritable reports whether the property is public and writable.
func (s *Store) IsPropertyWritable(className, propertyName string) bool {
	p := s.property(className, propertyName)
	return p != nil && p.Visibility == model.Public && p.Accessibility&model.Write != 0
}

// PropertyType returns the resolved type of the property, or "" when it is
// unknown.
func (s *Store) PropertyType(className, propertyName string) string {
	p := s.property(className, propertyName)
	if p == nil {
		return ""
	}
	return p.Type
}

// PropertyAnnotations returns the property annotations named
// annotationName, or all of them when annotationName is empty.
func (s *Store) PropertyAnnotations(className, propertyName, annotationName string) []model.Annotation {
	p := s.property(className, propertyName)
	if p == nil {
		return nil
	}
	return filter(p.Annotations, annotationName)
}

// PropertyAnnotation returns the first property annotation named
// annotationName.
func (s *Store) PropertyAnnotation(className, propertyName, annotationName string) (model.Annotation, bool) {
	p := s.property(className, propertyName)
	if p == nil {
		return nil, false
	}
	return first(p.Annotations, annotationName)
}

// IsPropertyAnnotatedWith reports whether the property carries
// annotationName, as a formal annotation or a tag.
func (s *Store) IsPropertyAnnotatedWith(className, propertyName, annotationName string) bool {
	_, ok := s.PropertyAnnotation(className, propertyName, annotationName)
	return ok
}

// IsPropertyTaggedWith reports whether the property doc comment carries the
// tag. A leading "@" on tag is ignored.
func (s *Store) IsPropertyTaggedWith(className, propertyName, tag string) bool {
	return len(s.PropertyTagValues(className, propertyName, tag)) > 0
}

// PropertyTagValues returns the bodies of the property's tags named tag, in
// order.
func (s *Store) PropertyTagValues(className, propertyName, tag string) []string {
	p := s.property(className, propertyName)
	if p == nil {
		return nil
	}
	tag = strings.TrimPrefix(tag, "@")
	var out []string
	for _, a := range p.Annotations {
		if t, ok := a.(docblock.Tag); ok && t.Name() == tag {
			out = append(out, t.Body())
		}
	}
	return out
}

// PropertyNamesByAnnotation returns, in declaration order, the properties
// of className carrying annotationName.
func (s *Store) PropertyNamesByAnnotation(className, annotationName string) []string {
	meta := s.lookup(className)
	if meta == nil {
		return nil
	}
	var out []string
	for _, name := range meta.PropertyOrder {
		if _, ok := first(meta.Properties[name].Annotations, annotationName); ok {
			out = append(out, name)
		}
	}
	return out
}

// HasMethod reports whether className declares methodName or documents it
// with @method. Method names are matched case-insensitively.
func (s *Store) HasMethod(className, methodName string) bool {
	return s.method(className, methodName) != nil
}

// IsMethodStatic reports whether the method is static.
func (s *Store) IsMethodStatic(className, methodName string) bool {
	m := s.method(className, methodName)
	return m != nil && m.Static
}

// IsMethodPublic reports whether the method is declared public.
func (s *Store) IsMethodPublic(className, methodName string) bool {
	m := s.method(className, methodName)
	return m != nil && m.Visibility == model.Public
}

// IsMethodProtected reports whether the method is declared protected.
func (s *Store) IsMethodProtected(className, methodName string) bool {
	m := s.method(className, methodName)
	return m != nil && m.Visibility == model.Protected
}

// IsMethodPrivate reports whether the method is declared private.
func (s *Store) IsMethodPrivate(className, methodName string) bool {
	m := s.method(className, methodName)
	return m != nil && m.Visibility == model.Private
}

// MethodType returns the resolved return type of the method, or "".
func (s *Store) MethodType(className, methodName string) string {
	m := s.method(className, methodName)
	if m == nil {
		return ""
	}
	return m.Type
}

// MethodAnnotations returns the method annotations named annotationName,
// or all of them when annotationName is empty.
func (s *Store) MethodAnnotations(className, methodName, annotationName string) []model.Annotation {
	m := s.method(className, methodName)
	if m == nil {
		return nil
	}
	return filter(m.Annotations, annotationName)
}
