// Package hydrator copies values out of and into dynamic objects, limited to
// the properties the metadata store reports as readable or writable.
package hydrator

import (
	"sort"
	"strings"
	"unicode"
)

// Metadata is the part of the metadata store the hydrator consults.
type Metadata interface {
	EliminateProxy(className *string) bool
	ClassPropertyNames(className string) []string
	IsPropertyReadable(className, propertyName string) bool
	IsPropertyWritable(className, propertyName string) bool
}

// Object is an instance of a PHP class held as its property values.
type Object struct {
	Class  string         `json:"class"`
	Fields map[string]any `json:"fields"`
}

// Naming maps property names to and from the keys of extracted data.
type Naming interface {
	Extract(property string) string
	Hydrate(key string) string
}

// Hydrator extracts and hydrates Objects.
type Hydrator struct {
	meta   Metadata
	naming Naming
	filter func(name string) bool
}

// Option configures a Hydrator.
type Option func(*Hydrator)

// WithNaming sets the key naming strategy. The default keeps property
// names unchanged.
func WithNaming(n Naming) Option {
	return func(h *Hydrator) { h.naming = n }
}

// WithFilter skips extracted keys for which keep returns false.
func WithFilter(keep func(name string) bool) Option {
	return func(h *Hydrator) { h.filter = keep }
}

// New returns a Hydrator backed by meta.
func New(meta Metadata, opts ...Option) *Hydrator {
	h := &Hydrator{meta: meta, naming: Identity{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Extract returns the values of obj's readable properties, keyed by the
// naming strategy. A property without a value in obj is extracted as nil.
func (h *Hydrator) Extract(obj *Object) map[string]any {
	out := make(map[string]any)
	if obj == nil {
		return out
	}
	class := obj.Class
	h.meta.EliminateProxy(&class)

	for _, name := range h.meta.ClassPropertyNames(class) {
		if !h.meta.IsPropertyReadable(class, name) {
			continue
		}
		key := h.naming.Extract(name)
		if h.filter != nil && !h.filter(key) {
			continue
		}
		out[key] = obj.Fields[name]
	}
	return out
}

// Hydrate sets every writable property of obj named by a key of input and
// returns the keys it ignored, sorted. A nil obj ignores every key.
func (h *Hydrator) Hydrate(input map[string]any, obj *Object) []string {
	var ignored []string
	if obj == nil {
		for key := range input {
			ignored = append(ignored, key)
		}
		sort.Strings(ignored)
		return ignored
	}
	class := obj.Class
	h.meta.EliminateProxy(&class)
	if obj.Fields == nil {
		obj.Fields = make(map[string]any)
	}

	for key, value := range input {
		name := h.naming.Hydrate(key)
		if !h.meta.IsPropertyWritable(class, name) {
			ignored = append(ignored, key)
			continue
		}
		obj.Fields[name] = value
	}
	sort.Strings(ignored)
	return ignored
}

// Identity keeps names unchanged.
type Identity struct{}

func (Identity) Extract(property string) string { return property }
func (Identity) Hydrate(key string) string      { return key }

// SnakeCase extracts camelCase properties as snake_case keys.
type SnakeCase struct{}

func (SnakeCase) Extract(property string) string {
	var b strings.Builder
	for i, r := range property {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (SnakeCase) Hydrate(key string) string {
	var b strings.Builder
	upper := false
	for _, r := range key {
		if r == '_' {
			upper = b.Len() > 0
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
