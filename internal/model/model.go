// Package model defines core data structures for docreflect.
package model

import "strings"

// Visibility is the declared visibility of a class member.
type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
	Private   Visibility = "private"
)

// ClassKind indicates the syntactic kind of a class-like declaration.
type ClassKind string

const (
	Class     ClassKind = "class"
	Interface ClassKind = "interface"
	Trait     ClassKind = "trait"
)

// Annotation is an entry in a metadata annotation sequence: either a
// docblock tag or a formal Attribute.
type Annotation interface {
	AnnotationName() string
}

// Attribute is a formal annotation (a PHP 8 attribute) whose class name has
// been resolved against the declaring file's namespace and imports.
type Attribute struct {
	Class     string   `json:"class"`
	Arguments []string `json:"arguments,omitempty"`
	Line      int      `json:"line,omitempty"`
}

// AnnotationName returns the fully-qualified attribute class name.
func (a Attribute) AnnotationName() string {
	return a.Class
}

// ClassInfo is the structural reflection of a single class, interface or
// trait as declared in source.
type ClassInfo struct {
	Name      string // fully-qualified, without leading backslash
	Namespace string
	Kind      ClassKind
	File      string
	Line      int

	// Uses maps lower-cased import aliases to fully-qualified names.
	// A nil map means the import table is unknown for this class.
	Uses map[string]string

	Extends    string
	Implements []string
	Traits     []string
	Abstract   bool
	Final      bool

	DocComment string
	DocLine    int
	Attributes []Attribute

	Properties []*PropertyInfo
	Methods    []*MethodInfo

	// Sources lists the other files that contributed inherited or trait
	// members. It is set only on the views returned by Reflector.Reflect.
	Sources []string
}

// ShortName returns the class name without its namespace.
func (c *ClassInfo) ShortName() string {
	return LastSegment(c.Name)
}

// Property returns the declared property with the given name, or nil.
func (c *ClassInfo) Property(name string) *PropertyInfo {
	for _, p := range c.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Method returns the declared method with the given name, or nil.
// Method names are matched case-insensitively, as PHP does.
func (c *ClassInfo) Method(name string) *MethodInfo {
	for _, m := range c.Methods {
		if strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}

// PropertyInfo is the structural reflection of a declared property.
type PropertyInfo struct {
	Class *ClassInfo

	Name         string // without the leading $
	Visibility   Visibility
	Static       bool
	Readonly     bool
	Promoted     bool // declared as a constructor parameter
	DeclaredType string
	Line         int

	DocComment string
	DocLine    int
	Attributes []Attribute
}

// MethodInfo is the structural reflection of a declared method.
type MethodInfo struct {
	Class *ClassInfo

	Name       string
	Visibility Visibility
	Static     bool
	Abstract   bool
	Final      bool
	ReturnType string
	Line       int

	DocComment string
	DocLine    int
	Attributes []Attribute
}

// NormalizeClassName strips a leading namespace separator.
func NormalizeClassName(name string) string {
	return strings.TrimPrefix(name, `\`)
}

// LastSegment returns the part of a namespaced name after the last backslash.
func LastSegment(name string) string {
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		return name[i+1:]
	}
	return name
}
