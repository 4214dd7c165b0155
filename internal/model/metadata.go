package model

import "strings"

// Accessibility is a bitset describing whether a property may be read
// and/or written from outside the class. The zero value means unset.
type Accessibility uint8

const (
	Read Accessibility = 1 << iota
	Write

	ReadWrite = Read | Write
)

// String renders the bitset as "rw", "r", "w" or "-".
func (a Accessibility) String() string {
	var b strings.Builder
	if a&Read != 0 {
		b.WriteByte('r')
	}
	if a&Write != 0 {
		b.WriteByte('w')
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// PropertyMetadata is the merged view of a single property.
type PropertyMetadata struct {
	Visibility    Visibility
	Static        bool
	Accessibility Accessibility
	Type          string // "" when unknown
	Annotations   []Annotation
}

// MethodMetadata is the merged view of a single method.
type MethodMetadata struct {
	Visibility  Visibility
	Static      bool
	Type        string // "" when unknown
	Annotations []Annotation
}

// ClassMetadata is the merged, per-class record combining structural
// reflection with docblock-derived facts.
//
// Properties and Methods are keyed by member name; PropertyOrder and
// MethodOrder keep declaration order, with virtual members appended in
// the order their tags appear.
type ClassMetadata struct {
	Name     string
	Found    bool
	Abstract bool
	Parent   string

	// File, ModTime (unix nanoseconds) and SourceHash (xxh3 of the file
	// content) identify the source the record was built from; a persisted
	// record is stale once the content changes.
	File       string
	ModTime    int64
	SourceHash string

	// Sources are the files of the ancestors and traits the record's
	// members were inherited from. They count toward ModTime and SourceHash.
	Sources []string

	Properties    map[string]*PropertyMetadata
	PropertyOrder []string
	Methods       map[string]*MethodMetadata
	MethodOrder   []string

	Annotations []Annotation
	Built       bool
}

// NewClassMetadata returns an empty record for the named class.
func NewClassMetadata(name string) *ClassMetadata {
	return &ClassMetadata{
		Name:       name,
		Properties: make(map[string]*PropertyMetadata),
		Methods:    make(map[string]*MethodMetadata),
	}
}

// Property returns the property metadata or nil.
func (m *ClassMetadata) Property(name string) *PropertyMetadata {
	if m == nil {
		return nil
	}
	return m.Properties[name]
}

// Method returns the method metadata or nil.
func (m *ClassMetadata) Method(name string) *MethodMetadata {
	if m == nil {
		return nil
	}
	return m.Methods[name]
}

// EnsureProperty returns the named property, creating an empty entry when
// it does not exist yet.
func (m *ClassMetadata) EnsureProperty(name string) *PropertyMetadata {
	if p, ok := m.Properties[name]; ok {
		return p
	}
	p := &PropertyMetadata{}
	m.Properties[name] = p
	m.PropertyOrder = append(m.PropertyOrder, name)
	return p
}

// EnsureMethod returns the named method, creating an empty entry when it
// does not exist yet.
func (m *ClassMetadata) EnsureMethod(name string) *MethodMetadata {
	if mm, ok := m.Methods[name]; ok {
		return mm
	}
	mm := &MethodMetadata{}
	m.Methods[name] = mm
	m.MethodOrder = append(m.MethodOrder, name)
	return mm
}

// Clone returns a deep copy. Annotation values are immutable and shared.
func (m *ClassMetadata) Clone() *ClassMetadata {
	if m == nil {
		return nil
	}
	c := &ClassMetadata{
		Name:          m.Name,
		Found:         m.Found,
		Abstract:      m.Abstract,
		Parent:        m.Parent,
		File:          m.File,
		ModTime:       m.ModTime,
		SourceHash:    m.SourceHash,
		Sources:       append([]string(nil), m.Sources...),
		Properties:    make(map[string]*PropertyMetadata, len(m.Properties)),
		PropertyOrder: append([]string(nil), m.PropertyOrder...),
		Methods:       make(map[string]*MethodMetadata, len(m.Methods)),
		MethodOrder:   append([]string(nil), m.MethodOrder...),
		Annotations:   append([]Annotation(nil), m.Annotations...),
		Built:         m.Built,
	}
	for name, p := range m.Properties {
		cp := *p
		cp.Annotations = append([]Annotation(nil), p.Annotations...)
		c.Properties[name] = &cp
	}
	for name, mm := range m.Methods {
		cm := *mm
		cm.Annotations = append([]Annotation(nil), mm.Annotations...)
		c.Methods[name] = &cm
	}
	return c
}
