package docblock

import (
	"strings"
)

// Kind identifies the variant of a Tag. The set is closed.
type Kind int

const (
	KindGeneric Kind = iota
	KindVar
	KindProperty
	KindPropertyRead
	KindPropertyWrite
	KindMethod
	KindReturn
)

var kindNames = [...]string{
	KindGeneric:       "generic",
	KindVar:           "var",
	KindProperty:      "property",
	KindPropertyRead:  "property-read",
	KindPropertyWrite: "property-write",
	KindMethod:        "method",
	KindReturn:        "return",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind maps a record type name ("var", "property-read", ...) to its Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return KindGeneric, false
}

// Tag is a doc comment tag. Implementations are the concrete types in this
// package; switch on Kind or on the type to reach variant fields.
type Tag interface {
	Name() string
	Body() string
	Location() Location
	Kind() Kind
	// AnnotationName is Name; it lets tags share an ordered annotation list
	// with formal attributes.
	AnnotationName() string
}

type base struct {
	name string
	body string
	loc  Location
}

func (b base) Name() string           { return b.name }
func (b base) Body() string           { return b.body }
func (b base) Location() Location     { return b.loc }
func (b base) AnnotationName() string { return b.name }

// GenericTag is any tag without a dedicated record type.
type GenericTag struct{ base }

func (*GenericTag) Kind() Kind { return KindGeneric }

// VarTag is "@var Type [$name] [description]".
type VarTag struct {
	base
	Type        string
	Variable    string
	Description string
}

func (*VarTag) Kind() Kind { return KindVar }

// PropertyTag is "@property Type $name [description]", declaring a magic
// property that is readable and writable.
type PropertyTag struct {
	base
	Type        string
	Variable    string
	Description string
}

func (*PropertyTag) Kind() Kind { return KindProperty }

// PropertyReadTag is "@property-read"; same shape as PropertyTag.
type PropertyReadTag struct{ PropertyTag }

func (*PropertyReadTag) Kind() Kind { return KindPropertyRead }

// PropertyWriteTag is "@property-write"; same shape as PropertyTag.
type PropertyWriteTag struct{ PropertyTag }

func (*PropertyWriteTag) Kind() Kind { return KindPropertyWrite }

// MethodTag is "@method [static] [Type] name([args]) [description]".
type MethodTag struct {
	base
	MethodName  string
	Type        string
	Static      bool
	Arguments   string
	Description string
}

func (*MethodTag) Kind() Kind { return KindMethod }

// ReturnTag is "@return Type [description]".
type ReturnTag struct {
	base
	Type        string
	Description string
}

func (*ReturnTag) Kind() Kind { return KindReturn }

// Factory builds a tag record from a raw tag. ctx is the scope of the
// comment owner; type references must be resolved against it.
type Factory func(raw RawTag, ctx Context) Tag

var builtins = map[Kind]Factory{
	KindGeneric:       NewGeneric,
	KindVar:           NewVar,
	KindProperty:      NewProperty,
	KindPropertyRead:  NewPropertyRead,
	KindPropertyWrite: NewPropertyWrite,
	KindMethod:        NewMethod,
	KindReturn:        NewReturn,
}

// FactoryFor returns the builtin constructor for k.
func FactoryFor(k Kind) Factory {
	if f, ok := builtins[k]; ok {
		return f
	}
	return NewGeneric
}

// New builds the builtin record for a raw tag: tags named like a Kind get
// that variant, everything else a GenericTag.
func New(raw RawTag, ctx Context) Tag {
	k, ok := ParseKind(raw.Name)
	if !ok {
		return NewGeneric(raw, ctx)
	}
	return FactoryFor(k)(raw, ctx)
}

func newBase(raw RawTag) base {
	return base{name: raw.Name, body: raw.Body, loc: raw.Location}
}

func NewGeneric(raw RawTag, _ Context) Tag {
	return &GenericTag{newBase(raw)}
}

func NewVar(raw RawTag, ctx Context) Tag {
	t := &VarTag{base: newBase(raw)}
	typ, rest := splitType(raw.Body)
	if strings.HasPrefix(typ, "$") {
		// "@var $name Type" ordering is tolerated.
		t.Variable = typ
		typ, rest = splitType(rest)
	} else if strings.HasPrefix(rest, "$") {
		t.Variable, rest = splitFirst(rest)
	}
	t.Type = ctx.ResolveType(typ)
	t.Description = rest
	return t
}

func parseProperty(raw RawTag, ctx Context) PropertyTag {
	t := PropertyTag{base: newBase(raw)}
	first, rest := splitType(raw.Body)
	if !strings.HasPrefix(first, "$") {
		t.Type = ctx.ResolveType(first)
		first, rest = splitFirst(rest)
	}
	if strings.HasPrefix(first, "$") {
		t.Variable = first
	} else if first != "" {
		rest = strings.TrimSpace(first + " " + rest)
	}
	t.Description = rest
	return t
}

func NewProperty(raw RawTag, ctx Context) Tag {
	t := parseProperty(raw, ctx)
	return &t
}

func NewPropertyRead(raw RawTag, ctx Context) Tag {
	return &PropertyReadTag{parseProperty(raw, ctx)}
}

func NewPropertyWrite(raw RawTag, ctx Context) Tag {
	return &PropertyWriteTag{parseProperty(raw, ctx)}
}

func NewMethod(raw RawTag, ctx Context) Tag {
	t := &MethodTag{base: newBase(raw)}

	open := strings.IndexByte(raw.Body, '(')
	if open < 0 {
		t.Description = raw.Body
		return t
	}
	closing := strings.IndexByte(raw.Body[open:], ')')
	if closing < 0 {
		t.Description = raw.Body
		return t
	}
	closing += open
	t.Arguments = strings.TrimSpace(raw.Body[open+1 : closing])
	t.Description = strings.TrimSpace(raw.Body[closing+1:])

	words := strings.Fields(raw.Body[:open])
	if len(words) == 0 {
		return t
	}
	t.MethodName = words[len(words)-1]
	words = words[:len(words)-1]

	if len(words) > 1 && strings.EqualFold(words[0], "static") {
		t.Static = true
		words = words[1:]
	}
	typ := strings.Join(words, " ")
	if typ == "" {
		typ = "void"
	}
	t.Type = ctx.ResolveType(typ)
	return t
}

func NewReturn(raw RawTag, ctx Context) Tag {
	t := &ReturnTag{base: newBase(raw)}
	typ, rest := splitType(raw.Body)
	t.Type = ctx.ResolveType(typ)
	t.Description = rest
	return t
}
