package docblock

import (
	"strings"
)

// Context is the scope type references in a doc comment are resolved in:
// the declaring class's namespace and its import aliases. Alias lookups are
// case-sensitive, matching how doc comment tooling treats them.
type Context struct {
	Namespace string
	Aliases   map[string]string
}

// NewContext returns a Context owning a copy of aliases.
func NewContext(namespace string, aliases map[string]string) Context {
	own := make(map[string]string, len(aliases))
	for k, v := range aliases {
		own[k] = v
	}
	return Context{Namespace: strings.Trim(namespace, `\`), Aliases: own}
}

var keywords = map[string]struct{}{
	"string": {}, "int": {}, "integer": {}, "bool": {}, "boolean": {},
	"float": {}, "double": {}, "object": {}, "mixed": {}, "array": {},
	"resource": {}, "void": {}, "null": {}, "scalar": {}, "callback": {},
	"callable": {}, "false": {}, "true": {}, "self": {}, "$this": {},
	"static": {}, "iterable": {}, "never": {},
}

// IsKeyword reports whether name is a built-in type keyword that is never
// namespace-qualified.
func IsKeyword(name string) bool {
	_, ok := keywords[strings.ToLower(name)]
	return ok
}

// ResolveType qualifies every class reference in a type expression. Class
// names come back fully qualified with a leading backslash; keywords are left
// as written. Unions, intersections, nullable "?", array "[]" suffixes and
// generic "<...>" arguments are handled.
func (c Context) ResolveType(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}
	var b strings.Builder
	c.resolveList(&b, expr)
	return b.String()
}

// resolveList resolves a run of types separated by '|', '&' or ',' at the
// top nesting level.
func (c Context) resolveList(b *strings.Builder, expr string) {
	depth, start := 0, 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case '|', '&', ',':
			if depth == 0 {
				c.resolveOne(b, expr[start:i])
				b.WriteByte(expr[i])
				if expr[i] == ',' {
					b.WriteByte(' ')
				}
				start = i + 1
			}
		}
	}
	c.resolveOne(b, expr[start:])
}

func (c Context) resolveOne(b *strings.Builder, t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if strings.HasPrefix(t, "?") {
		b.WriteByte('?')
		t = t[1:]
	}

	var suffix string
	for strings.HasSuffix(t, "[]") {
		suffix += "[]"
		t = t[:len(t)-2]
	}
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		b.WriteByte('(')
		c.resolveList(b, t[1:len(t)-1])
		b.WriteByte(')')
		b.WriteString(suffix)
		return
	}

	name, args := t, ""
	if i := strings.IndexByte(t, '<'); i >= 0 && strings.HasSuffix(t, ">") {
		name, args = t[:i], t[i+1:len(t)-1]
	}

	b.WriteString(c.resolveName(name))
	if args != "" {
		b.WriteByte('<')
		c.resolveList(b, args)
		b.WriteByte('>')
	}
	b.WriteString(suffix)
}

func (c Context) resolveName(name string) string {
	switch {
	case name == "":
		return ""
	case IsKeyword(name):
		return name
	case strings.HasPrefix(name, `\`):
		return name
	}

	first, rest := name, ""
	if i := strings.IndexByte(name, '\\'); i >= 0 {
		first, rest = name[:i], name[i:]
	}
	if full, ok := c.Aliases[first]; ok {
		return `\` + strings.TrimPrefix(full, `\`) + rest
	}
	if c.Namespace == "" {
		return `\` + name
	}
	return `\` + c.Namespace + `\` + name
}
