// Package lang registers the tree-sitter grammars docreflect parses with,
// their embedded declaration queries, and helpers for reading syntax nodes.
package lang

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFS embed.FS

var whitespaceRe = regexp.MustCompile(`\s+`)

// Language is a registered grammar. Parsers are created per use; the
// declaration query is compiled once and shared.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	queryOnce sync.Once
	query     *sitter.Query
	queryErr  error
}

// GetLanguage returns the tree-sitter grammar.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a parser for this grammar. Parsers are not safe for
// concurrent use.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// GetDeclarationQuery returns the compiled query capturing namespace and
// class-like declarations, loaded from queries/<name>.scm.
func (l *Language) GetDeclarationQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		src, err := queryFS.ReadFile(fmt.Sprintf("queries/%s.scm", l.Name))
		if err != nil {
			l.queryErr = fmt.Errorf("reading %s declaration query: %w", l.Name, err)
			return
		}
		if l.query, err = sitter.NewQuery(src, l.lang); err != nil {
			l.queryErr = fmt.Errorf("compiling %s declaration query: %w", l.Name, err)
		}
	})
	return l.query, l.queryErr
}

// Languages holds every registered grammar by name.
var Languages = map[string]*Language{}

// ForExtension returns the name of the grammar handling files with the given
// extension (".php"), or "" when none does. Extensions match case-insensitively.
func ForExtension(ext string) string {
	for name, l := range Languages {
		for _, e := range l.Extensions {
			if strings.EqualFold(e, ext) {
				return name
			}
		}
	}
	return ""
}

// NodeText returns the source text spanned by node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// FieldOrType returns the child of n under field, falling back to the first
// named child of type typ for grammar versions that do not name the field.
func FieldOrType(n *sitter.Node, field, typ string) *sitter.Node {
	if c := n.ChildByFieldName(field); c != nil {
		return c
	}
	return FirstOfType(n, typ)
}

// FirstOfType returns the first named child of n with the given type.
func FirstOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

// Walk visits n and its named descendants depth-first; returning false from
// visit skips the node's children.
func Walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		Walk(n.NamedChild(i), visit)
	}
}
