// Package parse extracts the structural reflection of PHP classes from
// source files using tree-sitter.
package parse

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/docreflect/internal/lang"
	"github.com/phobologic/docreflect/internal/model"
)

var classKinds = map[string]model.ClassKind{
	"class_declaration":     model.Class,
	"interface_declaration": model.Interface,
	"trait_declaration":     model.Trait,
}

var typeNodes = map[string]struct{}{
	"named_type":                   {},
	"primitive_type":               {},
	"optional_type":                {},
	"union_type":                   {},
	"intersection_type":            {},
	"disjunctive_normal_form_type": {},
	"bottom_type":                  {},
	"type_list":                    {},
}

// scope tracks the namespace and imports in effect while walking a file.
type scope struct {
	namespace string
	uses      map[string]string
}

type walker struct {
	source  []byte
	file    string
	classes []*model.ClassInfo
}

// File parses a PHP source file and returns every class, interface and trait
// declared in it. The parser must be created for the PHP language.
// filePath is recorded in ClassInfo.File only.
func File(parser *sitter.Parser, source []byte, filePath string) ([]*model.ClassInfo, error) {
	if len(source) == 0 {
		return nil, nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	defer tree.Close()

	w := &walker{source: source, file: filePath}
	w.walkStatements(tree.RootNode(), &scope{uses: make(map[string]string)})
	return w.classes, nil
}

func (w *walker) walkStatements(parent *sitter.Node, sc *scope) {
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		n := parent.NamedChild(i)
		switch n.Type() {
		case "namespace_definition":
			name := ""
			if nn := lang.FieldOrType(n, "name", "namespace_name"); nn != nil {
				name = lang.CollapseWhitespace(w.text(nn))
			}
			if body := lang.FieldOrType(n, "body", "compound_statement"); body != nil {
				w.walkStatements(body, &scope{namespace: name, uses: make(map[string]string)})
				continue
			}
			sc.namespace = name
			sc.uses = make(map[string]string)
		case "namespace_use_declaration":
			w.addUses(n, sc)
		default:
			if kind, ok := classKinds[n.Type()]; ok {
				w.classes = append(w.classes, w.class(n, kind, sc))
			}
		}
	}
}

func (w *walker) addUses(n *sitter.Node, sc *scope) {
	var prefix string
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "function", "const":
			// Function and constant imports do not name classes.
			return
		case "namespace_name":
			prefix = w.text(child)
		case "namespace_use_clause":
			w.addUseClause(child, "", sc)
		case "namespace_use_group":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				clause := child.NamedChild(j)
				switch clause.Type() {
				case "namespace_use_clause", "namespace_use_group_clause":
					w.addUseClause(clause, prefix, sc)
				}
			}
		}
	}
}

func (w *walker) addUseClause(n *sitter.Node, prefix string, sc *scope) {
	var name, alias string
	sawAs := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "function", "const":
			return
		case "as":
			sawAs = true
		case "namespace_aliasing_clause":
			if a := lang.FirstOfType(child, "name"); a != nil {
				alias = w.text(a)
			}
		case "name", "qualified_name", "namespace_name":
			if sawAs {
				alias = w.text(child)
			} else if name == "" {
				name = w.text(child)
			}
		}
	}
	if name == "" {
		return
	}

	full := strings.TrimPrefix(strings.Join(strings.Fields(name), ""), `\`)
	if prefix != "" {
		full = strings.TrimPrefix(prefix, `\`) + `\` + full
	}
	if alias == "" {
		alias = model.LastSegment(full)
	}
	sc.uses[strings.ToLower(alias)] = full
}

func (w *walker) class(n *sitter.Node, kind model.ClassKind, sc *scope) *model.ClassInfo {
	ci := &model.ClassInfo{
		Namespace: sc.namespace,
		Kind:      kind,
		File:      w.file,
		Line:      int(n.StartPoint().Row) + 1,
		Uses:      cloneUses(sc.uses),
		Abstract:  kind == model.Interface || hasModifier(n, w.source, "abstract"),
		Final:     hasModifier(n, w.source, "final"),
	}
	if nameNode := lang.FieldOrType(n, "name", "name"); nameNode != nil {
		ci.Name = qualify(sc.namespace, w.text(nameNode))
	}
	ci.DocComment, ci.DocLine = w.docComment(n)
	ci.Attributes = w.attributes(n, sc)

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "base_clause":
			names := w.clauseNames(child, sc)
			if kind == model.Interface {
				ci.Implements = append(ci.Implements, names...)
			} else if len(names) > 0 {
				ci.Extends = names[0]
			}
		case "class_interface_clause":
			ci.Implements = append(ci.Implements, w.clauseNames(child, sc)...)
		case "declaration_list":
			w.members(child, ci, sc)
		}
	}
	return ci
}

func (w *walker) members(body *sitter.Node, ci *model.ClassInfo, sc *scope) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "property_declaration":
			w.properties(member, ci, sc)
		case "method_declaration":
			if m := w.method(member, ci, sc); m != nil {
				ci.Methods = append(ci.Methods, m)
				if strings.EqualFold(m.Name, "__construct") {
					w.promoted(member, ci, sc)
				}
			}
		case "use_declaration":
			ci.Traits = append(ci.Traits, w.clauseNames(member, sc)...)
		}
	}
}

// promoted adds the properties declared by the promoted parameters of a
// constructor.
func (w *walker) promoted(ctor *sitter.Node, ci *model.ClassInfo, sc *scope) {
	params := lang.FieldOrType(ctor, "parameters", "formal_parameters")
	if params == nil {
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		if param.Type() != "property_promotion_parameter" {
			continue
		}
		nameNode := lang.FieldOrType(param, "name", "variable_name")
		if nameNode != nil && nameNode.Type() == "by_ref" {
			nameNode = lang.FirstOfType(nameNode, "variable_name")
		}
		if nameNode == nil {
			continue
		}
		p := &model.PropertyInfo{
			Class:      ci,
			Name:       strings.TrimPrefix(w.text(nameNode), "$"),
			Visibility: visibilityOf(param, w.source),
			Readonly:   hasModifier(param, w.source, "readonly"),
			Promoted:   true,
			Line:       int(nameNode.StartPoint().Row) + 1,
			Attributes: w.attributes(param, sc),
		}
		if t := param.ChildByFieldName("type"); t != nil {
			p.DeclaredType = lang.CollapseWhitespace(w.text(t))
		} else {
			for j := 0; j < int(param.NamedChildCount()); j++ {
				if _, ok := typeNodes[param.NamedChild(j).Type()]; ok {
					p.DeclaredType = lang.CollapseWhitespace(w.text(param.NamedChild(j)))
					break
				}
			}
		}
		p.DocComment, p.DocLine = w.docComment(param)
		ci.Properties = append(ci.Properties, p)
	}
}

func (w *walker) properties(n *sitter.Node, ci *model.ClassInfo, sc *scope) {
	doc, docLine := w.docComment(n)
	attrs := w.attributes(n, sc)
	visibility := visibilityOf(n, w.source)
	static := hasModifier(n, w.source, "static")
	readonly := hasModifier(n, w.source, "readonly")

	var declaredType string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if _, ok := typeNodes[child.Type()]; ok {
			declaredType = lang.CollapseWhitespace(w.text(child))
			break
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "property_element" {
			continue
		}
		varNode := lang.FirstOfType(child, "variable_name")
		if varNode == nil {
			continue
		}
		ci.Properties = append(ci.Properties, &model.PropertyInfo{
			Class:        ci,
			Name:         strings.TrimPrefix(w.text(varNode), "$"),
			Visibility:   visibility,
			Static:       static,
			Readonly:     readonly,
			DeclaredType: declaredType,
			Line:         int(varNode.StartPoint().Row) + 1,
			DocComment:   doc,
			DocLine:      docLine,
			Attributes:   attrs,
		})
	}
}

func (w *walker) method(n *sitter.Node, ci *model.ClassInfo, sc *scope) *model.MethodInfo {
	nameNode := lang.FieldOrType(n, "name", "name")
	if nameNode == nil {
		return nil
	}
	m := &model.MethodInfo{
		Class:      ci,
		Name:       w.text(nameNode),
		Visibility: visibilityOf(n, w.source),
		Static:     hasModifier(n, w.source, "static"),
		Abstract:   ci.Kind == model.Interface || hasModifier(n, w.source, "abstract"),
		Final:      hasModifier(n, w.source, "final"),
		Line:       int(nameNode.StartPoint().Row) + 1,
		Attributes: w.attributes(n, sc),
	}
	m.DocComment, m.DocLine = w.docComment(n)

	if rt := n.ChildByFieldName("return_type"); rt != nil {
		m.ReturnType = strings.TrimSpace(strings.TrimPrefix(lang.CollapseWhitespace(w.text(rt)), ":"))
	} else {
		afterParams := false
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "formal_parameters" {
				afterParams = true
				continue
			}
			if _, ok := typeNodes[child.Type()]; ok && afterParams {
				m.ReturnType = lang.CollapseWhitespace(w.text(child))
				break
			}
		}
	}
	return m
}

// attributes collects the PHP 8 attributes attached to a declaration,
// resolving their class names against the current scope.
func (w *walker) attributes(n *sitter.Node, sc *scope) []model.Attribute {
	list := lang.FirstOfType(n, "attribute_list")
	if list == nil {
		return nil
	}
	var attrs []model.Attribute
	lang.Walk(list, func(node *sitter.Node) bool {
		if node.Type() != "attribute" {
			return true
		}
		var attr model.Attribute
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "name", "qualified_name":
				if attr.Class == "" {
					attr.Class = resolveName(w.text(child), sc)
				}
			case "arguments":
				for j := 0; j < int(child.NamedChildCount()); j++ {
					arg := child.NamedChild(j)
					if arg.Type() == "argument" {
						attr.Arguments = append(attr.Arguments, lang.CollapseWhitespace(w.text(arg)))
					}
				}
			}
		}
		attr.Line = int(node.StartPoint().Row) + 1
		if attr.Class != "" {
			attrs = append(attrs, attr)
		}
		return false
	})
	return attrs
}

func (w *walker) clauseNames(clause *sitter.Node, sc *scope) []string {
	var names []string
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		switch child.Type() {
		case "name", "qualified_name":
			names = append(names, resolveName(w.text(child), sc))
		}
	}
	return names
}

// docComment returns the /** */ comment directly preceding n, if any,
// along with its 1-based starting line.
func (w *walker) docComment(n *sitter.Node) (string, int) {
	prev := n.PrevSibling()
	if prev == nil || prev.Type() != "comment" {
		return "", 0
	}
	text := w.text(prev)
	if !strings.HasPrefix(text, "/**") {
		return "", 0
	}
	return text, int(prev.StartPoint().Row) + 1
}

func (w *walker) text(n *sitter.Node) string {
	return lang.NodeText(n, w.source)
}

// resolveName turns a class reference as written in source into a
// fully-qualified name without a leading backslash.
func resolveName(name string, sc *scope) string {
	name = strings.Join(strings.Fields(name), "")
	if strings.HasPrefix(name, `\`) {
		return name[1:]
	}
	switch strings.ToLower(name) {
	case "self", "static", "parent":
		return name
	}
	first, rest := name, ""
	if i := strings.IndexByte(name, '\\'); i >= 0 {
		first, rest = name[:i], name[i:]
	}
	if rest != "" && strings.EqualFold(first, "namespace") {
		return qualify(sc.namespace, rest[1:])
	}
	if full, ok := sc.uses[strings.ToLower(first)]; ok {
		return full + rest
	}
	return qualify(sc.namespace, name)
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + `\` + name
}

func cloneUses(uses map[string]string) map[string]string {
	out := make(map[string]string, len(uses))
	for k, v := range uses {
		out[k] = v
	}
	return out
}

func visibilityOf(n *sitter.Node, source []byte) model.Visibility {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "visibility_modifier" {
			switch strings.ToLower(lang.NodeText(child, source)) {
			case "private":
				return model.Private
			case "protected":
				return model.Protected
			}
			return model.Public
		}
	}
	return model.Public
}

// hasModifier reports whether a declaration carries a keyword modifier,
// whether the grammar exposes it as a *_modifier node or a bare keyword.
func hasModifier(n *sitter.Node, source []byte, word string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		t := child.Type()
		if t == word {
			return true
		}
		if strings.HasSuffix(t, "_modifier") && strings.EqualFold(lang.NodeText(child, source), word) {
			return true
		}
	}
	return false
}
