package parse

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/docreflect/internal/lang"
	"github.com/phobologic/docreflect/internal/model"
)

// Declaration is a class-like name found by the declaration query.
type Declaration struct {
	Name string // fully-qualified
	Kind model.ClassKind
	Line int
}

var declarationKinds = map[string]model.ClassKind{
	"definition.class":     model.Class,
	"definition.interface": model.Interface,
	"definition.trait":     model.Trait,
}

// Declarations lists the class-like declarations in a file without building
// full structural reflection. It is used to index directories cheaply.
func Declarations(parser *sitter.Parser, query *sitter.Query, source []byte) []Declaration {
	if len(source) == 0 {
		return nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var (
		decls     []Declaration
		namespace string
	)
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var nameNode *sitter.Node
		var captureName string
		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			if cname == "name" {
				nameNode = c.Node
			} else {
				captureName = cname
			}
		}
		if nameNode == nil {
			continue
		}

		name := lang.CollapseWhitespace(lang.NodeText(nameNode, source))
		if captureName == "definition.namespace" {
			namespace = name
			continue
		}
		kind, ok := declarationKinds[captureName]
		if !ok {
			continue
		}
		decls = append(decls, Declaration{
			Name: qualify(namespace, name),
			Kind: kind,
			Line: int(nameNode.StartPoint().Row) + 1,
		})
	}
	return decls
}
