// Package graph builds the type-reference graph between scanned classes and
// ranks classes by PageRank.
package graph

import (
	"math"
	"sort"
	"strings"

	"github.com/phobologic/docreflect/internal/model"
)

// Build creates an edge from each class to every other scanned class its
// parent, property types or method types refer to. The edge symbols name
// the referring members: "extends", "$property" or "method()".
func Build(classes []model.ClassReport) []model.Dependency {
	// Lower-cased class name -> canonical name.
	known := make(map[string]string, len(classes))
	for i := range classes {
		known[strings.ToLower(classes[i].Name)] = classes[i].Name
	}

	type edgeKey struct{ src, tgt string }
	edgeSymbols := make(map[edgeKey][]string)

	add := func(src, typ, symbol string) {
		for _, ref := range TypeNames(typ) {
			tgt, ok := known[strings.ToLower(ref)]
			if !ok || tgt == src {
				continue // unknown or self
			}
			key := edgeKey{src, tgt}
			if !contains(edgeSymbols[key], symbol) {
				edgeSymbols[key] = append(edgeSymbols[key], symbol)
			}
		}
	}

	for i := range classes {
		c := &classes[i]
		meta := c.Metadata
		if meta == nil {
			continue
		}
		if meta.Parent != "" {
			add(c.Name, `\`+meta.Parent, "extends")
		}
		for _, name := range meta.PropertyOrder {
			add(c.Name, meta.Properties[name].Type, "$"+name)
		}
		for _, name := range meta.MethodOrder {
			add(c.Name, meta.Methods[name].Type, name+"()")
		}
	}

	var deps []model.Dependency
	for key, syms := range edgeSymbols {
		deps = append(deps, model.Dependency{
			Source:  key.src,
			Target:  key.tgt,
			Symbols: syms,
		})
	}

	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Source != deps[j].Source {
			return deps[i].Source < deps[j].Source
		}
		return deps[i].Target < deps[j].Target
	})

	return deps
}

// TypeNames returns the class names mentioned in a resolved type
// expression, without leading backslashes. "\A|\B[]|null" yields A and B;
// "array<int, \C>" yields C.
func TypeNames(typ string) []string {
	fields := strings.FieldsFunc(typ, func(r rune) bool {
		switch r {
		case '|', '&', '<', '>', ',', '(', ')', '[', ']', '?', '{', '}', ':', ' ', '\t':
			return true
		}
		return false
	})
	var names []string
	for _, f := range fields {
		// Only fully-qualified names are class references; builtin types are
		// left unqualified by the resolver.
		if !strings.HasPrefix(f, `\`) {
			continue
		}
		name := strings.TrimPrefix(f, `\`)
		if name != "" && !contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// Rank applies PageRank to classes and sorts them by rank descending.
func Rank(classes []model.ClassReport, deps []model.Dependency) {
	if len(classes) == 0 {
		return
	}

	if len(deps) == 0 {
		uniform := 1.0 / float64(len(classes))
		for i := range classes {
			classes[i].Rank = uniform
		}
		return
	}

	// Edge from source to target means source references target.
	// Each referring member counts as one edge.
	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	nodes := make(map[string]struct{})

	for i := range classes {
		nodes[classes[i].Name] = struct{}{}
	}

	for _, d := range deps {
		for range d.Symbols {
			outEdges[d.Source] = append(outEdges[d.Source], d.Target)
			outDegree[d.Source]++
		}
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)

	for i := range classes {
		classes[i].Rank = ranks[classes[i].Name]
	}

	sort.SliceStable(classes, func(i, j int) bool {
		return classes[i].Rank > classes[j].Rank
	})
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		next := make(map[string]float64, n)

		// Classes referring to nothing spread their rank evenly.
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			next[node] = teleport + danglingContrib
		}

		for src, targets := range outEdges {
			contrib := alpha * rank[src] / float64(outDegree[src])
			for _, tgt := range targets {
				next[tgt] += contrib
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(next[node] - rank[node])
		}

		rank = next

		if diff < tol {
			break
		}
	}

	return rank
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
