// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/docreflect/internal/docblock"
	"github.com/phobologic/docreflect/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a scanned ProjectMap into TOON format.
func Encode(pm *model.ProjectMap) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("project: %s", encodeValue(pm.Name)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(pm.Root)))

	var classRows [][]string
	for i := range pm.Classes {
		c := &pm.Classes[i]
		classRows = append(classRows, []string{
			c.Name,
			c.File,
			fmt.Sprintf("%.4f", c.Rank),
		})
	}
	parts = append(parts, formatTabular("classes", []string{"name", "file", "rank"}, classRows))

	var props, methods [][]string
	for i := range pm.Classes {
		c := &pm.Classes[i]
		props = append(props, withClass(c.Name, propertyRows(c.Metadata))...)
		methods = append(methods, withClass(c.Name, methodRows(c.Metadata))...)
	}
	parts = append(parts, formatTabular("properties", append([]string{"class"}, propertyColumns...), props))
	parts = append(parts, formatTabular("methods", append([]string{"class"}, methodColumns...), methods))

	var depRows [][]string
	for i := range pm.Dependencies {
		d := &pm.Dependencies[i]
		depRows = append(depRows, []string{
			d.Source,
			d.Target,
			strings.Join(d.Symbols, " "),
		})
	}
	parts = append(parts, formatTabular("dependencies", []string{"source", "target", "symbols"}, depRows))

	return strings.Join(parts, "\n")
}

// EncodeClass converts the merged metadata of one class into TOON format.
func EncodeClass(meta *model.ClassMetadata) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("class: %s", encodeValue(meta.Name)))
	parts = append(parts, fmt.Sprintf("found: %t", meta.Found))
	if !meta.Found {
		return strings.Join(parts, "\n")
	}
	parts = append(parts, fmt.Sprintf("abstract: %t", meta.Abstract))
	if meta.Parent != "" {
		parts = append(parts, fmt.Sprintf("parent: %s", encodeValue(meta.Parent)))
	}
	if meta.File != "" {
		parts = append(parts, fmt.Sprintf("file: %s", encodeValue(meta.File)))
	}

	parts = append(parts, formatTabular("properties", propertyColumns, propertyRows(meta)))
	parts = append(parts, formatTabular("methods", methodColumns, methodRows(meta)))

	var annRows [][]string
	annRows = append(annRows, annotationRows("", meta.Annotations)...)
	for _, name := range meta.PropertyOrder {
		annRows = append(annRows, annotationRows("$"+name, meta.Properties[name].Annotations)...)
	}
	for _, name := range meta.MethodOrder {
		annRows = append(annRows, annotationRows(name+"()", meta.Methods[name].Annotations)...)
	}
	parts = append(parts, formatTabular("annotations", []string{"member", "name", "value"}, annRows))

	return strings.Join(parts, "\n")
}

var (
	propertyColumns = []string{"name", "visibility", "static", "access", "type"}
	methodColumns   = []string{"name", "visibility", "static", "type"}
)

func withClass(class string, rows [][]string) [][]string {
	for i, row := range rows {
		rows[i] = append([]string{class}, row...)
	}
	return rows
}

func propertyRows(meta *model.ClassMetadata) [][]string {
	if meta == nil {
		return nil
	}
	rows := make([][]string, 0, len(meta.PropertyOrder))
	for _, name := range meta.PropertyOrder {
		p := meta.Properties[name]
		rows = append(rows, []string{
			name,
			string(p.Visibility),
			strconv.FormatBool(p.Static),
			p.Accessibility.String(),
			p.Type,
		})
	}
	return rows
}

func methodRows(meta *model.ClassMetadata) [][]string {
	if meta == nil {
		return nil
	}
	rows := make([][]string, 0, len(meta.MethodOrder))
	for _, name := range meta.MethodOrder {
		m := meta.Methods[name]
		rows = append(rows, []string{
			name,
			string(m.Visibility),
			strconv.FormatBool(m.Static),
			m.Type,
		})
	}
	return rows
}

func annotationRows(member string, list []model.Annotation) [][]string {
	var rows [][]string
	for _, a := range list {
		rows = append(rows, []string{member, a.AnnotationName(), AnnotationValue(a)})
	}
	return rows
}

// AnnotationValue renders the payload of an annotation: a tag's body or an
// attribute's argument list.
func AnnotationValue(a model.Annotation) string {
	switch v := a.(type) {
	case docblock.Tag:
		return v.Body()
	case model.Attribute:
		return strings.Join(v.Arguments, ", ")
	}
	return ""
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
