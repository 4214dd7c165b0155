package metadata

import (
	"strings"

	"github.com/phobologic/docreflect/internal/docblock"
	"github.com/phobologic/docreflect/internal/model"
)

// TagSource yields the doc comment tags of a class, property or method
// handle.
type TagSource interface {
	Annotations(target any) ([]docblock.Tag, error)
}

// Build merges the structural baseline of a class with the facts carried by
// its doc comments. It never modifies baseline. Passes run in this order:
//
//  1. copy the baseline members, with formal attributes as annotations
//  2. class tags, minus duplicates of formal annotations
//  3. tags of every non-static property
//  4. tags of every non-static method
//  5. property types and accessibility, own @var first, then class-level
//     @property, @property-read and @property-write, which win
//  6. method types, own @return first, then class-level @method
func Build(baseline *model.ClassInfo, tags TagSource) (*model.ClassMetadata, error) {
	meta := fromBaseline(baseline)

	classTags, err := tags.Annotations(baseline)
	if err != nil {
		return nil, err
	}
	meta.Annotations = appendTags(meta.Annotations, classTags, baseline.Attributes, baseline)

	for _, p := range baseline.Properties {
		// Static members carry no tags.
		if p.Static {
			continue
		}
		own, err := tags.Annotations(p)
		if err != nil {
			return nil, err
		}
		pm := meta.Properties[p.Name]
		pm.Annotations = appendTags(pm.Annotations, own, p.Attributes, declaring(p.Class, baseline))
	}

	for _, m := range baseline.Methods {
		if m.Static {
			continue
		}
		own, err := tags.Annotations(m)
		if err != nil {
			return nil, err
		}
		mm := meta.Methods[m.Name]
		mm.Annotations = appendTags(mm.Annotations, own, m.Attributes, declaring(m.Class, baseline))
	}

	applyPropertyTags(meta)
	applyMethodTags(meta)

	meta.Built = true
	return meta, nil
}

// fromBaseline copies the structural facts of c into a fresh record.
func fromBaseline(c *model.ClassInfo) *model.ClassMetadata {
	meta := model.NewClassMetadata(c.Name)
	meta.Found = true
	meta.Abstract = c.Abstract
	meta.Parent = c.Extends
	meta.File = c.File
	meta.Sources = append([]string(nil), c.Sources...)
	meta.Annotations = attributes(c.Attributes)

	for _, p := range c.Properties {
		pm := meta.EnsureProperty(p.Name)
		pm.Visibility = p.Visibility
		pm.Static = p.Static
		pm.Annotations = attributes(p.Attributes)
	}
	for _, m := range c.Methods {
		mm := meta.EnsureMethod(m.Name)
		mm.Visibility = m.Visibility
		mm.Static = m.Static
		mm.Annotations = attributes(m.Attributes)
	}
	return meta
}

// declaring returns the class whose imports resolve a member's annotations:
// the class that declares it, which differs from baseline for inherited and
// trait members.
func declaring(owner, baseline *model.ClassInfo) *model.ClassInfo {
	if owner != nil {
		return owner
	}
	return baseline
}

func attributes(attrs []model.Attribute) []model.Annotation {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]model.Annotation, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}

// appendTags appends the tags that do not duplicate one of the formal
// annotations in known.
func appendTags(dst []model.Annotation, tags []docblock.Tag, known []model.Attribute, scope *model.ClassInfo) []model.Annotation {
	for _, tag := range tags {
		if duplicatesFormal(tag.Name(), known, scope) {
			continue
		}
		dst = append(dst, tag)
	}
	return dst
}

// duplicatesFormal reports whether a tag named name is the doc comment
// spelling of one of the formal annotations in known. That is the case when
// the name matches the trailing segment(s) of the annotation class, as "Id"
// or "Mapping\Id" do for Doctrine\ORM\Mapping\Id, or when the name resolves
// to the annotation class through the imports of scope, as "ORM\Id" does
// next to "use Doctrine\ORM\Mapping as ORM". Comparison ignores case.
func duplicatesFormal(name string, known []model.Attribute, scope *model.ClassInfo) bool {
	if name == "" || len(known) == 0 {
		return false
	}
	lower := strings.ToLower(model.NormalizeClassName(name))
	resolved := strings.ToLower(resolveClassName(name, scope))
	for _, a := range known {
		class := strings.ToLower(a.Class)
		if class == lower || strings.HasSuffix(class, `\`+lower) || class == resolved {
			return true
		}
	}
	return false
}

// resolveClassName resolves name the way PHP resolves a class reference in
// scope: through the import table (case-insensitively), else relative to
// the namespace.
func resolveClassName(name string, scope *model.ClassInfo) string {
	if strings.HasPrefix(name, `\`) {
		return name[1:]
	}
	first, rest := name, ""
	if i := strings.IndexByte(name, '\\'); i >= 0 {
		first, rest = name[:i], name[i:]
	}
	if full, ok := scope.Uses[strings.ToLower(first)]; ok {
		return full + rest
	}
	if scope.Namespace == "" {
		return name
	}
	return scope.Namespace + `\` + name
}

// applyPropertyTags is merge pass 5.
func applyPropertyTags(meta *model.ClassMetadata) {
	for _, name := range meta.PropertyOrder {
		p := meta.Properties[name]
		if p.Visibility == model.Public && p.Accessibility == 0 {
			p.Accessibility = model.ReadWrite
		}
		for _, a := range p.Annotations {
			if v, ok := a.(*docblock.VarTag); ok {
				p.Type = v.Type
			}
		}
	}

	for _, a := range meta.Annotations {
		tag, ok := a.(docblock.Tag)
		if !ok {
			continue
		}

		var (
			pt     *docblock.PropertyTag
			access model.Accessibility
		)
		switch tag.Kind() {
		case docblock.KindProperty:
			pt, _ = tag.(*docblock.PropertyTag)
			access = model.ReadWrite
		case docblock.KindPropertyRead:
			if t, ok := tag.(*docblock.PropertyReadTag); ok {
				pt = &t.PropertyTag
			}
			access = model.Read
		case docblock.KindPropertyWrite:
			if t, ok := tag.(*docblock.PropertyWriteTag); ok {
				pt = &t.PropertyTag
			}
			access = model.Write
		case docblock.KindGeneric, docblock.KindVar, docblock.KindMethod, docblock.KindReturn:
			continue
		}
		if pt == nil {
			continue
		}

		name := strings.Trim(pt.Variable, "$")
		if name == "" {
			continue
		}
		p := meta.EnsureProperty(name)
		p.Type = pt.Type
		p.Visibility = model.Public
		p.Accessibility = access
	}
}

// applyMethodTags is merge pass 6.
func applyMethodTags(meta *model.ClassMetadata) {
	for _, name := range meta.MethodOrder {
		m := meta.Methods[name]
		for _, a := range m.Annotations {
			if r, ok := a.(*docblock.ReturnTag); ok {
				m.Type = r.Type
			}
		}
	}

	for _, a := range meta.Annotations {
		tag, ok := a.(docblock.Tag)
		if !ok {
			continue
		}
		switch tag.Kind() {
		case docblock.KindMethod:
			mt, ok := tag.(*docblock.MethodTag)
			if !ok || mt.MethodName == "" {
				continue
			}
			m := methodFold(meta, mt.MethodName)
			if m == nil {
				m = meta.EnsureMethod(mt.MethodName)
			}
			m.Type = mt.Type
		case docblock.KindGeneric, docblock.KindVar, docblock.KindProperty,
			docblock.KindPropertyRead, docblock.KindPropertyWrite, docblock.KindReturn:
		}
	}
}

// methodFold finds a method case-insensitively, as PHP resolves calls.
func methodFold(meta *model.ClassMetadata, name string) *model.MethodMetadata {
	if m, ok := meta.Methods[name]; ok {
		return m
	}
	for _, key := range meta.MethodOrder {
		if strings.EqualFold(key, name) {
			return meta.Methods[key]
		}
	}
	return nil
}
