package tagreader

import (
	"errors"
	"testing"

	"github.com/phobologic/docreflect/internal/docblock"
	"github.com/phobologic/docreflect/internal/model"
)

const taggedDoc = `/**
 * @property SomeClass $someProp A property.
 * @property-write SomeClass $someWriteOnlyProp
 * @property-read SomeClass $someReadOnlyProp
 * @Entity
 */`

func taggedClass() *model.ClassInfo {
	class := &model.ClassInfo{
		Name:       `DocBlockTags\Mock\TaggedClass`,
		Namespace:  `DocBlockTags\Mock`,
		File:       "TaggedClass.php",
		Uses:       map[string]string{"someclass": `Foo\SomeClass`},
		DocComment: taggedDoc,
		DocLine:    7,
	}
	class.Properties = []*model.PropertyInfo{{
		Class:      class,
		Name:       "intProp",
		Visibility: model.Public,
		DocComment: "/** @var int */",
		DocLine:    16,
	}}
	class.Methods = []*model.MethodInfo{{
		Class:      class,
		Name:       "bare",
		Visibility: model.Public,
	}}
	return class
}

func TestAnnotationsClass(t *testing.T) {
	t.Parallel()

	r := NewReader(nil)
	tags, err := r.Annotations(taggedClass())
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	wantKinds := []docblock.Kind{
		docblock.KindProperty,
		docblock.KindPropertyWrite,
		docblock.KindPropertyRead,
		docblock.KindGeneric,
	}
	if len(tags) != len(wantKinds) {
		t.Fatalf("expected %d tags, got %d", len(wantKinds), len(tags))
	}
	for i, k := range wantKinds {
		if tags[i].Kind() != k {
			t.Errorf("tag %d kind = %v, want %v", i, tags[i].Kind(), k)
		}
	}
	p := tags[0].(*docblock.PropertyTag)
	if p.Type != `\Foo\SomeClass` {
		t.Errorf("property type = %q", p.Type)
	}
	if loc := tags[0].Location(); loc.File != "TaggedClass.php" || loc.Line != 8 {
		t.Errorf("location = %+v", loc)
	}
}

func TestAnnotationsMembers(t *testing.T) {
	t.Parallel()

	class := taggedClass()
	r := NewReader(nil)

	tags, err := r.Annotations(class.Properties[0])
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	if len(tags) != 1 || tags[0].(*docblock.VarTag).Type != "int" {
		t.Errorf("property tags = %+v", tags)
	}

	tags, err = r.Annotations(class.Methods[0])
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	if tags == nil || len(tags) != 0 {
		t.Errorf("expected empty non-nil slice for undocumented method, got %#v", tags)
	}
}

func TestAnnotationsInvalidTarget(t *testing.T) {
	t.Parallel()

	_, err := NewReader(nil).Annotations(42)
	if !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget, got %v", err)
	}
	_, _, err = NewReader(nil).Annotation(struct{}{}, "var")
	if !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget from Annotation, got %v", err)
	}
}

func TestAnnotation(t *testing.T) {
	t.Parallel()

	r := NewReader(nil)
	tag, ok, err := r.Annotation(taggedClass(), "property-read")
	if err != nil || !ok {
		t.Fatalf("Annotation: ok=%v err=%v", ok, err)
	}
	if tag.(*docblock.PropertyReadTag).Variable != "$someReadOnlyProp" {
		t.Errorf("wrong tag: %+v", tag)
	}

	if _, ok, _ := r.Annotation(taggedClass(), "Property-Read"); ok {
		t.Error("tag name match should be exact")
	}
}

type customTag struct {
	docblock.GenericTag
	owner string
}

func TestRegister(t *testing.T) {
	t.Parallel()

	r := NewReader(nil)
	err := r.Register("Entity", func(raw docblock.RawTag, ctx docblock.Context) docblock.Tag {
		return &customTag{owner: ctx.Namespace}
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	tags, err := r.Annotations(taggedClass())
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	ct, ok := tags[3].(*customTag)
	if !ok {
		t.Fatalf("expected *customTag, got %T", tags[3])
	}
	if ct.owner != `DocBlockTags\Mock` {
		t.Errorf("factory got context namespace %q", ct.owner)
	}
}

func TestRegisterKind(t *testing.T) {
	t.Parallel()

	r := NewReader(nil)
	if err := r.RegisterKind("type", "var"); err != nil {
		t.Fatalf("RegisterKind: %v", err)
	}
	class := &model.ClassInfo{Name: "A", Uses: map[string]string{}}
	prop := &model.PropertyInfo{Class: class, Name: "p", DocComment: "/** @type string */"}

	tags, err := r.Annotations(prop)
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	v, ok := tags[0].(*docblock.VarTag)
	if !ok || v.Type != "string" || v.Name() != "type" {
		t.Errorf("tag = %#v", tags[0])
	}
}

func TestRegisterInvalid(t *testing.T) {
	t.Parallel()

	r := NewReader(nil)
	tests := []struct {
		name string
		err  error
	}{
		{"empty name", r.Register("", docblock.NewGeneric)},
		{"nil factory", r.Register("x", nil)},
		{"unknown record type", r.RegisterKind("x", "NoSuchTag")},
		{"map with unknown record type", r.RegisterMap(map[string]string{"x": "param"})},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, ErrInvalidRegistration) {
			t.Errorf("%s: expected ErrInvalidRegistration, got %v", tt.name, tt.err)
		}
	}
}
