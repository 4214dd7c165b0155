package tagreader

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phobologic/docreflect/internal/model"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	class := &model.ClassInfo{Name: "A"}
	tests := []struct {
		name   string
		target any
		want   TargetKind
		err    bool
	}{
		{"class", class, TargetClass, false},
		{"property", &model.PropertyInfo{Class: class}, TargetProperty, false},
		{"method", &model.MethodInfo{Class: class}, TargetMethod, false},
		{"nil class", (*model.ClassInfo)(nil), 0, true},
		{"string", "A", 0, true},
		{"nil", nil, 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Classify(tt.target)
			if tt.err {
				if !errors.Is(err, ErrInvalidTarget) {
					t.Fatalf("expected ErrInvalidTarget, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveUsesDeclaringClass(t *testing.T) {
	t.Parallel()

	class := &model.ClassInfo{
		Name:      `App\User`,
		Namespace: "App",
		Uses:      map[string]string{"someclass": `Foo\SomeClass`},
	}
	prop := &model.PropertyInfo{Class: class, Name: "x"}

	ctx, err := NewContextResolver(nil).Resolve(prop)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ctx.Namespace != "App" {
		t.Errorf("namespace = %q", ctx.Namespace)
	}
	if ctx.Aliases["SomeClass"] != `Foo\SomeClass` || ctx.Aliases["someclass"] != `Foo\SomeClass` {
		t.Errorf("aliases = %v", ctx.Aliases)
	}
	if got := ctx.ResolveType("SomeClass"); got != `\Foo\SomeClass` {
		t.Errorf("ResolveType(SomeClass) = %q", got)
	}
}

func TestResolveOrphanMember(t *testing.T) {
	t.Parallel()

	_, err := NewContextResolver(nil).Resolve(&model.MethodInfo{Name: "m"})
	if !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestResolveWithoutUsesWarns(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	r := NewContextResolver(zap.New(core))

	ctx, err := r.Resolve(&model.ClassInfo{Name: `App\Synth`, Namespace: "App"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ctx.Aliases) != 0 {
		t.Errorf("expected empty alias map, got %v", ctx.Aliases)
	}
	if ctx.Namespace != "App" {
		t.Errorf("namespace = %q", ctx.Namespace)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["class"]; got != `App\Synth` {
		t.Errorf("warning class field = %v", got)
	}
}

func TestRepairCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		uses map[string]string
		want map[string]string
	}{
		{
			name: "lower-cased alias gains cased twin",
			uses: map[string]string{"foo": `App\Foo`},
			want: map[string]string{"foo": `App\Foo`, "Foo": `App\Foo`},
		},
		{
			name: "already cased",
			uses: map[string]string{"Foo": `App\Foo`},
			want: map[string]string{"Foo": `App\Foo`},
		},
		{
			name: "renamed import left alone",
			uses: map[string]string{"bar": `App\Foo`},
			want: map[string]string{"bar": `App\Foo`},
		},
		{
			name: "alias longer than name",
			uses: map[string]string{"verylongalias": `A\B`},
			want: map[string]string{"verylongalias": `A\B`},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RepairCase(tt.uses)
			if len(got) != len(tt.want) {
				t.Fatalf("RepairCase = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("RepairCase[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestRepairCaseTypeResolution(t *testing.T) {
	t.Parallel()

	// The import table reports "foo" for "use App\Foo;"; a comment
	// referencing Foo must still resolve to the imported class.
	class := &model.ClassInfo{
		Name:      `Other\Consumer`,
		Namespace: "Other",
		Uses:      map[string]string{"foo": `App\Foo`},
	}
	ctx, err := NewContextResolver(nil).Resolve(class)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := ctx.ResolveType("Foo"); got != `\App\Foo` {
		t.Errorf("ResolveType(Foo) = %q, want %q", got, `\App\Foo`)
	}
}
