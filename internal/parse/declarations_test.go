package parse

import (
	"testing"

	"github.com/phobologic/docreflect/internal/lang"
	"github.com/phobologic/docreflect/internal/model"
)

func TestDeclarations(t *testing.T) {
	t.Parallel()

	l := lang.Languages[lang.PHP]
	q, err := l.GetDeclarationQuery()
	if err != nil {
		t.Fatalf("GetDeclarationQuery: %v", err)
	}

	source := `<?php
namespace Shop\Model;

class Order {}

interface Payable {}

trait HasTotals {}
`
	decls := Declarations(l.NewParser(), q, []byte(source))
	want := []Declaration{
		{Name: `Shop\Model\Order`, Kind: model.Class, Line: 4},
		{Name: `Shop\Model\Payable`, Kind: model.Interface, Line: 6},
		{Name: `Shop\Model\HasTotals`, Kind: model.Trait, Line: 8},
	}
	if len(decls) != len(want) {
		t.Fatalf("expected %d declarations, got %d: %+v", len(want), len(decls), decls)
	}
	for i := range want {
		if decls[i] != want[i] {
			t.Errorf("decl %d = %+v, want %+v", i, decls[i], want[i])
		}
	}
}

func TestDeclarationsNoNamespace(t *testing.T) {
	t.Parallel()

	l := lang.Languages[lang.PHP]
	q, err := l.GetDeclarationQuery()
	if err != nil {
		t.Fatalf("GetDeclarationQuery: %v", err)
	}

	decls := Declarations(l.NewParser(), q, []byte("<?php\nclass Plain {}\n"))
	if len(decls) != 1 || decls[0].Name != "Plain" {
		t.Errorf("decls = %+v", decls)
	}
	if got := Declarations(l.NewParser(), q, nil); got != nil {
		t.Errorf("expected nil for empty source, got %+v", got)
	}
}
