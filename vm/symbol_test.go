package vm

import (
	"sort"
	"testing"
)

// ---------------------------------------------------------------------------
// SymbolTable tests
// ---------------------------------------------------------------------------

func TestSymbolTableIntern(t *testing.T) {
	st := NewSymbolTable()

	a := st.Intern("each")
	if a.ID() != "each" {
		t.Errorf("ID() = %q, want each", a.ID())
	}
	if st.Intern("each") != a {
		t.Error("re-Intern should return the same symbol")
	}
	if st.Intern("map") == a {
		t.Error("different text should give a different symbol")
	}
	if st.Len() != 2 {
		t.Errorf("Len() = %d, want 2", st.Len())
	}
}

func TestSymbolTableInternEmpty(t *testing.T) {
	st := NewSymbolTable()

	empty := st.Intern("")
	if empty == nil || empty.ID() != "" {
		t.Fatal("empty text should intern")
	}
	if st.Intern("") != empty {
		t.Error("empty text should be idempotent")
	}
}

func TestSymbolTableLookup(t *testing.T) {
	st := NewSymbolTable()
	sym := st.Intern("foo")

	if got, ok := st.Lookup("foo"); !ok || got != sym {
		t.Errorf("Lookup(foo) = %v, %v", got, ok)
	}
	if _, ok := st.Lookup("bar"); ok {
		t.Error("Lookup should not create symbols")
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}
}

func TestSymbolTableAllIsSnapshot(t *testing.T) {
	st := NewSymbolTable()
	st.Intern("b")
	st.Intern("a")

	all := st.All()
	st.Intern("c")
	if len(all) != 2 {
		t.Fatalf("All() returned %d symbols, want 2", len(all))
	}

	names := []string{all[0].ID(), all[1].ID()}
	sort.Strings(names)
	if names[0] != "a" || names[1] != "b" {
		t.Errorf("All() = %v, want [a b]", names)
	}
}

func TestSymbolClassBackfill(t *testing.T) {
	v := newTestVM(t)

	early, ok := v.Symbols.Lookup("method_missing")
	if !ok {
		t.Fatal("method_missing should be interned at boot")
	}
	if early.Klass() != v.SymbolClass {
		t.Errorf("early symbol class = %v, want Symbol", early.Klass())
	}
	if late := v.Intern("later"); late.Klass() != v.SymbolClass {
		t.Errorf("late symbol class = %v, want Symbol", late.Klass())
	}
	if !v.Intern("x").Flags().Has(TSymbol) {
		t.Error("symbols should carry TSymbol")
	}
}

func TestSymbolRejectsSingletonClass(t *testing.T) {
	v := newTestVM(t)

	_, err := v.SingletonClassOf(v.Intern("sym"))
	if !IsKindOf(err, v.TypeErrorClass) {
		t.Errorf("err = %v, want TypeError", err)
	}
}
