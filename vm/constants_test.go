package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Constant tests
// ---------------------------------------------------------------------------

func TestConstSetGet(t *testing.T) {
	v := newTestVM(t)

	v.ConstSet(nil, "ANSWER", v.Number(42))
	got, err := v.ConstGet(nil, "ANSWER")
	if err != nil {
		t.Fatalf("ConstGet: %v", err)
	}
	if n, _ := NumberOf(got); n != 42 {
		t.Errorf("ANSWER = %v, want 42", n)
	}

	v.ConstSet(nil, "ANSWER", v.Number(43))
	got, _ = v.ConstGet(nil, "ANSWER")
	if n, _ := NumberOf(got); n != 43 {
		t.Errorf("reassigned ANSWER = %v, want 43", n)
	}
}

func TestConstGetUninitialized(t *testing.T) {
	v := newTestVM(t)

	_, err := v.ConstGet(nil, "Missing")
	if !IsKindOf(err, v.NameErrorClass) {
		t.Fatalf("err = %v, want NameError", err)
	}
	if !strings.Contains(err.Error(), "uninitialized constant Missing") {
		t.Errorf("message = %q", err.Error())
	}
	if v.ConstDefined(nil, "Missing") {
		t.Error("ConstDefined should be false")
	}
}

func TestConstGetThroughAncestors(t *testing.T) {
	v := newTestVM(t)

	base := mustClass(t, v, "Base", nil)
	mixin := mustModule(t, v, "Mixin")
	child := mustClass(t, v, "Child", base)
	if err := v.Include(child, mixin); err != nil {
		t.Fatalf("Include: %v", err)
	}

	v.ConstSet(base, "FROM_BASE", v.String("base"))
	v.ConstSet(mixin, "FROM_MIXIN", v.String("mixin"))
	v.ConstSet(nil, "TOP", v.String("top"))

	tests := []struct {
		name string
		want string
	}{
		{"FROM_BASE", "base"},
		{"FROM_MIXIN", "mixin"},
		{"TOP", "top"},
	}
	for _, tt := range tests {
		got, err := v.ConstGet(child, tt.name)
		if s := strResult(t, got, err); s != tt.want {
			t.Errorf("Child::%s = %q, want %q", tt.name, s, tt.want)
		}
	}

	if _, ok := v.Constants.At(child, "FROM_BASE"); ok {
		t.Error("At should not search ancestors")
	}
}

func TestConstGetFromModuleFallsBackToObject(t *testing.T) {
	v := newTestVM(t)

	m := mustModule(t, v, "Isolated")
	got, err := v.ConstGet(m, "String")
	if err != nil || got != Value(v.StringClass) {
		t.Errorf("Isolated::String = %v, %v; want String", got, err)
	}
}

func TestConstGetPath(t *testing.T) {
	v := newTestVM(t)

	outer := mustModule(t, v, "Outer")
	inner, err := v.DefineClass(outer, "Inner", nil)
	if err != nil {
		t.Fatalf("DefineClass: %v", err)
	}

	for _, path := range []string{"Outer::Inner", "::Outer::Inner"} {
		got, err := v.ConstGetPath(path)
		if err != nil || got != Value(inner) {
			t.Errorf("ConstGetPath(%q) = %v, %v", path, got, err)
		}
	}
	if _, err := v.ConstGetPath("Outer::Nope"); !IsKindOf(err, v.NameErrorClass) {
		t.Errorf("err = %v, want NameError", err)
	}
}

func TestConstGetPathThroughValue(t *testing.T) {
	v := newTestVM(t)
	v.ConstSet(nil, "LIMIT", v.Number(10))

	for _, path := range []string{"ARGV::String", "LIMIT::Inner"} {
		_, err := v.ConstGetPath(path)
		if !IsKindOf(err, v.TypeErrorClass) {
			t.Errorf("ConstGetPath(%q) err = %v, want TypeError", path, err)
		}
	}
	if _, err := v.ConstGetPath("LIMIT"); err != nil {
		t.Errorf("ConstGetPath(LIMIT): %v", err)
	}
}

func TestConstSetNamesAnonymousClass(t *testing.T) {
	v := newTestVM(t)

	anon, err := v.Send(v.ClassClass, "new")
	if err != nil {
		t.Fatalf("Class.new: %v", err)
	}
	c := anon.(*Class)
	if c.Path() != "" {
		t.Fatalf("fresh class path = %q, want empty", c.Path())
	}

	outer := mustModule(t, v, "Outer")
	v.ConstSet(outer, "Named", c)
	if c.Path() != "Outer::Named" {
		t.Errorf("Path() = %q, want Outer::Named", c.Path())
	}

	// A second binding does not rename.
	v.ConstSet(nil, "Alias", c)
	if c.Path() != "Outer::Named" {
		t.Errorf("Path() after alias = %q", c.Path())
	}
}

func TestConstantNamesInOrder(t *testing.T) {
	v := newTestVM(t)

	m := mustModule(t, v, "Ordered")
	for _, n := range []string{"C", "A", "B", "A"} {
		v.ConstSet(m, n, v.Nil)
	}
	got := v.Constants.Names(m)
	if strings.Join(got, ",") != "C,A,B" {
		t.Errorf("Names = %v, want [C A B]", got)
	}
}

// ---------------------------------------------------------------------------
// Class variable tests
// ---------------------------------------------------------------------------

func TestClassVarHierarchy(t *testing.T) {
	v := newTestVM(t)

	base := mustClass(t, v, "Base", nil)
	child := mustClass(t, v, "Child", base)
	other := mustClass(t, v, "Other", nil)

	v.CVarSet(base, "@@count", v.Number(1))

	if n, _ := NumberOf(v.CVarGet(child, "@@count")); n != 1 {
		t.Errorf("Child @@count = %v, want 1", n)
	}

	v.CVarSet(child, "@@count", v.Number(2))
	if n, _ := NumberOf(v.CVarGet(base, "@@count")); n != 2 {
		t.Errorf("Base @@count after child write = %v, want 2", n)
	}

	if got := v.CVarGet(other, "@@count"); got != Value(v.Nil) {
		t.Errorf("unrelated class @@count = %s, want nil", v.Inspect(got))
	}

	if names := v.ClassVars.Names(child); len(names) != 1 || names[0] != "@@count" {
		t.Errorf("Names(Child) = %v", names)
	}
}

func TestClassVarFromInstance(t *testing.T) {
	v := newTestVM(t)

	c := mustClass(t, v, "Counter", nil)
	obj := NewObject(c)

	v.CVarSet(obj, "@@hits", v.Number(5))
	if n, _ := NumberOf(v.CVarGet(c, "@@hits")); n != 5 {
		t.Errorf("@@hits = %v, want 5", n)
	}
}

func TestClassVarFlat(t *testing.T) {
	v := newTestVM(t, WithClassVarScope(ScopeFlat))

	a := mustClass(t, v, "A", nil)
	b := mustClass(t, v, "B", nil)

	v.CVarSet(a, "@@shared", v.String("x"))
	got := v.CVarGet(b, "@@shared")
	if s, _ := StringOf(got); s != "x" {
		t.Errorf("B @@shared = %s, want \"x\"", v.Inspect(got))
	}
	if v.ClassVars.Scope() != ScopeFlat {
		t.Error("scope should be flat")
	}
}

func TestClassVarUnsetIsNil(t *testing.T) {
	v := newTestVM(t)

	if got := v.CVarGet(nil, "@@never"); got != Value(v.Nil) {
		t.Errorf("unset class variable = %s, want nil", v.Inspect(got))
	}
}

func TestParseClassVarScope(t *testing.T) {
	tests := []struct {
		in      string
		want    ClassVarScope
		wantErr bool
	}{
		{"", ScopeHierarchy, false},
		{"hierarchy", ScopeHierarchy, false},
		{"flat", ScopeFlat, false},
		{"global", ScopeHierarchy, true},
	}
	for _, tt := range tests {
		got, err := ParseClassVarScope(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClassVarScope(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClassVarScope(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ScopeFlat.String() != "flat" || ScopeHierarchy.String() != "hierarchy" {
		t.Error("scope names should round-trip")
	}
}

// ---------------------------------------------------------------------------
// Global tests
// ---------------------------------------------------------------------------

func TestGlobals(t *testing.T) {
	v := newTestVM(t)

	if got := v.GVarGet("$unset"); got != Value(v.Nil) {
		t.Errorf("unset global = %s, want nil", v.Inspect(got))
	}

	if _, err := v.GVarSet("$debug", v.True); err != nil {
		t.Fatalf("GVarSet: %v", err)
	}
	if v.GVarGet("$debug") != Value(v.True) {
		t.Error("$debug should be true")
	}
}

func TestVirtualGlobal(t *testing.T) {
	v := newTestVM(t)

	calls := 0
	v.DefineVirtualGVar("$ticks", func() Value {
		calls++
		return v.Number(float64(calls))
	})

	v.GVarGet("$ticks")
	got := v.GVarGet("$ticks")
	if n, _ := NumberOf(got); n != 2 {
		t.Errorf("$ticks = %v, want 2", n)
	}
	if _, err := v.GVarSet("$ticks", v.Nil); !IsKindOf(err, v.NameErrorClass) {
		t.Errorf("assigning a virtual global err = %v, want NameError", err)
	}

	found := false
	for _, n := range v.Globals.Names() {
		if n == "$ticks" {
			found = true
		}
	}
	if !found {
		t.Error("Names should list virtual globals")
	}
}
