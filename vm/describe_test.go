package vm

import (
	"sort"
	"strings"
	"testing"
)

func TestDescribe(t *testing.T) {
	v := newTestVM(t)

	outer := mustModule(t, v, "Outer")
	inner, err := v.DefineClass(outer, "Inner", nil)
	if err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	v.Def(inner, "zeta", 0, constant("z"))
	v.Def(inner, "alpha", 0, constant("a"))
	if err := v.Include(inner, v.KernelModule); err != nil {
		t.Fatalf("Include: %v", err)
	}
	v.ConstSet(nil, "AliasOfInner", inner)

	snap := v.Describe()

	if snap.Platform.Engine != v.Platform().Engine {
		t.Errorf("Platform = %+v", snap.Platform)
	}
	if !sort.SliceIsSorted(snap.Classes, func(i, j int) bool { return snap.Classes[i].Name < snap.Classes[j].Name }) {
		t.Error("classes should be sorted by name")
	}
	if !sort.StringsAreSorted(snap.Symbols) {
		t.Error("symbols should be sorted")
	}

	info, ok := snap.Class("Outer::Inner")
	if !ok {
		t.Fatal("Outer::Inner should be described")
	}
	if info.Kind != "class" || info.Superclass != "Object" {
		t.Errorf("Kind/Superclass = %s/%s", info.Kind, info.Superclass)
	}
	if strings.Join(info.Methods, ",") != "alpha,zeta" {
		t.Errorf("Methods = %v", info.Methods)
	}
	if len(info.Includes) != 0 {
		t.Errorf("Includes = %v; Kernel is already inherited", info.Includes)
	}

	count := 0
	for _, c := range snap.Classes {
		if c.Name == "Outer::Inner" {
			count++
		}
		if c.Name == "AliasOfInner" {
			t.Error("aliases should not be described twice")
		}
	}
	if count != 1 {
		t.Errorf("Outer::Inner described %d times", count)
	}

	mod, ok := snap.Class("Outer")
	if !ok || mod.Kind != "module" || mod.Superclass != "" {
		t.Errorf("Outer = %+v", mod)
	}
	if len(mod.Constants) != 1 || mod.Constants[0] != "Inner" {
		t.Errorf("Outer constants = %v", mod.Constants)
	}
}

func TestDescribeObject(t *testing.T) {
	v := newTestVM(t)

	info, ok := v.DescribeClass("Object")
	if !ok {
		t.Fatal("Object should be described")
	}
	if strings.Join(info.Ancestors, ",") != "Object,Kernel,BasicObject" {
		t.Errorf("Ancestors = %v", info.Ancestors)
	}
	if len(info.Includes) != 1 || info.Includes[0] != "Kernel" {
		t.Errorf("Includes = %v", info.Includes)
	}

	if _, ok := v.DescribeClass("NoSuchClass"); ok {
		t.Error("unknown class should not be found")
	}
}
