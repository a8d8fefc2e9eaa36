package vm

import "sort"

// ---------------------------------------------------------------------------
// Introspection snapshot
// ---------------------------------------------------------------------------

// Snapshot is a serialisable description of a VM's class graph.
type Snapshot struct {
	Platform Platform    `cbor:"1,keyasint" json:"platform"`
	Classes  []ClassInfo `cbor:"2,keyasint" json:"classes"`
	Symbols  []string    `cbor:"3,keyasint" json:"symbols"`
	Globals  []string    `cbor:"4,keyasint,omitempty" json:"globals,omitempty"`
}

// ClassInfo describes one named class or module.
type ClassInfo struct {
	Name       string   `cbor:"1,keyasint" json:"name"`
	Kind       string   `cbor:"2,keyasint" json:"kind"`
	Superclass string   `cbor:"3,keyasint,omitempty" json:"superclass,omitempty"`
	Ancestors  []string `cbor:"4,keyasint" json:"ancestors"`
	Methods    []string `cbor:"5,keyasint,omitempty" json:"methods,omitempty"`
	Constants  []string `cbor:"6,keyasint,omitempty" json:"constants,omitempty"`
	Includes   []string `cbor:"7,keyasint,omitempty" json:"includes,omitempty"`
}

// Class looks a class up by its qualified name.
func (s *Snapshot) Class(name string) (*ClassInfo, bool) {
	for i := range s.Classes {
		if s.Classes[i].Name == name {
			return &s.Classes[i], true
		}
	}
	return nil, false
}

// Describe captures every named class and module reachable from Object's
// constants, plus all interned symbols. Classes and symbols are sorted.
func (vm *VM) Describe() *Snapshot {
	var classes []ClassInfo
	for _, c := range vm.namedClasses() {
		classes = append(classes, vm.describeClass(c))
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })

	syms := vm.Symbols.All()
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = s.id
	}
	sort.Strings(names)

	return &Snapshot{
		Platform: vm.platform,
		Classes:  classes,
		Symbols:  names,
		Globals:  vm.Globals.Names(),
	}
}

// DescribeClass returns the description of the class or module with the
// given qualified name.
func (vm *VM) DescribeClass(name string) (*ClassInfo, bool) {
	for _, c := range vm.namedClasses() {
		if c.path == name {
			info := vm.describeClass(c)
			return &info, true
		}
	}
	return nil, false
}

// namedClasses walks the constant namespace from Object, visiting every
// class under its canonical path once.
func (vm *VM) namedClasses() []*Class {
	var result []*Class
	seen := make(map[*Class]bool)
	var walk func(owner *Class)
	walk = func(owner *Class) {
		for _, name := range vm.Constants.Names(owner) {
			v, _ := vm.Constants.At(owner, name)
			c, ok := v.(*Class)
			if !ok || seen[c] || c.Owner != owner || c.Name != name {
				continue
			}
			seen[c] = true
			result = append(result, c)
			walk(c)
		}
	}
	walk(vm.ObjectClass)
	return result
}

func (vm *VM) describeClass(c *Class) ClassInfo {
	info := ClassInfo{Name: c.path, Kind: "class"}
	if c.IsModule() {
		info.Kind = "module"
	}
	if super := c.RealSuperclass(); super != nil && c.IsClass() {
		info.Superclass = super.String()
	}
	for _, a := range c.Ancestors() {
		info.Ancestors = append(info.Ancestors, a.String())
	}
	for _, m := range c.methods.Names() {
		info.Methods = append(info.Methods, m.id)
	}
	sort.Strings(info.Methods)
	info.Constants = vm.Constants.Names(c)
	for _, m := range c.Includes {
		info.Includes = append(info.Includes, m.String())
	}
	return info
}
