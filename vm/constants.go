package vm

import (
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

type constKey struct {
	owner *Class
	name  string
}

// ConstantStore maps (owner, name) to a value. Entries are created on first
// assignment, overwritten on reassignment and never removed.
type ConstantStore struct {
	entries map[constKey]Value
	order   map[*Class][]string
}

// NewConstantStore creates an empty constant store.
func NewConstantStore() *ConstantStore {
	return &ConstantStore{
		entries: make(map[constKey]Value),
		order:   make(map[*Class][]string),
	}
}

// At returns the constant stored directly on owner.
func (cs *ConstantStore) At(owner *Class, name string) (Value, bool) {
	v, ok := cs.entries[constKey{owner, name}]
	return v, ok
}

// Set stores a constant directly on owner.
func (cs *ConstantStore) Set(owner *Class, name string, v Value) {
	k := constKey{owner, name}
	if _, ok := cs.entries[k]; !ok {
		cs.order[owner] = append(cs.order[owner], name)
	}
	cs.entries[k] = v
}

// Names returns the constants defined directly on owner, in definition
// order.
func (cs *ConstantStore) Names(owner *Class) []string {
	names := cs.order[owner]
	result := make([]string, len(names))
	copy(result, names)
	return result
}

// Len returns the number of constants across all owners.
func (cs *ConstantStore) Len() int {
	return len(cs.entries)
}

// ConstSet assigns a constant on base. An unnamed class or module takes the
// constant's name.
func (vm *VM) ConstSet(base Value, name string, v Value) {
	owner := vm.namespaceFor(base)
	if c, ok := v.(*Class); ok && !c.IsSingleton() && !c.IsProxy() {
		c.setName(owner, name, vm.ObjectClass)
	}
	vm.Constants.Set(owner, name, vm.orNil(v))
}

// ConstGet resolves name from base: base itself, then its ancestors, then
// Object.
func (vm *VM) ConstGet(base Value, name string) (Value, error) {
	if v, ok := vm.lookupConst(vm.namespaceFor(base), name); ok {
		return v, nil
	}
	ex := vm.Raise(vm.NameErrorClass, "uninitialized constant %s", name)
	ex.Method = name
	return nil, ex
}

// ConstGetPath resolves a qualified path such as "Outer::Inner" from Object.
// Every segment but the last must name a class or module.
func (vm *VM) ConstGetPath(path string) (Value, error) {
	var cur Value
	for i, part := range strings.Split(strings.TrimPrefix(path, "::"), "::") {
		if i > 0 {
			if _, ok := cur.(*Class); !ok {
				return nil, vm.Raise(vm.TypeErrorClass, "%s is not a class/module", vm.Inspect(cur))
			}
		}
		next, err := vm.ConstGet(cur, part)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// ConstDefined reports whether ConstGet would succeed.
func (vm *VM) ConstDefined(base Value, name string) bool {
	_, ok := vm.lookupConst(vm.namespaceFor(base), name)
	return ok
}

func (vm *VM) lookupConst(owner *Class, name string) (Value, bool) {
	for _, k := range owner.Ancestors() {
		if v, ok := vm.Constants.At(k, name); ok {
			return v, true
		}
	}
	return vm.Constants.At(vm.ObjectClass, name)
}

// ---------------------------------------------------------------------------
// Class variables
// ---------------------------------------------------------------------------

// ClassVarScope selects how class variables are shared.
type ClassVarScope int

const (
	// ScopeHierarchy shares a class variable between the class that first
	// assigned it and all of its descendants.
	ScopeHierarchy ClassVarScope = iota
	// ScopeFlat keeps one table for the whole runtime, keyed by name only.
	ScopeFlat
)

func (s ClassVarScope) String() string {
	if s == ScopeFlat {
		return "flat"
	}
	return "hierarchy"
}

// ParseClassVarScope parses "hierarchy" or "flat". The empty string means
// hierarchy.
func ParseClassVarScope(s string) (ClassVarScope, error) {
	switch s {
	case "", "hierarchy":
		return ScopeHierarchy, nil
	case "flat":
		return ScopeFlat, nil
	}
	return ScopeHierarchy, fmt.Errorf("unknown class variable scope %q", s)
}

// ClassVarStore holds class variables.
type ClassVarStore struct {
	scope ClassVarScope
	vars  map[constKey]Value
}

// NewClassVarStore creates an empty store using scope.
func NewClassVarStore(scope ClassVarScope) *ClassVarStore {
	return &ClassVarStore{scope: scope, vars: make(map[constKey]Value)}
}

// Scope returns the sharing mode.
func (cv *ClassVarStore) Scope() ClassVarScope {
	return cv.scope
}

// owner returns the node that holds name as seen from c, or nil.
func (cv *ClassVarStore) owner(c *Class, name string) *Class {
	for _, k := range c.Ancestors() {
		if _, ok := cv.vars[constKey{k, name}]; ok {
			return k
		}
	}
	return nil
}

func (cv *ClassVarStore) get(c *Class, name string) (Value, bool) {
	if cv.scope == ScopeFlat {
		v, ok := cv.vars[constKey{nil, name}]
		return v, ok
	}
	if o := cv.owner(c, name); o != nil {
		return cv.vars[constKey{o, name}], true
	}
	return nil, false
}

func (cv *ClassVarStore) set(c *Class, name string, v Value) {
	if cv.scope == ScopeFlat {
		cv.vars[constKey{nil, name}] = v
		return
	}
	if o := cv.owner(c, name); o != nil {
		c = o
	}
	cv.vars[constKey{c, name}] = v
}

// Names returns the class variables visible from c, sorted.
func (cv *ClassVarStore) Names(c *Class) []string {
	seen := make(map[string]bool)
	for k := range cv.vars {
		if cv.scope == ScopeFlat || c.chainHas(k.owner) {
			seen[k.name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CVarGet returns the class variable name as seen from base, or nil when it
// has never been assigned.
func (vm *VM) CVarGet(base Value, name string) Value {
	v, ok := vm.ClassVars.get(vm.namespaceFor(base), name)
	if !ok {
		return vm.Nil
	}
	return v
}

// CVarSet assigns a class variable and returns the value.
func (vm *VM) CVarSet(base Value, name string, v Value) Value {
	v = vm.orNil(v)
	vm.ClassVars.set(vm.namespaceFor(base), name, v)
	return v
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

// GlobalStore holds global variables. A virtual global is computed by its
// getter on every read and cannot be assigned.
type GlobalStore struct {
	vars    map[string]Value
	virtual map[string]func() Value
}

// NewGlobalStore creates an empty global store.
func NewGlobalStore() *GlobalStore {
	return &GlobalStore{
		vars:    make(map[string]Value),
		virtual: make(map[string]func() Value),
	}
}

// Names returns all global names, sorted.
func (gs *GlobalStore) Names() []string {
	names := make([]string, 0, len(gs.vars)+len(gs.virtual))
	for n := range gs.vars {
		names = append(names, n)
	}
	for n := range gs.virtual {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GVarGet returns a global, nil when unset.
func (vm *VM) GVarGet(name string) Value {
	if get, ok := vm.Globals.virtual[name]; ok {
		return vm.orNil(get())
	}
	if v, ok := vm.Globals.vars[name]; ok {
		return v
	}
	return vm.Nil
}

// GVarSet assigns a global and returns the value.
func (vm *VM) GVarSet(name string, v Value) (Value, error) {
	if _, ok := vm.Globals.virtual[name]; ok {
		return nil, vm.Raise(vm.NameErrorClass, "%s is a read-only variable", name)
	}
	v = vm.orNil(v)
	vm.Globals.vars[name] = v
	return v, nil
}

// DefineVirtualGVar installs a global whose value is computed by get.
func (vm *VM) DefineVirtualGVar(name string, get func() Value) {
	vm.Globals.virtual[name] = get
}
