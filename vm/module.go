package vm

// ---------------------------------------------------------------------------
// Class graph construction
// ---------------------------------------------------------------------------

// newClass allocates a class node linked under super. It is not yet bound
// to a constant.
func (vm *VM) newClass(super *Class) *Class {
	return &Class{
		header:     header{flags: TClass, klass: vm.ClassClass},
		Superclass: super,
		methods:    NewMethodTable(),
	}
}

// newModule allocates an unnamed module.
func (vm *VM) newModule() *Class {
	return &Class{
		header:  header{flags: TModule, klass: vm.ModuleClass},
		methods: NewMethodTable(),
	}
}

// namespaceFor resolves the owner of a definition. Plain instances resolve
// to their real class so that a definition made in an instance context
// nests under that instance's class; nil means the top level.
func (vm *VM) namespaceFor(owner Value) *Class {
	if owner == nil || owner == Value(vm.Nil) {
		return vm.ObjectClass
	}
	if c, ok := owner.(*Class); ok {
		return c
	}
	return vm.RealClassOf(owner)
}

// DefineClass returns the class named name under owner, creating it as a
// subclass of super on first definition. A nil super means Object.
//
// Reopening an existing class is allowed and returns the same object.
// Reopening with an explicit superclass that differs from the original is a
// TypeError, as is reopening a name bound to something other than a class.
func (vm *VM) DefineClass(owner Value, name string, super *Class) (*Class, error) {
	base := vm.namespaceFor(owner)

	explicit := super != nil
	if !explicit {
		super = vm.ObjectClass
	}

	if existing, ok := vm.Constants.At(base, name); ok {
		c, isClass := existing.(*Class)
		if !isClass || !c.IsClass() || c.IsSingleton() {
			return nil, vm.Raise(vm.TypeErrorClass, "%s is not a class", name)
		}
		if explicit && c.RealSuperclass() != super {
			return nil, vm.Raise(vm.TypeErrorClass, "superclass mismatch for class %s", name)
		}
		return c, nil
	}

	if super.IsSingleton() {
		return nil, vm.Raise(vm.TypeErrorClass, "can't make subclass of singleton class")
	}
	if !super.IsClass() {
		return nil, vm.Raise(vm.TypeErrorClass, "superclass must be a Class (%s given)", super)
	}

	c := vm.newClass(super)
	vm.ConstSet(base, name, c)
	vm.log.Debugf("defined class %s < %s", c.Path(), super.Path())
	return c, nil
}

// DefineModule returns the module named name under owner, creating it on
// first definition.
func (vm *VM) DefineModule(owner Value, name string) (*Class, error) {
	base := vm.namespaceFor(owner)

	if existing, ok := vm.Constants.At(base, name); ok {
		m, isModule := existing.(*Class)
		if !isModule || !m.IsModule() {
			return nil, vm.Raise(vm.TypeErrorClass, "%s is not a module", name)
		}
		return m, nil
	}

	m := vm.newModule()
	vm.ConstSet(base, name, m)
	vm.log.Debugf("defined module %s", m.Path())
	return m, nil
}

// RealClassOf returns the nearest user-visible class of v, skipping any
// singleton class and inclusion proxies.
func (vm *VM) RealClassOf(v Value) *Class {
	return v.Klass().Real()
}

// SingletonClassOf returns the singleton class of v, creating it on first
// request and splicing it in as v's effective class.
//
// A class's singleton class inherits from the singleton class of its
// superclass, so class-level methods are inherited. nil, true and false
// share their ordinary class; symbols and numbers cannot have one.
func (vm *VM) SingletonClassOf(v Value) (*Class, error) {
	switch v {
	case Value(vm.Nil):
		return vm.NilClass, nil
	case Value(vm.True), Value(vm.False):
		return vm.BooleanClass, nil
	}
	if v.Flags()&(TSymbol|TNumber) != 0 {
		return nil, vm.Raise(vm.TypeErrorClass, "can't define singleton")
	}

	k := v.Klass()
	if k.IsSingleton() && k.attached == v {
		return k, nil
	}

	super := k
	if c, ok := v.(*Class); ok && c.IsClass() && !c.IsSingleton() {
		if rs := c.RealSuperclass(); rs != nil {
			meta, err := vm.SingletonClassOf(rs)
			if err != nil {
				return nil, err
			}
			super = meta
		} else {
			super = vm.ClassClass
		}
	}

	meta := &Class{
		header:     header{flags: TClass | FlSingleton, klass: vm.ClassClass},
		Superclass: super,
		methods:    NewMethodTable(),
		attached:   v,
	}
	v.setKlass(meta)
	return meta, nil
}

// Include mixes module m into c by splicing an inclusion proxy directly
// above c. Modules that m itself includes follow m's proxy. A module that
// is already in c's chain is not included twice.
func (vm *VM) Include(c, m *Class) error {
	if !m.IsModule() {
		return vm.Raise(vm.TypeErrorClass, "wrong argument type %s (expected Module)", m)
	}

	mods := []*Class{m}
	for k := m.Superclass; k != nil; k = k.Superclass {
		if k.IsProxy() {
			mods = append(mods, k.forwards)
		}
	}

	if c.chainHas(m) {
		return nil
	}

	at := c
	for _, mod := range mods {
		if c.chainHas(mod) {
			continue
		}
		proxy := &Class{
			header:     header{flags: TIClass, klass: mod.klass},
			Superclass: at.Superclass,
			forwards:   mod,
		}
		at.Superclass = proxy
		at = proxy
	}
	c.Includes = append(c.Includes, m)
	vm.log.Debugf("included %s into %s", m, c)
	return nil
}
