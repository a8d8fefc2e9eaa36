package vm

// ---------------------------------------------------------------------------
// Method registration
// ---------------------------------------------------------------------------

// methodTarget resolves where a definition lands: classes and modules take
// it themselves, plain instances redirect to their real class.
func (vm *VM) methodTarget(target Value) *Class {
	if c, ok := target.(*Class); ok {
		return c.Module()
	}
	return vm.RealClassOf(target)
}

// DefineMethod registers impl under name on target. Owner, name and arity
// are stamped onto impl only at its first registration, so registering an
// existing implementation under a new name aliases it.
func (vm *VM) DefineMethod(target Value, name string, impl *Method, arity int) {
	c := vm.methodTarget(target)
	sym := vm.Intern(name)
	impl.stamp(c, sym, arity)
	c.methods.Set(sym, impl)
	c.methods.Record(sym)
}

// Def wraps fn in a new Method and registers it on target.
func (vm *VM) Def(target Value, name string, arity int, fn Func) *Method {
	m := NewMethod(fn)
	vm.DefineMethod(target, name, m, arity)
	return m
}

// DefineSingletonMethod registers impl on target's singleton class.
func (vm *VM) DefineSingletonMethod(target Value, name string, impl *Method, arity int) error {
	meta, err := vm.SingletonClassOf(target)
	if err != nil {
		return err
	}
	vm.DefineMethod(meta, name, impl, arity)
	return nil
}

// Alias registers the implementation currently found for oldName on c
// under newName as well.
func (vm *VM) Alias(c *Class, newName, oldName string) error {
	m, _ := vm.FindMethod(c, vm.Intern(oldName))
	if m == nil || m.kind != MethodNormal {
		ex := vm.Raise(vm.NameErrorClass, "undefined method `%s' for class `%s'", oldName, c)
		ex.Method = oldName
		return ex
	}
	vm.DefineMethod(c, newName, m, m.arity)
	return nil
}

// InstallMethodMissing puts the method-missing marker into base's table
// for every name that has no entry there yet. Any receiver whose chain
// reaches base then forwards those names to method_missing instead of
// failing lookup.
func (vm *VM) InstallMethodMissing(base *Class, names ...string) {
	tbl := base.Module().methods
	for _, name := range names {
		sym := vm.Intern(name)
		if !tbl.Has(sym) {
			tbl.Set(sym, vm.mmMarker)
		}
	}
}

// UndefMethods hides each name on c: calls fail with NoMethodError even if
// an ancestor defines the method.
func (vm *VM) UndefMethods(c *Class, names ...string) {
	for _, name := range names {
		sym := vm.Intern(name)
		m := &Method{kind: MethodUndefined}
		m.fn = func(call *Call, args []Value) (Value, error) {
			return nil, call.VM.noMethod(sym, call.Self, "undefined method `%s' for %s")
		}
		m.stamp(c, sym, -1)
		c.Module().methods.Set(sym, m)
	}
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// FindMethod walks the chain from c and returns the first entry for name
// together with the node it was found in.
func (vm *VM) FindMethod(c *Class, name *Symbol) (*Method, *Class) {
	for k := c; k != nil; k = k.Superclass {
		if m := k.Methods().Lookup(name); m != nil {
			return m, k
		}
	}
	return nil, nil
}

// RespondTo reports whether v has a real implementation for name.
// Markers and undefined entries do not count.
func (vm *VM) RespondTo(v Value, name string) bool {
	sym, ok := vm.Symbols.Lookup(name)
	if !ok {
		return false
	}
	m, _ := vm.FindMethod(vm.orNil(v).Klass(), sym)
	return m != nil && m.kind == MethodNormal
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// Send invokes name on recv without a block.
func (vm *VM) Send(recv Value, name string, args ...Value) (Value, error) {
	return vm.Invoke(recv, vm.Intern(name), nil, args)
}

// SendWithBlock invokes name on recv passing blk.
func (vm *VM) SendWithBlock(recv Value, name string, blk *Proc, args ...Value) (Value, error) {
	return vm.Invoke(recv, vm.Intern(name), blk, args)
}

// Invoke looks name up from recv's effective class and calls the first
// entry found. A method-missing marker sends method_missing instead, with
// the requested name prepended to the arguments.
func (vm *VM) Invoke(recv Value, name *Symbol, blk *Proc, args []Value) (Value, error) {
	recv = vm.orNil(recv)
	m, _ := vm.FindMethod(recv.Klass(), name)
	if m == nil {
		vm.log.Criticalf("lookup of %s failed with no method_missing fallback", name.id)
		return nil, &FatalError{Method: name.id, Err: ErrNoFallback}
	}
	if m.kind == MethodMissingMarker {
		return vm.methodMissing(recv, name, blk, args)
	}
	return vm.call(m, recv, name, blk, args)
}

// methodMissing sends method_missing(name, args...) to recv.
func (vm *VM) methodMissing(recv Value, name *Symbol, blk *Proc, args []Value) (Value, error) {
	mm, _ := vm.FindMethod(recv.Klass(), vm.symMethodMissing)
	if mm == nil || mm.kind != MethodNormal {
		return nil, &FatalError{Method: name.id, Err: ErrNoFallback}
	}
	mmArgs := make([]Value, 0, len(args)+1)
	mmArgs = append(mmArgs, name)
	mmArgs = append(mmArgs, args...)
	return vm.call(mm, recv, vm.symMethodMissing, blk, mmArgs)
}

// SuperInvoke calls the implementation that calling overrides.
//
// Resolution is by identity in two phases. First the receiver's chain is
// walked to the node whose entry for the method's name is calling itself;
// this is where the executing method actually lives, which may be a module
// proxy or a class far above the receiver. Then the walk continues above
// that node to the next entry for the same name.
func (vm *VM) SuperInvoke(calling *Method, recv Value, blk *Proc, args []Value) (Value, error) {
	recv = vm.orNil(recv)
	name := calling.name
	if name == nil {
		return nil, vm.Raise(vm.NoMethodErrorClass, "super called outside of method")
	}

	k := recv.Klass()
	for ; k != nil; k = k.Superclass {
		if k.Methods().Lookup(name) == calling {
			break
		}
	}
	if k == nil {
		return nil, vm.noMethod(name, recv, "super: no superclass method `%s' for %s")
	}

	for k = k.Superclass; k != nil; k = k.Superclass {
		m := k.Methods().Lookup(name)
		if m == nil {
			continue
		}
		if m.kind == MethodMissingMarker {
			return vm.methodMissing(recv, name, blk, args)
		}
		return vm.call(m, recv, name, blk, args)
	}
	return nil, vm.noMethod(name, recv, "super: no superclass method `%s' for %s")
}

// call activates m. Returns addressed to this activation, and breaks out of
// a block whose carrier is this activation, end here. Every other error
// propagates.
func (vm *VM) call(m *Method, recv Value, name *Symbol, blk *Proc, args []Value) (Value, error) {
	if vm.depth >= vm.maxDepth {
		return nil, vm.Raise(vm.SystemStackErrorClass, "stack level too deep")
	}
	vm.depth++
	vm.frameSeq++
	c := &Call{VM: vm, Self: recv, Name: name, Method: m, Block: blk, frame: vm.frameSeq}
	if blk != nil && blk.carrier == 0 {
		blk.carrier = c.frame
	}
	defer func() {
		vm.depth--
		if blk != nil && blk.carrier == c.frame {
			blk.carrier = 0
		}
	}()

	result, err := m.fn(c, args)

	if err == nil {
		return vm.orNil(result), nil
	}
	switch sig := err.(type) {
	case *ReturnSignal:
		if sig.Target == m && (sig.Frame == 0 || sig.Frame == c.frame) {
			return vm.orNil(sig.Value), nil
		}
	case *BreakSignal:
		if blk != nil && (sig.Proc == nil || (sig.Proc == blk && blk.carrier == c.frame)) {
			return vm.orNil(sig.Value), nil
		}
	}
	return nil, err
}
