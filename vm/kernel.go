package vm

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Mechanism methods installed at boot
// ---------------------------------------------------------------------------

func (vm *VM) bootstrapKernel() {
	vm.registerBasicObjectMethods()
	vm.registerKernelMethods()
	vm.registerModuleMethods()
	vm.registerClassMethods()
	vm.registerExceptionMethods()
	vm.registerProcMethods()
}

func (vm *VM) registerBasicObjectMethods() {
	c := vm.BasicObjectClass

	vm.Def(c, "method_missing", -2, func(call *Call, args []Value) (Value, error) {
		name, ok := args[0].(*Symbol)
		if !ok {
			return nil, call.VM.Raise(call.VM.ArgumentErrorClass, "no method name given")
		}
		return nil, call.VM.noMethod(name, call.Self, "undefined method `%s' for %s")
	})
	vm.Def(c, "initialize", -1, func(call *Call, args []Value) (Value, error) {
		return call.VM.Nil, nil
	})
	vm.Def(c, "equal?", 1, func(call *Call, args []Value) (Value, error) {
		if err := call.VM.arity(args, 1); err != nil {
			return nil, err
		}
		return call.VM.Bool(args[0] == call.Self), nil
	})
	vm.Def(c, "==", 1, func(call *Call, args []Value) (Value, error) {
		if err := call.VM.arity(args, 1); err != nil {
			return nil, err
		}
		return call.VM.Bool(call.VM.Equal(call.Self, args[0])), nil
	})
}

func (vm *VM) registerKernelMethods() {
	k := vm.KernelModule

	vm.Def(k, "class", 0, func(call *Call, args []Value) (Value, error) {
		return call.VM.RealClassOf(call.Self), nil
	})
	vm.Def(k, "inspect", 0, func(call *Call, args []Value) (Value, error) {
		return call.VM.String(call.VM.Inspect(call.Self)), nil
	})
	vm.Def(k, "to_s", 0, func(call *Call, args []Value) (Value, error) {
		return call.VM.String(call.VM.ToS(call.Self)), nil
	})
	vm.Def(k, "respond_to?", 1, func(call *Call, args []Value) (Value, error) {
		if err := call.VM.arity(args, 1); err != nil {
			return nil, err
		}
		name, err := call.VM.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		return call.VM.Bool(call.VM.RespondTo(call.Self, name)), nil
	})
	vm.Def(k, "singleton_class", 0, func(call *Call, args []Value) (Value, error) {
		return call.VM.SingletonClassOf(call.Self)
	})
	vm.Def(k, "at_exit", 0, func(call *Call, args []Value) (Value, error) {
		if call.Block == nil {
			return nil, call.VM.Raise(call.VM.ArgumentErrorClass, "called without a block")
		}
		call.VM.AtExit(call.Block)
		return call.Block, nil
	})
}

func (vm *VM) registerModuleMethods() {
	m := vm.ModuleClass

	vm.Def(m, "name", 0, func(call *Call, args []Value) (Value, error) {
		c := call.Self.(*Class)
		if c.path == "" {
			return call.VM.Nil, nil
		}
		return call.VM.String(c.path), nil
	})
	toS := vm.Def(m, "to_s", 0, func(call *Call, args []Value) (Value, error) {
		return call.VM.String(call.Self.(*Class).String()), nil
	})
	vm.DefineMethod(m, "inspect", toS, 0)
	vm.Def(m, "ancestors", 0, func(call *Call, args []Value) (Value, error) {
		chain := call.Self.(*Class).Ancestors()
		elems := make([]Value, len(chain))
		for i, a := range chain {
			elems[i] = a
		}
		return call.VM.Array(elems...), nil
	})
	vm.Def(m, "include", -2, func(call *Call, args []Value) (Value, error) {
		if len(args) == 0 {
			return nil, call.VM.Raise(call.VM.ArgumentErrorClass, "wrong number of arguments (given 0, expected 1+)")
		}
		self := call.Self.(*Class)
		for i := len(args) - 1; i >= 0; i-- {
			mod, ok := args[i].(*Class)
			if !ok {
				return nil, call.VM.Raise(call.VM.TypeErrorClass, "wrong argument type %s (expected Module)", call.VM.RealClassOf(args[i]))
			}
			if err := call.VM.Include(self, mod); err != nil {
				return nil, err
			}
		}
		return self, nil
	})
	vm.Def(m, "instance_methods", -1, func(call *Call, args []Value) (Value, error) {
		inherit := len(args) == 0 || call.VM.Truthy(args[0])
		names := call.VM.InstanceMethods(call.Self.(*Class), inherit)
		elems := make([]Value, len(names))
		for i, n := range names {
			elems[i] = n
		}
		return call.VM.Array(elems...), nil
	})
	vm.Def(m, "const_get", 1, func(call *Call, args []Value) (Value, error) {
		if err := call.VM.arity(args, 1); err != nil {
			return nil, err
		}
		name, err := call.VM.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		return call.VM.ConstGet(call.Self, name)
	})
	vm.Def(m, "const_set", 2, func(call *Call, args []Value) (Value, error) {
		if err := call.VM.arity(args, 2); err != nil {
			return nil, err
		}
		name, err := call.VM.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		if name == "" || name[0] < 'A' || name[0] > 'Z' {
			ex := call.VM.Raise(call.VM.NameErrorClass, "wrong constant name %s", name)
			ex.Method = name
			return nil, ex
		}
		call.VM.ConstSet(call.Self, name, args[1])
		return args[1], nil
	})
}

func (vm *VM) registerClassMethods() {
	c := vm.ClassClass

	vm.Def(c, "allocate", 0, func(call *Call, args []Value) (Value, error) {
		return call.VM.Allocate(call.Self.(*Class))
	})
	vm.Def(c, "new", -1, func(call *Call, args []Value) (Value, error) {
		obj, err := call.VM.Allocate(call.Self.(*Class))
		if err != nil {
			return nil, err
		}
		if _, err := call.VM.Invoke(obj, call.VM.symInitialize, call.Block, args); err != nil {
			return nil, err
		}
		return obj, nil
	})
	vm.Def(c, "superclass", 0, func(call *Call, args []Value) (Value, error) {
		if super := call.Self.(*Class).RealSuperclass(); super != nil {
			return super, nil
		}
		return call.VM.Nil, nil
	})
}

func (vm *VM) registerExceptionMethods() {
	e := vm.ExceptionClass

	vm.Def(e, "initialize", -1, func(call *Call, args []Value) (Value, error) {
		ex, ok := call.Self.(*Exception)
		if !ok {
			return call.VM.Nil, nil
		}
		if len(args) > 0 {
			ex.Message = call.VM.ToS(args[0])
		}
		return call.VM.Nil, nil
	})
	message := vm.Def(e, "message", 0, func(call *Call, args []Value) (Value, error) {
		if ex, ok := call.Self.(*Exception); ok {
			return call.VM.String(ex.Message), nil
		}
		return call.VM.String(""), nil
	})
	vm.DefineMethod(e, "to_s", message, 0)
}

func (vm *VM) registerProcMethods() {
	vm.Def(vm.ProcClass, "call", -1, func(call *Call, args []Value) (Value, error) {
		return call.VM.Yield(call.Self.(*Proc), args...)
	})
}

// ---------------------------------------------------------------------------
// Helpers shared by the mechanism methods
// ---------------------------------------------------------------------------

// Allocate creates an uninitialised instance of c.
func (vm *VM) Allocate(c *Class) (Value, error) {
	switch {
	case c.IsSingleton():
		return nil, vm.Raise(vm.TypeErrorClass, "can't create instance of singleton class")
	case !c.IsClass():
		return nil, vm.Raise(vm.NoMethodErrorClass, "undefined method `new' for %s", c)
	case c.IsSubclassOf(vm.ExceptionClass):
		return &Exception{header: header{flags: TObject, klass: c}, Message: c.String()}, nil
	case c == vm.ClassClass:
		return vm.newClass(vm.ObjectClass), nil
	case c == vm.ModuleClass:
		return vm.newModule(), nil
	}
	return NewObject(c), nil
}

// InstanceMethods returns the names c responds to. With inherit false only
// c's own definitions are listed.
func (vm *VM) InstanceMethods(c *Class, inherit bool) []*Symbol {
	var chain []*Class
	if inherit {
		for k := c; k != nil; k = k.Superclass {
			chain = append(chain, k)
		}
	} else {
		chain = []*Class{c.Module()}
	}

	seen := make(map[*Symbol]bool)
	var result []*Symbol
	for _, k := range chain {
		for _, name := range k.Methods().Names() {
			if seen[name] {
				continue
			}
			seen[name] = true
			if m, _ := vm.FindMethod(c, name); m != nil && m.kind == MethodNormal {
				result = append(result, name)
			}
		}
	}
	return result
}

// Equal is the default identity-plus-payload equality: primitive values
// compare by their host payload, everything else by identity.
func (vm *VM) Equal(a, b Value) bool {
	if a == b {
		return true
	}
	oa, ok1 := a.(*Object)
	ob, ok2 := b.(*Object)
	if !ok1 || !ok2 || oa.flags != ob.flags {
		return false
	}
	if sa, ok := StringOf(oa); ok {
		sb, ok := StringOf(ob)
		return ok && sa == sb
	}
	if na, ok := NumberOf(oa); ok {
		nb, ok := NumberOf(ob)
		return ok && na == nb
	}
	return false
}

// Inspect returns the default developer-facing description of v.
func (vm *VM) Inspect(v Value) string {
	v = vm.orNil(v)
	switch x := v.(type) {
	case *Symbol:
		return ":" + x.id
	case *Class:
		return x.String()
	case *Exception:
		return "#<" + x.Class().String() + ": " + x.Message + ">"
	case *Proc:
		return "#<Proc>"
	case *Object:
		switch {
		case x == vm.Nil:
			return "nil"
		case x == vm.True:
			return "true"
		case x == vm.False:
			return "false"
		case x == vm.TopSelf:
			return "main"
		case x.flags.Has(TString):
			if s, ok := StringOf(x); ok {
				return strconv.Quote(s)
			}
		case x.flags.Has(TArray):
			elems, _ := x.Data.([]Value)
			parts := make([]string, len(elems))
			for i, e := range elems {
				parts[i] = vm.Inspect(e)
			}
			return "[" + strings.Join(parts, ", ") + "]"
		}
	}
	return vm.ToS(v)
}

// ToS returns the default user-facing string form of v.
func (vm *VM) ToS(v Value) string {
	v = vm.orNil(v)
	switch x := v.(type) {
	case *Symbol:
		return x.id
	case *Class:
		return x.String()
	case *Exception:
		return x.Message
	case *Object:
		switch {
		case x == vm.Nil:
			return ""
		case x == vm.True:
			return "true"
		case x == vm.False:
			return "false"
		case x == vm.TopSelf:
			return "main"
		case x.flags.Has(TString):
			if s, ok := StringOf(x); ok {
				return s
			}
		case x.flags.Has(TNumber):
			if f, ok := NumberOf(x); ok {
				return formatNumber(f)
			}
		}
	}
	return "#<" + vm.RealClassOf(v).String() + ">"
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// arity checks that exactly n arguments were passed.
func (vm *VM) arity(args []Value, n int) error {
	if len(args) != n {
		return vm.Raise(vm.ArgumentErrorClass, "wrong number of arguments (given %d, expected %d)", len(args), n)
	}
	return nil
}

// nameArg accepts a Symbol or String naming a method or constant.
func (vm *VM) nameArg(v Value) (string, error) {
	if sym, ok := v.(*Symbol); ok {
		return sym.id, nil
	}
	if s, ok := StringOf(v); ok {
		return s, nil
	}
	return "", vm.Raise(vm.TypeErrorClass, "%s is not a symbol nor a string", vm.Inspect(v))
}
