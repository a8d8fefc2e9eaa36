package vm

// Object is a plain instance or a primitive host value wrapped for the
// runtime.
//
// Instance variables live in a map keyed by name. Primitive payloads
// (strings, numbers, slices) are stored in Data by the type-tagging layer.
type Object struct {
	header

	ivars map[string]Value

	// Data holds the host representation of primitive values.
	Data any
}

// NewObject allocates a plain instance of class c.
func NewObject(c *Class) *Object {
	return &Object{header: header{flags: TObject, klass: c}}
}

// Wrap tags a host value so it can be used as a receiver. The class must be
// the real class for the value; a singleton class is attached lazily if one
// is ever requested.
func Wrap(tag TypeTag, c *Class, data any) *Object {
	return &Object{header: header{flags: tag, klass: c}, Data: data}
}

// IVarGet returns an instance variable, or nil when unset.
func (o *Object) IVarGet(name string) Value {
	if v, ok := o.ivars[name]; ok {
		return v
	}
	return nil
}

// IVarSet assigns an instance variable.
func (o *Object) IVarSet(name string, v Value) {
	if o.ivars == nil {
		o.ivars = make(map[string]Value)
	}
	o.ivars[name] = v
}

// IVarNames returns the names of assigned instance variables.
func (o *Object) IVarNames() []string {
	names := make([]string, 0, len(o.ivars))
	for n := range o.ivars {
		names = append(names, n)
	}
	return names
}

// ---------------------------------------------------------------------------
// Wrapping helpers for the core primitive classes
// ---------------------------------------------------------------------------

// String wraps a Go string as a String value.
func (vm *VM) String(s string) *Object {
	return Wrap(TString, vm.StringClass, s)
}

// Number wraps a float64 as a Numeric value.
func (vm *VM) Number(f float64) *Object {
	return Wrap(TNumber, vm.NumericClass, f)
}

// Array wraps a slice of values as an Array value.
func (vm *VM) Array(elems ...Value) *Object {
	return Wrap(TArray, vm.ArrayClass, elems)
}

// Bool returns the runtime true or false object.
func (vm *VM) Bool(b bool) *Object {
	if b {
		return vm.True
	}
	return vm.False
}

// Truthy reports whether v counts as true: everything except nil and false.
func (vm *VM) Truthy(v Value) bool {
	return v != nil && v != Value(vm.Nil) && v != Value(vm.False)
}

// StringOf returns the Go string held by a String value.
func StringOf(v Value) (string, bool) {
	o, ok := v.(*Object)
	if !ok || !o.flags.Has(TString) {
		return "", false
	}
	s, ok := o.Data.(string)
	return s, ok
}

// NumberOf returns the float64 held by a Numeric value. Payloads wrapped
// from any Go integer or float kind are accepted.
func NumberOf(v Value) (float64, bool) {
	o, ok := v.(*Object)
	if !ok || !o.flags.Has(TNumber) {
		return 0, false
	}
	switch n := o.Data.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// ArrayOf returns the elements held by an Array value.
func ArrayOf(v Value) ([]Value, bool) {
	o, ok := v.(*Object)
	if !ok || !o.flags.Has(TArray) {
		return nil, false
	}
	elems, ok := o.Data.([]Value)
	return elems, ok
}
