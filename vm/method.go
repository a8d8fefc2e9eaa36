package vm

// Func is the calling convention for every method body. The call carries
// the receiver and the name the method was invoked under; args are the
// positional arguments.
type Func func(c *Call, args []Value) (Value, error)

// MethodKind distinguishes real methods from the sentinel entries the
// dispatch engine installs in method tables.
type MethodKind int

const (
	// MethodNormal is a real implementation.
	MethodNormal MethodKind = iota
	// MethodMissingMarker forwards the call to method_missing.
	MethodMissingMarker
	// MethodUndefined fails with NoMethodError, hiding any inherited
	// implementation.
	MethodUndefined
)

var methodKindNames = [...]string{"normal", "method_missing", "undefined"}

func (k MethodKind) String() string {
	if k < MethodNormal || k > MethodUndefined {
		return "unknown"
	}
	return methodKindNames[k]
}

// Method is a registered implementation. Its pointer is its identity:
// super resolution compares table entries against the executing *Method,
// never names or owners.
//
// Owner, name and arity are stamped at the first registration and never
// change afterwards, even when the same implementation is registered again
// under another name.
type Method struct {
	owner   *Class
	name    *Symbol
	arity   int
	stamped bool
	kind    MethodKind
	fn      Func
}

// NewMethod wraps fn as an unregistered implementation.
func NewMethod(fn Func) *Method {
	return &Method{fn: fn, arity: -1}
}

// Owner returns the class the method was first registered on.
func (m *Method) Owner() *Class { return m.owner }

// Name returns the name the method was first registered under.
func (m *Method) Name() *Symbol { return m.name }

// Arity returns the declared arity (advisory; -1 for variadic).
func (m *Method) Arity() int { return m.arity }

// Kind returns whether m is a real method or a sentinel.
func (m *Method) Kind() MethodKind { return m.kind }

// stamp records metadata the first time m is registered.
func (m *Method) stamp(owner *Class, name *Symbol, arity int) {
	if m.stamped {
		return
	}
	m.owner = owner
	m.name = name
	m.arity = arity
	m.stamped = true
}

// String returns "Owner#name".
func (m *Method) String() string {
	owner, name := "?", "?"
	if m.owner != nil {
		owner = m.owner.String()
	}
	if m.name != nil {
		name = m.name.id
	}
	return owner + "#" + name
}

// ---------------------------------------------------------------------------
// Call: one activation of a method
// ---------------------------------------------------------------------------

// Call is passed to every method body. It identifies the receiver, the
// name used at the call site, the executing implementation and the frame.
type Call struct {
	VM     *VM
	Self   Value
	Name   *Symbol
	Method *Method
	Block  *Proc

	frame uint64
}

// Frame returns the unique id of this activation.
func (c *Call) Frame() uint64 { return c.frame }

// Super invokes the next implementation of the executing method above the
// class it was found in, passing the current block along.
func (c *Call) Super(args ...Value) (Value, error) {
	return c.VM.SuperInvoke(c.Method, c.Self, c.Block, args)
}

// Return produces the signal that returns v from this activation. Method
// bodies return it as their error.
func (c *Call) Return(v Value) error {
	return &ReturnSignal{Value: v, Target: c.Method, Frame: c.frame}
}

// Yield invokes the block passed to this activation.
func (c *Call) Yield(args ...Value) (Value, error) {
	if c.Block == nil {
		return nil, c.VM.Raise(c.VM.LocalJumpErrorClass, "no block given (yield)")
	}
	return c.VM.Yield(c.Block, args...)
}

// NewProc creates a block whose home is this activation, so that returns
// raised inside it leave this method.
func (c *Call) NewProc(fn BlockFunc) *Proc {
	p := c.VM.NewProc(c.Self, fn)
	p.Home = c.Method
	p.homeFrame = c.frame
	return p
}
