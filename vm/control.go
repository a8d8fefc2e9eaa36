package vm

// ---------------------------------------------------------------------------
// Non-local control flow
// ---------------------------------------------------------------------------
//
// return, break and next inside blocks are signals that travel up the Go
// call stack as ordinary error values. Every frame between the raise and
// the frame that handles the signal simply returns the error it received,
// so no frame can swallow a signal addressed to another.
//
// Each raise allocates a fresh signal. Nothing is shared between raises, so
// signals stay correct even if several VMs run on different goroutines.

// ReturnSignal returns Value from the activation of Target. When Frame is
// non-zero only that exact activation handles the signal; otherwise the
// innermost activation of Target does.
type ReturnSignal struct {
	Value  Value
	Target *Method
	Frame  uint64
}

func (s *ReturnSignal) Error() string { return "unexpected return" }

// BreakSignal terminates the call that first received Proc as its block,
// making Value that call's result. Calls the block was passed on to do not
// catch it. A nil Proc matches any block-passing call.
type BreakSignal struct {
	Value Value
	Proc  *Proc
}

func (s *BreakSignal) Error() string { return "break from proc-closure" }

// NextSignal ends the current block invocation with Value.
type NextSignal struct {
	Value Value
}

func (s *NextSignal) Error() string { return "unexpected next" }

// RaiseBreak returns a break signal carrying v.
func RaiseBreak(v Value) error {
	return &BreakSignal{Value: v}
}

// RaiseReturn returns a signal that exits the innermost activation of
// owning with v as its result.
func RaiseReturn(v Value, owning *Method) error {
	return &ReturnSignal{Value: v, Target: owning}
}

// RaiseNext returns a next signal carrying v.
func RaiseNext(v Value) error {
	return &NextSignal{Value: v}
}

// ControlValue reports whether err is a control-flow signal and, if so,
// the value it carries.
func ControlValue(err error) (Value, bool) {
	switch sig := err.(type) {
	case *ReturnSignal:
		return sig.Value, true
	case *BreakSignal:
		return sig.Value, true
	case *NextSignal:
		return sig.Value, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Proc: blocks and closures
// ---------------------------------------------------------------------------

// BlockFunc is the body of a block. Self is the self of the block's home.
type BlockFunc func(self Value, args []Value) (Value, error)

// Proc is a block value. A proc created from a Call remembers that
// activation as its home; returns raised through the proc leave it.
type Proc struct {
	header

	Self Value
	Home *Method

	fn        BlockFunc
	homeFrame uint64

	// carrier is the frame of the active call the block was first passed
	// to, or 0 when no such call is running.
	carrier uint64
}

// NewProc creates a free-standing proc with no home activation.
func (vm *VM) NewProc(self Value, fn BlockFunc) *Proc {
	if self == nil {
		self = vm.Nil
	}
	return &Proc{
		header: header{flags: TProc, klass: vm.ProcClass},
		Self:   self,
		fn:     fn,
	}
}

// Return produces the signal that returns v from the proc's home.
func (p *Proc) Return(v Value) error {
	return &ReturnSignal{Value: v, Target: p.Home, Frame: p.homeFrame}
}

// Break produces the signal that terminates the call p was passed to.
func (p *Proc) Break(v Value) error {
	return &BreakSignal{Value: v, Proc: p}
}

// Next produces the signal that ends the current invocation of p.
func (p *Proc) Next(v Value) error {
	return &NextSignal{Value: v}
}

// Yield invokes p. A next raised by the block ends this invocation; every
// other signal propagates to the caller.
func (vm *VM) Yield(p *Proc, args ...Value) (Value, error) {
	result, err := p.fn(p.Self, args)
	if err != nil {
		if sig, ok := err.(*NextSignal); ok {
			return vm.orNil(sig.Value), nil
		}
		return nil, err
	}
	return vm.orNil(result), nil
}

// orNil maps Go nil to the runtime nil object.
func (vm *VM) orNil(v Value) Value {
	if v == nil {
		return vm.Nil
	}
	return v
}
