package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Hosted exceptions
// ---------------------------------------------------------------------------

// Exception is a raised exception of the hosted language. It is both a Go
// error, propagated through explicit returns, and a runtime value, so the
// hosted program's rescue machinery can treat it as an object.
type Exception struct {
	header

	Message string

	// Method and Receiver are set for NameError and NoMethodError: the
	// name that failed and the inspected receiver.
	Method   string
	Receiver string
}

// Class returns the exception's real class.
func (e *Exception) Class() *Class {
	return e.klass.Real()
}

// KindOf reports whether the exception is an instance of c or a subclass.
func (e *Exception) KindOf(c *Class) bool {
	return e.klass.IsSubclassOf(c)
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Class())
}

// Raise creates an exception of class c. Callers return it as their error.
func (vm *VM) Raise(c *Class, format string, args ...any) *Exception {
	return &Exception{
		header:  header{flags: TObject, klass: c},
		Message: fmt.Sprintf(format, args...),
	}
}

// IsKindOf reports whether err carries a hosted exception of class c.
func IsKindOf(err error, c *Class) bool {
	var ex *Exception
	return errors.As(err, &ex) && ex.KindOf(c)
}

// noMethod builds a NoMethodError carrying the method name and receiver.
func (vm *VM) noMethod(name *Symbol, recv Value, format string) *Exception {
	desc := vm.Inspect(recv)
	ex := vm.Raise(vm.NoMethodErrorClass, format, name.id, desc)
	ex.Method = name.id
	ex.Receiver = desc
	return ex
}

// ---------------------------------------------------------------------------
// Fatal configuration errors
// ---------------------------------------------------------------------------

// ErrNoFallback reports that lookup failed and no method_missing marker was
// reachable. It means the runtime was bootstrapped incorrectly.
var ErrNoFallback = errors.New("no method_missing fallback installed")

// FatalError is a broken-bootstrap condition. It is never converted into a
// hosted exception and should abort the program.
type FatalError struct {
	Method string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Method == "" {
		return "vm: fatal: " + e.Err.Error()
	}
	return fmt.Sprintf("vm: fatal: %s: %v", e.Method, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Exception class hierarchy
// ---------------------------------------------------------------------------

func (vm *VM) bootstrapExceptionClasses() {
	vm.ExceptionClass = vm.bootClass("Exception", vm.ObjectClass)

	vm.ScriptErrorClass = vm.bootClass("ScriptError", vm.ExceptionClass)
	vm.NotImplementedErrorClass = vm.bootClass("NotImplementedError", vm.ScriptErrorClass)

	vm.StandardErrorClass = vm.bootClass("StandardError", vm.ExceptionClass)
	vm.NameErrorClass = vm.bootClass("NameError", vm.StandardErrorClass)
	vm.NoMethodErrorClass = vm.bootClass("NoMethodError", vm.NameErrorClass)
	vm.ArgumentErrorClass = vm.bootClass("ArgumentError", vm.StandardErrorClass)
	vm.TypeErrorClass = vm.bootClass("TypeError", vm.StandardErrorClass)
	vm.RuntimeErrorClass = vm.bootClass("RuntimeError", vm.StandardErrorClass)
	vm.LocalJumpErrorClass = vm.bootClass("LocalJumpError", vm.StandardErrorClass)
	vm.IndexErrorClass = vm.bootClass("IndexError", vm.StandardErrorClass)
	vm.KeyErrorClass = vm.bootClass("KeyError", vm.IndexErrorClass)
	vm.RangeErrorClass = vm.bootClass("RangeError", vm.StandardErrorClass)

	vm.SystemStackErrorClass = vm.bootClass("SystemStackError", vm.ExceptionClass)
}
