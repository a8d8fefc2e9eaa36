package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Controlled execution
// ---------------------------------------------------------------------------

// Run executes fn as a top-level unit of work.
//
// A return, break or next signal that reaches this point has no frame left
// to handle it; its value becomes the result. Hosted exceptions are logged
// and returned. A Go panic is recovered into an error and the call depth is
// restored, so the VM stays usable afterwards.
func (vm *VM) Run(fn func() (Value, error)) (result Value, err error) {
	depth := vm.depth
	defer func() {
		if r := recover(); r != nil {
			vm.depth = depth
			vm.log.Errorf("recovered panic: %v", r)
			result, err = nil, fmt.Errorf("vm: panic: %v", r)
		}
	}()

	result, err = fn()
	if err == nil {
		return vm.orNil(result), nil
	}
	vm.depth = depth
	if v, ok := ControlValue(err); ok {
		return vm.orNil(v), nil
	}

	var ex *Exception
	if errors.As(err, &ex) {
		vm.log.Warningf("uncaught exception: %s", ex.Error())
	} else {
		vm.log.Errorf("%s", err.Error())
	}
	return nil, err
}

// ---------------------------------------------------------------------------
// Exit procs
// ---------------------------------------------------------------------------

// AtExit registers p to run when the program ends.
func (vm *VM) AtExit(p *Proc) {
	vm.exitProcs = append(vm.exitProcs, p)
}

// ExitProcs returns the number of registered exit procs not yet run.
func (vm *VM) ExitProcs() int {
	return len(vm.exitProcs)
}

// RunExitProcs pops and runs the registered procs, most recent first. Each
// runs inside Run, so a failure in one does not prevent the rest; the
// failures are joined into the returned error. Procs registered while
// draining run in the same pass.
func (vm *VM) RunExitProcs() error {
	var errs []error
	for len(vm.exitProcs) > 0 {
		n := len(vm.exitProcs) - 1
		p := vm.exitProcs[n]
		vm.exitProcs = vm.exitProcs[:n]

		if _, err := vm.Run(func() (Value, error) { return vm.Yield(p) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
