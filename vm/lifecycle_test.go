package vm

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Exit proc tests
// ---------------------------------------------------------------------------

func TestRunExitProcsLIFO(t *testing.T) {
	v := newTestVM(t)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		v.AtExit(v.NewProc(nil, func(self Value, args []Value) (Value, error) {
			order = append(order, name)
			return nil, nil
		}))
	}
	if v.ExitProcs() != 3 {
		t.Fatalf("ExitProcs() = %d, want 3", v.ExitProcs())
	}

	if err := v.RunExitProcs(); err != nil {
		t.Fatalf("RunExitProcs: %v", err)
	}
	if got := strings.Join(order, ","); got != "third,second,first" {
		t.Errorf("order = %s, want third,second,first", got)
	}
	if v.ExitProcs() != 0 {
		t.Error("registry should be drained")
	}

	// A second drain runs nothing.
	order = nil
	if err := v.RunExitProcs(); err != nil || len(order) != 0 {
		t.Errorf("second drain ran %v, err %v", order, err)
	}
}

func TestRunExitProcsContinuesAfterFailure(t *testing.T) {
	v := newTestVM(t)

	ran := 0
	ok := func(self Value, args []Value) (Value, error) {
		ran++
		return nil, nil
	}
	v.AtExit(v.NewProc(nil, ok))
	v.AtExit(v.NewProc(nil, func(self Value, args []Value) (Value, error) {
		ran++
		return nil, v.Raise(v.RuntimeErrorClass, "boom")
	}))
	v.AtExit(v.NewProc(nil, func(self Value, args []Value) (Value, error) {
		ran++
		return nil, RaiseBreak(nil)
	}))
	v.AtExit(v.NewProc(nil, ok))

	err := v.RunExitProcs()
	if ran != 4 {
		t.Errorf("ran %d procs, want 4", ran)
	}
	if !IsKindOf(err, v.RuntimeErrorClass) {
		t.Errorf("err = %v, want joined RuntimeError", err)
	}
}

func TestRunExitProcsRegisteredWhileDraining(t *testing.T) {
	v := newTestVM(t)

	var order []string
	v.AtExit(v.NewProc(nil, func(self Value, args []Value) (Value, error) {
		order = append(order, "outer")
		v.AtExit(v.NewProc(nil, func(self Value, args []Value) (Value, error) {
			order = append(order, "nested")
			return nil, nil
		}))
		return nil, nil
	}))

	if err := v.RunExitProcs(); err != nil {
		t.Fatalf("RunExitProcs: %v", err)
	}
	if got := strings.Join(order, ","); got != "outer,nested" {
		t.Errorf("order = %s, want outer,nested", got)
	}
}

func TestKernelAtExit(t *testing.T) {
	v := newTestVM(t)

	ran := false
	blk := v.NewProc(nil, func(self Value, args []Value) (Value, error) {
		ran = true
		return nil, nil
	})
	got, err := v.SendWithBlock(v.TopSelf, "at_exit", blk)
	if err != nil || got != Value(blk) {
		t.Fatalf("at_exit = %v, %v; want the block", got, err)
	}
	if _, err := v.Send(v.TopSelf, "at_exit"); !IsKindOf(err, v.ArgumentErrorClass) {
		t.Errorf("at_exit without block err = %v, want ArgumentError", err)
	}

	if err := v.RunExitProcs(); err != nil {
		t.Fatalf("RunExitProcs: %v", err)
	}
	if !ran {
		t.Error("registered block should run")
	}
}

// ---------------------------------------------------------------------------
// Run tests
// ---------------------------------------------------------------------------

func TestRunReturnsResult(t *testing.T) {
	v := newTestVM(t)

	got, err := v.Run(func() (Value, error) { return nil, nil })
	if err != nil || got != Value(v.Nil) {
		t.Errorf("Run = %v, %v; want nil object", got, err)
	}
}

func TestRunStrayReturn(t *testing.T) {
	v := newTestVM(t)

	got, err := v.Run(func() (Value, error) {
		return nil, RaiseReturn(v.String("stray"), nil)
	})
	if s := strResult(t, got, err); s != "stray" {
		t.Errorf("Run = %q, want stray", s)
	}
}

func TestRunPassesExceptions(t *testing.T) {
	v := newTestVM(t)

	_, err := v.Run(func() (Value, error) {
		return nil, v.Raise(v.ArgumentErrorClass, "bad input")
	})
	var ex *Exception
	if !errors.As(err, &ex) || ex.Class() != v.ArgumentErrorClass {
		t.Errorf("err = %v, want ArgumentError", err)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	v := newTestVM(t)
	c := mustClass(t, v, "Crasher", nil)
	v.Def(c, "crash", 0, func(call *Call, args []Value) (Value, error) {
		return call.VM.Send(call.Self, "really_crash")
	})
	v.Def(c, "really_crash", 0, func(call *Call, args []Value) (Value, error) {
		panic("kaboom")
	})

	_, err := v.Run(func() (Value, error) { return v.Send(NewObject(c), "crash") })
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("err = %v, want recovered panic", err)
	}
	if v.Depth() != 0 {
		t.Errorf("Depth() after panic = %d, want 0", v.Depth())
	}

	// The VM is still usable.
	got, err := v.Send(v.TopSelf, "inspect")
	if s := strResult(t, got, err); s != "main" {
		t.Errorf("inspect after panic = %q, want main", s)
	}
}
