package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/chazu/garnet/vm"
)

func TestVMWorkerDo(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.Worker.Do(bg(), func(v *vm.VM) (any, error) {
		return v.Inspect(v.TopSelf), nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "main" {
		t.Errorf("Do = %v, want main", got)
	}
	if env.Worker.VM() != env.VM {
		t.Error("VM() should return the wrapped VM")
	}
}

func TestVMWorkerPropagatesErrors(t *testing.T) {
	env := newTestEnv(t)
	sentinel := errors.New("nope")

	_, err := env.Worker.Do(bg(), func(v *vm.VM) (any, error) { return nil, sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
}

func TestVMWorkerRecoversPanic(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Worker.Do(bg(), func(v *vm.VM) (any, error) { panic("kaboom") })
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("err = %v, want recovered panic", err)
	}

	// The worker keeps serving.
	got, err := env.Worker.Do(bg(), func(v *vm.VM) (any, error) { return 1, nil })
	if err != nil || got != 1 {
		t.Errorf("Do after panic = %v, %v", got, err)
	}
}

func TestVMWorkerSerializes(t *testing.T) {
	env := newTestEnv(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.Worker.Do(bg(), func(v *vm.VM) (any, error) {
				n, _ := vm.NumberOf(v.GVarGet("$count"))
				return v.GVarSet("$count", v.Number(n+1))
			})
		}()
	}
	wg.Wait()

	got, _ := env.Worker.Do(bg(), func(v *vm.VM) (any, error) {
		n, _ := vm.NumberOf(v.GVarGet("$count"))
		return n, nil
	})
	if got != float64(50) {
		t.Errorf("$count = %v, want 50", got)
	}
}

func TestVMWorkerStop(t *testing.T) {
	env := newTestEnv(t)
	env.Worker.Stop()
	env.Worker.Stop()

	_, err := env.Worker.Do(bg(), func(v *vm.VM) (any, error) { return nil, nil })
	if !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("err = %v, want ErrWorkerStopped", err)
	}
}

func TestVMWorkerContextCanceled(t *testing.T) {
	env := newTestEnv(t)

	block := make(chan struct{})
	go env.Worker.Do(bg(), func(v *vm.VM) (any, error) {
		<-block
		return nil, nil
	})
	defer close(block)

	ctx, cancel := context.WithCancel(bg())
	cancel()
	_, err := env.Worker.Do(ctx, func(v *vm.VM) (any, error) { return nil, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
