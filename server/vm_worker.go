package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/garnet/vm"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("server: vm worker stopped")

type vmRequest struct {
	fn   func(*vm.VM) (any, error)
	done chan vmResult
}

type vmResult struct {
	value any
	err   error
}

// VMWorker serializes all VM access through a single goroutine.
// A VM is not safe for concurrent use; every handler goes through Do.
type VMWorker struct {
	vm       *vm.VM
	requests chan vmRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewVMWorker creates a VMWorker and starts the processing goroutine.
func NewVMWorker(v *vm.VM) *VMWorker {
	w := &VMWorker{
		vm:       v,
		requests: make(chan vmRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *VMWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn on the VM, converting a panic into an error.
func (w *VMWorker) execute(fn func(*vm.VM) (any, error)) (result vmResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("vm worker: recovered panic: %v", r)
			result = vmResult{err: fmt.Errorf("vm worker: panic: %v", r)}
		}
	}()
	v, err := fn(w.vm)
	return vmResult{value: v, err: err}
}

// Do submits fn to the VM goroutine and blocks until it completes or ctx is
// done. A request already picked up by the worker still runs to completion.
func (w *VMWorker) Do(ctx context.Context, fn func(*vm.VM) (any, error)) (any, error) {
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}

	req := vmRequest{fn: fn, done: make(chan vmResult, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *VMWorker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}

// VM returns the underlying VM. Callers outside the worker goroutine must
// not mutate it.
func (w *VMWorker) VM() *vm.VM {
	return w.vm
}
