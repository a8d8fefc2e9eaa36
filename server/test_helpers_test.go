package server

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/image"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
//
// Every test gets its own VM: Send mutates method tables, so sharing one
// across tests would make them order dependent.
// ---------------------------------------------------------------------------

// testEnv bundles an isolated VM with its worker and service.
type testEnv struct {
	VM      *vm.VM
	Worker  *VMWorker
	Service *InspectService
	Store   *image.Store
}

// newTestEnv boots a VM with a Widget class and a snapshot store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	v, err := vm.NewVM()
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	defineWidget(t, v)

	store, err := image.OpenStore(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	w := NewVMWorker(v)
	t.Cleanup(w.Stop)
	return &testEnv{VM: v, Worker: w, Service: NewInspectService(w, store), Store: store}
}

// defineWidget adds Shop::Widget with a few methods used by the tests.
func defineWidget(t *testing.T, v *vm.VM) {
	t.Helper()
	shop, err := v.DefineModule(nil, "Shop")
	if err != nil {
		t.Fatalf("DefineModule: %v", err)
	}
	widget, err := v.DefineClass(shop, "Widget", nil)
	if err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	v.Def(widget, "price", 0, func(call *vm.Call, args []vm.Value) (vm.Value, error) {
		return call.VM.Number(12.5), nil
	})
	v.DefineSingletonMethod(widget, "double", vm.NewMethod(func(call *vm.Call, args []vm.Value) (vm.Value, error) {
		n, ok := vm.NumberOf(args[0])
		if !ok {
			return nil, call.VM.Raise(call.VM.TypeErrorClass, "not a number")
		}
		return call.VM.Number(n * 2), nil
	}), 1)
	v.DefineSingletonMethod(widget, "explode", vm.NewMethod(func(call *vm.Call, args []vm.Value) (vm.Value, error) {
		return nil, call.VM.Raise(call.VM.RuntimeErrorClass, "boom")
	}), 0)
}

// newHTTPServer serves a GarnetServer over h2c and returns its base URL.
func newHTTPServer(t *testing.T, opts ...ServerOption) (*GarnetServer, *httptest.Server) {
	t.Helper()
	v, err := vm.NewVM()
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	defineWidget(t, v)

	gs := New(v, opts...)
	ts := httptest.NewUnstartedServer(gs.Handler())
	ts.Config.Protocols = protocols()
	ts.Start()
	t.Cleanup(func() {
		ts.Close()
		gs.Stop()
	})
	return gs, ts
}

// ---------------------------------------------------------------------------
// Request builder helpers
// ---------------------------------------------------------------------------

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func bg() context.Context {
	return context.Background()
}

func codeOf(err error) connect.Code {
	return connect.CodeOf(err)
}
