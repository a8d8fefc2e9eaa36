// Package server exposes a running VM over Connect, gRPC and gRPC-Web on a
// single port.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/image"
)

var log = commonlog.GetLogger("garnet.server")

// GarnetServer is the inspection server wrapping a running VM.
type GarnetServer struct {
	worker  *VMWorker
	inspect *InspectService
	mux     *http.ServeMux

	mu           sync.Mutex
	http         *http.Server
	shutdownWait time.Duration
}

// ServerOption configures a GarnetServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	store        *image.Store
	handlerOpts  []connect.HandlerOption
	readTimeout  time.Duration
	shutdownWait time.Duration
}

// WithStore enables the SaveSnapshot and ListSnapshots procedures.
func WithStore(store *image.Store) ServerOption {
	return func(c *serverConfig) { c.store = store }
}

// WithHandlerOptions passes extra options to every Connect handler.
func WithHandlerOptions(opts ...connect.HandlerOption) ServerOption {
	return func(c *serverConfig) { c.handlerOpts = append(c.handlerOpts, opts...) }
}

// WithShutdownTimeout bounds how long Stop waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.shutdownWait = d }
}

// New creates a GarnetServer wrapping the given VM.
func New(v *vm.VM, opts ...ServerOption) *GarnetServer {
	cfg := &serverConfig{
		readTimeout:  30 * time.Second,
		shutdownWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewVMWorker(v)
	s := &GarnetServer{
		worker:  worker,
		inspect: NewInspectService(worker, cfg.store),
		mux:     http.NewServeMux(),

		shutdownWait: cfg.shutdownWait,
	}
	s.register(cfg.handlerOpts)
	s.http = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: cfg.readTimeout,
		Protocols:         protocols(),
	}
	s.http.RegisterOnShutdown(worker.Stop)
	return s
}

func (s *GarnetServer) register(opts []connect.HandlerOption) {
	svc := s.inspect
	s.mux.Handle(ListClassesProcedure, connect.NewUnaryHandler(ListClassesProcedure, svc.ListClasses, opts...))
	s.mux.Handle(GetClassProcedure, connect.NewUnaryHandler(GetClassProcedure, svc.GetClass, opts...))
	s.mux.Handle(ListSymbolsProcedure, connect.NewUnaryHandler(ListSymbolsProcedure, svc.ListSymbols, opts...))
	s.mux.Handle(SendProcedure, connect.NewUnaryHandler(SendProcedure, svc.Send, opts...))
	s.mux.Handle(SnapshotProcedure, connect.NewUnaryHandler(SnapshotProcedure, svc.Snapshot, opts...))
	s.mux.Handle(SaveSnapshotProcedure, connect.NewUnaryHandler(SaveSnapshotProcedure, svc.SaveSnapshot, opts...))
	s.mux.Handle(ListSnapshotsProcedure, connect.NewUnaryHandler(ListSnapshotsProcedure, svc.ListSnapshots, opts...))
}

// protocols enables HTTP/1.1 for Connect and unencrypted HTTP/2 for gRPC.
func protocols() *http.Protocols {
	p := new(http.Protocols)
	p.SetHTTP1(true)
	p.SetUnencryptedHTTP2(true)
	return p
}

// Handler returns the server's HTTP handler.
func (s *GarnetServer) Handler() http.Handler {
	return s.mux
}

// Worker returns the worker that owns the VM.
func (s *GarnetServer) Worker() *VMWorker {
	return s.worker
}

// ListenAndServe starts the server on addr ("host:port" or ":port"). It
// returns nil after Stop.
func (s *GarnetServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called.
func (s *GarnetServer) Serve(ln net.Listener) error {
	log.Noticef("garnet inspection server listening on %s", ln.Addr())
	log.Infof("  Connect (HTTP/JSON): http://%s%s", ln.Addr(), ListClassesProcedure)
	log.Infof("  gRPC (h2c):          grpc://%s", ln.Addr())

	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts down the server and its VM worker.
func (s *GarnetServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownWait)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		log.Warningf("shutdown: %v", err)
	}
	s.worker.Stop()
}
