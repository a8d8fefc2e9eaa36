package vm

import (
	"runtime"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: the runtime core
// ---------------------------------------------------------------------------

// VM owns one runtime: its symbols, class graph, stores, control state and
// exit procs. A VM is single-threaded; see server.VMWorker for serialised
// access from several goroutines.
type VM struct {
	// Global tables
	Symbols   *SymbolTable
	Constants *ConstantStore
	ClassVars *ClassVarStore
	Globals   *GlobalStore

	// Core class tree
	BasicObjectClass *Class
	ObjectClass      *Class
	ModuleClass      *Class
	ClassClass       *Class
	KernelModule     *Class
	NilClass         *Class
	BooleanClass     *Class
	NumericClass     *Class
	StringClass      *Class
	SymbolClass      *Class
	ArrayClass       *Class
	HashClass        *Class
	RangeClass       *Class
	ProcClass        *Class

	// Exception hierarchy
	ExceptionClass           *Class
	ScriptErrorClass         *Class
	NotImplementedErrorClass *Class
	StandardErrorClass       *Class
	NameErrorClass           *Class
	NoMethodErrorClass       *Class
	ArgumentErrorClass       *Class
	TypeErrorClass           *Class
	RuntimeErrorClass        *Class
	LocalJumpErrorClass      *Class
	IndexErrorClass          *Class
	KeyErrorClass            *Class
	RangeErrorClass          *Class
	SystemStackErrorClass    *Class

	// Distinguished values
	Nil     *Object
	True    *Object
	False   *Object
	TopSelf *Object

	platform  Platform
	exitProcs []*Proc

	depth    int
	maxDepth int
	frameSeq uint64

	mmMarker         *Method
	symMethodMissing *Symbol
	symInitialize    *Symbol

	log commonlog.Logger
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Platform describes the host the runtime reports to programs.
type Platform struct {
	Platform string   `cbor:"1,keyasint" json:"platform"`
	Engine   string   `cbor:"2,keyasint" json:"engine"`
	Version  string   `cbor:"3,keyasint" json:"version"`
	Argv     []string `cbor:"4,keyasint,omitempty" json:"argv,omitempty"`
}

// DefaultPlatform returns the platform of the running Go binary.
func DefaultPlatform() Platform {
	return Platform{
		Platform: runtime.GOARCH + "-" + runtime.GOOS,
		Engine:   "garnet",
		Version:  "3.2.0",
	}
}

// DefaultMaxDepth is the call depth at which SystemStackError is raised.
const DefaultMaxDepth = 10000

// Option configures a VM.
type Option func(*config)

type config struct {
	platform Platform
	scope    ClassVarScope
	maxDepth int
	missing  []string
	log      commonlog.Logger
}

// WithPlatform sets the values of the platform constants.
func WithPlatform(p Platform) Option {
	return func(c *config) { c.platform = p }
}

// WithClassVarScope selects how class variables are shared.
func WithClassVarScope(s ClassVarScope) Option {
	return func(c *config) { c.scope = s }
}

// WithMaxDepth sets the maximum call depth. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithMethodMissing installs method-missing markers on BasicObject for the
// given names at boot.
func WithMethodMissing(names ...string) Option {
	return func(c *config) { c.missing = append(c.missing, names...) }
}

// WithLogger replaces the package logger.
func WithLogger(l commonlog.Logger) Option {
	return func(c *config) { c.log = l }
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// NewVM creates and bootstraps a VM. It fails only if bootstrap leaves the
// root class without a method_missing implementation.
func NewVM(opts ...Option) (*VM, error) {
	cfg := &config{
		platform: DefaultPlatform(),
		maxDepth: DefaultMaxDepth,
		log:      commonlog.GetLogger("garnet.vm"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	vm := &VM{
		Symbols:   NewSymbolTable(),
		Constants: NewConstantStore(),
		ClassVars: NewClassVarStore(cfg.scope),
		Globals:   NewGlobalStore(),
		platform:  cfg.platform,
		maxDepth:  cfg.maxDepth,
		log:       cfg.log,
	}

	if err := vm.bootstrap(); err != nil {
		return nil, err
	}
	if len(cfg.missing) > 0 {
		vm.InstallMethodMissing(vm.BasicObjectClass, cfg.missing...)
	}
	vm.log.Infof("booted %s %s (%s), %d classes", vm.platform.Engine, vm.platform.Version, vm.platform.Platform, vm.Constants.Len())
	return vm, nil
}

// Intern returns the symbol for id.
func (vm *VM) Intern(id string) *Symbol {
	return vm.Symbols.Intern(id)
}

// Platform returns the platform the VM was booted with.
func (vm *VM) Platform() Platform {
	return vm.platform
}

// Depth returns the current call depth.
func (vm *VM) Depth() int {
	return vm.depth
}

// ---------------------------------------------------------------------------
// Bootstrap: Create core classes
// ---------------------------------------------------------------------------

func (vm *VM) bootstrap() error {
	vm.symMethodMissing = vm.Intern("method_missing")
	vm.symInitialize = vm.Intern("initialize")

	// Phase 1: BasicObject, Object, Module and Class refer to each other,
	// so they are linked by hand before anything else exists.
	vm.BasicObjectClass = &Class{header: header{flags: TClass}, methods: NewMethodTable()}
	vm.ObjectClass = &Class{header: header{flags: TClass}, Superclass: vm.BasicObjectClass, methods: NewMethodTable()}
	vm.ModuleClass = &Class{header: header{flags: TClass}, Superclass: vm.ObjectClass, methods: NewMethodTable()}
	vm.ClassClass = &Class{header: header{flags: TClass}, Superclass: vm.ModuleClass, methods: NewMethodTable()}
	for _, c := range []*Class{vm.BasicObjectClass, vm.ObjectClass, vm.ModuleClass, vm.ClassClass} {
		c.klass = vm.ClassClass
	}
	vm.nameBootClass("BasicObject", vm.BasicObjectClass)
	vm.nameBootClass("Object", vm.ObjectClass)
	vm.nameBootClass("Module", vm.ModuleClass)
	vm.nameBootClass("Class", vm.ClassClass)

	vm.KernelModule = vm.newModule()
	vm.nameBootClass("Kernel", vm.KernelModule)
	if err := vm.Include(vm.ObjectClass, vm.KernelModule); err != nil {
		return err
	}

	// Phase 2: value classes
	vm.NilClass = vm.bootClass("NilClass", vm.ObjectClass)
	vm.BooleanClass = vm.bootClass("Boolean", vm.ObjectClass)
	vm.NumericClass = vm.bootClass("Numeric", vm.ObjectClass)
	vm.StringClass = vm.bootClass("String", vm.ObjectClass)
	vm.SymbolClass = vm.bootClass("Symbol", vm.ObjectClass)
	vm.ArrayClass = vm.bootClass("Array", vm.ObjectClass)
	vm.HashClass = vm.bootClass("Hash", vm.ObjectClass)
	vm.RangeClass = vm.bootClass("Range", vm.ObjectClass)
	vm.ProcClass = vm.bootClass("Proc", vm.ObjectClass)
	vm.Symbols.setClass(vm.SymbolClass)

	vm.Nil = &Object{header: header{flags: TObject, klass: vm.NilClass}}
	vm.True = &Object{header: header{flags: TBoolean, klass: vm.BooleanClass}, Data: true}
	vm.False = &Object{header: header{flags: TBoolean, klass: vm.BooleanClass}, Data: false}
	vm.TopSelf = NewObject(vm.ObjectClass)

	// Phase 3: exceptions
	vm.bootstrapExceptionClasses()

	// Phase 4: mechanism methods
	vm.mmMarker = &Method{kind: MethodMissingMarker}
	vm.mmMarker.stamp(vm.BasicObjectClass, vm.symMethodMissing, -1)
	vm.bootstrapKernel()

	if m := vm.BasicObjectClass.methods.Lookup(vm.symMethodMissing); m == nil || m.kind != MethodNormal {
		return &FatalError{Method: "method_missing", Err: ErrNoFallback}
	}

	// Phase 5: platform constants
	vm.ConstSet(nil, "RUBY_PLATFORM", vm.String(vm.platform.Platform))
	vm.ConstSet(nil, "RUBY_ENGINE", vm.String(vm.platform.Engine))
	vm.ConstSet(nil, "RUBY_VERSION", vm.String(vm.platform.Version))
	argv := make([]Value, len(vm.platform.Argv))
	for i, a := range vm.platform.Argv {
		argv[i] = vm.String(a)
	}
	vm.ConstSet(nil, "ARGV", vm.Array(argv...))
	vm.DefineVirtualGVar("$*", func() Value {
		v, _ := vm.Constants.At(vm.ObjectClass, "ARGV")
		return v
	})
	return nil
}

// bootClass creates a top-level class during bootstrap.
func (vm *VM) bootClass(name string, super *Class) *Class {
	c := vm.newClass(super)
	vm.nameBootClass(name, c)
	return c
}

func (vm *VM) nameBootClass(name string, c *Class) {
	c.setName(vm.ObjectClass, name, vm.ObjectClass)
	vm.Constants.Set(vm.ObjectClass, name, c)
}
