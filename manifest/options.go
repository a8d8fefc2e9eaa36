package manifest

import (
	"github.com/chazu/garnet/vm"
)

// Platform returns the platform constants, with empty fields taken from
// vm.DefaultPlatform.
func (m *Manifest) Platform() vm.Platform {
	p := vm.DefaultPlatform()
	if m.Runtime.Platform != "" {
		p.Platform = m.Runtime.Platform
	}
	if m.Runtime.Engine != "" {
		p.Engine = m.Runtime.Engine
	}
	if m.Runtime.Version != "" {
		p.Version = m.Runtime.Version
	}
	if len(m.Runtime.Argv) > 0 {
		p.Argv = append([]string(nil), m.Runtime.Argv...)
	}
	return p
}

// ToOptions converts the runtime section into VM options.
func (m *Manifest) ToOptions() ([]vm.Option, error) {
	scope, err := vm.ParseClassVarScope(m.Runtime.ClassVariables)
	if err != nil {
		return nil, err
	}

	opts := []vm.Option{
		vm.WithPlatform(m.Platform()),
		vm.WithClassVarScope(scope),
	}
	if m.Runtime.MaxDepth > 0 {
		opts = append(opts, vm.WithMaxDepth(m.Runtime.MaxDepth))
	}
	if len(m.Runtime.MethodMissing) > 0 {
		opts = append(opts, vm.WithMethodMissing(m.Runtime.MethodMissing...))
	}
	return opts, nil
}

// NewVM boots a VM configured by m.
func (m *Manifest) NewVM(extra ...vm.Option) (*vm.VM, error) {
	opts, err := m.ToOptions()
	if err != nil {
		return nil, err
	}
	return vm.NewVM(append(opts, extra...)...)
}
