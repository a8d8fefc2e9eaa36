// Package manifest handles garnet.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the manifest file looked up by Load and FindAndLoad.
const FileName = "garnet.toml"

// Defaults applied when the manifest leaves a field empty.
const (
	DefaultAddr  = "localhost:4567"
	DefaultStore = ".garnet/snapshots.db"
	DefaultLabel = "latest"
)

// Manifest represents a garnet.toml configuration.
type Manifest struct {
	Runtime Runtime     `toml:"runtime" json:"runtime"`
	Log     Log         `toml:"log" json:"log"`
	Server  Server      `toml:"server" json:"server"`
	Image   ImageConfig `toml:"image" json:"image"`

	// Dir is the directory containing the garnet.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Runtime configures the VM at boot.
type Runtime struct {
	Platform       string   `toml:"platform" json:"platform,omitempty"`
	Engine         string   `toml:"engine" json:"engine,omitempty"`
	Version        string   `toml:"version" json:"version,omitempty"`
	Argv           []string `toml:"argv" json:"argv,omitempty"`
	ClassVariables string   `toml:"class-variables" json:"class-variables,omitempty"`
	MaxDepth       int      `toml:"max-depth" json:"max-depth,omitempty"`
	MethodMissing  []string `toml:"method-missing" json:"method-missing,omitempty"`
}

// Log configures commonlog output.
type Log struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	File      string `toml:"file" json:"file,omitempty"`
}

// Server configures the inspection server.
type Server struct {
	Addr string `toml:"addr" json:"addr,omitempty"`
}

// ImageConfig configures snapshot output.
type ImageConfig struct {
	Output string `toml:"output" json:"output,omitempty"`
	Store  string `toml:"store" json:"store,omitempty"`
	Label  string `toml:"label" json:"label,omitempty"`
}

// Default returns the configuration used when no garnet.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Parse decodes and validates manifest data. name is used in error messages.
func Parse(data []byte, name string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	if err := Validate(&m); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	m.applyDefaults()
	return &m, nil
}

// Load parses a garnet.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data, path)
	if err != nil {
		return nil, err
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a garnet.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
	if m.Image.Store == "" {
		m.Image.Store = DefaultStore
	}
	if m.Image.Label == "" {
		m.Image.Label = DefaultLabel
	}
}

// Resolve returns p relative to the manifest directory unless it is absolute
// or empty.
func (m *Manifest) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// StorePath returns the absolute path of the snapshot store.
func (m *Manifest) StorePath() string {
	return m.Resolve(m.Image.Store)
}

// LogFile returns the log file path, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.Resolve(m.Log.File)
	return &p
}
