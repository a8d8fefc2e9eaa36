package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/garnet/vm"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[runtime]
platform = "arm64-plan9"
engine = "garnet"
version = "3.3.1"
argv = ["-x", "file.rb"]
class-variables = "flat"
max-depth = 500
method-missing = ["frob", "valid?"]

[log]
verbosity = 2
file = "logs/garnet.log"

[server]
addr = ":9000"

[image]
output = "out.grnt"
store = "state/snap.db"
label = "nightly"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Runtime.Platform != "arm64-plan9" {
		t.Errorf("Platform = %q", m.Runtime.Platform)
	}
	if m.Runtime.ClassVariables != "flat" {
		t.Errorf("ClassVariables = %q", m.Runtime.ClassVariables)
	}
	if m.Runtime.MaxDepth != 500 {
		t.Errorf("MaxDepth = %d", m.Runtime.MaxDepth)
	}
	if len(m.Runtime.MethodMissing) != 2 || m.Runtime.MethodMissing[1] != "valid?" {
		t.Errorf("MethodMissing = %v", m.Runtime.MethodMissing)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("Verbosity = %d", m.Log.Verbosity)
	}
	if m.Server.Addr != ":9000" {
		t.Errorf("Addr = %q", m.Server.Addr)
	}
	if m.Image.Label != "nightly" {
		t.Errorf("Label = %q", m.Image.Label)
	}

	if got := m.StorePath(); got != filepath.Join(m.Dir, "state", "snap.db") {
		t.Errorf("StorePath = %q", got)
	}
	if got := m.LogFile(); got == nil || *got != filepath.Join(m.Dir, "logs", "garnet.log") {
		t.Errorf("LogFile = %v", got)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Server.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", m.Server.Addr, DefaultAddr)
	}
	if m.Image.Store != DefaultStore || m.Image.Label != DefaultLabel {
		t.Errorf("Image = %+v", m.Image)
	}
	if m.LogFile() != nil {
		t.Error("empty log file should mean stderr")
	}
	if !filepath.IsAbs(m.Dir) {
		t.Errorf("Dir = %q, want absolute", m.Dir)
	}
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "cannot read") {
		t.Errorf("err = %v, want read error", err)
	}
}

func TestLoadManifestParseError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[runtime\nengine = ")

	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad scope", "[runtime]\nclass-variables = \"global\"\n"},
		{"zero depth", "[runtime]\nmax-depth = -1\n"},
		{"bad version", "[runtime]\nversion = \"three\"\n"},
		{"bad method name", "[runtime]\nmethod-missing = [\"not a name\"]\n"},
		{"verbosity range", "[log]\nverbosity = 9\n"},
		{"bad addr", "[server]\naddr = \"nowhere\"\n"},
		{"bad label", "[image]\nlabel = \"has space\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "test.toml")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "invalid test.toml") {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[runtime]\nengine = \"garnet\"\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("expected manifest to be found")
	}
	if m.Runtime.Engine != "garnet" {
		t.Errorf("Engine = %q", m.Runtime.Engine)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil && m.Dir != "" {
		// A garnet.toml above the temp dir is possible on a developer box.
		t.Logf("found manifest at %s", m.Dir)
	}
}

// ---------------------------------------------------------------------------
// VM options
// ---------------------------------------------------------------------------

func TestToOptions(t *testing.T) {
	m, err := Parse([]byte(`
[runtime]
engine = "custom"
argv = ["one"]
class-variables = "flat"
max-depth = 7
method-missing = ["ghost"]
`), "test.toml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	v, err := m.NewVM()
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}

	p := v.Platform()
	if p.Engine != "custom" {
		t.Errorf("Engine = %q", p.Engine)
	}
	if p.Version != vm.DefaultPlatform().Version {
		t.Errorf("Version = %q, want default", p.Version)
	}
	if len(p.Argv) != 1 || p.Argv[0] != "one" {
		t.Errorf("Argv = %v", p.Argv)
	}
	if v.ClassVars.Scope() != vm.ScopeFlat {
		t.Errorf("scope = %v, want flat", v.ClassVars.Scope())
	}
	if m, _ := v.FindMethod(v.BasicObjectClass, v.Intern("ghost")); m == nil || m.Kind() != vm.MethodMissingMarker {
		t.Errorf("ghost = %v, want method_missing marker", m)
	}

	c, _ := v.DefineClass(nil, "Deep", nil)
	v.Def(c, "down", 0, func(call *vm.Call, args []vm.Value) (vm.Value, error) {
		return call.VM.Send(call.Self, "down")
	})
	if _, err := v.Send(vm.NewObject(c), "down"); !vm.IsKindOf(err, v.SystemStackErrorClass) {
		t.Errorf("err = %v, want SystemStackError at depth 7", err)
	}
}

func TestDefaultManifestOptions(t *testing.T) {
	m := Default(t.TempDir())
	v, err := m.NewVM()
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	if v.Platform().Engine != vm.DefaultPlatform().Engine {
		t.Errorf("Engine = %q", v.Platform().Engine)
	}
	if v.ClassVars.Scope() != vm.ScopeHierarchy {
		t.Errorf("scope = %v", v.ClassVars.Scope())
	}
}
