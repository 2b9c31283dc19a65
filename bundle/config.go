package bundle

import (
	"path/filepath"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// DefaultConfigFile is looked up in the working directory when no config is given
const DefaultConfigFile = "wasmboot.hcl"

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

const (
	// KindWasmPack compiles a Rust crate with wasm-pack
	KindWasmPack = "wasm-pack"
	// KindGo compiles a Go package with GOARCH=wasm
	KindGo = "go"
)

// Config describes how to turn a loader script and a foreign-language
// module into a deployable directory
type Config struct {
	// Entry is the loader script copied as the bundle. When empty, a loader is generated.
	Entry       string            `hcl:"entry,optional"`
	Mode        string            `hcl:"mode,optional"`
	Output      *OutputBlock      `hcl:"output,block"`
	HTML        *HTMLBlock        `hcl:"html,block"`
	Module      *ModuleBlock      `hcl:"module,block"`
	Copy        []CopyBlock       `hcl:"copy,block"`
	Experiments *ExperimentsBlock `hcl:"experiments,block"`

	// Root is the directory relative paths are resolved against,
	// usually the one containing the config file
	Root string
}

type OutputBlock struct {
	Path     string `hcl:"path,optional"`
	Filename string `hcl:"filename,optional"`
}

type HTMLBlock struct {
	Template string `hcl:"template,optional"`
	Filename string `hcl:"filename,optional"`
	// Title is only used for the generated document, when there is no Template
	Title string `hcl:"title,optional"`
}

type ModuleBlock struct {
	Kind   string `hcl:"kind,label"`
	Source string `hcl:"source,optional"`
	// OutDir is relative to the output directory
	OutDir  string   `hcl:"out_dir,optional"`
	OutName string   `hcl:"out_name,optional"`
	Target  string   `hcl:"target,optional"`
	Args    []string `hcl:"args,optional"`
}

type CopyBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to,optional"`
}

type ExperimentsBlock struct {
	AsyncWebAssembly *bool `hcl:"async_webassembly,optional"`
}

func evalContext(root string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"root": cty.StringVal(root),
		},
		Functions: map[string]function.Function{
			"format": stdlib.FormatFunc,
			"join":   stdlib.JoinFunc,
			"lower":  stdlib.LowerFunc,
			"upper":  stdlib.UpperFunc,
		},
	}
}

// LoadConfig parses the HCL file at path. Relative paths in it resolve
// against the directory of the file.
func LoadConfig(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not get absolute path of config")
	}
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(abs)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to parse config file %s", path)
	}
	return decode(file, filepath.Dir(abs))
}

// ParseConfig is like LoadConfig, for a config held in memory
func ParseConfig(src []byte, filename, root string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to parse config file %s", filename)
	}
	return decode(file, root)
}

func decode(file *hcl.File, root string) (*Config, error) {
	var cfg Config
	diags := gohcl.DecodeBody(file.Body, evalContext(root), &cfg)
	if diags.HasErrors() {
		return nil, errors.Wrap(diags, "failed to decode config")
	}
	cfg.Root = root
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bundleLogger.Debug("loaded config", "root", root, "mode", cfg.Mode, "module", cfg.Module != nil)
	return &cfg, nil
}

// DefaultConfig is the configuration used when there is no config file
func DefaultConfig(root string) *Config {
	cfg := &Config{Root: root}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDevelopment
	}
	if c.Output == nil {
		c.Output = &OutputBlock{}
	}
	if c.Output.Path == "" {
		c.Output.Path = "dist"
	}
	if c.Output.Filename == "" {
		c.Output.Filename = "index.js"
	}
	if c.HTML == nil {
		c.HTML = &HTMLBlock{}
	}
	if c.HTML.Filename == "" {
		c.HTML.Filename = "index.html"
	}
	if c.HTML.Title == "" {
		c.HTML.Title = "wasmboot App"
	}
	if c.Experiments == nil {
		c.Experiments = &ExperimentsBlock{}
	}
	if c.Experiments.AsyncWebAssembly == nil {
		enabled := true
		c.Experiments.AsyncWebAssembly = &enabled
	}
	if m := c.Module; m != nil {
		if m.Source == "" {
			m.Source = "."
		}
		if m.OutDir == "" {
			m.OutDir = "pkg"
		}
		if m.OutName == "" {
			m.OutName = "module"
		}
		if m.Kind == KindGo && m.Target == "" {
			m.Target = targetJS
		}
		if m.Kind == KindWasmPack && m.Target == "" {
			m.Target = "web"
		}
	}
}

// Validate reports the first inconsistency in c
func (c *Config) Validate() error {
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return errors.Errorf("unknown mode %q, expected %q or %q", c.Mode, ModeDevelopment, ModeProduction)
	}
	if c.Output == nil || c.Output.Filename == "" {
		return errors.New("output filename must not be empty")
	}
	if filepath.Base(c.Output.Filename) != c.Output.Filename {
		return errors.Errorf("output filename %q must not contain a directory", c.Output.Filename)
	}
	if c.Module == nil {
		return nil
	}
	if !slices.Contains([]string{KindWasmPack, KindGo}, c.Module.Kind) {
		return errors.Errorf("unknown module kind %q, expected %q or %q", c.Module.Kind, KindWasmPack, KindGo)
	}
	if c.Module.Kind == KindGo && c.Module.Target == targetWASI {
		// browsers have no WASI imports to offer; `wasmboot run` hosts such modules
		return errors.Errorf("go target %q cannot run in a browser bundle, use %q or load the module with wasmboot run", targetWASI, targetJS)
	}
	if c.Module.Kind == KindGo && c.Module.Target != targetJS {
		return errors.Errorf("unknown go target %q, expected %q", c.Module.Target, targetJS)
	}
	if c.Experiments != nil && c.Experiments.AsyncWebAssembly != nil && !*c.Experiments.AsyncWebAssembly {
		return errors.New("a module plugin requires experiments.async_webassembly to be enabled")
	}
	return nil
}

// resolve returns p relative to the config root, unless it is absolute
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// OutputDir is the absolute directory the bundle is written to
func (c *Config) OutputDir() string {
	return c.resolve(c.Output.Path)
}
