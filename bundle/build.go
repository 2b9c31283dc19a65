// Package bundle produces a deployable directory out of a loader script,
// an externally compiled WebAssembly module, an HTML template, and static assets.
//
// The pipeline is described by a Config, usually decoded from an HCL file:
//
//	entry = "./index.js"
//
//	output {
//	  path     = "dist"
//	  filename = "index.js"
//	}
//
//	html {
//	  template = "index.html"
//	}
//
//	module "wasm-pack" {
//	  source = root
//	}
//
//	copy {
//	  from = "static"
//	}
//
//	mode = "development"
//
//	experiments {
//	  async_webassembly = true
//	}
package bundle

import (
	"context"
	_ "embed"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/cottand/wasmboot/internal/log"
	"github.com/pkg/errors"
)

var bundleLogger = log.DefaultLogger.With("section", "bundle")

//go:embed assets/loader.js.tmpl
var loaderTemplateSrc string

var loaderTemplate = template.Must(template.New("loader.js").Parse(loaderTemplateSrc))

// Builder runs the build pipeline of a Config
type Builder struct {
	// Exec runs the compiler of the module plugin, RunCommand if nil
	Exec Executor
	// WasmExec is the wasm_exec.js shipped with GOOS=js modules,
	// looked up in GOROOT if empty
	WasmExec string
}

// Manifest lists what a build wrote
type Manifest struct {
	OutputDir string
	// Files are relative to OutputDir, slash-separated, in lexical order
	Files []string
	// Module is the file the bundle acquires at runtime
	Module string
}

func (b *Builder) exec() Executor {
	if b.Exec == nil {
		return RunCommand
	}
	return b.Exec
}

// Build writes the bundle described by cfg to its output directory,
// replacing whatever was there
func (b *Builder) Build(ctx context.Context, cfg *Config) (*Manifest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	outDir := cfg.OutputDir()
	if err := checkOutputDir(cfg, outDir); err != nil {
		return nil, err
	}
	bundleLogger.Info("building", "out", outDir, "mode", cfg.Mode)

	if err := os.RemoveAll(outDir); err != nil {
		return nil, errors.Wrap(err, "could not clean output directory")
	}
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "could not create output directory")
	}

	mod, err := b.compileModule(ctx, cfg, outDir)
	if err != nil {
		return nil, err
	}

	if err := writeBundle(cfg, outDir, mod); err != nil {
		return nil, err
	}

	scripts := []string{cfg.Output.Filename}
	if mod.GoRuntime {
		scripts = []string{wasmExecJS, cfg.Output.Filename}
	}
	if err := writeHTML(cfg, outDir, scripts...); err != nil {
		return nil, err
	}

	if err := copyAssets(cfg, outDir); err != nil {
		return nil, err
	}

	files, err := listFiles(outDir)
	if err != nil {
		return nil, errors.Wrap(err, "could not list output directory")
	}
	bundleLogger.Info("build finished", "out", outDir, "files", len(files))
	return &Manifest{OutputDir: outDir, Files: files, Module: mod.Module}, nil
}

// checkOutputDir refuses output directories that hold any of the build's
// inputs, as the output directory is removed before every build
func checkOutputDir(cfg *Config, outDir string) error {
	inputs := map[string]string{"project root": cfg.Root}
	if cfg.Entry != "" {
		inputs["entry"] = cfg.resolve(cfg.Entry)
	}
	if cfg.HTML != nil && cfg.HTML.Template != "" {
		inputs["HTML template"] = cfg.resolve(cfg.HTML.Template)
	}
	if cfg.Module != nil {
		inputs["module source"] = cfg.resolve(cfg.Module.Source)
	}
	for _, c := range cfg.Copy {
		inputs["copy source "+c.From] = cfg.resolve(c.From)
	}
	for what, p := range inputs {
		inside, err := within(outDir, p)
		if err != nil {
			return err
		}
		if inside {
			return errors.Errorf("output directory %s must not contain the %s %s", outDir, what, p)
		}
	}
	return nil
}

// within reports whether p is dir or lies below it
func within(dir, p string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, errors.Wrap(err, "could not get absolute path of output")
	}
	absP, err := filepath.Abs(p)
	if err != nil {
		return false, errors.Wrapf(err, "could not get absolute path of %s", p)
	}
	rel, err := filepath.Rel(absDir, absP)
	if err != nil {
		// different volumes
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

// writeBundle emits the loader script: the configured entry verbatim,
// or a generated loader for mod
func writeBundle(cfg *Config, outDir string, mod *compiled) error {
	target := filepath.Join(outDir, cfg.Output.Filename)
	if cfg.Entry != "" {
		if err := copyFile(cfg.resolve(cfg.Entry), target); err != nil {
			return errors.Wrap(err, "could not copy entry")
		}
		return nil
	}

	f, err := os.Create(target)
	if err != nil {
		return errors.Wrap(err, "could not create bundle")
	}
	if err := loaderTemplate.Execute(f, mod); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "could not render loader")
	}
	return f.Close()
}

func listFiles(dir string) ([]string, error) {
	files := make([]string, 0)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	slices.Sort(files)
	return files, err
}
