package bundle

import (
	"context"
	"go/build"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	targetWASI = "wasip1"
	targetJS   = "js"
)

// wasmExecJS is the support script of GOOS=js binaries
const wasmExecJS = "wasm_exec.js"

// Executor runs an external compiler command
type Executor func(ctx context.Context, cmd *exec.Cmd) error

// RunCommand is the default Executor
func RunCommand(_ context.Context, cmd *exec.Cmd) error {
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// compiled describes what a module plugin produced, relative to the output directory
type compiled struct {
	// Module is the file the loader acquires: the .wasm binary, or the
	// wasm-pack JS glue that instantiates it
	Module    string
	Glue      bool
	GoRuntime bool
}

func (b *Builder) compileModule(ctx context.Context, cfg *Config, outDir string) (*compiled, error) {
	m := cfg.Module
	if m == nil {
		return &compiled{Module: "pkg/module.wasm"}, nil
	}
	modDir := filepath.Join(outDir, m.OutDir)
	if err := os.MkdirAll(modDir, os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "could not create module output directory")
	}
	source := cfg.resolve(m.Source)
	logger := bundleLogger.With("kind", m.Kind, "source", source)

	var (
		cmd    *exec.Cmd
		result *compiled
	)
	switch m.Kind {
	case KindWasmPack:
		args := []string{"build", source, "--target", m.Target, "--out-dir", modDir, "--out-name", m.OutName}
		if cfg.Mode == ModeProduction {
			args = append(args, "--release")
		} else {
			args = append(args, "--dev")
		}
		args = append(args, m.Args...)
		cmd = exec.CommandContext(ctx, "wasm-pack", args...)
		cmd.Dir = cfg.Root
		result = &compiled{Module: filepath.ToSlash(filepath.Join(m.OutDir, m.OutName+".js")), Glue: true}
	case KindGo:
		wasmFile := filepath.Join(modDir, m.OutName+".wasm")
		args := []string{"build", "-o", wasmFile}
		if cfg.Mode == ModeProduction {
			args = append(args, "-trimpath", "-ldflags=-s -w")
		}
		args = append(args, m.Args...)
		args = append(args, ".")
		cmd = exec.CommandContext(ctx, "go", args...)
		cmd.Dir = source
		cmd.Env = append(os.Environ(), "GOOS="+m.Target, "GOARCH=wasm")
		result = &compiled{
			Module:    filepath.ToSlash(filepath.Join(m.OutDir, m.OutName+".wasm")),
			GoRuntime: m.Target == targetJS,
		}
	default:
		return nil, errors.Errorf("unknown module kind %q", m.Kind)
	}

	logger.Info("compiling module", "args", cmd.Args)
	if err := b.exec()(ctx, cmd); err != nil {
		return nil, errors.Wrapf(err, "could not run %s", cmd.Args[0])
	}

	if _, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(result.Module))); err != nil {
		return nil, errors.Wrapf(err, "%s did not produce the module", m.Kind)
	}
	if result.GoRuntime {
		if err := b.copyWasmExec(filepath.Join(outDir, wasmExecJS)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// copyWasmExec copies the Go runtime support script next to the bundle
func (b *Builder) copyWasmExec(to string) error {
	if b.WasmExec != "" {
		return errors.Wrapf(copyFile(b.WasmExec, to), "could not copy %s", wasmExecJS)
	}
	candidates := []string{
		filepath.Join(build.Default.GOROOT, "lib", "wasm", wasmExecJS),
		filepath.Join(build.Default.GOROOT, "misc", "wasm", wasmExecJS),
	}
	for _, from := range candidates {
		if _, err := os.Stat(from); err == nil {
			return copyFile(from, to)
		}
	}
	return errors.Errorf("could not find %s in GOROOT %s", wasmExecJS, build.Default.GOROOT)
}
