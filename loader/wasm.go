package loader

import (
	"context"
	"io"
	"strings"

	"github.com/cottand/wasmboot/module"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// reactorInit is called after instantiation when a module exports it
const reactorInit = "_initialize"

// WasmAcquirer instantiates a WebAssembly binary with wazero.
// Every call to Acquire creates a fresh runtime, which is released
// when the resulting module.Handle is closed.
type WasmAcquirer struct {
	// Location of the binary, see Fetch. Ignored if Binary is set.
	Location string
	Binary   []byte

	Stdout io.Writer
	Stderr io.Writer

	// HostModules, if set, is called before the module is compiled, so that
	// callers may provide the imports the module needs
	HostModules func(ctx context.Context, r wazero.Runtime) error
}

func (a *WasmAcquirer) Acquire(ctx context.Context) (handle *module.Handle, err error) {
	bin := a.Binary
	if bin == nil {
		bin, err = Fetch(ctx, a.Location)
		if err != nil {
			return nil, err
		}
	}

	r := wazero.NewRuntime(ctx)
	defer func() {
		if err != nil {
			_ = r.Close(ctx)
		}
	}()

	if _, err = wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return nil, errors.Wrap(err, "instantiate WASI")
	}
	if a.HostModules != nil {
		if err = a.HostModules(ctx, r); err != nil {
			return nil, errors.Wrap(err, "instantiate host modules")
		}
	}

	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Wrap(err, "compile module")
	}

	config := wazero.NewModuleConfig().WithStartFunctions(reactorInit)
	if a.Stdout != nil {
		config = config.WithStdout(a.Stdout)
	}
	if a.Stderr != nil {
		config = config.WithStderr(a.Stderr)
	}
	instance, err := r.InstantiateModule(ctx, compiled, config)
	if err != nil {
		return nil, errors.Wrap(err, "instantiate module")
	}

	declared, err := exportSection(bin)
	if err != nil {
		return nil, errors.Wrap(err, "read exports")
	}
	functions := compiled.ExportedFunctions()
	exports := make([]module.Export, 0, len(declared))
	for _, e := range declared {
		switch e.kind {
		case externFunc:
			def := functions[e.name]
			if len(def.ParamTypes()) > 0 {
				exports = append(exports, module.Value(e.name, signature(def)))
				continue
			}
			fn := instance.ExportedFunction(e.name)
			exports = append(exports, module.Func(e.name, func(ctx context.Context) error {
				_, err := fn.Call(ctx)
				return exitStatus(err)
			}))
		case externTable:
			exports = append(exports, module.Value(e.name, "table"))
		case externMemory:
			exports = append(exports, module.Value(e.name, "memory"))
		case externGlobal:
			exports = append(exports, module.Value(e.name, "global"))
		}
	}

	loaderLogger.Debug("instantiated wasm module", "exports", len(exports), "location", a.Location)
	return module.NewHandle(r.Close, exports...), nil
}

// exitStatus treats a WASI proc_exit(0) as a normal return
func exitStatus(err error) error {
	var exit *sys.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 0 {
		return nil
	}
	return err
}

// signature renders def like "function(i32,i64) f32"
func signature(def api.FunctionDefinition) string {
	sb := strings.Builder{}
	sb.WriteString("function(")
	for i, p := range def.ParamTypes() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(api.ValueTypeName(p))
	}
	sb.WriteByte(')')
	for i, r := range def.ResultTypes() {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteByte(',')
		}
		sb.WriteString(api.ValueTypeName(r))
	}
	return sb.String()
}
