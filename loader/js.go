//go:build js && wasm

package loader

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/cottand/wasmboot/module"
	"github.com/pkg/errors"
)

// JSAcquirer instantiates a WebAssembly module through the browser's
// WebAssembly.instantiateStreaming, so the binary is compiled while it downloads
type JSAcquirer struct {
	URL string
	// Imports is passed as the import object, an empty object if undefined
	Imports js.Value
}

func (a *JSAcquirer) Acquire(ctx context.Context) (*module.Handle, error) {
	imports := a.Imports
	if imports.IsUndefined() {
		imports = js.Global().Get("Object").New()
	}
	fetched := js.Global().Call("fetch", a.URL)
	result, err := await(ctx, js.Global().Get("WebAssembly").Call("instantiateStreaming", fetched, imports))
	if err != nil {
		return nil, err
	}

	exportsObj := result.Get("instance").Get("exports")
	keys := js.Global().Get("Object").Call("keys", exportsObj)
	exports := make([]module.Export, 0, keys.Length())
	for i := 0; i < keys.Length(); i++ {
		name := keys.Index(i).String()
		value := exportsObj.Get(name)
		if value.Type() != js.TypeFunction {
			exports = append(exports, module.Value(name, value.Type().String()))
			continue
		}
		exports = append(exports, module.Func(name, func(context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					jsErr, ok := r.(js.Error)
					if !ok {
						panic(r)
					}
					err = jsErr
				}
			}()
			value.Invoke()
			return nil
		}))
	}
	return module.NewHandle(nil, exports...), nil
}

// await blocks until promise settles. It must not be called from the
// goroutine running the JS event loop callbacks.
func await(ctx context.Context, promise js.Value) (js.Value, error) {
	type settled struct {
		value js.Value
		err   error
	}
	done := make(chan settled, 1)

	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) any {
		done <- settled{value: args[0]}
		return nil
	})
	defer onResolve.Release()
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		reason := "promise rejected"
		if len(args) > 0 {
			reason = args[0].Call("toString").String()
		}
		done <- settled{err: errors.New(reason)}
		return nil
	})
	defer onReject.Release()

	promise.Call("then", onResolve, onReject)
	select {
	case s := <-done:
		return s.value, s.err
	case <-ctx.Done():
		return js.Undefined(), fmt.Errorf("waiting for promise: %w", ctx.Err())
	}
}
