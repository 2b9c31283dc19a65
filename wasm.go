//go:build js && wasm

package main

import (
	"context"
	"syscall/js"

	"github.com/cottand/wasmboot/loader"
)

// moduleGlobal names the JS global holding the URL of the module to load
const moduleGlobal = "wasmbootModule"

func main() {
	url := "pkg/module.wasm"
	if v := js.Global().Get(moduleGlobal); v.Type() == js.TypeString {
		url = v.String()
	}

	l := &loader.Loader{Acquirer: &loader.JSAcquirer{URL: url}}
	// failures were already logged by the loader's reporter
	_ = l.Load(context.Background())
}
