package loader

import (
	"context"
	"go/build"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"reflect"

	"github.com/cottand/wasmboot/module"
	"github.com/pkg/errors"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ScriptEntry is the entry point of script modules, as Go cannot export main
const ScriptEntry = "Main"

// ScriptAcquirer interprets a single-file Go library package with yaegi.
// The exported identifiers of the package become the exports of the module.
type ScriptAcquirer struct {
	// FS to read Path from, the local filesystem if nil
	FS   fs.FS
	Path string

	Stdout io.Writer
	Stderr io.Writer
}

func (a *ScriptAcquirer) Acquire(ctx context.Context) (*module.Handle, error) {
	src, err := a.read()
	if err != nil {
		return nil, err
	}

	clause, err := parser.ParseFile(token.NewFileSet(), a.Path, src, parser.PackageClauseOnly)
	if err != nil {
		return nil, errors.Wrap(err, "parse package clause")
	}
	pkgName := clause.Name.Name
	if pkgName == "main" {
		return nil, errors.Errorf("%s: script modules must be library packages, not package main", a.Path)
	}

	opts := interp.Options{GoPath: build.Default.GOPATH}
	if a.Stdout != nil {
		opts.Stdout = a.Stdout
	}
	if a.Stderr != nil {
		opts.Stderr = a.Stderr
	}
	i := interp.New(opts)
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, errors.Wrap(err, "load Go interpreter stdlib")
	}
	if _, err := i.EvalWithContext(ctx, string(src)); err != nil {
		return nil, errors.Wrapf(err, "evaluate %s", a.Path)
	}

	symbols := packageSymbols(i, pkgName)
	exports := make([]module.Export, 0, len(symbols))
	for name, value := range symbols {
		exports = append(exports, scriptExport(name, value))
	}
	loaderLogger.Debug("interpreted script module", "package", pkgName, "exports", len(exports))
	return module.NewHandle(nil, exports...), nil
}

func (a *ScriptAcquirer) read() ([]byte, error) {
	var (
		src []byte
		err error
	)
	if a.FS != nil {
		src, err = fs.ReadFile(a.FS, a.Path)
	} else {
		src, err = os.ReadFile(a.Path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", a.Path)
	}
	return src, nil
}

func scriptExport(name string, value reflect.Value) module.Export {
	if !value.IsValid() {
		return module.Value(name, "invalid")
	}
	t := value.Type()
	if t.Kind() != reflect.Func || t.NumIn() > 0 || value.IsNil() {
		return module.Value(name, t.String())
	}
	return module.Func(name, func(ctx context.Context) error {
		results := value.Call(nil)
		if len(results) == 0 {
			return nil
		}
		if err, ok := results[len(results)-1].Interface().(error); ok && err != nil {
			return err
		}
		return nil
	})
}

// packageSymbols returns the exported symbols of the evaluated package.
// Depending on how the source was evaluated, yaegi may register it under
// its own name or under main.
func packageSymbols(i *interp.Interpreter, pkgName string) map[string]reflect.Value {
	for _, path := range []string{pkgName, "main"} {
		if symbols := i.Symbols(path)[path]; len(symbols) > 0 {
			return symbols
		}
	}
	return nil
}
