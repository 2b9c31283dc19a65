// Package module describes the handle obtained after acquiring an external
// binary module: its named exports and its optional entry point.
package module

import (
	"context"
	"strings"

	"github.com/benbjohnson/immutable"
)

// DefaultEntry is the conventional name of the entry point export
const DefaultEntry = "main"

// TypeFunction is what Export.TypeOf reports for exports that can be called with no arguments
const TypeFunction = "function"

// TypeUndefined is what Handle.EntryType reports when there is no export under that name
const TypeUndefined = "undefined"

// EntryPoint is a callable export that takes no arguments.
// Any result the underlying function returns is discarded.
type EntryPoint func(ctx context.Context) error

// Export is a single named value exposed by a module.
type Export struct {
	Name string
	typ  string
	call EntryPoint
}

// Func returns an Export that can be called with no arguments
func Func(name string, call EntryPoint) Export {
	return Export{Name: name, typ: TypeFunction, call: call}
}

// Value returns a non-callable Export, where typ describes the runtime type
// of the exported value (for example "memory" or "function(i32) i32")
func Value(name, typ string) Export {
	if typ == TypeFunction || typ == "" {
		typ = "object"
	}
	return Export{Name: name, typ: typ}
}

// TypeOf returns "function" if and only if the export is callable with no arguments
func (e Export) TypeOf() string {
	if e.call != nil {
		return TypeFunction
	}
	return e.typ
}

// Callable returns the EntryPoint of this export, or nil if it cannot be invoked
func (e Export) Callable() EntryPoint {
	return e.call
}

type nameComparer struct{}

func (nameComparer) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Handle is the result of a successful acquisition.
// Its exports never change after construction.
type Handle struct {
	exports *immutable.SortedMap[string, Export]
	close   func(ctx context.Context) error
}

// NewHandle builds a Handle from exports. When two exports share a name,
// the last one wins.
//
// closer, which may be nil, releases whatever runtime produced the exports.
func NewHandle(closer func(ctx context.Context) error, exports ...Export) *Handle {
	m := immutable.NewSortedMap[string, Export](nameComparer{})
	for _, e := range exports {
		m = m.Set(e.Name, e)
	}
	return &Handle{exports: m, close: closer}
}

// Names returns the names of all exports in lexical order.
// The result is never nil.
func (h *Handle) Names() []string {
	names := make([]string, 0, h.exports.Len())
	itr := h.exports.Iterator()
	for !itr.Done() {
		name, _, _ := itr.Next()
		names = append(names, name)
	}
	return names
}

// Len is the number of exports
func (h *Handle) Len() int {
	return h.exports.Len()
}

// Lookup returns the export called name
func (h *Handle) Lookup(name string) (Export, bool) {
	return h.exports.Get(name)
}

// EntryType reports the runtime type of the export called name,
// or "undefined" when there is none
func (h *Handle) EntryType(name string) string {
	e, ok := h.exports.Get(name)
	if !ok {
		return TypeUndefined
	}
	return e.TypeOf()
}

// Entry returns the entry point called name, or nil if it is missing or not callable
func (h *Handle) Entry(name string) EntryPoint {
	e, ok := h.exports.Get(name)
	if !ok {
		return nil
	}
	return e.call
}

// Close releases the runtime backing this Handle. It is safe to call on
// handles without a runtime.
func (h *Handle) Close(ctx context.Context) error {
	if h.close == nil {
		return nil
	}
	return h.close(ctx)
}
