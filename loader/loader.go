// Package loader acquires external binary modules and invokes their entry point.
//
// A Loader runs a single acquisition per Start on its own goroutine, so
// callers are never blocked while a module is fetched and instantiated.
// Once the module.Handle is available, the Loader writes the export names and
// the type of the entry point to its Console, calls the entry point if it is
// callable, and releases the handle.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cottand/wasmboot/internal/log"
	"github.com/cottand/wasmboot/module"
	"github.com/pkg/errors"
)

var loaderLogger = log.DefaultLogger.With("section", "loader")

// ErrAcquisition is the only failure kind of the loader: fetching,
// compiling, or instantiating the module went wrong
var ErrAcquisition = errors.New("module acquisition failed")

type acquisitionError struct {
	reason error
}

func (e *acquisitionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrAcquisition, e.reason)
}

func (e *acquisitionError) Unwrap() []error {
	return []error{ErrAcquisition, e.reason}
}

// Acquirer obtains a module.Handle. Acquire may block for as long as the
// module takes to be fetched and instantiated.
type Acquirer interface {
	Acquire(ctx context.Context) (*module.Handle, error)
}

// AcquirerFunc adapts a function to the Acquirer interface
type AcquirerFunc func(ctx context.Context) (*module.Handle, error)

func (f AcquirerFunc) Acquire(ctx context.Context) (*module.Handle, error) {
	return f(ctx)
}

// Reporter receives the reason of a failed acquisition
type Reporter func(reason error)

// LogReporter logs the failure reason at error level
func LogReporter(reason error) {
	loaderLogger.Error("could not acquire module", "reason", reason)
}

// Loader acquires a module and runs its entry point. Acquisition failures
// go to the Reporter and never reach the Console; on success the Console
// gets the export names and the entry's type, and the entry is called if
// it takes no arguments. The zero value needs only an Acquirer.
type Loader struct {
	Acquirer Acquirer
	// Entry is the name of the entry point export, module.DefaultEntry if empty
	Entry string
	// Console receives the two informational lines of a successful load, os.Stdout if nil
	Console io.Writer
	// Reporter is called once per failed acquisition, LogReporter if nil
	Reporter Reporter
}

// Task is the pending result of a Loader.Start
type Task struct {
	done chan struct{}
	err  error
}

// Done is closed once the load has finished, successfully or not
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the load is finished and returns its error.
//
// The error matches ErrAcquisition when the module could not be acquired,
// in which case it was already passed to the Reporter. Otherwise, it is
// whatever the entry point returned.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Start begins loading the module and returns immediately.
// Every call performs a new acquisition: handles are never cached.
func (l *Loader) Start(ctx context.Context) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.err = l.load(ctx)
	}()
	return t
}

// Load is like Start, but waits for the load to finish
func (l *Loader) Load(ctx context.Context) error {
	return l.Start(ctx).Wait()
}

func (l *Loader) load(ctx context.Context) error {
	if l.Acquirer == nil {
		return l.fail(errors.New("no acquirer configured"))
	}
	handle, err := l.Acquirer.Acquire(ctx)
	if err != nil {
		return l.fail(err)
	}
	if handle == nil {
		return l.fail(errors.New("acquirer returned no module"))
	}
	defer func() {
		if err := handle.Close(context.WithoutCancel(ctx)); err != nil {
			loaderLogger.Warn("could not release module", "error", err)
		}
	}()

	entry := l.Entry
	if entry == "" {
		entry = module.DefaultEntry
	}

	names, err := json.Marshal(handle.Names())
	if err != nil {
		return errors.Wrap(err, "encode export names")
	}
	console := l.console()
	_, _ = fmt.Fprintf(console, "Available exports: %s\n", names)
	_, _ = fmt.Fprintf(console, "main function: %s\n", handle.EntryType(entry))

	call := handle.Entry(entry)
	if call == nil {
		loaderLogger.Debug("module has no callable entry point", "entry", entry)
		return nil
	}
	loaderLogger.Debug("invoking entry point", "entry", entry)
	return call(ctx)
}

func (l *Loader) fail(reason error) error {
	report := l.Reporter
	if report == nil {
		report = LogReporter
	}
	report(reason)
	return &acquisitionError{reason: reason}
}

func (l *Loader) console() io.Writer {
	if l.Console == nil {
		return os.Stdout
	}
	return l.Console
}
