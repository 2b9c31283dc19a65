package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cottand/wasmboot/internal/log"
	"github.com/cottand/wasmboot/loader"
	"github.com/cottand/wasmboot/module"
	"github.com/spf13/cobra"
)

var RunCmd = &cobra.Command{
	Use:          "run [module.wasm|url|script.go]",
	Short:        "Load a module and call its entry point",
	RunE:         runRun,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	runEntry    *string
	runLogLevel *int
)

func init() {
	runEntry = RunCmd.Flags().StringP("entry", "e", "", "name of the entry point export (main for wasm, Main for Go scripts)")
	runLogLevel = RunCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
}

// acquirerFor picks how to acquire target from its extension
func acquirerFor(target string) (loader.Acquirer, string) {
	if filepath.Ext(target) == ".go" {
		return &loader.ScriptAcquirer{Path: target, Stdout: os.Stdout, Stderr: os.Stderr}, loader.ScriptEntry
	}
	return &loader.WasmAcquirer{Location: target, Stdout: os.Stdout, Stderr: os.Stderr}, module.DefaultEntry
}

func runRun(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*runLogLevel))

	acquirer, entry := acquirerFor(args[0])
	if *runEntry != "" {
		entry = *runEntry
	}
	l := &loader.Loader{
		Acquirer: acquirer,
		Entry:    entry,
		Console:  cmd.OutOrStdout(),
	}
	return l.Load(cmd.Context())
}
