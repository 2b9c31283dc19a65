//go:build !(js || wasm)

package main

import (
	"os"

	"github.com/cottand/wasmboot/cmd"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "wasmboot [subcommand]",
	Short:        "wasmboot builds, serves, and runs WebAssembly modules",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.BuildCmd)
	rootCmd.AddCommand(cmd.StartCmd)
	rootCmd.AddCommand(cmd.RunCmd)
}
