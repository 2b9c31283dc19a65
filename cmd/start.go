package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cottand/wasmboot/bundle"
	"github.com/cottand/wasmboot/internal/log"
	"github.com/spf13/cobra"
)

var StartCmd = &cobra.Command{
	Use:          "start",
	Short:        "Build the bundle and serve it for development",
	RunE:         runStart,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
}

var (
	startOpts = &buildFlags{}
	startAddr *string
)

func init() {
	registerBuildFlags(StartCmd, startOpts)
	startAddr = StartCmd.Flags().StringP("addr", "a", ":8080", "address to serve the bundle on")
}

func runStart(cmd *cobra.Command, _ []string) error {
	log.SetLevel(slog.Level(startOpts.logLevel))

	cfg, err := loadConfig(cmd, startOpts)
	if err != nil {
		return err
	}
	manifest, err := (&bundle.Builder{}).Build(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("could not build bundle: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Printf("serving %s on %s\n", manifest.OutputDir, *startAddr)
	return bundle.Serve(ctx, manifest.OutputDir, *startAddr)
}
