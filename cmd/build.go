package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cottand/wasmboot/bundle"
	"github.com/cottand/wasmboot/internal/log"
	"github.com/spf13/cobra"
)

var BuildCmd = &cobra.Command{
	Use:          "build",
	Short:        "Build the bundle described by a wasmboot.hcl",
	RunE:         runBuild,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
}

type buildFlags struct {
	config   string
	mode     string
	out      string
	logLevel int
}

var buildOpts = &buildFlags{}

func init() {
	registerBuildFlags(BuildCmd, buildOpts)
}

func registerBuildFlags(cmd *cobra.Command, opts *buildFlags) {
	cmd.Flags().StringVarP(&opts.config, "config", "c", bundle.DefaultConfigFile, "path of the HCL build configuration")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "override the configured mode (development|production)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "override the configured output path")
	cmd.Flags().IntVarP(&opts.logLevel, "log-level", "l", int(slog.LevelWarn), "log level")
}

// loadConfig reads the config at opts.config and applies the flag overrides.
// A missing default config file is not an error: the defaults are used instead.
func loadConfig(cmd *cobra.Command, opts *buildFlags) (*bundle.Config, error) {
	var (
		cfg *bundle.Config
		err error
	)
	_, statErr := os.Stat(opts.config)
	if os.IsNotExist(statErr) && !cmd.Flags().Changed("config") {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get working directory: %w", err)
		}
		cfg = bundle.DefaultConfig(wd)
	} else {
		cfg, err = bundle.LoadConfig(opts.config)
		if err != nil {
			return nil, err
		}
	}

	if opts.mode != "" {
		cfg.Mode = opts.mode
	}
	if opts.out != "" {
		out, err := filepath.Abs(opts.out)
		if err != nil {
			return nil, fmt.Errorf("could not get absolute path of output: %w", err)
		}
		cfg.Output.Path = out
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runBuild(cmd *cobra.Command, _ []string) error {
	log.SetLevel(slog.Level(buildOpts.logLevel))

	cfg, err := loadConfig(cmd, buildOpts)
	if err != nil {
		return err
	}
	manifest, err := (&bundle.Builder{}).Build(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("could not build bundle: %w", err)
	}

	cmd.Printf("built %d files into %s\n", len(manifest.Files), manifest.OutputDir)
	for _, f := range manifest.Files {
		cmd.Printf("  %s\n", f)
	}
	return nil
}
