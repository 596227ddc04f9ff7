package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"terrainviewer/internal/config"
	"terrainviewer/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "terrainviewer",
		Short:         "Render satellite imagery tinted by elevation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (.json, .toml or .yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newViewCmd(opts),
		newRenderCmd(opts),
		newServeCmd(opts),
		newPrefetchCmd(opts),
		newShaderCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// setup loads the config and installs the logger before any subcommand runs.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	if o.configPath != "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		o.cfg = cfg
	} else {
		o.cfg = config.Get()
	}

	level := o.cfg.Log.Level
	if cmd.Flags().Changed("log-level") {
		level = o.logLevel
	}
	logger.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logger.ParseLevel(level),
	})))
	return nil
}
