package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	config   string
	db       string
	backend  string
	logLevel string
	json     bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "qoxide",
		Short:         "A lightweight local job queue backed by SQLite",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig(cmd)
			return ctx.report(cmd, err)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.db, "db", "", "SQLite database path (default ./qoxide.db, \":memory:\" for ephemeral)")
	pf.StringVar(&flags.backend, "backend", "", "Storage backend: sqlite, memory, or postgres")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level for stderr diagnostics (debug, info, warn, error)")
	pf.BoolVar(&flags.json, "json", false, "Output in JSON format")

	rootCmd.AddCommand(newAddCommand(ctx))
	rootCmd.AddCommand(newReserveCommand(ctx))
	rootCmd.AddCommand(newCompleteCommand(ctx))
	rootCmd.AddCommand(newFailCommand(ctx))
	rootCmd.AddCommand(newGetCommand(ctx))
	rootCmd.AddCommand(newSizeCommand(ctx))
	rootCmd.AddCommand(newHealthCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
