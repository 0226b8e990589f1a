package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/silt"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	adapter string
	uri     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "silt",
	Short: "A change-tracking object-document mapper for JSON files and SQLite",
	Long: `Silt treats a directory of JSON files (or a SQLite database) as a
document database. Documents track field-level changes so saves send
only what actually changed.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// openStore builds the store addressed by the global flags.
func openStore(mustExist bool) silt.Store {
	target := uri
	if target == "" && adapter != "memory" {
		wd, err := os.Getwd()
		if err != nil {
			fatal("failed to get working directory", err)
		}
		target = wd
	}

	store, err := silt.Open(target,
		silt.WithAdapter(adapter),
		silt.WithMustExist(mustExist),
		silt.WithLogger(slog.Default()),
	)
	if err != nil {
		fatal("failed to open store", err)
	}
	return store
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "file", "Storage adapter (memory, file, sqlite)")
	rootCmd.PersistentFlags().StringVar(&uri, "uri", "", "Store location (file root or sqlite database; defaults to CWD)")
}
