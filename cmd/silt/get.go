package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/silt"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [path]",
	Short: "Read a document",
	Long:  `Read the document at the given path (e.g. "users/alice") and print it as JSON.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore(true)
		defer store.Close()

		doc := silt.NewDocumentAt(store, args[0])
		if err := doc.Get(context.Background()); err != nil {
			fatal("failed to read document", err)
		}
		if !doc.Exists() {
			fmt.Fprintf(os.Stderr, "document not found: %s\n", args[0])
			os.Exit(1)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(doc.Data()); err != nil {
			fatal("failed to encode JSON", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
