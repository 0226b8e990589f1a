package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/silt"
	"github.com/spf13/cobra"
)

var unsetCmd = &cobra.Command{
	Use:   "unset [path] [field...]",
	Short: "Remove fields from a document",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore(true)
		defer store.Close()

		ctx := context.Background()
		doc := silt.NewDocumentAt(store, args[0])
		if err := doc.Get(ctx); err != nil {
			fatal("failed to read document", err)
		}
		if !doc.Exists() {
			fmt.Fprintf(os.Stderr, "document not found: %s\n", args[0])
			os.Exit(1)
		}

		for _, field := range args[1:] {
			doc.UnsetField(field)
		}
		if err := doc.Update(ctx, nil); err != nil {
			fatal("failed to update document", err)
		}

		fmt.Printf("Document '%s' updated.\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(unsetCmd)
}
