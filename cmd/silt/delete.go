package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [path]",
	Short: "Delete a document",
	Long:  `Delete permanently removes the document at the given path. Deleting a missing document is a no-op.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore(true)
		defer store.Close()

		if err := store.Delete(context.Background(), args[0]); err != nil {
			fatal("failed to delete document", err)
		}

		fmt.Printf("Document deleted: %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
