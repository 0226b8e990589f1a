package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/silt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	setData  string
	setFile  string
	setMerge bool
)

// setCmd represents the set command
var setCmd = &cobra.Command{
	Use:   "set [path]",
	Short: "Write a document",
	Long: `Create or replace the document at the given path. The payload comes
from --data (inline JSON) or --file (JSON or YAML file). With --merge
only the given fields are updated.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fields, err := loadPayload()
		if err != nil {
			fatal("failed to load payload", err)
		}

		store := openStore(false)
		defer store.Close()

		ctx := context.Background()
		doc := silt.NewDocumentAt(store, args[0])

		if setMerge {
			if err := doc.Get(ctx); err != nil {
				fatal("failed to read document", err)
			}
			for k, v := range fields {
				doc.SetField(k, v)
			}
			if err := doc.Save(ctx, false, nil); err != nil {
				fatal("failed to save document", err)
			}
		} else {
			if err := doc.Set(ctx, fields, nil); err != nil {
				fatal("failed to write document", err)
			}
		}

		fmt.Printf("Document '%s' saved.\n", args[0])
	},
}

func loadPayload() (silt.FieldMap, error) {
	if setData == "" && setFile == "" {
		return nil, fmt.Errorf("either --data or --file is required")
	}

	var fields silt.FieldMap
	if setData != "" {
		if err := json.Unmarshal([]byte(setData), &fields); err != nil {
			return nil, fmt.Errorf("parse --data: %w", err)
		}
		return fields, nil
	}

	raw, err := os.ReadFile(setFile)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(setFile) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("parse %s: %w", setFile, err)
		}
	default:
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("parse %s: %w", setFile, err)
		}
	}
	return fields, nil
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().StringVarP(&setData, "data", "d", "", "Inline JSON payload")
	setCmd.Flags().StringVarP(&setFile, "file", "f", "", "Payload file (JSON or YAML)")
	setCmd.Flags().BoolVar(&setMerge, "merge", false, "Update only the given fields")
}
