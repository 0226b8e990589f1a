package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/silt"
	"github.com/aretw0/silt/pkg/core"
	"github.com/spf13/cobra"
)

var (
	listJSON   bool
	listWheres []string
	listOrder  string
	listDesc   bool
	listLimit  int
)

// where clauses parse longest-operator-first so ">=" wins over ">".
var whereOps = []core.Op{
	core.OpLessEqual, core.OpGreaterEqual, core.OpEqual, core.OpNotEqual,
	core.OpLess, core.OpGreater,
}

var listCmd = &cobra.Command{
	Use:   "list [collection]",
	Short: "List the documents of a collection",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore(true)
		defer store.Close()

		coll := silt.NewCollectionAt(store, args[0])
		for _, clause := range listWheres {
			field, op, value, err := parseWhere(clause)
			if err != nil {
				fatal("invalid --where clause", err)
			}
			coll = coll.Where(field, op, value)
		}
		if listOrder != "" {
			coll = coll.OrderBy(listOrder, listDesc)
		}
		if listLimit > 0 {
			coll = coll.Limit(listLimit)
		}

		if err := coll.Get(context.Background()); err != nil {
			fatal("failed to query collection", err)
		}

		if listJSON {
			out := make([]silt.FieldMap, 0, coll.Len())
			for _, doc := range coll.All() {
				out = append(out, doc.Data())
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(out); err != nil {
				fatal("failed to encode JSON", err)
			}
			return
		}

		for _, doc := range coll.All() {
			fmt.Println(doc.Path())
		}
	},
}

// parseWhere splits a clause like "age>=30" or "name==\"Alice\"". The
// value side is parsed as JSON when possible and kept as a raw string
// otherwise.
func parseWhere(clause string) (string, core.Op, any, error) {
	for _, op := range whereOps {
		idx := strings.Index(clause, string(op))
		if idx <= 0 {
			continue
		}
		field := strings.TrimSpace(clause[:idx])
		raw := strings.TrimSpace(clause[idx+len(op):])

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		return field, op, value, nil
	}
	return "", "", nil, fmt.Errorf("no operator in %q", clause)
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringArrayVarP(&listWheres, "where", "w", nil, `Filter clause, e.g. "age>=30" (repeatable)`)
	listCmd.Flags().StringVar(&listOrder, "order", "", "Field to order by")
	listCmd.Flags().BoolVar(&listDesc, "desc", false, "Order descending")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of documents")
}
