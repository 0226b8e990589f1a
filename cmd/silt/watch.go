package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/silt"
	"github.com/aretw0/silt/pkg/core"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Stream pushes for a document or collection",
	Long: `Watch prints every push for the given path as a JSON line until
interrupted. A path with an even number of segments addresses a
document, an odd number a collection.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore(true)
		defer store.Close()

		path := args[0]
		encoder := json.NewEncoder(os.Stdout)

		var cancel silt.CancelFunc
		var err error
		if len(strings.Split(path, "/"))%2 == 0 {
			cancel, err = store.WatchDoc(path, func(snap core.DocSnapshot) {
				encoder.Encode(map[string]any{
					"path":   snap.Path,
					"exists": snap.Exists,
					"fields": snap.Fields,
				})
			})
		} else {
			cancel, err = store.WatchQuery(core.QuerySpec{Path: path}, func(qs core.QuerySnapshot) {
				for _, change := range qs.Changes {
					encoder.Encode(map[string]any{
						"kind":   change.Kind,
						"path":   change.Doc.Path,
						"fields": change.Doc.Fields,
					})
				}
			})
		}
		if err != nil {
			fatal("failed to watch", err)
		}
		defer cancel()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "watch stopped")
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
