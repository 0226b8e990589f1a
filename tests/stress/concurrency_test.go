package stress

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/silt"
	"github.com/aretw0/silt/pkg/core"
)

// TestConcurrency_ExternalVsInternal runs a noisy-neighbor scenario
// against the file adapter: an external actor rewrites raw files while
// documents save through the store and a watcher consumes pushes. The
// assertions are about survival: no panic, no corruption, a clean query
// afterwards.
func TestConcurrency_ExternalVsInternal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	root := t.TempDir()
	store, err := silt.Open(root, silt.WithAdapter("file"))
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup

	// External actor: raw writes straight to the directory.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = os.MkdirAll(filepath.Join(root, "docs"), 0755)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				name := fmt.Sprintf("noise-%d.json", rand.Intn(10))
				content := fmt.Sprintf(`{"at": %d}`, time.Now().UnixNano())
				_ = os.WriteFile(filepath.Join(root, "docs", name), []byte(content), 0644)
				time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
			}
		}
	}()

	// Internal actor: document saves through the store. Errors are
	// tolerated under contention; crashing is not.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				doc := silt.NewDocumentAt(store, fmt.Sprintf("docs/data-%d", rand.Intn(10)))
				doc.SetField("ts", time.Now().UnixNano())
				_ = doc.Save(context.Background(), true, nil)
				time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
			}
		}
	}()

	// Watcher actor: observes the collection and discards pushes.
	watchCancel, err := store.WatchQuery(silt.QuerySpec{Path: "docs"}, func(core.QuerySnapshot) {})
	require.NoError(t, err)
	defer watchCancel()

	wg.Wait()

	// Post-chaos check: every surviving file must still parse and query.
	snaps, err := store.Query(context.Background(), silt.QuerySpec{Path: "docs"})
	require.NoError(t, err)
	t.Logf("survived chaos with %d documents", len(snaps))
}
