package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchChunkSize is the store's hard ceiling on writes per batch.
const BatchChunkSize = 500

// BatchSave saves an arbitrary-length list of documents in chunks of at
// most BatchChunkSize, each chunk committed as one atomic batch. Chunks
// commit concurrently and independently: one chunk's failure does not
// roll back the others. The first error is returned after all chunks
// settle.
func BatchSave(ctx context.Context, store Store, docs []*Document) error {
	return eachChunk(ctx, store, docs, func(ctx context.Context, b Batch, doc *Document) error {
		return doc.Save(ctx, false, b)
	})
}

// BatchDelete deletes documents with the same chunking and concurrency
// semantics as BatchSave.
func BatchDelete(ctx context.Context, store Store, docs []*Document) error {
	return eachChunk(ctx, store, docs, func(ctx context.Context, b Batch, doc *Document) error {
		return doc.Delete(ctx, b)
	})
}

func eachChunk(ctx context.Context, store Store, docs []*Document, op func(context.Context, Batch, *Document) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(docs); start += BatchChunkSize {
		end := min(start+BatchChunkSize, len(docs))
		chunk := docs[start:end]
		g.Go(func() error {
			b := store.NewBatch()
			for _, doc := range chunk {
				if err := op(ctx, b, doc); err != nil {
					return err
				}
			}
			return b.Commit(ctx)
		})
	}
	return g.Wait()
}
