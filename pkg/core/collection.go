package core

import (
	"context"
	"log/slog"

	"github.com/aretw0/silt/pkg/ident"
)

// Collection is a query-bound cache of Documents keyed by id. It
// executes the bound query, refreshes its members from results and
// live pushes, and offers bulk mutation over the whole set.
//
// The cache only ever contains documents produced by the most recent
// query execution or by explicit local Add/Set/Delete calls since; it
// is pruned only on each fresh Get.
type Collection struct {
	store   Store
	codec   Codec
	hooks   Hooks
	logger  *slog.Logger
	idField string
	idFunc  func() string

	path   string
	spec   QuerySpec
	docs   map[string]*Document
	order  []string
	loaded bool

	watchCancel CancelFunc
	stream      *fanout[[]*Document]
}

// CollOption configures a Collection at construction.
type CollOption func(*Collection)

// WithCollCodec installs a codec propagated to member documents.
func WithCollCodec(c Codec) CollOption {
	return func(c2 *Collection) { c2.codec = c }
}

// WithCollHooks installs save-cycle hooks propagated to member
// documents.
func WithCollHooks(h Hooks) CollOption {
	return func(c *Collection) { c.hooks = h }
}

// WithCollLogger sets the logger.
func WithCollLogger(logger *slog.Logger) CollOption {
	return func(c *Collection) { c.logger = logger }
}

// WithIDFunc overrides how Add generates new ids (default: random;
// supply a time-ordered generator for sortable ids).
func WithIDFunc(fn func() string) CollOption {
	return func(c *Collection) { c.idFunc = fn }
}

// NewCollection binds a collection to the path built from a template
// and a structured key (for subcollections nested under a parent).
func NewCollection(store Store, tmpl Template, key Key, opts ...CollOption) (*Collection, error) {
	path, err := tmpl.Build(key)
	if err != nil {
		return nil, err
	}
	return NewCollectionAt(store, path, opts...), nil
}

// NewCollectionAt binds a collection directly to a raw path.
func NewCollectionAt(store Store, path string, opts ...CollOption) *Collection {
	c := &Collection{
		store:   store,
		path:    path,
		spec:    QuerySpec{Path: path},
		docs:    make(map[string]*Document),
		idField: "id",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the resolved collection path.
func (c *Collection) Path() string { return c.path }

// Loaded reports whether a query execution has populated the cache.
func (c *Collection) Loaded() bool { return c.loaded }

// SetKey re-points the collection. Any active watch is torn down since
// the underlying query reference changed; the cache survives until the
// next Get.
func (c *Collection) SetKey(tmpl Template, key Key) error {
	path, err := tmpl.Build(key)
	if err != nil {
		return err
	}
	c.Unwatch()
	c.path = path
	c.spec.Path = path
	c.loaded = false
	return nil
}

// Where appends an AND-ed filter condition. Changing the condition
// tears down an active watch.
func (c *Collection) Where(field string, op Op, value any) *Collection {
	c.Unwatch()
	c.spec.Wheres = append(c.spec.Wheres, Where{Field: field, Op: op, Value: value})
	return c
}

// OrderBy sets the single-field ordering clause.
func (c *Collection) OrderBy(field string, desc bool) *Collection {
	c.Unwatch()
	c.spec.OrderBy = &Order{Field: field, Desc: desc}
	return c
}

// Limit caps the result count from the start of the ordering.
func (c *Collection) Limit(n int) *Collection {
	c.Unwatch()
	c.spec.Limit = n
	return c
}

// LimitToLast caps the result count from the end of the ordering.
func (c *Collection) LimitToLast(n int) *Collection {
	c.Unwatch()
	c.spec.LimitToLast = n
	return c
}

// StartAt sets the inclusive lower cursor on the order-by value.
func (c *Collection) StartAt(v any) *Collection {
	c.Unwatch()
	c.spec.StartAt = v
	return c
}

// StartAfter sets the exclusive lower cursor.
func (c *Collection) StartAfter(v any) *Collection {
	c.Unwatch()
	c.spec.StartAfter = v
	return c
}

// EndAt sets the inclusive upper cursor.
func (c *Collection) EndAt(v any) *Collection {
	c.Unwatch()
	c.spec.EndAt = v
	return c
}

// EndBefore sets the exclusive upper cursor.
func (c *Collection) EndBefore(v any) *Collection {
	c.Unwatch()
	c.spec.EndBefore = v
	return c
}

// Spec returns a copy of the bound query spec.
func (c *Collection) Spec() QuerySpec { return c.spec }

// Get executes the bound query and replaces the entire cache with the
// results, keyed by id.
func (c *Collection) Get(ctx context.Context) error {
	snaps, err := c.store.Query(ctx, c.spec)
	if err != nil {
		return err
	}
	c.docs = make(map[string]*Document, len(snaps))
	c.order = c.order[:0]
	for _, snap := range snaps {
		c.docs[snap.ID] = c.newMember(snap)
		c.order = append(c.order, snap.ID)
	}
	c.loaded = true
	return nil
}

// Load is Get that short-circuits when the cache is already populated.
func (c *Collection) Load(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	return c.Get(ctx)
}

// Add generates a new id, delegates to Set, and returns the created
// document.
func (c *Collection) Add(ctx context.Context, data FieldMap, w Writer) (*Document, error) {
	id := c.generateID()
	return c.Set(ctx, id, data, w)
}

// Set constructs a document bound to path/id, forces a full save, and
// inserts it into the cache.
func (c *Collection) Set(ctx context.Context, id string, data FieldMap, w Writer) (*Document, error) {
	doc := NewDocumentAt(c.store, JoinPath(c.path, id), c.memberOptions(WithData(data))...)
	if err := doc.Save(ctx, true, w); err != nil {
		return nil, err
	}
	c.insert(id, doc)
	return doc, nil
}

// Delete removes the document remotely and from the cache regardless
// of prior local presence.
func (c *Collection) Delete(ctx context.Context, id string, w Writer) error {
	writer := Writer(c.store)
	if w != nil {
		writer = w
	}
	if err := writer.Delete(ctx, JoinPath(c.path, id)); err != nil {
		return err
	}
	c.remove(id)
	return nil
}

// Save saves every cached document (non-forced dispatch each). Without
// an ambient writer the whole iteration runs inside one fresh
// transaction, so the bulk save is atomic.
func (c *Collection) Save(ctx context.Context, w Writer) error {
	if w == nil {
		return c.store.RunTransaction(ctx, func(tx Tx) error {
			return c.saveAll(ctx, tx)
		})
	}
	return c.saveAll(ctx, w)
}

func (c *Collection) saveAll(ctx context.Context, w Writer) error {
	for _, id := range c.order {
		if doc, ok := c.docs[id]; ok {
			if err := doc.Save(ctx, false, w); err != nil {
				return err
			}
		}
	}
	return nil
}

// Watch registers the single live listener on the bound query. Each
// push applies the id-level diff to the cache, reusing cached Document
// instances where the id already has one, and then forwards the raw
// push to fn. A second Watch while one is active fails with
// ErrAlreadyWatching.
func (c *Collection) Watch(fn func(QuerySnapshot)) (CancelFunc, error) {
	if c.watchCancel != nil {
		return nil, ErrAlreadyWatching
	}

	cancel, err := c.store.WatchQuery(c.spec, func(qs QuerySnapshot) {
		c.applyChanges(qs)
		if c.logger != nil {
			c.logger.Debug("query push", "path", c.path, "docs", len(qs.Docs), "changes", len(qs.Changes))
		}
		if fn != nil {
			fn(qs)
		}
	})
	if err != nil {
		return nil, err
	}

	c.watchCancel = func() {
		c.watchCancel = nil
		cancel()
	}
	return c.Unwatch, nil
}

// Unwatch cancels the active watch, if any.
func (c *Collection) Unwatch() {
	if c.watchCancel != nil {
		c.watchCancel()
	}
}

// Subscribe returns a pull-based stream whose emissions are full array
// snapshots of the current documents. A late subscriber immediately
// receives the last-known array when one exists, without waiting for
// the next remote push.
func (c *Collection) Subscribe() (*Subscription[[]*Document], error) {
	if c.stream == nil {
		c.stream = newFanout[[]*Document](func(publish func([]*Document)) (CancelFunc, error) {
			return c.Watch(func(QuerySnapshot) {
				publish(c.All())
			})
		}, true)
	}
	return c.stream.subscribe()
}

// applyChanges folds one push diff into the cache. Added and modified
// ids reuse the cached instance when present and construct one
// otherwise; removed ids drop exactly that entry.
func (c *Collection) applyChanges(qs QuerySnapshot) {
	for _, ch := range qs.Changes {
		switch ch.Kind {
		case ChangeAdded, ChangeModified:
			if doc, ok := c.docs[ch.Doc.ID]; ok {
				doc.applySnapshot(ch.Doc)
			} else {
				c.insert(ch.Doc.ID, c.newMember(ch.Doc))
			}
		case ChangeRemoved:
			c.remove(ch.Doc.ID)
		}
	}
	c.loaded = true
}

// First returns the first cached document in result order, or nil when
// the cache is empty.
func (c *Collection) First() *Document {
	if len(c.order) == 0 {
		return nil
	}
	return c.docs[c.order[0]]
}

// Find returns the cached document for id, or nil.
func (c *Collection) Find(id string) *Document {
	return c.docs[id]
}

// All returns the cached documents in result order.
func (c *Collection) All() []*Document {
	out := make([]*Document, 0, len(c.order))
	for _, id := range c.order {
		if doc, ok := c.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out
}

// Len reports the cache size.
func (c *Collection) Len() int { return len(c.docs) }

// Docs returns the documents, executing the query first when the cache
// is unloaded or force is set.
func (c *Collection) Docs(ctx context.Context, force bool) ([]*Document, error) {
	if !c.loaded || force {
		if err := c.Get(ctx); err != nil {
			return nil, err
		}
	}
	return c.All(), nil
}

func (c *Collection) newMember(snap DocSnapshot) *Document {
	doc := NewDocumentAt(c.store, snap.Path, c.memberOptions()...)
	doc.applySnapshot(snap)
	return doc
}

func (c *Collection) memberOptions(extra ...DocOption) []DocOption {
	opts := []DocOption{
		WithCodec(c.codec),
		WithHooks(c.hooks),
		WithLogger(c.logger),
		WithIDField(c.idField),
	}
	return append(opts, extra...)
}

func (c *Collection) insert(id string, doc *Document) {
	if _, present := c.docs[id]; !present {
		c.order = append(c.order, id)
	}
	c.docs[id] = doc
}

func (c *Collection) remove(id string) {
	if _, present := c.docs[id]; !present {
		return
	}
	delete(c.docs, id)
	for i, cand := range c.order {
		if cand == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Collection) generateID() string {
	if c.idFunc != nil {
		return c.idFunc()
	}
	return ident.Random()
}
