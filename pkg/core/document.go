package core

import (
	"context"
	"fmt"
	"log/slog"
)

// Hooks are the optional save-cycle override points. They replace
// subclassing: supply them at construction instead of inheriting.
type Hooks struct {
	// BeforeSave runs before any payload is serialized. A non-nil error
	// aborts the save before any network call, leaving the ledger and
	// overwrite flag intact so a corrected retry reuses the same state.
	BeforeSave func(d *Document) error

	// AfterSave runs after a successful write.
	AfterSave func(d *Document)
}

type noPrior struct{}

// Document owns one remote document's local state: its fields, its
// existence flag, and a field-level change ledger used to compute
// minimal update payloads. All reads and writes against the remote
// store go through it.
//
// A Document is not safe for concurrent mutation from multiple
// goroutines beyond the guarantees called out on each method; the
// intended use is one cooperative owner per instance.
type Document struct {
	store   Store
	codec   Codec
	hooks   Hooks
	logger  *slog.Logger
	idField string

	path   string
	fields FieldMap

	// ledger records, per changed field, the value it held before the
	// current dirty period. Only the first observed prior value is kept;
	// later writes to the same field leave it untouched. noPrior marks
	// fields that had no prior value at all.
	ledger    map[string]any
	overwrite bool

	exists bool
	loaded bool
	saving bool

	watchCancel CancelFunc
	stream      *fanout[DocSnapshot]
}

// DocOption configures a Document at construction.
type DocOption func(*Document)

// WithData seeds initial fields through the tracked-write path, so the
// whole of the data is considered to-be-saved on the next save.
func WithData(data FieldMap) DocOption {
	return func(d *Document) {
		for k, v := range data {
			d.trackWrite(k, v, false)
		}
	}
}

// WithExists marks the document as already existing remotely (e.g. it
// was materialized from a query result).
func WithExists(exists bool) DocOption {
	return func(d *Document) { d.exists = exists }
}

// WithCodec installs a codec with custom leaf coercions.
func WithCodec(c Codec) DocOption {
	return func(d *Document) { d.codec = c }
}

// WithHooks installs the save-cycle hooks.
func WithHooks(h Hooks) DocOption {
	return func(d *Document) { d.hooks = h }
}

// WithLogger sets the logger. Nil disables logging.
func WithLogger(logger *slog.Logger) DocOption {
	return func(d *Document) { d.logger = logger }
}

// WithIDField overrides the synthetic identifier field name returned by
// Data. Defaults to "id". The field is always excluded from payloads.
func WithIDField(name string) DocOption {
	return func(d *Document) { d.idField = name }
}

// NewDocument binds a document to the path built from a template and a
// structured key. The key must fit the template shape.
func NewDocument(store Store, tmpl Template, key Key, opts ...DocOption) (*Document, error) {
	path, err := tmpl.Build(key)
	if err != nil {
		return nil, err
	}
	return NewDocumentAt(store, path, opts...), nil
}

// NewDocumentAt binds a document directly to a raw path. An empty path
// is allowed; operations needing a reference fail with
// ErrMissingReference until SetKey or SetPath resolves one.
func NewDocumentAt(store Store, path string, opts ...DocOption) *Document {
	d := &Document{
		store:   store,
		path:    path,
		fields:  make(FieldMap),
		ledger:  make(map[string]any),
		idField: "id",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ID returns the final path segment, or "" without a reference.
func (d *Document) ID() string {
	if d.path == "" {
		return ""
	}
	return LastSegment(d.path)
}

// Path returns the resolved remote path.
func (d *Document) Path() string { return d.path }

// Exists reports whether the document is currently believed to exist
// remotely.
func (d *Document) Exists() bool { return d.exists }

// Loaded reports whether at least one successful read populated the
// fields.
func (d *Document) Loaded() bool { return d.loaded }

// Dirty reports whether any field change is pending or a full overwrite
// is scheduled.
func (d *Document) Dirty() bool { return len(d.ledger) > 0 || d.overwrite }

// SetPath re-points the document at a new raw path. Dirty state is
// cleared (this is re-pointing, not merging) and any active watch is
// cancelled since it observed the old path.
func (d *Document) SetPath(path string) {
	d.Unwatch()
	d.path = path
	d.clearDirty()
	d.loaded = false
	d.exists = false
}

// SetKey re-points the document at the path built from tmpl and key.
func (d *Document) SetKey(tmpl Template, key Key) error {
	path, err := tmpl.Build(key)
	if err != nil {
		return err
	}
	d.SetPath(path)
	return nil
}

// Field reads one field. The second result reports presence; a field
// staged for deletion reads as absent.
func (d *Document) Field(name string) (any, bool) {
	v, ok := d.fields[name]
	if !ok || IsDelete(v) {
		return nil, false
	}
	return DeepCopy(v), true
}

// SetField writes one field through the change ledger. Writing the same
// value a field already holds still marks it dirty.
func (d *Document) SetField(name string, value any) {
	d.trackWrite(name, value, false)
}

// UnsetField removes a field. On a document known to exist remotely the
// field is staged with the delete sentinel so the next update removes
// it server-side; on a new document it is dropped outright (there is
// nothing remote to delete).
func (d *Document) UnsetField(name string) {
	d.trackWrite(name, nil, true)
}

// SetData replaces the whole field map and schedules a full overwrite.
// A structurally identical incoming map (deep equality, dates compared
// by millisecond instant) is a no-op and does not mark dirty.
func (d *Document) SetData(data FieldMap) {
	if DeepEqual(map[string]any(d.fields), map[string]any(data)) {
		return
	}
	d.fields = CopyFields(data)
	if d.fields == nil {
		d.fields = make(FieldMap)
	}
	d.ledger = make(map[string]any)
	d.overwrite = true
}

// Data returns a deep copy of the fields plus the synthetic identifier,
// safe to hand out without aliasing internal state. Fields staged for
// deletion are omitted.
func (d *Document) Data() FieldMap {
	out := make(FieldMap, len(d.fields)+1)
	for k, v := range d.fields {
		if IsDelete(v) {
			continue
		}
		out[k] = DeepCopy(v)
	}
	out[d.idField] = d.ID()
	return out
}

// trackWrite is the single funnel for every field mutation: set,
// overwrite, or delete.
func (d *Document) trackWrite(name string, value any, unset bool) {
	if _, tracked := d.ledger[name]; !tracked {
		prior, present := d.fields[name]
		if !present || IsDelete(prior) {
			d.ledger[name] = noPrior{}
		} else {
			d.ledger[name] = DeepCopy(prior)
		}
	}

	if unset {
		if d.exists {
			d.fields[name] = Delete
		} else {
			delete(d.fields, name)
		}
		return
	}
	d.fields[name] = value
}

// Prior returns the ledger's recorded pre-change value for a field. The
// second result is false when the field is not dirty or had no prior
// value.
func (d *Document) Prior(name string) (any, bool) {
	v, ok := d.ledger[name]
	if !ok {
		return nil, false
	}
	if _, none := v.(noPrior); none {
		return nil, false
	}
	return v, true
}

// Get fetches the current remote state, replaces the local fields
// wholesale, clears dirty state, and records existence and loadedness.
func (d *Document) Get(ctx context.Context) error {
	return d.get(ctx, nil)
}

// GetTx is Get inside an ambient transaction, for snapshot-consistent
// multi-document reads.
func (d *Document) GetTx(ctx context.Context, tx Reader) error {
	return d.get(ctx, tx)
}

// Load is Get that short-circuits when a read already populated the
// document.
func (d *Document) Load(ctx context.Context) error {
	if d.loaded {
		return nil
	}
	return d.get(ctx, nil)
}

func (d *Document) get(ctx context.Context, tx Reader) error {
	if d.path == "" {
		return ErrMissingReference
	}
	reader := Reader(d.store)
	if tx != nil {
		reader = tx
	}
	snap, err := reader.Read(ctx, d.path)
	if err != nil {
		return err
	}
	d.applySnapshot(snap)
	return nil
}

func (d *Document) applySnapshot(snap DocSnapshot) {
	d.fields = d.codec.Decode(snap.Fields)
	if d.fields == nil {
		d.fields = make(FieldMap)
	}
	d.clearDirty()
	d.exists = snap.Exists
	d.loaded = true
}

func (d *Document) clearDirty() {
	d.ledger = make(map[string]any)
	d.overwrite = false
}

// Set performs a full overwrite. When data is non-nil it replaces the
// local fields first (scheduling a full overwrite). The entire object,
// minus the synthetic identifier and any delete-staged fields, is
// serialized and written. A nil writer commits directly against the
// store; a Tx or Batch stages instead.
func (d *Document) Set(ctx context.Context, data FieldMap, w Writer) error {
	if d.path == "" {
		return ErrMissingReference
	}
	if err := d.beginSave(); err != nil {
		return err
	}
	defer d.endSave()

	if data != nil {
		d.SetData(data)
	}
	if err := d.runBeforeSave(); err != nil {
		return err
	}

	payload := make(FieldMap, len(d.fields))
	for k, v := range d.fields {
		if k == d.idField || IsDelete(v) {
			continue
		}
		payload[k] = v
	}

	if err := d.writer(w).Write(ctx, d.path, d.codec.Encode(payload)); err != nil {
		return err
	}

	d.commitLocal()
	d.runAfterSave()
	return nil
}

// Update performs a partial overwrite containing only the dirty fields.
// It is a deliberate no-op, with no network call, when nothing is
// dirty.
func (d *Document) Update(ctx context.Context, w Writer) error {
	if d.path == "" {
		return ErrMissingReference
	}
	if err := d.beginSave(); err != nil {
		return err
	}
	defer d.endSave()

	if len(d.ledger) == 0 {
		return nil
	}
	if err := d.runBeforeSave(); err != nil {
		return err
	}

	payload := make(FieldMap, len(d.ledger))
	for k := range d.ledger {
		if k == d.idField {
			continue
		}
		if v, ok := d.fields[k]; ok {
			payload[k] = v
		} else {
			// Unset on a new document removed the field locally; there
			// is nothing to send for it.
		}
	}

	// Every dirty field may have been an unset on a not-yet-existing
	// document, in which case nothing remains to send. The fields are
	// already gone locally; settle the ledger without claiming the
	// document now exists remotely.
	if len(payload) == 0 {
		d.clearDirty()
		return nil
	}

	if err := d.writer(w).Patch(ctx, d.path, d.codec.Encode(payload)); err != nil {
		return err
	}

	d.commitLocal()
	d.runAfterSave()
	return nil
}

// Save dispatches to Update when the document is known to exist, force
// is false, and no full overwrite is pending; otherwise to Set. This is
// the primary entry point.
func (d *Document) Save(ctx context.Context, force bool, w Writer) error {
	if d.exists && !force && !d.overwrite {
		return d.Update(ctx, w)
	}
	return d.Set(ctx, nil, w)
}

// Delete removes the remote document. It is a no-op when the document
// is not believed to exist. Local fields are left untouched; only the
// existence flag flips.
func (d *Document) Delete(ctx context.Context, w Writer) error {
	if d.path == "" {
		return ErrMissingReference
	}
	if !d.exists {
		return nil
	}
	if err := d.writer(w).Delete(ctx, d.path); err != nil {
		return err
	}
	d.exists = false
	return nil
}

// Watch registers the single live listener for this path. Every push
// updates local state the way Get does; the caller callback fires only
// for pushes where the document exists. Returns the cancel function.
// A second Watch while one is active fails with ErrAlreadyWatching.
func (d *Document) Watch(fn func(DocSnapshot)) (CancelFunc, error) {
	if d.path == "" {
		return nil, ErrMissingReference
	}
	if d.watchCancel != nil {
		return nil, ErrAlreadyWatching
	}

	cancel, err := d.store.WatchDoc(d.path, func(snap DocSnapshot) {
		d.applySnapshot(snap)
		if d.logger != nil {
			d.logger.Debug("document push", "path", snap.Path, "exists", snap.Exists)
		}
		if snap.Exists && fn != nil {
			fn(snap)
		}
	})
	if err != nil {
		return nil, err
	}

	d.watchCancel = func() {
		d.watchCancel = nil
		cancel()
	}
	return d.Unwatch, nil
}

// Unwatch cancels the active watch, if any.
func (d *Document) Unwatch() {
	if d.watchCancel != nil {
		d.watchCancel()
	}
}

// Subscribe returns a pull-based stream of pushed snapshots. The first
// subscriber opens the underlying watch; closing the last one tears it
// down. Each subscriber consumes through its own rendezvous queue, so
// slow consumers do not drop items.
func (d *Document) Subscribe() (*Subscription[DocSnapshot], error) {
	if d.stream == nil {
		d.stream = newFanout[DocSnapshot](func(publish func(DocSnapshot)) (CancelFunc, error) {
			return d.Watch(publish)
		}, false)
	}
	return d.stream.subscribe()
}

func (d *Document) writer(w Writer) Writer {
	if w != nil {
		return w
	}
	return d.store
}

func (d *Document) beginSave() error {
	if d.saving {
		return fmt.Errorf("%w: %s", ErrSaveInFlight, d.path)
	}
	d.saving = true
	return nil
}

func (d *Document) endSave() { d.saving = false }

func (d *Document) runBeforeSave() error {
	if d.hooks.BeforeSave == nil {
		return nil
	}
	return d.hooks.BeforeSave(d)
}

func (d *Document) runAfterSave() {
	if d.hooks.AfterSave != nil {
		d.hooks.AfterSave(d)
	}
}

// commitLocal applies the local effects of a successful write: delete-
// staged fields are gone remotely now, the ledger and overwrite flag
// clear together, and the document exists.
func (d *Document) commitLocal() {
	for k, v := range d.fields {
		if IsDelete(v) {
			delete(d.fields, k)
		}
	}
	d.clearDirty()
	d.exists = true
}
