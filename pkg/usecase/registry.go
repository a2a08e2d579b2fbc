package usecase

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/service/cache"
)

// Handle is an opaque reference to a table owned by a Registry
type Handle string

// String returns the handle as text
func (h Handle) String() string { return string(h) }

type registryEntry struct {
	table    *Table
	parent   Handle
	rowKey   string
	children []Handle
	// rows maps a parent row key to the child table opened for it
	rows map[string]Handle
}

// Registry owns every live table. Tables created through one registry share
// its response cache, and child tables keep a handle to their parent instead
// of a pointer. A child table belongs to one row of its parent: a row has at
// most one child, and the child is destroyed when the row is removed or the
// parent's rows are reloaded.
type Registry struct {
	mu      sync.RWMutex
	cache   *cache.Cache
	entries map[Handle]*registryEntry
	byID    map[string]Handle
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		cache:   cache.New(),
		entries: make(map[Handle]*registryEntry),
		byID:    make(map[string]Handle),
	}
}

// Create builds a table and registers it under cfg.ID. IDs are unique
// within the registry.
func (r *Registry) Create(ctx context.Context, cfg model.TableConfig, schema *model.Schema, opts ...TableOption) (Handle, *Table, error) {
	return r.create(ctx, "", "", cfg, schema, opts...)
}

// CreateChild builds a table for the row rowKey of parent. A child already
// open for that row is destroyed first. Destroying the parent, removing the
// row or reloading the parent destroys the child.
func (r *Registry) CreateChild(ctx context.Context, parent Handle, rowKey string, cfg model.TableConfig, schema *model.Schema, opts ...TableOption) (Handle, *Table, error) {
	r.mu.RLock()
	p, ok := r.entries[parent]
	r.mu.RUnlock()
	if !ok {
		return "", nil, goerr.Wrap(model.ErrConfiguration, "unknown parent table", goerr.V("parent", parent))
	}
	if rowKey == "" {
		return "", nil, goerr.Wrap(model.ErrConfiguration, "child table needs a parent row", goerr.V("parent", parent))
	}
	if _, ok := p.table.Record(rowKey); !ok {
		return "", nil, goerr.Wrap(model.ErrRecordNotFound, "parent row is not shown",
			goerr.V("parent", parent), goerr.V(model.RecordKeyKey, rowKey))
	}

	r.CloseChild(parent, rowKey)
	return r.create(ctx, parent, rowKey, cfg, schema, opts...)
}

// ChildOf returns the child table opened for the row rowKey of parent
func (r *Registry) ChildOf(parent Handle, rowKey string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[parent]
	if !ok {
		return "", false
	}
	h, ok := p.rows[rowKey]
	return h, ok
}

// CloseChild destroys the child table of the row rowKey of parent, if any
func (r *Registry) CloseChild(parent Handle, rowKey string) {
	if h, ok := r.ChildOf(parent, rowKey); ok {
		r.Destroy(h)
	}
}

// closeRowChildren destroys every row bound child of parent
func (r *Registry) closeRowChildren(parent Handle) {
	r.mu.Lock()
	var doomed []*Table
	if p, ok := r.entries[parent]; ok {
		for _, h := range p.rows {
			r.detachLocked(h, &doomed)
		}
	}
	r.mu.Unlock()

	for _, t := range doomed {
		t.Destroy()
	}
}

// watch ties the row bound children of h to the rows of its table
func (r *Registry) watch(h Handle, table *Table) {
	Subscribe(table.Events(), func(ev RecordDeletedEvent) {
		r.CloseChild(h, ev.Key)
	})
	Subscribe(table.Events(), func(RecordsLoadedEvent) {
		r.closeRowChildren(h)
	})
}

func (r *Registry) create(ctx context.Context, parent Handle, rowKey string, cfg model.TableConfig, schema *model.Schema, opts ...TableOption) (Handle, *Table, error) {
	r.mu.RLock()
	_, exists := r.byID[cfg.ID]
	r.mu.RUnlock()
	if cfg.ID != "" && exists {
		return "", nil, goerr.Wrap(model.ErrConfiguration, "table ID is already registered", goerr.V(model.TableIDKey, cfg.ID))
	}

	table, err := NewTable(ctx, cfg, schema, append([]TableOption{WithCache(r.cache)}, opts...)...)
	if err != nil {
		return "", nil, err
	}

	h := Handle(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg.ID != "" {
		if _, exists := r.byID[cfg.ID]; exists {
			table.Destroy()
			return "", nil, goerr.Wrap(model.ErrConfiguration, "table ID is already registered", goerr.V(model.TableIDKey, cfg.ID))
		}
		r.byID[cfg.ID] = h
	}
	if parent != "" {
		p, ok := r.entries[parent]
		if !ok {
			table.Destroy()
			return "", nil, goerr.Wrap(model.ErrConfiguration, "parent table was destroyed", goerr.V("parent", parent))
		}
		p.children = append(p.children, h)
		p.rows[rowKey] = h
	}
	r.entries[h] = &registryEntry{table: table, parent: parent, rowKey: rowKey, rows: make(map[string]Handle)}
	r.watch(h, table)

	return h, table, nil
}

// Get returns the table of h
func (r *Registry) Get(h Handle) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[h]
	if !ok {
		return nil, false
	}
	return e.table, true
}

// Lookup finds a table by its ID
func (r *Registry) Lookup(id string) (Handle, *Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	if !ok {
		return "", nil, false
	}
	return h, r.entries[h].table, true
}

// Parent returns the parent of a child table
func (r *Registry) Parent(h Handle) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[h]
	if !ok || e.parent == "" {
		return "", false
	}
	return e.parent, true
}

// Children returns the child tables of h in creation order
func (r *Registry) Children(h Handle) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[h]
	if !ok {
		return nil
	}
	return slices.Clone(e.children)
}

// Len returns the number of live tables
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Destroy destroys h and its children, and forgets them
func (r *Registry) Destroy(h Handle) {
	r.mu.Lock()
	var doomed []*Table
	r.detachLocked(h, &doomed)
	r.mu.Unlock()

	for _, t := range doomed {
		t.Destroy()
	}
}

func (r *Registry) detachLocked(h Handle, doomed *[]*Table) {
	e, ok := r.entries[h]
	if !ok {
		return
	}
	for _, child := range e.children {
		r.detachLocked(child, doomed)
	}
	if p, ok := r.entries[e.parent]; ok {
		p.children = slices.DeleteFunc(p.children, func(c Handle) bool { return c == h })
		if p.rows[e.rowKey] == h {
			delete(p.rows, e.rowKey)
		}
	}
	if id := e.table.ID(); id != "" && r.byID[id] == h {
		delete(r.byID, id)
	}
	delete(r.entries, h)
	*doomed = append(*doomed, e.table)
}

// Close destroys every table
func (r *Registry) Close() {
	r.mu.Lock()
	var doomed []*Table
	for h, e := range r.entries {
		if e.parent == "" {
			r.detachLocked(h, &doomed)
		}
	}
	r.mu.Unlock()

	for _, t := range doomed {
		t.Destroy()
	}
}
