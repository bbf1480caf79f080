package xsafe

import (
	"weak"
)

// Resource is a handle tracked by a connection's registry.
type Resource interface {
	// XID is the native resource identifier.
	XID() uint32
	// Display is the owning connection handle.
	Display() *Display

	owner() *displayCore
}

// entry records one tracked identifier. Handles are held weakly so the
// registry never keeps one reachable; cores are small and held strongly so
// the collector-driven release can match its own entry.
type entry struct {
	drawable  *drawableCore
	gc        *gcCore
	wDrawable weak.Pointer[Drawable]
	wGC       weak.Pointer[GC]
}

// resource returns the live handle, or nil when it has been collected.
func (e *entry) resource() Resource {
	if e.drawable != nil {
		if h := e.wDrawable.Value(); h != nil {
			return h
		}
		return nil
	}
	if h := e.wGC.Value(); h != nil {
		return h
	}
	return nil
}

func (e *entry) core() any {
	if e.drawable != nil {
		return e.drawable
	}
	return e.gc
}

// arena holds every identifier tracked for one connection. It is dropped as a
// whole when the connection closes.
type arena struct {
	entries map[uint32]*entry
}

func newArena() *arena {
	return &arena{entries: make(map[uint32]*entry)}
}

func entryFor(res Resource) *entry {
	switch h := res.(type) {
	case *Drawable:
		return &entry{drawable: h.core, wDrawable: weak.Make(h)}
	case *GC:
		return &entry{gc: h.core, wGC: weak.Make(h)}
	default:
		return nil
	}
}

// insert adds res. An entry whose handle was already collected is replaced;
// a live different handle is a duplicate.
func (a *arena) insert(res Resource) error {
	id := res.XID()
	if existing, ok := a.entries[id]; ok {
		if cur := existing.resource(); cur != nil {
			if cur == res {
				return nil
			}
			return &ResourceError{Op: "Register", XID: id, Err: ErrDuplicateResource}
		}
	}
	e := entryFor(res)
	if e == nil {
		return &ResourceError{Op: "Register", XID: id, Err: ErrInvalidResource}
	}
	a.entries[id] = e
	return nil
}

func (a *arena) lookup(id uint32) (Resource, bool) {
	e, ok := a.entries[id]
	if !ok {
		return nil, false
	}
	res := e.resource()
	if res == nil {
		return nil, false
	}
	return res, true
}

// remove drops id only while it still belongs to core, so a late release of a
// collected handle cannot evict a newer handle for a reused identifier.
func (a *arena) remove(id uint32, core any) {
	if e, ok := a.entries[id]; ok && e.core() == core {
		delete(a.entries, id)
	}
}

// len counts live entries. Entries whose handle was collected before its
// callback ran are dropped on the way.
func (a *arena) len() int {
	for id, e := range a.entries {
		if e.resource() == nil {
			delete(a.entries, id)
		}
	}
	return len(a.entries)
}

// Registry resolves native identifiers to the handles of one connection.
type Registry struct {
	display *Display
}

// Registry returns the connection's resource registry.
func (d *Display) Registry() *Registry {
	return &Registry{display: d}
}

// Register tracks res under its identifier. Registering the handle that is
// already tracked is a no-op.
func (r *Registry) Register(res Resource) error {
	if res == nil || res.owner() == nil {
		return &ResourceError{Op: "Register", Err: ErrInvalidResource}
	}
	core, err := r.display.lock("Register")
	if err != nil {
		return err
	}
	defer core.mu.Unlock()

	if res.owner() != core {
		return &ResourceError{Op: "Register", XID: res.XID(), Err: ErrCrossConnection}
	}
	if terminal(res) {
		return &ResourceError{Op: "Register", XID: res.XID(), Err: ErrInvalidResource}
	}
	return core.arena.insert(res)
}

// Lookup returns the live handle tracked under id.
func (r *Registry) Lookup(id uint32) (Resource, bool) {
	core, err := r.display.lock("Lookup")
	if err != nil {
		return nil, false
	}
	defer core.mu.Unlock()
	return core.arena.lookup(id)
}

// Drawable resolves id to a drawable handle. An identifier the registry has
// never seen is a third-party resource: a Foreign handle is synthesized,
// registered and returned, and later calls return that same handle.
func (r *Registry) Drawable(id uint32) (*Drawable, error) {
	core, err := r.display.lock("Drawable")
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()
	return r.display.resolveDrawable(id, "Drawable")
}

// Unregister stops tracking id. The handle itself keeps its state; terminal
// transitions unregister on their own, so collaborators only need this for
// identifiers they learn are gone by other means.
func (r *Registry) Unregister(id uint32) bool {
	core, err := r.display.lock("Unregister")
	if err != nil {
		return false
	}
	defer core.mu.Unlock()
	e, ok := core.arena.entries[id]
	if !ok {
		return false
	}
	core.arena.remove(id, e.core())
	return true
}

// Len reports how many identifiers are tracked.
func (r *Registry) Len() int {
	core, err := r.display.lock("Len")
	if err != nil {
		return 0
	}
	defer core.mu.Unlock()
	return core.arena.len()
}

// resolveDrawable is Registry.Drawable with the connection lock held.
func (d *Display) resolveDrawable(id uint32, op string) (*Drawable, error) {
	core := d.core
	if id == 0 {
		return nil, &ResourceError{Op: op, Err: ErrInvalidResource}
	}
	if res, ok := core.arena.lookup(id); ok {
		w, isDrawable := res.(*Drawable)
		if !isDrawable {
			return nil, &ResourceError{Op: op, XID: id, Err: ErrInvalidResource}
		}
		return w, nil
	}

	w := d.newDrawable(id, Foreign|Mapped, -1, false)
	if err := core.arena.insert(w); err != nil {
		return nil, err
	}
	core.logger.Debug("foreign drawable discovered", "xid", id)
	return w, nil
}

func terminal(res Resource) bool {
	switch h := res.(type) {
	case *Drawable:
		return h.core.state&Destroyed != 0
	case *GC:
		return h.core.state&GCFreed != 0
	}
	return true
}
