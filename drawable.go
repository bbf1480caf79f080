package xsafe

import (
	"fmt"
	"runtime"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xsafe/internal/x11"
)

// drawableCore is the part of a Drawable that its release callback needs.
// Every field except xid and owner is guarded by owner.mu.
type drawableCore struct {
	owner  *displayCore
	xid    uint32
	state  DrawableState
	screen int
	// classified is false for Foreign drawables whose kind and map state
	// have not been asked of the server yet.
	classified bool

	// parent and children link windows created under a tracked parent; the
	// server destroys a window's subwindows with it.
	parent   *drawableCore
	children map[*drawableCore]struct{}
}

// Drawable is a window or pixmap handle.
type Drawable struct {
	display *Display
	core    *drawableCore

	cleanup    runtime.Cleanup
	hasCleanup bool
}

// WindowParams describes a window to create.
type WindowParams struct {
	// Screen selects the root window used when Parent is nil.
	Screen int
	Parent *Drawable

	X, Y          int
	Width, Height int
	BorderWidth   int

	Background uint32
	Border     uint32
	EventMask  uint32
	Title      string
}

// newDrawable builds a handle and arms its collector callback: drawables this
// process owns are released, Foreign ones only leave the registry. The caller
// holds the connection lock and registers the handle.
func (d *Display) newDrawable(xid uint32, state DrawableState, screen int, classified bool) *Drawable {
	w := &Drawable{
		display: d,
		core: &drawableCore{
			owner:      d.core,
			xid:        xid,
			state:      state,
			screen:     screen,
			classified: classified,
		},
	}
	switch {
	case state&Foreign != 0:
		w.cleanup = runtime.AddCleanup(w, forgetDrawable, w.core)
		w.hasCleanup = true
	case d.core.auto:
		w.cleanup = runtime.AddCleanup(w, releaseDrawable, w.core)
		w.hasCleanup = true
	}
	return w
}

// CreateWindow creates an unmapped window.
func (d *Display) CreateWindow(p WindowParams) (*Drawable, error) {
	const op = "CreateWindow"
	if p.Width <= 0 || p.Height <= 0 || p.Width > 0xffff || p.Height > 0xffff {
		return nil, &ResourceError{Op: op, Err: fmt.Errorf("invalid window size %dx%d", p.Width, p.Height)}
	}
	if p.Parent != nil && p.Parent.core != nil && p.Parent.core.owner != d.core {
		return nil, &ResourceError{Op: op, XID: p.Parent.XID(), Err: ErrCrossConnection}
	}

	core, err := d.lock(op)
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()

	screen := p.Screen
	info, err := core.screenInfo(op, screen)
	if err != nil {
		return nil, err
	}
	parent := info.Root
	var parentCore *drawableCore
	if p.Parent != nil {
		parentCore = p.Parent.core
		if err := parentCore.check(opParent, op); err != nil {
			return nil, err
		}
		parent = xproto.Window(p.Parent.core.xid)
		if p.Parent.core.screen >= 0 {
			screen = p.Parent.core.screen
		}
	}

	wid, err := core.proto.CreateWindow(x11.WindowParams{
		Parent:      parent,
		X:           int16(p.X),
		Y:           int16(p.Y),
		Width:       uint16(p.Width),
		Height:      uint16(p.Height),
		BorderWidth: uint16(p.BorderWidth),
		Background:  p.Background,
		Border:      p.Border,
		EventMask:   p.EventMask,
		Title:       p.Title,
	})
	if err != nil {
		return nil, nativeError(op, 0, err)
	}

	w := d.newDrawable(uint32(wid), Unmapped, screen, true)
	if err := core.arena.insert(w); err != nil {
		w.stopCleanup()
		if derr := core.proto.DestroyWindow(wid); derr != nil {
			core.logger.Warn("failed to destroy unregistrable window", "window_id", wid, "error", derr)
		}
		return nil, err
	}
	if parentCore != nil {
		parentCore.adopt(w.core)
	}
	core.logger.Debug("window created", "window_id", wid, "parent", parent)
	return w, nil
}

// CreatePixmap creates an off-screen drawable on screen. A zero depth uses
// the root depth.
func (d *Display) CreatePixmap(screen, width, height, depth int) (*Drawable, error) {
	const op = "CreatePixmap"
	if width <= 0 || height <= 0 || width > 0xffff || height > 0xffff {
		return nil, &ResourceError{Op: op, Err: fmt.Errorf("invalid pixmap size %dx%d", width, height)}
	}

	core, err := d.lock(op)
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()

	info, err := core.screenInfo(op, screen)
	if err != nil {
		return nil, err
	}
	if depth == 0 {
		depth = int(info.RootDepth)
	}
	if depth < 1 || depth > 32 {
		return nil, &ResourceError{Op: op, Err: fmt.Errorf("invalid depth %d", depth)}
	}

	pid, err := core.proto.CreatePixmap(info.Root, uint16(width), uint16(height), byte(depth))
	if err != nil {
		return nil, nativeError(op, 0, err)
	}

	w := d.newDrawable(uint32(pid), Pixmap, screen, true)
	if err := core.arena.insert(w); err != nil {
		w.stopCleanup()
		if ferr := core.proto.FreePixmap(pid); ferr != nil {
			core.logger.Warn("failed to free unregistrable pixmap", "pixmap_id", pid, "error", ferr)
		}
		return nil, err
	}
	core.logger.Debug("pixmap created", "pixmap_id", pid, "width", width, "height", height, "depth", depth)
	return w, nil
}

// XID returns the native identifier, or zero for a nil handle.
func (w *Drawable) XID() uint32 {
	if w == nil || w.core == nil {
		return 0
	}
	return w.core.xid
}

// Display returns the connection the drawable belongs to.
func (w *Drawable) Display() *Display {
	if w == nil {
		return nil
	}
	return w.display
}

func (w *Drawable) owner() *displayCore {
	if w == nil || w.core == nil {
		return nil
	}
	return w.core.owner
}

// State reports the tracked state. It is an identity query and valid after
// the drawable is destroyed or its connection closed.
func (w *Drawable) State() DrawableState {
	if w == nil || w.core == nil {
		return Destroyed
	}
	w.core.owner.mu.Lock()
	defer w.core.owner.mu.Unlock()
	return w.core.state
}

// IsForeign reports whether another client owns the drawable.
func (w *Drawable) IsForeign() bool { return w.State()&Foreign != 0 }

// IsPixmap reports whether the drawable is a pixmap.
func (w *Drawable) IsPixmap() bool { return w.State()&Pixmap != 0 }

// check validates op against the connection and the transition table. The
// connection lock must be held.
func (c *drawableCore) check(op drawableOp, caller string) error {
	if c.owner.state != DisplayOpen {
		return connectionError(caller, c.xid)
	}
	if !drawableRules[op].permits(c.state) {
		return &ResourceError{Op: caller, XID: c.xid, State: c.state.String(), Err: ErrInvalidResource}
	}
	return nil
}

// acquire locks the connection and validates op. On success the caller must
// unlock owner.mu.
func (w *Drawable) acquire(op drawableOp, caller string) (*drawableCore, error) {
	if w == nil || w.core == nil {
		return nil, &ResourceError{Op: caller, Err: ErrInvalidResource}
	}
	c := w.core
	c.owner.mu.Lock()
	if err := c.check(op, caller); err != nil {
		c.owner.mu.Unlock()
		return nil, err
	}
	return c, nil
}

// Validate checks that the drawable's connection is open and that its state
// shares a flag with expected. Destroyed drawables fail unless expected
// includes Destroyed. It returns the native identifier for forwarding.
func (w *Drawable) Validate(expected DrawableState, caller string) (xproto.Drawable, error) {
	if w == nil || w.core == nil {
		return 0, &ResourceError{Op: caller, Err: ErrInvalidResource}
	}
	c := w.core
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	if c.owner.state != DisplayOpen {
		return 0, connectionError(caller, c.xid)
	}
	rule := drawableRule{allow: expected, deny: Destroyed &^ expected}
	if !rule.permits(c.state) {
		return 0, &ResourceError{Op: caller, XID: c.xid, State: c.state.String(), Err: ErrInvalidResource}
	}
	return xproto.Drawable(c.xid), nil
}

// transition validates op, issues the native call and applies the table's
// state change.
func (w *Drawable) transition(op drawableOp, caller string, native func(x11.Protocol, uint32) error) error {
	c, err := w.acquire(op, caller)
	if err != nil {
		return err
	}
	defer c.owner.mu.Unlock()

	if err := native(c.owner.proto, c.xid); err != nil {
		return nativeError(caller, c.xid, err)
	}
	c.state = drawableRules[op].apply(c.state)
	return nil
}

// Map maps an unmapped window.
func (w *Drawable) Map() error {
	return w.transition(opMap, "Map", func(p x11.Protocol, id uint32) error {
		return p.MapWindow(xproto.Window(id))
	})
}

// Unmap unmaps a mapped window.
func (w *Drawable) Unmap() error {
	return w.transition(opUnmap, "Unmap", func(p x11.Protocol, id uint32) error {
		return p.UnmapWindow(xproto.Window(id))
	})
}

// Destroy destroys a window or frees a pixmap. Foreign drawables are rejected
// before any request is sent.
func (w *Drawable) Destroy() error {
	c, err := w.acquire(opDestroy, "Destroy")
	if err != nil {
		return err
	}
	defer c.owner.mu.Unlock()

	if c.state&Pixmap != 0 {
		err = c.owner.proto.FreePixmap(xproto.Pixmap(c.xid))
	} else {
		err = c.owner.proto.DestroyWindow(xproto.Window(c.xid))
	}
	if err != nil {
		return nativeError("Destroy", c.xid, err)
	}
	c.destroyTree()
	w.stopCleanup()
	c.owner.logger.Debug("drawable destroyed", "xid", c.xid)
	return nil
}

func (c *drawableCore) adopt(child *drawableCore) {
	if c.children == nil {
		c.children = make(map[*drawableCore]struct{})
	}
	c.children[child] = struct{}{}
	child.parent = c
}

func (c *drawableCore) detach() {
	if c.parent != nil {
		delete(c.parent.children, c)
		c.parent = nil
	}
}

// destroyTree marks c and its tracked descendants Destroyed and drops them
// from the registry. A descendant's pending release sees Destroyed and sends
// nothing. The connection lock must be held.
func (c *drawableCore) destroyTree() {
	for child := range c.children {
		child.destroyTree()
	}
	c.children = nil
	c.detach()
	c.state = drawableRules[opDestroy].apply(c.state)
	c.owner.arena.remove(c.xid, c)
}

func (w *Drawable) stopCleanup() {
	if w.hasCleanup {
		w.cleanup.Stop()
		w.hasCleanup = false
	}
}

// Clear clears the whole window to its background.
func (w *Drawable) Clear() error {
	return w.ClearArea(xproto.Rectangle{}, false)
}

// ClearArea clears r. Zero width or height extends to the window edge.
func (w *Drawable) ClearArea(r xproto.Rectangle, exposures bool) error {
	return w.transition(opClear, "ClearArea", func(p x11.Protocol, id uint32) error {
		return p.ClearArea(xproto.Window(id), r, exposures)
	})
}

// SelectInput replaces the event mask this client holds on the window.
func (w *Drawable) SelectInput(mask uint32) error {
	return w.transition(opSelectInput, "SelectInput", func(p x11.Protocol, id uint32) error {
		return p.SelectInput(xproto.Window(id), mask)
	})
}

// CopyArea copies from of w into dst at to using gc. All three handles must
// belong to the same connection.
func (w *Drawable) CopyArea(dst *Drawable, gc *GC, from xproto.Rectangle, to xproto.Point) error {
	const op = "CopyArea"
	if w == nil || w.core == nil || dst == nil || dst.core == nil || gc == nil || gc.core == nil {
		return &ResourceError{Op: op, Err: ErrInvalidResource}
	}
	owner := w.core.owner
	if dst.core.owner != owner || gc.core.owner != owner {
		return &ResourceError{Op: op, XID: w.core.xid, Err: ErrCrossConnection}
	}

	owner.mu.Lock()
	defer owner.mu.Unlock()
	if err := w.core.check(opDraw, op); err != nil {
		return err
	}
	if err := dst.core.check(opDraw, op); err != nil {
		return err
	}
	if err := gc.core.check(opGCUse, op); err != nil {
		return err
	}

	err := owner.proto.CopyArea(xproto.Drawable(w.core.xid), xproto.Drawable(dst.core.xid),
		xproto.Gcontext(gc.core.xid), from, to)
	if err != nil {
		return nativeError(op, w.core.xid, err)
	}
	return nil
}

// Geometry describes a drawable's size and position.
type Geometry struct {
	Root        uint32
	X, Y        int
	Width       int
	Height      int
	BorderWidth int
	Depth       int
}

// Geometry queries the server for the drawable's geometry. For a Foreign
// drawable the first query also settles whether it is a window or a pixmap.
func (w *Drawable) Geometry() (Geometry, error) {
	c, err := w.acquire(opQuery, "Geometry")
	if err != nil {
		return Geometry{}, err
	}
	defer c.owner.mu.Unlock()

	c.classify()
	if c.state&Destroyed != 0 {
		return Geometry{}, &ResourceError{Op: "Geometry", XID: c.xid, State: c.state.String(), Err: ErrInvalidResource}
	}

	reply, err := c.owner.proto.Geometry(xproto.Drawable(c.xid))
	if err != nil {
		return Geometry{}, nativeError("Geometry", c.xid, err)
	}
	return Geometry{
		Root:        uint32(reply.Root),
		X:           int(reply.X),
		Y:           int(reply.Y),
		Width:       int(reply.Width),
		Height:      int(reply.Height),
		BorderWidth: int(reply.BorderWidth),
		Depth:       int(reply.Depth),
	}, nil
}

// Classify resolves the kind and map state of a Foreign drawable and returns
// the resulting state. Drawables created here are already classified.
func (w *Drawable) Classify() (DrawableState, error) {
	c, err := w.acquire(opQuery, "Classify")
	if err != nil {
		return 0, err
	}
	defer c.owner.mu.Unlock()
	c.classify()
	return c.state, nil
}

// classify asks the server what a Foreign identifier names. Window attributes
// answer window or not and mapped or not; a drawable that is not a window but
// has a geometry is a pixmap; anything else no longer exists.
func (c *drawableCore) classify() {
	if c.classified {
		return
	}
	c.classified = true
	proto := c.owner.proto

	attrs, err := proto.WindowAttributes(xproto.Window(c.xid))
	if err == nil {
		if attrs.MapState == xproto.MapStateUnmapped {
			c.state = Foreign | Unmapped
		} else {
			c.state = Foreign | Mapped
		}
		return
	}

	if _, gerr := proto.Geometry(xproto.Drawable(c.xid)); gerr == nil {
		c.state = Foreign | Pixmap
		return
	}

	c.state = Foreign | Unmapped
	c.destroyTree()
	c.owner.logger.Debug("foreign drawable no longer exists", "xid", c.xid)
}
