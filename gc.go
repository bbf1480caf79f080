package xsafe

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/BurntSushi/xgb/xproto"
)

type gcCore struct {
	owner  *displayCore
	xid    uint32
	state  GCState
	screen int
}

// GC is a graphics context handle.
type GC struct {
	display *Display
	core    *gcCore

	cleanup    runtime.Cleanup
	hasCleanup bool
}

// GCValues maps xproto.Gc* mask bits to their values.
type GCValues map[uint32]uint32

// lastGCBit is xproto.GcArcMode, the highest core GC component.
const lastGCBit = xproto.GcArcMode

// encode returns the value mask and the value list in the ascending bit order
// the protocol requires.
func (v GCValues) encode() (uint32, []uint32, error) {
	var mask uint32
	bits := make([]uint32, 0, len(v))
	for bit := range v {
		if bit == 0 || bit&(bit-1) != 0 || bit > lastGCBit {
			return 0, nil, fmt.Errorf("invalid GC component 0x%x", bit)
		}
		mask |= bit
		bits = append(bits, bit)
	}
	slices.Sort(bits)
	values := make([]uint32, len(bits))
	for i, bit := range bits {
		values[i] = v[bit]
	}
	return mask, values, nil
}

func (d *Display) newGC(xid uint32, state GCState, screen int) *GC {
	gc := &GC{
		display: d,
		core: &gcCore{
			owner:  d.core,
			xid:    xid,
			state:  state,
			screen: screen,
		},
	}
	if d.core.auto {
		gc.cleanup = runtime.AddCleanup(gc, releaseGC, gc.core)
		gc.hasCleanup = true
	}
	return gc
}

// createGC issues CreateGC on the root of screen and registers the handle.
// The connection lock must be held.
func (d *Display) createGC(op string, screen int, state GCState, values GCValues) (*GC, error) {
	core := d.core
	info, err := core.screenInfo(op, screen)
	if err != nil {
		return nil, err
	}
	mask, list, err := values.encode()
	if err != nil {
		return nil, &ResourceError{Op: op, Err: err}
	}

	id, err := core.proto.CreateGC(xproto.Drawable(info.Root), mask, list)
	if err != nil {
		return nil, nativeError(op, 0, err)
	}
	gc := d.newGC(uint32(id), state, screen)
	if err := core.arena.insert(gc); err != nil {
		gc.stopCleanup()
		if ferr := core.proto.FreeGC(id); ferr != nil {
			core.logger.Warn("failed to free unregistrable gc", "gc_id", id, "error", ferr)
		}
		return nil, err
	}
	core.logger.Debug("gc created", "gc_id", id, "screen", screen, "state", state)
	return gc, nil
}

// DefaultGC returns the connection's cached context for screen, creating it
// on first use with the screen's black foreground and white background.
func (d *Display) DefaultGC(screen int) (*GC, error) {
	core, err := d.lock("DefaultGC")
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()

	if gc, ok := d.defaultGCs[screen]; ok {
		return gc, nil
	}
	info, err := core.screenInfo("DefaultGC", screen)
	if err != nil {
		return nil, err
	}
	gc, err := d.createGC("DefaultGC", screen, GCDefault, GCValues{
		xproto.GcForeground: info.BlackPixel,
		xproto.GcBackground: info.WhitePixel,
	})
	if err != nil {
		return nil, err
	}
	d.defaultGCs[screen] = gc
	return gc, nil
}

// ReleaseDefaultGC drops the cached default context of screen and demotes it
// to an ordinary created context, which the caller may then Free. Without a
// cached default it fails with ErrInvalidResource.
func (d *Display) ReleaseDefaultGC(screen int) (*GC, error) {
	core, err := d.lock("ReleaseDefaultGC")
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()

	gc, ok := d.defaultGCs[screen]
	if !ok {
		return nil, &ResourceError{Op: "ReleaseDefaultGC", Err: fmt.Errorf("no default context cached for screen %d: %w", screen, ErrInvalidResource)}
	}
	delete(d.defaultGCs, screen)
	gc.core.state = GCCreated
	return gc, nil
}

// CreateGC creates a context for drawables of screen.
func (d *Display) CreateGC(screen int, values GCValues) (*GC, error) {
	core, err := d.lock("CreateGC")
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()
	return d.createGC("CreateGC", screen, GCCreated, values)
}

// XID returns the native identifier, or zero for a nil handle.
func (gc *GC) XID() uint32 {
	if gc == nil || gc.core == nil {
		return 0
	}
	return gc.core.xid
}

// Display returns the connection the context belongs to.
func (gc *GC) Display() *Display {
	if gc == nil {
		return nil
	}
	return gc.display
}

func (gc *GC) owner() *displayCore {
	if gc == nil || gc.core == nil {
		return nil
	}
	return gc.core.owner
}

// Screen is the screen the context was created for.
func (gc *GC) Screen() int {
	if gc == nil || gc.core == nil {
		return -1
	}
	return gc.core.screen
}

// State reports the tracked state; it stays readable after Free or Close.
func (gc *GC) State() GCState {
	if gc == nil || gc.core == nil {
		return GCFreed
	}
	gc.core.owner.mu.Lock()
	defer gc.core.owner.mu.Unlock()
	return gc.core.state
}

// check validates op with the connection lock held.
func (c *gcCore) check(op gcOp, caller string) error {
	if c.owner.state != DisplayOpen {
		return connectionError(caller, c.xid)
	}
	rule := gcRules[op]
	if c.state&rule.protect != 0 {
		return &ResourceError{Op: caller, XID: c.xid, State: c.state.String(), Err: ErrProtectedResource}
	}
	if c.state&rule.allow == 0 {
		return &ResourceError{Op: caller, XID: c.xid, State: c.state.String(), Err: ErrInvalidResource}
	}
	return nil
}

func (gc *GC) acquire(op gcOp, caller string) (*gcCore, error) {
	if gc == nil || gc.core == nil {
		return nil, &ResourceError{Op: caller, Err: ErrInvalidResource}
	}
	c := gc.core
	c.owner.mu.Lock()
	if err := c.check(op, caller); err != nil {
		c.owner.mu.Unlock()
		return nil, err
	}
	return c, nil
}

// Validate checks that the connection is open and the state shares a flag
// with expected, and returns the native identifier.
func (gc *GC) Validate(expected GCState, caller string) (xproto.Gcontext, error) {
	if gc == nil || gc.core == nil {
		return 0, &ResourceError{Op: caller, Err: ErrInvalidResource}
	}
	c := gc.core
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	if c.owner.state != DisplayOpen {
		return 0, connectionError(caller, c.xid)
	}
	if c.state&expected == 0 {
		return 0, &ResourceError{Op: caller, XID: c.xid, State: c.state.String(), Err: ErrInvalidResource}
	}
	return xproto.Gcontext(c.xid), nil
}

// Change updates the given components.
func (gc *GC) Change(values GCValues) error {
	mask, list, err := values.encode()
	if err != nil {
		return &ResourceError{Op: "ChangeGC", XID: gc.XID(), Err: err}
	}
	c, err := gc.acquire(opGCUse, "ChangeGC")
	if err != nil {
		return err
	}
	defer c.owner.mu.Unlock()
	if len(list) == 0 {
		return nil
	}
	if err := c.owner.proto.ChangeGC(xproto.Gcontext(c.xid), mask, list); err != nil {
		return nativeError("ChangeGC", c.xid, err)
	}
	return nil
}

// SetDashes sets the dash pattern used by OnOffDash and DoubleDash lines.
func (gc *GC) SetDashes(offset int, dashes []byte) error {
	const op = "SetDashes"
	if len(dashes) == 0 || slices.Contains(dashes, 0) || offset < 0 || offset > 0xffff {
		return &ResourceError{Op: op, XID: gc.XID(), Err: fmt.Errorf("invalid dash pattern %v at offset %d", dashes, offset)}
	}
	c, err := gc.acquire(opGCUse, op)
	if err != nil {
		return err
	}
	defer c.owner.mu.Unlock()
	if err := c.owner.proto.SetDashes(xproto.Gcontext(c.xid), uint16(offset), dashes); err != nil {
		return nativeError(op, c.xid, err)
	}
	return nil
}

// SetClipRectangles restricts drawing to rects, offset by origin. ordering is
// one of the xproto.ClipOrdering* constants.
func (gc *GC) SetClipRectangles(origin xproto.Point, rects []xproto.Rectangle, ordering byte) error {
	const op = "SetClipRectangles"
	if ordering > xproto.ClipOrderingYXBanded {
		return &ResourceError{Op: op, XID: gc.XID(), Err: fmt.Errorf("invalid clip ordering %d", ordering)}
	}
	c, err := gc.acquire(opGCUse, op)
	if err != nil {
		return err
	}
	defer c.owner.mu.Unlock()
	if err := c.owner.proto.SetClipRectangles(xproto.Gcontext(c.xid), origin, rects, ordering); err != nil {
		return nativeError(op, c.xid, err)
	}
	return nil
}

// CopyTo copies the components selected by mask into dst.
func (gc *GC) CopyTo(dst *GC, mask uint32) error {
	const op = "CopyGC"
	if gc == nil || gc.core == nil || dst == nil || dst.core == nil {
		return &ResourceError{Op: op, Err: ErrInvalidResource}
	}
	owner := gc.core.owner
	if dst.core.owner != owner {
		return &ResourceError{Op: op, XID: gc.core.xid, Err: ErrCrossConnection}
	}
	if mask == 0 || mask > lastGCBit<<1-1 {
		return &ResourceError{Op: op, XID: gc.core.xid, Err: fmt.Errorf("invalid GC mask 0x%x", mask)}
	}

	owner.mu.Lock()
	defer owner.mu.Unlock()
	if err := gc.core.check(opGCUse, op); err != nil {
		return err
	}
	if err := dst.core.check(opGCUse, op); err != nil {
		return err
	}
	if err := owner.proto.CopyGC(xproto.Gcontext(gc.core.xid), xproto.Gcontext(dst.core.xid), mask); err != nil {
		return nativeError(op, gc.core.xid, err)
	}
	return nil
}

// Free releases a created context. The cached default is protected until
// ReleaseDefaultGC hands it back as an ordinary context.
func (gc *GC) Free() error {
	c, err := gc.acquire(opGCFree, "FreeGC")
	if err != nil {
		return err
	}
	defer c.owner.mu.Unlock()

	if err := c.owner.proto.FreeGC(xproto.Gcontext(c.xid)); err != nil {
		return nativeError("FreeGC", c.xid, err)
	}
	c.state = gcRules[opGCFree].next
	c.owner.arena.remove(c.xid, c)
	gc.stopCleanup()
	c.owner.logger.Debug("gc freed", "gc_id", c.xid)
	return nil
}

func (gc *GC) stopCleanup() {
	if gc.hasCleanup {
		gc.cleanup.Stop()
		gc.hasCleanup = false
	}
}
