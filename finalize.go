package xsafe

import (
	"github.com/BurntSushi/xgb/xproto"
)

// liveness is the marker a dependent's release reads on its owner record. The
// owner record outlives the Display it was built for, so the marker stays
// readable after the Display has been collected.
type liveness uint8

const (
	livenessIntact liveness = iota + 1
	livenessReclaimed
)

// releaseDisplay runs when a Display becomes unreachable. It is the last
// native call the connection issues.
func releaseDisplay(core *displayCore) {
	core.mu.Lock()
	defer core.mu.Unlock()

	if core.state == DisplayOpen {
		core.proto.Close()
		core.state = DisplayClosed
		core.logger.Debug("display released by collector", "dropped_resources", core.arena.len())
	}
	core.arena = newArena()
	core.marker = livenessReclaimed
}

// releasable reports whether a dependent may still issue its native release.
// The connection lock must be held.
func (c *displayCore) releasable() bool {
	return c.marker == livenessIntact && c.state == DisplayOpen
}

// releaseDrawable runs when a Drawable becomes unreachable.
func releaseDrawable(c *drawableCore) {
	owner := c.owner
	owner.mu.Lock()
	defer owner.mu.Unlock()

	if !owner.releasable() {
		owner.logger.Debug("skipping drawable release", "xid", c.xid, "marker", owner.marker, "display_state", owner.state)
		return
	}
	if c.state&(Foreign|Destroyed) != 0 {
		return
	}

	var err error
	if c.state&Pixmap != 0 {
		err = owner.proto.FreePixmap(xproto.Pixmap(c.xid))
	} else {
		err = owner.proto.DestroyWindow(xproto.Window(c.xid))
	}
	c.destroyTree()
	if err != nil {
		owner.logger.Warn("drawable release failed", "xid", c.xid, "error", err)
		return
	}
	owner.logger.Debug("drawable released by collector", "xid", c.xid)
}

// forgetDrawable runs when a Foreign Drawable becomes unreachable. The
// resource is not ours to release, so only the registry entry goes.
func forgetDrawable(c *drawableCore) {
	owner := c.owner
	owner.mu.Lock()
	defer owner.mu.Unlock()
	c.detach()
	owner.arena.remove(c.xid, c)
}

// releaseGC runs when a GC becomes unreachable. A handle still cached as a
// default is never released here.
func releaseGC(c *gcCore) {
	owner := c.owner
	owner.mu.Lock()
	defer owner.mu.Unlock()

	if !owner.releasable() {
		owner.logger.Debug("skipping gc release", "gc_id", c.xid, "marker", owner.marker, "display_state", owner.state)
		return
	}
	if c.state != GCCreated {
		return
	}

	err := owner.proto.FreeGC(xproto.Gcontext(c.xid))
	c.state = GCFreed
	owner.arena.remove(c.xid, c)
	if err != nil {
		owner.logger.Warn("gc release failed", "gc_id", c.xid, "error", err)
		return
	}
	owner.logger.Debug("gc released by collector", "gc_id", c.xid)
}

func (l liveness) String() string {
	switch l {
	case livenessIntact:
		return "intact"
	case livenessReclaimed:
		return "reclaimed"
	default:
		return "unknown"
	}
}
