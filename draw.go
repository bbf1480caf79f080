package xsafe

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xsafe/internal/x11"
)

// drawWith validates w and gc together and runs one drawing request. Empty
// input sends nothing but is still validated.
func (w *Drawable) drawWith(gc *GC, op string, n int, native func(p x11.Protocol, d xproto.Drawable, g xproto.Gcontext) error) error {
	if w == nil || w.core == nil || gc == nil || gc.core == nil {
		return &ResourceError{Op: op, Err: ErrInvalidResource}
	}
	owner := w.core.owner
	if gc.core.owner != owner {
		return &ResourceError{Op: op, XID: w.core.xid, Err: ErrCrossConnection}
	}

	owner.mu.Lock()
	defer owner.mu.Unlock()
	if err := w.core.check(opDraw, op); err != nil {
		return err
	}
	if err := gc.core.check(opGCUse, op); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if err := native(owner.proto, xproto.Drawable(w.core.xid), xproto.Gcontext(gc.core.xid)); err != nil {
		return nativeError(op, w.core.xid, err)
	}
	return nil
}

// DrawArcs draws the outlines of arcs.
func (w *Drawable) DrawArcs(gc *GC, arcs []xproto.Arc) error {
	return w.drawWith(gc, "DrawArcs", len(arcs), func(p x11.Protocol, d xproto.Drawable, g xproto.Gcontext) error {
		return p.PolyArc(d, g, arcs)
	})
}

// DrawLines draws a connected polyline through points.
func (w *Drawable) DrawLines(gc *GC, points []xproto.Point) error {
	return w.drawWith(gc, "DrawLines", len(points), func(p x11.Protocol, d xproto.Drawable, g xproto.Gcontext) error {
		return p.PolyLine(d, g, points)
	})
}

// DrawPoints draws single pixels.
func (w *Drawable) DrawPoints(gc *GC, points []xproto.Point) error {
	return w.drawWith(gc, "DrawPoints", len(points), func(p x11.Protocol, d xproto.Drawable, g xproto.Gcontext) error {
		return p.PolyPoint(d, g, points)
	})
}

// DrawSegments draws each segment independently.
func (w *Drawable) DrawSegments(gc *GC, segments []xproto.Segment) error {
	return w.drawWith(gc, "DrawSegments", len(segments), func(p x11.Protocol, d xproto.Drawable, g xproto.Gcontext) error {
		return p.PolySegment(d, g, segments)
	})
}

// DrawRectangles draws rectangle outlines.
func (w *Drawable) DrawRectangles(gc *GC, rects []xproto.Rectangle) error {
	return w.drawWith(gc, "DrawRectangles", len(rects), func(p x11.Protocol, d xproto.Drawable, g xproto.Gcontext) error {
		return p.PolyRectangle(d, g, rects)
	})
}
