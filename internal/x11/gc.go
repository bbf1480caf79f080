package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
)

func (c *Connection) CreatePixmap(root xproto.Window, width, height uint16, depth byte) (xproto.Pixmap, error) {
	conn := c.XUtil.Conn()
	pid, err := xproto.NewPixmapId(conn)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate pixmap id: %w", err)
	}
	if err := xproto.CreatePixmapChecked(conn, depth, pid, xproto.Drawable(root), width, height).Check(); err != nil {
		return 0, err
	}
	return pid, nil
}

func (c *Connection) FreePixmap(p xproto.Pixmap) error {
	return xproto.FreePixmapChecked(c.XUtil.Conn(), p).Check()
}

func (c *Connection) CopyArea(src, dst xproto.Drawable, gc xproto.Gcontext, from xproto.Rectangle, to xproto.Point) error {
	return xproto.CopyAreaChecked(c.XUtil.Conn(), src, dst, gc,
		from.X, from.Y, to.X, to.Y, from.Width, from.Height).Check()
}

// CreateGC creates a graphics context usable with drawables of the same root
// and depth as d. values must be ordered by ascending mask bit.
func (c *Connection) CreateGC(d xproto.Drawable, mask uint32, values []uint32) (xproto.Gcontext, error) {
	conn := c.XUtil.Conn()
	gid, err := xproto.NewGcontextId(conn)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate gc id: %w", err)
	}
	if err := xproto.CreateGCChecked(conn, gid, d, mask, values).Check(); err != nil {
		return 0, err
	}
	return gid, nil
}

func (c *Connection) ChangeGC(gc xproto.Gcontext, mask uint32, values []uint32) error {
	return xproto.ChangeGCChecked(c.XUtil.Conn(), gc, mask, values).Check()
}

func (c *Connection) CopyGC(src, dst xproto.Gcontext, mask uint32) error {
	return xproto.CopyGCChecked(c.XUtil.Conn(), src, dst, mask).Check()
}

func (c *Connection) SetDashes(gc xproto.Gcontext, offset uint16, dashes []byte) error {
	return xproto.SetDashesChecked(c.XUtil.Conn(), gc, offset, uint16(len(dashes)), dashes).Check()
}

func (c *Connection) SetClipRectangles(gc xproto.Gcontext, origin xproto.Point, rects []xproto.Rectangle, ordering byte) error {
	return xproto.SetClipRectanglesChecked(c.XUtil.Conn(), ordering, gc, origin.X, origin.Y, rects).Check()
}

func (c *Connection) FreeGC(gc xproto.Gcontext) error {
	return xproto.FreeGCChecked(c.XUtil.Conn(), gc).Check()
}

func (c *Connection) PolyArc(d xproto.Drawable, gc xproto.Gcontext, arcs []xproto.Arc) error {
	return xproto.PolyArcChecked(c.XUtil.Conn(), d, gc, arcs).Check()
}

func (c *Connection) PolyLine(d xproto.Drawable, gc xproto.Gcontext, points []xproto.Point) error {
	return xproto.PolyLineChecked(c.XUtil.Conn(), xproto.CoordModeOrigin, d, gc, points).Check()
}

func (c *Connection) PolyPoint(d xproto.Drawable, gc xproto.Gcontext, points []xproto.Point) error {
	return xproto.PolyPointChecked(c.XUtil.Conn(), xproto.CoordModeOrigin, d, gc, points).Check()
}

func (c *Connection) PolySegment(d xproto.Drawable, gc xproto.Gcontext, segments []xproto.Segment) error {
	return xproto.PolySegmentChecked(c.XUtil.Conn(), d, gc, segments).Check()
}

func (c *Connection) PolyRectangle(d xproto.Drawable, gc xproto.Gcontext, rects []xproto.Rectangle) error {
	return xproto.PolyRectangleChecked(c.XUtil.Conn(), d, gc, rects).Check()
}
