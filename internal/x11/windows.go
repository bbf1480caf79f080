package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
)

// CreateWindow allocates an identifier and creates an InputOutput window.
// A non-empty title is published through both _NET_WM_NAME and WM_NAME.
func (c *Connection) CreateWindow(p WindowParams) (xproto.Window, error) {
	conn := c.XUtil.Conn()

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate window id: %w", err)
	}

	parent := p.Parent
	if parent == 0 {
		parent = c.Root
	}

	mask := uint32(xproto.CwBackPixel | xproto.CwBorderPixel)
	values := []uint32{p.Background, p.Border}
	if p.EventMask != 0 {
		mask |= xproto.CwEventMask
		values = append(values, p.EventMask)
	}

	err = xproto.CreateWindowChecked(conn,
		p.Depth, wid, parent,
		p.X, p.Y, p.Width, p.Height, p.BorderWidth,
		xproto.WindowClassInputOutput, p.Visual,
		mask, values).Check()
	if err != nil {
		return 0, err
	}

	if p.Title != "" {
		if err := ewmh.WmNameSet(c.XUtil, wid, p.Title); err != nil {
			c.logger.Debug("failed to set _NET_WM_NAME", "window_id", wid, "error", err)
		}
		if err := icccm.WmNameSet(c.XUtil, wid, p.Title); err != nil {
			c.logger.Debug("failed to set WM_NAME", "window_id", wid, "error", err)
		}
	}

	return wid, nil
}

func (c *Connection) MapWindow(w xproto.Window) error {
	return xproto.MapWindowChecked(c.XUtil.Conn(), w).Check()
}

func (c *Connection) UnmapWindow(w xproto.Window) error {
	return xproto.UnmapWindowChecked(c.XUtil.Conn(), w).Check()
}

func (c *Connection) DestroyWindow(w xproto.Window) error {
	return xproto.DestroyWindowChecked(c.XUtil.Conn(), w).Check()
}

// ClearArea clears r in w. A zero width or height extends to the window edge,
// so a zero rectangle clears the whole window.
func (c *Connection) ClearArea(w xproto.Window, r xproto.Rectangle, exposures bool) error {
	return xproto.ClearAreaChecked(c.XUtil.Conn(), exposures, w, r.X, r.Y, r.Width, r.Height).Check()
}

// SelectInput replaces the event mask this client holds on w.
func (c *Connection) SelectInput(w xproto.Window, mask uint32) error {
	return xproto.ChangeWindowAttributesChecked(c.XUtil.Conn(), w,
		xproto.CwEventMask, []uint32{mask}).Check()
}

func (c *Connection) WindowAttributes(w xproto.Window) (*xproto.GetWindowAttributesReply, error) {
	return xproto.GetWindowAttributes(c.XUtil.Conn(), w).Reply()
}

func (c *Connection) Geometry(d xproto.Drawable) (*xproto.GetGeometryReply, error) {
	return xproto.GetGeometry(c.XUtil.Conn(), d).Reply()
}
