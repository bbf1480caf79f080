package x11

import (
	"errors"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// ErrDisconnected is returned by event reads once the server side of the
// connection has gone away.
var ErrDisconnected = errors.New("x11: connection to server lost")

// ReadMode selects how much work Events does before returning the queue.
type ReadMode int

const (
	// QueuedAlready returns the queue as is.
	QueuedAlready ReadMode = iota
	// AfterReading drains whatever the server has already sent.
	AfterReading
	// Blocking waits for one new event from the server, then drains.
	Blocking
)

// WindowParams describes a window to create. Parent must already be resolved
// to a native window identifier.
type WindowParams struct {
	Parent      xproto.Window
	X, Y        int16
	Width       uint16
	Height      uint16
	BorderWidth uint16
	Depth       byte
	Visual      xproto.Visualid
	Background  uint32
	Border      uint32
	EventMask   uint32
	Title       string
}

// Protocol is the set of native calls the handle layer forwards to. The
// production implementation is *Connection; tests substitute a recorder.
//
// Implementations do no state tracking of their own: every call is issued
// as given.
type Protocol interface {
	Close()
	Setup() *xproto.SetupInfo
	DefaultScreen() int
	DisplayString() string
	Sync() error
	NoOperation() error

	CreateWindow(p WindowParams) (xproto.Window, error)
	MapWindow(w xproto.Window) error
	UnmapWindow(w xproto.Window) error
	DestroyWindow(w xproto.Window) error
	ClearArea(w xproto.Window, r xproto.Rectangle, exposures bool) error
	SelectInput(w xproto.Window, mask uint32) error
	WindowAttributes(w xproto.Window) (*xproto.GetWindowAttributesReply, error)
	Geometry(d xproto.Drawable) (*xproto.GetGeometryReply, error)

	CreatePixmap(root xproto.Window, width, height uint16, depth byte) (xproto.Pixmap, error)
	FreePixmap(p xproto.Pixmap) error
	CopyArea(src, dst xproto.Drawable, gc xproto.Gcontext, from xproto.Rectangle, to xproto.Point) error

	CreateGC(d xproto.Drawable, mask uint32, values []uint32) (xproto.Gcontext, error)
	ChangeGC(gc xproto.Gcontext, mask uint32, values []uint32) error
	CopyGC(src, dst xproto.Gcontext, mask uint32) error
	SetDashes(gc xproto.Gcontext, offset uint16, dashes []byte) error
	SetClipRectangles(gc xproto.Gcontext, origin xproto.Point, rects []xproto.Rectangle, ordering byte) error
	FreeGC(gc xproto.Gcontext) error

	PolyArc(d xproto.Drawable, gc xproto.Gcontext, arcs []xproto.Arc) error
	PolyLine(d xproto.Drawable, gc xproto.Gcontext, points []xproto.Point) error
	PolyPoint(d xproto.Drawable, gc xproto.Gcontext, points []xproto.Point) error
	PolySegment(d xproto.Drawable, gc xproto.Gcontext, segments []xproto.Segment) error
	PolyRectangle(d xproto.Drawable, gc xproto.Gcontext, rects []xproto.Rectangle) error

	Events(mode ReadMode) ([]xgb.Event, error)
	DequeueEvent(i int)

	Monitors(root xproto.Window) ([]Monitor, error)
}
