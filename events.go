package xsafe

import (
	"errors"
	"runtime"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xsafe/internal/x11"
)

// QueueMode selects what EventsQueued does before counting.
type QueueMode int

const (
	// QueuedAlready counts the client-side queue without reading.
	QueuedAlready QueueMode = iota
	// QueuedAfterReading reads whatever the server already sent, then counts.
	QueuedAfterReading
	// QueuedAfterFlush is QueuedAfterReading; requests are never buffered.
	QueuedAfterFlush
)

// Event is one event taken from a connection's queue. Window is the event
// window resolved through the registry, or nil for events without one.
type Event struct {
	Type   int
	Window *Drawable
	Raw    xgb.Event
}

func (m QueueMode) readMode() x11.ReadMode {
	if m == QueuedAlready {
		return x11.QueuedAlready
	}
	return x11.AfterReading
}

// EventsQueued returns the number of queued events.
func (d *Display) EventsQueued(mode QueueMode) (int, error) {
	core, err := d.lock("EventsQueued")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	events, err := core.proto.Events(mode.readMode())
	if err != nil {
		return 0, eventError("EventsQueued", err)
	}
	return len(events), nil
}

// Pending returns the number of events available without blocking.
func (d *Display) Pending() (int, error) {
	return d.EventsQueued(QueuedAfterFlush)
}

// NextEvent removes and returns the first event, waiting for one if the queue
// is empty.
func (d *Display) NextEvent() (Event, error) {
	return d.waitEvent("NextEvent", true, matchAny)
}

// PeekEvent returns the first event without removing it, waiting for one if
// the queue is empty.
func (d *Display) PeekEvent() (Event, error) {
	return d.waitEvent("PeekEvent", false, matchAny)
}

// MaskEvent removes and returns the first event selected by mask, waiting
// until one arrives.
func (d *Display) MaskEvent(mask uint32) (Event, error) {
	return d.waitEvent("MaskEvent", true, matchMask(mask))
}

// WindowEvent is MaskEvent restricted to events reported on w.
func (d *Display) WindowEvent(w *Drawable, mask uint32) (Event, error) {
	id, err := d.eventWindow("WindowEvent", w)
	if err != nil {
		return Event{}, err
	}
	return d.waitEvent("WindowEvent", true, matchWindow(id, mask))
}

// CheckMaskEvent is the non-blocking MaskEvent. ok is false when no queued
// event matches.
func (d *Display) CheckMaskEvent(mask uint32) (ev Event, ok bool, err error) {
	return d.checkEvent("CheckMaskEvent", matchMask(mask))
}

// CheckTypedEvent removes the first queued event of type code.
func (d *Display) CheckTypedEvent(code int) (Event, bool, error) {
	return d.checkEvent("CheckTypedEvent", matchType(code, 0))
}

// CheckTypedWindowEvent removes the first queued event of type code reported
// on w.
func (d *Display) CheckTypedWindowEvent(w *Drawable, code int) (Event, bool, error) {
	id, err := d.eventWindow("CheckTypedWindowEvent", w)
	if err != nil {
		return Event{}, false, err
	}
	return d.checkEvent("CheckTypedWindowEvent", matchType(code, id))
}

// CheckWindowEvent removes the first queued event selected by mask and
// reported on w.
func (d *Display) CheckWindowEvent(w *Drawable, mask uint32) (Event, bool, error) {
	id, err := d.eventWindow("CheckWindowEvent", w)
	if err != nil {
		return Event{}, false, err
	}
	return d.checkEvent("CheckWindowEvent", matchWindow(id, mask))
}

// eventWindow checks that w belongs to d and may still receive events.
func (d *Display) eventWindow(op string, w *Drawable) (uint32, error) {
	if w == nil || w.core == nil {
		return 0, &ResourceError{Op: op, Err: ErrInvalidResource}
	}
	if d == nil || w.core.owner != d.core {
		return 0, &ResourceError{Op: op, XID: w.core.xid, Err: ErrCrossConnection}
	}
	id, err := w.Validate(Unmapped|Mapped, op)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

type eventMatcher func(code int, window uint32, raw xgb.Event) bool

func matchAny(int, uint32, xgb.Event) bool { return true }

func matchType(want int, window uint32) eventMatcher {
	return func(code int, w uint32, _ xgb.Event) bool {
		return code == want && (window == 0 || w == window)
	}
}

func matchWindow(window, mask uint32) eventMatcher {
	selected := matchMask(mask)
	return func(code int, w uint32, raw xgb.Event) bool {
		return w == window && selected(code, w, raw)
	}
}

func matchMask(mask uint32) eventMatcher {
	return func(code int, _ uint32, raw xgb.Event) bool {
		if code <= 0 || code >= len(eventMasks) || eventMasks[code]&mask == 0 {
			return false
		}
		if code != xproto.MotionNotify {
			return true
		}
		// Button-motion masks only select motion while that button is down.
		if mask&allPointerMotion != 0 {
			return true
		}
		state := uint32(raw.(xproto.MotionNotifyEvent).State)
		return mask&allButtonMotion&state != 0
	}
}

// checkEvent reads what the server already sent and removes the first match.
func (d *Display) checkEvent(op string, match eventMatcher) (Event, bool, error) {
	core, err := d.lock(op)
	if err != nil {
		return Event{}, false, err
	}
	defer core.mu.Unlock()

	events, err := core.proto.Events(x11.AfterReading)
	if err != nil {
		return Event{}, false, eventError(op, err)
	}
	ev, ok := d.takeEvent(events, match, true)
	return ev, ok, nil
}

// waitEvent returns the first queued match, blocking on the server while
// there is none. The connection lock is not held while blocked, so other
// goroutines, including Close, can use the connection meanwhile.
func (d *Display) waitEvent(op string, remove bool, match eventMatcher) (Event, error) {
	defer runtime.KeepAlive(d)
	mode := x11.AfterReading
	for {
		core, err := d.lock(op)
		if err != nil {
			return Event{}, err
		}
		events, err := core.proto.Events(mode)
		if err != nil {
			core.mu.Unlock()
			return Event{}, eventError(op, err)
		}
		ev, ok := d.takeEvent(events, match, remove)
		proto := core.proto
		core.mu.Unlock()
		if ok {
			return ev, nil
		}

		if _, err := proto.Events(x11.Blocking); err != nil {
			return Event{}, eventError(op, err)
		}
		mode = x11.QueuedAlready
	}
}

// takeEvent finds the first match in events, optionally dequeues it, and
// wraps it. The connection lock must be held.
func (d *Display) takeEvent(events []xgb.Event, match eventMatcher, remove bool) (Event, bool) {
	for i, raw := range events {
		code, window, _ := describeEvent(raw)
		if !match(code, window, raw) {
			continue
		}
		if remove {
			d.core.proto.DequeueEvent(i)
		}
		return d.wrapEvent(raw, remove), true
	}
	return Event{}, false
}

// wrapEvent resolves the event window. Once the event is dequeued, structure
// notifications about tracked windows bring their tracked state in line with
// the server; a peeked event leaves state alone so the later dequeue still
// resolves to the tracked handle.
func (d *Display) wrapEvent(raw xgb.Event, dequeued bool) Event {
	code, window, subject := describeEvent(raw)
	ev := Event{Type: code, Raw: raw}

	if code == xproto.DestroyNotify && window == subject {
		if _, tracked := d.core.arena.lookup(window); !tracked {
			// The window is already gone; registering it would only leak an
			// entry.
			ev.Window = d.newDrawable(window, Foreign|Destroyed, -1, true)
			return ev
		}
	}
	if window != 0 {
		if w, err := d.resolveDrawable(window, "Event"); err == nil {
			ev.Window = w
		}
	}
	if dequeued {
		d.observe(code, subject)
	}
	return ev
}

func (d *Display) observe(code int, subject uint32) {
	if subject == 0 {
		return
	}
	res, ok := d.core.arena.lookup(subject)
	if !ok {
		return
	}
	w, ok := res.(*Drawable)
	if !ok || w.core.state&(Destroyed|Pixmap) != 0 {
		return
	}
	c := w.core
	switch code {
	case xproto.MapNotify:
		c.state = c.state&^Unmapped | Mapped
		c.classified = true
	case xproto.UnmapNotify:
		c.state = c.state&^Mapped | Unmapped
		c.classified = true
	case xproto.DestroyNotify:
		c.destroyTree()
		w.stopCleanup()
		d.core.logger.Debug("tracked window destroyed by server", "window_id", c.xid)
	}
}

func eventError(op string, err error) error {
	if errors.Is(err, x11.ErrDisconnected) {
		return connectionError(op, 0)
	}
	return nativeError(op, 0, err)
}

const (
	allButtonMotion = xproto.EventMaskButton1Motion | xproto.EventMaskButton2Motion |
		xproto.EventMaskButton3Motion | xproto.EventMaskButton4Motion | xproto.EventMaskButton5Motion
	allPointerMotion = xproto.EventMaskPointerMotion | xproto.EventMaskPointerMotionHint |
		xproto.EventMaskButtonMotion
	structureMasks = xproto.EventMaskStructureNotify | xproto.EventMaskSubstructureNotify
)

// eventMasks maps core event codes to the masks that select them. Events
// delivered regardless of selection map to zero and never match a mask.
var eventMasks = [...]uint32{
	xproto.KeyPress:         xproto.EventMaskKeyPress,
	xproto.KeyRelease:       xproto.EventMaskKeyRelease,
	xproto.ButtonPress:      xproto.EventMaskButtonPress,
	xproto.ButtonRelease:    xproto.EventMaskButtonRelease,
	xproto.MotionNotify:     allPointerMotion | allButtonMotion,
	xproto.EnterNotify:      xproto.EventMaskEnterWindow,
	xproto.LeaveNotify:      xproto.EventMaskLeaveWindow,
	xproto.FocusIn:          xproto.EventMaskFocusChange,
	xproto.FocusOut:         xproto.EventMaskFocusChange,
	xproto.KeymapNotify:     xproto.EventMaskKeymapState,
	xproto.Expose:           xproto.EventMaskExposure,
	xproto.GraphicsExposure: xproto.EventMaskExposure,
	xproto.NoExposure:       xproto.EventMaskExposure,
	xproto.VisibilityNotify: xproto.EventMaskVisibilityChange,
	xproto.CreateNotify:     xproto.EventMaskSubstructureNotify,
	xproto.DestroyNotify:    structureMasks,
	xproto.UnmapNotify:      structureMasks,
	xproto.MapNotify:        structureMasks,
	xproto.MapRequest:       xproto.EventMaskSubstructureRedirect,
	xproto.ReparentNotify:   structureMasks,
	xproto.ConfigureNotify:  structureMasks,
	xproto.ConfigureRequest: xproto.EventMaskSubstructureRedirect,
	xproto.GravityNotify:    structureMasks,
	xproto.ResizeRequest:    xproto.EventMaskResizeRedirect,
	xproto.CirculateNotify:  structureMasks,
	xproto.CirculateRequest: xproto.EventMaskSubstructureRedirect,
	xproto.PropertyNotify:   xproto.EventMaskPropertyChange,
	xproto.SelectionClear:   0,
	xproto.SelectionRequest: 0,
	xproto.SelectionNotify:  0,
	xproto.ColormapNotify:   xproto.EventMaskColorMapChange,
	xproto.ClientMessage:    0,
	xproto.MappingNotify:    0,
}

// describeEvent returns the event code, the window the event is reported on,
// and the window it is about. The last two differ for substructure
// notifications.
func describeEvent(raw xgb.Event) (code int, window, subject uint32) {
	switch e := raw.(type) {
	case xproto.KeyPressEvent:
		return xproto.KeyPress, uint32(e.Event), 0
	case xproto.KeyReleaseEvent:
		return xproto.KeyRelease, uint32(e.Event), 0
	case xproto.ButtonPressEvent:
		return xproto.ButtonPress, uint32(e.Event), 0
	case xproto.ButtonReleaseEvent:
		return xproto.ButtonRelease, uint32(e.Event), 0
	case xproto.MotionNotifyEvent:
		return xproto.MotionNotify, uint32(e.Event), 0
	case xproto.EnterNotifyEvent:
		return xproto.EnterNotify, uint32(e.Event), 0
	case xproto.LeaveNotifyEvent:
		return xproto.LeaveNotify, uint32(e.Event), 0
	case xproto.FocusInEvent:
		return xproto.FocusIn, uint32(e.Event), 0
	case xproto.FocusOutEvent:
		return xproto.FocusOut, uint32(e.Event), 0
	case xproto.KeymapNotifyEvent:
		return xproto.KeymapNotify, 0, 0
	case xproto.ExposeEvent:
		return xproto.Expose, uint32(e.Window), 0
	case xproto.GraphicsExposureEvent:
		return xproto.GraphicsExposure, uint32(e.Drawable), 0
	case xproto.NoExposureEvent:
		return xproto.NoExposure, uint32(e.Drawable), 0
	case xproto.VisibilityNotifyEvent:
		return xproto.VisibilityNotify, uint32(e.Window), 0
	case xproto.CreateNotifyEvent:
		return xproto.CreateNotify, uint32(e.Parent), 0
	case xproto.DestroyNotifyEvent:
		return xproto.DestroyNotify, uint32(e.Event), uint32(e.Window)
	case xproto.UnmapNotifyEvent:
		return xproto.UnmapNotify, uint32(e.Event), uint32(e.Window)
	case xproto.MapNotifyEvent:
		return xproto.MapNotify, uint32(e.Event), uint32(e.Window)
	case xproto.MapRequestEvent:
		return xproto.MapRequest, uint32(e.Parent), 0
	case xproto.ReparentNotifyEvent:
		return xproto.ReparentNotify, uint32(e.Event), 0
	case xproto.ConfigureNotifyEvent:
		return xproto.ConfigureNotify, uint32(e.Event), 0
	case xproto.ConfigureRequestEvent:
		return xproto.ConfigureRequest, uint32(e.Parent), 0
	case xproto.GravityNotifyEvent:
		return xproto.GravityNotify, uint32(e.Event), 0
	case xproto.ResizeRequestEvent:
		return xproto.ResizeRequest, uint32(e.Window), 0
	case xproto.CirculateNotifyEvent:
		return xproto.CirculateNotify, uint32(e.Event), 0
	case xproto.CirculateRequestEvent:
		return xproto.CirculateRequest, uint32(e.Event), 0
	case xproto.PropertyNotifyEvent:
		return xproto.PropertyNotify, uint32(e.Window), 0
	case xproto.SelectionClearEvent:
		return xproto.SelectionClear, uint32(e.Owner), 0
	case xproto.SelectionRequestEvent:
		return xproto.SelectionRequest, uint32(e.Owner), 0
	case xproto.SelectionNotifyEvent:
		return xproto.SelectionNotify, uint32(e.Requestor), 0
	case xproto.ColormapNotifyEvent:
		return xproto.ColormapNotify, uint32(e.Window), 0
	case xproto.ClientMessageEvent:
		return xproto.ClientMessage, uint32(e.Window), 0
	case xproto.MappingNotifyEvent:
		return xproto.MappingNotify, 0, 0
	}
	if b := raw.Bytes(); len(b) > 0 {
		return int(b[0] & 0x7f), 0, 0
	}
	return 0, 0, 0
}
