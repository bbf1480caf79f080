package x11

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Events returns a snapshot of the client-side event queue. Protocol errors
// that arrive asynchronously are logged and removed, so indexes in the
// returned slice line up with DequeueEvent.
func (c *Connection) Events(mode ReadMode) ([]xgb.Event, error) {
	switch mode {
	case Blocking:
		// xevent.Read(xu, true) treats a dropped connection as fatal, so the
		// blocking wait is done here.
		ev, xerr := c.XUtil.Conn().WaitForEvent()
		if ev == nil && xerr == nil {
			return nil, ErrDisconnected
		}
		xevent.Enqueue(c.XUtil, ev, xerr)
		xevent.Read(c.XUtil, false)
	case AfterReading:
		xevent.Read(c.XUtil, false)
	}

	c.dropErrors()

	queued := xevent.Peek(c.XUtil)
	events := make([]xgb.Event, 0, len(queued))
	for _, item := range queued {
		events = append(events, item.Event)
	}
	return events, nil
}

// DequeueEvent removes the i-th entry of the last snapshot.
func (c *Connection) DequeueEvent(i int) {
	xevent.DequeueAt(c.XUtil, i)
}

func (c *Connection) dropErrors() {
	queued := xevent.Peek(c.XUtil)
	for i := len(queued) - 1; i >= 0; i-- {
		if queued[i].Err == nil {
			continue
		}
		c.logger.Warn("x11 protocol error", "error", queued[i].Err)
		xevent.DequeueAt(c.XUtil, i)
	}
}
