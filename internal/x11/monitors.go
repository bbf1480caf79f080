package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// Monitor is the area of the screen scanned out by one active CRTC.
type Monitor struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	WidthMM  int    `json:"width_mm,omitempty"`
	HeightMM int    `json:"height_mm,omitempty"`
	Primary  bool   `json:"primary,omitempty"`
}

// Contains reports whether the point lies inside the monitor.
func (m Monitor) Contains(x, y int) bool {
	return x >= m.X && x < m.X+m.Width && y >= m.Y && y < m.Y+m.Height
}

// Monitors lists the active CRTCs of the screen rooted at root, in CRTC
// order. RandR is initialised on first use.
func (c *Connection) Monitors(root xproto.Window) ([]Monitor, error) {
	conn := c.XUtil.Conn()
	if !c.randrReady {
		if err := randr.Init(conn); err != nil {
			return nil, fmt.Errorf("randr init failed: %w", err)
		}
		c.randrReady = true
	}

	res, err := randr.GetScreenResources(conn, root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}
	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(conn, root).Reply(); err == nil {
		primary = reply.Output
	}

	monitors := make([]Monitor, 0, len(res.Crtcs))
	for i, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, res.ConfigTimestamp).Reply()
		if err != nil {
			c.logger.Debug("skipping unreadable crtc", "crtc", crtc, "error", err)
			continue
		}
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		m := Monitor{
			ID:     i,
			Name:   fmt.Sprintf("crtc-%d", i),
			X:      int(info.X),
			Y:      int(info.Y),
			Width:  int(info.Width),
			Height: int(info.Height),
		}
		for _, out := range info.Outputs {
			if out == primary && primary != 0 {
				m.Primary = true
			}
		}
		if out, err := randr.GetOutputInfo(conn, info.Outputs[0], res.ConfigTimestamp).Reply(); err == nil {
			m.Name = string(out.Name)
			m.WidthMM = int(out.MmWidth)
			m.HeightMM = int(out.MmHeight)
		}
		monitors = append(monitors, m)
	}
	return monitors, nil
}

// MonitorAt returns the first monitor containing the point, or nil.
func MonitorAt(monitors []Monitor, x, y int) *Monitor {
	for i := range monitors {
		if monitors[i].Contains(x, y) {
			return &monitors[i]
		}
	}
	return nil
}
