package xsafe

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xsafe/internal/x11"
)

// Monitor is a physical output of a screen, as reported by RandR.
type Monitor = x11.Monitor

// Screen is a read-only view of one screen of a connection. It has no state
// of its own and is valid exactly while its Display is open.
type Screen struct {
	display *Display
	number  int
	info    *xproto.ScreenInfo
}

// read validates the owner and returns the screen descriptor. The caller must
// unlock the returned core.
func (s *Screen) read(op string) (*displayCore, *xproto.ScreenInfo, error) {
	if s == nil {
		return nil, nil, connectionError(op, 0)
	}
	core, err := s.display.lock(op)
	if err != nil {
		return nil, nil, err
	}
	return core, s.info, nil
}

// Display returns the connection the screen belongs to.
func (s *Screen) Display() *Display {
	if s == nil {
		return nil
	}
	return s.display
}

// Number is the screen index. It is an identity query and valid in any
// state.
func (s *Screen) Number() int {
	if s == nil {
		return -1
	}
	return s.number
}

// Root returns the root window of the screen. Root windows belong to the
// server, so the handle is Foreign.
func (s *Screen) Root() (*Drawable, error) {
	core, info, err := s.read("Root")
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()

	w, err := s.display.resolveDrawable(uint32(info.Root), "Root")
	if err != nil {
		return nil, err
	}
	if !w.core.classified {
		w.core.state = Foreign | Mapped
		w.core.classified = true
	}
	w.core.screen = s.number
	return w, nil
}

// BlackPixel is the pixel value for black in the default colormap.
func (s *Screen) BlackPixel() (uint32, error) {
	core, info, err := s.read("BlackPixel")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	return info.BlackPixel, nil
}

// WhitePixel is the pixel value for white in the default colormap.
func (s *Screen) WhitePixel() (uint32, error) {
	core, info, err := s.read("WhitePixel")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	return info.WhitePixel, nil
}

// Width is in pixels.
func (s *Screen) Width() (int, error) {
	core, info, err := s.read("Width")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	return int(info.WidthInPixels), nil
}

// Height is in pixels.
func (s *Screen) Height() (int, error) {
	core, info, err := s.read("Height")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	return int(info.HeightInPixels), nil
}

// WidthMM is the physical width in millimetres.
func (s *Screen) WidthMM() (int, error) {
	core, info, err := s.read("WidthMM")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	return int(info.WidthInMillimeters), nil
}

// HeightMM is the physical height in millimetres.
func (s *Screen) HeightMM() (int, error) {
	core, info, err := s.read("HeightMM")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	return int(info.HeightInMillimeters), nil
}

// Planes is the depth of the root window.
func (s *Screen) Planes() (int, error) {
	core, info, err := s.read("Planes")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	return int(info.RootDepth), nil
}

// Cells is the number of colormap entries of the root visual.
func (s *Screen) Cells() (int, error) {
	core, info, err := s.read("Cells")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	for _, depth := range info.AllowedDepths {
		for _, visual := range depth.Visuals {
			if visual.VisualId == info.RootVisual {
				return int(visual.ColormapEntries), nil
			}
		}
	}
	return 0, nil
}

// MinColormaps is how many colormaps the screen always supports installing.
func (s *Screen) MinColormaps() (int, error) {
	core, info, err := s.read("MinColormaps")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	return int(info.MinInstalledMaps), nil
}

// MaxColormaps is the most colormaps the screen can install at once.
func (s *Screen) MaxColormaps() (int, error) {
	core, info, err := s.read("MaxColormaps")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	return int(info.MaxInstalledMaps), nil
}

// Monitors lists the active outputs of the screen.
func (s *Screen) Monitors() ([]Monitor, error) {
	core, info, err := s.read("Monitors")
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()
	monitors, err := core.proto.Monitors(info.Root)
	if err != nil {
		return nil, nativeError("Monitors", uint32(info.Root), err)
	}
	return monitors, nil
}

// MonitorAt returns the monitor containing the point, or nil.
func (s *Screen) MonitorAt(x, y int) (*Monitor, error) {
	monitors, err := s.Monitors()
	if err != nil {
		return nil, err
	}
	return x11.MonitorAt(monitors, x, y), nil
}
