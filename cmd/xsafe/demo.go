package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xsafe"
)

const demoEventMask = xproto.EventMaskExposure |
	xproto.EventMaskButtonPress |
	xproto.EventMaskKeyPress |
	xproto.EventMaskStructureNotify

const stampSize = 24

func runDemo(args []string) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var conn connectFlags
	conn.register(fs)
	timeout := fs.Duration("timeout", 0, "Close the window after this long (0 waits for a key press)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: xsafe demo [--path PATH] [--display NAME] [--screen N] [--timeout D]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Open a window, draw into it, and stamp a pixmap at every click.")
		fmt.Fprintln(os.Stderr, "Any key closes the window.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "demo takes no arguments")
		fs.Usage()
		return 2
	}

	cfg, err := conn.load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	s, err := openSession(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer s.Close()

	scr, err := s.screen(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	d := newDemo(s, scr)
	if err := d.setup(cfg.Demo.Width, cfg.Demo.Height, cfg.Demo.Title); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	// Closing the display wakes the blocked event read.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if sig, ok := <-sigCh; ok {
			s.logger.Info("received signal, closing display", "signal", sig)
			s.display.Close()
		}
	}()
	if *timeout > 0 {
		t := time.AfterFunc(*timeout, func() {
			s.logger.Info("demo timeout reached, closing display")
			s.display.Close()
		})
		defer t.Stop()
	}

	if err := d.run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

type demo struct {
	s      *session
	screen *xsafe.Screen

	window *xsafe.Drawable
	gc     *xsafe.GC
	stamp  *xsafe.Drawable
	stamps int
}

func newDemo(s *session, scr *xsafe.Screen) *demo {
	return &demo{s: s, screen: scr}
}

func (d *demo) setup(width, height int, title string) error {
	display := d.s.display
	n := d.screen.Number()

	white, err := d.screen.WhitePixel()
	if err != nil {
		return err
	}
	black, err := d.screen.BlackPixel()
	if err != nil {
		return err
	}

	d.window, err = display.CreateWindow(xsafe.WindowParams{
		Screen:      n,
		Width:       width,
		Height:      height,
		BorderWidth: 1,
		Background:  white,
		Border:      black,
		EventMask:   demoEventMask,
		Title:       title,
	})
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	if d.gc, err = display.DefaultGC(n); err != nil {
		return err
	}

	d.stamp, err = display.CreatePixmap(n, stampSize, stampSize, 0)
	if err != nil {
		return fmt.Errorf("create pixmap: %w", err)
	}
	if err := d.paintStamp(white, black); err != nil {
		return err
	}

	if err := d.window.Map(); err != nil {
		return err
	}
	d.s.logger.Info("demo window mapped",
		"window_id", d.window.XID(),
		"screen", n,
		"width", width,
		"height", height,
	)
	return nil
}

// paintStamp draws a framed cross into the pixmap with a short-lived context.
func (d *demo) paintStamp(bg, fg uint32) error {
	gc, err := d.s.display.CreateGC(d.screen.Number(), xsafe.GCValues{
		xproto.GcForeground: bg,
		xproto.GcLineWidth:  2,
	})
	if err != nil {
		return err
	}
	defer gc.Free()

	// Pixmap contents start undefined.
	fill := make([]xproto.Rectangle, 0, stampSize/2)
	for i := range stampSize / 2 {
		fill = append(fill, xproto.Rectangle{
			X:      int16(i),
			Y:      int16(i),
			Width:  uint16(stampSize - 2*i - 1),
			Height: uint16(stampSize - 2*i - 1),
		})
	}
	if err := d.stamp.DrawRectangles(gc, fill); err != nil {
		return err
	}

	if err := gc.Change(xsafe.GCValues{
		xproto.GcForeground: fg,
		xproto.GcLineStyle:  xproto.LineStyleOnOffDash,
	}); err != nil {
		return err
	}
	if err := gc.SetDashes(0, []byte{4, 2}); err != nil {
		return err
	}
	frame := xproto.Rectangle{Width: stampSize - 1, Height: stampSize - 1}
	if err := d.stamp.DrawRectangles(gc, []xproto.Rectangle{frame}); err != nil {
		return err
	}
	return d.stamp.DrawSegments(gc, []xproto.Segment{
		{X1: 4, Y1: 4, X2: stampSize - 4, Y2: stampSize - 4},
		{X1: stampSize - 4, Y1: 4, X2: 4, Y2: stampSize - 4},
	})
}

func (d *demo) redraw() error {
	geo, err := d.window.Geometry()
	if err != nil {
		return err
	}
	if err := d.window.Clear(); err != nil {
		return err
	}
	if geo.Width < 48 || geo.Height < 48 {
		return nil
	}
	w, h := int16(geo.Width), int16(geo.Height)
	if err := d.window.DrawRectangles(d.gc, []xproto.Rectangle{
		{X: 8, Y: 8, Width: uint16(w - 16), Height: uint16(h - 16)},
	}); err != nil {
		return err
	}
	if err := d.window.DrawLines(d.gc, []xproto.Point{
		{X: 8, Y: h - 8}, {X: w / 2, Y: 8}, {X: w - 8, Y: h - 8},
	}); err != nil {
		return err
	}
	if err := d.window.DrawArcs(d.gc, []xproto.Arc{
		{X: w/2 - 20, Y: h/2 - 20, Width: 40, Height: 40, Angle1: 0, Angle2: 360 * 64},
	}); err != nil {
		return err
	}
	return d.window.DrawPoints(d.gc, []xproto.Point{{X: w / 2, Y: h / 2}})
}

func (d *demo) stampAt(x, y int16) error {
	d.stamps++
	from := xproto.Rectangle{Width: stampSize, Height: stampSize}
	to := xproto.Point{X: x - stampSize/2, Y: y - stampSize/2}
	return d.stamp.CopyArea(d.window, d.gc, from, to)
}

// run dispatches events until a key press, the window's destruction, or the
// display being closed from another goroutine.
func (d *demo) run() error {
	display := d.s.display
	for {
		ev, err := display.NextEvent()
		if err != nil {
			if errors.Is(err, xsafe.ErrInvalidConnection) {
				return nil
			}
			return err
		}
		if ev.Window != nil && ev.Window != d.window {
			continue
		}

		switch ev.Type {
		case xproto.Expose:
			if e, ok := ev.Raw.(xproto.ExposeEvent); ok && e.Count > 0 {
				continue
			}
			if err := d.redraw(); err != nil {
				return err
			}
		case xproto.ButtonPress:
			e, ok := ev.Raw.(xproto.ButtonPressEvent)
			if !ok {
				continue
			}
			if err := d.stampAt(e.EventX, e.EventY); err != nil {
				return err
			}
			d.s.logger.Debug("stamped", "x", e.EventX, "y", e.EventY, "count", d.stamps)
		case xproto.KeyPress:
			d.s.logger.Info("key pressed, closing demo window", "stamps", d.stamps)
			return d.teardown()
		case xproto.DestroyNotify:
			d.s.logger.Info("demo window destroyed externally", "state", d.window.State())
			return nil
		}
	}
}

func (d *demo) teardown() error {
	if err := d.stamp.Destroy(); err != nil {
		return err
	}
	if err := d.window.Destroy(); err != nil {
		return err
	}
	return d.s.display.Sync()
}
