package xsafe

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
)

func TestDraw_ForwardsToServer(t *testing.T) {
	d, fake := openFake(t)
	w := createWindow(t, d)
	gc, _ := d.DefaultGC(0)

	pts := []xproto.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}
	calls := []struct {
		op  string
		run func() error
	}{
		{"PolyArc", func() error { return w.DrawArcs(gc, []xproto.Arc{{Width: 4, Height: 4, Angle2: 360 * 64}}) }},
		{"PolyLine", func() error { return w.DrawLines(gc, pts) }},
		{"PolyPoint", func() error { return w.DrawPoints(gc, pts) }},
		{"PolySegment", func() error { return w.DrawSegments(gc, []xproto.Segment{{X2: 5, Y2: 5}}) }},
		{"PolyRectangle", func() error { return w.DrawRectangles(gc, []xproto.Rectangle{{Width: 3, Height: 3}}) }},
	}
	for _, c := range calls {
		if err := c.run(); err != nil {
			t.Fatalf("%s: %v", c.op, err)
		}
		if fake.count(c.op) != 1 {
			t.Fatalf("expected one %s, got %d", c.op, fake.count(c.op))
		}
	}
}

func TestDraw_EmptyInputSendsNothing(t *testing.T) {
	d, fake := openFake(t)
	p, _ := d.CreatePixmap(0, 8, 8, 0)
	gc, _ := d.CreateGC(0, nil)

	if err := p.DrawLines(gc, nil); err != nil {
		t.Fatalf("draw lines: %v", err)
	}
	if fake.count("PolyLine") != 0 {
		t.Fatalf("empty draw reached the server")
	}
}

func TestDraw_RejectsInvalidHandles(t *testing.T) {
	d, fake := openFake(t)
	w := createWindow(t, d)
	gc, _ := d.CreateGC(0, nil)
	pts := []xproto.Point{{X: 1, Y: 1}}

	if err := gc.Free(); err != nil {
		t.Fatalf("free: %v", err)
	}
	expectErr(t, w.DrawPoints(gc, pts), ErrInvalidResource)

	live, _ := d.CreateGC(0, nil)
	if err := w.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	expectErr(t, w.DrawPoints(live, pts), ErrInvalidResource)

	other, _ := openFake(t)
	ow := createWindow(t, other)
	expectErr(t, ow.DrawPoints(live, pts), ErrCrossConnection)

	v := createWindow(t, d)
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	expectErr(t, v.DrawPoints(live, pts), ErrInvalidConnection)

	if fake.count("PolyPoint") != 0 {
		t.Fatalf("invalid draws reached the server: %v", fake.ops())
	}
}
