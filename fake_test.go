package xsafe

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xsafe/internal/x11"
)

const (
	fakeRoot  = 0x100
	fakeBlack = 0x000000
	fakeWhite = 0xffffff
)

type fakeCall struct {
	op string
	id uint32
}

// fakeProto records every native call and counts the ones made after Close.
type fakeProto struct {
	mu         sync.Mutex
	calls      []fakeCall
	closed     bool
	afterClose int
	nextID     uint32
	setup      *xproto.SetupInfo

	// mapped holds windows the server knows about, keyed to their map state.
	mapped  map[uint32]bool
	pixmaps map[uint32]bool
	queue   []xgb.Event
	// incoming holds events the server has sent but the client not yet read.
	incoming []xgb.Event
	arrived  chan struct{}
	fail     map[string]error
}

func newFakeProto() *fakeProto {
	return &fakeProto{
		nextID: 0x200000,
		setup: &xproto.SetupInfo{
			ProtocolMajorVersion:     11,
			ProtocolMinorVersion:     0,
			ReleaseNumber:            12101004,
			MotionBufferSize:         256,
			MaximumRequestLength:     65535,
			ImageByteOrder:           xproto.ImageOrderLSBFirst,
			BitmapFormatBitOrder:     xproto.ImageOrderLSBFirst,
			BitmapFormatScanlineUnit: 32,
			BitmapFormatScanlinePad:  32,
			Vendor:                   "Fake X Server",
			Roots: []xproto.ScreenInfo{{
				Root:                fakeRoot,
				WhitePixel:          fakeWhite,
				BlackPixel:          fakeBlack,
				WidthInPixels:       1920,
				HeightInPixels:      1080,
				WidthInMillimeters:  508,
				HeightInMillimeters: 285,
				MinInstalledMaps:    1,
				MaxInstalledMaps:    1,
				RootVisual:          0x21,
				RootDepth:           24,
				AllowedDepths: []xproto.DepthInfo{{
					Depth:   24,
					Visuals: []xproto.VisualInfo{{VisualId: 0x21, ColormapEntries: 256}},
				}},
			}},
		},
		mapped:  map[uint32]bool{fakeRoot: true},
		pixmaps: make(map[uint32]bool),
		arrived: make(chan struct{}, 1),
		fail:    make(map[string]error),
	}
}

func (f *fakeProto) record(op string, id uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{op: op, id: id})
	if f.closed {
		f.afterClose++
	}
	return f.fail[op]
}

func (f *fakeProto) allocID() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

// count returns how many times op was issued.
func (f *fakeProto) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

// lateCalls is afterClose read under the lock, for tests where cleanups run
// concurrently.
func (f *fakeProto) lateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.afterClose
}

func (f *fakeProto) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

// send delivers an event from the "server".
func (f *fakeProto) send(ev xgb.Event) {
	f.mu.Lock()
	f.incoming = append(f.incoming, ev)
	f.mu.Unlock()
	select {
	case f.arrived <- struct{}{}:
	default:
	}
}

func (f *fakeProto) Close() {
	f.record("Close", 0)
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	select {
	case f.arrived <- struct{}{}:
	default:
	}
}

func (f *fakeProto) Setup() *xproto.SetupInfo { return f.setup }
func (f *fakeProto) DefaultScreen() int       { return 0 }
func (f *fakeProto) DisplayString() string    { return ":42" }
func (f *fakeProto) Sync() error              { return f.record("Sync", 0) }
func (f *fakeProto) NoOperation() error       { return f.record("NoOperation", 0) }

func (f *fakeProto) CreateWindow(p x11.WindowParams) (xproto.Window, error) {
	if err := f.record("CreateWindow", uint32(p.Parent)); err != nil {
		return 0, err
	}
	id := f.allocID()
	f.mu.Lock()
	f.mapped[id] = false
	f.mu.Unlock()
	return xproto.Window(id), nil
}

func (f *fakeProto) MapWindow(w xproto.Window) error {
	if err := f.record("MapWindow", uint32(w)); err != nil {
		return err
	}
	f.mu.Lock()
	f.mapped[uint32(w)] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeProto) UnmapWindow(w xproto.Window) error {
	if err := f.record("UnmapWindow", uint32(w)); err != nil {
		return err
	}
	f.mu.Lock()
	f.mapped[uint32(w)] = false
	f.mu.Unlock()
	return nil
}

func (f *fakeProto) DestroyWindow(w xproto.Window) error {
	if err := f.record("DestroyWindow", uint32(w)); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.mapped, uint32(w))
	f.mu.Unlock()
	return nil
}

func (f *fakeProto) ClearArea(w xproto.Window, _ xproto.Rectangle, _ bool) error {
	return f.record("ClearArea", uint32(w))
}

func (f *fakeProto) SelectInput(w xproto.Window, _ uint32) error {
	return f.record("SelectInput", uint32(w))
}

func (f *fakeProto) WindowAttributes(w xproto.Window) (*xproto.GetWindowAttributesReply, error) {
	if err := f.record("WindowAttributes", uint32(w)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	mapped, ok := f.mapped[uint32(w)]
	if !ok {
		return nil, fmt.Errorf("BadWindow 0x%x", uint32(w))
	}
	reply := &xproto.GetWindowAttributesReply{MapState: xproto.MapStateUnmapped}
	if mapped {
		reply.MapState = xproto.MapStateViewable
	}
	return reply, nil
}

func (f *fakeProto) Geometry(d xproto.Drawable) (*xproto.GetGeometryReply, error) {
	if err := f.record("Geometry", uint32(d)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, isWindow := f.mapped[uint32(d)]
	if !isWindow && !f.pixmaps[uint32(d)] {
		return nil, fmt.Errorf("BadDrawable 0x%x", uint32(d))
	}
	return &xproto.GetGeometryReply{Root: fakeRoot, Width: 64, Height: 48, Depth: 24}, nil
}

func (f *fakeProto) CreatePixmap(root xproto.Window, _, _ uint16, _ byte) (xproto.Pixmap, error) {
	if err := f.record("CreatePixmap", uint32(root)); err != nil {
		return 0, err
	}
	id := f.allocID()
	f.mu.Lock()
	f.pixmaps[id] = true
	f.mu.Unlock()
	return xproto.Pixmap(id), nil
}

func (f *fakeProto) FreePixmap(p xproto.Pixmap) error {
	if err := f.record("FreePixmap", uint32(p)); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.pixmaps, uint32(p))
	f.mu.Unlock()
	return nil
}

func (f *fakeProto) CopyArea(src, _ xproto.Drawable, _ xproto.Gcontext, _ xproto.Rectangle, _ xproto.Point) error {
	return f.record("CopyArea", uint32(src))
}

func (f *fakeProto) CreateGC(d xproto.Drawable, _ uint32, _ []uint32) (xproto.Gcontext, error) {
	if err := f.record("CreateGC", uint32(d)); err != nil {
		return 0, err
	}
	return xproto.Gcontext(f.allocID()), nil
}

func (f *fakeProto) ChangeGC(gc xproto.Gcontext, _ uint32, _ []uint32) error {
	return f.record("ChangeGC", uint32(gc))
}

func (f *fakeProto) CopyGC(src, _ xproto.Gcontext, _ uint32) error {
	return f.record("CopyGC", uint32(src))
}

func (f *fakeProto) SetDashes(gc xproto.Gcontext, _ uint16, _ []byte) error {
	return f.record("SetDashes", uint32(gc))
}

func (f *fakeProto) SetClipRectangles(gc xproto.Gcontext, _ xproto.Point, _ []xproto.Rectangle, _ byte) error {
	return f.record("SetClipRectangles", uint32(gc))
}

func (f *fakeProto) FreeGC(gc xproto.Gcontext) error { return f.record("FreeGC", uint32(gc)) }

func (f *fakeProto) PolyArc(d xproto.Drawable, _ xproto.Gcontext, _ []xproto.Arc) error {
	return f.record("PolyArc", uint32(d))
}

func (f *fakeProto) PolyLine(d xproto.Drawable, _ xproto.Gcontext, _ []xproto.Point) error {
	return f.record("PolyLine", uint32(d))
}

func (f *fakeProto) PolyPoint(d xproto.Drawable, _ xproto.Gcontext, _ []xproto.Point) error {
	return f.record("PolyPoint", uint32(d))
}

func (f *fakeProto) PolySegment(d xproto.Drawable, _ xproto.Gcontext, _ []xproto.Segment) error {
	return f.record("PolySegment", uint32(d))
}

func (f *fakeProto) PolyRectangle(d xproto.Drawable, _ xproto.Gcontext, _ []xproto.Rectangle) error {
	return f.record("PolyRectangle", uint32(d))
}

func (f *fakeProto) Events(mode x11.ReadMode) ([]xgb.Event, error) {
	if mode == x11.Blocking {
		for {
			f.mu.Lock()
			closed, ready := f.closed, len(f.incoming) > 0
			f.mu.Unlock()
			if closed {
				return nil, x11.ErrDisconnected
			}
			if ready {
				break
			}
			<-f.arrived
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.afterClose++
	}
	if mode != x11.QueuedAlready {
		f.queue = append(f.queue, f.incoming...)
		f.incoming = nil
	}
	return append([]xgb.Event(nil), f.queue...), nil
}

func (f *fakeProto) DequeueEvent(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue[:i], f.queue[i+1:]...)
}

func (f *fakeProto) Monitors(root xproto.Window) ([]x11.Monitor, error) {
	if err := f.record("Monitors", uint32(root)); err != nil {
		return nil, err
	}
	return []x11.Monitor{
		{ID: 0, Name: "DP-1", X: 0, Y: 0, Width: 1920, Height: 1080},
	}, nil
}

var _ x11.Protocol = (*fakeProto)(nil)

// openFake opens a Display on a fresh fake. Collector-driven release is off
// so call lists stay deterministic.
func openFake(t *testing.T) (*Display, *fakeProto) {
	t.Helper()
	fake := newFakeProto()
	return newDisplay(fake, Config{DisableAutoRelease: true}), fake
}

// openFakeLogged is openFake with a captured debug log.
func openFakeLogged(t *testing.T, auto bool) (*Display, *fakeProto, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fake := newFakeProto()
	return newDisplay(fake, Config{DisableAutoRelease: !auto, Logger: logger}), fake, &buf
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
