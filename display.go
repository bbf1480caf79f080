package xsafe

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/google/uuid"

	"github.com/1broseidon/xsafe/internal/x11"
)

// AllPlanes is the plane mask with every bit set.
const AllPlanes = ^uint32(0)

// displayCore is the owner record shared by a Display and every dependent
// handle. It outlives the Display object itself: dependents' release
// callbacks read marker to learn whether the Display was already reclaimed.
//
// mu serializes everything below it, including native calls, across
// application goroutines and collector callbacks.
type displayCore struct {
	mu      sync.Mutex
	proto   x11.Protocol
	state   DisplayState
	marker  liveness
	arena   *arena
	setup   *xproto.SetupInfo
	session uuid.UUID
	logger  *slog.Logger
	auto    bool
}

// Display is a connection to an X server. All other handles depend on one.
type Display struct {
	core       *displayCore
	defaultGCs map[int]*GC // guarded by core.mu

	cleanup    runtime.Cleanup
	hasCleanup bool
}

// dialFn is swapped in tests.
var dialFn = dialX11

func dialX11(name string, opts x11.DialOptions) (x11.Protocol, error) {
	conn, err := x11.Dial(name, opts)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Open connects to the display named by host, or $DISPLAY when host is
// empty.
func Open(host string) (*Display, error) {
	return OpenConfig(Config{Display: host})
}

// OpenConfig connects using cfg.
func OpenConfig(cfg Config) (*Display, error) {
	logger := cfg.logger()
	proto, err := dialFn(cfg.Display, x11.DialOptions{
		XAuthority: cfg.XAuthority,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return newDisplay(proto, cfg), nil
}

func newDisplay(proto x11.Protocol, cfg Config) *Display {
	session := uuid.New()
	core := &displayCore{
		proto:   proto,
		state:   DisplayOpen,
		marker:  livenessIntact,
		arena:   newArena(),
		setup:   proto.Setup(),
		session: session,
		logger: cfg.logger().With(
			"display", proto.DisplayString(),
			"display_session", session.String()),
		auto: !cfg.DisableAutoRelease,
	}
	d := &Display{
		core:       core,
		defaultGCs: make(map[int]*GC),
	}
	if core.auto {
		d.cleanup = runtime.AddCleanup(d, releaseDisplay, core)
		d.hasCleanup = true
	}
	core.logger.Info("display opened", "auto_release", core.auto)
	return d
}

// lock acquires the connection lock and checks that the connection is open.
// On success the caller must unlock core.mu.
func (d *Display) lock(op string) (*displayCore, error) {
	if d == nil || d.core == nil {
		return nil, connectionError(op, 0)
	}
	core := d.core
	core.mu.Lock()
	if core.state != DisplayOpen {
		core.mu.Unlock()
		return nil, connectionError(op, 0)
	}
	return core, nil
}

// Close disconnects from the server. The server releases every resource of
// the connection, so dependent handles are invalidated without individual
// release requests.
func (d *Display) Close() error {
	core, err := d.lock("Close")
	if err != nil {
		return err
	}
	defer core.mu.Unlock()

	core.proto.Close()
	core.state = DisplayClosed
	dropped := core.arena.len()
	core.arena = newArena()
	if d.hasCleanup {
		d.cleanup.Stop()
		d.hasCleanup = false
	}
	core.logger.Info("display closed", "dropped_resources", dropped)
	return nil
}

// State reports the connection state. It is valid in any state.
func (d *Display) State() DisplayState {
	if d == nil || d.core == nil {
		return DisplayClosed
	}
	d.core.mu.Lock()
	defer d.core.mu.Unlock()
	return d.core.state
}

// Validate checks that the connection is open. Forwarding code calls it
// before touching the native connection.
func (d *Display) Validate(caller string) error {
	core, err := d.lock(caller)
	if err != nil {
		return err
	}
	core.mu.Unlock()
	return nil
}

// NativeHandle returns the protocol client for collaborators that issue their
// own forwarding calls. The result must not be used after Close.
func (d *Display) NativeHandle(caller string) (x11.Protocol, error) {
	core, err := d.lock(caller)
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()
	return core.proto, nil
}

// Session identifies this connection in log output.
func (d *Display) Session() uuid.UUID {
	if d == nil || d.core == nil {
		return uuid.Nil
	}
	return d.core.session
}

func (d *Display) setupInfo(op string) (*xproto.SetupInfo, error) {
	core, err := d.lock(op)
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()
	return core.setup, nil
}

// Vendor returns the server vendor string.
func (d *Display) Vendor() (string, error) {
	s, err := d.setupInfo("Vendor")
	if err != nil {
		return "", err
	}
	return s.Vendor, nil
}

// ProtocolVersion returns the major protocol version.
func (d *Display) ProtocolVersion() (int, error) {
	s, err := d.setupInfo("ProtocolVersion")
	if err != nil {
		return 0, err
	}
	return int(s.ProtocolMajorVersion), nil
}

// ProtocolRevision returns the minor protocol version.
func (d *Display) ProtocolRevision() (int, error) {
	s, err := d.setupInfo("ProtocolRevision")
	if err != nil {
		return 0, err
	}
	return int(s.ProtocolMinorVersion), nil
}

// VendorRelease is the vendor's release number from the connection setup.
func (d *Display) VendorRelease() (int, error) {
	s, err := d.setupInfo("VendorRelease")
	if err != nil {
		return 0, err
	}
	return int(s.ReleaseNumber), nil
}

// BitmapUnit is the scanline unit of bitmap images, in bits.
func (d *Display) BitmapUnit() (int, error) {
	s, err := d.setupInfo("BitmapUnit")
	if err != nil {
		return 0, err
	}
	return int(s.BitmapFormatScanlineUnit), nil
}

// BitmapBitOrder is LSBFirst (0) or MSBFirst (1).
func (d *Display) BitmapBitOrder() (int, error) {
	s, err := d.setupInfo("BitmapBitOrder")
	if err != nil {
		return 0, err
	}
	return int(s.BitmapFormatBitOrder), nil
}

// BitmapPad is the scanline padding of bitmap images, in bits.
func (d *Display) BitmapPad() (int, error) {
	s, err := d.setupInfo("BitmapPad")
	if err != nil {
		return 0, err
	}
	return int(s.BitmapFormatScanlinePad), nil
}

// ImageByteOrder is LSBFirst (0) or MSBFirst (1).
func (d *Display) ImageByteOrder() (int, error) {
	s, err := d.setupInfo("ImageByteOrder")
	if err != nil {
		return 0, err
	}
	return int(s.ImageByteOrder), nil
}

// MaxRequestLength is in 4-byte units, as reported by the server.
func (d *Display) MaxRequestLength() (int, error) {
	s, err := d.setupInfo("MaxRequestLength")
	if err != nil {
		return 0, err
	}
	return int(s.MaximumRequestLength), nil
}

// MotionBufferSize is the size of the server's motion history buffer.
func (d *Display) MotionBufferSize() (int, error) {
	s, err := d.setupInfo("MotionBufferSize")
	if err != nil {
		return 0, err
	}
	return int(s.MotionBufferSize), nil
}

// ScreenCount is the number of screens the server offers.
func (d *Display) ScreenCount() (int, error) {
	s, err := d.setupInfo("ScreenCount")
	if err != nil {
		return 0, err
	}
	return len(s.Roots), nil
}

// DefaultScreen returns the screen number selected by the display name.
func (d *Display) DefaultScreen() (int, error) {
	core, err := d.lock("DefaultScreen")
	if err != nil {
		return 0, err
	}
	defer core.mu.Unlock()
	n := core.proto.DefaultScreen()
	if n < 0 || n >= len(core.setup.Roots) {
		n = 0
	}
	return n, nil
}

// DisplayString returns the display name the connection was opened with.
func (d *Display) DisplayString() (string, error) {
	core, err := d.lock("DisplayString")
	if err != nil {
		return "", err
	}
	defer core.mu.Unlock()
	return core.proto.DisplayString(), nil
}

// NoOp sends a NoOperation request.
func (d *Display) NoOp() error {
	core, err := d.lock("NoOp")
	if err != nil {
		return err
	}
	defer core.mu.Unlock()
	if err := core.proto.NoOperation(); err != nil {
		return nativeError("NoOp", 0, err)
	}
	return nil
}

// Flush validates the connection. Requests are written as they are issued,
// so there is no output buffer to flush.
func (d *Display) Flush() error {
	return d.Validate("Flush")
}

// Sync waits until the server has processed every request sent so far.
func (d *Display) Sync() error {
	core, err := d.lock("Sync")
	if err != nil {
		return err
	}
	defer core.mu.Unlock()
	if err := core.proto.Sync(); err != nil {
		return nativeError("Sync", 0, err)
	}
	return nil
}

// QLength returns the number of events already in the client-side queue.
func (d *Display) QLength() (int, error) {
	return d.EventsQueued(QueuedAlready)
}

// Screen returns the metadata view of screen n.
func (d *Display) Screen(n int) (*Screen, error) {
	core, err := d.lock("Screen")
	if err != nil {
		return nil, err
	}
	defer core.mu.Unlock()
	info, err := core.screenInfo("Screen", n)
	if err != nil {
		return nil, err
	}
	return &Screen{display: d, number: n, info: info}, nil
}

// DefaultScreenOf returns the view of the default screen.
func (d *Display) DefaultScreenOf() (*Screen, error) {
	n, err := d.DefaultScreen()
	if err != nil {
		return nil, err
	}
	return d.Screen(n)
}

var errScreenRange = errors.New("screen number out of range")

func (c *displayCore) screenInfo(op string, n int) (*xproto.ScreenInfo, error) {
	if n < 0 || n >= len(c.setup.Roots) {
		return nil, &ResourceError{Op: op, Err: fmt.Errorf("%w: %d", errScreenRange, n)}
	}
	return &c.setup.Roots[n], nil
}
