package x11

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// Connection is the xgb-backed Protocol implementation.
type Connection struct {
	XUtil   *xgbutil.XUtil
	Root    xproto.Window
	display string
	logger  *slog.Logger

	randrReady bool
}

var _ Protocol = (*Connection)(nil)

// DialOptions tunes Dial.
type DialOptions struct {
	// XAuthority overrides the authority file used for the handshake.
	XAuthority string
	Logger     *slog.Logger
}

// Dial resolves and parses the display name, establishes a connection to the
// X server and loads its setup information. An empty name is resolved with
// Resolve.
func Dial(display string, opts DialOptions) (*Connection, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	target, err := Resolve(display, opts.XAuthority)
	if err != nil {
		return nil, err
	}
	name := target.Display
	if _, err := ParseDisplayName(name); err != nil {
		return nil, err
	}
	logger.Debug("x11 target resolved",
		"display", name, "display_source", target.DisplaySource,
		"xauthority", target.XAuthority, "xauthority_source", target.XAuthoritySource)

	// xgb reads the authority file location from the environment.
	if target.XAuthority != "" && target.XAuthority != os.Getenv("XAUTHORITY") {
		if err := os.Setenv("XAUTHORITY", target.XAuthority); err != nil {
			return nil, fmt.Errorf("failed to set XAUTHORITY: %w", err)
		}
	}

	routeLibraryLogs(logger)

	xu, err := xgbutil.NewConnDisplay(name)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server %q: %w", name, err)
	}

	logger.Debug("x11 connection established",
		"display", name,
		"vendor", xu.Setup().Vendor,
		"screens", len(xu.Setup().Roots))

	return &Connection{
		XUtil:   xu,
		Root:    xu.RootWin(),
		display: name,
		logger:  logger,
	}, nil
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}

func (c *Connection) Setup() *xproto.SetupInfo {
	return c.XUtil.Setup()
}

func (c *Connection) DefaultScreen() int {
	return c.XUtil.Conn().DefaultScreen
}

func (c *Connection) DisplayString() string {
	return c.display
}

// Sync performs a full round trip so every request sent so far has been
// processed by the server.
func (c *Connection) Sync() error {
	if _, err := xproto.GetInputFocus(c.XUtil.Conn()).Reply(); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

func (c *Connection) NoOperation() error {
	return xproto.NoOperationChecked(c.XUtil.Conn()).Check()
}

// routeLibraryLogs points the package loggers of xgb and xgbutil, which
// default to stderr, at logger.
func routeLibraryLogs(logger *slog.Logger) {
	xgb.Logger = slog.NewLogLogger(logger.Handler(), slog.LevelDebug)
	xgbutil.Logger = slog.NewLogLogger(logger.Handler(), slog.LevelDebug)
}
