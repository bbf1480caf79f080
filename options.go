package xsafe

import (
	"io"
	"log/slog"
)

// Config controls how a Display is opened.
type Config struct {
	// Display is the X display name. Empty means $DISPLAY.
	Display string
	// XAuthority overrides the authority file used for the handshake.
	XAuthority string
	// DisableAutoRelease turns off collector-driven release. Handles must
	// then be released explicitly or are reclaimed by the server on
	// disconnect.
	DisableAutoRelease bool
	// Logger receives lifecycle diagnostics. Nil discards them.
	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
