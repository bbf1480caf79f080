package xsafe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConnection is returned for any operation that needs an open
	// connection once the connection has been closed.
	ErrInvalidConnection = errors.New("invalid connection")
	// ErrInvalidResource is returned when a resource is destroyed, freed, or
	// otherwise in a state that does not permit the operation.
	ErrInvalidResource = errors.New("invalid resource")
	// ErrDuplicateResource is returned when a second handle is registered for
	// an identifier that already has a live handle.
	ErrDuplicateResource = errors.New("duplicate resource")
	// ErrProtectedResource is returned when freeing a connection's cached
	// default graphics context.
	ErrProtectedResource = errors.New("protected resource")
	// ErrCrossConnection is returned when one operation mixes handles that
	// belong to different connections.
	ErrCrossConnection = errors.New("resources belong to different connections")
	// ErrConnectionFailed is returned when Open cannot reach the server or the
	// display name is malformed.
	ErrConnectionFailed = errors.New("connection failed")
)

// ResourceError reports a rejected or failed operation on a handle. Err is one
// of the package sentinels or a wrapped protocol error.
type ResourceError struct {
	Op    string
	XID   uint32
	State string
	Err   error
}

func (e *ResourceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "xsafe: " + e.Op
	if e.XID != 0 {
		msg += fmt.Sprintf(" (xid 0x%x", e.XID)
		if e.State != "" {
			msg += ", state " + e.State
		}
		msg += ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

func connectionError(op string, xid uint32) error {
	return &ResourceError{Op: op, XID: xid, Err: ErrInvalidConnection}
}

func nativeError(op string, xid uint32, err error) error {
	return &ResourceError{Op: op, XID: xid, Err: fmt.Errorf("protocol error: %w", err)}
}
