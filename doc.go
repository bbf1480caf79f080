// Package xsafe is an X11 client binding whose handles cannot be used past
// the end of their validity.
//
// A Display owns a connection. Windows, pixmaps and graphics contexts are
// created from it and remember which connection they belong to; once the
// connection is closed every operation on them fails with
// ErrInvalidConnection before anything is sent to the server. Destroyed and
// freed handles fail with ErrInvalidResource, so releasing twice is an error
// rather than a protocol fault.
//
// Handles that become unreachable are released by the garbage collector.
// Dependents are only released while their connection is still open; the
// connection's own release is the last request it ever sends. Set
// Config.DisableAutoRelease to rely on explicit release alone.
//
// Identifiers the server reports in events are resolved through the
// connection's Registry. An identifier this process never created becomes a
// Foreign drawable, which can be queried and drawn on but is never destroyed.
package xsafe
