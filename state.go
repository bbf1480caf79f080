package xsafe

import "strings"

// DisplayState is the lifecycle state of a connection.
type DisplayState uint8

const (
	DisplayOpen DisplayState = iota + 1
	DisplayClosed
)

func (s DisplayState) String() string {
	switch s {
	case DisplayOpen:
		return "Open"
	case DisplayClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// DrawableState is a set of flags. Exactly one of Unmapped, Mapped, Pixmap
// and Destroyed describes the lifecycle; Foreign may be combined with any of
// them.
type DrawableState uint8

const (
	Unmapped DrawableState = 1 << iota
	Mapped
	Destroyed
	// Foreign marks a drawable this process did not create.
	Foreign
	// Pixmap marks an off-screen drawable; it has no mapped axis.
	Pixmap
)

var drawableStateNames = []struct {
	flag DrawableState
	name string
}{
	{Unmapped, "Unmapped"},
	{Mapped, "Mapped"},
	{Destroyed, "Destroyed"},
	{Foreign, "Foreign"},
	{Pixmap, "Pixmap"},
}

func (s DrawableState) String() string {
	var parts []string
	for _, n := range drawableStateNames {
		if s&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "|")
}

// GCState is the lifecycle state of a graphics context.
type GCState uint8

const (
	// GCDefault is the per-screen context cached on the connection.
	GCDefault GCState = 1 << iota
	GCCreated
	GCFreed
)

func (s GCState) String() string {
	switch s {
	case GCDefault:
		return "Default"
	case GCCreated:
		return "Created"
	case GCFreed:
		return "Freed"
	default:
		return "Unknown"
	}
}

type drawableOp uint8

const (
	opMap drawableOp = iota
	opUnmap
	opDestroy
	opClear
	opDraw
	opSelectInput
	opParent
	opQuery
	numDrawableOps
)

// drawableRule is one row of the drawable transition table. An operation is
// permitted when the state shares a bit with allow and none with deny; on
// success the clear bits are dropped and the set bits added.
type drawableRule struct {
	allow DrawableState
	deny  DrawableState
	clear DrawableState
	set   DrawableState
}

var drawableRules = [numDrawableOps]drawableRule{
	opMap:         {allow: Unmapped, deny: Destroyed | Pixmap, clear: Unmapped, set: Mapped},
	opUnmap:       {allow: Mapped, deny: Destroyed | Pixmap, clear: Mapped, set: Unmapped},
	opDestroy:     {allow: Unmapped | Mapped | Pixmap, deny: Destroyed | Foreign, clear: Unmapped | Mapped, set: Destroyed},
	opClear:       {allow: Unmapped | Mapped, deny: Destroyed | Pixmap},
	opDraw:        {allow: Unmapped | Mapped | Pixmap, deny: Destroyed},
	opSelectInput: {allow: Unmapped | Mapped, deny: Destroyed | Pixmap},
	opParent:      {allow: Unmapped | Mapped, deny: Destroyed | Pixmap},
	opQuery:       {allow: Unmapped | Mapped | Pixmap, deny: Destroyed},
}

func (r drawableRule) permits(s DrawableState) bool {
	return s&r.allow != 0 && s&r.deny == 0
}

func (r drawableRule) apply(s DrawableState) DrawableState {
	return s&^r.clear | r.set
}

type gcOp uint8

const (
	opGCUse gcOp = iota
	opGCFree
	numGCOps
)

// gcRule mirrors drawableRule. A state sharing a bit with protect is
// rejected with ErrProtectedResource instead of ErrInvalidResource.
type gcRule struct {
	allow   GCState
	protect GCState
	next    GCState
}

var gcRules = [numGCOps]gcRule{
	opGCUse:  {allow: GCDefault | GCCreated},
	opGCFree: {allow: GCCreated, protect: GCDefault, next: GCFreed},
}
