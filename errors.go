package landfill

import "errors"

var (
	// ErrLocked is returned by Open when another live handle already holds
	// the directory's _lock sentinel.
	ErrLocked = errors.New("landfill: directory is locked by another handle")

	// ErrDuplicateClaim is returned when a substructure or named file would
	// resolve to a full prefix path that has already been claimed.
	ErrDuplicateClaim = errors.New("landfill: name already claimed")

	// ErrClosed is returned by MapFileCreate and MapFileExisting once the
	// last handle sharing a Landfill's state has been closed.
	ErrClosed = errors.New("landfill: handle is closed")

	// ErrOutOfBounds is returned by Arena.FindSpaceFor and
	// Arena.RequestWrite when the range falls in a lane at or past the
	// arena's lane cap, or past a lane's mapped length (so also by a write
	// to an index past an array's slot capacity). Reads return false
	// instead.
	ErrOutOfBounds = errors.New("landfill: offset out of bounds")

	// ErrCrossesLane is returned if a caller requests a write whose range
	// would straddle two lanes; callers must locate space with
	// Arena.FindSpaceFor first.
	ErrCrossesLane = errors.New("landfill: write would cross a lane boundary")

	// ErrProbeExhausted is returned by SmashMap.Insert when its probe walk
	// runs past every lane the backing Arena can address (MaxLanes) without
	// landing on an empty or matching slot. The original Rust SmashMap hits
	// the same limit via its RandomAccess store's fixed-capacity
	// ArrayVec<Mapping, N_LANES> and panics on overflow; returning
	// ErrProbeExhausted here is the idiomatic Go substitute for that panic.
	ErrProbeExhausted = errors.New("landfill: smashmap probe exhausted maximum bands")
)
