package landfill

import (
	"fmt"
	"math/bits"
	"runtime"
	"sync/atomic"

	"github.com/coldbrewdb/landfill/internal/meter"
)

const (
	// DefaultInitLaneSize is INIT from spec.md §3: the base lane size that
	// every lane's geometric growth (INIT * 2^i) is computed from.
	DefaultInitLaneSize uint64 = 4096

	// MaxLanes is the hard cap on lane count (spec.md §3: "lane_nr ∈
	// [0, 32)"), matching src/diskbytes/raw.rs's N_LANES. This is also
	// what bounds SmashMap's probe walk in practice: its loop has no band
	// cap of its own, the same as the original's, and only terminates
	// early via the arena running out of lanes to grow into.
	MaxLanes = 32
)

// Arena is the segmented byte arena of spec.md §4.B: an unbounded logical
// address space split across MaxLanes exponentially growing lanes, each
// lazily created and memory-mapped on first write that targets it.
type Arena struct {
	lf       *Landfill
	init     uint64
	maxLanes int
	lanes    [MaxLanes]atomic.Pointer[mappedFile]
	meter    meter.Pair
}

// ArenaOption configures Arena construction.
type ArenaOption func(*Arena)

// WithInitLaneSize overrides INIT (default DefaultInitLaneSize).
func WithInitLaneSize(n uint64) ArenaOption {
	return func(a *Arena) { a.init = n }
}

// WithMaxLanes overrides the lane cap (default MaxLanes, must be <= MaxLanes).
func WithMaxLanes(n int) ArenaOption {
	return func(a *Arena) { a.maxLanes = n }
}

func laneName(i int) string { return fmt.Sprintf("%02x", i) }

func laneSize(lane int, init uint64) uint64 {
	return init << uint(lane)
}

func laneStart(lane int, init uint64) uint64 {
	return ((uint64(1) << uint(lane)) - 1) * init
}

// laneOf implements spec.md §3's closed form: i = offset/INIT + 1;
// lane_nr = floor(log2(i)); inner_offset = offset - (2^lane_nr - 1)*INIT.
func laneOf(offset, init uint64) (lane int, inner uint64) {
	i := offset/init + 1
	lane = bits.Len64(i) - 1
	inner = offset - ((uint64(1)<<uint(lane) - 1) * init)
	return lane, inner
}

// NewArena opens a segmented byte arena as a direct use of lf (lanes are
// named "<prefix>_00".."<prefix>_1f" directly, with no further branch),
// scanning for and mapping any lanes that already exist on disk.
func NewArena(lf *Landfill, opts ...ArenaOption) (*Arena, error) {
	a := &Arena{lf: lf, init: DefaultInitLaneSize, maxLanes: MaxLanes, meter: meter.NewPair()}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxLanes > MaxLanes {
		a.maxLanes = MaxLanes
	}
	for i := 0; i < a.maxLanes; i++ {
		mf, err := lf.MapFileExisting(laneName(i), int64(laneSize(i, a.init)))
		if err != nil {
			return nil, err
		}
		if mf != nil {
			a.lanes[i].Store(mf)
		}
	}
	return a, nil
}

// ensureLane maps lane, creating its backing file if needed. Concurrent
// callers racing to create the same lane resolve via Landfill's name-claim
// set: the loser's MapFileCreate returns (nil, nil), and it spin-waits for
// the winner's single-assignment store to become visible, per spec.md §4.B
// "Lazy lane initialization under concurrency."
func (a *Arena) ensureLane(lane int) (*mappedFile, error) {
	if p := a.lanes[lane].Load(); p != nil {
		return p, nil
	}
	mf, err := a.lf.MapFileCreate(laneName(lane), int64(laneSize(lane, a.init)))
	if err != nil {
		return nil, err
	}
	if mf != nil {
		a.lanes[lane].Store(mf)
		return mf, nil
	}
	for {
		if p := a.lanes[lane].Load(); p != nil {
			return p, nil
		}
		runtime.Gosched()
	}
}

func alignUp(x, alignment uint64) uint64 {
	if alignment <= 1 {
		return x
	}
	return (x + alignment - 1) / alignment * alignment
}

// FindSpaceFor returns the smallest offset >= offset that is aligned to
// alignment and has len contiguous bytes that do not cross a lane
// boundary, per spec.md §4.B.
func (a *Arena) FindSpaceFor(offset, length, alignment uint64) (uint64, error) {
	o := alignUp(offset, alignment)
	for {
		lane, inner := laneOf(o, a.init)
		if lane >= a.maxLanes {
			return 0, ErrOutOfBounds
		}
		if inner+length <= laneSize(lane, a.init) {
			return o, nil
		}
		o = alignUp(laneStart(lane+1, a.init), alignment)
	}
}

// RequestWrite locates (lane, inner) for offset, ensures the lane is
// mapped, and returns a mutable slice of length bytes into the mapping.
// Callers must have located offset with FindSpaceFor; RequestWrite only
// re-validates that the range does not cross the lane boundary. The
// caller is responsible for not overlapping writers (spec.md §4.B "Safety
// discipline") — in this library that discipline is enforced by Journal's
// and Array's lock protocols, never by callers of Arena directly.
func (a *Arena) RequestWrite(offset, length uint64) ([]byte, error) {
	lane, inner := laneOf(offset, a.init)
	if lane >= a.maxLanes {
		return nil, ErrOutOfBounds
	}
	if inner+length > laneSize(lane, a.init) {
		return nil, ErrCrossesLane
	}
	mf, err := a.ensureLane(lane)
	if err != nil {
		return nil, err
	}
	b := mf.Bytes()
	if inner+length > uint64(len(b)) {
		return nil, ErrOutOfBounds
	}
	a.meter.MarkWrite(int(length))
	return b[inner : inner+length], nil
}

// Read returns a shared reference to the bytes at [offset, offset+length)
// if the target lane is mapped and the range lies within it, else false.
func (a *Arena) Read(offset, length uint64) ([]byte, bool) {
	lane, inner := laneOf(offset, a.init)
	if lane >= a.maxLanes {
		return nil, false
	}
	p := a.lanes[lane].Load()
	if p == nil {
		return nil, false
	}
	b := p.Bytes()
	if inner+length > uint64(len(b)) {
		return nil, false
	}
	a.meter.MarkRead(int(length))
	return b[inner : inner+length], true
}

// Flush flushes every initialized lane to disk.
func (a *Arena) Flush() error {
	var firstErr error
	for i := 0; i < a.maxLanes; i++ {
		if p := a.lanes[i].Load(); p != nil {
			if err := p.Flush(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close flushes and unmaps every initialized lane, then closes the
// underlying Landfill handle.
func (a *Arena) Close() error {
	var firstErr error
	for i := 0; i < a.maxLanes; i++ {
		if p := a.lanes[i].Load(); p != nil {
			if err := p.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := a.lf.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
