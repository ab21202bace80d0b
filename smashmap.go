package landfill

import (
	"encoding/binary"

	"github.com/coldbrewdb/landfill/internal/meter"
	"github.com/rcrowley/go-metrics"
)

// DefaultInitialFanout is F₀ from spec.md §4.G.
const DefaultInitialFanout uint64 = 1024

// Decision is returned by an onOccupied callback to tell a probe walk
// whether the slot it just saw is an acceptable match (Halt) or whether
// the walk should keep probing (Proceed).
type Decision int

const (
	// Proceed continues the probe walk past the current slot.
	Proceed Decision = iota
	// Halt stops the probe walk at the current slot, successfully.
	Halt
)

// Search is the handle spec.md §4.G exposes to insert/get callbacks: the
// current probe state, truncatable to short tags a caller can store
// alongside V to prune full key comparisons without touching the arena
// again.
type Search struct {
	state uint64
}

// TagU8 truncates the current probe state to 8 bits.
func (s *Search) TagU8() uint8 { return uint8(s.state) }

// TagU16 truncates the current probe state to 16 bits.
func (s *Search) TagU16() uint16 { return uint16(s.state) }

// TagU32 truncates the current probe state to 32 bits.
func (s *Search) TagU32() uint32 { return uint32(s.state) }

// TagU64 returns the current probe state untruncated.
func (s *Search) TagU64() uint64 { return s.state }

// Proceed is sugar for the Proceed decision, read at a call site as
// "search.Proceed()" the way spec.md's proceed()/halt() helpers read.
func (s *Search) Proceed() Decision { return Proceed }

// Halt is sugar for the Halt decision.
func (s *Search) Halt() Decision { return Halt }

func bandOffset(band int, f0 uint64) uint64 {
	return ((uint64(1) << uint(band)) - 1) * f0
}

func bandSize(band int, f0 uint64) uint64 {
	return (uint64(1) << uint(band)) * f0
}

func bandTries(band int) uint64 {
	return uint64(1) << uint(band)
}

func stateBytes(state uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], state)
	return b[:]
}

// SmashMap is the probe-based hash index of spec.md §4.G: a random-access
// Array of V probed via growing concentric bands seeded by a per-map
// Entropy, so that the probe sequence is deterministic given a key and
// resistant to adversarial key crafting across arenas.
type SmashMap[V any] struct {
	arr           *Array[V]
	entropy       *Entropy
	entropyLF     *Landfill
	initialFanout uint64
	probeDepth    metrics.Histogram
}

// SmashMapOption configures SmashMap construction.
type SmashMapOption func(*smashMapConfig)

type smashMapConfig struct {
	initialFanout uint64
	arenaOpts     []ArenaOption
}

// WithInitialFanout overrides F₀ (default DefaultInitialFanout).
func WithInitialFanout(f0 uint64) SmashMapOption {
	return func(c *smashMapConfig) { c.initialFanout = f0 }
}

// WithSmashMapArenaOptions forwards ArenaOption values to the backing
// Array's Arena (e.g. a smaller INIT for tests).
func WithSmashMapArenaOptions(opts ...ArenaOption) SmashMapOption {
	return func(c *smashMapConfig) { c.arenaOpts = opts }
}

// NewSmashMap substructures lf into "entropy" and "array", and composes
// them into a SmashMap over codec.
func NewSmashMap[V any](lf *Landfill, codec Codec[V], opts ...SmashMapOption) (*SmashMap[V], error) {
	cfg := smashMapConfig{initialFanout: DefaultInitialFanout}
	for _, opt := range opts {
		opt(&cfg)
	}

	entropyLF, err := lf.Substructure("entropy")
	if err != nil {
		return nil, err
	}
	arrayLF, err := lf.Substructure("array")
	if err != nil {
		entropyLF.Close()
		return nil, err
	}

	entropy, err := NewEntropy(entropyLF)
	if err != nil {
		entropyLF.Close()
		arrayLF.Close()
		return nil, err
	}
	arr, err := NewArray(arrayLF, codec, cfg.arenaOpts...)
	if err != nil {
		entropyLF.Close()
		return nil, err
	}

	return &SmashMap[V]{
		arr:           arr,
		entropy:       entropy,
		entropyLF:     entropyLF,
		initialFanout: cfg.initialFanout,
		probeDepth:    meter.NewProbeDepth(),
	}, nil
}

// Insert walks the probe sequence for key band by band, with no cap on how
// many bands it will grow through — src/structures/smash.rs's insert is
// the same unbounded loop. For each probed slot: if it reads present,
// onOccupied decides whether to Halt (accept this slot, e.g. a duplicate)
// or Proceed. If it reads empty, the slot's write lock is acquired and the
// read is repeated (double-checked locking); if it is still empty, onEmpty
// synthesizes the value to store and Insert returns. In practice the walk
// is bounded by the backing Array's Arena, which only has MaxLanes lanes
// of address space: where the original's ArrayVec<Mapping, N_LANES> would
// panic on overflow, RequestWrite instead returns ErrOutOfBounds /
// ErrCrossesLane, which Insert reports as ErrProbeExhausted.
func (sm *SmashMap[V]) Insert(key []byte, onOccupied func(*Search, V) Decision, onEmpty func(*Search) V) error {
	state := sm.entropy.Checksum(key)
	depth := uint64(0)

	for band := 0; ; band++ {
		size := bandSize(band, sm.initialFanout)
		offset := bandOffset(band, sm.initialFanout)
		tries := bandTries(band)

		for retry := uint64(0); retry < tries; retry++ {
			depth++
			idx := offset + (state+retry)%size
			search := &Search{state: state}

			if v, ok := sm.arr.Get(idx); ok {
				if onOccupied(search, v) == Halt {
					sm.probeDepth.Update(int64(depth))
					return nil
				}
				continue
			}

			done := false
			err := sm.arr.withMutRaw(idx, func(b []byte, wasEmpty bool) {
				if !wasEmpty {
					v := sm.arr.codec.Decode(b)
					if onOccupied(search, v) == Halt {
						done = true
					}
					return
				}
				nv := onEmpty(search)
				sm.arr.codec.Encode(nv, b)
				done = true
			})
			if err != nil {
				if err == ErrOutOfBounds || err == ErrCrossesLane {
					return ErrProbeExhausted
				}
				return err
			}
			if done {
				sm.probeDepth.Update(int64(depth))
				return nil
			}
		}
		state = sm.entropy.Checksum(stateBytes(state))
	}
}

// Get walks the same unbounded probe sequence as Insert. On each present
// slot, onOccupied decides whether to Halt (a match was found) or Proceed.
// On the first empty slot — including a slot past every lane the backing
// Arena has ever mapped — the walk stops: a write would have taken that
// slot before leaving any later slot holding the key, so returning with no
// Halt having been issued means "not found." Like src/structures/smash.rs's
// get, this never errors.
func (sm *SmashMap[V]) Get(key []byte, onOccupied func(*Search, V) Decision) {
	state := sm.entropy.Checksum(key)
	depth := uint64(0)

	for band := 0; ; band++ {
		size := bandSize(band, sm.initialFanout)
		offset := bandOffset(band, sm.initialFanout)
		tries := bandTries(band)

		for retry := uint64(0); retry < tries; retry++ {
			depth++
			idx := offset + (state+retry)%size

			v, ok := sm.arr.Get(idx)
			if !ok {
				sm.probeDepth.Update(int64(depth))
				return
			}
			search := &Search{state: state}
			if onOccupied(search, v) == Halt {
				sm.probeDepth.Update(int64(depth))
				return
			}
		}
		state = sm.entropy.Checksum(stateBytes(state))
	}
}

// Flush delegates to the underlying array.
func (sm *SmashMap[V]) Flush() error {
	return sm.arr.Flush()
}

// Close closes the underlying array and the entropy substructure handle.
func (sm *SmashMap[V]) Close() error {
	var firstErr error
	if err := sm.arr.Close(); err != nil {
		firstErr = err
	}
	if err := sm.entropyLF.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
