package landfill

import "sync"

// arrayStripes is the number of striped read-write locks guarding an
// Array's slots, per spec.md §4.F ("e.g. 256 read-write locks").
const arrayStripes = 256

// Array is the fixed-size random-access array of spec.md §4.F: slots of a
// user type T laid out directly over an Arena at index*codec.Size,
// coordinated by locks striped over index mod arrayStripes rather than one
// lock per slot or one lock for the whole array.
type Array[T any] struct {
	arena   *Arena
	codec   Codec[T]
	stripes [arrayStripes]sync.RWMutex
}

// NewArray substructures lf into an "arena" and composes it with codec.
// The arena's INIT is rounded up to a multiple of codec.Size, so every lane
// boundary falls on a slot boundary and no slot straddles two lanes.
func NewArray[T any](lf *Landfill, codec Codec[T], opts ...ArenaOption) (*Array[T], error) {
	arenaLF, err := lf.Substructure("arena")
	if err != nil {
		return nil, err
	}
	opts = append(opts[:len(opts):len(opts)], func(a *Arena) { a.init = alignUp(a.init, uint64(codec.Size)) })
	arena, err := NewArena(arenaLF, opts...)
	if err != nil {
		return nil, err
	}
	return &Array[T]{arena: arena, codec: codec}, nil
}

func (a *Array[T]) offset(index uint64) uint64 {
	return index * uint64(a.codec.Size)
}

func (a *Array[T]) stripe(index uint64) *sync.RWMutex {
	return &a.stripes[index%arrayStripes]
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Get returns the decoded value at index and true, or the zero value and
// false if the slot reads as all-zero bytes ("uninitialized", per spec.md
// §4.F's invariant that the zero bit pattern is reserved to mean empty).
func (a *Array[T]) Get(index uint64) (T, bool) {
	var zero T
	mu := a.stripe(index)
	mu.RLock()
	defer mu.RUnlock()

	b, ok := a.arena.Read(a.offset(index), uint64(a.codec.Size))
	if !ok || allZero(b) {
		return zero, false
	}
	return a.codec.Decode(b), true
}

// WithMut runs f against the slot at index under its stripe's write lock:
// decodes the current value (or the zero value, if the slot is empty),
// lets f mutate it in place, then re-encodes it back into the arena.
func (a *Array[T]) WithMut(index uint64, f func(v *T)) error {
	return a.withMutRaw(index, func(b []byte, wasEmpty bool) {
		var v T
		if !wasEmpty {
			v = a.codec.Decode(b)
		}
		f(&v)
		a.codec.Encode(v, b)
	})
}

// withMutRaw is WithMut's primitive: it hands f the slot's raw backing
// bytes and whether they read as empty, under the stripe's write lock,
// without committing to a decode. SmashMap uses this directly to implement
// double-checked locking on an empty-slot observation, since by the time
// it re-checks under the write lock it needs to know whether the slot was
// genuinely empty or had meanwhile been claimed by another probe.
func (a *Array[T]) withMutRaw(index uint64, f func(b []byte, wasEmpty bool)) error {
	mu := a.stripe(index)
	mu.Lock()
	defer mu.Unlock()

	b, err := a.arena.RequestWrite(a.offset(index), uint64(a.codec.Size))
	if err != nil {
		return err
	}
	f(b, allZero(b))
	return nil
}

// Flush delegates to the underlying arena.
func (a *Array[T]) Flush() error {
	return a.arena.Flush()
}

// Close closes the underlying arena.
func (a *Array[T]) Close() error {
	return a.arena.Close()
}
