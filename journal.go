package landfill

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/coldbrewdb/landfill/internal/mlog"
)

// JournalPageSize is the fixed size of a journal's backing file: one
// memory page, per spec.md §4.C.
const JournalPageSize = 4096

// Journal is a durable, checksummed, monotonic ring register, used to
// record writeheads and other small values that must survive a crash
// without tearing, per spec.md §4.C. Entries are {value T, checksum
// uint64}; an entry validates when its stored checksum equals
// xxhash.Sum64 of its encoded value.
type Journal[T cmp.Ordered] struct {
	mu    sync.Mutex
	codec Codec[T]

	ephemeral bool
	mf        *mappedFile

	entrySize int
	capacity  int
	cursor    int
	current   T

	log mlog.Logger
}

// NewJournal opens (or creates) a page-sized ring journal named "journal"
// under lf, recovering the latest validating entry.
func NewJournal[T cmp.Ordered](lf *Landfill, codec Codec[T]) (*Journal[T], error) {
	entrySize := codec.Size + 8
	capacity := JournalPageSize / entrySize
	if capacity < 1 {
		return nil, fmt.Errorf("landfill: journal entry size %d exceeds page size %d", entrySize, JournalPageSize)
	}
	mf, err := lf.MapFileCreate("journal", JournalPageSize)
	if err != nil {
		return nil, err
	}
	if mf == nil {
		return nil, ErrDuplicateClaim
	}
	j := &Journal[T]{
		codec:     codec,
		mf:        mf,
		entrySize: entrySize,
		capacity:  capacity,
		log:       mlog.New("journal", lf.Prefix()),
	}
	if err := j.recover(); err != nil {
		mf.Close()
		return nil, err
	}
	return j, nil
}

// NewInMemoryJournal is the "ephemeral mode" variant of spec.md §4.C: it
// keeps the current value under the same lock and monotonicity contract,
// with no disk backing at all.
func NewInMemoryJournal[T cmp.Ordered](initial T) *Journal[T] {
	return &Journal[T]{ephemeral: true, current: initial, log: mlog.New("journal", "ephemeral")}
}

func (j *Journal[T]) entryBytes(idx int) []byte {
	b := j.mf.Bytes()
	off := idx * j.entrySize
	return b[off : off+j.entrySize]
}

// recover scans every ring slot, validates its checksum, and selects the
// cursor pointing at the entry with the largest validating value,
// defaulting to the zero value if none validate — mirroring
// core/rawdb/freezer_table.go's repair(), generalized from "cross-check
// head/offsets file lengths" to "cross-check every ring entry's checksum."
func (j *Journal[T]) recover() error {
	bestIdx := -1
	var best T
	torn := 0
	for i := 0; i < j.capacity; i++ {
		entry := j.entryBytes(i)
		valueBytes := entry[:j.codec.Size]
		storedChecksum := binary.LittleEndian.Uint64(entry[j.codec.Size:])
		if xxhash.Sum64(valueBytes) != storedChecksum {
			torn++
			continue
		}
		value := j.codec.Decode(valueBytes)
		if bestIdx == -1 || cmp.Compare(value, best) >= 0 {
			bestIdx, best = i, value
		}
	}
	if torn > 0 && torn < j.capacity {
		j.log.Warn("journal: discarding entries with checksum mismatch on recovery", "torn", torn, "capacity", j.capacity)
	}
	if bestIdx == -1 {
		// Fresh (or fully corrupt) file: seed slot 0 with the zero value so
		// the invariant "at least one validating entry always exists" holds
		// from here on.
		if torn == j.capacity {
			j.log.Warn("journal: no validating entry found on recovery, reseeding with zero value", "capacity", j.capacity)
		}
		var zero T
		j.cursor = 0
		j.current = zero
		return j.writeEntry(0, zero)
	}
	j.cursor, j.current = bestIdx, best
	return nil
}

func (j *Journal[T]) writeEntry(idx int, value T) error {
	entry := j.entryBytes(idx)
	j.codec.Encode(value, entry[:j.codec.Size])
	checksum := xxhash.Sum64(entry[:j.codec.Size])
	binary.LittleEndian.PutUint64(entry[j.codec.Size:], checksum)
	return j.mf.Flush()
}

// Value returns the journal's current value.
func (j *Journal[T]) Value() T {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current
}

// JournalUpdate runs the update protocol of spec.md §4.C under the
// journal's exclusive lock: read the current value, apply mutate to get a
// new value and an arbitrary result R (the pre-advance offset, for
// Append-Only Log's writehead reservation), assert the new value is >=
// old (the conservative, non-strict resolution of SPEC_FULL.md's Open
// Question 1), write it into the next ring slot, flush, and advance the
// cursor.
//
// This is a free function rather than a *Journal[T] method because Go
// methods cannot introduce a type parameter beyond the receiver's.
func JournalUpdate[T cmp.Ordered, R any](j *Journal[T], mutate func(old T) (T, R, error)) (R, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var zero R
	old := j.current
	newValue, result, err := mutate(old)
	if err != nil {
		return zero, err
	}
	if cmp.Compare(newValue, old) < 0 {
		panic(fmt.Sprintf("landfill: journal monotonicity violated: %v < %v", newValue, old))
	}

	if j.ephemeral {
		j.current = newValue
		return result, nil
	}

	next := (j.cursor + 1) % j.capacity
	if err := j.writeEntry(next, newValue); err != nil {
		return zero, err
	}
	j.cursor = next
	j.current = newValue
	return result, nil
}

// Close flushes and releases the journal's mapped file, if any.
func (j *Journal[T]) Close() error {
	if j.ephemeral || j.mf == nil {
		return nil
	}
	return j.mf.Close()
}
