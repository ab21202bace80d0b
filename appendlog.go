package landfill

// AppendLog is the append-only log of spec.md §4.E: an Arena holding the
// record bytes, plus a Journal[uint64] holding the writehead. The writehead
// is advanced and persisted before a record's bytes are copied into the
// arena's pages, so a crash between the two leaves the reserved range
// behind the writehead holding whatever bytes had reached the pages
// (zeros if none).
type AppendLog struct {
	arena   *Arena
	journal *Journal[uint64]
	headLF  *Landfill
}

// NewAppendLog substructures lf into an "arena" and a "head" journal and
// composes them into an AppendLog. opts configure the record arena.
func NewAppendLog(lf *Landfill, opts ...ArenaOption) (*AppendLog, error) {
	arenaLF, err := lf.Substructure("arena")
	if err != nil {
		return nil, err
	}
	headLF, err := lf.Substructure("head")
	if err != nil {
		arenaLF.Close()
		return nil, err
	}

	arena, err := NewArena(arenaLF, opts...)
	if err != nil {
		headLF.Close()
		return nil, err
	}
	journal, err := NewJournal(headLF, Uint64Codec)
	if err != nil {
		arena.Close()
		headLF.Close()
		return nil, err
	}
	return &AppendLog{arena: arena, journal: journal, headLF: headLF}, nil
}

// Write reserves len(data) bytes aligned to alignment and advances the
// writehead past them, then copies data into them, returning the offset
// data was written at. Per the update protocol of spec.md §4.C,
// the reservation (FindSpaceFor) and the writehead advance happen inside
// one JournalUpdate call so a concurrent Write can never reserve the same
// range twice.
func (al *AppendLog) Write(data []byte, alignment uint64) (uint64, error) {
	offset, err := JournalUpdate(al.journal, func(head uint64) (uint64, uint64, error) {
		start, err := al.arena.FindSpaceFor(head, uint64(len(data)), alignment)
		if err != nil {
			return head, 0, err
		}
		return start + uint64(len(data)), start, nil
	})
	if err != nil {
		return 0, err
	}

	dst, err := al.arena.RequestWrite(offset, uint64(len(data)))
	if err != nil {
		return 0, err
	}
	copy(dst, data)
	return offset, nil
}

// Get returns a shared reference to the length bytes at offset, or false
// if the range's lane isn't mapped or the range runs past it. An unwritten
// range inside a mapped lane reads as zero bytes.
func (al *AppendLog) Get(offset, length uint64) ([]byte, bool) {
	return al.arena.Read(offset, length)
}

// Len returns the current writehead: the logical length of the log.
func (al *AppendLog) Len() uint64 {
	return al.journal.Value()
}

// Flush flushes the arena to disk. The writehead journal is not flushed
// here; it flushes its own file on every update.
func (al *AppendLog) Flush() error {
	if err := al.arena.Flush(); err != nil {
		return err
	}
	return nil
}

// Close closes the journal, its "head" Landfill substructure handle, and
// the arena (which closes its own "arena" substructure handle in turn).
func (al *AppendLog) Close() error {
	var firstErr error
	if err := al.journal.Close(); err != nil {
		firstErr = err
	}
	if err := al.headLF.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := al.arena.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
