package landfill

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/coldbrewdb/landfill/internal/mlog"
)

// lockFileName is the zero-length sentinel whose presence (held via an
// exclusive, non-blocking flock) marks a directory as owned by a live
// Landfill handle.
const lockFileName = "_lock"

// landfillState is the shared, reference-counted core of a Landfill. Every
// Landfill value returned by Open, Ephemeral, Branch or Substructure holds
// one strong reference; the last Close tears it down. This stands in for
// the reference-counted-handle-with-Drop pattern spec.md describes, since
// Go has no destructors.
type landfillState struct {
	mu      sync.Mutex
	root    string
	claimed map[string]struct{}

	selfDestruct atomic.Bool
	closed       atomic.Bool
	refs         atomic.Int64

	lock    *flock.Flock
	tempDir string

	log mlog.Logger
}

// Landfill is a directory-scoped collection of mapped files sharing one
// lock and lifecycle, as described by spec.md §4.A. A Landfill value is a
// (shared state, name prefix) pair: Branch and Substructure clone the
// handle with an extended prefix without touching the filesystem.
type Landfill struct {
	state  *landfillState
	prefix string
}

// Open opens or creates a Landfill rooted at path. It fails with ErrLocked
// if another live handle already holds the directory.
func Open(path string) (*Landfill, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}

	log := mlog.New("landfill", abs)

	fl := flock.New(filepath.Join(abs, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("landfill: acquire lock: %w", err)
	}
	if !ok {
		log.Warn("landfill: directory already locked by another handle", "path", abs)
		return nil, ErrLocked
	}

	st := &landfillState{
		root:    abs,
		claimed: make(map[string]struct{}),
		lock:    fl,
		log:     log,
	}
	st.refs.Store(1)
	return &Landfill{state: st}, nil
}

// Ephemeral allocates a temporary directory whose lifetime is tied to the
// returned Landfill: it self-destructs (directory and all its contents are
// removed) when the last handle closes.
func Ephemeral() (*Landfill, error) {
	dir, err := os.MkdirTemp("", "landfill-")
	if err != nil {
		return nil, err
	}
	lf, err := Open(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	lf.state.tempDir = dir
	lf.state.selfDestruct.Store(true)
	return lf, nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// Branch returns a clone of lf sharing the same underlying handle, with its
// name prefix extended by name. It does not touch the filesystem, and
// takes one additional strong reference on the shared state: the returned
// Landfill must be closed independently of lf.
func (lf *Landfill) Branch(name string) *Landfill {
	lf.state.refs.Add(1)
	return &Landfill{state: lf.state, prefix: join(lf.prefix, name)}
}

// Substructure branches under name and registers the resulting full prefix
// as claimed, so that two substructures resolving to the same base path
// fail the second time with ErrDuplicateClaim. Components compose this
// the way core/rawdb/freezer_table.go composes its offsets/data files
// under one shared name.
func (lf *Landfill) Substructure(name string) (*Landfill, error) {
	branched := lf.Branch(name)
	if !lf.state.tryClaim(branched.prefix) {
		branched.Close()
		return nil, ErrDuplicateClaim
	}
	return branched, nil
}

func (st *landfillState) tryClaim(name string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.claimed[name]; ok {
		return false
	}
	st.claimed[name] = struct{}{}
	return true
}

// MapFileCreate claims the full name "<prefix>_<name>" and opens-or-creates
// a file of the given size, memory-mapped read/write. If the name is
// already claimed it fails soft, returning (nil, nil) rather than an
// error — the caller (typically a lazily-initializing lane) is expected to
// treat that as "someone else is creating this," per spec.md §4.B's
// claim-then-install race discipline.
func (lf *Landfill) MapFileCreate(name string, size int64) (*mappedFile, error) {
	if lf.state.closed.Load() {
		return nil, ErrClosed
	}
	full := join(lf.prefix, name)
	if !lf.state.tryClaim(full) {
		return nil, nil
	}
	mf, err := createMapped(filepath.Join(lf.state.root, full), size)
	if err != nil {
		return nil, fmt.Errorf("landfill: map_file_create %s: %w", full, err)
	}
	return mf, nil
}

// MapFileExisting claims the full name and maps the file at the given
// size if it exists. It returns (nil, nil) if the name was already
// claimed, or if no such file exists on disk; in the latter case the claim
// is released again, so a later MapFileCreate of the same name succeeds.
func (lf *Landfill) MapFileExisting(name string, size int64) (*mappedFile, error) {
	if lf.state.closed.Load() {
		return nil, ErrClosed
	}
	full := join(lf.prefix, name)
	if !lf.state.tryClaim(full) {
		return nil, nil
	}
	path := filepath.Join(lf.state.root, full)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			lf.state.mu.Lock()
			delete(lf.state.claimed, full)
			lf.state.mu.Unlock()
			return nil, nil
		}
		return nil, err
	}
	mf, err := openExistingMapped(path, size)
	if err != nil {
		return nil, fmt.Errorf("landfill: map_file_existing %s: %w", full, err)
	}
	return mf, nil
}

// GetStaticOrInit returns the bytes of a small, fixed-size static blob: if
// "<prefix>_<name>" already exists on disk its contents are returned
// as-is (and must be exactly len(init()) bytes); otherwise init is
// invoked, its result is persisted byte-for-byte, and returned.
func (lf *Landfill) GetStaticOrInit(name string, init func() []byte) ([]byte, error) {
	full := join(lf.prefix, name)
	path := filepath.Join(lf.state.root, full)

	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	buf := init()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return nil, fmt.Errorf("landfill: get_static_or_init %s: %w", full, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		// Someone may have raced us to create the file first; fall back to
		// reading whatever is there now.
		if data, rerr := os.ReadFile(path); rerr == nil {
			return data, nil
		}
		return nil, fmt.Errorf("landfill: get_static_or_init %s: %w", full, err)
	}
	return buf, nil
}

// InitiateSelfDestruct marks the arena for recursive deletion when the
// last handle closes.
func (lf *Landfill) InitiateSelfDestruct() {
	lf.state.selfDestruct.Store(true)
}

// Root returns the arena's root directory, for diagnostic use.
func (lf *Landfill) Root() string { return lf.state.root }

// Prefix returns this handle's name prefix.
func (lf *Landfill) Prefix() string { return lf.prefix }

// Close releases this handle's strong reference. On the last reference it
// removes the lock file and, if self-destruct was requested, recursively
// removes the whole directory.
func (lf *Landfill) Close() error {
	if lf.state.refs.Add(-1) > 0 {
		return nil
	}
	lf.state.closed.Store(true)

	var firstErr error
	if lf.state.lock != nil {
		if err := lf.state.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
		os.Remove(filepath.Join(lf.state.root, lockFileName))
	}
	if lf.state.selfDestruct.Load() {
		if err := os.RemoveAll(lf.state.root); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
