package landfill

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// mappedFile is a handle to one file memory-mapped read/write for its
// entire length. It owns both the file descriptor and the mapping; the
// length is fixed at map time for the mapping's lifetime, mirroring
// core/rawdb/freezer_table.go's one-os.File-per-data-file ownership, but
// mapped instead of accessed through ReadAt/WriteAt/Pwrite.
type mappedFile struct {
	f    *os.File
	mm   mmap.MMap
	size int64
}

// createMapped opens-or-creates path, sets its length to size, and maps it
// read/write.
func createMapped(path string, size int64) (*mappedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return mapOpenFile(f, size)
}

// openExistingMapped maps an already-existing file at the given size.
// The caller is responsible for knowing the file's true length; size is
// not checked against the file's actual length.
func openExistingMapped(path string, size int64) (*mappedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return mapOpenFile(f, size)
}

func mapOpenFile(f *os.File, size int64) (*mappedFile, error) {
	mm, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &mappedFile{f: f, mm: mm, size: size}, nil
}

// Bytes returns the full mapped region. Slices of it remain valid for as
// long as the mappedFile is not closed.
func (m *mappedFile) Bytes() []byte { return m.mm }

// Flush pushes the mapping's dirty pages out to disk (msync).
func (m *mappedFile) Flush() error { return m.mm.Flush() }

// Close unmaps and closes the underlying file.
func (m *mappedFile) Close() error {
	errUnmap := m.mm.Unmap()
	errClose := m.f.Close()
	if errUnmap != nil {
		return errUnmap
	}
	return errClose
}
