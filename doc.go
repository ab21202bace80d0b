// Package landfill is an embedded library of persistent, on-disk data
// structures for building local, single-process stores of growing,
// immutable data: a directory-scoped arena of memory-mapped files
// (Landfill), a segmented byte address space over it (Arena), a
// crash-resilient checksummed journal (Journal), a per-arena keyed hash
// (Entropy), an append-only log and a random-access array built on the
// arena, and a probe-based hash index (SmashMap) built on the array.
//
// Data is written once and never moves. The integers the library itself
// persists (journal checksums, Uint64Codec values, the entropy seed) are
// little-endian on every machine; the byte layout of user records is
// whatever their Codec writes.
package landfill
