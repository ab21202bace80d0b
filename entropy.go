package landfill

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// entropySeedSize is the on-disk size of Entropy's persisted seed: four
// little-endian 64-bit words, per spec.md §6.
const entropySeedSize = 32

// Entropy is a once-generated, persisted-per-arena secret used to keyed-
// hash index probes so an adversary cannot craft colliding keys, per
// spec.md §4.D. It is backed by BLAKE2b in keyed mode (unlike the
// unkeyed Keccak/SHA3 hashing elsewhere in the go-ethereum family, BLAKE2b
// natively supports a key), seeded once via Landfill.GetStaticOrInit.
type Entropy struct {
	mu   sync.Mutex
	h    hash.Hash
	seed [4]uint64
}

// NewEntropy loads (or generates and persists) the per-arena seed named
// "entropy" under lf.
func NewEntropy(lf *Landfill) (*Entropy, error) {
	data, err := lf.GetStaticOrInit("entropy", generateSeed)
	if err != nil {
		return nil, err
	}
	if len(data) != entropySeedSize {
		return nil, fmt.Errorf("landfill: entropy file has %d bytes, want %d", len(data), entropySeedSize)
	}
	h, err := blake2b.New256(data)
	if err != nil {
		return nil, fmt.Errorf("landfill: init keyed hash: %w", err)
	}
	e := &Entropy{h: h}
	for i := range e.seed {
		e.seed[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return e, nil
}

func generateSeed() []byte {
	buf := make([]byte, entropySeedSize)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on a supported platform does not fail; a
		// failure here means the OS entropy source is unavailable, which
		// this library treats as unrecoverable rather than silently
		// falling back to a weaker source.
		panic(fmt.Sprintf("landfill: generate entropy seed: %v", err))
	}
	return buf
}

// Checksum computes the keyed hash H(seed, x), truncated to 64 bits.
func (e *Entropy) Checksum(x []byte) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.h.Reset()
	e.h.Write(x)
	sum := e.h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// Nonce returns a fresh random uint64, unrelated to the persisted seeds.
func (e *Entropy) Nonce() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("landfill: read nonce: %v", err))
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Tag returns a 32-bit per-arena fingerprint, Checksum(nil) truncated.
func (e *Entropy) Tag() uint32 {
	return uint32(e.Checksum(nil))
}
