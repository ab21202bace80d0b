package landfill

import "encoding/binary"

// Codec describes how to marshal a fixed-size value T to and from a byte
// buffer of exactly Size bytes. Journal and Array are generic over a user
// value type via a Codec rather than unsafe pointer casts, following
// core/rawdb/freezer_table.go's own marshalBinary/unmarshalBinary pattern
// on its fixed-size index struct, generalized to arbitrary T.
type Codec[T any] struct {
	Size   int
	Encode func(v T, buf []byte)
	Decode func(buf []byte) T
}

// Uint64Codec encodes a uint64 in little-endian, used for the writehead
// value every Append-Only Log's Journal stores.
var Uint64Codec = Codec[uint64]{
	Size:   8,
	Encode: func(v uint64, buf []byte) { binary.LittleEndian.PutUint64(buf, v) },
	Decode: func(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) },
}
