package landfill

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	tag   uint32
	value uint64
}

var recordCodec = Codec[record]{
	Size: 12,
	Encode: func(v record, buf []byte) {
		binary.LittleEndian.PutUint32(buf[0:4], v.tag)
		binary.LittleEndian.PutUint64(buf[4:12], v.value)
	},
	Decode: func(buf []byte) record {
		return record{
			tag:   binary.LittleEndian.Uint32(buf[0:4]),
			value: binary.LittleEndian.Uint64(buf[4:12]),
		}
	},
}

func TestArrayGetOnUninitializedSlotReturnsFalse(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	arr, err := NewArray(lf, recordCodec)
	require.NoError(t, err)
	defer arr.Close()

	_, ok := arr.Get(5)
	require.False(t, ok)
}

func TestArrayWithMutThenGetRoundTrips(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	arr, err := NewArray(lf, recordCodec)
	require.NoError(t, err)
	defer arr.Close()

	err = arr.WithMut(42, func(r *record) {
		r.tag = 7
		r.value = 99
	})
	require.NoError(t, err)

	got, ok := arr.Get(42)
	require.True(t, ok)
	require.Equal(t, record{tag: 7, value: 99}, got)
}

func TestArrayWithMutSeesEmptyAsZeroValue(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	arr, err := NewArray(lf, recordCodec)
	require.NoError(t, err)
	defer arr.Close()

	err = arr.WithMut(3, func(r *record) {
		require.Equal(t, record{}, *r)
		r.tag = 1
	})
	require.NoError(t, err)
}

func TestArrayDifferentStripesDoNotSerialize(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	arr, err := NewArray(lf, recordCodec)
	require.NoError(t, err)
	defer arr.Close()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		arr.WithMut(1, func(r *record) {
			close(held)
			<-release
			r.tag = 1
		})
		close(done)
	}()
	<-held
	// Stripe 1's write lock is held; a write to index 0 (stripe 0) must
	// still complete.
	err = arr.WithMut(0, func(r *record) { r.tag = 2 })
	require.NoError(t, err)
	close(release)
	<-done
}
