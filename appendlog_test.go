package landfill

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAppendAndRead is scenario S1: ephemeral append-only log, two writes,
// each readable back at its recorded offset.
func TestAppendAndRead(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	ao, err := NewAppendLog(lf)
	require.NoError(t, err)
	defer ao.Close()

	r0, err := ao.Write([]byte("hello word"), 1)
	require.NoError(t, err)
	r1, err := ao.Write([]byte("hello world!"), 1)
	require.NoError(t, err)

	got0, ok := ao.Get(r0, uint64(len("hello word")))
	require.True(t, ok)
	require.Equal(t, "hello word", string(got0))

	got1, ok := ao.Get(r1, uint64(len("hello world!")))
	require.True(t, ok)
	require.Equal(t, "hello world!", string(got1))
}

// TestAppendPersistsAcrossReopen is scenario S2: messages written before a
// close must read back byte-for-byte after reopening, including with a
// tiny INIT that forces many lane files.
func TestAppendPersistsAcrossReopen(t *testing.T) {
	for _, init := range []uint64{DefaultInitLaneSize, 1} {
		init := init
		t.Run("", func(t *testing.T) {
			dir := t.TempDir()
			lf, err := Open(dir)
			require.NoError(t, err)

			msgA := []byte("message-a")
			msgB := []byte("message-b-longer")

			ao, err := NewAppendLog(lf, WithInitLaneSize(init))
			require.NoError(t, err)

			offA, err := ao.Write(msgA, 1)
			require.NoError(t, err)
			offB, err := ao.Write(msgB, 1)
			require.NoError(t, err)

			require.NoError(t, ao.Flush())
			require.NoError(t, ao.Close())
			require.NoError(t, lf.Close())

			lf2, err := Open(dir)
			require.NoError(t, err)
			defer lf2.Close()

			ao2, err := NewAppendLog(lf2, WithInitLaneSize(init))
			require.NoError(t, err)
			defer ao2.Close()

			gotA, ok := ao2.Get(offA, uint64(len(msgA)))
			require.True(t, ok)
			require.Equal(t, msgA, gotA)

			gotB, ok := ao2.Get(offB, uint64(len(msgB)))
			require.True(t, ok)
			require.Equal(t, msgB, gotB)
		})
	}
}

func TestAppendLogRecordsNeverCrossLanes(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	ao, err := NewAppendLog(lf, WithInitLaneSize(32))
	require.NoError(t, err)
	defer ao.Close()

	for i := 0; i < 50; i++ {
		off, err := ao.Write([]byte("0123456789"), 1)
		require.NoError(t, err)

		lane, inner := laneOf(off, 32)
		require.LessOrEqual(t, inner+10, laneSize(lane, 32))
	}
}
