package landfill

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLaneOfMatchesIterativeDecomposition checks the closed-form laneOf
// against a naive iterative decomposition (walk lane boundaries one at a
// time) across several INIT values, per spec.md §3's invariant that the
// two must agree. This mirrors src/diskbytes/raw.rs's test_lane_math,
// which sweeps the same INIT ∈ {1, 17, 32, 1024} set over offsets
// 0..1024*1024 against lane_and_ofs_slow_but_obviously_correct.
func TestLaneOfMatchesIterativeDecomposition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping exhaustive lane-math sweep in short mode")
	}
	for _, init := range []uint64{1, 17, 32, 1024} {
		init := init
		t.Run("", func(t *testing.T) {
			wantLane, start := 0, uint64(0)
			for offset := uint64(0); offset < 1024*1024; offset++ {
				for start+laneSize(wantLane, init) <= offset {
					start += laneSize(wantLane, init)
					wantLane++
				}
				wantInner := offset - start

				gotLane, gotInner := laneOf(offset, init)
				require.Equal(t, wantLane, gotLane, "init=%d offset=%d", init, offset)
				require.Equal(t, wantInner, gotInner, "init=%d offset=%d", init, offset)
			}
		})
	}
}

func TestArenaFindSpaceForStaysWithinOneLane(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	a, err := NewArena(lf, WithInitLaneSize(16))
	require.NoError(t, err)
	defer a.Close()

	off, err := a.FindSpaceFor(10, 16, 1)
	require.NoError(t, err)

	lane, inner := laneOf(off, 16)
	require.LessOrEqual(t, inner+16, laneSize(lane, 16))
}

func TestArenaWriteThenRead(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	a, err := NewArena(lf, WithInitLaneSize(64))
	require.NoError(t, err)
	defer a.Close()

	off, err := a.FindSpaceFor(0, 5, 1)
	require.NoError(t, err)

	dst, err := a.RequestWrite(off, 5)
	require.NoError(t, err)
	copy(dst, []byte("hello"))
	require.NoError(t, a.Flush())

	got, ok := a.Read(off, 5)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), got)
}

func TestArenaReadUnmappedLaneReturnsFalse(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	a, err := NewArena(lf, WithInitLaneSize(64))
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.Read(1<<30, 8)
	require.False(t, ok)
}

func TestArenaCrossLaneWriteFails(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	a, err := NewArena(lf, WithInitLaneSize(16))
	require.NoError(t, err)
	defer a.Close()

	// Lane 0 spans [0, 16). A write starting at 10 with length 16 spills
	// past the lane boundary and must be rejected.
	_, err = a.RequestWrite(10, 16)
	require.ErrorIs(t, err, ErrCrossesLane)
}

func TestArenaConcurrentLaneCreationConverges(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	a, err := NewArena(lf, WithInitLaneSize(64))
	require.NoError(t, err)
	defer a.Close()

	type outcome struct {
		mf  *mappedFile
		err error
	}
	const n = 32
	results := make(chan outcome, n)
	for i := 0; i < n; i++ {
		go func() {
			mf, err := a.ensureLane(2)
			results <- outcome{mf, err}
		}()
	}
	var first *mappedFile
	for i := 0; i < n; i++ {
		o := <-results
		require.NoError(t, o.err)
		if first == nil {
			first = o.mf
		}
		require.Same(t, first, o.mf)
	}
}
