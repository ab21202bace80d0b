package landfill

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntropyChecksumDeterministicPerInstance(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	e, err := NewEntropy(lf)
	require.NoError(t, err)

	a := e.Checksum([]byte("k1"))
	b := e.Checksum([]byte("k1"))
	require.Equal(t, a, b)

	c := e.Checksum([]byte("k2"))
	require.NotEqual(t, a, c)
}

func TestEntropySeedPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	lf, err := Open(dir)
	require.NoError(t, err)

	e1, err := NewEntropy(lf)
	require.NoError(t, err)
	sum1 := e1.Checksum([]byte("same-key"))
	require.NoError(t, lf.Close())

	lf2, err := Open(dir)
	require.NoError(t, err)
	defer lf2.Close()

	e2, err := NewEntropy(lf2)
	require.NoError(t, err)
	sum2 := e2.Checksum([]byte("same-key"))

	require.Equal(t, sum1, sum2)
}

func TestEntropyNonceVaries(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	e, err := NewEntropy(lf)
	require.NoError(t, err)

	n1 := e.Nonce()
	n2 := e.Nonce()
	require.NotEqual(t, n1, n2)
}

func TestEntropyTagIsChecksumOfEmptyTruncated(t *testing.T) {
	lf, err := Ephemeral()
	require.NoError(t, err)
	defer lf.Close()

	e, err := NewEntropy(lf)
	require.NoError(t, err)

	require.Equal(t, uint32(e.Checksum(nil)), e.Tag())
}
