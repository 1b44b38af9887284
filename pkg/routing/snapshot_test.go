package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/qroute/pkg/circuit"
)

func TestSnapshotRoundTrip(t *testing.T) {
	src := newSequential(t, farCNOT())
	src.Reset()
	src.Step(0)

	data, err := MarshalSnapshot(src)
	require.NoError(t, err)

	dst := newSequential(t, farCNOT())
	dst.Reset()
	require.NoError(t, RestoreSnapshot(dst, data))

	assert.Equal(t, src.ActionMask(), dst.ActionMask(), "the blocked swap travels with the snapshot")
	assert.Equal(t, gateStrings(src.RoutedCircuit()), gateStrings(dst.RoutedCircuit()))

	a, _ := src.Mapping()
	b, _ := dst.Mapping()
	assert.Equal(t, a, b)

	_, r1, t1, _, i1 := src.Step(3)
	_, r2, t2, _, i2 := dst.Step(3)
	assert.Equal(t, r1, r2)
	assert.Equal(t, t1, t2)
	assert.Equal(t, i1.EpisodeID, i2.EpisodeID)
	assert.Equal(t, i1.Step, i2.Step)
}

func TestLayeredSnapshotKeepsLocks(t *testing.T) {
	src := newLayered(t, farCNOT())
	src.Reset()
	src.Step(0)

	data, err := MarshalSnapshot(src)
	require.NoError(t, err)

	dst := newLayered(t, farCNOT())
	require.NoError(t, RestoreSnapshot(dst, data))
	assert.Equal(t, []int{1, 1, 0, 0, 0}, dst.Locks())
}

func TestRestoreRejectsMismatch(t *testing.T) {
	src := newSequential(t, farCNOT())
	src.Reset()
	data, err := MarshalSnapshot(src)
	require.NoError(t, err)

	layered := newLayered(t, farCNOT())
	assert.ErrorIs(t, RestoreSnapshot(layered, data), ErrSnapshotMismatch)

	other := newSequential(t, circuit.New(5).MustAppend(
		circuit.NewGate("cx", 0, 4),
		circuit.NewGate("h", 1),
	))
	assert.ErrorIs(t, RestoreSnapshot(other, data), ErrSnapshotMismatch)

	assert.Error(t, RestoreSnapshot(src, []byte("not snappy")))
}
