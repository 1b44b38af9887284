package routing

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/golang/snappy"

	"github.com/dd0wney/qroute/pkg/circuit"
	"github.com/dd0wney/qroute/pkg/logging"
)

// snapshot is the mutable episode state of an environment. The circuit,
// topology and calibration are not part of it: a snapshot is restored into
// an environment configured the same way as its source.
type snapshot struct {
	Variant     string         `json:"variant"`
	NumNodes    int            `json:"num_nodes"`
	NumOps      int            `json:"num_ops"`
	NodeToQubit []int          `json:"node_to_qubit"`
	Removed     []bool         `json:"removed"`
	Routed      []circuit.Gate `json:"routed"`
	Locks       []int          `json:"locks,omitempty"`
	BlockedSwap int            `json:"blocked_swap"`

	EpisodeID     string  `json:"episode_id"`
	Steps         int     `json:"steps"`
	EpisodeReward float64 `json:"episode_reward"`
	Swaps         int     `json:"swaps"`
	Bridges       int     `json:"bridges"`
}

type snapshotter interface {
	snapshot() snapshot
	restore(snapshot) error
}

var (
	_ snapshotter = (*Sequential)(nil)
	_ snapshotter = (*Layered)(nil)
)

// MarshalSnapshot encodes the episode state of env as snappy-compressed
// JSON.
func MarshalSnapshot(env Env) ([]byte, error) {
	s, ok := env.(snapshotter)
	if !ok {
		return nil, NewError("snapshot").Context("%T", env).Cause(errors.ErrUnsupported).Err()
	}
	raw, err := json.Marshal(s.snapshot())
	if err != nil {
		return nil, NewError("snapshot").Cause(err).Err()
	}
	return snappy.Encode(nil, raw), nil
}

// RestoreSnapshot overwrites the episode state of env with data produced by
// MarshalSnapshot. env is left unchanged on error.
func RestoreSnapshot(env Env, data []byte) error {
	s, ok := env.(snapshotter)
	if !ok {
		return NewError("restore").Context("%T", env).Cause(errors.ErrUnsupported).Err()
	}
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return NewError("restore").Context("decompress").Cause(err).Err()
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return NewError("restore").Context("decode").Cause(err).Err()
	}
	return s.restore(snap)
}

func (c *core) snapshot() snapshot {
	return snapshot{
		Variant:       c.variant,
		NumNodes:      c.graph.NumNodes(),
		NumOps:        c.dag.NumOps(),
		NodeToQubit:   slices.Clone(c.nodeToQubit),
		Removed:       c.dag.RemovedMask(),
		Routed:        slices.Clone(c.routed),
		Locks:         slices.Clone(c.locks),
		BlockedSwap:   -1,
		EpisodeID:     c.episodeID,
		Steps:         c.steps,
		EpisodeReward: c.episodeReward,
		Swaps:         c.swaps,
		Bridges:       c.bridges,
	}
}

func (c *core) restore(snap snapshot) error {
	mismatch := func(field, format string, args ...any) error {
		return NewError("restore").Field(field).Context(format, args...).Cause(ErrSnapshotMismatch).Err()
	}

	switch {
	case snap.Variant != c.variant:
		return mismatch("variant", "snapshot of %s", snap.Variant)
	case snap.NumNodes != c.graph.NumNodes():
		return mismatch("num_nodes", "%d nodes, environment has %d", snap.NumNodes, c.graph.NumNodes())
	case snap.NumOps != c.base.NumOps():
		return mismatch("num_ops", "%d operations, circuit has %d", snap.NumOps, c.base.NumOps())
	case len(snap.NodeToQubit) != c.graph.NumNodes():
		return mismatch("node_to_qubit", "%d entries", len(snap.NodeToQubit))
	case c.locks != nil && len(snap.Locks) != len(c.locks),
		c.locks == nil && len(snap.Locks) != 0:
		return mismatch("locks", "%d entries", len(snap.Locks))
	}
	if err := checkPermutation(snap.NodeToQubit); err != nil {
		return NewError("restore").Field("node_to_qubit").Cause(errors.Join(ErrSnapshotMismatch, err)).Err()
	}

	dag := c.base.Clone()
	if err := dag.Restore(snap.Removed); err != nil {
		return NewError("restore").Field("removed").Cause(errors.Join(ErrSnapshotMismatch, err)).Err()
	}

	c.dag = dag
	c.comm = c.baseComm
	copy(c.nodeToQubit, snap.NodeToQubit)
	for node, q := range c.nodeToQubit {
		c.qubitToNode[q] = node
	}
	c.routed = slices.Clone(snap.Routed)
	if c.locks != nil {
		clear(c.locks)
		copy(c.locks, snap.Locks)
	}

	c.episodeID = snap.EpisodeID
	c.steps = snap.Steps
	c.episodeReward = snap.EpisodeReward
	c.swaps = snap.Swaps
	c.bridges = snap.Bridges
	c.logger.Debug("snapshot restored",
		logging.Episode(c.episodeID),
		logging.Step(c.steps))
	return nil
}

