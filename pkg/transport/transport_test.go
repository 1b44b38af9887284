package transport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/qroute/pkg/circuit"
	"github.com/dd0wney/qroute/pkg/metrics"
	"github.com/dd0wney/qroute/pkg/routing"
	"github.com/dd0wney/qroute/pkg/topology"
)

const farCNOT = `OPENQASM 2.0;
include "qelib1.inc";
qreg q[5];
cx q[0],q[4];
`

func newEnv(t *testing.T) routing.Env {
	t.Helper()
	opts := routing.DefaultOptions()
	opts.Circuit = circuit.New(5).MustAppend(circuit.NewGate("cx", 0, 4))
	env, err := routing.NewSequential(topology.T(), opts)
	require.NoError(t, err)
	return env
}

func startServer(t *testing.T, env routing.Env, reg *metrics.Registry) *Client {
	t.Helper()
	addr := "inproc://qroute-" + uuid.New().String()

	srv := NewServer(env, nil, reg)
	require.NoError(t, srv.Listen(addr))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	client, err := Dial(addr, 5*time.Second)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		cancel()
		srv.Close()
		<-done
	})
	return client
}

func TestRemoteEpisode(t *testing.T) {
	reg := metrics.NewRegistry()
	client := startServer(t, newEnv(t), reg)

	spec, err := client.Spec()
	require.NoError(t, err)
	assert.Equal(t, 8, spec.NumActions)

	obs, info, err := client.Reset()
	require.NoError(t, err)
	assert.NotEmpty(t, info.EpisodeID)
	assert.Equal(t, []bool{true, false, false, true, false, false, false, false}, obs.ActionMask)

	res, err := client.Step(0)
	require.NoError(t, err)
	assert.Equal(t, -3.0, res.Reward)
	assert.False(t, res.Terminated)

	res, err = client.Step(3)
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Equal(t, 1, res.Info.ScheduledTwoQubit)
	assert.Equal(t, 2, res.Info.Swaps)

	routed, nodeToQubit, err := client.Routed()
	require.NoError(t, err)
	assert.Contains(t, routed, "swap q[0],q[1];\nswap q[3],q[4];\ncx q[1],q[3];\n")
	assert.Equal(t, []int{1, 0, 2, 4, 3}, nodeToQubit)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues(OpReset, "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues(OpStep, "ok")))
}

func TestRemoteErrors(t *testing.T) {
	reg := metrics.NewRegistry()
	client := startServer(t, newEnv(t), reg)
	_, _, err := client.Reset()
	require.NoError(t, err)

	_, err = client.Step(99)
	assert.ErrorIs(t, err, ErrRemote)
	assert.ErrorContains(t, err, "out of range")

	assert.ErrorIs(t, client.Calibrate([]float64{0.1}), ErrRemote)
	assert.ErrorIs(t, client.SetCircuit("qreg q[2];\ncx q[0],q[5];"), ErrRemote)

	_, err = client.call(Request{Op: "teleport"})
	assert.ErrorContains(t, err, `unknown op "teleport"`)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues(OpStep, "error")))

	mask, err := client.ActionMask()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false, true, false, false, false, false}, mask,
		"failed requests leave the environment alone")
}

func TestRemoteCircuitAndCalibration(t *testing.T) {
	client := startServer(t, newEnv(t), nil)

	require.NoError(t, client.SetCircuit(farCNOT))
	require.NoError(t, client.Calibrate([]float64{0, 0, 0, 0}))

	_, _, err := client.Reset()
	require.NoError(t, err)
	mask, err := client.ActionMask()
	require.NoError(t, err)
	assert.Len(t, mask, 8)
}

func TestRemoteSnapshotRestore(t *testing.T) {
	client := startServer(t, newEnv(t), nil)
	_, _, err := client.Reset()
	require.NoError(t, err)

	_, err = client.Step(0)
	require.NoError(t, err)
	saved, err := client.Snapshot()
	require.NoError(t, err)
	before, err := client.ActionMask()
	require.NoError(t, err)

	res, err := client.Step(3)
	require.NoError(t, err)
	require.True(t, res.Terminated)

	require.NoError(t, client.Restore(saved))
	after, err := client.ActionMask()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	assert.ErrorIs(t, client.Restore([]byte("garbage")), ErrRemote)
}

func TestHandleMalformedMessage(t *testing.T) {
	reg := metrics.NewRegistry()
	srv := NewServer(newEnv(t), nil, reg)

	reply := srv.handleMessage([]byte("{"))
	assert.Contains(t, string(reply), "malformed request")
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("invalid", "error")))

	srv.handleMessage([]byte(`{"op":"mask"}`))
	stats := srv.Stats()
	assert.False(t, stats.Listening)
	assert.Equal(t, uint64(2), stats.Served)
	assert.Equal(t, uint64(1), stats.Failed)
}

func TestServeBeforeListen(t *testing.T) {
	srv := NewServer(newEnv(t), nil, nil)
	assert.Error(t, srv.Serve(context.Background()))

	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Listen("inproc://closed"), ErrServerClosed)
	assert.False(t, srv.Stats().Listening)
}

func TestCircuitThenStepBeforeReset(t *testing.T) {
	opts := routing.DefaultOptions()
	opts.Circuit = circuit.New(5).MustAppend(
		circuit.NewGate("cx", 0, 4),
		circuit.NewGate("cx", 0, 3),
		circuit.NewGate("cx", 0, 2),
	)
	env, err := routing.NewSequential(topology.T(), opts)
	require.NoError(t, err)
	srv := NewServer(env, nil, nil)

	require.Empty(t, srv.Handle(Request{Op: OpReset}).Error)
	require.Empty(t, srv.Handle(Request{Op: OpCircuit, QASM: "qreg q[1];\nh q[0];"}).Error)

	var resp Response
	require.NotPanics(t, func() { resp = srv.Handle(Request{Op: OpStep, Action: 1}) })
	assert.Empty(t, resp.Error)
	assert.False(t, resp.Terminated, "the running episode keeps its circuit")

	resp = srv.Handle(Request{Op: OpReset})
	assert.Empty(t, resp.Error)
	routed := srv.Handle(Request{Op: OpRouted}).Routed
	assert.True(t, strings.HasSuffix(routed, "qreg q[5];\nh q[0];\n"), routed)
}
