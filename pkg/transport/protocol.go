// Package transport serves a routing environment over a nanomsg REQ/REP
// socket so that a driver in another process can step it.
package transport

import (
	"github.com/dd0wney/qroute/pkg/routing"
)

// Operations understood by the server.
const (
	OpReset     = "reset"
	OpStep      = "step"
	OpMask      = "mask"
	OpSpec      = "spec"
	OpCalibrate = "calibrate"
	OpRouted    = "routed"
	OpCircuit   = "circuit"
	OpSnapshot  = "snapshot"
	OpRestore   = "restore"
)

// Request is one JSON message sent by a client.
type Request struct {
	Op     string    `json:"op"`
	Action int       `json:"action,omitempty"`
	Rates  []float64 `json:"rates,omitempty"`
	// QASM carries the circuit for OpCircuit.
	QASM string `json:"qasm,omitempty"`
	// Snapshot carries the state for OpRestore.
	Snapshot []byte `json:"snapshot,omitempty"`
}

// Response is the server's reply. Error is set instead of the payload when
// the request failed.
type Response struct {
	Error string `json:"error,omitempty"`

	Observation *routing.Observation `json:"observation,omitempty"`
	Reward      float64              `json:"reward,omitempty"`
	Terminated  bool                 `json:"terminated,omitempty"`
	Truncated   bool                 `json:"truncated,omitempty"`
	Info        *routing.Info        `json:"info,omitempty"`

	Mask []bool        `json:"mask,omitempty"`
	Spec *routing.Spec `json:"spec,omitempty"`

	// Routed is the routed circuit as OpenQASM 2.0.
	Routed      string `json:"routed,omitempty"`
	NodeToQubit []int  `json:"node_to_qubit,omitempty"`

	Snapshot []byte `json:"snapshot,omitempty"`
}
