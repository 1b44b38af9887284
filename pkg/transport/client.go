package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"

	"github.com/dd0wney/qroute/pkg/routing"
)

// ErrRemote wraps errors reported by the server.
var ErrRemote = errors.New("transport: remote error")

// StepResult is the reply to a step.
type StepResult struct {
	Observation routing.Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        routing.Info
}

// Client drives a remote environment. It is not safe for concurrent use.
type Client struct {
	sock mangos.Socket
}

// Dial connects to a server at addr. timeout bounds every round trip; zero
// waits forever.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create REQ socket: %w", err)
	}
	if timeout > 0 {
		if err := sock.SetOption(mangos.OptionRecvDeadline, timeout); err != nil {
			sock.Close()
			return nil, err
		}
		if err := sock.SetOption(mangos.OptionSendDeadline, timeout); err != nil {
			sock.Close()
			return nil, err
		}
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{sock: sock}, nil
}

// Close closes the socket.
func (c *Client) Close() error {
	return c.sock.Close()
}

func (c *Client) call(r Request) (Response, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return Response{}, err
	}
	if err := c.sock.Send(data); err != nil {
		return Response{}, fmt.Errorf("%s: send: %w", r.Op, err)
	}
	reply, err := c.sock.Recv()
	if err != nil {
		return Response{}, fmt.Errorf("%s: receive: %w", r.Op, err)
	}

	var resp Response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return Response{}, fmt.Errorf("%s: malformed reply: %w", r.Op, err)
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("%w: %s: %s", ErrRemote, r.Op, resp.Error)
	}
	return resp, nil
}

// Reset starts a new episode on the server.
func (c *Client) Reset() (routing.Observation, routing.Info, error) {
	resp, err := c.call(Request{Op: OpReset})
	if err != nil {
		return routing.Observation{}, routing.Info{}, err
	}
	return deref(resp.Observation), deref(resp.Info), nil
}

// Step applies an action.
func (c *Client) Step(action int) (StepResult, error) {
	resp, err := c.call(Request{Op: OpStep, Action: action})
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{
		Observation: deref(resp.Observation),
		Reward:      resp.Reward,
		Terminated:  resp.Terminated,
		Truncated:   resp.Truncated,
		Info:        deref(resp.Info),
	}, nil
}

func (c *Client) ActionMask() ([]bool, error) {
	resp, err := c.call(Request{Op: OpMask})
	return resp.Mask, err
}

func (c *Client) Spec() (routing.Spec, error) {
	resp, err := c.call(Request{Op: OpSpec})
	if err != nil {
		return routing.Spec{}, err
	}
	return deref(resp.Spec), nil
}

func (c *Client) Calibrate(rates []float64) error {
	_, err := c.call(Request{Op: OpCalibrate, Rates: rates})
	return err
}

// SetCircuit replaces the remote circuit with an OpenQASM 2.0 program.
func (c *Client) SetCircuit(qasm string) error {
	_, err := c.call(Request{Op: OpCircuit, QASM: qasm})
	return err
}

// Routed returns the routed circuit as OpenQASM 2.0 and the current
// node-to-qubit mapping.
func (c *Client) Routed() (string, []int, error) {
	resp, err := c.call(Request{Op: OpRouted})
	return resp.Routed, resp.NodeToQubit, err
}

// Snapshot returns the remote episode state.
func (c *Client) Snapshot() ([]byte, error) {
	resp, err := c.call(Request{Op: OpSnapshot})
	return resp.Snapshot, err
}

// Restore loads a snapshot into the remote environment.
func (c *Client) Restore(data []byte) error {
	_, err := c.call(Request{Op: OpRestore, Snapshot: data})
	return err
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
