package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/qroute/pkg/circuit"
	"github.com/dd0wney/qroute/pkg/logging"
	"github.com/dd0wney/qroute/pkg/metrics"
	"github.com/dd0wney/qroute/pkg/routing"
)

// pollInterval bounds how long Serve blocks before rechecking its context.
const pollInterval = 100 * time.Millisecond

var ErrServerClosed = errors.New("transport: server closed")

// Server answers requests for a single environment. Requests are handled
// one at a time, so the environment needs no locking.
type Server struct {
	env     routing.Env
	logger  logging.Logger
	metrics *metrics.Registry

	mu     sync.Mutex
	sock   mangos.Socket
	closed bool

	served atomic.Uint64
	failed atomic.Uint64
}

// Stats is a snapshot of the server's request counters.
type Stats struct {
	Listening bool
	Served    uint64
	Failed    uint64
}

// Stats reports whether the socket is bound and how many requests were
// answered. It is safe to call from any goroutine.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	listening := s.sock != nil && !s.closed
	s.mu.Unlock()

	return Stats{
		Listening: listening,
		Served:    s.served.Load(),
		Failed:    s.failed.Load(),
	}
}

// NewServer creates a server for env. logger and reg may be nil.
func NewServer(env routing.Env, logger logging.Logger, reg *metrics.Registry) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Server{
		env:     env,
		logger:  logger.With(logging.Component("transport")),
		metrics: reg,
	}
}

// Listen binds a REP socket to addr, such as "tcp://127.0.0.1:40899" or
// "inproc://qroute".
func (s *Server) Listen(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.sock != nil {
		return fmt.Errorf("transport: already listening")
	}

	sock, err := rep.NewSocket()
	if err != nil {
		return fmt.Errorf("failed to create REP socket: %w", err)
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, pollInterval); err != nil {
		sock.Close()
		return fmt.Errorf("failed to set receive deadline: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return fmt.Errorf("failed to bind REP socket: %w", err)
	}

	s.sock = sock
	s.logger.Info("environment server listening", logging.String("address", addr))
	return nil
}

// Serve handles requests until ctx ends or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	sock := s.sock
	s.mu.Unlock()
	if sock == nil {
		return fmt.Errorf("transport: Serve called before Listen")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := sock.Recv()
		switch {
		case errors.Is(err, mangos.ErrRecvTimeout):
			continue
		case errors.Is(err, mangos.ErrClosed):
			return nil
		case err != nil:
			s.logger.Warn("receive failed", logging.Error(err))
			continue
		}

		reply := s.handleMessage(msg)
		if err := sock.Send(reply); err != nil {
			if errors.Is(err, mangos.ErrClosed) {
				return nil
			}
			s.logger.Warn("send failed", logging.Error(err))
		}
	}
}

// Close closes the socket and stops Serve.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.sock == nil {
		return nil
	}
	err := s.sock.Close()
	s.sock = nil
	return err
}

func (s *Server) handleMessage(msg []byte) []byte {
	start := time.Now()

	var req Request
	resp := Response{}
	if err := json.Unmarshal(msg, &req); err != nil {
		resp.Error = fmt.Sprintf("malformed request: %v", err)
		req.Op = "invalid"
	} else {
		resp = s.Handle(req)
	}

	s.served.Add(1)
	status := "ok"
	if resp.Error != "" {
		status = "error"
		s.failed.Add(1)
		s.logger.Debug("request failed", logging.String("op", req.Op), logging.String("error", resp.Error))
	}
	if s.metrics != nil {
		s.metrics.RecordRequest(req.Op, status, time.Since(start))
	}

	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(Response{Error: fmt.Sprintf("unencodable response: %v", err)})
	}
	return data
}

// Handle applies one request to the environment.
func (s *Server) Handle(req Request) Response {
	env := s.env

	switch req.Op {
	case OpReset:
		obs, info := env.Reset()
		return Response{Observation: &obs, Info: &info}

	case OpStep:
		if req.Action < 0 || req.Action >= env.NumActions() {
			return Response{Error: fmt.Sprintf("action %d out of range [0, %d)", req.Action, env.NumActions())}
		}
		obs, reward, terminated, truncated, info := env.Step(req.Action)
		return Response{
			Observation: &obs,
			Reward:      reward,
			Terminated:  terminated,
			Truncated:   truncated,
			Info:        &info,
		}

	case OpMask:
		return Response{Mask: env.ActionMask()}

	case OpSpec:
		spec := env.ObservationSpec()
		return Response{Spec: &spec}

	case OpCalibrate:
		if err := env.Calibrate(req.Rates); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{}

	case OpCircuit:
		c, err := circuit.ParseQASMString(req.QASM)
		if err != nil {
			return Response{Error: err.Error()}
		}
		if err := env.SetCircuit(c); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{}

	case OpRouted:
		nodeToQubit, _ := env.Mapping()
		return Response{Routed: env.RoutedCircuit().QASM(), NodeToQubit: nodeToQubit}

	case OpSnapshot:
		data, err := routing.MarshalSnapshot(env)
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Snapshot: data}

	case OpRestore:
		if err := routing.RestoreSnapshot(env, req.Snapshot); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Mask: env.ActionMask()}

	default:
		return Response{Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}
