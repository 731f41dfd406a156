// Package worker implements qworker's TCP worker server: one listener,
// one bounded queue (pkg/queue), a fixed consumer pool, and an
// immediate-mode runner, wired to the registry and discovery
// collaborators for registration/deregistration around the accept loop.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qworkerhq/qworker/internal/codec"
	"github.com/qworkerhq/qworker/internal/log"
	"github.com/qworkerhq/qworker/internal/metrics"
	"github.com/qworkerhq/qworker/pkg/discovery"
	"github.com/qworkerhq/qworker/pkg/envelope"
	"github.com/qworkerhq/qworker/pkg/handler"
	"github.com/qworkerhq/qworker/pkg/queue"
	"github.com/qworkerhq/qworker/pkg/registry"
)

type state int32

const (
	stateInit state = iota
	stateBound
	stateServing
	stateDraining
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateBound:
		return "bound"
	case stateServing:
		return "serving"
	case stateDraining:
		return "draining"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config configures a Server. Registry and Discovery are optional: a nil
// Registry skips registration entirely, and a nil Discovery falls back
// to announcing to DiscoveryHost/DiscoveryPort instead of co-locating.
type Config struct {
	Name  string // base name; the worker's identity becomes "<name>-<port>_<index>"
	Index int
	Host  string
	Port  int

	QueueCapacity int
	ConsumerCount int // defaults to QueueCapacity
	ImmediatePool int // defaults to 4

	Handlers      *handler.Registry
	DomainFactory envelope.DomainRunnerFactory

	Registry *registry.Client

	Discovery     *discovery.Responder // non-nil when this process owns the discovery socket
	DiscoveryHost string               // fallback announce target when Discovery is nil
	DiscoveryPort int
}

// Server is a single qworker worker process's TCP front end.
type Server struct {
	cfg  Config
	name string

	listener  net.Listener
	queue     *queue.Queue
	immediate *queue.ImmediateRunner

	state state
	mu    sync.Mutex // guards state transitions
	wg    sync.WaitGroup
	ready chan struct{} // closed once the listener is bound

	log zerolog.Logger
}

// NewServer builds a Server from cfg. The worker's identity name is
// derived as "<cfg.Name>-<cfg.Port>_<cfg.Index>", stable for the life of
// the process.
func NewServer(cfg Config) *Server {
	if cfg.ConsumerCount == 0 {
		cfg.ConsumerCount = cfg.QueueCapacity
	}
	if cfg.ImmediatePool == 0 {
		cfg.ImmediatePool = 4
	}
	if cfg.Handlers == nil {
		cfg.Handlers = handler.NewRegistry()
	}

	name := fmt.Sprintf("%s-%d_%d", cfg.Name, cfg.Port, cfg.Index)

	q := queue.New(name, cfg.QueueCapacity, cfg.Handlers, cfg.DomainFactory)
	imm := queue.NewImmediateRunner(cfg.ImmediatePool, cfg.Handlers, cfg.DomainFactory)

	return &Server{
		cfg:       cfg,
		name:      name,
		queue:     q,
		immediate: imm,
		state:     stateInit,
		ready:     make(chan struct{}),
		log:       log.WithWorker(name),
	}
}

// Ready returns a channel closed once the listener has bound, useful for
// callers that need the final Addr() before ListenAndServe's accept loop
// starts handling connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Name returns the worker's stable identity.
func (s *Server) Name() string { return s.name }

// Addr returns the bound listener address, valid once the server has
// reached the Bound state or later.
func (s *Server) Addr() string {
	if s.listener == nil {
		return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	}
	return s.listener.Addr().String()
}

func (s *Server) setState(next state) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// ListenAndServe binds the listener, starts the consumer pool, registers
// with the registry and discovery collaborators, then accepts
// connections until ctx is cancelled. On cancellation it deregisters,
// drains the queue, closes the listener, and waits for in-flight
// connections before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(ctx, "tcp4", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("worker: listen: %w", err)
	}
	s.listener = ln
	s.setState(stateBound)
	close(s.ready)

	s.queue.Start(ctx, s.cfg.ConsumerCount)

	addr := ln.Addr().(*net.TCPAddr)
	s.register(addr)
	metrics.RegisterComponent("worker", true, "serving")

	s.setState(stateServing)
	s.log.Info().Str("addr", s.Addr()).Msg("worker serving")

	acceptErr := make(chan error, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					acceptErr <- nil
				default:
					acceptErr <- err
				}
				return
			}
			metrics.ConnectionsTotal.Inc()
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handleConn(ctx, conn)
			}()
		}
	}()

	select {
	case err := <-acceptErr:
		s.shutdown(addr, nil)
		return err
	case <-ctx.Done():
		s.shutdown(addr, acceptErr)
		return nil
	}
}

func (s *Server) shutdown(addr *net.TCPAddr, acceptErr <-chan error) {
	s.setState(stateDraining)
	metrics.UpdateComponent("worker", false, "draining")
	s.deregister(addr)
	s.queue.Stop()
	_ = s.listener.Close()
	if acceptErr != nil {
		<-acceptErr
	}
	s.wg.Wait()
	s.setState(stateClosed)
	s.log.Info().Msg("worker closed")
}

func (s *Server) register(addr *net.TCPAddr) {
	if s.cfg.Registry != nil {
		if err := s.cfg.Registry.Push(s.name, addr.IP.String(), addr.Port); err != nil {
			s.log.Warn().Err(err).Msg("registry push failed")
		}
	}
	if s.cfg.Discovery != nil {
		s.cfg.Discovery.Register(s.name, addr.IP.String(), addr.Port)
		return
	}
	if s.cfg.DiscoveryHost != "" {
		ann := discovery.NewAnnouncement(s.name, addr.IP.String(), addr.Port)
		if err := discovery.Announce(s.cfg.DiscoveryHost, s.cfg.DiscoveryPort, ann); err != nil {
			s.log.Warn().Err(err).Msg("discovery announce failed")
		}
	}
}

func (s *Server) deregister(addr *net.TCPAddr) {
	if s.cfg.Registry != nil {
		if err := s.cfg.Registry.Remove(s.name, addr.IP.String(), addr.Port); err != nil {
			s.log.Warn().Err(err).Msg("registry remove failed")
		}
	}
	if s.cfg.Discovery != nil {
		s.cfg.Discovery.Deregister(s.name)
	}
}

// handleConn implements the per-connection protocol: read until the
// client half-closes, assign a fresh correlation id, decode, dispatch,
// write exactly one reply, half-close the write side, close.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	raw, err := io.ReadAll(conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("read failed")
		return
	}

	correlationID := uuid.New().String()
	connLog := log.WithCorrelationID(correlationID)

	reply := s.dispatch(ctx, raw, correlationID)

	body, err := json.Marshal(reply)
	if err != nil {
		connLog.Error().Err(err).Msg("failed to encode reply")
		return
	}
	if _, err := conn.Write(body); err != nil {
		connLog.Warn().Err(err).Msg("write failed")
		return
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
}

// dispatch decodes raw and returns the JSON-marshalable reply body: a
// raw status object for control requests, or a codec.Reply for
// everything else.
func (s *Server) dispatch(ctx context.Context, raw []byte, correlationID string) any {
	trimmed := bytes.TrimSpace(raw)

	if isControlString(trimmed) {
		return s.controlStatus(string(trimmed))
	}

	req, err := codec.DecodeRequest(trimmed)
	if err != nil {
		metrics.DecodeErrorsTotal.Inc()
		return decodeErrorReply()
	}

	env := envelope.FromRequest(req, correlationID)
	if !env.Valid() {
		metrics.DecodeErrorsTotal.Inc()
		return decodeErrorReply()
	}
	if env.Kind != envelope.KindPing && env.Domain == nil {
		if _, ok := s.cfg.Handlers.Lookup(env.HandlerID); !ok {
			metrics.DecodeErrorsTotal.Inc()
			return decodeErrorReply()
		}
	}

	item := queue.Item{
		CorrelationID: env.CorrelationID,
		HandlerID:     env.HandlerID,
		Args:          env.Args,
		Kwargs:        env.Kwargs,
		Domain:        env.Domain,
	}

	switch env.Kind {
	case envelope.KindPing:
		return map[string]string{"status": "pong"}

	case envelope.KindDomain:
		return s.enqueueOrReject(item)

	case envelope.KindQueue:
		if env.Queued {
			return s.enqueueOrReject(item)
		}
		return s.runImmediate(ctx, item)

	case envelope.KindFunc:
		return s.enqueueOrReject(item)

	default:
		metrics.DecodeErrorsTotal.Inc()
		return decodeErrorReply()
	}
}

func (s *Server) enqueueOrReject(item queue.Item) *codec.Reply {
	if err := s.queue.Enqueue(item); err != nil {
		return codec.ErrorReply(fmt.Sprintf("Worker %s Queue is Full, discarding Task %#v", s.name, item))
	}
	return codec.QueuedReply(fmt.Sprintf("Task %s was queued.", item.CorrelationID))
}

func (s *Server) runImmediate(ctx context.Context, item queue.Item) *codec.Reply {
	result, err := s.immediate.Run(ctx, item)
	return queue.ResultToReply(result, err)
}

func decodeErrorReply() *codec.Reply {
	return &codec.Reply{
		Kind: codec.KindException,
		Exception: &codec.ExceptionValue{
			Type:    "DecodeError",
			Message: codec.ErrNoValidFunction,
		},
	}
}

// isControlString reports whether b should be treated as a liveness
// probe rather than a JSON-encoded envelope: every encoded Request
// marshals to a JSON object, so anything not starting with '{' (including
// an empty body) is control text per spec's "control string" variant.
func isControlString(b []byte) bool {
	return len(b) == 0 || b[0] != '{'
}

type queueStatus struct {
	Size      int  `json:"size"`
	Full      bool `json:"full"`
	Empty     bool `json:"empty"`
	Consumers int  `json:"consumers"`
}

type workerStatus struct {
	Name             string   `json:"name"`
	ServingAddresses []string `json:"serving_addresses"`
}

type healthStatus struct {
	Queue  queueStatus  `json:"queue"`
	Worker workerStatus `json:"worker"`
}

func (s *Server) controlStatus(text string) any {
	if text != "health" {
		return map[string]string{"status": "pong"}
	}
	return healthStatus{
		Queue: queueStatus{
			Size:      s.queue.Len(),
			Full:      s.queue.Full(),
			Empty:     s.queue.Empty(),
			Consumers: s.queue.ConsumersBusy(),
		},
		Worker: workerStatus{
			Name:             s.name,
			ServingAddresses: []string{s.Addr()},
		},
	}
}
