// Package client implements qworker's client-side dispatch: look up a
// live worker through the registry, serialize a handler call, transmit
// it over TCP, and decode the reply. A Client performs no retries across
// workers; a connect or decode failure surfaces as an error to the
// caller, per spec.md's client contract.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/qworkerhq/qworker/internal/codec"
	"github.com/qworkerhq/qworker/pkg/registry"
)

// ErrNoWorkers is returned by Run/SelectWorker when the registry
// currently lists no live workers.
var ErrNoWorkers = fmt.Errorf("client: no workers available")

// RemoteError wraps a handler failure that round-tripped as an
// exception-typed reply, re-raising it into the caller's error chain the
// way spec.md's client decoder is required to.
type RemoteError struct {
	Type    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Client dispatches calls to qworker workers discovered through a
// registry.Client. DialTimeout bounds each TCP connect attempt.
type Client struct {
	registry    *registry.Client
	DialTimeout time.Duration

	rr uint64 // round-robin cursor over the last GetServers snapshot
}

// New builds a Client that looks up workers through reg.
func New(reg *registry.Client) *Client {
	return &Client{registry: reg, DialTimeout: 5 * time.Second}
}

// GetServers returns the registry's current worker snapshot.
func (c *Client) GetServers() ([]registry.Entry, error) {
	return c.registry.List()
}

// SelectWorker returns the "host:port" address of some live worker,
// chosen round-robin across the current registry snapshot. The design
// requires only that some live worker is chosen, not a specific policy.
func (c *Client) SelectWorker() (string, error) {
	entries, err := c.GetServers()
	if err != nil {
		return "", fmt.Errorf("client: list workers: %w", err)
	}
	if len(entries) == 0 {
		return "", ErrNoWorkers
	}

	idx := int(atomic.AddUint64(&c.rr, 1)-1) % len(entries)
	for _, pair := range entries[idx] {
		addr := fmt.Sprint(pair[0])
		port := toInt(pair[1])
		return fmt.Sprintf("%s:%d", addr, port), nil
	}
	return "", ErrNoWorkers
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

// Run dispatches handlerID with args/kwargs to addr (or, if addr is
// empty, to a worker chosen by SelectWorker). queued selects the
// background-queue path over immediate execution. The decoded result is
// returned as v; a returned *RemoteError means the handler itself failed.
func (c *Client) Run(ctx context.Context, addr, handlerID string, args []any, kwargs map[string]any, queued bool) (any, error) {
	if addr == "" {
		selected, err := c.SelectWorker()
		if err != nil {
			return nil, err
		}
		addr = selected
	}

	req, err := buildRequest(handlerID, args, kwargs, queued)
	if err != nil {
		return nil, err
	}

	body, err := codec.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}

	replyBytes, err := c.roundTrip(ctx, addr, body)
	if err != nil {
		return nil, err
	}

	rep, err := codec.DecodeReply(replyBytes)
	if err != nil {
		return nil, fmt.Errorf("client: decode reply: %w", err)
	}

	return decodeReply(rep)
}

func buildRequest(handlerID string, args []any, kwargs map[string]any, queued bool) (*codec.Request, error) {
	rawArgs := make([]json.RawMessage, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("client: encode arg %d: %w", i, err)
		}
		rawArgs[i] = b
	}

	var rawKwargs map[string]json.RawMessage
	if len(kwargs) > 0 {
		rawKwargs = make(map[string]json.RawMessage, len(kwargs))
		for k, v := range kwargs {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("client: encode kwarg %q: %w", k, err)
			}
			rawKwargs[k] = b
		}
	}

	return &codec.Request{
		Kind:      "queue",
		HandlerID: handlerID,
		Args:      rawArgs,
		Kwargs:    rawKwargs,
		Queued:    queued,
	}, nil
}

func decodeReply(rep *codec.Reply) (any, error) {
	switch rep.Kind {
	case codec.KindValue:
		var v any
		if len(rep.Value) > 0 {
			if err := json.Unmarshal(rep.Value, &v); err != nil {
				return nil, fmt.Errorf("client: decode value: %w", err)
			}
		}
		return v, nil

	case codec.KindException:
		if rep.Exception == nil {
			return nil, fmt.Errorf("client: exception reply missing detail")
		}
		return nil, &RemoteError{Type: rep.Exception.Type, Message: rep.Exception.Message}

	case codec.KindQueued:
		return rep.Message, nil

	case codec.KindError:
		return nil, fmt.Errorf("client: %s", rep.Error)

	case codec.KindStatus:
		var v any
		if err := json.Unmarshal(rep.Status, &v); err != nil {
			return nil, fmt.Errorf("client: decode status: %w", err)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("client: unrecognized reply kind %q", rep.Kind)
	}
}

// Health sends the "health" control string to addr and returns the
// decoded JSON status object. A health probe never raises on valid
// decode, per spec.md's error-handling design.
func (c *Client) Health(ctx context.Context, addr string) (map[string]any, error) {
	raw, err := c.roundTrip(ctx, addr, []byte("health"))
	if err != nil {
		return nil, err
	}

	var status map[string]any
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("client: decode health status: %w", err)
	}
	return status, nil
}

// roundTrip dials addr, writes payload, half-closes the write side, and
// reads until the worker half-closes in turn.
func (c *Client) roundTrip(ctx context.Context, addr string, payload []byte) ([]byte, error) {
	dialer := net.Dialer{Timeout: c.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("client: write: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			return nil, fmt.Errorf("client: half-close: %w", err)
		}
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("client: read: %w", err)
	}
	return reply, nil
}
