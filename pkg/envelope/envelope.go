// Package envelope holds qworker's task-envelope types: the tagged
// payload a client sends on a single connection and the three-phase
// protocol a domain task runs through when it is resolved by an
// external task-runner collaborator rather than by the handler registry.
package envelope

import (
	"context"
	"encoding/json"

	"github.com/qworkerhq/qworker/internal/codec"
)

// Kind discriminates which variant an Envelope carries.
type Kind string

const (
	KindPing   Kind = "ping"
	KindFunc   Kind = "func"
	KindQueue  Kind = "queue"
	KindDomain Kind = "domain"
)

// Envelope is the single in-process representation a worker dispatches
// on, built from a decoded codec.Request plus the correlation id the
// server assigns before dispatch (invariant: every dispatched envelope
// carries a fresh id).
type Envelope struct {
	Kind          Kind
	HandlerID     string
	Args          []json.RawMessage
	Kwargs        map[string]json.RawMessage
	Debug         bool
	Queued        bool
	Domain        *codec.DomainTask
	CorrelationID string
}

// FromRequest classifies a decoded wire request into an Envelope. A
// recognized kind is kept; any other kind, including an empty one,
// becomes the empty Kind, which Valid rejects.
func FromRequest(req *codec.Request, correlationID string) *Envelope {
	kind := Kind(req.Kind)
	switch kind {
	case KindPing, KindFunc, KindQueue, KindDomain:
	default:
		kind = ""
	}

	return &Envelope{
		Kind:          kind,
		HandlerID:     req.HandlerID,
		Args:          req.Args,
		Kwargs:        req.Kwargs,
		Debug:         req.Debug,
		Queued:        req.Queued,
		Domain:        req.Domain,
		CorrelationID: correlationID,
	}
}

// Valid reports whether the envelope is one of the recognized kinds. An
// invalid envelope is the Go analogue of the source's unimplemented
// "non-Queue, non-string, non-None" branch, and is always rejected with
// a decode error rather than silently accepted.
func (e *Envelope) Valid() bool {
	switch e.Kind {
	case KindPing, KindFunc, KindQueue, KindDomain:
		return true
	default:
		return false
	}
}

// DomainRunner is the three-phase protocol a DomainTask is resolved
// through: Create may fail, in which case Run is skipped, Run executes
// the task body, and Close always runs on every exit path with its
// errors logged rather than surfaced. Domain tasks always go through the
// queue, so a Create or Run failure is logged by the consumer and does
// not reach the client; the client only sees the queued acknowledgement.
type DomainRunner interface {
	Create(ctx context.Context) error
	Run(ctx context.Context) (any, error)
	Close(ctx context.Context) error
}

// DomainRunnerFactory resolves a codec.DomainTask descriptor into a
// DomainRunner. It is supplied by the embedding application; qworker's
// core has no opinion on what a "domain task" actually does.
type DomainRunnerFactory func(task *codec.DomainTask) (DomainRunner, error)

// NotFoundError marks a DomainRunner.Create failure caused by the task
// descriptor not resolving to anything runnable, distinct from a
// generic execution error.
type NotFoundError struct {
	Program string
	Task    string
}

func (e *NotFoundError) Error() string {
	return "domain task not found: " + e.Program + "/" + e.Task
}
