// Package discovery implements qworker's UDP self-announcement protocol:
// a co-located responder that owns the discovery port when it can bind
// it, and a fallback announcer that sends the same payload to whichever
// process did.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/qworkerhq/qworker/internal/log"
	"github.com/qworkerhq/qworker/internal/metrics"
)

// Announcement is the JSON payload used on both the co-located and
// fallback paths — {"name": ["addr", port]} — so a test can assert
// payload equality across paths.
type Announcement map[string][2]any

// NewAnnouncement builds the single-key Announcement for name/addr/port.
func NewAnnouncement(name, addr string, port int) Announcement {
	return Announcement{name: {addr, port}}
}

// Encode marshals the announcement to its UDP datagram bytes.
func (a Announcement) Encode() ([]byte, error) {
	return json.Marshal(a)
}

// Peer is one entry in a Responder's live-worker map.
type Peer struct {
	Addr string
	Port int
}

// Responder owns the discovery UDP socket. It maintains an in-memory
// map of live workers, updated by local Register calls and by
// announcements received from other processes. Discovery provides no
// liveness beyond presence: an entry is only purged by an explicit
// Deregister, never by a timeout.
type Responder struct {
	conn *net.UDPConn

	mu    sync.RWMutex
	peers map[string]Peer
}

// Bind attempts to open the discovery UDP socket on port. A non-nil
// error here is the expected "someone else already owns the port"
// signal that sends a caller onto the fallback Announce path.
func Bind(port int) (*Responder, error) {
	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("discovery: bind: %w", err)
	}
	return &Responder{conn: conn, peers: make(map[string]Peer)}, nil
}

// Register records a local worker's presence directly, without going
// over the wire — used by a worker co-located with the responder.
func (r *Responder) Register(name, addr string, port int) {
	r.mu.Lock()
	r.peers[name] = Peer{Addr: addr, Port: port}
	r.mu.Unlock()
	metrics.DiscoveryPeersTotal.Set(float64(r.Len()))
}

// Deregister removes name from the live map. Per the registry's
// ownership rule, only the registering worker is expected to call this.
func (r *Responder) Deregister(name string) {
	r.mu.Lock()
	delete(r.peers, name)
	r.mu.Unlock()
	metrics.DiscoveryPeersTotal.Set(float64(r.Len()))
}

// Peers returns a snapshot of the current live-worker map.
func (r *Responder) Peers() map[string]Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Peer, len(r.peers))
	for k, v := range r.peers {
		out[k] = v
	}
	return out
}

// Len reports the number of peers currently known.
func (r *Responder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Serve reads announcement datagrams until ctx is cancelled, updating
// the live map idempotently: a repeated announcement for the same name
// overwrites the prior entry.
func (r *Responder) Serve(ctx context.Context) error {
	discoveryLog := log.WithComponent("discovery")
	go func() {
		<-ctx.Done()
		_ = r.conn.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("discovery: read: %w", err)
			}
		}

		var ann Announcement
		if err := json.Unmarshal(buf[:n], &ann); err != nil {
			discoveryLog.Warn().Err(err).Msg("discarding unparseable announcement")
			continue
		}

		metrics.DiscoveryAnnouncementsTotal.Inc()
		for name, tuple := range ann {
			addr := fmt.Sprint(tuple[0])
			port := toInt(tuple[1])
			r.Register(name, addr, port)
		}
	}
}

// Close closes the responder's UDP socket.
func (r *Responder) Close() error {
	return r.conn.Close()
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

// Announce sends ann as a single UDP datagram to host:port, used by the
// fallback path when a worker could not bind the discovery socket
// itself. Send-and-forget: no acknowledgement is expected or awaited.
func Announce(host string, port int, ann Announcement) error {
	payload, err := ann.Encode()
	if err != nil {
		return fmt.Errorf("discovery: encode announcement: %w", err)
	}

	conn, err := net.Dial("udp4", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("discovery: dial: %w", err)
	}
	defer conn.Close()

	_, err = conn.Write(payload)
	if err != nil {
		return fmt.Errorf("discovery: send: %w", err)
	}
	return nil
}
