// Package registry implements both sides of the "shared key/list store"
// spec.md treats as an external collaborator: Client is the worker- and
// CLI-facing push/remove/list API, and Server is this repository's own
// bbolt-backed reference implementation of that store, grounded on the
// teacher's storage/boltdb.go bucket-per-collection pattern.
package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/qworkerhq/qworker/internal/log"
	"github.com/qworkerhq/qworker/internal/metrics"
)

// DefaultListName is the fixed list key used when no override is
// configured (WORKER_LIST's registry-side counterpart, QW_WORKER_LIST).
const DefaultListName = "QW_WORKER_LIST"

var bucketLists = []byte("lists")

// Entry is the JSON value pushed for one worker: {"<name>": ["<addr>", port]}.
type Entry map[string][2]any

// NewEntry builds the single-key Entry for a worker announcement.
func NewEntry(name, addr string, port int) Entry {
	return Entry{name: {addr, port}}
}

// Server is a single-process, bbolt-backed list store exposed over HTTP.
// Each named list is stored as an ordered set of sub-keys inside one
// bolt bucket so push/list/remove preserve list (not set) semantics.
type Server struct {
	db   *bolt.DB
	mux  *http.ServeMux
	http http.Server
}

// NewServer opens (creating if necessary) a bbolt database under dataDir
// and returns a Server ready to ListenAndServe.
func NewServer(dataDir string) (*Server, error) {
	dbPath := filepath.Join(dataDir, "qworker-registry.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLists)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: create bucket: %w", err)
	}

	s := &Server{db: db}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/v1/workers", s.handleWorkers)
	s.mux.HandleFunc("/v1/workers/all", s.handleWorkersAll)
	s.http.Handler = s.mux

	return s, nil
}

// Mux returns the registry's HTTP handler, for tests and callers that
// want to host it inside their own httptest.Server or listener.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// ListenAndServe binds addr and serves the registry HTTP API until the
// listener errors or Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.http.Addr = addr
	log.WithComponent("registry").Info().Str("addr", addr).Msg("registry server listening")
	return s.http.ListenAndServe()
}

// Shutdown closes the HTTP listener and the underlying database.
func (s *Server) Shutdown() error {
	_ = s.http.Close()
	return s.db.Close()
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	list := r.URL.Query().Get("list")
	if list == "" {
		list = DefaultListName
	}

	switch r.Method {
	case http.MethodPost:
		s.push(w, r, list)
	case http.MethodGet:
		s.list(w, r, list)
	case http.MethodDelete:
		s.remove(w, r, list)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleWorkersAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list := r.URL.Query().Get("list")
	if list == "" {
		list = DefaultListName
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLists)
		return b.DeleteBucket(listKey(list))
	}); err != nil && err != bolt.ErrBucketNotFound {
		metrics.RegistryRemoveFailuresTotal.Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) push(w http.ResponseWriter, r *http.Request, list string) {
	var entry Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		metrics.RegistryPushFailuresTotal.Inc()
		http.Error(w, "invalid entry body: "+err.Error(), http.StatusBadRequest)
		return
	}

	value, err := json.Marshal(entry)
	if err != nil {
		metrics.RegistryPushFailuresTotal.Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		lb, err := tx.Bucket(bucketLists).CreateBucketIfNotExists(listKey(list))
		if err != nil {
			return err
		}
		seq, err := lb.NextSequence()
		if err != nil {
			return err
		}
		return lb.Put(seqKey(seq), value)
	}); err != nil {
		metrics.RegistryPushFailuresTotal.Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, list string) {
	entries, err := s.snapshot(list)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// remove deletes exactly one sub-key whose value matches the entry given
// in the request body, preserving the atomic single-occurrence remove
// guarantee even in the presence of duplicate entries.
func (s *Server) remove(w http.ResponseWriter, r *http.Request, list string) {
	var target Entry
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
		metrics.RegistryRemoveFailuresTotal.Inc()
		http.Error(w, "invalid entry body: "+err.Error(), http.StatusBadRequest)
		return
	}
	targetBytes, err := json.Marshal(target)
	if err != nil {
		metrics.RegistryRemoveFailuresTotal.Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	removed := false
	err = s.db.Update(func(tx *bolt.Tx) error {
		lb := tx.Bucket(bucketLists).Bucket(listKey(list))
		if lb == nil {
			return nil
		}
		c := lb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if entriesEqual(v, targetBytes) {
				removed = true
				return lb.Delete(k)
			}
		}
		return nil
	})
	if err != nil {
		metrics.RegistryRemoveFailuresTotal.Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !removed {
		metrics.RegistryRemoveFailuresTotal.Inc()
		http.Error(w, "no matching entry", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) snapshot(list string) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		lb := tx.Bucket(bucketLists).Bucket(listKey(list))
		if lb == nil {
			return nil
		}
		return lb.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

func listKey(list string) []byte { return []byte(list) }

func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}

// entriesEqual compares two JSON-marshaled Entry values for logical
// equality by re-decoding and comparing, tolerant of key ordering.
func entriesEqual(a, b []byte) bool {
	var ea, eb map[string][2]any
	if json.Unmarshal(a, &ea) != nil || json.Unmarshal(b, &eb) != nil {
		return string(a) == string(b)
	}
	if len(ea) != len(eb) {
		return false
	}
	for k, va := range ea {
		vb, ok := eb[k]
		if !ok {
			return false
		}
		if fmt.Sprint(va[0]) != fmt.Sprint(vb[0]) || fmt.Sprint(va[1]) != fmt.Sprint(vb[1]) {
			return false
		}
	}
	return true
}
