package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/qworkerhq/qworker/internal/log"
	"github.com/qworkerhq/qworker/internal/metrics"
)

// Client is a thin HTTP client against a registry Server, implementing
// the push/remove/list operations of the shared key/list store. Failures
// here are always logged and never fatal to the calling worker — a
// worker that cannot reach the registry keeps serving, just unreachable
// by name.
type Client struct {
	baseURL string
	list    string
	highList string
	http    *http.Client
}

// DefaultHighPriorityListName is the registry-side list key for
// WORKER_HIGH_LIST entries.
const DefaultHighPriorityListName = "QW_WORKER_HIGH_LIST"

// NewClient builds a Client against baseURL (e.g. "http://127.0.0.1:9400")
// operating on list (DefaultListName if empty).
func NewClient(baseURL, list string) *Client {
	if list == "" {
		list = DefaultListName
	}
	return &Client{
		baseURL:  baseURL,
		list:     list,
		highList: DefaultHighPriorityListName,
		http:     &http.Client{Timeout: 5 * time.Second},
	}
}

// Push registers a worker's presence by appending its entry to the list.
// A failure is logged and returned but never panics the caller.
func (c *Client) Push(name, addr string, port int) error {
	entry := NewEntry(name, addr, port)
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("registry: encode entry: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.url(), bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RegistryPushFailuresTotal.Inc()
		log.WithComponent("registry-client").Warn().Err(err).Str("worker", name).Msg("registry push failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		metrics.RegistryPushFailuresTotal.Inc()
		err := fmt.Errorf("registry: push returned %s", resp.Status)
		log.WithComponent("registry-client").Warn().Err(err).Str("worker", name).Msg("registry push failed")
		return err
	}
	return nil
}

// Remove removes exactly one entry matching {name: [addr, port]}, the
// atomic single-occurrence remove the registry contract requires.
func (c *Client) Remove(name, addr string, port int) error {
	entry := NewEntry(name, addr, port)
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("registry: encode entry: %w", err)
	}

	req, err := http.NewRequest(http.MethodDelete, c.url(), bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RegistryRemoveFailuresTotal.Inc()
		log.WithComponent("registry-client").Warn().Err(err).Str("worker", name).Msg("registry remove failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		metrics.RegistryRemoveFailuresTotal.Inc()
		err := fmt.Errorf("registry: remove returned %s", resp.Status)
		log.WithComponent("registry-client").Warn().Err(err).Str("worker", name).Msg("registry remove failed")
		return err
	}
	return nil
}

// List returns the registry's current snapshot for the configured list.
func (c *Client) List() ([]Entry, error) {
	resp, err := c.http.Get(c.url())
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry: list returned %s", resp.Status)
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("registry: decode list: %w", err)
	}
	return entries, nil
}

// WithHighPriorityList overrides the list name used by ListHighPriority.
func (c *Client) WithHighPriorityList(name string) *Client {
	if name != "" {
		c.highList = name
	}
	return c
}

// ListHighPriority returns the registry's current snapshot of the
// high-priority worker list (WORKER_HIGH_LIST). Nothing in pkg/client's
// worker selection currently prefers this list — see the open-question
// decision recorded for WORKER_HIGH_LIST — it is plumbed through for a
// future caller that wants to read it.
func (c *Client) ListHighPriority() ([]Entry, error) {
	resp, err := c.http.Get(c.baseURL + "/v1/workers?list=" + c.highList)
	if err != nil {
		return nil, fmt.Errorf("registry: list high-priority: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry: list high-priority returned %s", resp.Status)
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("registry: decode high-priority list: %w", err)
	}
	return entries, nil
}

// DeleteList tears down the entire list, used on test teardown and the
// "delete-key" operation of the registry contract.
func (c *Client) DeleteList() error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/v1/workers/all?list="+c.list, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("registry: delete list returned %s", resp.Status)
	}
	return nil
}

func (c *Client) url() string {
	return c.baseURL + "/v1/workers?list=" + c.list
}
