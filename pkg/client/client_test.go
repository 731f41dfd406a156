package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qworkerhq/qworker/pkg/handler"
	"github.com/qworkerhq/qworker/pkg/registry"
	"github.com/qworkerhq/qworker/pkg/worker"
)

func testHandlers() *handler.Registry {
	reg := handler.NewRegistry()
	reg.Register("echo", func(ctx context.Context, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
		var n float64
		if len(args) > 0 {
			_ = json.Unmarshal(args[0], &n)
		}
		return n + 1, nil
	})
	reg.Register("boom", func(ctx context.Context, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
		return nil, errors.New("handler exploded")
	})
	return reg
}

func startTestWorker(t *testing.T, reg *registry.Client) (*worker.Server, string) {
	t.Helper()
	srv := worker.NewServer(worker.Config{
		Name:          "w",
		Host:          "127.0.0.1",
		Port:          0,
		QueueCapacity: 4,
		Handlers:      testHandlers(),
		Registry:      reg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not start")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not shut down")
		}
	})

	return srv, srv.Addr()
}

func startTestRegistry(t *testing.T) *registry.Client {
	t.Helper()
	regSrv, err := registry.NewServer(t.TempDir())
	require.NoError(t, err)
	ts := httptest.NewServer(regSrv.Mux())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = regSrv.Shutdown() })
	return registry.NewClient(ts.URL, "")
}

func TestRunEchoByAddr(t *testing.T) {
	_, addr := startTestWorker(t, nil)
	c := New(nil)

	result, err := c.Run(context.Background(), addr, "echo", []any{41}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, float64(42), result)
}

func TestRunRemoteErrorSurfacesAsRemoteError(t *testing.T) {
	_, addr := startTestWorker(t, nil)
	c := New(nil)

	_, err := c.Run(context.Background(), addr, "boom", nil, nil, false)
	require.Error(t, err)
	var remoteErr *RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Contains(t, remoteErr.Message, "handler exploded")
}

func TestRunQueuedReturnsAcknowledgement(t *testing.T) {
	_, addr := startTestWorker(t, nil)
	c := New(nil)

	result, err := c.Run(context.Background(), addr, "echo", []any{1}, nil, true)
	require.NoError(t, err)
	assert.Contains(t, result, "was queued.")
}

func TestRunUnknownHandler(t *testing.T) {
	_, addr := startTestWorker(t, nil)
	c := New(nil)

	_, err := c.Run(context.Background(), addr, "does-not-exist", nil, nil, false)
	require.Error(t, err)
	var remoteErr *RemoteError
	require.True(t, errors.As(err, &remoteErr))
}

func TestHealth(t *testing.T) {
	_, addr := startTestWorker(t, nil)
	c := New(nil)

	status, err := c.Health(context.Background(), addr)
	require.NoError(t, err)
	assert.Contains(t, status, "queue")
	assert.Contains(t, status, "worker")
}

func TestGetServersAndSelectWorkerViaRegistry(t *testing.T) {
	regClient := startTestRegistry(t)
	_, addr := startTestWorker(t, regClient)

	c := New(regClient)

	require.Eventually(t, func() bool {
		servers, err := c.GetServers()
		return err == nil && len(servers) == 1
	}, time.Second, 10*time.Millisecond)

	selected, err := c.SelectWorker()
	require.NoError(t, err)
	assert.Equal(t, addr, selected)
}

func TestSelectWorkerNoWorkers(t *testing.T) {
	regClient := startTestRegistry(t)
	c := New(regClient)

	_, err := c.SelectWorker()
	assert.ErrorIs(t, err, ErrNoWorkers)
}

func TestRunDialFailureIsPlainError(t *testing.T) {
	c := New(nil)
	_, err := c.Run(context.Background(), "127.0.0.1:1", "echo", nil, nil, false)
	require.Error(t, err)
	var remoteErr *RemoteError
	assert.False(t, errors.As(err, &remoteErr))
}
