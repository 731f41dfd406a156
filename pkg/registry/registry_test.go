package registry

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := NewServer(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown() })

	ts := httptest.NewServer(srv.mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestPushListRemoveRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	client := NewClient(ts.URL, "")

	require.NoError(t, client.Push("worker-8181_0", "127.0.0.1", 8181))

	entries, err := client.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "127.0.0.1", entries[0]["worker-8181_0"][0])

	require.NoError(t, client.Remove("worker-8181_0", "127.0.0.1", 8181))

	entries, err = client.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveRemovesExactlyOneDuplicate(t *testing.T) {
	_, ts := newTestServer(t)
	client := NewClient(ts.URL, "")

	require.NoError(t, client.Push("dup", "127.0.0.1", 9000))
	require.NoError(t, client.Push("dup", "127.0.0.1", 9000))

	require.NoError(t, client.Remove("dup", "127.0.0.1", 9000))

	entries, err := client.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRemoveNonexistentReturnsError(t *testing.T) {
	_, ts := newTestServer(t)
	client := NewClient(ts.URL, "")

	err := client.Remove("ghost", "127.0.0.1", 1)
	assert.Error(t, err)
}

func TestDeleteListTeardown(t *testing.T) {
	_, ts := newTestServer(t)
	client := NewClient(ts.URL, "")

	require.NoError(t, client.Push("w", "127.0.0.1", 1))
	require.NoError(t, client.DeleteList())

	entries, err := client.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListsAreIndependentByName(t *testing.T) {
	_, ts := newTestServer(t)
	normal := NewClient(ts.URL, "QW_WORKER_LIST")
	high := NewClient(ts.URL, "QW_WORKER_HIGH_LIST")

	require.NoError(t, normal.Push("w1", "127.0.0.1", 1))
	require.NoError(t, high.Push("w2", "127.0.0.1", 2))

	normalEntries, err := normal.List()
	require.NoError(t, err)
	assert.Len(t, normalEntries, 1)

	highEntries, err := high.ListHighPriority()
	require.NoError(t, err)
	assert.Len(t, highEntries, 1)
}
