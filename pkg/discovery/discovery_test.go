package discovery

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncementPayloadEqualAcrossPaths(t *testing.T) {
	local := NewAnnouncement("worker-8181_0", "127.0.0.1", 8181)
	remote := NewAnnouncement("worker-8181_0", "127.0.0.1", 8181)

	localBytes, err := local.Encode()
	require.NoError(t, err)
	remoteBytes, err := remote.Encode()
	require.NoError(t, err)

	assert.JSONEq(t, string(localBytes), string(remoteBytes))
}

func TestBindAndLocalRegisterDeregister(t *testing.T) {
	r, err := Bind(0)
	require.NoError(t, err)
	defer r.Close()

	r.Register("w1", "127.0.0.1", 9001)
	assert.Equal(t, 1, r.Len())

	r.Deregister("w1")
	assert.Equal(t, 0, r.Len())
}

func TestServeUpdatesMapFromRemoteAnnouncement(t *testing.T) {
	r, err := Bind(0)
	require.NoError(t, err)
	defer r.Close()

	_, portStr, err := net.SplitHostPort(r.conn.LocalAddr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = r.Serve(ctx) }()

	ann := NewAnnouncement("remote-1", "127.0.0.1", 9100)
	require.NoError(t, Announce("127.0.0.1", port, ann))

	require.Eventually(t, func() bool {
		return r.Len() == 1
	}, time.Second, 10*time.Millisecond)

	peers := r.Peers()
	peer, ok := peers["remote-1"]
	require.True(t, ok)
	assert.Equal(t, 9100, peer.Port)
}

func TestRepeatedAnnouncementOverwrites(t *testing.T) {
	r, err := Bind(0)
	require.NoError(t, err)
	defer r.Close()

	r.Register("w1", "127.0.0.1", 1)
	r.Register("w1", "127.0.0.1", 2)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 2, r.Peers()["w1"].Port)
}

func TestTwoSourcesBothAppearDeregisterRemovesOne(t *testing.T) {
	r, err := Bind(0)
	require.NoError(t, err)
	defer r.Close()

	r.Register("w1", "127.0.0.1", 1)
	r.Register("w2", "127.0.0.1", 2)
	assert.Equal(t, 2, r.Len())

	r.Deregister("w1")
	assert.Equal(t, 1, r.Len())
	_, stillThere := r.Peers()["w2"]
	assert.True(t, stillThere)
}
