package netio

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAndRoundTrip(t *testing.T) {
	server, err := Bind("127.0.0.1:0", 0)
	require.NoError(t, err)
	defer server.Close()

	client, err := Bind("127.0.0.1:0", 0)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send([]byte("hello"), server.LocalAddr()))

	b, from, err := server.RecvDatagram()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)
	assert.Equal(t, client.LocalAddr().Port, from.Port)
}

func TestSendFanoutSkipsBadDestinations(t *testing.T) {
	server, err := Bind("127.0.0.1:0", 0)
	require.NoError(t, err)
	defer server.Close()

	a, err := Bind("127.0.0.1:0", 0)
	require.NoError(t, err)
	defer a.Close()

	bad := a.LocalAddr()
	a.Close() // now unreachable, but fan-out must not panic or block on it

	assert.NotPanics(t, func() {
		server.SendFanout([]byte("x"), []*net.UDPAddr{bad, a.LocalAddr()})
	})
}

func TestProbingSocketFindsFreePort(t *testing.T) {
	s, err := NewProbingSocket("127.0.0.1", 30000, 0)
	require.NoError(t, err)
	defer s.Close()
	assert.GreaterOrEqual(t, s.LocalAddr().Port, 30000)
}
