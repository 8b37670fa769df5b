package peermanager

import (
	"net"
	"testing"
	"time"

	"github.com/lanplay/slpd/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func udpAddr(t *testing.T, s string) *net.UDPAddr {
	t.Helper()
	a, err := net.ResolveUDPAddr("udp", s)
	require.NoError(t, err)
	return a
}

func TestTouchInsertsIdlePeer(t *testing.T) {
	m := New(false)
	a := udpAddr(t, "1.1.1.1:1")
	p := m.Touch(a, time.Now())
	assert.True(t, p.IsIdle())

	// second touch returns the same peer
	p2 := m.Touch(a, time.Now())
	assert.Same(t, p, p2)
}

func TestRouteUnicastAfterDiscovery(t *testing.T) {
	m := New(false)
	now := time.Now()
	a := udpAddr(t, "127.0.0.1:1001")
	b := udpAddr(t, "127.0.0.1:1002")
	m.Touch(a, now)
	m.Touch(b, now)

	srcA := [4]byte{10, 13, 37, 100}
	dstB := [4]byte{10, 13, 37, 101}

	// B unknown yet: fan-out falls back to "everyone but A"
	dests := m.Route(a, RouteRequest{SrcV: srcA, DstV: dstB})
	require.Len(t, dests, 1)
	assert.Equal(t, b.String(), dests[0].String())

	// B announces itself
	m.Route(b, RouteRequest{SrcV: dstB, DstV: srcA})

	// Now A -> B resolves to a unicast singleton
	dests = m.Route(a, RouteRequest{SrcV: srcA, DstV: dstB})
	require.Len(t, dests, 1)
	assert.Equal(t, b.String(), dests[0].String())
}

func TestRouteIgnoreIdleExcludesIdlePeers(t *testing.T) {
	m := New(true)
	now := time.Now()
	a := udpAddr(t, "127.0.0.1:2001")
	b := udpAddr(t, "127.0.0.1:2002")
	c := udpAddr(t, "127.0.0.1:2003")
	m.Touch(a, now)
	m.Touch(b, now)
	m.Touch(c, now)
	// all three are Idle (keepalive-only); none has announced a virtual IPv4

	dests := m.Route(a, RouteRequest{SrcV: [4]byte{10, 13, 37, 100}, DstV: [4]byte{10, 13, 37, 200}})
	assert.Empty(t, dests, "all non-sender peers are idle, so fan-out is empty")
}

func TestRemoveLeavesByVirtualDanglingTreatedAsBroadcast(t *testing.T) {
	m := New(false)
	now := time.Now()
	a := udpAddr(t, "127.0.0.1:3001")
	b := udpAddr(t, "127.0.0.1:3002")
	m.Touch(a, now)
	m.Touch(b, now)

	srcA := [4]byte{10, 13, 37, 1}
	m.Route(a, RouteRequest{SrcV: srcA, DstV: [4]byte{}})

	m.Remove(a)

	// B -> srcA (A's announced vaddr) now finds a dangling byVirtual
	// entry pointing at a removed peer; treated as broadcast.
	dests := m.Route(b, RouteRequest{SrcV: [4]byte{9, 9, 9, 9}, DstV: srcA})
	assert.Empty(t, dests, "only other peer was A, which is gone")
}

func TestBroadcastIgnoresIdleness(t *testing.T) {
	m := New(true)
	now := time.Now()
	a := udpAddr(t, "127.0.0.1:4001")
	b := udpAddr(t, "127.0.0.1:4002")
	m.Touch(a, now)
	m.Touch(b, now)

	dests := m.Broadcast()
	assert.Len(t, dests, 2)
}

func TestInfoReportsOnlineAndIdle(t *testing.T) {
	m := New(false)
	now := time.Now()
	a := udpAddr(t, "127.0.0.1:5001")
	b := udpAddr(t, "127.0.0.1:5002")
	m.Touch(a, now)
	pb := m.Touch(b, now)
	pb.OnPacket(wire.KindIpv4, now)

	info := m.Info()
	assert.Equal(t, 2, info.Online)
	assert.Equal(t, 1, info.Idle)
}

func TestSweepFindsExpiredPeers(t *testing.T) {
	m := New(false)
	base := time.Now()
	a := udpAddr(t, "127.0.0.1:6001")
	m.Touch(a, base)

	assert.Empty(t, m.Sweep(base.Add(10*time.Second)))
	expired := m.Sweep(base.Add(31 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, a.String(), expired[0].String())
}
