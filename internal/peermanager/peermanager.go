// Package peermanager owns the two address tables at the heart of the
// relay's routing decisions: real transport address -> Peer, and virtual
// LAN IPv4 -> real address. It implements the touch/remove/route/broadcast
// operations the relay engine drives on every datagram.
package peermanager

import (
	"net"
	"sync"
	"time"

	"github.com/lanplay/slpd/internal/metrics"
	"github.com/lanplay/slpd/internal/peer"
)

// Info is a point-in-time cardinality snapshot, the core's half of the
// external server_info query.
type Info struct {
	Online int
	Idle   int
}

// RouteRequest carries the fields the router needs to make its decision:
// the source/destination virtual IPv4 embedded in the frame.
type RouteRequest struct {
	SrcV [4]byte
	DstV [4]byte
}

// Manager owns byReal and byVirtual behind a single mutex, per the spec's
// invariant that both tables are updated atomically with respect to each
// other.
type Manager struct {
	mu         sync.Mutex
	ignoreIdle bool

	byReal    map[string]*entry
	byVirtual map[[4]byte]string
}

type entry struct {
	addr *net.UDPAddr
	peer *peer.Peer
}

// New creates an empty Manager. When ignoreIdle is set, Route excludes
// Idle peers from its broadcast fallback (but never from Broadcast, which
// the LDN scan uses unconditionally).
func New(ignoreIdle bool) *Manager {
	return &Manager{
		ignoreIdle: ignoreIdle,
		byReal:     make(map[string]*entry),
		byVirtual:  make(map[[4]byte]string),
	}
}

// Touch inserts-or-gets the Peer for a real address. A newly inserted peer
// starts Idle per the spec.
func (m *Manager) Touch(addr *net.UDPAddr, now time.Time) *peer.Peer {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := addr.String()
	e, ok := m.byReal[key]
	if !ok {
		e = &entry{addr: addr, peer: peer.New(now)}
		m.byReal[key] = e
		metrics.PeersOnline.Set(float64(len(m.byReal)))
	}
	return e.peer
}

// Remove erases a peer from byReal. byVirtual entries pointing at it are
// left dangling per the spec: the next lookup that hits them finds no
// peer at that real address and the routing layer treats it as "unknown
// destination", falling back to broadcast. Cheap and safe at the scale
// this relay operates at.
func (m *Manager) Remove(addr *net.UDPAddr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byReal, addr.String())
	metrics.PeersOnline.Set(float64(len(m.byReal)))
}

// Route records the frame's source virtual IPv4 against the sender's real
// address, then resolves the destination: a singleton fan-out if the
// destination virtual IPv4 is known and its owning peer still exists,
// otherwise every other known real address (minus Idle peers when
// ignoreIdle is configured).
func (m *Manager) Route(from *net.UDPAddr, req RouteRequest) []*net.UDPAddr {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byVirtual[req.SrcV] = from.String()

	if key, ok := m.byVirtual[req.DstV]; ok {
		if e, ok := m.byReal[key]; ok {
			return []*net.UDPAddr{e.addr}
		}
		// Stale byVirtual entry: the peer it pointed at is gone. Fall
		// through to the broadcast policy, same as an unknown destination.
	}

	fromKey := from.String()
	dests := make([]*net.UDPAddr, 0, len(m.byReal))
	for key, e := range m.byReal {
		if key == fromKey {
			continue
		}
		if m.ignoreIdle && e.peer.IsIdle() {
			continue
		}
		dests = append(dests, e.addr)
	}
	return dests
}

// Broadcast returns every known real address regardless of idleness. Used
// by the LDN-discovery plugin's periodic scan probe.
func (m *Manager) Broadcast() []*net.UDPAddr {
	m.mu.Lock()
	defer m.mu.Unlock()

	dests := make([]*net.UDPAddr, 0, len(m.byReal))
	for _, e := range m.byReal {
		dests = append(dests, e.addr)
	}
	return dests
}

// Info reports the current online/idle cardinality.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := Info{Online: len(m.byReal)}
	idle := 0
	for _, e := range m.byReal {
		if e.peer.IsIdle() {
			idle++
		}
	}
	info.Idle = idle
	metrics.PeersIdle.Set(float64(idle))
	return info
}

// Sweep returns the real addresses of peers whose hard inbound-silence
// timeout has elapsed as of now. The relay engine's idle-sweep ticker
// calls this and emits a Close event for each.
func (m *Manager) Sweep(now time.Time) []*net.UDPAddr {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*net.UDPAddr
	for _, e := range m.byReal {
		if e.peer.Expired(now) {
			expired = append(expired, e.addr)
		}
	}
	return expired
}
