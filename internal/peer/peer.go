// Package peer implements the per-client idle/connected state machine
// described by the relay's liveness model: a peer becomes Connected on
// every IPv4/IPv4Frag frame and rolls back to Idle after five minutes of
// silence from those frame kinds.
package peer

import (
	"sync"
	"time"

	"github.com/lanplay/slpd/internal/wire"
)

// IdleRollover is how long a Connected peer tolerates silence from
// IPv4/IPv4Frag frames before reverting to Idle.
const IdleRollover = 5 * time.Minute

// HardTimeout is the inbound silence window (of any frame) after which the
// relay engine closes the peer outright.
const HardTimeout = 30 * time.Second

// State is the liveness classification exposed to the peer manager for
// routing filters and reporting.
type State int

const (
	StateIdle State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "idle"
}

// Peer owns one client's liveness state machine. It does no I/O of its
// own; the relay engine calls OnPacket for every inbound non-Ping datagram,
// and the peer manager reads its state for routing filters and reporting.
type Peer struct {
	mu          sync.Mutex
	state       State
	lastActive  time.Time
	lastContact time.Time
}

// New creates a Peer starting Idle, with its last-contact clock set to now
// so a freshly touched peer is never immediately evicted by the hard
// timeout.
func New(now time.Time) *Peer {
	return &Peer{state: StateIdle, lastContact: now}
}

// OnPacket classifies one inbound frame kind and updates the idle state
// machine. now should be the instant the datagram was received.
//
//	kind \ state      Idle           Connected(t)
//	Ipv4/Ipv4Frag  -> Connected(now)  -> Connected(now)
//	other          -> unchanged       -> Idle if now-t >= IdleRollover else unchanged
func (p *Peer) OnPacket(kind wire.Kind, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastContact = now

	switch kind {
	case wire.KindIpv4, wire.KindIpv4Frag:
		p.state = StateConnected
		p.lastActive = now
	default:
		if p.state == StateConnected && now.Sub(p.lastActive) >= IdleRollover {
			p.state = StateIdle
		}
	}
}

// State reports the peer's current liveness classification.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsConnected reports whether the peer is currently Connected.
func (p *Peer) IsConnected() bool {
	return p.State() == StateConnected
}

// IsIdle reports whether the peer is currently Idle.
func (p *Peer) IsIdle() bool {
	return p.State() == StateIdle
}

// Expired reports whether now is past the peer's hard inbound-silence
// timeout, regardless of Idle/Connected classification.
func (p *Peer) Expired(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastContact) >= HardTimeout
}

// LastContact reports the instant of the most recent inbound datagram of
// any kind, used by the relay engine's idle-sweep ticker.
func (p *Peer) LastContact() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastContact
}
