// Package pluginapi defines the relay's plugin lifecycle and hook
// contract, generalized from the teacher's internal/plugin registry and
// manager: a flat, registration-ordered list of named plugins instead of
// the teacher's dependency-ordered N-plugin system, since the three
// plugins this relay carries have no inter-plugin dependencies.
package pluginapi

import (
	"context"
	"net"
)

// Verdict is the advisory result of a hook invocation.
type Verdict int

const (
	Ok Verdict = iota
	Veto
)

// InPacket is one inbound datagram as seen by the ingress hook, before
// frame classification.
type InPacket struct {
	Bytes []byte
	From  *net.UDPAddr
}

// Plugin is the lifecycle + hook interface every plugin implements. State
// is owned entirely by the plugin; the core gives it no storage beyond
// this handle.
type Plugin interface {
	// Name identifies the plugin; it is also its registry key.
	Name() string

	// In is called once per inbound datagram, in registration order,
	// before routing. A Veto stops all remaining ingress work for this
	// datagram, including later plugins' In hooks.
	In(ctx context.Context, pkt InPacket) Verdict

	// Out is called once per routed fan-out, after the router has
	// resolved destinations. A Veto here is advisory only: per the spec,
	// egress veto downgrades to a warning and the fan-out proceeds.
	Out(ctx context.Context, bytes []byte, dests []*net.UDPAddr) Verdict
}

// Lifecycle is implemented by plugins with setup/teardown beyond
// construction (e.g. spawning a periodic background task). It mirrors
// the teacher's Init/Start/Stop plugin interface, collapsed to the two
// phases this relay's plugins actually need.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
