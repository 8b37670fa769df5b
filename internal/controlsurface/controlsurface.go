// Package controlsurface exposes the read-only accessors the core hands
// to outer collaborators: server_info, traffic_info (with its stream) and
// rooms, built on pluginapi.GetPlugin for typed plugin access. It does no transport or serialization of its own — the
// Non-goals explicitly leave the wire layer (GraphQL/HTTP in the
// original) out of scope, but the interfaces the core exposes to it are
// part of the core per spec.md §1.
package controlsurface

import (
	"github.com/lanplay/slpd/internal/ldnplugin"
	"github.com/lanplay/slpd/internal/peermanager"
	"github.com/lanplay/slpd/internal/pluginapi"
	"github.com/lanplay/slpd/internal/trafficplugin"
)

// Version is the relay build version reported by ServerInfo, mirrored
// from the CLI's own --version string.
const Version = "0.1.0"

// ServerInfoSnapshot is the point-in-time payload returned by ServerInfo.
type ServerInfoSnapshot struct {
	Online  int
	Idle    int
	Version string
}

// Surface wires the core's manager and plugin registry into the flat
// query surface an outer system (GraphQL, HTTP, whatever transport is
// eventually layered on) would call into.
type Surface struct {
	manager  *peermanager.Manager
	registry *pluginapi.Registry
}

// New creates a control surface over an already-constructed peer manager
// and plugin registry.
func New(manager *peermanager.Manager, registry *pluginapi.Registry) *Surface {
	return &Surface{manager: manager, registry: registry}
}

// ServerInfo reports the current peer cardinality and build version.
func (s *Surface) ServerInfo() ServerInfoSnapshot {
	info := s.manager.Info()
	return ServerInfoSnapshot{Online: info.Online, Idle: info.Idle, Version: Version}
}

// TrafficInfo returns the live (still-accumulating) traffic snapshot, or
// the zero value if the traffic plugin is not registered.
func (s *Surface) TrafficInfo() trafficplugin.Snapshot {
	result := pluginapi.GetPlugin(s.registry, trafficplugin.Name, func(p *trafficplugin.Plugin) any {
		if p == nil {
			return trafficplugin.Snapshot{}
		}
		return p.TrafficInfo()
	})
	return result.(trafficplugin.Snapshot)
}

// TrafficStream subscribes to the traffic plugin's 1 Hz deduplicated
// stream. ok is false if the traffic plugin is not registered.
func (s *Surface) TrafficStream() (ch <-chan trafficplugin.Snapshot, unsubscribe func(), ok bool) {
	p, found := s.registry.Get(trafficplugin.Name)
	if !found {
		return nil, func() {}, false
	}
	traffic, ok := p.(*trafficplugin.Plugin)
	if !ok {
		return nil, func() {}, false
	}
	ch, unsubscribe = traffic.Stream()
	return ch, unsubscribe, true
}

// Rooms returns a snapshot of the LDN room table, or nil if the LDN
// plugin is not registered.
func (s *Surface) Rooms() map[[4]byte]ldnplugin.Room {
	result := pluginapi.GetPlugin(s.registry, ldnplugin.Name, func(p *ldnplugin.Plugin) any {
		if p == nil {
			return map[[4]byte]ldnplugin.Room(nil)
		}
		return p.Rooms()
	})
	return result.(map[[4]byte]ldnplugin.Room)
}
