// Package metrics implements Prometheus metrics for the relay dataplane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PeersOnline tracks the number of peers currently known to the peer manager.
	PeersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slpd_peers_online",
			Help: "Current number of peers tracked by the peer manager",
		},
	)

	// PeersIdle tracks peers in the idle (post-rollover, pre-timeout) state.
	PeersIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slpd_peers_idle",
			Help: "Current number of peers in the idle state",
		},
	)

	// ReassemblyActiveGroups tracks in-flight fragment reassembly groups.
	ReassemblyActiveGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slpd_reassembly_active_groups",
			Help: "Number of fragment groups currently awaiting reassembly",
		},
	)

	// ReassemblyDropsTotal counts fragment groups evicted before completion.
	ReassemblyDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slpd_reassembly_drops_total",
			Help: "Total number of fragment groups dropped before reassembly completed",
		},
		[]string{"reason"},
	)

	// FramesTotal counts frames processed by the relay, by direction and kind.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slpd_frames_total",
			Help: "Total number of frames processed by the relay",
		},
		[]string{"direction", "kind"},
	)

	// BytesTotal counts payload bytes relayed, by direction.
	BytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slpd_bytes_total",
			Help: "Total number of payload bytes relayed",
		},
		[]string{"direction"},
	)

	// FramesDroppedTotal counts frames dropped due to backpressure, by stage.
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slpd_frames_dropped_total",
			Help: "Total number of frames dropped due to channel backpressure",
		},
		[]string{"stage"},
	)

	// PluginVetoTotal counts frames vetoed by a plugin, by plugin name and hook.
	PluginVetoTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slpd_plugin_veto_total",
			Help: "Total number of frames vetoed by a plugin",
		},
		[]string{"plugin", "hook"},
	)

	// PluginPanicsTotal counts recovered panics raised by a plugin hook.
	PluginPanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slpd_plugin_panics_total",
			Help: "Total number of panics recovered from a plugin hook invocation",
		},
		[]string{"plugin", "hook"},
	)

	// RoomsActive tracks the number of LDN rooms currently advertised.
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slpd_ldn_rooms_active",
			Help: "Current number of LDN rooms known to the discovery plugin",
		},
	)
)
