// Package trafficplugin implements the traffic-accounting plugin: rolling
// upload/download byte and packet counters with a 1 Hz deduplicated
// snapshot stream. Grounded in the original's plugin/traffic.rs TrafficInfo
// (current, previous) pair and its spawn_stream + filter_same combinator.
package trafficplugin

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/lanplay/slpd/internal/periodic"
	"github.com/lanplay/slpd/internal/pluginapi"
)

// Name is this plugin's registry key.
const Name = "traffic"

// TickInterval is how often current is rotated into previous.
const TickInterval = time.Second

// Snapshot is the (upload, download) counter set exposed by both the
// point query and the dedup stream.
type Snapshot struct {
	UploadBytes     int64
	DownloadBytes   int64
	UploadPackets   int64
	DownloadPackets int64
}

// Plugin maintains a (current, previous) pair of Snapshot and rotates
// current into previous once per second, publishing previous on a
// deduplicated stream.
type Plugin struct {
	mu      sync.Mutex
	current Snapshot

	dedup  *periodic.Dedup[Snapshot]
	cancel context.CancelFunc
}

// New creates the traffic plugin. Its periodic rotation task is started
// by Start, per the pluginapi.Lifecycle contract.
func New() *Plugin {
	p := &Plugin{}
	p.dedup = periodic.NewDedup(func(ctx context.Context) Snapshot {
		return p.rotate()
	}, TickInterval)
	return p
}

var _ pluginapi.Plugin = (*Plugin)(nil)
var _ pluginapi.Lifecycle = (*Plugin)(nil)

func (p *Plugin) Name() string { return Name }

// In increments the download counters: bytes by the datagram length,
// packets by one.
func (p *Plugin) In(ctx context.Context, pkt pluginapi.InPacket) pluginapi.Verdict {
	p.mu.Lock()
	p.current.DownloadBytes += int64(len(pkt.Bytes))
	p.current.DownloadPackets++
	p.mu.Unlock()
	return pluginapi.Ok
}

// Out increments the upload counters: bytes per transmission (len(bytes)
// times the number of destinations), packets once per event regardless of
// fan-out width.
func (p *Plugin) Out(ctx context.Context, bytes []byte, dests []*net.UDPAddr) pluginapi.Verdict {
	p.mu.Lock()
	p.current.UploadBytes += int64(len(bytes) * len(dests))
	p.current.UploadPackets++
	p.mu.Unlock()
	return pluginapi.Ok
}

// Start launches the 1 Hz rotation task.
func (p *Plugin) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.dedup.Run(ctx)
	return nil
}

// Stop halts the rotation task.
func (p *Plugin) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// rotate swaps current into previous and resets current to zero,
// returning the rotated-out previous snapshot.
func (p *Plugin) rotate() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous := p.current
	p.current = Snapshot{}
	return previous
}

// TrafficInfo returns the live, still-accumulating current snapshot —
// the control surface's point query.
func (p *Plugin) TrafficInfo() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Stream subscribes to the 1 Hz deduplicated previous-snapshot stream.
func (p *Plugin) Stream() (<-chan Snapshot, func()) {
	return p.dedup.Subscribe()
}
