// Package ldnplugin implements the LDN-discovery plugin: a periodic scan
// probe broadcast plus a room table built from decoded advertisement
// packets. Grounded in the original's plugin/ldn_mitm/{plugin,mod}.rs,
// with IPv4/UDP validation delegated to gopacket/layers like the blocker
// plugin and custom decoding (lan_protocol.go) for the proprietary LDN
// header and NetworkInfo structure gopacket has no layer for.
package ldnplugin

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/lanplay/slpd/internal/log"
	"github.com/lanplay/slpd/internal/metrics"
	"github.com/lanplay/slpd/internal/pluginapi"
	"github.com/lanplay/slpd/internal/wire"
)

// Name is this plugin's registry key.
const Name = "ldn"

// ScanInterval is how often the room table is cleared and a fresh scan
// probe is broadcast.
const ScanInterval = 5 * time.Second

// ScanPort is the well-known port used by both the scan probe and the
// advertisement datagrams it solicits.
const ScanPort = 11452

// DstVirtualIP is the virtual IPv4 address LDN discovery traffic is
// addressed to, used both as the scan probe's source and as the filter
// applied to inbound datagrams.
var DstVirtualIP = [4]byte{10, 13, 37, 0}

var broadcastVirtualIP = net.IPv4(10, 13, 255, 255).To4()

// scanHeader is the 12-byte LDN scan header wire format from §6: magic
// `00 14 45 11`, type 0, uncompressed, zero length, zero decompressed
// length, two reserved bytes.
var scanHeader = []byte{0x00, 0x14, 0x45, 0x11, 0x00, 0, 0, 0, 0, 0, 0, 0}

// Room is one decoded advertisement, keyed by the source virtual IPv4 it
// arrived from.
type Room struct {
	ContentID        uint64
	SessionID        [16]byte
	HostPlayerName   string
	NodeCountMax     uint8
	NodeCount        uint8
	Nodes            []NodeInfo
	AdvertiseDataLen uint16
	AdvertiseData    []byte
}

// Broadcaster is the subset of peermanager.Manager the plugin needs to
// issue its scan probe: the set of real addresses to fan the probe out
// to. Modeled as an interface so the plugin does not import the
// peermanager package directly, avoiding a cyclic dependency between the
// plugin and the component that constructs it.
type Broadcaster interface {
	Broadcast() []*net.UDPAddr
}

// Sender transmits a single datagram to many destinations, skipping any
// that fail.
type Sender interface {
	SendFanout(b []byte, dests []*net.UDPAddr)
}

// Plugin maintains the room table and drives the 5-second scan cycle.
type Plugin struct {
	mu    sync.Mutex
	rooms map[[4]byte]Room

	reassembler *wire.Reassembler
	broadcaster Broadcaster
	sender      Sender
	cancel      context.CancelFunc
}

// New creates the LDN plugin. broadcaster and sender supply the peer
// manager's broadcast list and the socket used to transmit the scan
// probe; per the design notes the plugin holds only this handle, never
// the server itself, so its background task simply stops doing useful
// work once its context is canceled at server teardown.
func New(broadcaster Broadcaster, sender Sender) *Plugin {
	return &Plugin{
		rooms:       make(map[[4]byte]Room),
		reassembler: wire.NewReassembler(0),
		broadcaster: broadcaster,
		sender:      sender,
	}
}

var _ pluginapi.Plugin = (*Plugin)(nil)
var _ pluginapi.Lifecycle = (*Plugin)(nil)

func (p *Plugin) Name() string { return Name }

// Start launches the periodic scan task.
func (p *Plugin) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.runScanLoop(ctx)
	return nil
}

// Stop halts the periodic scan task.
func (p *Plugin) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func (p *Plugin) runScanLoop(ctx context.Context) {
	ticker := time.NewTicker(ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scan()
		}
	}
}

// scan clears the room table, then broadcasts a fresh probe; stale rooms
// age out within one cycle since they are only refreshed by an inbound
// advertisement.
func (p *Plugin) scan() {
	p.mu.Lock()
	p.rooms = make(map[[4]byte]Room)
	p.mu.Unlock()

	probe := buildScanProbe()
	p.sender.SendFanout(probe, p.broadcaster.Broadcast())
}

func buildScanProbe() []byte {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(DstVirtualIP[0], DstVirtualIP[1], DstVirtualIP[2], DstVirtualIP[3]).To4(),
		DstIP:    broadcastVirtualIP,
	}
	udp := &layers.UDP{SrcPort: ScanPort, DstPort: ScanPort}
	udp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload(scanHeader)); err != nil {
		log.GetLogger().Errorf("ldn: failed to build scan probe: %v", err)
		return nil
	}
	return append([]byte{byte(wire.KindIpv4)}, buf.Bytes()...)
}

// In inspects datagrams addressed to the discovery virtual IPv4,
// decoding advertisements and upserting the room table. Anything else
// passes through untouched; malformed or irrelevant datagrams never
// veto.
func (p *Plugin) In(ctx context.Context, pkt pluginapi.InPacket) pluginapi.Verdict {
	payload, srcV, ok := p.extractIpv4Payload(pkt.Bytes)
	if !ok {
		return pluginapi.Ok
	}

	ipv4 := &layers.IPv4{}
	if err := ipv4.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
		return pluginapi.Ok
	}
	if ipv4.Protocol != layers.IPProtocolUDP {
		return pluginapi.Ok
	}
	var dstV [4]byte
	copy(dstV[:], ipv4.DstIP.To4())
	if dstV != DstVirtualIP {
		return pluginapi.Ok
	}

	udp := &layers.UDP{}
	if err := udp.DecodeFromBytes(ipv4.LayerPayload(), gopacket.NilDecodeFeedback); err != nil {
		return pluginapi.Ok
	}

	ldnPkt, err := ParseLdnPacket(udp.LayerPayload())
	if err != nil {
		return pluginapi.Ok
	}
	if ldnPkt.Type != 1 || len(ldnPkt.Payload) < networkInfoMinLen {
		return pluginapi.Ok
	}

	info, err := ParseNetworkInfo(ldnPkt.Payload)
	if err != nil {
		return pluginapi.Ok
	}

	room := Room{
		ContentID:        info.ContentID,
		SessionID:        info.SessionID,
		HostPlayerName:   info.HostPlayerName,
		NodeCountMax:     info.NodeCountMax,
		NodeCount:        info.NodeCount,
		Nodes:            info.Nodes,
		AdvertiseDataLen: info.AdvertiseDataLen,
		AdvertiseData:    info.AdvertiseData,
	}
	p.mu.Lock()
	p.rooms[srcV] = room
	metrics.RoomsActive.Set(float64(len(p.rooms)))
	p.mu.Unlock()
	return pluginapi.Ok
}

// Out is a no-op: the LDN plugin only observes ingress traffic; its
// probe is sent directly via Sender, not through the egress hook.
func (p *Plugin) Out(ctx context.Context, bytes []byte, dests []*net.UDPAddr) pluginapi.Verdict {
	return pluginapi.Ok
}

func (p *Plugin) extractIpv4Payload(raw []byte) (payload []byte, srcV [4]byte, ok bool) {
	f, err := wire.ParseFrame(raw)
	if err != nil {
		return nil, srcV, false
	}
	switch f.Kind {
	case wire.KindIpv4:
		src, _, err := f.Ipv4Addrs()
		if err != nil {
			return nil, srcV, false
		}
		return f.Payload(), src, true
	case wire.KindIpv4Frag:
		h, data, err := f.Ipv4Frag()
		if err != nil {
			return nil, srcV, false
		}
		reassembled, done := p.reassembler.Add(h.SrcV, h, data)
		if !done {
			return nil, srcV, false
		}
		return reassembled, h.SrcV, true
	default:
		return nil, srcV, false
	}
}

// Rooms returns a snapshot of the room table, keyed by source virtual
// IPv4.
func (p *Plugin) Rooms() map[[4]byte]Room {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[[4]byte]Room, len(p.rooms))
	for k, v := range p.rooms {
		out[k] = v
	}
	return out
}
