// Package blockerplugin implements the port-blocker plugin: ingress veto
// by exact (protocol, destination port) match. Grounded in the original's
// plugin/blocker.rs, with IPv4/TCP/UDP header extraction delegated to
// gopacket/layers (a teacher dependency previously exercised only by its
// raw-capture plugins) instead of hand-rolled byte offsets.
package blockerplugin

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/lanplay/slpd/internal/pluginapi"
	"github.com/lanplay/slpd/internal/wire"
)

// Name is this plugin's registry key.
const Name = "blocker"

// Protocol identifies the transport-layer protocol a Rule matches on.
type Protocol uint8

const (
	ProtoTCP Protocol = iota
	ProtoUDP
)

func (p Protocol) String() string {
	if p == ProtoUDP {
		return "udp"
	}
	return "tcp"
}

// Rule is one compiled block rule: drop any IPv4 datagram whose transport
// header matches this exact (protocol, destination port) pair.
type Rule struct {
	Protocol Protocol
	DstPort  uint16
}

// ParseRule parses a rule string of the form "tcp:5000" or "udp:21".
// Protocol is case-insensitive; anything else is rejected.
func ParseRule(s string) (Rule, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Rule{}, fmt.Errorf("slpd: rule must be of the form proto:port, got %q", s)
	}

	var proto Protocol
	switch strings.ToLower(parts[0]) {
	case "tcp":
		proto = ProtoTCP
	case "udp":
		proto = ProtoUDP
	default:
		return Rule{}, fmt.Errorf("slpd: unsupported protocol %q (must be tcp or udp)", parts[0])
	}

	port, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || port == 0 {
		return Rule{}, fmt.Errorf("slpd: invalid port %q", parts[1])
	}
	return Rule{Protocol: proto, DstPort: uint16(port)}, nil
}

// Plugin drops inbound datagrams whose decoded IPv4 transport header
// matches any configured rule exactly.
type Plugin struct {
	reassembler *wire.Reassembler
	rules       []Rule
}

// New creates a blocker plugin with no rules configured (nothing blocked
// until SetBlockRules is called).
func New() *Plugin {
	return &Plugin{reassembler: wire.NewReassembler(0)}
}

var _ pluginapi.Plugin = (*Plugin)(nil)

func (p *Plugin) Name() string { return Name }

// SetBlockRules replaces the active rule set. Part of the control
// surface's setBlockRules operation.
func (p *Plugin) SetBlockRules(rules []Rule) {
	p.rules = rules
}

// In extracts the IPv4 payload (reassembling fragments as needed),
// decodes its transport header, and vetoes when any rule matches.
// Malformed or non-TCP/UDP payloads are allowed through untouched.
func (p *Plugin) In(ctx context.Context, pkt pluginapi.InPacket) pluginapi.Verdict {
	if len(p.rules) == 0 {
		return pluginapi.Ok
	}

	payload, ok := p.extractIpv4Payload(pkt.Bytes)
	if !ok {
		return pluginapi.Ok
	}

	ipv4 := &layers.IPv4{}
	if err := ipv4.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
		return pluginapi.Ok
	}

	proto, dstPort, ok := transportHeader(ipv4)
	if !ok {
		return pluginapi.Ok
	}

	for _, r := range p.rules {
		if r.Protocol == proto && r.DstPort == dstPort {
			return pluginapi.Veto
		}
	}
	return pluginapi.Ok
}

// Out is a no-op: the blocker only inspects ingress traffic.
func (p *Plugin) Out(ctx context.Context, bytes []byte, dests []*net.UDPAddr) pluginapi.Verdict {
	return pluginapi.Ok
}

// extractIpv4Payload returns the IPv4 datagram carried by an Ipv4 frame
// directly, or by an Ipv4Frag frame once reassembly completes.
func (p *Plugin) extractIpv4Payload(raw []byte) ([]byte, bool) {
	f, err := wire.ParseFrame(raw)
	if err != nil {
		return nil, false
	}
	switch f.Kind {
	case wire.KindIpv4:
		return f.Payload(), true
	case wire.KindIpv4Frag:
		h, data, err := f.Ipv4Frag()
		if err != nil {
			return nil, false
		}
		return p.reassembler.Add(h.SrcV, h, data)
	default:
		return nil, false
	}
}

func transportHeader(ipv4 *layers.IPv4) (Protocol, uint16, bool) {
	switch ipv4.Protocol {
	case layers.IPProtocolTCP:
		tcp := &layers.TCP{}
		if err := tcp.DecodeFromBytes(ipv4.LayerPayload(), gopacket.NilDecodeFeedback); err != nil {
			return 0, 0, false
		}
		return ProtoTCP, uint16(tcp.DstPort), true
	case layers.IPProtocolUDP:
		udp := &layers.UDP{}
		if err := udp.DecodeFromBytes(ipv4.LayerPayload(), gopacket.NilDecodeFeedback); err != nil {
			return 0, 0, false
		}
		return ProtoUDP, uint16(udp.DstPort), true
	default:
		return 0, 0, false
	}
}
