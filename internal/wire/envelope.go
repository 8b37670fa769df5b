// Package wire implements the forwarder envelope codec and the IPv4
// fragment reassembler used to tunnel virtual-LAN traffic over UDP.
package wire

// Kind identifies the variant of a forwarder envelope.
type Kind uint8

const (
	KindKeepalive Kind = 0x00
	KindIpv4      Kind = 0x01
	KindPing      Kind = 0x02
	KindIpv4Frag  Kind = 0x03
	KindAuthMe    Kind = 0x04
	KindInfo      Kind = 0x10
)

const (
	// MinFrameLen and MaxFrameLen bound the whole envelope, tag included.
	MinFrameLen = 1
	MaxFrameLen = 2048

	ipv4FragHeaderLen = 16
	pingPayloadLen    = 4
	ipv4MinPayloadLen = 20
)

// Frame is a zero-copy, tagged view over a received datagram. Getters read
// directly from the original buffer; callers must not retain raw beyond the
// lifetime of the buffer it was parsed from without copying first.
type Frame struct {
	Kind Kind
	raw  []byte
}

// ParseFrame classifies and validates a received datagram. It never copies
// the input; all accessor methods return views into raw.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) < MinFrameLen || len(b) > MaxFrameLen {
		return Frame{}, ErrNotParseable
	}

	kind := Kind(b[0])
	switch kind {
	case KindKeepalive, KindAuthMe, KindInfo:
		// accepted and ignored beyond the tag; no further shape requirement.
	case KindIpv4:
		if len(b)-1 < ipv4MinPayloadLen {
			return Frame{}, ErrNotParseable
		}
	case KindPing:
		if len(b)-1 != pingPayloadLen {
			return Frame{}, ErrNotParseable
		}
	case KindIpv4Frag:
		if len(b)-1 < ipv4FragHeaderLen {
			return Frame{}, ErrNotParseable
		}
		fragLen := be16(b[13:15])
		if int(fragLen)+ipv4FragHeaderLen+1 > len(b) {
			return Frame{}, ErrFragmentOverrun
		}
	default:
		return Frame{}, ErrUnknownKind
	}

	return Frame{Kind: kind, raw: b}, nil
}

// Payload returns everything after the leading tag byte.
func (f Frame) Payload() []byte {
	return f.raw[1:]
}

// PingPayload returns the 4 opaque bytes of a Ping frame.
func (f Frame) PingPayload() ([4]byte, error) {
	var p [4]byte
	if f.Kind != KindPing {
		return p, ErrWrongKind
	}
	copy(p[:], f.raw[1:5])
	return p, nil
}

// BuildPingReply builds the exact bytes echoed back to a Ping sender.
func BuildPingReply(p [4]byte) []byte {
	return []byte{byte(KindPing), p[0], p[1], p[2], p[3]}
}

// Ipv4Addrs extracts the source and destination addresses embedded in an
// Ipv4 frame's IPv4 header (standard offsets 12 and 16).
func (f Frame) Ipv4Addrs() (src, dst [4]byte, err error) {
	if f.Kind != KindIpv4 {
		return src, dst, ErrWrongKind
	}
	p := f.raw[1:]
	copy(src[:], p[12:16])
	copy(dst[:], p[16:20])
	return src, dst, nil
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
