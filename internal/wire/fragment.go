package wire

// Ipv4FragHeader is the decoded fixed header of an Ipv4Frag envelope.
type Ipv4FragHeader struct {
	SrcV       [4]byte
	DstV       [4]byte
	FragID     uint16
	PartIndex  uint8
	TotalParts uint8
	FragLen    uint16
	PMTU       uint16
}

// Ipv4Frag decodes the header and returns a zero-copy view of the fragment
// payload bytes that follow it.
func (f Frame) Ipv4Frag() (Ipv4FragHeader, []byte, error) {
	var h Ipv4FragHeader
	if f.Kind != KindIpv4Frag {
		return h, nil, ErrWrongKind
	}
	b := f.raw[1:]
	copy(h.SrcV[:], b[0:4])
	copy(h.DstV[:], b[4:8])
	h.FragID = be16(b[8:10])
	h.PartIndex = b[10]
	h.TotalParts = b[11]
	h.FragLen = be16(b[12:14])
	h.PMTU = be16(b[14:16])

	data := b[ipv4FragHeaderLen : ipv4FragHeaderLen+int(h.FragLen)]
	return h, data, nil
}
