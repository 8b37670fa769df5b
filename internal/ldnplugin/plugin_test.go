package ldnplugin

import (
	"context"
	"encoding/binary"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/lanplay/slpd/internal/pluginapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroadcaster struct{ addrs []*net.UDPAddr }

func (f *fakeBroadcaster) Broadcast() []*net.UDPAddr { return f.addrs }

type fakeSender struct {
	sent  []byte
	dests []*net.UDPAddr
	calls int
}

func (f *fakeSender) SendFanout(b []byte, dests []*net.UDPAddr) {
	f.sent = b
	f.dests = dests
	f.calls++
}

func buildAdvertisement(t *testing.T, contentID uint64, nodeCount uint8, hostName string, nodes []NodeInfo, adData []byte) []byte {
	t.Helper()
	info := make([]byte, networkInfoMinLen)
	binary.LittleEndian.PutUint64(info[offContentID:offContentID+8], contentID)
	info[offNodeCountMax] = 8
	info[offNodeCount] = nodeCount
	copy(info[offHostName:offHostName+hostNameLen], []byte(hostName))

	for i, n := range nodes {
		start := offNodesBase + nodeStride*i
		var le [4]byte
		binary.LittleEndian.PutUint32(le[:], binary.BigEndian.Uint32(n.IP[:]))
		copy(info[start:start+4], le[:])
		info[start+0xA] = n.NodeID
		if n.Connected {
			info[start+0xB] = 1
		}
		copy(info[start+0xC:start+0xC+0x20], []byte(n.Name))
	}

	binary.LittleEndian.PutUint16(info[offAdLen:offAdLen+2], uint16(len(adData)))
	copy(info[offAdData:offAdData+len(adData)], adData)

	header := make([]byte, ldnHeaderLen)
	copy(header[0:4], []byte{0x00, 0x14, 0x45, 0x11})
	header[fieldType] = 1
	binary.LittleEndian.PutUint16(header[fieldLen:fieldLen+2], uint16(len(info)))
	binary.LittleEndian.PutUint16(header[fieldOriLen:fieldOriLen+2], uint16(len(info)))
	ldnPayload := append(header, info...)

	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 13, 58, 122),
		DstIP:    net.IPv4(DstVirtualIP[0], DstVirtualIP[1], DstVirtualIP[2], DstVirtualIP[3]),
	}
	udp := &layers.UDP{SrcPort: ScanPort, DstPort: ScanPort}
	udp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload(ldnPayload)))
	return append([]byte{0x01}, buf.Bytes()...)
}

func TestInDecodesRoomScanUpsertsTable(t *testing.T) {
	p := New(&fakeBroadcaster{}, &fakeSender{})
	raw := buildAdvertisement(t, 0x01006A800016E000, 2, "Colyo", []NodeInfo{
		{IP: [4]byte{10, 13, 58, 122}, NodeID: 0, Connected: true, Name: "Colyo"},
		{IP: [4]byte{10, 13, 7, 36}, NodeID: 1, Connected: true, Name: "shana"},
	}, make([]byte, 368))

	v := p.In(context.Background(), pluginapi.InPacket{Bytes: raw})
	assert.Equal(t, pluginapi.Ok, v)

	rooms := p.Rooms()
	require.Len(t, rooms, 1)
	room, ok := rooms[[4]byte{10, 13, 58, 122}]
	require.True(t, ok)
	assert.Equal(t, uint64(0x01006A800016E000), room.ContentID)
	assert.Equal(t, "Colyo", room.HostPlayerName)
	assert.Equal(t, uint8(2), room.NodeCount)
	require.Len(t, room.Nodes, 2)
	assert.Equal(t, [4]byte{10, 13, 58, 122}, room.Nodes[0].IP)
	assert.Equal(t, "Colyo", room.Nodes[0].Name)
	assert.Equal(t, [4]byte{10, 13, 7, 36}, room.Nodes[1].IP)
	assert.Equal(t, "shana", room.Nodes[1].Name)
	assert.Equal(t, uint16(368), room.AdvertiseDataLen)
}

func TestInIgnoresDatagramsNotAddressedToDiscoveryIP(t *testing.T) {
	p := New(&fakeBroadcaster{}, &fakeSender{})
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP,
		SrcIP: net.IPv4(10, 13, 58, 122), DstIP: net.IPv4(10, 13, 58, 1),
	}
	udp := &layers.UDP{SrcPort: ScanPort, DstPort: ScanPort}
	udp.SetNetworkLayerForChecksum(ip)
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, ip, udp, gopacket.Payload(scanHeader)))
	raw := append([]byte{0x01}, buf.Bytes()...)

	v := p.In(context.Background(), pluginapi.InPacket{Bytes: raw})
	assert.Equal(t, pluginapi.Ok, v)
	assert.Empty(t, p.Rooms())
}

func TestScanClearsRoomsAndBroadcastsProbe(t *testing.T) {
	dest := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9000}
	b := &fakeBroadcaster{addrs: []*net.UDPAddr{dest}}
	s := &fakeSender{}
	p := New(b, s)
	p.rooms[[4]byte{1, 2, 3, 4}] = Room{ContentID: 1}

	p.scan()

	assert.Empty(t, p.rooms)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, []*net.UDPAddr{dest}, s.dests)
	assert.Equal(t, byte(0x01), s.sent[0])
}
