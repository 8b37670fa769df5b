package trafficplugin

import (
	"context"
	"net"
	"testing"

	"github.com/lanplay/slpd/internal/pluginapi"
	"github.com/stretchr/testify/assert"
)

func addrs(n int) []*net.UDPAddr {
	out := make([]*net.UDPAddr, n)
	for i := range out {
		out[i] = &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1000 + i}
	}
	return out
}

func TestInIncrementsDownloadCounters(t *testing.T) {
	p := New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p.In(ctx, pluginapi.InPacket{Bytes: make([]byte, 10)})
	}
	info := p.TrafficInfo()
	assert.Equal(t, int64(30), info.DownloadBytes)
	assert.Equal(t, int64(3), info.DownloadPackets)
}

func TestOutCountsBytesPerTransmissionPacketsPerEvent(t *testing.T) {
	p := New()
	ctx := context.Background()
	p.Out(ctx, make([]byte, 10), addrs(4))
	info := p.TrafficInfo()
	assert.Equal(t, int64(40), info.UploadBytes)
	assert.Equal(t, int64(1), info.UploadPackets)
}

func TestRotateResetsCurrentAndReturnsPrevious(t *testing.T) {
	p := New()
	p.In(context.Background(), pluginapi.InPacket{Bytes: make([]byte, 5)})
	prev := p.rotate()
	assert.Equal(t, int64(5), prev.DownloadBytes)
	assert.Equal(t, int64(0), p.TrafficInfo().DownloadBytes)
}
