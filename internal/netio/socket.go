// Package netio owns the relay's single UDP socket: binding, buffer sizing,
// and the recv/send/fan-out primitives the relay engine drives.
package netio

import (
	"fmt"
	"net"

	"github.com/lanplay/slpd/internal/log"
)

// MinSocketBuffer is the floor the spec requires for both the send and
// receive kernel buffers. The default is 2 MiB, matching the grounding
// source's socket2 setup exactly rather than stopping at the floor.
const (
	MinSocketBuffer     = 1 << 20
	DefaultSocketBuffer = 2 << 20
	MaxDatagramSize     = 2048
)

// Socket wraps one bound UDP connection and exposes exactly the primitives
// the relay engine needs: recv one datagram, send to one address, and fan
// a single datagram out to many addresses.
type Socket struct {
	conn *net.UDPConn
}

// Bind opens and configures the relay's UDP socket. It raises both kernel
// buffers to bufSize (DefaultSocketBuffer when bufSize <= 0, clamped up to
// MinSocketBuffer).
func Bind(addr string, bufSize int) (*Socket, error) {
	if bufSize <= 0 {
		bufSize = DefaultSocketBuffer
	}
	if bufSize < MinSocketBuffer {
		bufSize = MinSocketBuffer
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("slpd: resolve bind address %q: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("slpd: bind udp socket on %q: %w", addr, err)
	}
	if err := conn.SetReadBuffer(bufSize); err != nil {
		log.GetLogger().WithError(err).Warn("failed to raise socket receive buffer")
	}
	if err := conn.SetWriteBuffer(bufSize); err != nil {
		log.GetLogger().WithError(err).Warn("failed to raise socket send buffer")
	}

	return &Socket{conn: conn}, nil
}

// NewProbingSocket binds the first free port at or after the requested
// port, scanning upward until bind succeeds or the port space (65535) is
// exhausted. Used by tests that need a collision-free listen address.
func NewProbingSocket(host string, startPort int, bufSize int) (*Socket, error) {
	for port := startPort; port <= 65535; port++ {
		s, err := Bind(fmt.Sprintf("%s:%d", host, port), bufSize)
		if err == nil {
			return s, nil
		}
	}
	return nil, fmt.Errorf("slpd: no free port found starting at %d", startPort)
}

// LocalAddr reports the address the socket is bound to.
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Close releases the underlying socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// RecvDatagram blocks until one datagram is available and returns a fresh
// copy of its bytes along with the sender's real address.
func (s *Socket) RecvDatagram() ([]byte, *net.UDPAddr, error) {
	buf := make([]byte, MaxDatagramSize)
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	return buf[:n], addr, nil
}

// Send writes one datagram to one destination. Failures are returned to
// the caller, who is expected to log and drop per the spec's error policy.
func (s *Socket) Send(b []byte, to *net.UDPAddr) error {
	_, err := s.conn.WriteToUDP(b, to)
	return err
}

// SendFanout writes the same datagram to every destination in dests. A
// failed send to one destination is logged and skipped; it never prevents
// delivery to the others.
func (s *Socket) SendFanout(b []byte, dests []*net.UDPAddr) {
	for _, to := range dests {
		if err := s.Send(b, to); err != nil {
			log.GetLogger().WithError(err).WithField("dest", to.String()).
				Warn("slpd: fan-out send failed, dropping this destination")
		}
	}
}
