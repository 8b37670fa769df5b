// Package relay implements the coordinator that owns the socket, the peer
// manager and the plugin pipeline, and drives the ingress/event tasks
// described by the relay dataplane. Grounded in the original's
// slp/server.rs event loop (ingress recv -> plugin veto -> classify ->
// route -> fan out), adapted to Go channels and goroutines in place of
// the original's mpsc streams and select! loop.
package relay

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/lanplay/slpd/internal/log"
	"github.com/lanplay/slpd/internal/metrics"
	"github.com/lanplay/slpd/internal/netio"
	"github.com/lanplay/slpd/internal/peermanager"
	"github.com/lanplay/slpd/internal/pluginapi"
	"github.com/lanplay/slpd/internal/wire"
)

// EventChannelSize and FanoutConcurrency bound the event task's queue and
// its in-flight event processing, matching the spec's backpressure policy:
// a full channel drops the offending event rather than blocking a sender.
const (
	EventChannelSize  = 100
	FanoutConcurrency = 4
)

// SweepInterval is how often the idle-sweep ticker checks for peers past
// their hard inbound-silence timeout.
const SweepInterval = time.Second

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	EventClose EventKind = iota
	EventSendLAN
)

// Event is the relay's internal work item, produced by the ingress task
// and consumed by the event task.
type Event struct {
	Kind  EventKind
	Real  *net.UDPAddr
	SrcV  [4]byte
	DstV  [4]byte
	Bytes []byte
}

// Engine coordinates the socket, peer manager, and plugin registry. One
// Engine serves exactly one bound socket.
type Engine struct {
	sock     *netio.Socket
	manager  *peermanager.Manager
	registry *pluginapi.Registry

	events chan Event
}

// New creates a relay engine. The socket, peer manager, and plugin
// registry must already be constructed; the engine only coordinates them.
func New(sock *netio.Socket, manager *peermanager.Manager, registry *pluginapi.Registry) *Engine {
	return &Engine{
		sock:     sock,
		manager:  manager,
		registry: registry,
		events:   make(chan Event, EventChannelSize),
	}
}

// Run starts the ingress task, the fan-out-concurrency event workers, and
// the idle-sweep ticker, blocking until ctx is canceled. The socket is
// closed on return, which is what unblocks the ingress task's recv.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.ingressTask(ctx)
	}()

	for i := 0; i < FanoutConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.eventWorker(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.sweepTask(ctx)
	}()

	<-ctx.Done()
	e.sock.Close()
	wg.Wait()
}

func (e *Engine) ingressTask(ctx context.Context) {
	for {
		bytes, real, err := e.sock.RecvDatagram()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.GetLogger().WithError(err).Warn("slpd: recv failed, continuing")
			continue
		}

		if e.registry.RunIngress(ctx, pluginapi.InPacket{Bytes: bytes, From: real}) == pluginapi.Veto {
			continue
		}

		frame, err := wire.ParseFrame(bytes)
		if err != nil {
			metrics.FramesDroppedTotal.WithLabelValues("parse").Inc()
			continue
		}
		metrics.FramesTotal.WithLabelValues("in", frameKindLabel(frame.Kind)).Inc()
		metrics.BytesTotal.WithLabelValues("in").Add(float64(len(bytes)))

		now := time.Now()

		switch frame.Kind {
		case wire.KindPing:
			ping, err := frame.PingPayload()
			if err != nil {
				continue
			}
			if err := e.sock.Send(wire.BuildPingReply(ping), real); err != nil {
				log.GetLogger().WithError(err).Warn("slpd: ping reply send failed")
			}
			continue
		case wire.KindKeepalive, wire.KindAuthMe, wire.KindInfo:
			peer := e.manager.Touch(real, now)
			peer.OnPacket(frame.Kind, now)
			continue
		}

		peer := e.manager.Touch(real, now)
		peer.OnPacket(frame.Kind, now)

		switch frame.Kind {
		case wire.KindIpv4:
			src, dst, err := frame.Ipv4Addrs()
			if err != nil {
				continue
			}
			e.emit(Event{Kind: EventSendLAN, Real: real, SrcV: src, DstV: dst, Bytes: bytes})
		case wire.KindIpv4Frag:
			h, _, err := frame.Ipv4Frag()
			if err != nil {
				continue
			}
			e.emit(Event{Kind: EventSendLAN, Real: real, SrcV: h.SrcV, DstV: h.DstV, Bytes: bytes})
		}
	}
}

// emit enqueues an event, dropping it if the event channel is full per
// the spec's backpressure policy (loss over head-of-line blocking).
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		metrics.FramesDroppedTotal.WithLabelValues("event_channel_full").Inc()
		log.GetLogger().Warn("slpd: event channel full, dropping event")
	}
}

func (e *Engine) eventWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.events:
			if !ok {
				return
			}
			e.handleEvent(ctx, ev)
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventClose:
		e.manager.Remove(ev.Real)
	case EventSendLAN:
		dests := e.manager.Route(ev.Real, peermanager.RouteRequest{SrcV: ev.SrcV, DstV: ev.DstV})
		e.registry.RunEgress(ctx, ev.Bytes, dests)
		metrics.FramesTotal.WithLabelValues("out", "ipv4").Inc()
		metrics.BytesTotal.WithLabelValues("out").Add(float64(len(ev.Bytes) * len(dests)))
		e.sock.SendFanout(ev.Bytes, dests)
	}
}

// sweepTask periodically checks for peers past their hard inbound-silence
// timeout and emits a Close event for each, standing in for the original
// per-peer recv-timeout task in a single poller instead of one goroutine
// per peer.
func (e *Engine) sweepTask(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, real := range e.manager.Sweep(time.Now()) {
				e.emit(Event{Kind: EventClose, Real: real})
			}
		}
	}
}

func frameKindLabel(k wire.Kind) string {
	switch k {
	case wire.KindKeepalive:
		return "keepalive"
	case wire.KindIpv4:
		return "ipv4"
	case wire.KindPing:
		return "ping"
	case wire.KindIpv4Frag:
		return "ipv4_frag"
	case wire.KindAuthMe:
		return "auth_me"
	case wire.KindInfo:
		return "info"
	default:
		return "unknown"
	}
}
